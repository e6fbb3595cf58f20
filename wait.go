package pagecam

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"
)

// Condition reports whether some state of the application holds right now.
// It returns nil when satisfied and an error describing what is missing
// otherwise. Conditions only inspect state, so they may be called any number
// of times.
type Condition func() error

// Clock is the time source used between polls.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// WaitConfig controls polling.
type WaitConfig struct {
	Timeout      time.Duration // Default deadline for waits that don't set one
	PollInterval time.Duration // Pause between checks
	LogEvery     int           // Attempts between diagnostic log lines, 0 disables
}

// DefaultWaitConfig returns the polling defaults.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		Timeout:      30 * time.Second,
		PollInterval: 100 * time.Millisecond,
		LogEvery:     9,
	}
}

// Waiter runs conditions until they hold or a deadline passes.
type Waiter struct {
	config WaitConfig
	clock  Clock
	logger *zap.Logger
}

// NewWaiter creates a waiter. A nil clock uses the wall clock and a nil
// logger discards diagnostics.
func NewWaiter(config WaitConfig, clk Clock, logger *zap.Logger) *Waiter {
	if clk == nil {
		clk = clock.NewClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWaitConfig().PollInterval
	}
	return &Waiter{config: config, clock: clk, logger: logger}
}

// Config returns the waiter's settings.
func (w *Waiter) Config() WaitConfig {
	return w.config
}

// Clock returns the time source the waiter sleeps on.
func (w *Waiter) Clock() Clock {
	return w.clock
}

// Outcome is the result of one wait.
type Outcome struct {
	Description string
	Attempts    int
	Elapsed     time.Duration
	// Reason is the failure reason of the last check, empty when satisfied.
	Reason    string
	satisfied bool
}

// Satisfied reports whether the condition held before the deadline.
func (o Outcome) Satisfied() bool {
	return o.satisfied
}

// Err returns nil when satisfied and a *TimeoutError otherwise.
func (o Outcome) Err() error {
	if o.satisfied {
		return nil
	}
	return &TimeoutError{
		Description: o.Description,
		Reason:      o.Reason,
		Attempts:    o.Attempts,
		Elapsed:     o.Elapsed,
	}
}

// TimeoutError describes a condition that never held.
type TimeoutError struct {
	Description string
	Reason      string
	Attempts    int
	Elapsed     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timed out waiting until: '%s' - reason: '%s'", e.Description, e.Reason)
}

// Until checks cond immediately and then once per poll interval until it is
// satisfied or the deadline passes. A check is only started before the
// deadline, so a timeout of zero or less performs exactly one check.
func (w *Waiter) Until(description string, timeout time.Duration, cond Condition) Outcome {
	start := w.clock.Now()
	deadline := start.Add(timeout)
	outcome := Outcome{Description: description}

	for {
		outcome.Attempts++
		err := evaluate(cond)
		if err == nil {
			outcome.satisfied = true
			outcome.Reason = ""
			outcome.Elapsed = w.clock.Now().Sub(start)
			return outcome
		}
		outcome.Reason = err.Error()

		if w.config.LogEvery > 0 && outcome.Attempts%w.config.LogEvery == 0 {
			w.logger.Info("Still waiting",
				zap.String("description", description),
				zap.String("reason", outcome.Reason),
				zap.Int("attempt", outcome.Attempts),
				zap.Duration("elapsed", w.clock.Now().Sub(start)))
		}

		if !w.clock.Now().Add(w.config.PollInterval).Before(deadline) {
			break
		}
		w.clock.Sleep(w.config.PollInterval)
	}

	outcome.Elapsed = w.clock.Now().Sub(start)
	w.logger.Debug("Wait timed out",
		zap.String("description", description),
		zap.String("reason", outcome.Reason),
		zap.Int("attempts", outcome.Attempts))
	return outcome
}

// evaluate runs a condition, turning a panic into an unsatisfied result.
func evaluate(cond Condition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("condition panicked: %v", r)
		}
	}()
	if cond == nil {
		return fmt.Errorf("no condition given")
	}
	return cond()
}

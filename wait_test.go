package pagecam

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestWaiter(clk Clock, logger *zap.Logger) *Waiter {
	return NewWaiter(WaitConfig{PollInterval: 100 * time.Millisecond, LogEvery: 3}, clk, logger)
}

func TestWaiter_SatisfiedImmediately(t *testing.T) {
	clk := newFakeClock()
	w := newTestWaiter(clk, nil)

	outcome := w.Until("ready", time.Second, func() error { return nil })

	assert.True(t, outcome.Satisfied())
	assert.NoError(t, outcome.Err())
	assert.Equal(t, 1, outcome.Attempts)
	assert.Zero(t, clk.sleeps)
}

func TestWaiter_EventuallySatisfied(t *testing.T) {
	clk := newFakeClock()
	w := newTestWaiter(clk, nil)

	calls := 0
	outcome := w.Until("third time lucky", time.Second, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.True(t, outcome.Satisfied())
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 2, clk.sleeps)
	assert.Equal(t, 200*time.Millisecond, outcome.Elapsed)
	assert.Empty(t, outcome.Reason)
}

func TestWaiter_TimesOut(t *testing.T) {
	clk := newFakeClock()
	w := newTestWaiter(clk, nil)

	outcome := w.Until("spinner gone", time.Second, func() error { return errors.New("spinner visible") })

	require.False(t, outcome.Satisfied())
	// Checks at 0ms..900ms; a check at 1000ms would not start before the deadline.
	assert.Equal(t, 10, outcome.Attempts)
	assert.Equal(t, "spinner visible", outcome.Reason)

	err := outcome.Err()
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "Timed out waiting until: 'spinner gone' - reason: 'spinner visible'", err.Error())
	assert.Equal(t, 10, timeout.Attempts)
}

func TestWaiter_NonPositiveTimeoutChecksOnce(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		clk := newFakeClock()
		w := newTestWaiter(clk, nil)

		calls := 0
		outcome := w.Until("once", timeout, func() error {
			calls++
			return errors.New("nope")
		})

		assert.False(t, outcome.Satisfied())
		assert.Equal(t, 1, calls, "timeout %s", timeout)
		assert.Zero(t, clk.sleeps)
	}
}

func TestWaiter_PanicIsUnsatisfied(t *testing.T) {
	w := newTestWaiter(newFakeClock(), nil)

	outcome := w.Until("panics", 0, func() error { panic("boom") })

	assert.False(t, outcome.Satisfied())
	assert.Equal(t, "condition panicked: boom", outcome.Reason)
}

func TestWaiter_NilCondition(t *testing.T) {
	w := newTestWaiter(newFakeClock(), nil)
	outcome := w.Until("nothing", 0, nil)
	assert.Equal(t, "no condition given", outcome.Reason)
}

func TestWaiter_LogsPeriodically(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := newTestWaiter(newFakeClock(), zap.New(core))

	w.Until("slow", time.Second, func() error { return errors.New("still loading") })

	entries := logs.FilterMessage("Still waiting").All()
	require.Len(t, entries, 3, "attempts 3, 6 and 9 are logged")
	fields := entries[0].ContextMap()
	assert.Equal(t, "slow", fields["description"])
	assert.Equal(t, "still loading", fields["reason"])
	assert.EqualValues(t, 3, fields["attempt"])
}

func TestNewWaiter_Defaults(t *testing.T) {
	w := NewWaiter(WaitConfig{}, nil, nil)
	assert.Equal(t, DefaultWaitConfig().PollInterval, w.Config().PollInterval)
	assert.NotNil(t, w.Clock())
}

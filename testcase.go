package pagecam

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pagecam/fixtures"
	"github.com/teranos/pagecam/internal/config"
	"github.com/teranos/pagecam/internal/observability"
	"github.com/teranos/pagecam/trip"
)

// T is the part of testing.TB a TestCase reports through.
type T interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
	Logf(format string, args ...any)
	Name() string
	Cleanup(func())
}

var (
	configOnce   sync.Once
	sharedConfig *config.Config
	configErr    error
)

func loadConfig() (*config.Config, error) {
	configOnce.Do(func() {
		sharedConfig, configErr = config.Load()
		if configErr == nil && sharedConfig.Logger.Enabled {
			observability.InitializeLogger(sharedConfig.Logger)
		}
	})
	return sharedConfig, configErr
}

// TestCase turns failed conditions into test failures attributed to the
// line of the test that issued the step.
//
// Example:
//
//	func TestLogin(t *testing.T) {
//	    tc := pagecam.NewTestCase(t)
//	    tc.WaitUntilOrAssert("spinner gone", spinnerGone, pagecam.Timeout(5*time.Second))
//	}
type TestCase struct {
	t       T
	waiter  *Waiter
	logger  *zap.Logger
	trips   *trip.Handler
	logging bool
	fs      afero.Fs
	capture config.CaptureConfig
	report  config.ReportConfig
	roots   []string

	started     time.Time
	captures    []CaptureRecord
	attachments []string

	waitConfig WaitConfig
	clock      Clock
	policy     *trip.Policy
}

// TestCaseOption configures a TestCase.
type TestCaseOption func(*TestCase)

// WithWaitConfig overrides the configured polling settings.
func WithWaitConfig(cfg WaitConfig) TestCaseOption {
	return func(tc *TestCase) { tc.waitConfig = cfg }
}

// WithClock substitutes the clock used between polls.
func WithClock(clk Clock) TestCaseOption {
	return func(tc *TestCase) { tc.clock = clk }
}

// WithLogger substitutes the logger.
func WithLogger(logger *zap.Logger) TestCaseOption {
	return func(tc *TestCase) { tc.logger = logger }
}

// WithFs substitutes the filesystem used for captures and attachments.
func WithFs(fs afero.Fs) TestCaseOption {
	return func(tc *TestCase) { tc.fs = fs }
}

// WithTripPolicy substitutes the failure policy.
func WithTripPolicy(policy *trip.Policy) TestCaseOption {
	return func(tc *TestCase) { tc.policy = policy }
}

// WithArtifactsRoot sets the directory captures and attachments are written under.
func WithArtifactsRoot(srcRoot string) TestCaseOption {
	return func(tc *TestCase) { tc.capture.SrcRoot = srcRoot }
}

// WithBaselineDir enables comparing captures against baseline screenshots.
func WithBaselineDir(dir string) TestCaseOption {
	return func(tc *TestCase) { tc.capture.BaselineDir = dir }
}

// WithReport turns the HTML run report on or off.
func WithReport(enabled bool) TestCaseOption {
	return func(tc *TestCase) { tc.report.Enabled = enabled }
}

// WithFixtureRoots sets the directories fixtures are searched in.
func WithFixtureRoots(roots ...string) TestCaseOption {
	return func(tc *TestCase) { tc.roots = roots }
}

// NewTestCase creates a TestCase reporting to t.
func NewTestCase(t T, opts ...TestCaseOption) *TestCase {
	t.Helper()

	cfg, err := loadConfig()
	if err != nil {
		t.Errorf("pagecam: %v", err)
		cfg = config.NewDefaultConfig()
	}

	tc := &TestCase{
		t:       t,
		fs:      afero.NewOsFs(),
		capture: cfg.Capture,
		report:  cfg.Report,
		roots:   cfg.Fixtures.Roots,
		waitConfig: WaitConfig{
			Timeout:      cfg.Wait.Timeout,
			PollInterval: cfg.Wait.PollInterval,
			LogEvery:     cfg.Wait.LogEvery,
		},
	}
	for _, opt := range opts {
		opt(tc)
	}

	if tc.logger == nil {
		tc.logger = defaultLogger(t, cfg)
	}
	tc.waiter = NewWaiter(tc.waitConfig, tc.clock, tc.logger)
	tc.trips = trip.NewHandler(t.Name(), tc.policy)
	tc.started = tc.waiter.Clock().Now()

	t.Cleanup(func() {
		if tc.trips.HasTrips() || tc.trips.HasStumbles() {
			t.Logf("%s", tc.trips.DetailedReport())
		}
		if !tc.report.Enabled || (tc.report.OnlyFailures && !tc.Failed()) {
			return
		}
		path, err := tc.WriteReport()
		if err != nil {
			tc.logger.Warn("Failed to write run report", zap.Error(err))
			return
		}
		t.Logf("report: %s", path)
	})
	return tc
}

func defaultLogger(t T, cfg *config.Config) *zap.Logger {
	if cfg.Logger.Enabled {
		return observability.GetLogger().Named(t.Name())
	}
	if tt, ok := t.(zaptest.TestingT); ok {
		return zaptest.NewLogger(tt, zaptest.Level(zap.InfoLevel))
	}
	return zap.NewNop()
}

// Fixtures returns a fixture store over the configured roots.
func (tc *TestCase) Fixtures() *fixtures.Store {
	return fixtures.NewStore(tc.fs, tc.roots...)
}

// WithLogging turns Info output on or off.
func (tc *TestCase) WithLogging(enabled bool) *TestCase {
	tc.logging = enabled
	return tc
}

// Info logs a step description when logging is enabled.
func (tc *TestCase) Info(msg string, fields ...zap.Field) {
	if tc.logging {
		tc.logger.Info(msg, fields...)
	}
}

// Logger returns the test case's logger.
func (tc *TestCase) Logger() *zap.Logger {
	return tc.logger
}

// Waiter returns the polling engine.
func (tc *TestCase) Waiter() *Waiter {
	return tc.waiter
}

// Trips returns every failure recorded so far.
func (tc *TestCase) Trips() *trip.Handler {
	return tc.trips
}

// Failed reports whether any failure has been recorded.
func (tc *TestCase) Failed() bool {
	return tc.trips.HasTrips()
}

// Halted reports whether the failure policy says to stop issuing steps.
func (tc *TestCase) Halted() bool {
	return !tc.trips.ShouldContinue()
}

// WaitUntil polls cond until it holds. It returns nil or a *TimeoutError and
// never fails the test itself.
func (tc *TestCase) WaitUntil(description string, cond Condition, opts ...Option) error {
	o := newStepOptions(opts)
	return tc.waiter.Until(description, o.timeoutOr(tc.waitConfig.Timeout), cond).Err()
}

// WaitUntilOrAssert polls cond until it holds and records a failure at the
// call site when it never does.
func (tc *TestCase) WaitUntilOrAssert(description string, cond Condition, opts ...Option) bool {
	tc.t.Helper()
	o := newStepOptions(opts)
	return tc.waitOrRecord(description, cond, o, o.location(), trip.Error)
}

func (tc *TestCase) waitOrRecord(description string, cond Condition, o stepOptions, loc trip.Location, severity trip.Severity) bool {
	tc.t.Helper()
	outcome := tc.waiter.Until(description, o.timeoutOr(tc.waitConfig.Timeout), cond)
	if outcome.Satisfied() {
		return true
	}
	if o.onFailure != nil {
		o.onFailure()
	}
	tc.recordTrip(trip.NewTrip(trip.KindTimeout, outcome.Err().Error(), trip.Context{
		"description": description,
		"reason":      outcome.Reason,
		"elapsed":     outcome.Elapsed.Round(time.Millisecond).String(),
	}).WithAttempt(outcome.Attempts).WithSeverity(severity).At(loc))
	return false
}

// AssertTrue fails the test with message unless value is true.
func (tc *TestCase) AssertTrue(value bool, message string, opts ...Option) bool {
	tc.t.Helper()
	if value {
		return true
	}
	tc.fail(trip.KindAssertion, message, newStepOptions(opts).location())
	return false
}

// AssertFalse fails the test with message unless value is false.
func (tc *TestCase) AssertFalse(value bool, message string, opts ...Option) bool {
	tc.t.Helper()
	if !value {
		return true
	}
	tc.fail(trip.KindAssertion, message, newStepOptions(opts).location())
	return false
}

// AssertNotNil fails the test with message when value is nil, including typed nils.
func (tc *TestCase) AssertNotNil(value any, message string, opts ...Option) bool {
	tc.t.Helper()
	if !isNil(value) {
		return true
	}
	tc.fail(trip.KindAssertion, message, newStepOptions(opts).location())
	return false
}

// AssertStringContains fails the test unless s contains substring.
func (tc *TestCase) AssertStringContains(s, substring string, opts ...Option) bool {
	tc.t.Helper()
	if strings.Contains(s, substring) {
		return true
	}
	tc.fail(trip.KindAssertion, fmt.Sprintf("%q does not contain %q", s, substring), newStepOptions(opts).location())
	return false
}

// FailTest records an unconditional failure.
func (tc *TestCase) FailTest(reason string, opts ...Option) {
	tc.t.Helper()
	tc.fail(trip.KindAssertion, reason, newStepOptions(opts).location())
}

func (tc *TestCase) fail(kind, message string, loc trip.Location) {
	tc.t.Helper()
	tc.recordTrip(trip.NewTrip(kind, message, nil).At(loc))
}

// recordTrip reports a trip to the test framework according to its severity.
func (tc *TestCase) recordTrip(tr *trip.Trip) {
	tc.t.Helper()
	tc.trips.Record(tr)

	if tr.CanRecover() {
		tc.t.Logf("%s", tr.Report())
		return
	}
	tc.t.Errorf("%s", tr.Report())
	tc.logger.Debug("Step failed",
		zap.String("kind", tr.Type),
		zap.Stringer("severity", tr.Severity),
		zap.Stringer("at", tr.Location))

	if tr.IsFall() && tc.Halted() {
		tc.t.FailNow()
	}
}

// UseApp returns the typed tunnel for app and registers the usual teardown:
// idle checks are re-enabled and the fixed date is reset.
func (tc *TestCase) UseApp(app Application) *Tunnel {
	tunnel := NewTunnel(app)
	tc.t.Cleanup(func() {
		app.SetWaitForIdleBeforeQuery(true)
		if err := tunnel.ResetFixedDate(); err != nil {
			tc.logger.Warn("Failed to reset fixed date", zap.Error(err))
		}
	})
	return tunnel
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}

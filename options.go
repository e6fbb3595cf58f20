package pagecam

import (
	"time"

	"github.com/teranos/pagecam/trip"
)

// Option adjusts a single test step. Steps ignore options that don't apply to them.
type Option func(*stepOptions)

type stepOptions struct {
	at         trip.Location
	timeout    time.Duration
	hasTimeout bool
	onFailure  func()

	onScreen   bool
	partial    bool
	count      int
	noIdleWait bool
	clearFirst bool

	alertBody *string
	iconAlert bool

	auditPath      *string
	auditDetail    map[string]string
	firebaseParams map[string]string
	eventValue     *float64
}

func newStepOptions(opts []Option) stepOptions {
	var o stepOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o stepOptions) timeoutOr(fallback time.Duration) time.Duration {
	if o.hasTimeout {
		return o.timeout
	}
	return fallback
}

// location returns the explicit call site or walks the stack for one.
func (o stepOptions) location() trip.Location {
	if !o.at.IsZero() {
		return o.at
	}
	return callSite()
}

// At attributes failures of the step to file:line instead of the detected call site.
func At(file string, line int) Option {
	return func(o *stepOptions) { o.at = trip.Location{File: file, Line: line} }
}

// Timeout overrides the default wait deadline.
func Timeout(d time.Duration) Option {
	return func(o *stepOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// OnFailure runs fn before a timed out wait is recorded, e.g. to attach diagnostics.
func OnFailure(fn func()) Option {
	return func(o *stepOptions) { o.onFailure = fn }
}

// OnScreen requires matched elements to be hittable as well as visible.
func OnScreen() Option {
	return func(o *stepOptions) { o.onScreen = true }
}

// Partial matches labels by case and diacritic insensitive containment.
func Partial() Option {
	return func(o *stepOptions) { o.partial = true }
}

// Count requires exactly n visible matches.
func Count(n int) Option {
	return func(o *stepOptions) { o.count = n }
}

// WithoutIdleWait performs an action with idle checks suppressed.
func WithoutIdleWait() Option {
	return func(o *stepOptions) { o.noIdleWait = true }
}

// ClearFirst clears an input before typing into it.
func ClearFirst() Option {
	return func(o *stepOptions) { o.clearFirst = true }
}

// AlertBody additionally requires a static text with this label inside the alert.
func AlertBody(body string) Option {
	return func(o *stepOptions) { o.alertBody = &body }
}

// IconAlert matches alert titles that are preceded by blank lines for an icon.
func IconAlert() Option {
	return func(o *stepOptions) { o.iconAlert = true }
}

// AuditPath requires the audit event path.
func AuditPath(path string) Option {
	return func(o *stepOptions) { o.auditPath = &path }
}

// AuditDetail requires the audit event detail to equal detail.
func AuditDetail(detail map[string]string) Option {
	return func(o *stepOptions) { o.auditDetail = detail }
}

// FirebaseParams requires the firebase event parameters to equal params.
func FirebaseParams(params map[string]string) Option {
	return func(o *stepOptions) { o.firebaseParams = params }
}

// EventValue requires the analytics event value.
func EventValue(v float64) Option {
	return func(o *stepOptions) { o.eventValue = &v }
}

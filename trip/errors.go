// Package trip provides failure handling for pagecam test steps.
//
// The trip package uses stumbling metaphors for test failures - when a page
// operation does not hold, the test "trips up" or "stumbles". Trips are plain
// values; only the test-case surface turns them into testing.T failures.
package trip

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Failure kinds.
const (
	// KindTimeout: a condition never became true within its deadline.
	KindTimeout = "timeout"
	// KindNotFound: an element or fixture could not be located at all.
	KindNotFound = "not_found"
	// KindMalformed: external data was missing or of the wrong shape.
	KindMalformed = "malformed"
	// KindAssertion: an immediate check did not hold.
	KindAssertion = "assertion"
	// KindInteraction: a tap, type or command could not be delivered.
	KindInteraction = "interaction"
	// KindVisual: screen capture or comparison problems.
	KindVisual = "visual"
)

// Trip represents a failed test step with rich context.
//
// Example usage:
//
//	err := NewTrip(KindAssertion, "Button not displayed: Done",
//	    Context{"type": "button", "text": "Done"}).At(Location{File: "login_test.go", Line: 42})
//
//	if err.CanRecover() {
//	    // Continue testing despite this stumble
//	}
type Trip struct {
	Type      string    // Failure kind, one of the Kind constants
	Message   string    // Human-readable description
	Context   Context   // Additional debugging information
	Location  Location  // Call site the failure is attributed to
	Timestamp time.Time // When the failure occurred
	Attempt   int       // Poll attempts made before giving up
	Severity  Severity  // How serious this failure is
}

// Context provides structured debugging information for trips.
type Context map[string]interface{}

// Location is a source position in the test that issued a step.
type Location struct {
	File string
	Line int
}

// IsZero reports whether no location was captured.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(l.File), l.Line)
}

// Severity indicates how serious a trip is and how it should be handled.
type Severity int

const (
	// Stumble indicates a minor issue that doesn't affect test validity.
	// Examples: baseline screenshot differs, attachment could not be written
	Stumble Severity = iota

	// Error indicates a failed step. The test fails but keeps running.
	Error

	// Fall indicates the test cannot meaningfully continue.
	// Examples: a page never loaded
	Fall
)

func (s Severity) String() string {
	switch s {
	case Stumble:
		return "stumble"
	case Error:
		return "error"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// NewTrip creates a new trip with the current timestamp.
func NewTrip(kind, message string, context Context) *Trip {
	return &Trip{
		Type:      kind,
		Message:   message,
		Context:   context,
		Timestamp: time.Now(),
		Severity:  Error,
	}
}

// NewStumble creates a new trip with Stumble severity.
func NewStumble(kind, message string, context Context) *Trip {
	return NewTrip(kind, message, context).WithSeverity(Stumble)
}

// NewFall creates a new trip with Fall severity.
func NewFall(kind, message string, context Context) *Trip {
	return NewTrip(kind, message, context).WithSeverity(Fall)
}

// WithAttempt sets the number of attempts made.
func (t *Trip) WithAttempt(attemptNumber int) *Trip {
	t.Attempt = attemptNumber
	return t
}

// WithSeverity sets the severity level.
func (t *Trip) WithSeverity(severity Severity) *Trip {
	t.Severity = severity
	return t
}

// At attributes the trip to a call site.
func (t *Trip) At(loc Location) *Trip {
	t.Location = loc
	return t
}

// Error implements the error interface.
func (t *Trip) Error() string {
	return fmt.Sprintf("[%s:%s] %s", t.Type, t.Severity, t.Message)
}

// Report is the line handed to the test framework: the call site followed by the message.
func (t *Trip) Report() string {
	if t.Location.IsZero() {
		return t.Message
	}
	return fmt.Sprintf("%s: %s", t.Location, t.Message)
}

// CanRecover returns true if testing can continue despite this trip.
func (t *Trip) CanRecover() bool {
	return t.Severity == Stumble
}

// IsFall returns true if this trip should immediately stop testing.
func (t *Trip) IsFall() bool {
	return t.Severity == Fall
}

// GetContext returns a specific context value if it exists.
func (t *Trip) GetContext(key string) (interface{}, bool) {
	if t.Context == nil {
		return nil, false
	}
	val, exists := t.Context[key]
	return val, exists
}

// DetailedString returns a comprehensive description with context, keys sorted.
func (t *Trip) DetailedString() string {
	var details strings.Builder

	details.WriteString(fmt.Sprintf("[%s:%s] %s", t.Type, t.Severity, t.Message))
	details.WriteString(fmt.Sprintf("\n  Time: %s", t.Timestamp.Format("15:04:05.000")))
	if !t.Location.IsZero() {
		details.WriteString(fmt.Sprintf("\n  At: %s", t.Location))
	}

	if t.Attempt > 0 {
		details.WriteString(fmt.Sprintf("\n  Attempts: %d", t.Attempt))
	}

	if len(t.Context) > 0 {
		keys := make([]string, 0, len(t.Context))
		for key := range t.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		details.WriteString("\n  Context:")
		for _, key := range keys {
			details.WriteString(fmt.Sprintf("\n    %s: %v", key, t.Context[key]))
		}
	}

	return details.String()
}

// Handler collects the trips of one test case.
type Handler struct {
	component string
	trips     []*Trip
	stumbles  []*Trip
	policy    *Policy
}

// Policy defines how severities affect the rest of the test.
type Policy struct {
	// StopOnFall halts every later page operation once a fall is recorded.
	StopOnFall bool

	// MaxStumbles sets a limit on accumulated stumbles before the test stops.
	MaxStumbles int
}

// DefaultPolicy stops on the first fall and tolerates a handful of stumbles.
func DefaultPolicy() *Policy {
	return &Policy{
		StopOnFall:  true,
		MaxStumbles: 10,
	}
}

// NewHandler creates a new trip handler for a component, usually the test name.
func NewHandler(component string, policy *Policy) *Handler {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Handler{
		component: component,
		trips:     make([]*Trip, 0),
		stumbles:  make([]*Trip, 0),
		policy:    policy,
	}
}

// Record adds a trip to the handler's collection.
func (h *Handler) Record(trip *Trip) {
	if trip.Severity == Stumble {
		h.stumbles = append(h.stumbles, trip)
	} else {
		h.trips = append(h.trips, trip)
	}
}

// ShouldContinue determines if testing should continue based on recorded trips.
func (h *Handler) ShouldContinue() bool {
	if h.policy.StopOnFall {
		for _, trip := range h.trips {
			if trip.IsFall() {
				return false
			}
		}
	}

	if h.policy.MaxStumbles > 0 && len(h.stumbles) > h.policy.MaxStumbles {
		return false
	}

	return true
}

// HasTrips returns true if any failures (non-stumbles) have been recorded.
func (h *Handler) HasTrips() bool {
	return len(h.trips) > 0
}

// HasStumbles returns true if any stumbles have been recorded.
func (h *Handler) HasStumbles() bool {
	return len(h.stumbles) > 0
}

// GetTrips returns all recorded failures.
func (h *Handler) GetTrips() []*Trip {
	return h.trips
}

// GetStumbles returns all recorded stumbles.
func (h *Handler) GetStumbles() []*Trip {
	return h.stumbles
}

// CountByType tallies failures and stumbles by kind.
func (h *Handler) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, t := range h.trips {
		counts[t.Type]++
	}
	for _, t := range h.stumbles {
		counts[t.Type]++
	}
	return counts
}

// Summary provides a concise overview of all trips and stumbles.
func (h *Handler) Summary() string {
	if len(h.trips) == 0 && len(h.stumbles) == 0 {
		return fmt.Sprintf("[%s] No issues during testing", h.component)
	}

	return fmt.Sprintf("[%s] %d trips, %d stumbles",
		h.component, len(h.trips), len(h.stumbles))
}

// DetailedReport provides a comprehensive report of all issues.
func (h *Handler) DetailedReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("=== %s Report ===\n", h.component))
	report.WriteString(h.Summary() + "\n")

	if len(h.trips) > 0 {
		report.WriteString("\nTrips:\n")
		for i, trip := range h.trips {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, trip.DetailedString()))
		}
	}

	if len(h.stumbles) > 0 {
		report.WriteString("\nStumbles:\n")
		for i, stumble := range h.stumbles {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, stumble.DetailedString()))
		}
	}

	return report.String()
}

package pagecam

import (
	"errors"
	"fmt"
	"maps"

	"github.com/dlclark/regexp2"
)

// AnalyticsRecorder fetches every analytics event recorded this session, oldest first.
type AnalyticsRecorder interface {
	RecordedAnalyticsEvents() ([]AnalyticsEvent, error)
}

// AuditRecorder fetches every audit event recorded this session, oldest first.
type AuditRecorder interface {
	RecordedAuditEvents() ([]AuditEvent, error)
}

// FirebaseRecorder fetches firebase events and user properties.
type FirebaseRecorder interface {
	RecordedFirebaseEvents() ([]FirebaseEvent, error)
	FirebaseUserProperties() (map[string]string, error)
}

// AppStateReader exposes side effects the application reports about itself.
type AppStateReader interface {
	// LastOpenedURL returns ErrNoValue when no URL has been opened.
	LastOpenedURL() (string, error)
	RateRequested() (bool, error)
}

// LastEvent returns the most recent event accepted by pred.
func LastEvent[E any](events []E, pred func(E) bool) (E, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if pred(events[i]) {
			return events[i], true
		}
	}
	var zero E
	return zero, false
}

// FilterEvents returns every event accepted by pred, in recorded order.
func FilterEvents[E any](events []E, pred func(E) bool) []E {
	var out []E
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// LastEventMatches compares only the most recent event. Use it when order matters.
func LastEventMatches[E any](events []E, pred func(E) bool) bool {
	return len(events) > 0 && pred(events[len(events)-1])
}

// AnyEventMatches searches the whole history. Use it when only existence matters.
func AnyEventMatches[E any](events []E, pred func(E) bool) bool {
	_, ok := LastEvent(events, pred)
	return ok
}

// AnalyticsMatch is the tuple an analytics event is compared on.
// A nil Value requires the event to carry no value.
type AnalyticsMatch struct {
	Category string
	Action   string
	Label    string
	Value    *float64
}

func (m AnalyticsMatch) String() string {
	return fmt.Sprintf("%s/%s/%s", m.Category, m.Action, m.Label)
}

// Matches reports whether e equals the tuple in every field.
func (m AnalyticsMatch) Matches(e AnalyticsEvent) bool {
	return stringIs(e.Category, m.Category) &&
		stringIs(e.Action, m.Action) &&
		stringIs(e.Label, m.Label) &&
		floatPtrEqual(e.Value, m.Value)
}

func stringIs(actual *string, want string) bool {
	return actual != nil && *actual == want
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// paramsEqual treats a nil map as distinct from an empty one.
func paramsEqual(a, b map[string]string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return maps.Equal(a, b)
}

// AnalyticsTracked is satisfied once any recorded event matches m.
func AnalyticsTracked(rec AnalyticsRecorder, m AnalyticsMatch) Condition {
	return func() error {
		events, err := rec.RecordedAnalyticsEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch GA events: %w", err)
		}
		if !AnyEventMatches(events, m.Matches) {
			return fmt.Errorf("Didn't track GA event: %s", m)
		}
		return nil
	}
}

// AnalyticsNotTracked is satisfied while no recorded event matches m in every field.
// An event that shares some fields with m but differs in one still counts as
// "not tracked". Earlier releases instead required every field to differ,
// which rejected unrelated events on the same screen.
func AnalyticsNotTracked(rec AnalyticsRecorder, m AnalyticsMatch) Condition {
	return func() error {
		events, err := rec.RecordedAnalyticsEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch GA events: %w", err)
		}
		if AnyEventMatches(events, m.Matches) {
			return fmt.Errorf("Found GA event: %s", m)
		}
		return nil
	}
}

// ViewTracked is satisfied when the latest screen view is viewName.
func ViewTracked(rec AnalyticsRecorder, viewName string) Condition {
	return func() error {
		events, err := rec.RecordedAnalyticsEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch GA events: %w", err)
		}
		last, ok := LastEvent(events, func(e AnalyticsEvent) bool { return e.ViewName != nil })
		if !ok {
			return fmt.Errorf("view %s not tracked: no views recorded", viewName)
		}
		if *last.ViewName != viewName {
			return fmt.Errorf("view %s not tracked: last view was %s", viewName, *last.ViewName)
		}
		return nil
	}
}

// LastAuditEvent is satisfied when the most recent audit event has eventType
// and, when given, the path and detail.
func LastAuditEvent(rec AuditRecorder, eventType string, path *string, detail map[string]string) Condition {
	return func() error {
		events, err := rec.RecordedAuditEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch audit events: %w", err)
		}
		if len(events) == 0 {
			return fmt.Errorf("No last audit event found. Was expecting type '%s' with path: %s", eventType, pathOrNA(path))
		}
		last := events[len(events)-1]
		if last.EventType != eventType {
			return fmt.Errorf("Last audit event type %s does not match %s", last.EventType, eventType)
		}
		pathMatches := path == nil || stringPtrEqual(last.Path, path)
		detailMatches := detail == nil || paramsEqual(last.Detail, detail)
		switch {
		case pathMatches && detailMatches:
			return nil
		case path != nil && detail != nil:
			return fmt.Errorf("Last audit event path and detail do not match %s & %s", *path, formatParams(detail))
		case !pathMatches:
			return fmt.Errorf("Last audit event path does not match %s", *path)
		default:
			return fmt.Errorf("Last audit event detail does not match %s", formatParams(detail))
		}
	}
}

// AuditEventsContain is satisfied once any audit event has eventType and,
// when given, the path and detail.
func AuditEventsContain(rec AuditRecorder, eventType string, path *string, detail map[string]string) Condition {
	return func() error {
		events, err := rec.RecordedAuditEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch audit events: %w", err)
		}
		found := AnyEventMatches(events, func(e AuditEvent) bool {
			return e.EventType == eventType &&
				(path == nil || stringPtrEqual(e.Path, path)) &&
				(detail == nil || paramsEqual(e.Detail, detail))
		})
		if !found {
			return fmt.Errorf("No matching events found. Was expecting type '%s' with path: %s", eventType, pathOrNA(path))
		}
		return nil
	}
}

// ErrorAudited is satisfied when the last audit event is an error of
// eventType carrying errorCode and an error body.
func ErrorAudited(rec AuditRecorder, eventType, errorCode string) Condition {
	return func() error {
		events, err := rec.RecordedAuditEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch audit events: %w", err)
		}
		if len(events) == 0 {
			return fmt.Errorf("No last audit event found. Was expecting error '%s' with code %s", eventType, errorCode)
		}
		last := events[len(events)-1]
		if last.EventType != eventType {
			return fmt.Errorf("Last audit event type %s does not match %s", last.EventType, eventType)
		}
		if code := last.Detail["errorCode"]; code != errorCode {
			return fmt.Errorf("Last audit event errorCode %q does not match %q", code, errorCode)
		}
		if _, ok := last.Detail["errorBody"]; !ok {
			return fmt.Errorf("Last audit event has no errorBody")
		}
		return nil
	}
}

func pathOrNA(path *string) string {
	if path == nil {
		return "N/A"
	}
	return *path
}

var screenEventParams = map[string]string{"event_type": "screen"}

// FirebaseScreenLogged is satisfied when the latest firebase screen event is viewName.
func FirebaseScreenLogged(rec FirebaseRecorder, viewName string) Condition {
	return func() error {
		events, err := rec.RecordedFirebaseEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch firebase events: %w", err)
		}
		last, ok := LastEvent(events, func(e FirebaseEvent) bool { return paramsEqual(e.Parameters, screenEventParams) })
		if !ok {
			return fmt.Errorf("No last screen event found. Was expecting event for '%s'", viewName)
		}
		if last.Event != viewName {
			return fmt.Errorf("Last screen event '%s' does not match expected '%s'", last.Event, viewName)
		}
		return nil
	}
}

// LastFirebaseEvent is satisfied when the most recent firebase event is
// event with exactly params. A nil params requires the event to have none.
func LastFirebaseEvent(rec FirebaseRecorder, event string, params map[string]string) Condition {
	return func() error {
		events, err := rec.RecordedFirebaseEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch firebase events: %w", err)
		}
		if len(events) == 0 {
			return fmt.Errorf("No last firebase event found. Was expecting '%s'", event)
		}
		last := events[len(events)-1]
		if last.Event != event {
			return fmt.Errorf("Last firebase event '%s' does not match expected '%s'", last.Event, event)
		}
		if !paramsEqual(last.Parameters, params) {
			return fmt.Errorf("Last firebase event parameters %s do not match expected %s",
				formatParams(last.Parameters), formatParams(params))
		}
		return nil
	}
}

// FirebaseEventsContain is satisfied once any firebase event is event with exactly params.
func FirebaseEventsContain(rec FirebaseRecorder, event string, params map[string]string) Condition {
	return func() error {
		events, err := rec.RecordedFirebaseEvents()
		if err != nil {
			return fmt.Errorf("Unable to fetch firebase events: %w", err)
		}
		found := AnyEventMatches(events, func(e FirebaseEvent) bool {
			return e.Event == event && paramsEqual(e.Parameters, params)
		})
		if !found {
			return fmt.Errorf("No matching events found. Was expecting event '%s' with parameters: %s", event, formatParams(params))
		}
		return nil
	}
}

// FirebaseUserProperty is satisfied when user property name equals value.
func FirebaseUserProperty(rec FirebaseRecorder, name, value string) Condition {
	return func() error {
		props, err := rec.FirebaseUserProperties()
		if err != nil {
			return fmt.Errorf("Unable to fetch firebase user properties: %w", err)
		}
		actual, ok := props[name]
		if !ok {
			return fmt.Errorf("Firebase user property %s not logged", name)
		}
		if actual != value {
			return fmt.Errorf("Firebase user property %s is %q, expected %q", name, actual, value)
		}
		return nil
	}
}

// URLOpened is satisfied when the last opened URL equals absolute.
func URLOpened(reader AppStateReader, absolute string) Condition {
	return func() error {
		last, err := lastURL(reader)
		if err != nil {
			return err
		}
		if last != absolute {
			return fmt.Errorf("LastUrl: %q does not equal %q", last, absolute)
		}
		return nil
	}
}

// URLMatches is satisfied when the whole last opened URL matches pattern.
func URLMatches(reader AppStateReader, pattern string) Condition {
	re, compileErr := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	return func() error {
		if compileErr != nil {
			return fmt.Errorf("Invalid URL pattern %q: %w", pattern, compileErr)
		}
		last, err := lastURL(reader)
		if err != nil {
			return err
		}
		ok, err := re.MatchString(last)
		if err != nil {
			return fmt.Errorf("Matching %q: %w", last, err)
		}
		if !ok {
			return fmt.Errorf("LastUrl: %q does not match %q", last, pattern)
		}
		return nil
	}
}

func lastURL(reader AppStateReader) (string, error) {
	last, err := reader.LastOpenedURL()
	if errors.Is(err, ErrNoValue) {
		return "", fmt.Errorf("Unable to obtain last opened URL")
	}
	if err != nil {
		return "", fmt.Errorf("Unable to obtain last opened URL: %w", err)
	}
	return last, nil
}

// RatingRequested is satisfied when the rating prompt state equals want.
func RatingRequested(reader AppStateReader, want bool) Condition {
	return func() error {
		called, err := reader.RateRequested()
		if err != nil {
			return fmt.Errorf("Unable to obtain rating state: %w", err)
		}
		if called != want {
			return fmt.Errorf("Expected rateCalled to be %t", want)
		}
		return nil
	}
}

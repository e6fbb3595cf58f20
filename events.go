package pagecam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AnalyticsEvent is one hit recorded by the analytics service double.
// Missing keys are nil.
type AnalyticsEvent struct {
	ViewName                 *string  `mapstructure:"viewName"`
	Category                 *string  `mapstructure:"eventCategory"`
	Action                   *string  `mapstructure:"eventAction"`
	Label                    *string  `mapstructure:"eventLabel"`
	Value                    *float64 `mapstructure:"eventValue"`
	HTSAccountDimensionState *string  `mapstructure:"htsAccountDimensionState"`
	P800DimensionValue       *string  `mapstructure:"p800DimensionValue"`
}

// AuditEvent is one entry recorded by the audit service double.
type AuditEvent struct {
	EventType string            `mapstructure:"eventType"`
	Detail    map[string]string `mapstructure:"eventDetail"`
	Path      *string           `mapstructure:"eventPath"`
}

// FirebaseEvent is one entry recorded by the firebase service double.
type FirebaseEvent struct {
	Event      string            `mapstructure:"event"`
	Parameters map[string]string `mapstructure:"parameters"`
}

func (e AnalyticsEvent) String() string {
	return fmt.Sprintf("%s/%s/%s", deref(e.Category), deref(e.Action), deref(e.Label))
}

func (e AuditEvent) String() string {
	return fmt.Sprintf("%s %s %s", e.EventType, deref(e.Path), formatParams(e.Detail))
}

func (e FirebaseEvent) String() string {
	return fmt.Sprintf("%s %s", e.Event, formatParams(e.Parameters))
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// formatParams prints a map with sorted keys so messages are stable.
func formatParams(m map[string]string) string {
	if m == nil {
		return "<nil>"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %s", k, m[k]))
	}
	return "[" + strings.Join(pairs, ", ") + "]"
}

// DecodeAnalyticsEvents maps raw command results onto events. Entries that are
// not dictionaries become empty events and wrongly typed values stay nil.
func DecodeAnalyticsEvents(raw any) ([]AnalyticsEvent, error) {
	entries, err := recordList(raw)
	if err != nil {
		return nil, err
	}
	events := make([]AnalyticsEvent, len(entries))
	for i, entry := range entries {
		decodeLenient(entry, &events[i])
	}
	return events, nil
}

// DecodeAuditEvents maps raw command results onto audit events.
func DecodeAuditEvents(raw any) ([]AuditEvent, error) {
	entries, err := recordList(raw)
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, len(entries))
	for i, entry := range entries {
		decodeLenient(entry, &events[i])
		if detail := scalarMap(entry, "eventDetail"); detail != nil {
			events[i].Detail = detail
		}
	}
	return events, nil
}

// DecodeFirebaseEvents maps raw command results onto firebase events.
func DecodeFirebaseEvents(raw any) ([]FirebaseEvent, error) {
	entries, err := recordList(raw)
	if err != nil {
		return nil, err
	}
	events := make([]FirebaseEvent, len(entries))
	for i, entry := range entries {
		decodeLenient(entry, &events[i])
		if params := scalarMap(entry, "parameters"); params != nil {
			events[i].Parameters = params
		}
	}
	return events, nil
}

// DecodeUserProperties keeps the string-valued entries of a property dictionary.
func DecodeUserProperties(raw any) (map[string]string, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string)
	switch m := raw.(type) {
	case nil:
	case map[string]string:
		for k, v := range m {
			props[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				props[k] = s
			}
		}
	default:
		return nil, fmt.Errorf("user properties: unexpected %T", raw)
	}
	return props, nil
}

// recordList normalises the shapes a command channel may hand back into a
// list of entries. A nil result is an empty log.
func recordList(raw any) ([]any, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("recorded events: unexpected %T", raw)
	}
}

// unwrapJSON decodes []byte and string results, which is how JSON-speaking
// tunnels return structured values.
func unwrapJSON(raw any) (any, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return raw, nil
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding command result: %w", err)
	}
	return out, nil
}

// scalarMap weakly decodes the dictionary under key, so numbers and booleans
// in details and parameters keep their text ("503", "1") instead of being
// dropped. It returns nil when key does not hold a generic dictionary.
func scalarMap(entry any, key string) map[string]string {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil
	}
	inner, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(inner))
	// Values that have no text form, such as nested dictionaries, are skipped.
	_ = mapstructure.WeakDecode(inner, &out)
	return out
}

// decodeLenient fills out from entry. mapstructure keeps decoding after a
// field error, so valid fields survive a malformed sibling.
func decodeLenient(entry any, out any) {
	m, ok := entry.(map[string]any)
	if !ok {
		return
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return
	}
	_ = decoder.Decode(m)
}

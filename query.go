package pagecam

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchField selects the element attribute compared against ElementQuery.Text.
type MatchField int

const (
	// MatchLabelOrIdentifier compares the label, falling back to an exact identifier match.
	MatchLabelOrIdentifier MatchField = iota
	MatchLabel
	MatchIdentifier
	MatchValue
)

// ElementQuery describes what to look for in the UI tree.
type ElementQuery struct {
	Type ElementType
	// Text is compared against Field. An empty Text matches any element of Type.
	Text  string
	Field MatchField
	// Partial compares by case and diacritic insensitive containment.
	// Identifiers are always compared exactly.
	Partial bool
	// OnScreen additionally requires the element to be hittable.
	OnScreen bool
	// Where is an optional boolean expression over Type, Label, Identifier,
	// Value, Enabled, Hittable, Width and Height.
	Where string
}

// Query is shorthand for an exact label-or-identifier query.
func Query(kind ElementType, text string) ElementQuery {
	return ElementQuery{Type: kind, Text: text}
}

func (q ElementQuery) String() string {
	var b strings.Builder
	b.WriteString(q.Type.String())
	if q.Text != "" {
		fmt.Fprintf(&b, " '%s'", q.Text)
	}
	if q.Partial {
		b.WriteString(" (partial)")
	}
	if q.OnScreen {
		b.WriteString(" on screen")
	}
	if q.Where != "" {
		fmt.Fprintf(&b, " where %s", q.Where)
	}
	return b.String()
}

// matchesText applies the Text/Field/Partial rules.
func (q ElementQuery) matchesText(e Element) bool {
	if q.Text == "" {
		return true
	}
	switch q.Field {
	case MatchLabel:
		return q.compare(e.Label())
	case MatchIdentifier:
		return e.Identifier() == q.Text
	case MatchValue:
		return q.compare(e.Value())
	default:
		return q.compare(e.Label()) || e.Identifier() == q.Text
	}
}

func (q ElementQuery) compare(actual string) bool {
	if q.Partial {
		return strings.Contains(fold(actual), fold(q.Text))
	}
	return actual == q.Text
}

// fold removes case and diacritics so "Café" and "cafe" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// IsVisible reports whether e exists with a non-zero frame and, when
// onScreen is set, can be hit.
func IsVisible(e Element, onScreen bool) bool {
	if e == nil || !e.Exists() || e.Frame().Empty() {
		return false
	}
	return !onScreen || e.Hittable()
}

type elementEnv struct {
	Type       string
	Label      string
	Identifier string
	Value      string
	Enabled    bool
	Hittable   bool
	Width      float64
	Height     float64
}

func envFor(e Element) elementEnv {
	frame := e.Frame()
	return elementEnv{
		Type:       e.Type().String(),
		Label:      e.Label(),
		Identifier: e.Identifier(),
		Value:      e.Value(),
		Enabled:    e.Enabled(),
		Hittable:   e.Hittable(),
		Width:      frame.Width,
		Height:     frame.Height,
	}
}

var whereCache sync.Map // expression -> *vm.Program

func compileWhere(expression string) (*vm.Program, error) {
	if cached, ok := whereCache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(elementEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid element expression %q: %w", expression, err)
	}
	whereCache.Store(expression, program)
	return program, nil
}

// predicate compiles the query into a tree predicate. Visibility is not part of it.
func (q ElementQuery) predicate() (Predicate, error) {
	var program *vm.Program
	if q.Where != "" {
		p, err := compileWhere(q.Where)
		if err != nil {
			return nil, err
		}
		program = p
	}

	return func(e Element) bool {
		if !q.matchesText(e) {
			return false
		}
		if program == nil {
			return true
		}
		out, err := expr.Run(program, envFor(e))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}, nil
}

package pagecam

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/pagecam/trip"
)

// DefaultMaxScrolls bounds the scroll-to helpers.
const DefaultMaxScrolls = 5

const (
	clearButtonLabel        = "Clear"
	keyboardIntroIdentifier = "UIContinuousPathIntroductionView"
	backspace               = "\b"
)

// TapNavigationBackButton taps the first button of the first navigation bar.
func (p *Page) TapNavigationBackButton(opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	bar, ok := p.firstExisting(ElementQuery{Type: NavigationBar})
	if ok {
		for _, b := range bar.Descendants(Button) {
			if b.Exists() {
				p.tap(b, "navigation back button", o, loc)
				return p
			}
		}
	}
	p.fail(trip.KindNotFound, "Could not find navigation back button", loc)
	return p
}

// ScrollDown swipes up once, revealing content below.
func (p *Page) ScrollDown(opts ...Option) *Page {
	p.tc.t.Helper()
	return p.swipe(SwipeUp, opts)
}

// ScrollUp swipes down once, revealing content above.
func (p *Page) ScrollUp(opts ...Option) *Page {
	p.tc.t.Helper()
	return p.swipe(SwipeDown, opts)
}

func (p *Page) swipe(dir Direction, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	if err := p.app.Swipe(dir); err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to swipe: %v", err), o.location())
	}
	return p
}

// ScrollDownToButtonWithLabel scrolls until a button matching text is hittable.
func (p *Page) ScrollDownToButtonWithLabel(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	q := Query(Button, text)
	if _, ok := p.firstExisting(q); !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find button: %s", text), loc)
		return p
	}
	p.scrollDownTo(p.finder(q), DefaultMaxScrolls, loc)
	return p
}

// ScrollDownToTextViewWithIdentifier scrolls until the identified text view is hittable.
func (p *Page) ScrollDownToTextViewWithIdentifier(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	q := ElementQuery{Type: TextView, Text: identifier, Field: MatchIdentifier}
	if _, ok := p.firstExisting(q); !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find textView: %s", identifier), loc)
		return p
	}
	p.scrollDownTo(p.finder(q), DefaultMaxScrolls, loc)
	return p
}

// ScrollCollectionView scrolls until a cell identified by cellIdentifier
// inside the identified collection view is hittable. maxScrolls <= 0 uses
// DefaultMaxScrolls.
func (p *Page) ScrollCollectionView(identifier, cellIdentifier string, maxScrolls int, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	if maxScrolls <= 0 {
		maxScrolls = DefaultMaxScrolls
	}
	collection := ElementQuery{Type: CollectionView, Text: identifier, Field: MatchIdentifier}
	cell := ElementQuery{Type: Cell, Text: cellIdentifier, Field: MatchIdentifier}
	find := func() Element {
		view, ok := p.firstExisting(collection)
		if !ok {
			return nil
		}
		for _, c := range view.Descendants(Cell) {
			if c.Exists() && cell.matchesText(c) {
				return c
			}
		}
		return nil
	}
	p.scrollDownTo(find, maxScrolls, loc)
	return p
}

func (p *Page) finder(q ElementQuery) func() Element {
	return func() Element {
		e, _ := p.firstExisting(q)
		return e
	}
}

// scrollDownTo swipes up to maxScrolls times, stopping once find returns a
// hittable element. It doesn't fail when the element never becomes hittable;
// the step that uses the element reports that.
func (p *Page) scrollDownTo(find func() Element, maxScrolls int, loc trip.Location) {
	p.tc.t.Helper()
	for i := 0; i < maxScrolls; i++ {
		if e := find(); e != nil && e.Exists() && e.Hittable() {
			return
		}
		if err := p.app.Swipe(SwipeUp); err != nil {
			p.fail(trip.KindInteraction, fmt.Sprintf("Failed to swipe: %v", err), loc)
			return
		}
	}
}

// TypeIntoTextField types text into the text field matching identifier.
// ClearFirst empties it beforehand.
func (p *Page) TypeIntoTextField(identifier, text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.typeInto(TextField, identifier, text, opts)
}

// TypeIntoTextView types text into the text view matching identifier.
func (p *Page) TypeIntoTextView(identifier, text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.typeInto(TextView, identifier, text, opts)
}

func (p *Page) typeInto(kind ElementType, identifier, text string, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()

	q := Query(kind, identifier)
	input, ok := p.firstExisting(q)
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Could not find %s: %s", kind, identifier), loc)
		return p
	}
	hittable := func() error {
		if input.Hittable() {
			return nil
		}
		return fmt.Errorf("%s is not hittable", q)
	}
	if !p.waitFor("Input is hittable", hittable, o, loc) {
		return p
	}
	if !p.tap(input, q.String(), o, loc) {
		return p
	}
	if o.clearFirst && !p.clearInput(input, o, loc) {
		return p
	}
	if !p.dismissKeyboardIntroduction(o, loc) {
		return p
	}

	p.tc.Info("Type", zap.String("page", p.name), zap.Stringer("element", q))
	if err := input.TypeText(text); err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to type into %s: %v", q, err), loc)
	}
	return p
}

// clearInput taps the field's clear button when one is shown and otherwise
// deletes the current value character by character.
func (p *Page) clearInput(input Element, o stepOptions, loc trip.Location) bool {
	p.tc.t.Helper()
	clearQuery := ElementQuery{Type: Button, Text: clearButtonLabel, OnScreen: true}
	if button, ok := p.resolver.FindElement(clearQuery); ok {
		return p.tap(button, clearQuery.String(), o, loc)
	}
	current := input.Value()
	if current == "" {
		return true
	}
	if err := input.TypeText(strings.Repeat(backspace, len([]rune(current)))); err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to clear input: %v", err), loc)
		return false
	}
	return true
}

// dismissKeyboardIntroduction closes the swipe-typing introduction the
// keyboard shows on first use, which otherwise swallows typed text.
func (p *Page) dismissKeyboardIntroduction(o stepOptions, loc trip.Location) bool {
	p.tc.t.Helper()
	q := ElementQuery{Type: Other, Text: keyboardIntroIdentifier, Field: MatchIdentifier}
	overlay, ok := p.resolver.FindElement(q)
	if !ok {
		return true
	}
	for _, b := range overlay.Descendants(Button) {
		if b.Exists() {
			if !p.tap(b, "keyboard introduction button", o, loc) {
				return false
			}
			break
		}
	}
	gone := func() error {
		if _, ok := p.firstExisting(q); ok {
			return fmt.Errorf("Overlay has not been cleared")
		}
		return nil
	}
	return p.waitFor("Keyboard introduction dismissed", gone, o, loc)
}

package pagecam

import (
	"fmt"

	"github.com/teranos/pagecam/trip"
)

// ConfirmButtonIsDisplayed checks a visible button matches text.
func (p *Page) ConfirmButtonIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmDisplayed(Button, "button", text, opts)
}

// ConfirmRowIsDisplayed checks a table row, which the tree exposes as a button.
func (p *Page) ConfirmRowIsDisplayed(label string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmDisplayed(Button, "row", label, opts)
}

// ConfirmRadioButtonIsDisplayed checks a visible radio button matches text.
func (p *Page) ConfirmRadioButtonIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmDisplayed(Button, "radio button", text, opts)
}

// ConfirmImageIsDisplayed checks a visible image matches text.
func (p *Page) ConfirmImageIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmDisplayed(Image, "image", text, opts)
}

func (p *Page) confirmDisplayed(kind ElementType, noun, text string, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	q := ElementQuery{Type: kind, Text: text, Partial: o.partial, OnScreen: o.onScreen}
	if !p.resolver.FindElements(q, o.count) {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find %s: %s", noun, text), o.location())
	}
	return p
}

// ConfirmButtonIsNotDisplayed checks no visible button matches text.
func (p *Page) ConfirmButtonIsNotDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	_, found := p.resolver.FindElement(ElementQuery{Type: Button, Text: text, Partial: o.partial, OnScreen: o.onScreen})
	p.check(!found, o.location(), "Unexpectedly found button: %s", text)
	return p
}

// ConfirmButtonIsEnabled checks a visible button matches text and is enabled.
func (p *Page) ConfirmButtonIsEnabled(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmButtonEnabled(text, true, opts)
}

// ConfirmButtonIsDisabled checks a visible button matches text and is disabled.
func (p *Page) ConfirmButtonIsDisabled(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.confirmButtonEnabled(text, false, opts)
}

func (p *Page) confirmButtonEnabled(text string, enabled bool, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	e, ok := p.resolver.FindElement(ElementQuery{Type: Button, Text: text, OnScreen: o.onScreen})
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find button: %s", text), loc)
		return p
	}
	if enabled {
		p.check(e.Enabled(), loc, "Button wasn't enabled: %s", text)
	} else {
		p.check(!e.Enabled(), loc, "Button was enabled: %s", text)
	}
	return p
}

// TapButtonWithLabel taps a visible, enabled button.
func (p *Page) TapButtonWithLabel(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapWithLabel(Button, "Button", text, opts)
}

// TapCellWithLabel taps a visible, enabled cell.
func (p *Page) TapCellWithLabel(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapWithLabel(Cell, "Cell", text, opts)
}

// TapRadioButtonWithLabel taps a visible, enabled radio button.
func (p *Page) TapRadioButtonWithLabel(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapWithLabel(Button, "Radio button", text, opts)
}

// TapViewWithIdentifier taps a visible, enabled container view.
func (p *Page) TapViewWithIdentifier(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapWithLabel(Other, "View", identifier, opts)
}

func (p *Page) tapWithLabel(kind ElementType, noun, text string, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	q := ElementQuery{Type: kind, Text: text, Partial: o.partial, OnScreen: o.onScreen}
	p.tapMatching(q, o, o.location(), fmt.Sprintf("%s: %s is not displayed or not enabled", noun, text))
	return p
}

// TapButtonWithID taps the first existing button with this accessibility identifier.
func (p *Page) TapButtonWithID(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	q := ElementQuery{Type: Button, Text: identifier, Field: MatchIdentifier}
	e, ok := p.firstExisting(q)
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Button with ID: %s doesn't exist", identifier), loc)
		return p
	}
	p.tap(e, q.String(), o, loc)
	return p
}

// TapLinkWithLabel taps the first visible link whose label is exactly text.
func (p *Page) TapLinkWithLabel(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	q := ElementQuery{Type: Link, Text: text, Field: MatchLabel, OnScreen: o.onScreen}
	e, ok := p.resolver.FindElement(q)
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find link: %s", text), loc)
		return p
	}
	if !p.check(e.Enabled(), loc, "Link: %s is not enabled", text) {
		return p
	}
	p.tap(e, q.String(), o, loc)
	return p
}

// ConfirmViewIsDisplayed checks a visible, hittable container view.
func (p *Page) ConfirmViewIsDisplayed(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.ConfirmElementIsDisplayed(identifier, Other, opts...)
}

// ConfirmViewIsNotDisplayed checks no visible container view matches identifier.
func (p *Page) ConfirmViewIsNotDisplayed(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.ConfirmElementIsNotDisplayed(identifier, Other, opts...)
}

// ConfirmCellsAreDisplayed checks the tree holds exactly count cells, on screen or not.
func (p *Page) ConfirmCellsAreDisplayed(count int, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	cells, err := p.resolver.Candidates(ElementQuery{Type: Cell})
	if err != nil {
		p.fail(trip.KindMalformed, err.Error(), loc)
		return p
	}
	p.check(len(cells) == count, loc, "Found %d cells, expected %d", len(cells), count)
	return p
}

// ConfirmCellContainsText checks the cell at index holds a static text matching text.
func (p *Page) ConfirmCellContainsText(index int, text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	cells, err := p.resolver.Candidates(ElementQuery{Type: Cell})
	if err != nil {
		p.fail(trip.KindMalformed, err.Error(), loc)
		return p
	}
	if index < 0 || index >= len(cells) {
		p.fail(trip.KindNotFound, fmt.Sprintf("No cell at index: %d", index), loc)
		return p
	}
	p.check(anyMatches(cells[index].Descendants(StaticText), Query(StaticText, text)), loc,
		"Failed to find text: %s in cell: %d", text, index)
	return p
}

// ConfirmCellIsNotDisplayed checks no cell matching identifier exists.
func (p *Page) ConfirmCellIsNotDisplayed(identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	_, found := p.firstExisting(Query(Cell, identifier))
	p.check(!found, loc, "Unexpectedly found cell: %s", identifier)
	return p
}

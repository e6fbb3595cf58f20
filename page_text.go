package pagecam

import (
	"fmt"

	"github.com/teranos/pagecam/trip"
)

// bulletPrefix is how the application renders list bullets in accessibility labels.
const bulletPrefix = "•; "

// ConfirmTextIsDisplayed checks static text by label or a text view by value.
// Count, Partial and OnScreen refine the match.
func (p *Page) ConfirmTextIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	if p.resolver.TextDisplayed(text, o.count, o.partial, o.onScreen) {
		return p
	}
	if o.count > 0 {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find text: %s %d times", text, o.count), loc)
	} else {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find text: %s", text), loc)
	}
	return p
}

// ConfirmTextIsNotDisplayed checks no visible static text or text view shows text.
func (p *Page) ConfirmTextIsNotDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	p.check(!p.resolver.TextDisplayed(text, AnyCount, o.partial, o.onScreen), o.location(),
		"Unexpectedly found text: %s", text)
	return p
}

// ConfirmBulletIsDisplayed checks a bulleted list item.
func (p *Page) ConfirmBulletIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.ConfirmTextIsDisplayed(bulletPrefix+text, opts...)
}

// ConfirmTextIsDisplayedIn checks the label of the static text identified by identifier.
func (p *Page) ConfirmTextIsDisplayedIn(text, identifier string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	e, ok := p.firstExisting(ElementQuery{Type: StaticText, Text: identifier, Field: MatchIdentifier})
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find static text: %s", identifier), loc)
		return p
	}
	p.check(e.Label() == text, loc, "Text in %s is %q, expected %q", identifier, e.Label(), text)
	return p
}

// ConfirmLabelAndValueAreDisplayed finds the container holding a label and
// checks it also holds value.
func (p *Page) ConfirmLabelAndValueAreDisplayed(label, value string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()

	containers, err := p.resolver.Candidates(ElementQuery{Type: Other})
	if err != nil {
		p.fail(trip.KindMalformed, err.Error(), loc)
		return p
	}
	labelQuery := ElementQuery{Type: StaticText, Text: label}
	for _, container := range containers {
		texts := container.Descendants(StaticText)
		if !anyMatches(texts, labelQuery) {
			continue
		}
		p.check(anyMatches(texts, ElementQuery{Type: StaticText, Text: value, Field: MatchLabel}), loc,
			"Didn't find associated value: %s for label: %s", value, label)
		return p
	}
	p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find parent of label: %s", label), loc)
	return p
}

// ConfirmTextViewIsPopulated checks the value of a visible text view.
func (p *Page) ConfirmTextViewIsPopulated(identifier, text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	e, ok := p.resolver.FindElement(ElementQuery{Type: TextView, Text: identifier, OnScreen: o.onScreen})
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Didn't find textView: %s", identifier), loc)
		return p
	}
	p.check(e.Value() == text, loc, "textView: %s not populated with %q (was %q)", identifier, text, e.Value())
	return p
}

// ConfirmNavigationBarTextMatches checks a navigation bar with this title exists.
func (p *Page) ConfirmNavigationBarTextMatches(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	_, ok := p.firstExisting(Query(NavigationBar, text))
	p.check(ok, loc, "Navigation bar doesn't match %s", text)
	return p
}

// ConfirmWebViewTextIsDisplayed waits for on-screen static text inside the first web view.
func (p *Page) ConfirmWebViewTextIsDisplayed(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	q := ElementQuery{Type: StaticText, Text: text, Field: MatchLabel, OnScreen: true}
	cond := func() error {
		webView, ok := p.firstExisting(ElementQuery{Type: WebView})
		if !ok {
			return fmt.Errorf("Didn't find a web view")
		}
		for _, e := range webView.Descendants(StaticText) {
			if q.matchesText(e) && IsVisible(e, true) {
				return nil
			}
		}
		return fmt.Errorf("Web view with text: '%s' not found", text)
	}
	p.waitFor("Web view text exists", cond, o, o.location())
	return p
}

// anyMatches reports whether an existing element in elements matches q's text.
func anyMatches(elements []Element, q ElementQuery) bool {
	for _, e := range elements {
		if e.Exists() && q.matchesText(e) {
			return true
		}
	}
	return false
}

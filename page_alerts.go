package pagecam

import (
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/teranos/pagecam/trip"
)

const (
	shareSheetIdentifier     = "ActivityListView"
	popoverDismissIdentifier = "PopoverDismissRegion"
	closeButtonLabel         = "Close"
)

// ConfirmSheetIsDisplayed waits for an action sheet titled title.
func (p *Page) ConfirmSheetIsDisplayed(title string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	q := ElementQuery{Type: Sheet, Text: title, Field: MatchLabel}
	cond := func() error {
		if _, ok := p.firstExisting(q); !ok {
			return fmt.Errorf("Did not find sheet with title: %s", title)
		}
		return nil
	}
	p.waitFor("Sheet exists", cond, o, o.location())
	return p
}

// ConfirmShareSheetIsDisplayed waits for the system share sheet.
func (p *Page) ConfirmShareSheetIsDisplayed(opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	q := ElementQuery{Type: Other, Text: shareSheetIdentifier, Field: MatchIdentifier}
	cond := func() error {
		if _, ok := p.firstExisting(q); !ok {
			return fmt.Errorf("Did not find share sheet")
		}
		return nil
	}
	p.waitFor("Share sheet exists", cond, o, o.location())
	return p
}

// CloseShareSheet taps the share sheet's Close button or, on layouts without
// one, the popover dismiss region.
func (p *Page) CloseShareSheet(opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()

	closeQuery := ElementQuery{Type: Button, Text: closeButtonLabel, OnScreen: true}
	if e, ok := p.resolver.FindElement(closeQuery); ok && e.Enabled() {
		p.tap(e, closeQuery.String(), o, loc)
		return p
	}
	dismissQuery := ElementQuery{Type: Other, Text: popoverDismissIdentifier, Field: MatchIdentifier}
	if e, ok := p.resolver.FindElement(dismissQuery); ok {
		p.tap(e, dismissQuery.String(), o, loc)
		return p
	}
	p.fail(trip.KindNotFound, "Cannot close share sheet", loc)
	return p
}

// ConfirmAlertIsDisplayed waits for an alert titled title. AlertBody also
// waits for the body text; IconAlert tolerates leading blank lines in the
// title, which is how alerts with an icon lay out their label.
func (p *Page) ConfirmAlertIsDisplayed(title string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()

	matchTitle, err := alertTitleMatcher(title, o.iconAlert)
	if err != nil {
		p.fail(trip.KindMalformed, err.Error(), loc)
		return p
	}

	var alert Element
	cond := func() error {
		alerts, err := p.resolver.Candidates(ElementQuery{Type: Alert})
		if err != nil {
			return err
		}
		for _, a := range alerts {
			if a.Exists() && matchTitle(a.Label()) {
				alert = a
				return nil
			}
		}
		return fmt.Errorf("Did not find alert with title: %s", title)
	}
	if !p.waitFor("Alert exists", cond, o, loc) || o.alertBody == nil {
		return p
	}

	body := *o.alertBody
	bodyQuery := ElementQuery{Type: StaticText, Text: body, Field: MatchLabel}
	bodyCond := func() error {
		if anyMatches(alert.Descendants(StaticText), bodyQuery) {
			return nil
		}
		return fmt.Errorf("Did not find alert with body: %s", body)
	}
	p.waitFor("Alert body exists", bodyCond, o, loc)
	return p
}

func alertTitleMatcher(title string, icon bool) (func(string) bool, error) {
	if !icon {
		return func(label string) bool { return label == title }, nil
	}
	re, err := regexp2.Compile(`\A\n*`+regexp2.Escape(title)+`\z`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("alert title %q: %w", title, err)
	}
	return func(label string) bool {
		ok, err := re.MatchString(label)
		return err == nil && ok
	}, nil
}

// ConfirmAlertIsNotDisplayed checks no visible alert carries title.
func (p *Page) ConfirmAlertIsNotDisplayed(title string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	_, found := p.resolver.FindElement(Query(Alert, title))
	p.check(!found, loc, "Unexpectedly found alert with title: %s", title)
	return p
}

// TapAlertButton taps a button inside any alert.
func (p *Page) TapAlertButton(title string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapButtonInside(Alert, title, "Did not find alert button with title: %s", opts)
}

// TapAlertActionButton taps a button inside any action sheet.
func (p *Page) TapAlertActionButton(title string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.tapButtonInside(Sheet, title, "Did not find alert action button with title: %s", opts)
}

func (p *Page) tapButtonInside(container ElementType, title, notFound string, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()

	containers, err := p.resolver.Candidates(ElementQuery{Type: container})
	if err != nil {
		p.fail(trip.KindMalformed, err.Error(), loc)
		return p
	}
	q := Query(Button, title)
	for _, c := range containers {
		for _, b := range c.Descendants(Button) {
			if b.Exists() && q.matchesText(b) {
				p.tap(b, fmt.Sprintf("%s in %s", q, container), o, loc)
				return p
			}
		}
	}
	p.fail(trip.KindNotFound, fmt.Sprintf(notFound, title), loc)
	return p
}

package pagecam

import (
	"fmt"
	"strings"

	"github.com/teranos/pagecam/trip"
)

// ConfirmViewIsTracked waits until the latest analytics screen view is viewName.
func (p *Page) ConfirmViewIsTracked(viewName string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await(fmt.Sprintf("View %s is tracked", viewName), ViewTracked(p.recorders.Analytics, viewName), opts)
}

// ConfirmViewIsLoggedInFirebase waits until the latest firebase screen event is viewName.
func (p *Page) ConfirmViewIsLoggedInFirebase(viewName string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await(fmt.Sprintf("View %s is logged in firebase", viewName), FirebaseScreenLogged(p.recorders.Firebase, viewName), opts)
}

// ConfirmEventIsTracked waits until any analytics event has this category,
// action and label, and the EventValue if given.
func (p *Page) ConfirmEventIsTracked(category, action, label string, opts ...Option) *Page {
	p.tc.t.Helper()
	m := analyticsMatch(category, action, label, opts)
	return p.await("GA event is tracked", AnalyticsTracked(p.recorders.Analytics, m), opts)
}

// ConfirmEventIsNotTracked waits until no analytics event matches every field.
func (p *Page) ConfirmEventIsNotTracked(category, action, label string, opts ...Option) *Page {
	p.tc.t.Helper()
	m := analyticsMatch(category, action, label, opts)
	return p.await("GA event is not tracked", AnalyticsNotTracked(p.recorders.Analytics, m), opts)
}

func analyticsMatch(category, action, label string, opts []Option) AnalyticsMatch {
	return AnalyticsMatch{
		Category: category,
		Action:   action,
		Label:    label,
		Value:    newStepOptions(opts).eventValue,
	}
}

// ConfirmEventIsAudited waits until the most recent audit event has
// eventType, plus the AuditPath and AuditDetail if given.
func (p *Page) ConfirmEventIsAudited(eventType string, opts ...Option) *Page {
	p.tc.t.Helper()
	o := newStepOptions(opts)
	return p.await("Event is audited", LastAuditEvent(p.recorders.Audit, eventType, o.auditPath, o.auditDetail), opts)
}

// ConfirmAuditedEventsContain waits until any audit event has eventType,
// plus the AuditPath and AuditDetail if given.
func (p *Page) ConfirmAuditedEventsContain(eventType string, opts ...Option) *Page {
	p.tc.t.Helper()
	o := newStepOptions(opts)
	return p.await("Audited events contain "+eventType, AuditEventsContain(p.recorders.Audit, eventType, o.auditPath, o.auditDetail), opts)
}

// ConfirmErrorIsAudited waits until the most recent audit event is an error
// of eventType with errorCode.
func (p *Page) ConfirmErrorIsAudited(eventType, errorCode string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("Error is audited", ErrorAudited(p.recorders.Audit, eventType, errorCode), opts)
}

// ConfirmFirebaseUserPropertyIsLogged waits until user property name equals value.
func (p *Page) ConfirmFirebaseUserPropertyIsLogged(name, value string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("Firebase user property is logged", FirebaseUserProperty(p.recorders.Firebase, name, value), opts)
}

// ConfirmLastFirebaseEvent waits until the most recent firebase event is
// event with exactly the FirebaseParams, or no parameters when none are given.
func (p *Page) ConfirmLastFirebaseEvent(event string, opts ...Option) *Page {
	p.tc.t.Helper()
	o := newStepOptions(opts)
	return p.await("Firebase event is logged", LastFirebaseEvent(p.recorders.Firebase, event, o.firebaseParams), opts)
}

// ConfirmFirebaseEventsContain waits until any firebase event is event with
// exactly the FirebaseParams.
func (p *Page) ConfirmFirebaseEventsContain(event string, opts ...Option) *Page {
	p.tc.t.Helper()
	o := newStepOptions(opts)
	return p.await("Firebase events contain "+event, FirebaseEventsContain(p.recorders.Firebase, event, o.firebaseParams), opts)
}

// ConfirmURLIsOpened waits until the application's last opened URL is absolute.
func (p *Page) ConfirmURLIsOpened(absolute string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("URL is opened", URLOpened(p.recorders.AppState, absolute), opts)
}

// ConfirmURLMatches waits until the whole last opened URL matches pattern.
func (p *Page) ConfirmURLMatches(pattern string, opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("URL is opened", URLMatches(p.recorders.AppState, pattern), opts)
}

// ConfirmAppStoreRatingIsRequested waits until the rating prompt has been requested.
func (p *Page) ConfirmAppStoreRatingIsRequested(opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("Rating is requested", RatingRequested(p.recorders.AppState, true), opts)
}

// ConfirmAppStoreRatingIsNotRequested waits until the rating prompt state reads not requested.
func (p *Page) ConfirmAppStoreRatingIsNotRequested(opts ...Option) *Page {
	p.tc.t.Helper()
	return p.await("Rating is not requested", RatingRequested(p.recorders.AppState, false), opts)
}

// ConfirmClipboardContainsText waits until the clipboard equals text, or
// contains it with Partial.
func (p *Page) ConfirmClipboardContainsText(text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	reader, ok := p.app.(ClipboardReader)
	if !ok {
		p.fail(trip.KindInteraction, "Application does not expose the clipboard", loc)
		return p
	}
	cond := func() error {
		actual, err := reader.Clipboard()
		if err != nil {
			return fmt.Errorf("Unable to read clipboard: %w", err)
		}
		if actual == text || (o.partial && strings.Contains(actual, text)) {
			return nil
		}
		return fmt.Errorf("Text %s does not match clipboard %q", text, actual)
	}
	p.waitFor("Clipboard contains text", cond, o, loc)
	return p
}

func (p *Page) await(description string, cond Condition, opts []Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	p.waitFor(description, cond, o, o.location())
	return p
}

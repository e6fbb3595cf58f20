package pagecam

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/teranos/pagecam/trip"
)

// PageState tracks whether a page has been confirmed on screen.
type PageState int

const (
	PageUnloaded PageState = iota
	PageLoaded
	PageFailed
)

func (s PageState) String() string {
	switch s {
	case PageUnloaded:
		return "unloaded"
	case PageLoaded:
		return "loaded"
	case PageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Recorders are the event logs a page asserts against. Nil fields fall back
// to the application's tunnel.
type Recorders struct {
	Analytics AnalyticsRecorder
	Audit     AuditRecorder
	Firebase  FirebaseRecorder
	AppState  AppStateReader
}

// Page is the test-side model of one application screen. Every operation
// returns the page so steps chain in the order they are written:
//
//	login := pagecam.NewPage(tc, app, pagecam.Named("Login"),
//	    pagecam.WithUniqueElement(pagecam.Query(pagecam.Button, "Sign in")))
//
//	login.Await().
//	    TypeIntoTextField("username", "alice").
//	    TapButtonWithLabel("Sign in").
//	    ConfirmEventIsTracked("login", "tap", "sign_in")
//
// Structural checks run once against the current tree; event checks poll
// because events arrive asynchronously. Once the page fails to load, or the
// test case halts, later operations do nothing.
type Page struct {
	tc         *TestCase
	app        Application
	resolver   *Resolver
	tunnel     *Tunnel
	recorders  Recorders
	name       string
	unique     *ElementQuery
	uniqueText string
	state      PageState
}

// PageOption configures a Page.
type PageOption func(*Page)

// Named sets the page name used in failure messages.
func Named(name string) PageOption {
	return func(p *Page) { p.name = name }
}

// WithUniqueElement sets the element whose presence means the page has loaded.
func WithUniqueElement(q ElementQuery) PageOption {
	return func(p *Page) { p.unique = &q }
}

// WithUniquePartialText sets text whose presence means the page has loaded.
func WithUniquePartialText(text string) PageOption {
	return func(p *Page) { p.uniqueText = text }
}

// WithRecorders replaces the event logs read by tracking assertions.
func WithRecorders(r Recorders) PageOption {
	return func(p *Page) { p.recorders = r }
}

// NewPage creates an unloaded page over app.
func NewPage(tc *TestCase, app Application, opts ...PageOption) *Page {
	p := &Page{
		tc:       tc,
		app:      app,
		resolver: NewResolver(app, tc.logger),
		tunnel:   NewTunnel(app),
		name:     "page",
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.recorders.Analytics == nil {
		p.recorders.Analytics = p.tunnel
	}
	if p.recorders.Audit == nil {
		p.recorders.Audit = p.tunnel
	}
	if p.recorders.Firebase == nil {
		p.recorders.Firebase = p.tunnel
	}
	if p.recorders.AppState == nil {
		p.recorders.AppState = p.tunnel
	}
	return p
}

// Name returns the page name.
func (p *Page) Name() string { return p.name }

// State returns the load state.
func (p *Page) State() PageState { return p.state }

// App returns the application handle.
func (p *Page) App() Application { return p.app }

// Resolver returns the element resolver the page queries through.
func (p *Page) Resolver() *Resolver { return p.resolver }

// Tunnel returns the typed command channel of the application.
func (p *Page) Tunnel() *Tunnel { return p.tunnel }

// TestCase returns the test case the page reports to.
func (p *Page) TestCase() *TestCase { return p.tc }

// Await blocks until the page's unique element or partial text is present.
// A page that never loads fails the test and halts it.
func (p *Page) Await(opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()

	var (
		cond Condition
		what string
	)
	switch {
	case p.unique != nil:
		cond = p.resolver.ElementCondition(*p.unique)
		what = p.unique.String()
	case p.uniqueText != "":
		cond = p.resolver.TextCondition(p.uniqueText, true, false)
		what = fmt.Sprintf("text '%s'", p.uniqueText)
	default:
		p.state = PageLoaded
		return p
	}

	p.tc.Info("Awaiting page", zap.String("page", p.name), zap.String("unique", what))
	if p.tc.waitOrRecord(fmt.Sprintf("%s shows unique %s", p.name, what), cond, o, loc, trip.Fall) {
		p.state = PageLoaded
	} else {
		p.state = PageFailed
	}
	return p
}

// WaitUntilOrAssert polls an arbitrary condition as a page step.
func (p *Page) WaitUntilOrAssert(description string, cond Condition, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	p.tc.waitOrRecord(description, cond, o, o.location(), trip.Error)
	return p
}

// AwaitElement waits until an on-screen element of kind shows text. Navigation
// bars are matched by identifier, everything else by label.
func (p *Page) AwaitElement(kind ElementType, text string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	field := MatchLabel
	if kind == NavigationBar {
		field = MatchIdentifier
	}
	q := ElementQuery{Type: kind, Text: text, Field: field, OnScreen: true}
	cond := func() error {
		if _, ok := p.resolver.FindElement(q); !ok {
			return fmt.Errorf("Didn't find element with text: %s", text)
		}
		return nil
	}
	p.tc.waitOrRecord("Element exists", cond, o, o.location(), trip.Error)
	return p
}

// AwaitQuery waits until an element matching q is visible.
func (p *Page) AwaitQuery(q ElementQuery, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	p.tc.waitOrRecord(fmt.Sprintf("%s on '%s' exists", q, p.name), p.resolver.ElementCondition(q), o, o.location(), trip.Error)
	return p
}

// TapElementWithLabel taps the first visible, enabled element of kind labelled or identified by text.
func (p *Page) TapElementWithLabel(text string, kind ElementType, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	o := newStepOptions(opts)
	loc := o.location()
	p.tapMatching(ElementQuery{Type: kind, Text: text, OnScreen: o.onScreen}, o, loc,
		fmt.Sprintf("Element: %s is not enabled", text))
	return p
}

// ConfirmElementIsDisplayed checks a visible, hittable element of kind matches title.
func (p *Page) ConfirmElementIsDisplayed(title string, kind ElementType, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	e, ok := p.resolver.FindElement(Query(kind, title))
	if !ok {
		p.fail(trip.KindNotFound, fmt.Sprintf("Element: %s was not displayed", title), loc)
		return p
	}
	p.check(e.Hittable(), loc, "Element: %s is not hittable", title)
	return p
}

// ConfirmElementIsNotDisplayed checks no visible element of kind matches title.
func (p *Page) ConfirmElementIsNotDisplayed(title string, kind ElementType, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()
	_, found := p.resolver.FindElement(Query(kind, title))
	p.check(!found, loc, "Unexpectedly found %s: %s", kind, title)
	return p
}

func (p *Page) halted() bool {
	return p.state == PageFailed || p.tc.Halted()
}

func (p *Page) fail(kind, message string, loc trip.Location) {
	p.tc.t.Helper()
	p.tc.recordTrip(trip.NewTrip(kind, message, trip.Context{"page": p.name}).At(loc))
}

func (p *Page) check(ok bool, loc trip.Location, format string, args ...any) bool {
	p.tc.t.Helper()
	if !ok {
		p.fail(trip.KindAssertion, fmt.Sprintf(format, args...), loc)
	}
	return ok
}

func (p *Page) waitFor(description string, cond Condition, o stepOptions, loc trip.Location) bool {
	p.tc.t.Helper()
	return p.tc.waitOrRecord(description, cond, o, loc, trip.Error)
}

// tapMatching taps the first visible element matching q, which must be enabled.
func (p *Page) tapMatching(q ElementQuery, o stepOptions, loc trip.Location, disabledMessage string) bool {
	p.tc.t.Helper()
	e, ok := p.resolver.FindElement(q)
	if !ok || !e.Enabled() {
		p.fail(trip.KindNotFound, disabledMessage, loc)
		return false
	}
	return p.tap(e, q.String(), o, loc)
}

// tap performs the tap, with idle checks suppressed when requested.
func (p *Page) tap(e Element, what string, o stepOptions, loc trip.Location) bool {
	p.tc.t.Helper()
	if o.noIdleWait {
		defer SuppressIdle(p.app).Release()
	}
	p.tc.Info("Tap", zap.String("page", p.name), zap.String("element", what))
	if err := e.Tap(); err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to tap %s: %v", what, err), loc)
		return false
	}
	return true
}

// firstExisting returns the first element matching q that exists, visible or not.
func (p *Page) firstExisting(q ElementQuery) (Element, bool) {
	candidates, err := p.resolver.Candidates(q)
	if err != nil {
		return nil, false
	}
	for _, e := range candidates {
		if e.Exists() {
			return e, true
		}
	}
	return nil, false
}

package pagecam

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// recordingT captures what a TestCase reports instead of failing the test.
type recordingT struct {
	mu       sync.Mutex
	name     string
	errors   []string
	logs     []string
	failNow  int
	cleanups []func()
}

func newRecordingT() *recordingT {
	return &recordingT{name: "TestRecording"}
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNow++
}

func (r *recordingT) Logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *recordingT) Name() string { return r.name }

func (r *recordingT) Cleanup(fn func()) {
	r.cleanups = append(r.cleanups, fn)
}

func (r *recordingT) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.cleanups = nil
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps int
	// onSleep runs after each sleep, e.g. to change application state.
	onSleep func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep()
	}
}

// fakeElement is a node of the in-memory tree. Zero-sized frames and
// missing elements behave as in a real UI tree.
type fakeElement struct {
	kind       ElementType
	label      string
	identifier string
	value      string
	frame      Rect
	missing    bool
	offscreen  bool
	disabled   bool
	children   []*fakeElement

	app    *fakeApp
	taps   int
	typed  []string
	tapErr error
	// onTap changes the tree the way the application would.
	onTap func()
}

func el(kind ElementType, label string, children ...*fakeElement) *fakeElement {
	return &fakeElement{kind: kind, label: label, frame: Rect{Width: 100, Height: 20}, children: children}
}

func (e *fakeElement) withID(id string) *fakeElement     { e.identifier = id; return e }
func (e *fakeElement) withValue(v string) *fakeElement   { e.value = v; return e }
func (e *fakeElement) withFrame(r Rect) *fakeElement     { e.frame = r; return e }
func (e *fakeElement) asOffscreen() *fakeElement         { e.offscreen = true; return e }
func (e *fakeElement) asDisabled() *fakeElement          { e.disabled = true; return e }
func (e *fakeElement) whenTapped(fn func()) *fakeElement { e.onTap = fn; return e }

func (e *fakeElement) Type() ElementType  { return e.kind }
func (e *fakeElement) Exists() bool       { return !e.missing }
func (e *fakeElement) Frame() Rect        { return e.frame }
func (e *fakeElement) Hittable() bool     { return e.Exists() && !e.offscreen && !e.frame.Empty() }
func (e *fakeElement) Enabled() bool      { return !e.disabled }
func (e *fakeElement) Label() string      { return e.label }
func (e *fakeElement) Identifier() string { return e.identifier }
func (e *fakeElement) Value() string      { return e.value }

func (e *fakeElement) Descendants(kind ElementType) []Element {
	var out []Element
	walk(e.children, func(c *fakeElement) {
		if kind == AnyElement || c.kind == kind {
			out = append(out, c)
		}
	})
	return out
}

func (e *fakeElement) Tap() error {
	if e.missing {
		return errors.New("element does not exist")
	}
	if e.tapErr != nil {
		return e.tapErr
	}
	e.taps++
	if e.app != nil {
		e.app.actions = append(e.app.actions, "tap "+e.describe())
	}
	if e.onTap != nil {
		e.onTap()
	}
	return nil
}

func (e *fakeElement) TypeText(text string) error {
	e.typed = append(e.typed, text)
	for _, r := range text {
		if r == '\b' {
			if n := len([]rune(e.value)); n > 0 {
				e.value = string([]rune(e.value)[:n-1])
			}
			continue
		}
		e.value += string(r)
	}
	return nil
}

func (e *fakeElement) describe() string {
	if e.label != "" {
		return e.label
	}
	return e.identifier
}

func walk(elements []*fakeElement, visit func(*fakeElement)) {
	for _, e := range elements {
		visit(e)
		walk(e.children, visit)
	}
}

// fakeApp is an in-memory Application.
type fakeApp struct {
	roots     []*fakeElement
	idle      bool
	idleWaits int
	queries   int
	swipes    []Direction
	actions   []string
	commands  map[string]func(payload any) (any, error)
	performed []string
	onSwipe   func(Direction)
}

func newFakeApp(roots ...*fakeElement) *fakeApp {
	app := &fakeApp{idle: true, commands: map[string]func(any) (any, error){}}
	app.setTree(roots...)
	return app
}

func (a *fakeApp) setTree(roots ...*fakeElement) {
	a.roots = roots
	walk(roots, func(e *fakeElement) { e.app = a })
}

func (a *fakeApp) Elements(kind ElementType, match Predicate) []Element {
	a.queries++
	var out []Element
	walk(a.roots, func(e *fakeElement) {
		if kind != AnyElement && e.kind != kind {
			return
		}
		if match == nil || match(e) {
			out = append(out, e)
		}
	})
	return out
}

func (a *fakeApp) WaitForIdleBeforeQuery() bool           { return a.idle }
func (a *fakeApp) SetWaitForIdleBeforeQuery(enabled bool) { a.idle = enabled }

func (a *fakeApp) WaitForIdle() error {
	a.idleWaits++
	return nil
}

func (a *fakeApp) Perform(name string, payload any) (any, error) {
	a.performed = append(a.performed, name)
	handler, ok := a.commands[name]
	if !ok {
		return nil, nil
	}
	return handler(payload)
}

func (a *fakeApp) handle(name string, fn func(payload any) (any, error)) *fakeApp {
	a.commands[name] = fn
	return a
}

func (a *fakeApp) reply(name string, result any) *fakeApp {
	return a.handle(name, func(any) (any, error) { return result, nil })
}

func (a *fakeApp) Swipe(dir Direction) error {
	a.swipes = append(a.swipes, dir)
	if a.onSwipe != nil {
		a.onSwipe(dir)
	}
	return nil
}

// clipboardApp adds a pasteboard to fakeApp.
type clipboardApp struct {
	*fakeApp
	text string
}

func (c *clipboardApp) Clipboard() (string, error) { return c.text, nil }

// screenshotApp adds screenshots to fakeApp.
type screenshotApp struct {
	*fakeApp
	png []byte
	err error
}

func (s *screenshotApp) Screenshot() ([]byte, error) { return s.png, s.err }

// newTestCase builds a TestCase over a recording T and a fake clock, with a
// short default timeout so failing waits finish quickly.
func newTestCase(opts ...TestCaseOption) (*TestCase, *recordingT, *fakeClock) {
	rt := newRecordingT()
	clk := newFakeClock()
	base := []TestCaseOption{
		WithClock(clk),
		WithWaitConfig(WaitConfig{Timeout: time.Second, PollInterval: 100 * time.Millisecond}),
	}
	tc := NewTestCase(rt, append(base, opts...)...)
	return tc, rt, clk
}

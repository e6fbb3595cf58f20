package pagecam

import "sync"

// IdleController is the driver switch for waiting on the UI to settle
// before each query and after each action.
type IdleController interface {
	WaitForIdleBeforeQuery() bool
	SetWaitForIdleBeforeQuery(enabled bool)
	// WaitForIdle blocks until the application has processed pending work.
	WaitForIdle() error
}

// idleHold is the suppression state of one controller while any guard on it
// is held.
type idleHold struct {
	depth    int
	previous bool
}

var (
	idleMu    sync.Mutex
	idleHolds = map[IdleController]*idleHold{}
)

// IdleGuard holds idle checks suppressed until Release is called.
type IdleGuard struct {
	ctl  IdleController
	once sync.Once
}

// SuppressIdle disables idle checks and returns a guard that restores the
// previous state. Guards on one controller nest and may be released in any
// order: the state seen by the first guard comes back when the last one is
// released. Controllers must be comparable, as pointer types are. Always
// release with defer:
//
//	defer pagecam.SuppressIdle(app).Release()
func SuppressIdle(ctl IdleController) *IdleGuard {
	idleMu.Lock()
	defer idleMu.Unlock()

	hold, ok := idleHolds[ctl]
	if !ok {
		hold = &idleHold{previous: ctl.WaitForIdleBeforeQuery()}
		idleHolds[ctl] = hold
		ctl.SetWaitForIdleBeforeQuery(false)
	}
	hold.depth++
	return &IdleGuard{ctl: ctl}
}

// Release gives up the guard. Further calls do nothing.
func (g *IdleGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		idleMu.Lock()
		defer idleMu.Unlock()

		hold, ok := idleHolds[g.ctl]
		if !ok {
			return
		}
		hold.depth--
		if hold.depth == 0 {
			delete(idleHolds, g.ctl)
			g.ctl.SetWaitForIdleBeforeQuery(hold.previous)
		}
	})
}

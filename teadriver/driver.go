// Package teadriver runs Bubble Tea models headlessly as pagecam applications.
//
// The driver owns a tea.Program with no renderer, no input and discarded
// output. Pages query the model's accessibility tree, taps and typing are
// delivered as messages, and tunnel commands are answered inside the update
// loop:
//
//	driver := teadriver.New(settings.NewModel()).
//		WithHandler(services)
//	require.NoError(t, driver.Start())
//	defer driver.Stop()
//
//	pagecam.NewPage(pagecam.NewTestCase(t), driver).
//		TapCellWithLabel("Notifications")
package teadriver

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/teranos/pagecam"
	"github.com/teranos/pagecam/trip"
)

// Driver implements pagecam.Application over a running tea.Program.
type Driver struct {
	model   tea.Model
	program *tea.Program
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	config  Config
	logger  *zap.Logger

	// Latest model state, written by the update loop
	snapMu sync.RWMutex
	snap   snapshot

	tripMu      sync.Mutex
	tripHandler *trip.Handler

	idleBeforeQuery atomic.Bool
	updateSeq       atomic.Int64
	started         atomic.Bool
	stopOnce        sync.Once
}

// New creates a driver for model with the default configuration.
func New(model tea.Model) *Driver {
	return NewWithConfig(model, DefaultConfig())
}

// NewWithConfig creates a driver for model. Zero fields of config take their defaults.
func NewWithConfig(model tea.Model, config Config) *Driver {
	defaults := DefaultConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}
	if config.Fs == nil {
		config.Fs = defaults.Fs
	}
	if config.CaptureDir == "" {
		config.CaptureDir = defaults.CaptureDir
	}
	if config.Render.Columns == 0 {
		config.Render = defaults.Render
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	d := &Driver{
		model:       model,
		done:        make(chan struct{}),
		config:      config,
		logger:      config.Logger.Named("teadriver"),
		tripHandler: trip.NewHandler(fmt.Sprintf("%T", model), trip.DefaultPolicy()),
	}
	d.idleBeforeQuery.Store(true)
	d.snap = takeSnapshot(model, 0)
	return d
}

// WithHandler sets the handler for tunnel commands.
// Must be called before Start.
func (d *Driver) WithHandler(h CommandHandler) *Driver {
	if d.started.Load() {
		d.logger.Warn("Cannot change command handler after the driver has started")
		return d
	}
	d.config.Handler = h
	return d
}

// Start runs the program in the background. It returns once the program
// has processed its first message.
func (d *Driver) Start() error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("teadriver: already started")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.program = tea.NewProgram(modelWrapper{Model: d.model, driver: d},
		tea.WithContext(d.ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)

	go func() {
		defer close(d.done)
		if _, err := d.program.Run(); err != nil && d.ctx.Err() == nil {
			d.logger.Warn("Program exited with error", zap.Error(err))
		}
	}()

	if err := d.WaitForIdle(); err != nil {
		d.Stop()
		return fmt.Errorf("teadriver: program never became ready: %w", err)
	}
	d.logger.Debug("Program started", zap.String("model", fmt.Sprintf("%T", d.model)))
	return nil
}

// Stop quits the program and waits for it to exit. It is safe to call more than once.
func (d *Driver) Stop() {
	if !d.started.Load() {
		return
	}
	d.stopOnce.Do(func() {
		d.program.Quit()
		select {
		case <-d.done:
		case <-time.After(d.config.IdleTimeout):
			d.cancel()
			<-d.done
		}
		d.cancel()
	})
}

func (d *Driver) running() bool {
	if !d.started.Load() {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// send delivers msg to the update loop without blocking past the program's lifetime.
func (d *Driver) send(msg tea.Msg) error {
	if !d.running() {
		return ErrNotStarted
	}
	d.program.Send(msg)
	return nil
}

// settle waits for idle after an action when idle checks are enabled.
func (d *Driver) settle() error {
	if !d.idleBeforeQuery.Load() {
		return nil
	}
	return d.WaitForIdle()
}

// WaitForIdleBeforeQuery implements pagecam.IdleController.
func (d *Driver) WaitForIdleBeforeQuery() bool {
	return d.idleBeforeQuery.Load()
}

// SetWaitForIdleBeforeQuery implements pagecam.IdleController.
func (d *Driver) SetWaitForIdleBeforeQuery(enabled bool) {
	d.idleBeforeQuery.Store(enabled)
}

// WaitForIdle sends a barrier through the update loop and waits for it, so
// every message sent before the call has been processed.
func (d *Driver) WaitForIdle() error {
	if !d.running() {
		return ErrNotStarted
	}
	barrier := barrierMsg{done: make(chan struct{})}
	go d.program.Send(barrier)

	timer := time.NewTimer(d.config.IdleTimeout)
	defer timer.Stop()
	select {
	case <-barrier.done:
		return nil
	case <-d.done:
		return ErrNotStarted
	case <-timer.C:
		return fmt.Errorf("teadriver: not idle after %v", d.config.IdleTimeout)
	}
}

// Perform implements pagecam.Commander. captureScreen and getDeviceAndAppInfo
// are answered by the driver; everything else goes to the command handler
// inside the update loop.
func (d *Driver) Perform(name string, payload any) (any, error) {
	switch name {
	case pagecam.CommandCaptureScreen:
		screen, _ := payload.(string)
		return d.captureScreen(screen)
	case pagecam.CommandDeviceAndAppInfo:
		return fmt.Sprintf("teadriver %T", d.model), nil
	}

	if !d.running() {
		return nil, ErrNotStarted
	}
	msg := commandMsg{name: name, payload: payload, reply: make(chan commandReply, 1)}
	go d.program.Send(msg)

	timer := time.NewTimer(d.config.CommandTimeout)
	defer timer.Stop()
	select {
	case reply := <-msg.reply:
		return reply.result, reply.err
	case <-d.done:
		return nil, ErrNotStarted
	case <-timer.C:
		return nil, fmt.Errorf("teadriver: command %s timed out after %v", name, d.config.CommandTimeout)
	}
}

// handleCommand runs on the update loop.
func (d *Driver) handleCommand(model tea.Model, msg commandMsg) {
	handler := d.config.Handler
	if handler == nil {
		if h, ok := model.(CommandHandler); ok {
			handler = h
		}
	}
	if handler == nil {
		msg.reply <- commandReply{err: fmt.Errorf("%w: %s", ErrUnknownCommand, msg.name)}
		return
	}

	var reply commandReply
	func() {
		defer func() {
			if r := recover(); r != nil {
				reply = commandReply{err: fmt.Errorf("command %s panicked: %v", msg.name, r)}
			}
		}()
		reply.result, reply.err = handler.HandleCommand(msg.name, msg.payload)
	}()
	msg.reply <- reply
}

// captureScreen renders the current view to a PNG in the capture directory
// and returns its path.
func (d *Driver) captureScreen(screen string) (string, error) {
	if screen == "" {
		screen = "screen"
	}
	data, err := d.Screenshot()
	if err != nil {
		return "", err
	}
	if err := d.config.Fs.MkdirAll(d.config.CaptureDir, 0o755); err != nil {
		return "", fmt.Errorf("creating capture directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.png", screen, uuid.NewString()[:8])
	path := filepath.Join(d.config.CaptureDir, name)
	if err := afero.WriteFile(d.config.Fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing capture: %w", err)
	}
	return path, nil
}

// Screenshot implements pagecam.Screenshotter by rendering the current view.
func (d *Driver) Screenshot() ([]byte, error) {
	return pagecam.NewTextRenderer(d.config.Render).RenderPNG(d.View())
}

// Clipboard implements pagecam.ClipboardReader for models that are ClipboardOwners.
func (d *Driver) Clipboard() (string, error) {
	d.snapMu.RLock()
	defer d.snapMu.RUnlock()
	if d.snap.clipboard == nil {
		return "", fmt.Errorf("teadriver: %T has no clipboard", d.model)
	}
	return *d.snap.clipboard, nil
}

// Swipe implements pagecam.Application. Swiping up pages down.
func (d *Driver) Swipe(dir pagecam.Direction) error {
	key := tea.KeyPgDown
	if dir == pagecam.SwipeDown {
		key = tea.KeyPgUp
	}
	if err := d.send(tea.KeyMsg{Type: key}); err != nil {
		return err
	}
	return d.settle()
}

// View returns the model's view after its latest update.
func (d *Driver) View() string {
	d.snapMu.RLock()
	defer d.snapMu.RUnlock()
	return d.snap.view
}

// Trips returns failures raised inside the program, such as panics in Update.
func (d *Driver) Trips() *trip.Handler {
	d.tripMu.Lock()
	defer d.tripMu.Unlock()
	return d.tripHandler
}

func (d *Driver) recordTrip(t *trip.Trip) {
	d.tripMu.Lock()
	d.tripHandler.Record(t)
	d.tripMu.Unlock()
	d.logger.Error("Program trip", zap.String("kind", t.Type), zap.String("message", t.Message))
}

// takeSnapshot reads everything queries need from model. It must run on the
// goroutine that owns the model.
func takeSnapshot(model tea.Model, seq int64) snapshot {
	s := snapshot{view: model.View(), sequence: seq}
	if a, ok := model.(Accessible); ok {
		s.nodes = layout(a.Accessibility())
	} else {
		s.nodes = viewNodes(s.view)
	}
	if c, ok := model.(ClipboardOwner); ok {
		text := c.Clipboard()
		s.clipboard = &text
	}
	return s
}

func (d *Driver) storeSnapshot(model tea.Model) {
	s := takeSnapshot(model, d.updateSeq.Add(1))
	d.snapMu.Lock()
	d.snap = s
	d.snapMu.Unlock()
}

// viewNodes exposes each non-empty line of a plain view as static text.
func viewNodes(view string) []Node {
	var nodes []Node
	for row, line := range strings.Split(pagecam.StripANSI(view), "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		nodes = append(nodes, Node{
			Type:  pagecam.StaticText,
			Label: text,
			Frame: pagecam.Rect{Y: float64(row), Width: float64(len([]rune(line))), Height: 1},
		})
	}
	return nodes
}

// layout assigns default frames in traversal order and empties hidden ones.
func layout(nodes []Node) []Node {
	row := 0
	var walk func([]Node) []Node
	walk = func(in []Node) []Node {
		out := make([]Node, len(in))
		for i, n := range in {
			switch {
			case n.Hidden:
				n.Frame = pagecam.Rect{}
			case n.Frame == (pagecam.Rect{}):
				width := len([]rune(n.Label))
				if width == 0 {
					width = 1
				}
				n.Frame = pagecam.Rect{Y: float64(row), Width: float64(width), Height: 1}
			}
			row++
			n.Children = walk(n.Children)
			out[i] = n
		}
		return out
	}
	return walk(nodes)
}

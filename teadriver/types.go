package teadriver

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/teranos/pagecam"
)

// ErrNotStarted is returned by operations that need a running program.
var ErrNotStarted = errors.New("teadriver: program not running")

// ErrUnknownCommand is returned for commands no handler understands.
var ErrUnknownCommand = errors.New("teadriver: unknown command")

// Node is one element of a model's accessibility tree.
//
// Nodes without an explicit Frame are laid out one row each in traversal
// order. Hidden nodes get an empty frame and never count as visible.
type Node struct {
	Type       pagecam.ElementType
	Label      string
	Identifier string
	Value      string
	Frame      pagecam.Rect
	Hidden     bool
	Disabled   bool
	Offscreen  bool // Present but not hittable, e.g. scrolled out of view
	Children   []Node
}

// Accessible is implemented by models that describe their UI as a tree.
// Models without it are exposed as one static text per view line.
//
// Example implementation:
//
//	func (m Settings) Accessibility() []teadriver.Node {
//		nodes := []teadriver.Node{{Type: pagecam.NavigationBar, Identifier: "Settings"}}
//		for _, item := range m.items {
//			nodes = append(nodes, teadriver.Node{Type: pagecam.Cell, Label: item})
//		}
//		return nodes
//	}
type Accessible interface {
	Accessibility() []Node
}

// ClipboardOwner is implemented by models that keep a pasteboard.
type ClipboardOwner interface {
	Clipboard() string
}

// TapMsg is delivered to the model when an element is tapped.
type TapMsg struct {
	Type       pagecam.ElementType
	Identifier string
	Label      string
}

// CommandHandler answers named tunnel commands. It is called from the
// program's update loop, so it may read state the model shares with it
// without extra locking.
type CommandHandler interface {
	HandleCommand(name string, payload any) (any, error)
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(name string, payload any) (any, error)

// HandleCommand implements CommandHandler.
func (f CommandFunc) HandleCommand(name string, payload any) (any, error) {
	return f(name, payload)
}

// Config configures a Driver.
//
// Example usage:
//
//	config := teadriver.DefaultConfig()
//	config.IdleTimeout = 500 * time.Millisecond
//	config.Fs = afero.NewMemMapFs()
//	driver := teadriver.NewWithConfig(model, config)
type Config struct {
	// IdleTimeout bounds WaitForIdle
	IdleTimeout time.Duration
	// CommandTimeout bounds Perform
	CommandTimeout time.Duration
	// Fs receives screen captures
	Fs afero.Fs
	// CaptureDir is where captureScreen writes PNGs
	CaptureDir string
	// Render sets the geometry of captured screens
	Render pagecam.RenderConfig
	// Handler answers commands the driver doesn't handle itself
	Handler CommandHandler
	Logger  *zap.Logger
}

// DefaultConfig returns the driver defaults:
//   - 2 second idle timeout
//   - 5 second command timeout
//   - captures written to the OS temp directory
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    2 * time.Second,
		CommandTimeout: 5 * time.Second,
		Fs:             afero.NewOsFs(),
		CaptureDir:     filepath.Join(os.TempDir(), "pagecam-captures"),
		Render:         pagecam.DefaultRenderConfig(),
		Logger:         zap.NewNop(),
	}
}

// snapshot is the state of the model after its latest update.
type snapshot struct {
	view      string
	nodes     []Node
	clipboard *string
	sequence  int64
}

// commandMsg carries a tunnel command into the update loop.
type commandMsg struct {
	name    string
	payload any
	reply   chan commandReply
}

type commandReply struct {
	result any
	err    error
}

// barrierMsg is closed once the update loop reaches it.
type barrierMsg struct {
	done chan struct{}
}

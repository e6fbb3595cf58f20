package teadriver

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teranos/pagecam"
)

// element is a handle to a node by its position in the tree. Accessors read
// the latest snapshot, so a handle goes stale when the node moves or goes away.
type element struct {
	driver     *Driver
	path       []int
	kind       pagecam.ElementType
	identifier string
}

// Elements implements pagecam.UITree.
func (d *Driver) Elements(kind pagecam.ElementType, match pagecam.Predicate) []pagecam.Element {
	d.snapMu.RLock()
	nodes := d.snap.nodes
	d.snapMu.RUnlock()

	var out []pagecam.Element
	walkNodes(nodes, nil, func(path []int, n Node) {
		if kind != pagecam.AnyElement && n.Type != kind {
			return
		}
		e := &element{driver: d, path: path, kind: n.Type, identifier: n.Identifier}
		if match == nil || match(e) {
			out = append(out, e)
		}
	})
	return out
}

// walkNodes visits nodes in pre-order with their index paths.
func walkNodes(nodes []Node, prefix []int, visit func(path []int, n Node)) {
	for i, n := range nodes {
		path := append(slices.Clone(prefix), i)
		visit(path, n)
		walkNodes(n.Children, path, visit)
	}
}

// node resolves the handle against the latest snapshot.
func (e *element) node() (Node, bool) {
	e.driver.snapMu.RLock()
	nodes := e.driver.snap.nodes
	e.driver.snapMu.RUnlock()

	var n Node
	for _, i := range e.path {
		if i >= len(nodes) {
			return Node{}, false
		}
		n = nodes[i]
		nodes = n.Children
	}
	if n.Type != e.kind || n.Identifier != e.identifier {
		return Node{}, false
	}
	return n, true
}

func (e *element) Type() pagecam.ElementType { return e.kind }

func (e *element) Exists() bool {
	_, ok := e.node()
	return ok
}

func (e *element) Frame() pagecam.Rect {
	n, _ := e.node()
	return n.Frame
}

func (e *element) Hittable() bool {
	n, ok := e.node()
	return ok && !n.Hidden && !n.Offscreen && n.Frame.Width > 0 && n.Frame.Height > 0
}

func (e *element) Enabled() bool {
	n, ok := e.node()
	return ok && !n.Disabled
}

func (e *element) Label() string {
	n, _ := e.node()
	return n.Label
}

func (e *element) Identifier() string { return e.identifier }

func (e *element) Value() string {
	n, _ := e.node()
	return n.Value
}

func (e *element) Descendants(kind pagecam.ElementType) []pagecam.Element {
	n, ok := e.node()
	if !ok {
		return nil
	}
	var out []pagecam.Element
	walkNodes(n.Children, e.path, func(path []int, child Node) {
		if kind == pagecam.AnyElement || child.Type == kind {
			out = append(out, &element{driver: e.driver, path: path, kind: child.Type, identifier: child.Identifier})
		}
	})
	return out
}

// Tap sends a TapMsg for the element.
func (e *element) Tap() error {
	n, ok := e.node()
	if !ok {
		return fmt.Errorf("%s no longer exists", e.kind)
	}
	if !e.Hittable() {
		return fmt.Errorf("%s '%s' is not hittable", e.kind, n.Label)
	}
	if err := e.driver.send(TapMsg{Type: n.Type, Identifier: n.Identifier, Label: n.Label}); err != nil {
		return err
	}
	return e.driver.settle()
}

// TypeText sends one key message per rune. Backspace and newline characters
// become the matching keys.
func (e *element) TypeText(text string) error {
	if !e.Exists() {
		return fmt.Errorf("%s no longer exists", e.kind)
	}
	for _, r := range text {
		var msg tea.KeyMsg
		switch r {
		case '\b':
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case '\n':
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case ' ':
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{r}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
		}
		if err := e.driver.send(msg); err != nil {
			return err
		}
	}
	return e.driver.settle()
}

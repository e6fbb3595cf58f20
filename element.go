package pagecam

// ElementType is the accessibility role of a UI element.
type ElementType int

const (
	AnyElement ElementType = iota
	Button
	StaticText
	TextView
	TextField
	Cell
	Image
	Alert
	Sheet
	Link
	NavigationBar
	WebView
	CollectionView
	Other
)

var elementTypeNames = map[ElementType]string{
	AnyElement:     "element",
	Button:         "button",
	StaticText:     "staticText",
	TextView:       "textView",
	TextField:      "textField",
	Cell:           "cell",
	Image:          "image",
	Alert:          "alert",
	Sheet:          "sheet",
	Link:           "link",
	NavigationBar:  "navigationBar",
	WebView:        "webView",
	CollectionView: "collectionView",
	Other:          "other",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseElementType maps a role name such as "button" back to its ElementType.
func ParseElementType(name string) (ElementType, bool) {
	for t, n := range elementTypeNames {
		if n == name {
			return t, true
		}
	}
	return AnyElement, false
}

// Rect is an element's rendered frame in points.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Empty reports whether the frame has no rendered area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Element is a handle to one element of the live UI tree. Handles may go stale;
// every accessor reflects the state at the time it is called.
type Element interface {
	Type() ElementType
	Exists() bool
	Frame() Rect
	Hittable() bool
	Enabled() bool
	Label() string
	Identifier() string
	Value() string
	// Descendants returns the element's descendants of the given type in traversal order.
	Descendants(kind ElementType) []Element
	Tap() error
	TypeText(text string) error
}

// Predicate selects elements from a tree query. A nil Predicate selects all.
type Predicate func(Element) bool

// UITree is the queryable UI of the application under test.
type UITree interface {
	// Elements returns every element of the given type accepted by match,
	// in traversal order. AnyElement selects every type.
	Elements(kind ElementType, match Predicate) []Element
}

// Direction of a swipe gesture.
type Direction int

const (
	SwipeUp Direction = iota
	SwipeDown
)

// Application is the remote application handle pages drive.
type Application interface {
	UITree
	IdleController
	Commander
	// Swipe scrolls the main window. SwipeUp moves content up, revealing what is below.
	Swipe(dir Direction) error
}

// Screenshotter is implemented by applications that can produce a PNG of the current screen.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

// Viewer is implemented by applications that render their screen as
// terminal text. Run reports show the view next to each capture.
type Viewer interface {
	View() string
}

// ClipboardReader is implemented by applications that expose the pasteboard.
type ClipboardReader interface {
	Clipboard() (string, error)
}

// Commander performs named out-of-process commands against the application.
type Commander interface {
	Perform(name string, payload any) (any, error)
}

package teadriver

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teranos/pagecam"
)

// settingsModel is a small accessible screen: a navigation bar, a list of
// cells, a text field and a button that panics.
type settingsModel struct {
	items    []string
	selected string
	query    string
	services *services
	copied   string
}

func newSettingsModel(s *services) *settingsModel {
	return &settingsModel{items: []string{"Notifications", "Privacy", "About"}, services: s}
}

func (m *settingsModel) Init() tea.Cmd { return nil }

func (m *settingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TapMsg:
		switch {
		case msg.Identifier == "crash":
			panic("tapped crash button")
		case msg.Type == pagecam.Cell:
			m.selected = msg.Label
			m.copied = msg.Label
			m.services.track("settings", "tap", msg.Label)
		}
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyRunes, tea.KeySpace:
			m.query += string(msg.Runes)
		case tea.KeyBackspace:
			if len(m.query) > 0 {
				m.query = m.query[:len(m.query)-1]
			}
		}
	}
	return m, nil
}

func (m *settingsModel) View() string {
	view := "Settings\n"
	for _, item := range m.items {
		view += "  " + item + "\n"
	}
	return view + "Selected: " + m.selected
}

func (m *settingsModel) Accessibility() []Node {
	cells := make([]Node, 0, len(m.items))
	for _, item := range m.items {
		cells = append(cells, Node{Type: pagecam.Cell, Label: item})
	}
	return []Node{
		{Type: pagecam.NavigationBar, Identifier: "Settings", Children: []Node{
			{Type: pagecam.Button, Label: "Back"},
		}},
		{Type: pagecam.TextField, Identifier: "search", Value: m.query},
		{Type: pagecam.CollectionView, Identifier: "items", Children: cells},
		{Type: pagecam.StaticText, Label: "Selected: " + m.selected},
		{Type: pagecam.Button, Identifier: "crash", Label: "Crash"},
		{Type: pagecam.Button, Label: "Hidden", Hidden: true},
	}
}

func (m *settingsModel) Clipboard() string { return m.copied }

// services records analytics the way the application's service doubles do.
type services struct {
	mu     sync.Mutex
	events []map[string]any
}

func (s *services) track(category, action, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, map[string]any{
		"eventCategory": category,
		"eventAction":   action,
		"eventLabel":    label,
	})
}

func (s *services) HandleCommand(name string, payload any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case pagecam.CommandRecordedAnalyticsEvents:
		out := make([]any, len(s.events))
		for i, e := range s.events {
			out[i] = e
		}
		return out, nil
	case pagecam.CommandResetFixedDate:
		return nil, nil
	}
	return nil, ErrUnknownCommand
}

func startDriver(t *testing.T, model tea.Model, handler CommandHandler) *Driver {
	t.Helper()
	config := DefaultConfig()
	config.Fs = afero.NewMemMapFs()
	config.CaptureDir = "/captures"
	driver := NewWithConfig(model, config).WithHandler(handler)
	require.NoError(t, driver.Start())
	t.Cleanup(driver.Stop)
	return driver
}

func TestDriver_StartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	driver := New(newSettingsModel(&services{}))
	require.NoError(t, driver.Start())
	assert.Contains(t, driver.View(), "Notifications")
	driver.Stop()
	driver.Stop()

	assert.ErrorIs(t, driver.WaitForIdle(), ErrNotStarted)
}

func TestDriver_StartTwice(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)
	assert.Error(t, driver.Start())
}

func TestDriver_ElementsFromAccessibilityTree(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)

	cells := driver.Elements(pagecam.Cell, nil)
	require.Len(t, cells, 3)
	assert.Equal(t, "Notifications", cells[0].Label())
	assert.True(t, cells[0].Exists())
	assert.True(t, cells[0].Hittable())
	assert.False(t, cells[0].Frame().Empty())

	hidden := driver.Elements(pagecam.Button, func(e pagecam.Element) bool { return e.Label() == "Hidden" })
	require.Len(t, hidden, 1)
	assert.True(t, hidden[0].Frame().Empty())
	assert.False(t, hidden[0].Hittable())

	bars := driver.Elements(pagecam.NavigationBar, nil)
	require.Len(t, bars, 1)
	buttons := bars[0].Descendants(pagecam.Button)
	require.Len(t, buttons, 1)
	assert.Equal(t, "Back", buttons[0].Label())

	all := driver.Elements(pagecam.AnyElement, nil)
	assert.Len(t, all, 10)
}

func TestDriver_TapAndType(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)

	cell := driver.Elements(pagecam.Cell, func(e pagecam.Element) bool { return e.Label() == "Privacy" })
	require.Len(t, cell, 1)
	require.NoError(t, cell[0].Tap())
	assert.Contains(t, driver.View(), "Selected: Privacy")

	field := driver.Elements(pagecam.TextField, nil)
	require.Len(t, field, 1)
	require.NoError(t, field[0].TypeText("dark mode"))
	assert.Equal(t, "dark mode", field[0].Value())

	require.NoError(t, field[0].TypeText("\b\b\b\b\b"))
	assert.Equal(t, "dark", field[0].Value())

	clip, err := driver.Clipboard()
	require.NoError(t, err)
	assert.Equal(t, "Privacy", clip)
}

func TestDriver_PlainViewFallback(t *testing.T) {
	driver := startDriver(t, plainModel{}, nil)

	texts := driver.Elements(pagecam.StaticText, nil)
	require.Len(t, texts, 2)
	assert.Equal(t, "Hello", texts[0].Label())
	assert.Equal(t, "World", texts[1].Label())

	_, err := driver.Clipboard()
	assert.Error(t, err)
}

type plainModel struct{}

func (plainModel) Init() tea.Cmd                       { return nil }
func (plainModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return plainModel{}, nil }
func (plainModel) View() string                        { return "\x1b[1mHello\x1b[0m\n\n  World  " }

func TestDriver_PanicInUpdateIsRecorded(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)

	crash := driver.Elements(pagecam.Button, func(e pagecam.Element) bool { return e.Identifier() == "crash" })
	require.Len(t, crash, 1)
	require.NoError(t, crash[0].Tap())

	trips := driver.Trips()
	require.True(t, trips.HasTrips())
	assert.Contains(t, trips.GetTrips()[0].Message, "tapped crash button")

	// The program keeps running on the model from before the panic.
	require.NoError(t, driver.WaitForIdle())
	assert.Contains(t, driver.View(), "Notifications")
}

func TestDriver_Commands(t *testing.T) {
	s := &services{}
	driver := startDriver(t, newSettingsModel(s), s)

	result, err := driver.Perform(pagecam.CommandRecordedAnalyticsEvents, nil)
	require.NoError(t, err)
	assert.Empty(t, result)

	_, err = driver.Perform("unsupported", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	info, err := driver.Perform(pagecam.CommandDeviceAndAppInfo, nil)
	require.NoError(t, err)
	assert.Contains(t, info, "settingsModel")
}

func TestDriver_CommandsWithoutHandler(t *testing.T) {
	driver := startDriver(t, plainModel{}, nil)
	_, err := driver.Perform(pagecam.CommandLastOpenedURL, nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDriver_CaptureScreen(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)

	path, err := pagecam.NewTunnel(driver).CaptureScreen("settings")
	require.NoError(t, err)
	assert.Contains(t, path, "/captures/settings-")

	exists, err := afero.Exists(driver.config.Fs, path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDriver_IdleFlag(t *testing.T) {
	driver := startDriver(t, newSettingsModel(&services{}), nil)
	assert.True(t, driver.WaitForIdleBeforeQuery())

	func() {
		defer pagecam.SuppressIdle(driver).Release()
		assert.False(t, driver.WaitForIdleBeforeQuery())
	}()
	assert.True(t, driver.WaitForIdleBeforeQuery())
}

func TestDriver_Swipe(t *testing.T) {
	model := &keyRecorder{}
	driver := startDriver(t, model, nil)

	require.NoError(t, driver.Swipe(pagecam.SwipeUp))
	require.NoError(t, driver.Swipe(pagecam.SwipeDown))
	assert.Equal(t, "pgdown pgup", driver.View())
}

type keyRecorder struct {
	keys string
}

func (m *keyRecorder) Init() tea.Cmd { return nil }
func (m *keyRecorder) View() string  { return m.keys }
func (m *keyRecorder) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if m.keys != "" {
			m.keys += " "
		}
		m.keys += key.String()
	}
	return m, nil
}

// TestPage_OverDriver runs page steps end to end against a live program.
func TestPage_OverDriver(t *testing.T) {
	s := &services{}
	driver := startDriver(t, newSettingsModel(s), s)

	tc := pagecam.NewTestCase(t, pagecam.WithWaitConfig(pagecam.WaitConfig{
		Timeout:      2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}))
	tc.UseApp(driver)

	page := pagecam.NewPage(tc, driver,
		pagecam.Named("Settings"),
		pagecam.WithUniqueElement(pagecam.Query(pagecam.NavigationBar, "Settings")))

	page.Await().
		ConfirmNavigationBarTextMatches("Settings").
		ConfirmCellsAreDisplayed(3).
		TapCellWithLabel("About").
		ConfirmTextIsDisplayed("Selected: About").
		ConfirmEventIsTracked("settings", "tap", "About").
		ConfirmEventIsNotTracked("settings", "tap", "Privacy").
		TypeIntoTextField("search", "wifi").
		ConfirmClipboardContainsText("About")

	assert.Equal(t, pagecam.PageLoaded, page.State())
	assert.False(t, tc.Failed())
}

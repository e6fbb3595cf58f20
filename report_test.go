package pagecam

import (
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/pagecam/trip"
)

// viewApp is a fake application that also renders terminal text.
type viewApp struct {
	*fakeApp
	view string
}

func (a *viewApp) View() string { return a.view }

func reportedTestCase(t *testing.T, opts ...TestCaseOption) (*TestCase, *recordingT, *fakeClock, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	tc, rt, clk := newTestCase(append([]TestCaseOption{WithFs(fs), WithArtifactsRoot("/src")}, opts...)...)
	shot := solidPNG(t, 2, 2, color.White)
	app := &viewApp{fakeApp: capturingApp(fs, &shot), view: "\x1b[1mHome\x1b[0m"}
	NewPage(tc, app).Capture("home")
	return tc, rt, clk, fs
}

func TestTestCase_Report(t *testing.T) {
	tc, _, clk, _ := reportedTestCase(t)
	want := here()
	tc.AssertTrue(false, "banner <missing>")
	clk.Sleep(1500 * time.Millisecond)

	report := tc.Report()

	assert.Equal(t, "TestRecording", report.TestName)
	assert.Equal(t, "20240301_120000", report.Timestamp)
	assert.Equal(t, 1500*time.Millisecond, report.Duration)
	assert.False(t, report.Success)

	require.Len(t, report.Trips, 1)
	assert.Equal(t, TripEntry{
		Kind:     trip.KindAssertion,
		Severity: "error",
		Message:  "banner <missing>",
		Location: want,
	}, report.Trips[0])

	require.Len(t, report.Captures, 1)
	capture := report.Captures[0]
	assert.Equal(t, "home", capture.Screen)
	assert.Equal(t, 1, capture.Step)
	assert.True(t, strings.HasPrefix(string(capture.DataURL), "data:image/png;base64,"))
	assert.Equal(t, `<span style="font-weight: bold">Home</span>`, string(capture.View))
}

func TestTestCase_ReportOrdersTripsByTime(t *testing.T) {
	tc, _, _ := newTestCase(WithTripPolicy(&trip.Policy{}))
	first := trip.NewStumble(trip.KindVisual, "first", trip.Context{"screen": "home"})
	second := trip.NewTrip(trip.KindTimeout, "second", nil).WithAttempt(3)
	second.Timestamp = first.Timestamp.Add(time.Second)
	tc.recordTrip(second)
	tc.recordTrip(first)

	trips := tc.Report().Trips

	require.Len(t, trips, 2)
	assert.Equal(t, "first", trips[0].Message)
	assert.Equal(t, map[string]string{"screen": "home"}, trips[0].Context)
	assert.Equal(t, "second", trips[1].Message)
	assert.Equal(t, 3, trips[1].Attempt)
}

func TestTestCase_WriteReport(t *testing.T) {
	tc, _, _, fs := reportedTestCase(t)
	tc.AssertTrue(false, "banner <missing>")

	path, err := tc.WriteReport()
	require.NoError(t, err)

	assert.Equal(t, "/src/Artifacts/reports/TestRecording/20240301_120000/index.html", path)
	page, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<title>TestRecording - pagecam run report</title>")
	assert.Contains(t, html, "FAILED")
	assert.Contains(t, html, "banner &lt;missing&gt;")
	assert.NotContains(t, html, "<missing>")
	assert.Contains(t, html, `<img src="data:image/png;base64,`)
	assert.Contains(t, html, `<span style="font-weight: bold">Home</span>`)

	exists, _ := afero.Exists(fs, "/src/Artifacts/reports/TestRecording/20240301_120000/report.json")
	assert.True(t, exists)

	dashboard, err := afero.ReadFile(fs, "/src/Artifacts/reports/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(dashboard), `href="TestRecording/20240301_120000/index.html"`)
}

func TestTestCase_ReportWrittenOnCleanup(t *testing.T) {
	tc, rt, _, fs := reportedTestCase(t, WithReport(true))

	rt.runCleanups()

	path := "/src/Artifacts/reports/TestRecording/20240301_120000/index.html"
	exists, _ := afero.Exists(fs, path)
	assert.True(t, exists)
	assert.Equal(t, "report: "+path, rt.logs[len(rt.logs)-1])
	assert.True(t, tc.Report().Success)
}

func TestTestCase_ReportSkippedForPassingTestWhenOnlyFailures(t *testing.T) {
	onlyFailures := func(tc *TestCase) { tc.report.OnlyFailures = true }
	_, rt, _, fs := reportedTestCase(t, WithReport(true), onlyFailures)

	rt.runCleanups()

	exists, _ := afero.Exists(fs, "/src/Artifacts/reports/index.html")
	assert.False(t, exists)
}

func TestGenerateDashboard(t *testing.T) {
	fs := afero.NewMemMapFs()
	write := func(path string, report RunReport) {
		data, err := json.Marshal(report)
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	}
	write("/reports/TestA/20240101_100000/report.json", RunReport{TestName: "TestA", Timestamp: "20240101_100000", Success: true, Duration: 2 * time.Second})
	write("/reports/TestB/20240102_100000/report.json", RunReport{TestName: "TestB", Timestamp: "20240102_100000", Trips: []TripEntry{{Message: "x"}}})
	require.NoError(t, afero.WriteFile(fs, "/reports/TestC/20240103_100000/report.json", []byte("{broken"), 0o644))

	entries, err := scanReports(fs, "/reports")
	require.NoError(t, err)
	require.Len(t, entries, 2, "unreadable summaries are skipped")
	assert.Equal(t, DashboardEntry{
		TestName:     "TestB",
		Timestamp:    "20240102_100000",
		TripCount:    1,
		Duration:     "0s",
		RelativePath: "TestB/20240102_100000/index.html",
	}, entries[0])
	assert.Equal(t, "TestA", entries[1].TestName)
	assert.Equal(t, "2s", entries[1].Duration)

	path, err := GenerateDashboard(fs, "/reports")
	require.NoError(t, err)
	assert.Equal(t, "/reports/index.html", path)
	page, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(page), "TestA")
	assert.Contains(t, string(page), "PASSED")
	assert.Contains(t, string(page), "FAILED")
}

package pagecam

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/teranos/pagecam/trip"
)

//go:embed templates/run_report.html
var runReportTemplate string

var runReportTmpl = template.Must(template.New("run_report").Parse(runReportTemplate))

// reportTimestamp names report directories so runs of one test sort by time.
const reportTimestamp = "20060102_150405"

// RunReport summarizes one test case: its failures, captures and attachments.
type RunReport struct {
	TestName    string         `json:"test_name"`
	Timestamp   string         `json:"timestamp"`
	Duration    time.Duration  `json:"duration"`
	Success     bool           `json:"success"`
	Trips       []TripEntry    `json:"trips"`
	Captures    []CaptureEntry `json:"captures"`
	Attachments []string       `json:"attachments"`
}

// TripEntry is a failure or stumble as shown in a report.
type TripEntry struct {
	Kind     string            `json:"kind"`
	Severity string            `json:"severity"`
	Message  string            `json:"message"`
	Location string            `json:"location"`
	Attempt  int               `json:"attempt,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// CaptureEntry is a captured screen with its image embedded as a data URL.
type CaptureEntry struct {
	Screen  string        `json:"screen"`
	Path    string        `json:"path"`
	Step    int           `json:"step"`
	DataURL template.URL  `json:"-"`
	View    template.HTML `json:"-"`
}

// CaptureRecord is a screen captured during the test.
type CaptureRecord struct {
	Screen string
	Path   string
	Time   time.Time
	View   string // Terminal view at capture time, when the app renders one
}

func (tc *TestCase) recordCapture(screen, path string, app Application) {
	rec := CaptureRecord{Screen: screen, Path: path, Time: tc.waiter.Clock().Now()}
	if v, ok := app.(Viewer); ok {
		rec.View = v.View()
	}
	tc.captures = append(tc.captures, rec)
}

// Captures returns the screens captured so far.
func (tc *TestCase) Captures() []CaptureRecord {
	return append([]CaptureRecord(nil), tc.captures...)
}

// ReportDir returns the directory run reports are written under.
func (tc *TestCase) ReportDir() string {
	return filepath.Join(tc.capture.SrcRoot, tc.capture.ArtifactsDir, tc.report.Dir)
}

// Report summarizes the test case as it stands.
func (tc *TestCase) Report() RunReport {
	now := tc.waiter.Clock().Now()
	report := RunReport{
		TestName:    tc.t.Name(),
		Timestamp:   tc.started.Format(reportTimestamp),
		Duration:    now.Sub(tc.started),
		Success:     !tc.Failed(),
		Attachments: append([]string(nil), tc.attachments...),
	}

	all := append(append([]*trip.Trip(nil), tc.trips.GetTrips()...), tc.trips.GetStumbles()...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	for _, t := range all {
		report.Trips = append(report.Trips, tripEntry(t))
	}

	for i, rec := range tc.captures {
		entry := CaptureEntry{Screen: rec.Screen, Path: rec.Path, Step: i + 1}
		if url, err := dataURL(tc.fs, rec.Path); err == nil {
			entry.DataURL = url
		}
		if rec.View != "" {
			entry.View = ANSIToHTML(rec.View)
		}
		report.Captures = append(report.Captures, entry)
	}
	return report
}

func tripEntry(t *trip.Trip) TripEntry {
	entry := TripEntry{
		Kind:     t.Type,
		Severity: t.Severity.String(),
		Message:  t.Message,
		Location: t.Location.String(),
		Attempt:  t.Attempt,
	}
	if len(t.Context) > 0 {
		entry.Context = make(map[string]string, len(t.Context))
		for k, v := range t.Context {
			entry.Context[k] = fmt.Sprint(v)
		}
	}
	return entry
}

// WriteReport writes the run report to a timestamped directory under
// ReportDir, refreshes the dashboard there and returns the report's path.
func (tc *TestCase) WriteReport() (string, error) {
	report := tc.Report()
	dir := filepath.Join(tc.ReportDir(), sanitizeName(report.TestName), report.Timestamp)
	if err := tc.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	var page strings.Builder
	if err := runReportTmpl.Execute(&page, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	path := filepath.Join(dir, "index.html")
	if err := afero.WriteFile(tc.fs, path, []byte(page.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	summary, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report summary: %w", err)
	}
	if err := afero.WriteFile(tc.fs, filepath.Join(dir, summaryFile), summary, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report summary: %w", err)
	}

	if _, err := GenerateDashboard(tc.fs, tc.ReportDir()); err != nil {
		return "", err
	}
	return path, nil
}

// dataURL reads the image at path and encodes it for embedding.
func dataURL(fs afero.Fs, path string) (template.URL, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read image file: %w", err)
	}

	mimeType := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".gif":
		mimeType = "image/gif"
	}
	return template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}

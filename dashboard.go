package pagecam

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

//go:embed templates/dashboard.html
var dashboardTemplate string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardTemplate))

// summaryFile sits next to each report's index.html and feeds the dashboard.
const summaryFile = "report.json"

// DashboardEntry is one run report listed on the dashboard.
type DashboardEntry struct {
	TestName     string `json:"test_name"`
	Timestamp    string `json:"timestamp"`
	Success      bool   `json:"success"`
	CaptureCount int    `json:"capture_count"`
	TripCount    int    `json:"trip_count"`
	Duration     string `json:"duration"`
	RelativePath string `json:"relative_path"`
}

// GenerateDashboard writes an index.html to baseDir linking every run report
// found beneath it, newest first. It returns the dashboard's path.
func GenerateDashboard(fs afero.Fs, baseDir string) (string, error) {
	entries, err := scanReports(fs, baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to scan run reports: %w", err)
	}

	var page strings.Builder
	if err := dashboardTmpl.Execute(&page, struct{ Reports []DashboardEntry }{entries}); err != nil {
		return "", fmt.Errorf("failed to execute dashboard template: %w", err)
	}
	path := filepath.Join(baseDir, "index.html")
	if err := afero.WriteFile(fs, path, []byte(page.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write dashboard: %w", err)
	}
	return path, nil
}

// scanReports reads the summary of every report under baseDir. Unreadable
// summaries are skipped.
func scanReports(fs afero.Fs, baseDir string) ([]DashboardEntry, error) {
	var entries []DashboardEntry
	err := afero.Walk(fs, baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != summaryFile {
			return nil
		}

		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil
		}
		var report RunReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil
		}

		rel, err := filepath.Rel(baseDir, filepath.Join(filepath.Dir(path), "index.html"))
		if err != nil {
			rel = path
		}
		entries = append(entries, DashboardEntry{
			TestName:     report.TestName,
			Timestamp:    report.Timestamp,
			Success:      report.Success,
			CaptureCount: len(report.Captures),
			TripCount:    len(report.Trips),
			Duration:     report.Duration.String(),
			RelativePath: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].TestName < entries[j].TestName
	})
	return entries, nil
}

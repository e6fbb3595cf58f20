package pagecam

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/teranos/pagecam/trip"
)

// CaptureDir returns where Capture moves screenshots to.
func (tc *TestCase) CaptureDir() string {
	return filepath.Join(tc.capture.SrcRoot, tc.capture.ArtifactsDir, "capture", "screens")
}

// AttachmentDir returns where attachments are written.
func (tc *TestCase) AttachmentDir() string {
	return filepath.Join(tc.capture.SrcRoot, tc.capture.ArtifactsDir, "attachments", sanitizeName(tc.t.Name()))
}

// Capture asks the application to write a screenshot of screen, waits for
// the file and moves it into CaptureDir. With a baseline directory
// configured, the capture is then compared against its baseline and a
// mismatch is recorded as a stumble.
func (p *Page) Capture(screen string, opts ...Option) *Page {
	p.tc.t.Helper()
	if p.halted() {
		return p
	}
	loc := newStepOptions(opts).location()

	source, err := p.tunnel.CaptureScreen(screen)
	if err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to capture %s: %v", screen, err), loc)
		return p
	}
	if !p.tc.awaitFile(source) {
		p.fail(trip.KindNotFound, fmt.Sprintf("Capture of %s was not written to %s", screen, source), loc)
		return p
	}

	dest := filepath.Join(p.tc.CaptureDir(), filepath.Base(source))
	if err := moveFile(p.tc.fs, source, dest); err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to move capture of %s: %v", screen, err), loc)
		return p
	}
	p.tc.Info("Captured screen", zap.String("screen", screen), zap.String("path", dest))
	p.tc.recordCapture(screen, dest, p.app)

	if p.tc.capture.BaselineDir != "" {
		p.compareCapture(screen, dest, loc)
	}
	return p
}

func (p *Page) compareCapture(screen, path string, loc trip.Location) {
	p.tc.t.Helper()
	data, err := afero.ReadFile(p.tc.fs, path)
	if err != nil {
		p.fail(trip.KindInteraction, fmt.Sprintf("Failed to read capture of %s: %v", screen, err), loc)
		return
	}

	comparer := p.tc.ScreenComparer()
	_, err = comparer.Compare(screen, data, filepath.Dir(path))
	var mismatch *VisualMismatchError
	switch {
	case err == nil:
	case errors.Is(err, ErrNoBaseline):
		if err := comparer.SetBaseline(screen, data); err != nil {
			p.tc.logger.Warn("Failed to record baseline", zap.String("screen", screen), zap.Error(err))
			return
		}
		p.tc.Info("Recorded baseline", zap.String("screen", screen))
	case errors.As(err, &mismatch):
		p.tc.recordTrip(trip.NewStumble(trip.KindVisual, mismatch.Error(), trip.Context{
			"screen": screen,
			"ratio":  fmt.Sprintf("%.4f", mismatch.Ratio),
		}).At(loc))
	default:
		p.fail(trip.KindMalformed, err.Error(), loc)
	}
}

// ScreenComparer returns a comparer over the configured baseline directory.
func (tc *TestCase) ScreenComparer() *ScreenComparer {
	return NewScreenComparer(tc.fs, tc.capture.BaselineDir, tc.capture.Tolerance, tc.capture.MaxDiffRatio)
}

// awaitFile polls for path to exist using the configured retry count and delay.
func (tc *TestCase) awaitFile(path string) bool {
	clk := tc.waiter.Clock()
	for attempt := 1; attempt <= tc.capture.RetryCount; attempt++ {
		if exists, _ := afero.Exists(tc.fs, path); exists {
			return true
		}
		if attempt < tc.capture.RetryCount {
			clk.Sleep(tc.capture.RetryDelay)
		}
	}
	return false
}

// moveFile renames source to dest, replacing dest. It falls back to copy and
// delete when the rename crosses filesystems.
func moveFile(fs afero.Fs, source, dest string) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if exists, _ := afero.Exists(fs, dest); exists {
		if err := fs.Remove(dest); err != nil {
			return fmt.Errorf("removing previous capture: %w", err)
		}
	}
	if err := fs.Rename(source, dest); err == nil {
		return nil
	}
	data, err := afero.ReadFile(fs, source)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, dest, data, 0o644); err != nil {
		return err
	}
	return fs.Remove(source)
}

// Attachment is a named blob kept alongside the test results.
type Attachment struct {
	Name string
	Data []byte
}

// TestLog builds an attachment from the log file at path.
func (tc *TestCase) TestLog(path string) (Attachment, error) {
	data, err := afero.ReadFile(tc.fs, path)
	if err != nil {
		return Attachment{}, fmt.Errorf("reading test log: %w", err)
	}
	return Attachment{Name: filepath.Base(path), Data: data}, nil
}

// AppErrorScreenshot builds a PNG attachment of the application's current
// screen. Applications that can't take screenshots get a rendering of their
// UI tree instead.
func (tc *TestCase) AppErrorScreenshot(app Application, name string) (Attachment, error) {
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	if shooter, ok := app.(Screenshotter); ok {
		data, err := shooter.Screenshot()
		if err == nil {
			return Attachment{Name: name, Data: data}, nil
		}
		tc.logger.Debug("Screenshot failed, rendering UI tree", zap.Error(err))
	}
	data, err := NewTextRenderer(DefaultRenderConfig()).RenderPNG(DumpTree(app))
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Name: name, Data: data}, nil
}

// Attach writes a to AttachmentDir under a unique name and logs its path.
// It returns the path written.
func (tc *TestCase) Attach(a Attachment) (string, error) {
	tc.t.Helper()
	dir := tc.AttachmentDir()
	if err := tc.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating attachment directory: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+"-"+sanitizeName(a.Name))
	if err := afero.WriteFile(tc.fs, path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing attachment: %w", err)
	}
	tc.t.Logf("attachment %s: %s", a.Name, path)
	tc.attachments = append(tc.attachments, path)
	return path, nil
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(name)
}

package pagecam

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNoBaseline is returned when a screen has no baseline to compare against.
var ErrNoBaseline = errors.New("pagecam: no baseline screenshot")

// ScreenComparer checks captured screens against baseline PNGs.
type ScreenComparer struct {
	fs           afero.Fs
	baselineDir  string
	tolerance    uint8   // Per-channel difference ignored, 0-255
	maxDiffRatio float64 // Share of differing pixels still accepted
}

// NewScreenComparer creates a comparer reading baselines from baselineDir.
func NewScreenComparer(fs afero.Fs, baselineDir string, tolerance int, maxDiffRatio float64) *ScreenComparer {
	tolerance = max(0, min(tolerance, 255))
	return &ScreenComparer{
		fs:           fs,
		baselineDir:  baselineDir,
		tolerance:    uint8(tolerance),
		maxDiffRatio: maxDiffRatio,
	}
}

// VisualMismatchError reports a capture that differs from its baseline.
type VisualMismatchError struct {
	Screen   string
	Ratio    float64
	Allowed  float64
	DiffPath string
}

func (e *VisualMismatchError) Error() string {
	msg := fmt.Sprintf("screen %s differs from baseline: %.2f%% of pixels (allowed %.2f%%)",
		e.Screen, e.Ratio*100, e.Allowed*100)
	if e.DiffPath != "" {
		msg += ", diff written to " + e.DiffPath
	}
	return msg
}

func (c *ScreenComparer) baselinePath(screen string) string {
	return filepath.Join(c.baselineDir, screen+".png")
}

// Compare decodes current and compares it with the baseline for screen. On
// a mismatch a diff image is written to diffDir, when set, and a
// *VisualMismatchError is returned.
func (c *ScreenComparer) Compare(screen string, current []byte, diffDir string) (float64, error) {
	baselineData, err := afero.ReadFile(c.fs, c.baselinePath(screen))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNoBaseline, screen)
	}
	if err != nil {
		return 0, fmt.Errorf("reading baseline: %w", err)
	}
	baseline, err := png.Decode(bytes.NewReader(baselineData))
	if err != nil {
		return 0, fmt.Errorf("decoding baseline %s: %w", screen, err)
	}
	actual, err := png.Decode(bytes.NewReader(current))
	if err != nil {
		return 0, fmt.Errorf("decoding capture %s: %w", screen, err)
	}

	ratio := DiffRatio(baseline, actual, c.tolerance)
	if ratio <= c.maxDiffRatio {
		return ratio, nil
	}

	mismatch := &VisualMismatchError{Screen: screen, Ratio: ratio, Allowed: c.maxDiffRatio}
	if diffDir != "" && baseline.Bounds() == actual.Bounds() {
		diffPath := filepath.Join(diffDir, screen+"_diff.png")
		if err := c.writeDiff(baseline, actual, diffPath); err == nil {
			mismatch.DiffPath = diffPath
		}
	}
	return ratio, mismatch
}

// SetBaseline stores data as the baseline for screen.
func (c *ScreenComparer) SetBaseline(screen string, data []byte) error {
	if err := c.fs.MkdirAll(c.baselineDir, 0o755); err != nil {
		return fmt.Errorf("creating baseline directory: %w", err)
	}
	return afero.WriteFile(c.fs, c.baselinePath(screen), data, 0o644)
}

// DiffRatio returns the share of pixels where any channel differs by more
// than tolerance. Images of different size are entirely different.
func DiffRatio(a, b image.Image, tolerance uint8) float64 {
	bounds := a.Bounds()
	if bounds != b.Bounds() {
		return 1
	}
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}

	different := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !similar(a.At(x, y), b.At(x, y), tolerance) {
				different++
			}
		}
	}
	return float64(different) / float64(total)
}

func similar(c1, c2 color.Color, tolerance uint8) bool {
	r1, g1, b1, a1 := c1.RGBA()
	r2, g2, b2, a2 := c2.RGBA()
	limit := uint32(tolerance)
	// Compare at 8 bits per channel, the resolution tolerance is given in.
	return channelDelta(r1>>8, r2>>8) <= limit &&
		channelDelta(g1>>8, g2>>8) <= limit &&
		channelDelta(b1>>8, b2>>8) <= limit &&
		channelDelta(a1>>8, a2>>8) <= limit
}

func channelDelta(x, y uint32) uint32 {
	if x > y {
		return x - y
	}
	return y - x
}

// writeDiff highlights differing pixels in red over a dimmed baseline.
func (c *ScreenComparer) writeDiff(baseline, current image.Image, path string) error {
	bounds := baseline.Bounds()
	diff := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			base := baseline.At(x, y)
			if !similar(base, current.At(x, y), c.tolerance) {
				diff.Set(x, y, color.RGBA{R: 255, A: 255})
				continue
			}
			r, g, b, _ := base.RGBA()
			diff.Set(x, y, color.RGBA{R: uint8(r >> 9), G: uint8(g >> 9), B: uint8(b >> 9), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, diff); err != nil {
		return err
	}
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, path, buf.Bytes(), 0o644)
}

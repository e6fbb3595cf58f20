package pagecam

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffRatio(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 2))
	b := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for _, img := range []*image.RGBA{a, b} {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				img.Set(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
			}
		}
	}
	assert.Zero(t, DiffRatio(a, b, 0))

	b.Set(0, 0, color.RGBA{R: 102, G: 100, B: 100, A: 255})
	assert.Equal(t, 0.25, DiffRatio(a, b, 0))
	assert.Zero(t, DiffRatio(a, b, 2), "within tolerance")

	assert.Equal(t, 1.0, DiffRatio(a, image.NewRGBA(image.Rect(0, 0, 3, 2)), 255))
	assert.Zero(t, DiffRatio(image.NewRGBA(image.Rectangle{}), image.NewRGBA(image.Rectangle{}), 0))
}

func TestScreenComparer(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewScreenComparer(fs, "/baselines", 2, 0.3)
	white := solidPNG(t, 2, 2, color.White)

	_, err := c.Compare("login", white, "")
	assert.ErrorIs(t, err, ErrNoBaseline)

	require.NoError(t, c.SetBaseline("login", white))
	ratio, err := c.Compare("login", white, "/diffs")
	require.NoError(t, err)
	assert.Zero(t, ratio)

	ratio, err = c.Compare("login", solidPNG(t, 2, 2, color.Black), "/diffs")
	var mismatch *VisualMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1.0, ratio)
	assert.Equal(t, "/diffs/login_diff.png", mismatch.DiffPath)
	assert.Equal(t, "screen login differs from baseline: 100.00% of pixels (allowed 30.00%), diff written to /diffs/login_diff.png", err.Error())

	// Different sizes can't be diffed pixel by pixel, so no diff image is written.
	_, err = c.Compare("login", solidPNG(t, 3, 3, color.White), "/diffs2")
	require.True(t, errors.As(err, &mismatch))
	assert.Empty(t, mismatch.DiffPath)

	_, err = c.Compare("login", []byte("not a png"), "")
	assert.ErrorContains(t, err, "decoding capture login")
}

func TestNewScreenComparer_ClampsTolerance(t *testing.T) {
	assert.Equal(t, uint8(255), NewScreenComparer(afero.NewMemMapFs(), "", 1000, 0).tolerance)
	assert.Equal(t, uint8(0), NewScreenComparer(afero.NewMemMapFs(), "", -5, 0).tolerance)
}

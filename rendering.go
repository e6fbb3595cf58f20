package pagecam

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RenderConfig defines the geometry and colours of rendered text screens.
type RenderConfig struct {
	Columns    int        // Width in characters
	Rows       int        // Height in characters, 0 grows to fit the text
	Background color.RGBA // Background colour
	Foreground color.RGBA // Text colour
}

// DefaultRenderConfig returns an 80 column, light-on-dark configuration.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Columns:    80,
		Background: color.RGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff},
		Foreground: color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
	}
}

// TextRenderer draws plain text screens into PNG images. It stands in for a
// screenshot when the application can't produce one.
type TextRenderer struct {
	config     RenderConfig
	charWidth  int
	charHeight int
	face       font.Face
}

// NewTextRenderer creates a renderer using the basicfont 7x13 face.
func NewTextRenderer(config RenderConfig) *TextRenderer {
	if config.Columns <= 0 {
		config.Columns = DefaultRenderConfig().Columns
	}
	return &TextRenderer{
		config:     config,
		charWidth:  7,
		charHeight: 13,
		face:       basicfont.Face7x13,
	}
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// StripANSI removes terminal escape sequences.
func StripANSI(text string) string {
	return ansiSequence.ReplaceAllString(text, "")
}

// lines splits text into the character grid, clipped to the configured size.
func (r *TextRenderer) lines(text string) [][]rune {
	raw := strings.Split(StripANSI(text), "\n")
	rows := r.config.Rows
	if rows <= 0 {
		rows = len(raw)
	}
	grid := make([][]rune, rows)
	for i := range grid {
		if i >= len(raw) {
			continue
		}
		line := []rune(raw[i])
		if len(line) > r.config.Columns {
			line = line[:r.config.Columns]
		}
		grid[i] = line
	}
	return grid
}

// Render draws text onto a new image.
func (r *TextRenderer) Render(text string) *image.RGBA {
	grid := r.lines(text)
	width := r.config.Columns * r.charWidth
	height := len(grid) * r.charHeight
	if height == 0 {
		height = r.charHeight
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.config.Background), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.config.Foreground),
		Face: r.face,
	}
	for row, line := range grid {
		for col, ch := range line {
			if ch == ' ' || ch == 0 {
				continue
			}
			drawer.Dot = fixed.P(col*r.charWidth, (row+1)*r.charHeight-2)
			drawer.DrawString(string(ch))
		}
	}
	return img
}

// RenderPNG draws text and encodes it as PNG.
func (r *TextRenderer) RenderPNG(text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Render(text)); err != nil {
		return nil, fmt.Errorf("encoding rendered screen: %w", err)
	}
	return buf.Bytes(), nil
}

// DumpTree describes every element of tree, one per line, in traversal order.
func DumpTree(tree UITree) string {
	var b strings.Builder
	for _, e := range tree.Elements(AnyElement, nil) {
		b.WriteString(e.Type().String())
		if label := e.Label(); label != "" {
			fmt.Fprintf(&b, " '%s'", label)
		}
		if id := e.Identifier(); id != "" {
			fmt.Fprintf(&b, " id=%s", id)
		}
		if value := e.Value(); value != "" {
			fmt.Fprintf(&b, " value=%q", value)
		}
		if !e.Enabled() {
			b.WriteString(" disabled")
		}
		if !e.Hittable() {
			b.WriteString(" offscreen")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

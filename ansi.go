package pagecam

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// basicPalette holds the 16 standard terminal colors.
var basicPalette = [16]string{
	"#000000", "#cd3131", "#0dbc79", "#e5e510", "#2472c8", "#bc3fbc", "#11a8cd", "#e5e5e5",
	"#666666", "#f14c4c", "#23d18b", "#f5f543", "#3b8eea", "#d670d6", "#29b8db", "#ffffff",
}

// sgrStyle is the text style selected by SGR sequences.
type sgrStyle struct {
	fg, bg    string
	bold      bool
	italic    bool
	underline bool
}

func (s sgrStyle) css() string {
	var parts []string
	if s.fg != "" {
		parts = append(parts, "color: "+s.fg)
	}
	if s.bg != "" {
		parts = append(parts, "background: "+s.bg)
	}
	if s.bold {
		parts = append(parts, "font-weight: bold")
	}
	if s.italic {
		parts = append(parts, "font-style: italic")
	}
	if s.underline {
		parts = append(parts, "text-decoration: underline")
	}
	return strings.Join(parts, "; ")
}

// ANSIToHTML converts terminal output into HTML for a <pre> block.
// Color and weight sequences become styled spans, text is escaped and
// every other escape sequence (cursor movement, clears) is dropped.
func ANSIToHTML(text string) template.HTML {
	var (
		out   strings.Builder
		style sgrStyle
		open  bool
		plain strings.Builder
	)
	flush := func() {
		out.WriteString(template.HTMLEscapeString(plain.String()))
		plain.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\r':
			continue
		case c == '\x1b' && i+1 < len(text) && text[i+1] == '[':
			end := i + 2
			for end < len(text) && (text[end] < 0x40 || text[end] > 0x7e) {
				end++
			}
			if end == len(text) {
				i = end
				continue
			}
			if text[end] == 'm' {
				flush()
				style = style.apply(text[i+2 : end])
				if open {
					out.WriteString("</span>")
					open = false
				}
				if css := style.css(); css != "" {
					fmt.Fprintf(&out, `<span style="%s">`, css)
					open = true
				}
			}
			i = end
		default:
			plain.WriteByte(c)
		}
	}
	flush()
	if open {
		out.WriteString("</span>")
	}
	return template.HTML(out.String())
}

// apply returns the style after the SGR parameter list params.
func (s sgrStyle) apply(params string) sgrStyle {
	if params == "" {
		return sgrStyle{}
	}
	codes := strings.Split(params, ";")
	for i := 0; i < len(codes); i++ {
		code, err := strconv.Atoi(codes[i])
		if err != nil {
			continue
		}
		switch {
		case code == 0:
			s = sgrStyle{}
		case code == 1:
			s.bold = true
		case code == 3:
			s.italic = true
		case code == 4:
			s.underline = true
		case code == 22:
			s.bold = false
		case code == 23:
			s.italic = false
		case code == 24:
			s.underline = false
		case code >= 30 && code <= 37:
			s.fg = basicPalette[code-30]
		case code >= 90 && code <= 97:
			s.fg = basicPalette[code-90+8]
		case code == 39:
			s.fg = ""
		case code >= 40 && code <= 47:
			s.bg = basicPalette[code-40]
		case code >= 100 && code <= 107:
			s.bg = basicPalette[code-100+8]
		case code == 49:
			s.bg = ""
		case code == 38 || code == 48:
			color, used := extendedColor(codes[i+1:])
			i += used
			if code == 38 {
				s.fg = color
			} else {
				s.bg = color
			}
		}
	}
	return s
}

// extendedColor parses the arguments of a 38 or 48 code, either "5;n" or
// "2;r;g;b". It returns the color and how many arguments it consumed.
func extendedColor(args []string) (string, int) {
	if len(args) == 0 {
		return "", 0
	}
	num := func(i int) int {
		if i >= len(args) {
			return 0
		}
		n, _ := strconv.Atoi(args[i])
		return min(max(n, 0), 255)
	}
	switch args[0] {
	case "5":
		return xterm256(num(1)), min(2, len(args))
	case "2":
		return fmt.Sprintf("#%02x%02x%02x", num(1), num(2), num(3)), min(4, len(args))
	}
	return "", 1
}

// xterm256 returns the hex color of entry n in the xterm 256-color palette.
func xterm256(n int) string {
	switch {
	case n < 16:
		return basicPalette[n]
	case n < 232:
		levels := [6]int{0, 95, 135, 175, 215, 255}
		n -= 16
		return fmt.Sprintf("#%02x%02x%02x", levels[n/36], levels[(n/6)%6], levels[n%6])
	default:
		gray := 8 + 10*(n-232)
		return fmt.Sprintf("#%02x%02x%02x", gray, gray, gray)
	}
}

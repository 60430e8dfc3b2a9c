// Package cells lays formatted text out on a fixed-width grid for the
// terminal surfaces.
package cells

import (
	colorful "github.com/lucasb-eyer/go-colorful"
	"pkt.systems/mdreveal"
)

// Span is one visual line: the rune interval [Start, End) of the text.
type Span struct {
	Start int
	End   int
}

// Measure returns the display width of s in columns.
type Measure func(s string) int

// Wrap breaks text into visual lines no wider than width. Hard newlines
// always break; long lines break at the last space that fits, and words
// wider than a line are split between characters. Spaces at a soft break
// are not part of either line. A width <= 0 disables wrapping.
func Wrap(text []rune, width int, measure Measure) []Span {
	var out []Span
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			out = wrapLine(out, text, start, i, width, measure)
			start = i + 1
		}
	}
	return out
}

func wrapLine(out []Span, text []rune, lo, hi, width int, measure Measure) []Span {
	if width <= 0 || measure(string(text[lo:hi])) <= width {
		return append(out, Span{Start: lo, End: hi})
	}
	lineStart, lineEnd, lineWidth := lo, lo, 0
	for i := lo; i < hi; {
		space := text[i] == ' '
		j := i
		for j < hi && (text[j] == ' ') == space {
			j++
		}
		w := measure(string(text[i:j]))
		switch {
		case space:
			if lineWidth+w > width {
				out = append(out, Span{Start: lineStart, End: lineEnd})
				lineStart, lineEnd, lineWidth = j, j, 0
			} else {
				lineWidth += w
			}
		case lineWidth+w <= width:
			lineWidth += w
			lineEnd = j
		default:
			if lineEnd > lineStart {
				out = append(out, Span{Start: lineStart, End: lineEnd})
				lineStart, lineEnd, lineWidth = i, i, 0
			}
			if lineWidth+w <= width {
				lineWidth += w
				lineEnd = j
				break
			}
			for k := i; k < j; k++ {
				rw := measure(string(text[k]))
				if lineWidth > 0 && lineWidth+rw > width {
					out = append(out, Span{Start: lineStart, End: lineEnd})
					lineStart, lineWidth = k, 0
				}
				lineWidth += rw
				lineEnd = k + 1
			}
		}
		i = j
	}
	return append(out, Span{Start: lineStart, End: lineEnd})
}

// Colors returns the foreground and background a cell is drawn with. text and
// background are the surface defaults. A faded cell has its foreground
// blended toward its background by the fade alpha.
func Colors(s mdreveal.CellStyle, text, background mdreveal.Color) (fg, bg mdreveal.Color) {
	fg, bg = text, background
	if s.HasForeground {
		fg = s.Foreground
	}
	if s.HasBackground {
		bg = s.Background
	}
	if s.Faded() {
		fg = Blend(bg, fg, float64(s.Alpha)/255)
	}
	return fg, bg
}

// Blend interpolates from one colour to another in RGB space; t=0 yields
// from, t=1 yields to.
func Blend(from, to mdreveal.Color, t float64) mdreveal.Color {
	c := toColorful(from).BlendRgb(toColorful(to), t).Clamped()
	r, g, b := c.RGB255()
	return mdreveal.Color{R: r, G: g, B: b}
}

func toColorful(c mdreveal.Color) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

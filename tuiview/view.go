// Package tuiview draws a reveal on a full-screen tcell terminal. The view
// follows the tail of the text: when it is taller than the screen the last
// lines stay visible.
package tuiview

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/cells"
)

const imageGlyph = '▣'

// Option configures a View.
type Option func(*View)

// WithColors sets the default text colour and the background faded text
// blends into. The background also fills the screen.
func WithColors(text, background mdreveal.Color) Option {
	return func(v *View) {
		v.text = text
		v.background = background
	}
}

// WithMargin leaves columns blank on both sides of the text.
func WithMargin(columns int) Option {
	return func(v *View) {
		if columns >= 0 {
			v.margin = columns
		}
	}
}

// View is a mdreveal.Surface on a tcell.Screen. The caller owns the screen:
// it initialises it before the first Show and finalises it afterwards.
type View struct {
	mu         sync.Mutex
	screen     tcell.Screen
	text       mdreveal.Color
	background mdreveal.Color
	margin     int
	last       mdreveal.FormatBuffer
	top        int
}

// New creates a View drawing on screen.
func New(screen tcell.Screen, opts ...Option) *View {
	v := &View{
		screen:     screen,
		text:       mdreveal.MustHex("#dddddd"),
		background: mdreveal.MustHex("#000000"),
		margin:     1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Show draws buf and makes it visible.
func (v *View) Show(buf mdreveal.FormatBuffer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = buf
	v.draw()
}

// Redraw draws the last buffer again, e.g. after a resize.
func (v *View) Redraw() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screen.Sync()
	v.draw()
}

// Top returns the index of the first visual line on screen.
func (v *View) Top() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

func (v *View) draw() {
	fill := tcell.StyleDefault.Background(color(v.background))
	v.screen.SetStyle(fill)
	v.screen.Clear()

	width, height := v.screen.Size()
	textWidth := width - 2*v.margin
	if textWidth < 1 {
		textWidth = 1
	}
	text := []rune(v.last.Text())
	paint := v.last.Paint()
	lines := cells.Wrap(text, textWidth, runewidth.StringWidth)

	v.top = 0
	if len(lines) > height {
		v.top = len(lines) - height
	}
	for row, sp := range lines[v.top:] {
		x := v.margin
		for i := sp.Start; i < sp.End; i++ {
			r := text[i]
			if r == '\ufffc' {
				r = imageGlyph
			}
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			if x+w > width {
				break
			}
			v.screen.SetContent(x, row, r, nil, v.style(paint[i]))
			x += w
		}
	}
	v.screen.Show()
}

func (v *View) style(cs mdreveal.CellStyle) tcell.Style {
	fg, bg := cells.Colors(cs, v.text, v.background)
	st := tcell.StyleDefault.
		Foreground(color(fg)).
		Background(color(bg)).
		Bold(cs.Bold).
		Italic(cs.Italic).
		StrikeThrough(cs.Strikethrough)
	if cs.Underline {
		st = st.Underline(true)
	}
	if cs.Link != "" {
		st = st.Url(cs.Link)
	}
	return st
}

func color(c mdreveal.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// Package termview draws a reveal on an ANSI terminal. Every update redraws
// the whole block in place: the cursor moves back to the first line of the
// previous frame, the rest of the screen is erased and the new frame is
// written.
package termview

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/termenv"
	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/cells"
	"pkt.systems/mdreveal/internal/logging"
)

// DefaultWidth is the wrap width used when none is configured.
const DefaultWidth = 80

const imageGlyph = "▣"

var (
	defaultText       = mdreveal.MustHex("#dddddd")
	defaultBackground = mdreveal.MustHex("#000000")
)

// Option configures a View.
type Option func(*View)

// WithWidth sets the wrap width in columns. Zero disables wrapping.
func WithWidth(width int) Option {
	return func(v *View) {
		if width >= 0 {
			v.width = width
		}
	}
}

// WithOSC8 turns OSC 8 hyperlinks on or off.
func WithOSC8(enabled bool) Option {
	return func(v *View) { v.osc8 = enabled }
}

// WithProfile forces a colour profile instead of detecting one from the writer.
func WithProfile(profile termenv.Profile) Option {
	return func(v *View) { v.renderer.SetColorProfile(profile) }
}

// WithColors sets the default text colour and the background faded text
// blends into.
func WithColors(text, background mdreveal.Color) Option {
	return func(v *View) {
		v.text = text
		v.background = background
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger *log.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.log = logger
		}
	}
}

// View is a mdreveal.Surface on an io.Writer.
type View struct {
	mu         sync.Mutex
	w          io.Writer
	renderer   *lipgloss.Renderer
	width      int
	osc8       bool
	text       mdreveal.Color
	background mdreveal.Color
	styles     map[runStyle]lipgloss.Style
	drawn      int
	err        error
	log        *log.Logger
}

type runStyle struct {
	fg, bg        mdreveal.Color
	paintBg       bool
	bold          bool
	italic        bool
	underline     bool
	strikethrough bool
}

// New creates a View writing to w.
func New(w io.Writer, opts ...Option) *View {
	v := &View{
		w:          w,
		renderer:   lipgloss.NewRenderer(w),
		width:      DefaultWidth,
		text:       defaultText,
		background: defaultBackground,
		styles:     make(map[runStyle]lipgloss.Style),
		log:        logging.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	v.log = v.log.WithPrefix("termview")
	return v
}

// Show redraws the frame with buf.
func (v *View) Show(buf mdreveal.FormatBuffer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	lines := v.render(buf)
	frame := v.rewind() + strings.Join(lines, "\n")
	v.drawn = len(lines)
	if _, err := io.WriteString(v.w, frame); err != nil && v.err == nil {
		v.err = fmt.Errorf("termview: write: %w", err)
		v.log.Warn("terminal write failed", logging.FieldError, err)
	}
}

// Render returns buf laid out and styled as it would be drawn, without any
// cursor movement.
func (v *View) Render(buf mdreveal.FormatBuffer) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return strings.Join(v.render(buf), "\n")
}

// Finish ends the frame so later output starts on a fresh line. The next Show
// starts a new frame below. It returns the first write error, if any.
func (v *View) Finish() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.drawn > 0 {
		if _, err := io.WriteString(v.w, "\n"); err != nil && v.err == nil {
			v.err = fmt.Errorf("termview: write: %w", err)
		}
		v.drawn = 0
	}
	return v.err
}

// Err returns the first write error.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *View) rewind() string {
	switch v.drawn {
	case 0:
		return ""
	case 1:
		return "\r" + termenv.CSI + fmt.Sprintf(termenv.EraseDisplaySeq, 0)
	default:
		return termenv.CSI + fmt.Sprintf(termenv.CursorPreviousLineSeq, v.drawn-1) +
			termenv.CSI + fmt.Sprintf(termenv.EraseDisplaySeq, 0)
	}
}

func (v *View) render(buf mdreveal.FormatBuffer) []string {
	text := []rune(buf.Text())
	paint := buf.Paint()
	spans := cells.Wrap(text, v.width, ansi.PrintableRuneWidth)
	lines := make([]string, 0, len(spans))
	var sb strings.Builder
	for _, sp := range spans {
		sb.Reset()
		for i := sp.Start; i < sp.End; {
			j := i + 1
			for j < sp.End && paint[j] == paint[i] && (text[j] == '\ufffc') == (text[i] == '\ufffc') {
				j++
			}
			run := string(text[i:j])
			if text[i] == '\ufffc' {
				run = strings.Repeat(imageGlyph, j-i)
			}
			v.writeRun(&sb, run, paint[i])
			i = j
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func (v *View) writeRun(sb *strings.Builder, s string, cs mdreveal.CellStyle) {
	fg, bg := cells.Colors(cs, v.text, v.background)
	key := runStyle{
		fg:            fg,
		bg:            bg,
		paintBg:       cs.HasBackground,
		bold:          cs.Bold,
		italic:        cs.Italic,
		underline:     cs.Underline,
		strikethrough: cs.Strikethrough,
	}
	style, ok := v.styles[key]
	if !ok {
		style = v.newStyle(key)
		v.styles[key] = style
	}
	out := style.Render(s)
	if v.osc8 && cs.Link != "" {
		out = hyperlink(cs.Link, out)
	}
	sb.WriteString(out)
}

func (v *View) newStyle(k runStyle) lipgloss.Style {
	style := v.renderer.NewStyle().
		Inline(true).
		Foreground(lipgloss.Color(k.fg.Hex())).
		Bold(k.bold).
		Italic(k.italic).
		Underline(k.underline).
		Strikethrough(k.strikethrough)
	if k.paintBg {
		style = style.Background(lipgloss.Color(k.bg.Hex()))
	}
	return style
}

// Package styler turns Markdown into mdreveal.FormatBuffer values.
//
// Grammar parsing is goldmark's (CommonMark plus GFM tables, strikethrough,
// task lists and autolinks). The styler walks the AST, writes display text
// and records formatting ranges: headings, emphasis, links, images as object
// placeholders, quotes, lists, highlighted code and tables. Table rows are
// laid out through a rowcache.Cache so rows that are already complete are
// reused while a document streams in.
package styler

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"
	"pkt.systems/mdreveal/rowcache"
)

// Styler implements mdreveal.Parser and mdreveal.StreamStateObserver.
type Styler struct {
	md           goldmark.Markdown
	theme        Theme
	cache        *rowcache.Cache
	log          *log.Logger
	maxCellWidth int
	detect       bool
	ruleWidth    int
}

// Option configures a Styler.
type Option func(*Styler)

// WithTheme sets the colour theme.
func WithTheme(t Theme) Option {
	return func(s *Styler) {
		if t != nil {
			s.theme = t
		}
	}
}

// WithRowCache shares a row cache, for example with a test or a second view.
func WithRowCache(c *rowcache.Cache) Option {
	return func(s *Styler) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Styler) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithMaxCellWidth truncates table cells wider than n columns. Zero disables it.
func WithMaxCellWidth(n int) Option {
	return func(s *Styler) {
		if n >= 0 {
			s.maxCellWidth = n
		}
	}
}

// WithLanguageDetection toggles guessing the language of code blocks that
// have no info string.
func WithLanguageDetection(enabled bool) Option {
	return func(s *Styler) {
		s.detect = enabled
	}
}

// WithRuleWidth sets the width of thematic breaks.
func WithRuleWidth(n int) Option {
	return func(s *Styler) {
		if n > 0 {
			s.ruleWidth = n
		}
	}
}

// New returns a Styler with the default theme.
func New(opts ...Option) *Styler {
	s := &Styler{
		md:           goldmark.New(goldmark.WithExtensions(extension.GFM)),
		theme:        DefaultTheme(),
		maxCellWidth: 40,
		detect:       true,
		ruleWidth:    24,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	s.log = s.log.WithPrefix("styler")
	if s.cache == nil {
		s.cache = rowcache.New(rowcache.WithLogger(s.log))
	}
	return s
}

// Theme returns the active theme.
func (s *Styler) Theme() Theme { return s.theme }

// RowCache returns the table row cache.
func (s *Styler) RowCache() *rowcache.Cache { return s.cache }

// OnStreamStateChanged forwards the stream signal to the row cache.
func (s *Styler) OnStreamStateChanged(streaming bool) {
	s.cache.OnStreamStateChanged(streaming)
}

// Parse renders source. It fails only if the Markdown library panics.
func (s *Styler) Parse(source string) (buf mdreveal.FormatBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("styler: parse: %v", r)
		}
	}()
	src := []byte(source)
	s.cache.BeginGeneration(source)
	doc := s.md.Parser().Parse(text.NewReader(src))
	r := newRenderer(s, src)
	r.blocks(doc, false)
	r.bd.TrimTrailingNewlines()
	return r.bd.Build(), nil
}

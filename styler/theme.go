package styler

import (
	"sort"
	"strings"

	"pkt.systems/mdreveal"
)

// Styles groups the semantic colours used by the styler and the surfaces.
type Styles struct {
	Text          mdreveal.Color
	Background    mdreveal.Color
	Heading       [6]mdreveal.Color
	Emphasis      mdreveal.Color
	Strong        mdreveal.Color
	CodeInline    mdreveal.Color
	Quote         mdreveal.Color
	ListMarker    mdreveal.Color
	Link          mdreveal.Color
	ThematicBreak mdreveal.Color
	TableHeader   mdreveal.Color
	TableStripe   mdreveal.Color
	// Chroma names the chroma style used for fenced code.
	Chroma string
}

// Theme provides named styles for Markdown rendering.
type Theme interface {
	Name() string
	Styles() Styles
}

type theme struct {
	name   string
	styles Styles
}

func (t theme) Name() string   { return t.name }
func (t theme) Styles() Styles { return t.styles }

// NewTheme returns a Theme from a Styles definition.
func NewTheme(name string, styles Styles) Theme {
	return theme{name: name, styles: styles}
}

type palette struct {
	text, bg, emph, strong, code, quote, marker, link, rule, header, stripe string
	headings                                                                [6]string
	chroma                                                                  string
}

func (p palette) styles() Styles {
	s := Styles{
		Text:          mdreveal.MustHex(p.text),
		Background:    mdreveal.MustHex(p.bg),
		Emphasis:      mdreveal.MustHex(p.emph),
		Strong:        mdreveal.MustHex(p.strong),
		CodeInline:    mdreveal.MustHex(p.code),
		Quote:         mdreveal.MustHex(p.quote),
		ListMarker:    mdreveal.MustHex(p.marker),
		Link:          mdreveal.MustHex(p.link),
		ThematicBreak: mdreveal.MustHex(p.rule),
		TableHeader:   mdreveal.MustHex(p.header),
		TableStripe:   mdreveal.MustHex(p.stripe),
		Chroma:        p.chroma,
	}
	for i, h := range p.headings {
		s.Heading[i] = mdreveal.MustHex(h)
	}
	return s
}

var palettes = map[string]palette{
	"default": {
		text: "#d0d0d0", bg: "#1c1c1c", emph: "#d7afd7", strong: "#ffffff", code: "#ffaf5f",
		quote: "#8a8a8a", marker: "#5fafff", link: "#5fafff", rule: "#585858", header: "#87d7ff", stripe: "#262626",
		headings: [6]string{"#5fafff", "#5fd7ff", "#87d7af", "#afd787", "#d7d787", "#d7af87"},
		chroma:   "monokai",
	},
	"gruvbox": {
		text: "#ebdbb2", bg: "#282828", emph: "#d3869b", strong: "#fe8019", code: "#fabd2f",
		quote: "#928374", marker: "#fe8019", link: "#83a598", rule: "#504945", header: "#fabd2f", stripe: "#3c3836",
		headings: [6]string{"#fb4934", "#fabd2f", "#b8bb26", "#8ec07c", "#83a598", "#d3869b"},
		chroma:   "gruvbox",
	},
	"dracula": {
		text: "#f8f8f2", bg: "#282a36", emph: "#f1fa8c", strong: "#ffb86c", code: "#50fa7b",
		quote: "#6272a4", marker: "#ff79c6", link: "#8be9fd", rule: "#44475a", header: "#bd93f9", stripe: "#343746",
		headings: [6]string{"#bd93f9", "#ff79c6", "#8be9fd", "#50fa7b", "#f1fa8c", "#ffb86c"},
		chroma:   "dracula",
	},
	"nord": {
		text: "#d8dee9", bg: "#2e3440", emph: "#b48ead", strong: "#eceff4", code: "#a3be8c",
		quote: "#616e88", marker: "#88c0d0", link: "#88c0d0", rule: "#434c5e", header: "#88c0d0", stripe: "#3b4252",
		headings: [6]string{"#88c0d0", "#81a1c1", "#5e81ac", "#8fbcbb", "#a3be8c", "#ebcb8b"},
		chroma:   "nord",
	},
	"tokyo-night": {
		text: "#a9b1d6", bg: "#1a1b26", emph: "#bb9af7", strong: "#c0caf5", code: "#9ece6a",
		quote: "#565f89", marker: "#7aa2f7", link: "#7dcfff", rule: "#3b4261", header: "#7aa2f7", stripe: "#24283b",
		headings: [6]string{"#7aa2f7", "#bb9af7", "#7dcfff", "#9ece6a", "#e0af68", "#f7768e"},
		chroma:   "tokyonight-night",
	},
	"catppuccin-mocha": {
		text: "#cdd6f4", bg: "#1e1e2e", emph: "#f5c2e7", strong: "#fab387", code: "#a6e3a1",
		quote: "#7f849c", marker: "#89b4fa", link: "#89dceb", rule: "#45475a", header: "#cba6f7", stripe: "#313244",
		headings: [6]string{"#f38ba8", "#fab387", "#f9e2af", "#a6e3a1", "#89b4fa", "#cba6f7"},
		chroma:   "catppuccin-mocha",
	},
	"solarized-dark": {
		text: "#839496", bg: "#002b36", emph: "#6c71c4", strong: "#93a1a1", code: "#2aa198",
		quote: "#586e75", marker: "#268bd2", link: "#268bd2", rule: "#073642", header: "#b58900", stripe: "#073642",
		headings: [6]string{"#268bd2", "#2aa198", "#859900", "#b58900", "#cb4b16", "#d33682"},
		chroma:   "solarized-dark",
	},
	"github-light": {
		text: "#24292f", bg: "#ffffff", emph: "#8250df", strong: "#24292f", code: "#cf222e",
		quote: "#57606a", marker: "#0969da", link: "#0969da", rule: "#d0d7de", header: "#0550ae", stripe: "#f6f8fa",
		headings: [6]string{"#0550ae", "#0550ae", "#116329", "#953800", "#8250df", "#6e7781"},
		chroma:   "github",
	},
}

var builtinThemes = func() map[string]Theme {
	out := make(map[string]Theme, len(palettes))
	for name, p := range palettes {
		out[name] = theme{name: name, styles: p.styles()}
	}
	return out
}()

// AvailableThemes returns the names of built-in themes.
func AvailableThemes() []string {
	names := make([]string, 0, len(builtinThemes))
	for name := range builtinThemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeByName returns a built-in theme by name.
func ThemeByName(name string) (Theme, bool) {
	if name == "" {
		return builtinThemes["default"], true
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	theme, ok := builtinThemes[normalized]
	return theme, ok
}

// DefaultTheme returns the default built-in theme.
func DefaultTheme() Theme {
	return builtinThemes["default"]
}

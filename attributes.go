package mdreveal

import "fmt"

// Attribute is a formatting directive carried by a Range. The reveal engine
// treats attributes as opaque values; only Fade is interpreted by it.
type Attribute interface {
	AttributeName() string
}

// Color is a 24-bit RGB colour.
type Color struct {
	R, G, B uint8
}

// Hex returns the colour as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rgb or #rrggbb. Invalid input yields the zero colour and false.
func ParseHex(s string) (Color, bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var v [6]uint8
	switch len(s) {
	case 3:
		for i := 0; i < 3; i++ {
			n, ok := hexNibble(s[i])
			if !ok {
				return Color{}, false
			}
			v[i*2], v[i*2+1] = n, n
		}
	case 6:
		for i := 0; i < 6; i++ {
			n, ok := hexNibble(s[i])
			if !ok {
				return Color{}, false
			}
			v[i] = n
		}
	default:
		return Color{}, false
	}
	return Color{R: v[0]<<4 | v[1], G: v[2]<<4 | v[3], B: v[4]<<4 | v[5]}, true
}

// MustHex is ParseHex for package-level tables; it panics on bad input.
func MustHex(s string) Color {
	c, ok := ParseHex(s)
	if !ok {
		panic("mdreveal: invalid colour " + s)
	}
	return c
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// Foreground sets the text colour.
type Foreground struct{ Color Color }

// Background sets the colour behind the text.
type Background struct{ Color Color }

// Bold marks strong text.
type Bold struct{}

// Italic marks emphasised text.
type Italic struct{}

// Underline marks underlined text.
type Underline struct{}

// Strikethrough marks struck-out text.
type Strikethrough struct{}

// Code marks an inline code span.
type Code struct{}

// CodeBlock marks a fenced or indented code block.
type CodeBlock struct{ Lang string }

// Heading marks a heading of the given level (1-6).
type Heading struct{ Level int }

// Quote marks block quote content at the given nesting depth.
type Quote struct{ Depth int }

// Link is a click target.
type Link struct {
	URL   string
	Title string
}

// Image marks an image placeholder character.
type Image struct {
	Src string
	Alt string
}

// FontScale scales the font size relative to the body text.
type FontScale struct{ Scale float64 }

// Fade is the opacity overlay painted by the fade window. Alpha 0 is fully
// transparent, 255 fully opaque.
type Fade struct{ Alpha uint8 }

func (Foreground) AttributeName() string    { return "foreground" }
func (Background) AttributeName() string    { return "background" }
func (Bold) AttributeName() string          { return "bold" }
func (Italic) AttributeName() string        { return "italic" }
func (Underline) AttributeName() string     { return "underline" }
func (Strikethrough) AttributeName() string { return "strikethrough" }
func (Code) AttributeName() string          { return "code" }
func (CodeBlock) AttributeName() string     { return "code-block" }
func (Heading) AttributeName() string       { return "heading" }
func (Quote) AttributeName() string         { return "quote" }
func (Link) AttributeName() string          { return "link" }
func (Image) AttributeName() string         { return "image" }
func (FontScale) AttributeName() string     { return "font-scale" }
func (Fade) AttributeName() string          { return "fade" }

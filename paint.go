package mdreveal

// CellStyle is the resolved look of one character after every range covering
// it has been painted in order.
type CellStyle struct {
	Foreground    Color
	Background    Color
	HasForeground bool
	HasBackground bool
	Bold          bool
	Italic        bool
	Underline     bool
	Strikethrough bool
	Link          string
	// Alpha is the opacity of the character; 255 unless a Fade covers it.
	Alpha uint8
}

// Faded reports whether the character is drawn with reduced opacity.
func (s CellStyle) Faded() bool {
	return s.Alpha < 255
}

// Paint resolves the style of every character in buf. Ranges are applied in
// paint order, so a later range wins over an earlier one for the same
// property. Attributes a terminal cannot express are ignored.
func (b FormatBuffer) Paint() []CellStyle {
	styles := make([]CellStyle, len(b.text))
	for i := range styles {
		styles[i].Alpha = 255
	}
	for _, r := range b.ranges {
		for i := r.Start; i < r.End; i++ {
			applyAttr(&styles[i], r.Attr)
		}
	}
	return styles
}

func applyAttr(s *CellStyle, attr Attribute) {
	switch a := attr.(type) {
	case Foreground:
		s.Foreground, s.HasForeground = a.Color, true
	case Background:
		s.Background, s.HasBackground = a.Color, true
	case Bold:
		s.Bold = true
	case Italic:
		s.Italic = true
	case Underline:
		s.Underline = true
	case Strikethrough:
		s.Strikethrough = true
	case Link:
		s.Link = a.URL
		s.Underline = true
	case Image:
		s.Link = a.Src
	case Fade:
		s.Alpha = a.Alpha
	}
}

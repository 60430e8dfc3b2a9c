package mdreveal

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Range applies an attribute to the half-open rune interval [Start, End).
type Range struct {
	Start    int
	End      int
	Attr     Attribute
	Priority int
}

// Len returns the number of runes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// FormatBuffer is formatted text: runes plus ranges in paint order. A
// FormatBuffer is never mutated after construction; every transformation
// returns a new value that may share storage with its input.
type FormatBuffer struct {
	text    []rune
	ranges  []Range
	clamped int
}

// NewFormatBuffer builds a buffer from text and ranges. Ranges that fall
// outside the text or have Start > End are clamped; Clamped reports how many.
func NewFormatBuffer(text string, ranges ...Range) FormatBuffer {
	runes := []rune(text)
	return newBuffer(runes, append([]Range(nil), ranges...))
}

func newBuffer(runes []rune, ranges []Range) FormatBuffer {
	n := len(runes)
	clamped := 0
	for i := range ranges {
		r := ranges[i]
		s, e := r.Start, r.End
		if s < 0 {
			s = 0
		}
		if s > n {
			s = n
		}
		if e > n {
			e = n
		}
		if e < s {
			e = s
		}
		if s != r.Start || e != r.End {
			ranges[i].Start, ranges[i].End = s, e
			clamped++
		}
	}
	return FormatBuffer{text: runes, ranges: ranges, clamped: clamped}
}

// Len returns the text length in runes.
func (b FormatBuffer) Len() int {
	return len(b.text)
}

// Text returns the text as a string.
func (b FormatBuffer) Text() string {
	return string(b.text)
}

// Slice returns the text of the rune interval [start, end), clamped to the buffer.
func (b FormatBuffer) Slice(start, end int) string {
	start = clampInt(start, 0, len(b.text))
	end = clampInt(end, start, len(b.text))
	return string(b.text[start:end])
}

// Ranges returns a copy of the ranges in paint order.
func (b FormatBuffer) Ranges() []Range {
	return append([]Range(nil), b.ranges...)
}

// RangeCount returns the number of ranges.
func (b FormatBuffer) RangeCount() int {
	return len(b.ranges)
}

// Clamped reports how many ranges were clamped into bounds when the buffer was built.
func (b FormatBuffer) Clamped() int {
	return b.clamped
}

// IsZero reports whether the buffer has neither text nor ranges.
func (b FormatBuffer) IsZero() bool {
	return len(b.text) == 0 && len(b.ranges) == 0
}

// Equal reports whether two buffers carry the same text and ranges.
// Attributes are compared with ==.
func (b FormatBuffer) Equal(o FormatBuffer) bool {
	if len(b.text) != len(o.text) || len(b.ranges) != len(o.ranges) {
		return false
	}
	for i := range b.text {
		if b.text[i] != o.text[i] {
			return false
		}
	}
	for i := range b.ranges {
		if b.ranges[i] != o.ranges[i] {
			return false
		}
	}
	return true
}

// At returns the ranges covering rune index i, in paint order.
func (b FormatBuffer) At(i int) []Range {
	var out []Range
	for _, r := range b.ranges {
		if r.Start <= i && i < r.End {
			out = append(out, r)
		}
	}
	return out
}

// Concat appends other after b, shifting other's ranges by b.Len().
func (b FormatBuffer) Concat(other FormatBuffer) FormatBuffer {
	runes := make([]rune, 0, len(b.text)+len(other.text))
	runes = append(runes, b.text...)
	runes = append(runes, other.text...)
	ranges := make([]Range, 0, len(b.ranges)+len(other.ranges))
	ranges = append(ranges, b.ranges...)
	shift := len(b.text)
	for _, r := range other.ranges {
		r.Start += shift
		r.End += shift
		ranges = append(ranges, r)
	}
	return FormatBuffer{text: runes, ranges: ranges}
}

// String returns the text.
func (b FormatBuffer) String() string {
	return b.Text()
}

// Builder assembles a FormatBuffer incrementally. Offsets are in runes.
type Builder struct {
	text   []rune
	ranges []Range
}

// Len returns the number of runes written so far.
func (bd *Builder) Len() int {
	return len(bd.text)
}

// WriteString appends text and returns the rune interval it occupies.
func (bd *Builder) WriteString(s string) (start, end int) {
	start = len(bd.text)
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		bd.text = append(bd.text, r)
		s = s[size:]
	}
	return start, len(bd.text)
}

// WriteRune appends a single rune.
func (bd *Builder) WriteRune(r rune) {
	bd.text = append(bd.text, r)
}

// LastRune returns the last rune written, or 0.
func (bd *Builder) LastRune() rune {
	if len(bd.text) == 0 {
		return 0
	}
	return bd.text[len(bd.text)-1]
}

// EnsureNewline writes a newline unless the text is empty or already ends in one.
func (bd *Builder) EnsureNewline() {
	if len(bd.text) > 0 && bd.text[len(bd.text)-1] != '\n' {
		bd.text = append(bd.text, '\n')
	}
}

// TrimTrailingNewlines removes newlines at the end of the text and clips
// ranges accordingly.
func (bd *Builder) TrimTrailingNewlines() {
	n := len(bd.text)
	for n > 0 && bd.text[n-1] == '\n' {
		n--
	}
	bd.text = bd.text[:n]
	for i := range bd.ranges {
		if bd.ranges[i].End > n {
			bd.ranges[i].End = n
		}
		if bd.ranges[i].Start > n {
			bd.ranges[i].Start = n
		}
	}
}

// Add records a range. Ranges keep the order in which they were added.
func (bd *Builder) Add(start, end int, attr Attribute, priority int) {
	bd.ranges = append(bd.ranges, Range{Start: start, End: end, Attr: attr, Priority: priority})
}

// Styled writes s and applies every attribute to it at priority 0.
func (bd *Builder) Styled(s string, attrs ...Attribute) (start, end int) {
	start, end = bd.WriteString(s)
	for _, a := range attrs {
		bd.Add(start, end, a, 0)
	}
	return start, end
}

// Build returns the buffer. The builder must not be used afterwards.
func (bd *Builder) Build() FormatBuffer {
	return newBuffer(bd.text, bd.ranges)
}

// PlainText returns a FormatBuffer of s with no ranges.
func PlainText(s string) FormatBuffer {
	return FormatBuffer{text: []rune(s)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Describe renders the buffer as text followed by one line per range; handy
// in logs and test failure output.
func (b FormatBuffer) Describe() string {
	var sb strings.Builder
	sb.WriteString(string(b.text))
	for _, r := range b.ranges {
		sb.WriteString("\n  [")
		sb.WriteString(strconv.Itoa(r.Start))
		sb.WriteString(",")
		sb.WriteString(strconv.Itoa(r.End))
		sb.WriteString(") ")
		if r.Attr != nil {
			sb.WriteString(r.Attr.AttributeName())
		}
	}
	return sb.String()
}

package rowcache

import (
	"strings"
	"sync/atomic"

	"github.com/mattn/go-runewidth"
)

// CellSeparator joins the cells of a row.
const CellSeparator = " │ "

// Row is the laid-out form of one table row. Cells, widths and numbering are
// fixed at construction; only the last-row flag changes as the table grows.
type Row struct {
	Cells  []string
	Widths []int
	Header bool
	// Number is the 1-based position of the row in its table, header included.
	Number int

	last     atomic.Bool
	text     string
	source   []string
	maxWidth int
}

// NewRow lays out a row. Cells wider than maxCellWidth columns are truncated
// with an ellipsis; maxCellWidth <= 0 disables truncation.
func NewRow(number int, header bool, cells []string, maxCellWidth int) *Row {
	r := &Row{
		Cells:  make([]string, len(cells)),
		Widths: make([]int, len(cells)),
		Header:   header,
		Number:   number,
		source:   make([]string, len(cells)),
		maxWidth: maxCellWidth,
	}
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		r.source[i] = cell
		if maxCellWidth > 0 && runewidth.StringWidth(cell) > maxCellWidth {
			cell = runewidth.Truncate(cell, maxCellWidth, "…")
		}
		r.Cells[i] = cell
		r.Widths[i] = runewidth.StringWidth(cell)
	}
	r.text = strings.Join(r.Cells, CellSeparator)
	return r
}

// Text returns the cells joined by CellSeparator.
func (r *Row) Text() string { return r.text }

// Width returns the display width of Text in terminal columns.
func (r *Row) Width() int {
	w := 0
	for _, cw := range r.Widths {
		w += cw
	}
	if n := len(r.Widths); n > 1 {
		w += (n - 1) * runewidth.StringWidth(CellSeparator)
	}
	return w
}

// IsLast reports whether the row is currently the last row of its table.
func (r *Row) IsLast() bool { return r.last.Load() }

// Striped reports whether the row gets the alternate body background.
func (r *Row) Striped() bool { return !r.Header && r.Number%2 == 1 }

// Matches reports whether the row was built from cells with the same
// maxCellWidth. Cells compare after trimming, without laying the row out.
func (r *Row) Matches(cells []string, maxCellWidth int) bool {
	if maxCellWidth != r.maxWidth || len(cells) != len(r.source) {
		return false
	}
	for i, cell := range cells {
		if strings.TrimSpace(cell) != r.source[i] {
			return false
		}
	}
	return true
}

// SetLast sets the last-row flag. Cached rows have it maintained by the
// Cache; rows laid out outside a stream are flagged by their owner.
func (r *Row) SetLast(last bool) { r.last.Store(last) }

// RowAttr tags the text of a table row in a FormatBuffer. Row is shared with
// the cache and its IsLast follows the table as it grows; Last is the state
// at the time the buffer was built and never changes.
type RowAttr struct {
	Table int
	Row   *Row
	Last  bool
}

// AttributeName implements mdreveal.Attribute.
func (RowAttr) AttributeName() string { return "table-row" }

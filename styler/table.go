package styler

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"pkt.systems/mdreveal"
	"pkt.systems/mdreveal/internal/logging"
	"pkt.systems/mdreveal/rowcache"
)

type tableRow struct {
	cells  []string
	header bool
	offset int
}

// table writes one row per line. Every row comes from the row cache when it
// is complete and unchanged; otherwise it is laid out again and, while the
// stream is open, cached under its byte offset in the source.
func (r *renderer) table(n *east.Table) {
	index := r.tables
	r.tables++
	rows := r.tableRows(n)
	if len(rows) == 0 {
		return
	}
	cache := r.s.cache
	cacheable := rows[0].offset >= 0
	if cacheable {
		cache.BeginTable(index, rows[0].offset)
		cache.SetLiveFrom(index, r.liveFrom(rows))
	}
	for i, tr := range rows {
		if i > 0 {
			r.ensureNewline()
		}
		number := i + 1
		keyed := cacheable && tr.offset >= 0
		var row *rowcache.Row
		if keyed {
			row, _ = cache.Lookup(index, tr.offset, tr.cells, r.s.maxCellWidth)
		}
		if row == nil {
			row = rowcache.NewRow(number, tr.header, tr.cells, r.s.maxCellWidth)
			if keyed && cache.Streaming() {
				cache.Put(index, tr.offset, row)
			} else {
				row.SetLast(number == len(rows))
			}
		}
		attrs := []mdreveal.Attribute{rowcache.RowAttr{Table: index, Row: row, Last: number == len(rows)}}
		switch {
		case row.Header:
			attrs = append(attrs, mdreveal.Bold{}, mdreveal.Foreground{Color: r.styles.TableHeader})
		case row.Striped():
			attrs = append(attrs, mdreveal.Background{Color: r.styles.TableStripe})
		}
		start := r.mark()
		r.write(row.Text(), priorityBlock)
		r.style(start, r.bd.Len(), priorityBlock, attrs...)
	}
	if cacheable {
		cache.UpdateCurrentMaxRowNumber(index, len(rows))
	}
	r.s.log.Debug("table rendered", logging.FieldTable, index, logging.FieldRow, len(rows))
}

// tableRows collects cell text and the source offset of every row. GFM rows
// are single consecutive lines: header, delimiter, then the body. Offsets are
// -1 when the header line cannot be located.
func (r *renderer) tableRows(n *east.Table) []tableRow {
	var rows []tableRow
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *east.TableHeader:
			rows = append(rows, tableRow{cells: r.cells(c), header: true})
		case *east.TableRow:
			rows = append(rows, tableRow{cells: r.cells(c)})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	line := r.headerLine(n)
	for i := range rows {
		rows[i].offset = line
		if line < 0 {
			continue
		}
		steps := 1
		if i == 0 && rows[0].header {
			steps = 2
		}
		for ; steps > 0 && line >= 0; steps-- {
			line = r.nextLine(line)
		}
	}
	return rows
}

func (r *renderer) cells(row ast.Node) []string {
	var out []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*east.TableCell); ok {
			out = append(out, plainText(c, r.src))
		}
	}
	return out
}

// headerLine returns the offset of the header line. It is found from the
// first text in the table and stepped back over the rows before it, so a
// header of empty cells still lines up.
func (r *renderer) headerLine(n *east.Table) int {
	index := 0
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		if pos := firstText(row); pos >= 0 && pos <= len(r.src) {
			line := bytes.LastIndexByte(r.src[:pos], '\n') + 1
			back := index
			if index > 0 {
				// the delimiter row
				back++
			}
			for ; back > 0 && line >= 0; back-- {
				line = r.prevLine(line)
			}
			return line
		}
		index++
	}
	return -1
}

func firstText(n ast.Node) int {
	pos := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			pos = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return pos
}

// prevLine returns the start of the line before the one starting at offset,
// or -1 at the start of the source.
func (r *renderer) prevLine(offset int) int {
	if offset <= 0 {
		return -1
	}
	return bytes.LastIndexByte(r.src[:offset-1], '\n') + 1
}

func (r *renderer) nextLine(offset int) int {
	i := bytes.IndexByte(r.src[offset:], '\n')
	if i < 0 {
		return -1
	}
	return offset + i + 1
}

// liveFrom returns the offset from which rows may still change. Only a table
// at the end of the document can grow; its last row stays live until its
// line is terminated.
func (r *renderer) liveFrom(rows []tableRow) int {
	last := rows[len(rows)-1].offset
	if last < 0 {
		return 0
	}
	end := r.nextLine(last)
	if end < 0 {
		if len(bytes.TrimSpace(r.src[last:])) == 0 {
			return len(r.src) + 1
		}
		return last
	}
	return end
}

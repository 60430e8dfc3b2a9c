// Package rowcache memoizes the layout of streaming table rows.
//
// While a document streams in, every update re-parses the whole source and
// walks every table again. Rows whose source line is complete do not change,
// so the styler keeps their Row values here, keyed by table index and the
// byte offset of the row in the source, and only lays out rows that may still
// grow. The cache lives for one stream: it is emptied when the stream closes.
package rowcache

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"pkt.systems/mdreveal/internal/logging"
)

// Cache holds rows per table. It is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	log       *log.Logger
	streaming bool
	source    string
	tables    map[int]*table
	stats     Stats
}

type table struct {
	start    int
	liveFrom int
	maxRow   int
	rows     map[int]*Row
}

// Stats counts cache activity since creation.
type Stats struct {
	Tables        int
	Rows          int
	Hits          int
	Misses        int
	Invalidations int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for invalidation events.
func WithLogger(logger *log.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.log = logger
		}
	}
}

// New returns an empty cache. The cache starts in the streaming state.
func New(opts ...Option) *Cache {
	c := &Cache{
		streaming: true,
		tables:    make(map[int]*table),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.log == nil {
		c.log = logging.Default()
	}
	c.log = c.log.WithPrefix("rowcache")
	return c
}

// Get returns the row cached for offset in table.
func (c *Cache) Get(tableIndex, offset int) (*Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[tableIndex]
	if !ok {
		return nil, false
	}
	r, ok := t.rows[offset]
	return r, ok
}

// Put caches row at offset in table and sets its last-row flag from the
// table's current max row number.
func (c *Cache) Put(tableIndex, offset int, row *Row) {
	if row == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.table(tableIndex)
	t.rows[offset] = row
	row.SetLast(t.maxRow > 0 && row.Number == t.maxRow)
}

// Lookup returns the cached row for offset when it is final and was built
// from the same cells. It counts a hit or a miss.
func (c *Cache) Lookup(tableIndex, offset int, cells []string, maxCellWidth int) (*Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableIndex]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	r, ok := t.rows[offset]
	if !ok || offset >= t.liveFrom || !r.Matches(cells, maxCellWidth) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return r, true
}

// IsRowFinal reports whether the row at offset can no longer change: it lies
// before the table's live region.
func (c *Cache) IsRowFinal(tableIndex, offset int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[tableIndex]
	if !ok {
		return false
	}
	return offset < t.liveFrom
}

// UpdateCurrentMaxRowNumber records the number of rows the table has now and
// recomputes the last-row flag of every cached row.
func (c *Cache) UpdateCurrentMaxRowNumber(tableIndex, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.table(tableIndex)
	t.maxRow = n
	for _, r := range t.rows {
		r.SetLast(r.Number == n)
	}
}

// CurrentMaxRowNumber returns the last value passed to UpdateCurrentMaxRowNumber.
func (c *Cache) CurrentMaxRowNumber(tableIndex int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.tables[tableIndex]; ok {
		return t.maxRow
	}
	return 0
}

// BeginGeneration announces a new parse of source. Offsets stay valid when
// source extends the previous source; otherwise every table is dropped.
// It reports whether cached rows were kept.
func (c *Cache) BeginGeneration(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := strings.HasPrefix(source, c.source)
	if !kept && len(c.tables) > 0 {
		c.stats.Invalidations++
		c.tables = make(map[int]*table)
		c.log.Debug("source rewritten, dropping cached rows")
	}
	c.source = source
	return kept
}

// BeginTable declares that table starts at byte offset start in the current
// generation. A table that moved is emptied, its offsets no longer match.
func (c *Cache) BeginTable(tableIndex, start int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableIndex]
	if ok && t.start == start {
		return
	}
	if ok {
		c.stats.Invalidations++
		c.log.Debug("table moved, dropping cached rows", logging.FieldTable, tableIndex, logging.FieldOffset, start)
	}
	t = &table{start: start, rows: make(map[int]*Row)}
	c.tables[tableIndex] = t
}

// SetLiveFrom sets the offset from which rows of table may still change.
func (c *Cache) SetLiveFrom(tableIndex, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table(tableIndex).liveFrom = offset
}

// Clear drops one table.
func (c *Cache) Clear(tableIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, tableIndex)
}

// ClearAll drops every table and forgets the source generation.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.tables = make(map[int]*table)
	c.source = ""
}

// OnStreamStateChanged records whether a stream is open. Closing the stream
// empties the cache.
func (c *Cache) OnStreamStateChanged(streaming bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = streaming
	if !streaming {
		c.clearLocked()
	}
}

// Streaming reports whether a stream is open.
func (c *Cache) Streaming() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streaming
}

// Stats returns activity counters and current sizes.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Tables = len(c.tables)
	for _, t := range c.tables {
		s.Rows += len(t.rows)
	}
	return s
}

// table returns the entry for index, creating it. Caller holds c.mu.
func (c *Cache) table(index int) *table {
	t, ok := c.tables[index]
	if !ok {
		t = &table{rows: make(map[int]*Row)}
		c.tables[index] = t
	}
	return t
}

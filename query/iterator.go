// Copyright (c) 2025 The chunkdb authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package query

import (
	"container/heap"
	"sort"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/column"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/RoaringBitmap/roaring"
)

const defaultBatchSize = 1024

// denseMode picks how output rows are generated. In the default event mode
// a row exists per distinct index value carrying data. With latest-at fill
// the output densifies: one row per requested index value (or per step of a
// sequence range), filled from whatever was last logged.
type denseMode uint8

const (
	denseNone denseMode = iota
	denseRange
	denseValues
)

type iteratorPlan struct {
	timeline string
	snapshot map[ts.EntityPath][]*chunk.Chunk
	columns  []ColumnSchema

	hasRange    bool
	rangeStart  ts.TimeValue
	rangeEnd    ts.TimeValue
	hasValues   bool
	indexValues []ts.TimeValue

	notNull []string
	fill    bool
	dense   denseMode
}

// chunkCursor walks one chunk's temporal rows in index order. The rows it
// may yield are fixed up front as a bitmap, so index filters cost nothing
// during the merge.
type chunkCursor struct {
	c      *chunk.Chunk
	entity ts.EntityPath
	times  *column.TimeColumn
	ord    int
	it     roaring.IntIterable

	row int
	t   ts.TimeValue
}

func (cur *chunkCursor) advance() bool {
	for cur.it.HasNext() {
		row := int(cur.it.Next())
		t, ok := cur.times.Get(row)
		if !ok {
			continue
		}
		cur.row, cur.t = row, t
		return true
	}
	return false
}

// cursorHeap orders cursors by (index value, insertion order, row) so the
// merge emits rows ascending by index value and resolves equal-value ties
// to the most recent write.
type cursorHeap []*chunkCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].t != h[j].t {
		return h[i].t < h[j].t
	}
	if h[i].ord != h[j].ord {
		return h[i].ord < h[j].ord
	}
	return h[i].row < h[j].row
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*chunkCursor))
}
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type batchIterator struct {
	plan     iteratorPlan
	colIndex map[ts.EntityPath]map[string]int
	notNull  []int

	cursors cursorHeap

	denseNext ts.TimeValue
	denseIdx  int

	staticPending bool
	staticCells   []ts.Value
	staticValid   []bool

	cells []ts.Value
	valid []bool

	batch  *Batch
	closed bool
}

func newBatchIterator(plan iteratorPlan) *batchIterator {
	it := &batchIterator{
		plan:     plan,
		colIndex: make(map[ts.EntityPath]map[string]int),
		cells:    make([]ts.Value, len(plan.columns)),
		valid:    make([]bool, len(plan.columns)),
	}
	for i, col := range plan.columns {
		byComp := it.colIndex[col.Entity]
		if byComp == nil {
			byComp = make(map[string]int)
			it.colIndex[col.Entity] = byComp
		}
		byComp[col.Component] = i
	}
	for _, name := range plan.notNull {
		for i, col := range plan.columns {
			if col.Name() == name {
				it.notNull = append(it.notNull, i)
			}
		}
	}

	it.buildStaticRow()
	switch plan.dense {
	case denseRange:
		it.denseNext = plan.rangeStart
	case denseValues:
		it.denseIdx = 0
	default:
		it.buildCursors()
	}
	return it
}

// buildCursors creates one cursor per chunk that has temporal rows on the
// index timeline and contributes at least one selected column. Row
// selection under the index filters is computed as a roaring bitmap over
// the chunk's (sorted) row positions.
func (it *batchIterator) buildCursors() {
	ord := 0
	for entity, chunks := range it.plan.snapshot {
		byComp := it.colIndex[entity]
		for _, c := range chunks {
			ord++
			if len(byComp) == 0 || !c.HasTimeline(it.plan.timeline) {
				continue
			}
			contributes := false
			for name := range byComp {
				if _, ok := c.Component(name); ok {
					contributes = true
					break
				}
			}
			if !contributes {
				continue
			}
			sel := it.selectRows(c)
			if sel.IsEmpty() {
				continue
			}
			tc, _ := c.TimeColumn(it.plan.timeline)
			cur := &chunkCursor{
				c:      c,
				entity: entity,
				times:  tc,
				ord:    ord,
				it:     sel.Iterator(),
			}
			if cur.advance() {
				it.cursors = append(it.cursors, cur)
			}
		}
	}
	heap.Init(&it.cursors)
}

// selectRows returns the bitmap of temporal row positions that survive the
// index filters. The chunk is sorted, so the range filter reduces to two
// binary searches.
func (it *batchIterator) selectRows(c *chunk.Chunk) *roaring.Bitmap {
	sel := roaring.New()
	numStatic := c.NumStaticRows(it.plan.timeline)
	rows := c.RowCount()
	if numStatic == rows {
		return sel
	}
	tc, _ := c.TimeColumn(it.plan.timeline)
	timeAt := func(i int) ts.TimeValue {
		t, _ := tc.Get(i)
		return t
	}

	switch {
	case it.plan.hasRange:
		lo := numStatic + sort.Search(rows-numStatic, func(i int) bool {
			return timeAt(numStatic+i) >= it.plan.rangeStart
		})
		hi := numStatic + sort.Search(rows-numStatic, func(i int) bool {
			return timeAt(numStatic+i) > it.plan.rangeEnd
		})
		if lo < hi {
			sel.AddRange(uint64(lo), uint64(hi))
		}
	case it.plan.hasValues:
		want := make(map[ts.TimeValue]struct{}, len(it.plan.indexValues))
		for _, v := range it.plan.indexValues {
			want[v] = struct{}{}
		}
		for i := numStatic; i < rows; i++ {
			if _, ok := want[timeAt(i)]; ok {
				sel.Add(uint32(i))
			}
		}
	default:
		sel.AddRange(uint64(numStatic), uint64(rows))
	}
	return sel
}

// buildStaticRow resolves, per column, the most recently written static
// value. Static rows have no index position, so they form at most one
// output row, emitted ahead of all temporal rows and never filled.
func (it *batchIterator) buildStaticRow() {
	it.staticCells = make([]ts.Value, len(it.plan.columns))
	it.staticValid = make([]bool, len(it.plan.columns))
	any := false
	for i, col := range it.plan.columns {
		for _, c := range it.plan.snapshot[col.Entity] {
			buf, ok := c.Component(col.Component)
			if !ok {
				continue
			}
			numStatic := c.NumStaticRows(it.plan.timeline)
			for row := numStatic - 1; row >= 0; row-- {
				if v, ok := buf.Get(row); ok {
					it.staticCells[i] = v
					it.staticValid[i] = true
					break
				}
			}
		}
		any = any || it.staticValid[i]
	}
	if any && it.rowPassesNotNull(it.staticValid) {
		it.staticPending = true
	}
}

func (it *batchIterator) rowPassesNotNull(valid []bool) bool {
	for _, col := range it.notNull {
		if !valid[col] {
			return false
		}
	}
	return true
}

func (it *batchIterator) Next() bool {
	if it.closed {
		return false
	}
	b := &Batch{Columns: make([]BatchColumn, len(it.plan.columns))}
	for i, col := range it.plan.columns {
		b.Columns[i].Schema = col
	}

	for b.NumRows() < defaultBatchSize {
		if it.staticPending {
			it.staticPending = false
			appendRow(b, 0, false, it.staticCells, it.staticValid)
			continue
		}
		t, ok := it.nextRow()
		if !ok {
			break
		}
		appendRow(b, t, true, it.cells, it.valid)
	}

	if b.NumRows() == 0 {
		it.batch = nil
		return false
	}
	it.batch = b
	return true
}

func appendRow(b *Batch, t ts.TimeValue, temporal bool, cells []ts.Value, valid []bool) {
	b.Times = append(b.Times, t)
	b.TimeValid = append(b.TimeValid, temporal)
	for i := range b.Columns {
		b.Columns[i].Values = append(b.Columns[i].Values, cells[i])
		b.Columns[i].Valid = append(b.Columns[i].Valid, valid[i])
	}
}

// nextRow produces the next temporal output row into the scratch cells,
// skipping rows the not-null filter rejects and rows with no data at all.
func (it *batchIterator) nextRow() (ts.TimeValue, bool) {
	for {
		var (
			t  ts.TimeValue
			ok bool
		)
		if it.plan.dense == denseNone {
			t, ok = it.mergeRow()
		} else {
			t, ok = it.denseRow()
		}
		if !ok {
			return 0, false
		}
		if !it.rowPassesNotNull(it.valid) {
			continue
		}
		if !anyValid(it.valid) {
			continue
		}
		return t, true
	}
}

// mergeRow pops every cursor event sharing the smallest index value and
// folds them into one row. Cursors pop in (value, insertion order, row)
// order, so later writes overwrite earlier ones cell by cell.
func (it *batchIterator) mergeRow() (ts.TimeValue, bool) {
	if len(it.cursors) == 0 {
		return 0, false
	}
	t := it.cursors[0].t
	it.resetScratch()
	for len(it.cursors) > 0 && it.cursors[0].t == t {
		cur := it.cursors[0]
		it.applyEvent(cur)
		if cur.advance() {
			heap.Fix(&it.cursors, 0)
		} else {
			heap.Pop(&it.cursors)
		}
	}
	if it.plan.fill {
		it.fillRow(t)
	}
	return t, true
}

func (it *batchIterator) applyEvent(cur *chunkCursor) {
	for name, col := range it.colIndex[cur.entity] {
		buf, ok := cur.c.Component(name)
		if !ok {
			continue
		}
		if v, ok := buf.Get(cur.row); ok {
			it.cells[col] = v
			it.valid[col] = true
		}
	}
}

// denseRow generates the next requested index value and resolves every cell
// with a latest-at lookup against the snapshot.
func (it *batchIterator) denseRow() (ts.TimeValue, bool) {
	var t ts.TimeValue
	switch it.plan.dense {
	case denseRange:
		if it.denseNext > it.plan.rangeEnd {
			return 0, false
		}
		t = it.denseNext
		it.denseNext++
	case denseValues:
		if it.denseIdx >= len(it.plan.indexValues) {
			return 0, false
		}
		t = it.plan.indexValues[it.denseIdx]
		it.denseIdx++
	}
	it.resetScratch()
	it.fillRow(t)
	return t, true
}

func (it *batchIterator) fillRow(t ts.TimeValue) {
	for i, col := range it.plan.columns {
		if it.valid[i] {
			continue
		}
		if v, ok := it.latestAt(col, t); ok {
			it.cells[i] = v
			it.valid[i] = true
		}
	}
}

// latestAt resolves the column's value with the greatest index value ≤ t
// within the captured snapshot: later chunks win ties, later rows win
// within a chunk, static values are the fallback.
func (it *batchIterator) latestAt(col ColumnSchema, t ts.TimeValue) (ts.Value, bool) {
	var (
		best      ts.Value
		bestT     ts.TimeValue
		found     bool
		staticVal ts.Value
		hasStatic bool
	)
	for _, c := range it.plan.snapshot[col.Entity] {
		buf, ok := c.Component(col.Component)
		if !ok {
			continue
		}
		numStatic := c.NumStaticRows(it.plan.timeline)
		if c.HasTimeline(it.plan.timeline) && numStatic < c.RowCount() {
			tc, _ := c.TimeColumn(it.plan.timeline)
			timeAt := func(i int) ts.TimeValue {
				v, _ := tc.Get(i)
				return v
			}
			rows := c.RowCount()
			hi := numStatic + sort.Search(rows-numStatic, func(i int) bool {
				return timeAt(numStatic+i) > t
			})
			for row := hi - 1; row >= numStatic; row-- {
				v, ok := buf.Get(row)
				if !ok {
					continue
				}
				if !found || timeAt(row) >= bestT {
					best, bestT, found = v, timeAt(row), true
				}
				break
			}
		}
		for row := numStatic - 1; row >= 0; row-- {
			if v, ok := buf.Get(row); ok {
				staticVal, hasStatic = v, true
				break
			}
		}
	}
	if found {
		return best, true
	}
	if hasStatic {
		return staticVal, true
	}
	return ts.Value{}, false
}

func (it *batchIterator) resetScratch() {
	for i := range it.cells {
		it.cells[i] = ts.Value{}
		it.valid[i] = false
	}
}

func (it *batchIterator) Current() *Batch {
	return it.batch
}

func (it *batchIterator) Err() error {
	return nil
}

func (it *batchIterator) Close() error {
	it.closed = true
	it.cursors = nil
	it.plan.snapshot = nil
	it.batch = nil
	return nil
}

func anyValid(valid []bool) bool {
	for _, v := range valid {
		if v {
			return true
		}
	}
	return false
}

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

// Package chunk implements the physical unit of storage: an immutable,
// self-describing columnar batch of rows restricted to a single entity path.
package chunk

import (
	"errors"
	"sort"

	"github.com/chunkdb/chunkdb/column"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/pborman/uuid"
)

var (
	// ErrEmptyChunk is returned when building a chunk with zero rows.
	ErrEmptyChunk = errors.New("chunk: cannot build an empty chunk")

	// ErrSchemaMismatch is returned when column lengths or declared types
	// are inconsistent at construction.
	ErrSchemaMismatch = errors.New("chunk: inconsistent column shapes")

	errMergeDifferentEntities = errors.New("chunk: cannot merge chunks of different entities")
	errMergeDifferentSchemas  = errors.New("chunk: cannot merge chunks with different schemas")
	errMergeNoChunks          = errors.New("chunk: nothing to merge")
)

// ID uniquely identifies a chunk within a recording.
type ID string

// NewID returns a fresh random chunk ID.
func NewID() ID {
	return ID(uuid.New())
}

// TimeColumnSpec pairs a timeline with its column for direct construction.
type TimeColumnSpec struct {
	Timeline ts.Timeline
	Col      *column.TimeColumn
}

// ComponentSpec pairs a component name with its column for direct
// construction.
type ComponentSpec struct {
	Name string
	Col  *column.Buffer
}

// Chunk is an immutable, time-indexed batch of rows for one entity. Once
// built it is never mutated; sorting materializes a new chunk. Per-column
// stats (min/max time, null counts, sortedness) are computed once at
// construction.
type Chunk struct {
	id       ID
	entity   ts.EntityPath
	schema   Schema
	times    map[string]*column.TimeColumn
	comps    map[string]*column.Buffer
	rows     int
	numBytes int
}

// FromColumns builds a chunk directly from prepared columns. It fails with
// ErrEmptyChunk for zero rows and ErrSchemaMismatch for uneven column
// lengths or duplicate column names.
func FromColumns(entity ts.EntityPath, times []TimeColumnSpec, comps []ComponentSpec) (*Chunk, error) {
	rows := -1
	check := func(n int) bool {
		if rows == -1 {
			rows = n
		}
		return n == rows
	}

	c := &Chunk{
		id:     NewID(),
		entity: entity,
		times:  make(map[string]*column.TimeColumn, len(times)),
		comps:  make(map[string]*column.Buffer, len(comps)),
	}
	timelines := make([]ts.Timeline, 0, len(times))
	types := make(map[string]ts.ValueType, len(comps))

	for _, spec := range times {
		if _, ok := c.times[spec.Timeline.Name]; ok || !check(spec.Col.Len()) {
			return nil, ErrSchemaMismatch
		}
		c.times[spec.Timeline.Name] = spec.Col
		timelines = append(timelines, spec.Timeline)
		c.numBytes += spec.Col.NumBytes()
	}
	for _, spec := range comps {
		if _, ok := c.comps[spec.Name]; ok || !check(spec.Col.Len()) {
			return nil, ErrSchemaMismatch
		}
		c.comps[spec.Name] = spec.Col
		types[spec.Name] = spec.Col.Type()
		c.numBytes += spec.Col.NumBytes()
	}
	if rows <= 0 {
		return nil, ErrEmptyChunk
	}
	c.rows = rows
	c.schema = newSchema(timelines, types)
	return c, nil
}

// ID returns the chunk's unique identifier.
func (c *Chunk) ID() ID {
	return c.id
}

// EntityPath returns the single entity every row belongs to.
func (c *Chunk) EntityPath() ts.EntityPath {
	return c.entity
}

// Schema returns the chunk's column layout.
func (c *Chunk) Schema() Schema {
	return c.schema
}

// RowCount returns the number of rows.
func (c *Chunk) RowCount() int {
	return c.rows
}

// NumBytes approximates the heap footprint of the chunk payload.
func (c *Chunk) NumBytes() int {
	return c.numBytes
}

// HasTimeline reports whether the chunk carries a column for the timeline.
// Rows of a chunk without that column are static on it: present at every
// time.
func (c *Chunk) HasTimeline(timeline string) bool {
	_, ok := c.times[timeline]
	return ok
}

// TimeColumn returns the column for a timeline, if present.
func (c *Chunk) TimeColumn(timeline string) (*column.TimeColumn, bool) {
	col, ok := c.times[timeline]
	return col, ok
}

// Component returns the column for a component, if present.
func (c *Chunk) Component(name string) (*column.Buffer, bool) {
	col, ok := c.comps[name]
	return col, ok
}

// TimeRange returns the precomputed min/max stats for a timeline. ok=false
// means the chunk carries no temporal values for it (no column at all, or a
// column of only static rows).
func (c *Chunk) TimeRange(timeline string) (ts.TimeValue, ts.TimeValue, bool) {
	col, ok := c.times[timeline]
	if !ok {
		return 0, 0, false
	}
	return col.MinMax()
}

// IsSorted reports whether rows are in sorted layout for the timeline:
// static rows form a physical prefix, followed by monotonically
// non-decreasing temporal values. Vacuously true when the chunk carries no
// column for the timeline.
func (c *Chunk) IsSorted(timeline string) bool {
	col, ok := c.times[timeline]
	if !ok {
		return true
	}
	return col.IsSorted()
}

// NumStaticRows returns how many rows are static on the timeline. Every row
// is static when the chunk carries no column for it.
func (c *Chunk) NumStaticRows(timeline string) int {
	col, ok := c.times[timeline]
	if !ok {
		return c.rows
	}
	return col.NullCount()
}

// SortedBy returns a chunk with rows permuted into ascending order by the
// timeline's values. Static rows (no value on that timeline) sort first. The
// permutation is stable, so rows at equal times keep their relative order.
// The receiver is returned unchanged when already sorted.
func (c *Chunk) SortedBy(timeline string) *Chunk {
	if c.IsSorted(timeline) {
		return c
	}
	col := c.times[timeline]

	perm := make([]int, c.rows)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		ti, iok := col.Get(perm[i])
		tj, jok := col.Get(perm[j])
		if iok != jok {
			return !iok // static rows first
		}
		return ti < tj
	})

	out := &Chunk{
		id:       NewID(),
		entity:   c.entity,
		schema:   c.schema,
		times:    make(map[string]*column.TimeColumn, len(c.times)),
		comps:    make(map[string]*column.Buffer, len(c.comps)),
		rows:     c.rows,
		numBytes: c.numBytes,
	}
	for name, tc := range c.times {
		out.times[name] = tc.Permuted(perm)
	}
	for name, cc := range c.comps {
		out.comps[name] = cc.Permuted(perm)
	}
	return out
}

// Merge concatenates merge-compatible chunks (same entity, same schema
// fingerprint) into a single superchunk, preserving the given chunk order
// and each chunk's physical row order. Stats are recomputed; sortedness per
// timeline falls out of whether the inputs were jointly monotonic. Callers
// that need a particular timeline order sort the result lazily via SortedBy.
func Merge(chunks ...*Chunk) (*Chunk, error) {
	if len(chunks) == 0 {
		return nil, errMergeNoChunks
	}
	first := chunks[0]
	for _, c := range chunks[1:] {
		if c.entity != first.entity {
			return nil, errMergeDifferentEntities
		}
		if c.schema.Fingerprint() != first.schema.Fingerprint() {
			return nil, errMergeDifferentSchemas
		}
	}

	times := make([]TimeColumnSpec, 0, len(first.times))
	for _, tl := range first.schema.Timelines() {
		col := column.NewTimeColumn()
		for _, c := range chunks {
			col.AppendFrom(c.times[tl.Name])
		}
		times = append(times, TimeColumnSpec{Timeline: tl, Col: col})
	}
	comps := make([]ComponentSpec, 0, len(first.comps))
	for _, name := range first.schema.Components() {
		typ, _ := first.schema.ComponentType(name)
		col := column.NewBuffer(typ)
		for _, c := range chunks {
			col.AppendFrom(c.comps[name])
		}
		comps = append(comps, ComponentSpec{Name: name, Col: col})
	}
	return FromColumns(first.entity, times, comps)
}

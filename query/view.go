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
	"errors"
	"sort"
	"strings"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/storage"
	"github.com/chunkdb/chunkdb/ts"
)

var (
	// ErrNoContentsSelected is returned by Select on a view whose
	// contents were never bound.
	ErrNoContentsSelected = errors.New("view has no contents selected")

	// ErrConflictingIndexFilter is returned by Select when both a range
	// filter and an index-values filter were applied: the two are
	// mutually exclusive refinement strategies for the index.
	ErrConflictingIndexFilter = errors.New("range and index-value filters are mutually exclusive")
)

// selector is one parsed contents expression: an entity-path pattern,
// an optional component narrowing, and whether it includes or excludes.
type selector struct {
	pattern   string
	component string
	exclude   bool
}

func (s selector) matches(entity ts.EntityPath, component string) bool {
	if !entity.Matches(s.pattern) {
		return false
	}
	return s.component == "" || s.component == component
}

// View is a declarative query over a store: which (entity, component) pairs
// populate columns, indexed by which timeline, narrowed by which filters.
// A view is a builder; it is not safe for concurrent use. Select captures an
// immutable chunk snapshot, so iterators remain valid while the store keeps
// mutating.
type View struct {
	store         storage.Store
	indexTimeline string

	state     ViewState
	selectors []selector

	hasRange   bool
	rangeStart ts.TimeValue
	rangeEnd   ts.TimeValue

	hasValues   bool
	indexValues []ts.TimeValue

	notNull []string
	fill    bool
}

// NewView starts an unbound view over the store, indexed by the named
// timeline.
func NewView(store storage.Store, indexTimeline string) *View {
	return &View{
		store:         store,
		indexTimeline: indexTimeline,
		state:         Unbound,
	}
}

// State returns how far the view has been refined.
func (v *View) State() ViewState {
	return v.state
}

// SelectContents binds the view's columns. Each expression is an entity
// path, optionally a subtree pattern and optionally narrowed to one
// component:
//
//	/car                  exactly /car, every component
//	/world/**             /world and its whole subtree
//	/car:Position3D       only that component
//	- /world/ignored/**   exclusion (leading minus)
//
// A pair is selected when it matches any inclusion and no exclusion.
func (v *View) SelectContents(exprs ...string) *View {
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		var sel selector
		if strings.HasPrefix(expr, "-") {
			sel.exclude = true
			expr = strings.TrimSpace(expr[1:])
		}
		if i := strings.LastIndex(expr, ":"); i >= 0 {
			sel.component = strings.TrimSpace(expr[i+1:])
			expr = expr[:i]
		}
		sel.pattern = string(ts.NewEntityPath(expr))
		v.selectors = append(v.selectors, sel)
	}
	if v.state == Unbound {
		v.state = ContentsSelected
	}
	return v
}

// FilterRange narrows candidate rows to index values in [start, end],
// inclusive.
func (v *View) FilterRange(start, end ts.TimeValue) *View {
	v.hasRange = true
	v.rangeStart, v.rangeEnd = start, end
	if v.state == ContentsSelected {
		v.state = RangeFiltered
	}
	return v
}

// FilterIndexValues narrows candidate rows to the given index values.
func (v *View) FilterIndexValues(vals ...ts.TimeValue) *View {
	v.hasValues = true
	v.indexValues = append(v.indexValues, vals...)
	sort.Slice(v.indexValues, func(i, j int) bool {
		return v.indexValues[i] < v.indexValues[j]
	})
	v.indexValues = dedupTimes(v.indexValues)
	if v.state == ContentsSelected {
		v.state = IndexFiltered
	}
	return v
}

// FilterIsNotNull drops output rows where the named column (for example
// "/car:Position3D") is null. Multiple calls compose with AND semantics.
// The check runs on the materialized cell, after latest-at fill.
func (v *View) FilterIsNotNull(columns ...string) *View {
	v.notNull = append(v.notNull, columns...)
	return v
}

// FillLatestAt replaces null cells with the latest value at or before the
// row's index value. Cells with no prior event stay null. On a sequence
// index, combining FillLatestAt with FilterRange densifies the output to
// one row per index value in the range.
func (v *View) FillLatestAt() *View {
	v.fill = true
	return v
}

// Select materializes the view: it validates the filter combination,
// captures a snapshot of the store's chunks, resolves the output columns
// and returns a lazy batch iterator. An optional list of column names
// restricts the output to those columns; names that resolve to nothing are
// ignored. Re-invoking Select restarts iteration over a fresh snapshot.
func (v *View) Select(columns ...string) (BatchIterator, error) {
	if len(v.selectors) == 0 {
		return nil, ErrNoContentsSelected
	}
	if v.hasRange && v.hasValues {
		return nil, ErrConflictingIndexFilter
	}

	snap, cols := v.resolve(columns)

	dense := denseNone
	if v.fill {
		switch {
		case v.hasValues:
			dense = denseValues
		case v.hasRange && v.indexKind() == ts.Sequence:
			dense = denseRange
		}
	}

	it := newBatchIterator(iteratorPlan{
		timeline:    v.indexTimeline,
		snapshot:    snap,
		columns:     cols,
		hasRange:    v.hasRange,
		rangeStart:  v.rangeStart,
		rangeEnd:    v.rangeEnd,
		indexValues: v.indexValues,
		hasValues:   v.hasValues,
		notNull:     v.notNull,
		fill:        v.fill,
		dense:       dense,
	})
	v.state = Materialized
	return it, nil
}

// resolve walks the store's entities, keeps the (entity, component) pairs
// the selectors admit, and snapshots each kept entity's chunks pre-sorted
// by the index timeline. Chunk slices returned by the store are immutable
// snapshots already.
func (v *View) resolve(restrict []string) (map[ts.EntityPath][]*chunk.Chunk, []ColumnSchema) {
	var restrictSet map[string]struct{}
	if len(restrict) > 0 {
		restrictSet = make(map[string]struct{}, len(restrict))
		for _, name := range restrict {
			restrictSet[name] = struct{}{}
		}
	}

	snap := make(map[ts.EntityPath][]*chunk.Chunk)
	var cols []ColumnSchema
	for _, entity := range v.store.Entities() {
		chunks := v.store.ChunksFor(entity)
		if len(chunks) == 0 {
			continue
		}
		compTypes := make(map[string]ts.ValueType)
		for _, c := range chunks {
			for _, name := range c.Schema().Components() {
				if typ, ok := c.Schema().ComponentType(name); ok {
					compTypes[name] = typ
				}
			}
		}
		kept := false
		for name, typ := range compTypes {
			if !v.selected(entity, name) {
				continue
			}
			col := ColumnSchema{Entity: entity, Component: name, Type: typ}
			if restrictSet != nil {
				if _, ok := restrictSet[col.Name()]; !ok {
					continue
				}
			}
			cols = append(cols, col)
			kept = true
		}
		if kept {
			sorted := make([]*chunk.Chunk, len(chunks))
			for i, c := range chunks {
				sorted[i] = c.SortedBy(v.indexTimeline)
			}
			snap[entity] = sorted
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		return cols[i].Name() < cols[j].Name()
	})
	return snap, cols
}

func (v *View) selected(entity ts.EntityPath, component string) bool {
	included := false
	for _, sel := range v.selectors {
		if !sel.matches(entity, component) {
			continue
		}
		if sel.exclude {
			return false
		}
		included = true
	}
	return included
}

func (v *View) indexKind() ts.TimelineKind {
	for _, tl := range v.store.Timelines() {
		if tl.Name == v.indexTimeline {
			return tl.Kind
		}
	}
	return ts.Duration
}

func dedupTimes(vals []ts.TimeValue) []ts.TimeValue {
	out := vals[:0]
	for i, val := range vals {
		if i == 0 || val != vals[i-1] {
			out = append(out, val)
		}
	}
	return out
}

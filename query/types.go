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

// Package query resolves declarative views over a recording store into
// row-aligned columnar batches.
package query

import (
	"github.com/chunkdb/chunkdb/ts"
)

// ViewState tracks how far a view has been refined. Views move strictly
// forward: contents must be selected before an index filter narrows the
// candidate rows, and Select moves the view to Materialized.
type ViewState uint8

const (
	// Unbound is a freshly constructed view with no contents.
	Unbound ViewState = iota

	// ContentsSelected means the entity/component selectors are bound.
	ContentsSelected

	// RangeFiltered means candidate rows are narrowed to an index range.
	RangeFiltered

	// IndexFiltered means candidate rows are narrowed to explicit index
	// values.
	IndexFiltered

	// Materialized means Select has captured a chunk snapshot and handed
	// out an iterator.
	Materialized
)

func (s ViewState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case ContentsSelected:
		return "contents-selected"
	case RangeFiltered:
		return "range-filtered"
	case IndexFiltered:
		return "index-filtered"
	case Materialized:
		return "materialized"
	}
	return "unknown"
}

// ColumnSchema identifies one output column: a single component of a single
// entity, typed.
type ColumnSchema struct {
	Entity    ts.EntityPath
	Component string
	Type      ts.ValueType
}

// Name returns the canonical column name, e.g. "/car:Position3D".
func (c ColumnSchema) Name() string {
	return c.Entity.String() + ":" + c.Component
}

// BatchColumn is one column of a batch: values plus a validity mask. Values
// at positions where Valid is false are meaningless.
type BatchColumn struct {
	Schema ColumnSchema
	Values []ts.Value
	Valid  []bool
}

// Batch is a row-aligned block of query output. Times carries the index
// value of each row; TimeValid is false for the static row, which has no
// position on the index timeline.
type Batch struct {
	Times     []ts.TimeValue
	TimeValid []bool
	Columns   []BatchColumn
}

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int {
	return len(b.Times)
}

// BatchIterator is a pull-based, finite sequence of batches over the chunk
// snapshot captured when the view was materialized. Rows are strictly
// ascending by index value; the static row, if any, comes first. Abandoning
// iteration early is safe; restarting requires a new Select.
type BatchIterator interface {
	// Next advances to the next batch, returning false when the sequence
	// is exhausted or closed.
	Next() bool

	// Current returns the batch Next advanced to. Only valid after a true
	// Next.
	Current() *Batch

	// Err returns the first error the iterator encountered, if any.
	Err() error

	// Close releases the iterator's snapshot references. Next returns
	// false after Close.
	Close() error
}

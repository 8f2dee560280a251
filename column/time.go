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

package column

import (
	"fmt"

	"github.com/chunkdb/chunkdb/ts"
)

// TimeColumn is an append-only column of timeline values. A null row means
// the event is static on this timeline: present at every time. Min/max and
// sortedness stats are maintained incrementally on append so chunk stats are
// O(1) at construction.
type TimeColumn struct {
	times    []ts.TimeValue
	validity []bool
	nulls    int
	min      ts.TimeValue
	max      ts.TimeValue
	sorted   bool
}

// NewTimeColumn creates an empty TimeColumn.
func NewTimeColumn() *TimeColumn {
	return &TimeColumn{sorted: true}
}

// Len returns the number of rows, static rows included.
func (c *TimeColumn) Len() int {
	return len(c.validity)
}

// NullCount returns the number of static (null) rows.
func (c *TimeColumn) NullCount() int {
	return c.nulls
}

// Append extends the column by one temporal row.
func (c *TimeColumn) Append(t ts.TimeValue) {
	if n := len(c.times) - c.nulls; n == 0 {
		c.min, c.max = t, t
	} else {
		if t < c.max {
			c.sorted = false
		}
		if t < c.min {
			c.min = t
		}
		if t > c.max {
			c.max = t
		}
	}
	c.times = append(c.times, t)
	c.validity = append(c.validity, true)
}

// AppendNull extends the column by one static row. A static row after any
// temporal row breaks the sorted layout: sorted order keeps static rows as
// a physical prefix.
func (c *TimeColumn) AppendNull() {
	if len(c.times)-c.nulls > 0 {
		c.sorted = false
	}
	c.times = append(c.times, 0)
	c.validity = append(c.validity, false)
	c.nulls++
}

// Get returns the time at the given row, or ok=false for static rows.
func (c *TimeColumn) Get(i int) (ts.TimeValue, bool) {
	if !c.validity[i] {
		return 0, false
	}
	return c.times[i], true
}

// MinMax returns the smallest and largest temporal values, or ok=false when
// every row is static.
func (c *TimeColumn) MinMax() (ts.TimeValue, ts.TimeValue, bool) {
	if len(c.times)-c.nulls == 0 {
		return 0, 0, false
	}
	return c.min, c.max, true
}

// IsSorted reports whether the column is in sorted layout: static rows form
// a physical prefix and the temporal values after them are monotonically
// non-decreasing.
func (c *TimeColumn) IsSorted() bool {
	return c.sorted
}

// Permuted materializes a copy with rows reordered so that the i-th output
// row is the perm[i]-th input row.
func (c *TimeColumn) Permuted(perm []int) *TimeColumn {
	if len(perm) != c.Len() {
		panic(fmt.Sprintf("column: permutation of length %d over %d rows", len(perm), c.Len()))
	}
	out := NewTimeColumn()
	for _, src := range perm {
		if t, ok := c.Get(src); ok {
			out.Append(t)
		} else {
			out.AppendNull()
		}
	}
	return out
}

// AppendFrom appends every row of other.
func (c *TimeColumn) AppendFrom(other *TimeColumn) {
	for i := 0; i < other.Len(); i++ {
		if t, ok := other.Get(i); ok {
			c.Append(t)
		} else {
			c.AppendNull()
		}
	}
}

// NumBytes approximates the heap footprint of the column payload.
func (c *TimeColumn) NumBytes() int {
	return len(c.times)*8 + len(c.validity)
}

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

package chunk

import (
	"fmt"

	"github.com/chunkdb/chunkdb/column"
	"github.com/chunkdb/chunkdb/ts"
)

// Row is one event to append: a time per timeline it is logged on (missing
// timelines make the row static on them) and a value per component it
// carries (missing components are null at this row).
type Row struct {
	Times  map[string]ts.TimeValue
	Values map[string]ts.Value
}

// Builder accumulates rows for one entity into a chunk. Timelines and
// components must be declared before the first row; the declared set is the
// chunk's fixed schema.
type Builder struct {
	entity    ts.EntityPath
	timelines []ts.Timeline
	times     map[string]*column.TimeColumn
	compOrder []string
	comps     map[string]*column.Buffer
	rows      int
}

// NewBuilder creates a Builder for the given entity.
func NewBuilder(entity ts.EntityPath) *Builder {
	return &Builder{
		entity: entity,
		times:  make(map[string]*column.TimeColumn),
		comps:  make(map[string]*column.Buffer),
	}
}

// AddTimeline declares a timeline column.
func (b *Builder) AddTimeline(tl ts.Timeline) *Builder {
	if _, ok := b.times[tl.Name]; !ok {
		b.timelines = append(b.timelines, tl)
		b.times[tl.Name] = column.NewTimeColumn()
	}
	return b
}

// AddComponent declares a component column of the given type.
func (b *Builder) AddComponent(name string, typ ts.ValueType) *Builder {
	if _, ok := b.comps[name]; !ok {
		b.compOrder = append(b.compOrder, name)
		b.comps[name] = column.NewBuffer(typ)
	}
	return b
}

// AppendRow appends one event. Times and values referencing undeclared
// columns, or values of the wrong type, fail with ErrSchemaMismatch and
// leave the builder unchanged.
func (b *Builder) AppendRow(row Row) error {
	for name := range row.Times {
		if _, ok := b.times[name]; !ok {
			return fmt.Errorf("%w: undeclared timeline %q", ErrSchemaMismatch, name)
		}
	}
	for name, v := range row.Values {
		col, ok := b.comps[name]
		if !ok {
			return fmt.Errorf("%w: undeclared component %q", ErrSchemaMismatch, name)
		}
		if v.Type() != col.Type() {
			return fmt.Errorf("%w: component %q declared %s, got %s",
				ErrSchemaMismatch, name, col.Type(), v.Type())
		}
	}

	for name, col := range b.times {
		if t, ok := row.Times[name]; ok {
			col.Append(t)
		} else {
			col.AppendNull()
		}
	}
	for name, col := range b.comps {
		if v, ok := row.Values[name]; ok {
			col.Append(v)
		} else {
			col.AppendNull()
		}
	}
	b.rows++
	return nil
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	return b.rows
}

// Build freezes the accumulated rows into an immutable chunk. Fails with
// ErrEmptyChunk when no rows were appended. The builder must not be used
// after a successful Build.
func (b *Builder) Build() (*Chunk, error) {
	times := make([]TimeColumnSpec, 0, len(b.timelines))
	for _, tl := range b.timelines {
		times = append(times, TimeColumnSpec{Timeline: tl, Col: b.times[tl.Name]})
	}
	comps := make([]ComponentSpec, 0, len(b.compOrder))
	for _, name := range b.compOrder {
		comps = append(comps, ComponentSpec{Name: name, Col: b.comps[name]})
	}
	return FromColumns(b.entity, times, comps)
}

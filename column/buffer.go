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

// Package column implements typed, append-only, nullable columnar storage
// for a single logical field across an ordered sequence of rows.
package column

import (
	"fmt"

	"github.com/chunkdb/chunkdb/ts"
)

// Buffer is an append-only nullable column of one value type. Appends are
// amortized O(1), random access is O(1). A Buffer is not safe for concurrent
// mutation; once frozen inside a chunk it is never mutated and may be shared
// freely between readers.
type Buffer struct {
	typ      ts.ValueType
	vecs     [][3]float64
	ints     []int64
	strs     []string
	blobs    [][]byte
	validity []bool
	nulls    int
}

// NewBuffer creates an empty Buffer for the given value type.
func NewBuffer(typ ts.ValueType) *Buffer {
	return &Buffer{typ: typ}
}

// Type returns the buffer's value type.
func (b *Buffer) Type() ts.ValueType {
	return b.typ
}

// Len returns the number of rows, null rows included.
func (b *Buffer) Len() int {
	return len(b.validity)
}

// NullCount returns the number of null rows.
func (b *Buffer) NullCount() int {
	return b.nulls
}

// Append extends the buffer by one non-null row. The value's type must match
// the buffer's type; mixing types within one column is a programming error
// and panics rather than silently coercing.
func (b *Buffer) Append(v ts.Value) {
	if v.Type() != b.typ {
		panic(fmt.Sprintf("column: appended %s value to %s buffer", v.Type(), b.typ))
	}
	switch b.typ {
	case ts.Float64Type:
		b.vecs = append(b.vecs, [3]float64{v.Float64Val()})
	case ts.Float64x3Type:
		x, y, z := v.Float64x3Val()
		b.vecs = append(b.vecs, [3]float64{x, y, z})
	case ts.Int64Type:
		b.ints = append(b.ints, v.Int64Val())
	case ts.Uint32Type:
		b.ints = append(b.ints, int64(v.Uint32Val()))
	case ts.StringType:
		b.strs = append(b.strs, v.StringVal())
	case ts.BytesType:
		b.blobs = append(b.blobs, v.BytesVal())
	}
	b.validity = append(b.validity, true)
}

// AppendNull extends the buffer by one null row.
func (b *Buffer) AppendNull() {
	switch b.typ {
	case ts.Float64Type, ts.Float64x3Type:
		b.vecs = append(b.vecs, [3]float64{})
	case ts.Int64Type, ts.Uint32Type:
		b.ints = append(b.ints, 0)
	case ts.StringType:
		b.strs = append(b.strs, "")
	case ts.BytesType:
		b.blobs = append(b.blobs, nil)
	}
	b.validity = append(b.validity, false)
	b.nulls++
}

// Get returns the value at the given row, or ok=false when the row is null.
func (b *Buffer) Get(i int) (ts.Value, bool) {
	if !b.validity[i] {
		return ts.Value{}, false
	}
	switch b.typ {
	case ts.Float64Type:
		return ts.Float64(b.vecs[i][0]), true
	case ts.Float64x3Type:
		v := b.vecs[i]
		return ts.Float64x3(v[0], v[1], v[2]), true
	case ts.Int64Type:
		return ts.Int64(b.ints[i]), true
	case ts.Uint32Type:
		return ts.Uint32(uint32(b.ints[i])), true
	case ts.StringType:
		return ts.String(b.strs[i]), true
	default:
		return ts.Bytes(b.blobs[i]), true
	}
}

// IsNull reports whether the given row is null.
func (b *Buffer) IsNull(i int) bool {
	return !b.validity[i]
}

// Slice returns a zero-copy view over rows [from, to).
func (b *Buffer) Slice(from, to int) View {
	if from < 0 || to < from || to > b.Len() {
		panic(fmt.Sprintf("column: slice [%d, %d) out of range for %d rows", from, to, b.Len()))
	}
	return View{buf: b, from: from, to: to}
}

// Permuted materializes a copy of the buffer with rows reordered so that the
// i-th output row is the perm[i]-th input row.
func (b *Buffer) Permuted(perm []int) *Buffer {
	if len(perm) != b.Len() {
		panic(fmt.Sprintf("column: permutation of length %d over %d rows", len(perm), b.Len()))
	}
	out := NewBuffer(b.typ)
	for _, src := range perm {
		if v, ok := b.Get(src); ok {
			out.Append(v)
		} else {
			out.AppendNull()
		}
	}
	return out
}

// AppendFrom appends every row of other, which must share the value type.
func (b *Buffer) AppendFrom(other *Buffer) {
	if other.typ != b.typ {
		panic(fmt.Sprintf("column: concatenating %s buffer onto %s buffer", other.typ, b.typ))
	}
	for i := 0; i < other.Len(); i++ {
		if v, ok := other.Get(i); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
}

// NumBytes approximates the heap footprint of the column payload.
func (b *Buffer) NumBytes() int {
	n := len(b.validity)
	n += len(b.vecs) * 24
	n += len(b.ints) * 8
	for _, s := range b.strs {
		n += 16 + len(s)
	}
	for _, blob := range b.blobs {
		n += 24 + len(blob)
	}
	return n
}

// View is a zero-copy window over a contiguous row range of a Buffer.
type View struct {
	buf  *Buffer
	from int
	to   int
}

// Len returns the number of rows in the view.
func (v View) Len() int {
	return v.to - v.from
}

// Get returns the value at the view-relative row, or ok=false when null.
func (v View) Get(i int) (ts.Value, bool) {
	return v.buf.Get(v.from + i)
}

// IsNull reports whether the view-relative row is null.
func (v View) IsNull(i int) bool {
	return v.buf.IsNull(v.from + i)
}

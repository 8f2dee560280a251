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

package ts

import (
	"bytes"
	"fmt"
)

// ValueType is the serialization descriptor for a component cell. Component
// schemas are open-ended: a component is identified by a stable name string
// plus one of these descriptors, resolved at insertion time.
type ValueType uint8

const (
	// Float64Type is a single 64-bit float.
	Float64Type ValueType = iota
	// Float64x3Type is a triplet of 64-bit floats (positions, velocities).
	Float64x3Type
	// Int64Type is a signed 64-bit integer.
	Int64Type
	// Uint32Type is an unsigned 32-bit integer (packed colors, class IDs).
	Uint32Type
	// StringType is a UTF-8 string (labels, media types).
	StringType
	// BytesType is an opaque binary blob.
	BytesType

	numValueTypes = iota
)

func (t ValueType) String() string {
	switch t {
	case Float64Type:
		return "float64"
	case Float64x3Type:
		return "float64x3"
	case Int64Type:
		return "int64"
	case Uint32Type:
		return "uint32"
	case StringType:
		return "string"
	case BytesType:
		return "bytes"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether the descriptor names a known type.
func (t ValueType) Valid() bool {
	return t < numValueTypes
}

// Value is one type-erased component cell: a tagged union over the supported
// value types. The zero Value is a Float64Type zero.
type Value struct {
	typ ValueType
	vec [3]float64
	i   int64
	s   string
	b   []byte
}

// Float64 constructs a Float64Type value.
func Float64(v float64) Value {
	return Value{typ: Float64Type, vec: [3]float64{v}}
}

// Float64x3 constructs a Float64x3Type value.
func Float64x3(x, y, z float64) Value {
	return Value{typ: Float64x3Type, vec: [3]float64{x, y, z}}
}

// Int64 constructs an Int64Type value.
func Int64(v int64) Value {
	return Value{typ: Int64Type, i: v}
}

// Uint32 constructs a Uint32Type value.
func Uint32(v uint32) Value {
	return Value{typ: Uint32Type, i: int64(v)}
}

// String constructs a StringType value.
func String(v string) Value {
	return Value{typ: StringType, s: v}
}

// Bytes constructs a BytesType value. The slice is not copied; callers must
// not mutate it after handing it over.
func Bytes(v []byte) Value {
	return Value{typ: BytesType, b: v}
}

// Type returns the value's descriptor.
func (v Value) Type() ValueType {
	return v.typ
}

// Float64Val returns the cell payload for Float64Type values.
func (v Value) Float64Val() float64 {
	return v.vec[0]
}

// Float64x3Val returns the cell payload for Float64x3Type values.
func (v Value) Float64x3Val() (float64, float64, float64) {
	return v.vec[0], v.vec[1], v.vec[2]
}

// Int64Val returns the cell payload for Int64Type values.
func (v Value) Int64Val() int64 {
	return v.i
}

// Uint32Val returns the cell payload for Uint32Type values.
func (v Value) Uint32Val() uint32 {
	return uint32(v.i)
}

// StringVal returns the cell payload for StringType values.
func (v Value) StringVal() string {
	return v.s
}

// BytesVal returns the cell payload for BytesType values.
func (v Value) BytesVal() []byte {
	return v.b
}

// Equal reports whether two values share a type and payload.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case StringType:
		return v.s == other.s
	case BytesType:
		return bytes.Equal(v.b, other.b)
	case Int64Type, Uint32Type:
		return v.i == other.i
	default:
		return v.vec == other.vec
	}
}

func (v Value) String() string {
	switch v.typ {
	case Float64Type:
		return fmt.Sprintf("%v", v.vec[0])
	case Float64x3Type:
		return fmt.Sprintf("(%v, %v, %v)", v.vec[0], v.vec[1], v.vec[2])
	case Int64Type:
		return fmt.Sprintf("%d", v.i)
	case Uint32Type:
		return fmt.Sprintf("%d", uint32(v.i))
	case StringType:
		return v.s
	case BytesType:
		return fmt.Sprintf("bytes[%d]", len(v.b))
	default:
		return "invalid"
	}
}

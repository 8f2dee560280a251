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

// Package dataframe materializes query output as Apache Arrow records.
package dataframe

import (
	"fmt"

	"github.com/chunkdb/chunkdb/query"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
)

// ArrowType maps a component value type to its arrow representation.
func ArrowType(t ts.ValueType) (arrow.DataType, error) {
	switch t {
	case ts.Float64Type:
		return arrow.PrimitiveTypes.Float64, nil
	case ts.Float64x3Type:
		return arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Float64), nil
	case ts.Int64Type:
		return arrow.PrimitiveTypes.Int64, nil
	case ts.Uint32Type:
		return arrow.PrimitiveTypes.Uint32, nil
	case ts.StringType:
		return arrow.BinaryTypes.String, nil
	case ts.BytesType:
		return arrow.BinaryTypes.Binary, nil
	}
	return nil, fmt.Errorf("no arrow mapping for value type %s", t)
}

// SchemaOf builds the arrow schema for a column set: the index timeline
// first as a nullable int64 (null marks the static row), then one nullable
// field per column, named "/entity:Component".
func SchemaOf(indexTimeline string, cols []query.ColumnSchema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(cols)+1)
	fields = append(fields, arrow.Field{
		Name:     indexTimeline,
		Type:     arrow.PrimitiveTypes.Int64,
		Nullable: true,
	})
	for _, col := range cols {
		typ, err := ArrowType(col.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: col.Name(), Type: typ, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// FromIterator drains a batch iterator into a single arrow record. The
// iterator is closed regardless of outcome. The caller owns the record and
// must Release it.
func FromIterator(mem memory.Allocator, indexTimeline string, it query.BatchIterator) (arrow.Record, error) {
	defer it.Close() //nolint:errcheck

	var (
		b         *array.RecordBuilder
		appenders []func(ts.Value, bool)
	)
	for it.Next() {
		batch := it.Current()
		if b == nil {
			schema, err := SchemaOf(indexTimeline, columnSchemas(batch))
			if err != nil {
				return nil, err
			}
			b = array.NewRecordBuilder(mem, schema)
			appenders = make([]func(ts.Value, bool), len(batch.Columns))
			for i := range batch.Columns {
				appenders[i], err = appender(b.Field(i + 1))
				if err != nil {
					b.Release()
					return nil, err
				}
			}
		}
		times := b.Field(0).(*array.Int64Builder)
		for row := 0; row < batch.NumRows(); row++ {
			if batch.TimeValid[row] {
				times.Append(int64(batch.Times[row]))
			} else {
				times.AppendNull()
			}
			for i, col := range batch.Columns {
				appenders[i](col.Values[row], col.Valid[row])
			}
		}
	}
	if err := it.Err(); err != nil {
		if b != nil {
			b.Release()
		}
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	defer b.Release()
	return b.NewRecord(), nil
}

// FromView materializes the view and converts the whole output to one arrow
// record. A nil record with nil error means the view selected nothing.
func FromView(mem memory.Allocator, indexTimeline string, v *query.View, columns ...string) (arrow.Record, error) {
	it, err := v.Select(columns...)
	if err != nil {
		return nil, err
	}
	return FromIterator(mem, indexTimeline, it)
}

func columnSchemas(b *query.Batch) []query.ColumnSchema {
	cols := make([]query.ColumnSchema, len(b.Columns))
	for i, col := range b.Columns {
		cols[i] = col.Schema
	}
	return cols
}

func appender(b array.Builder) (func(ts.Value, bool), error) {
	switch e := b.(type) {
	case *array.Float64Builder:
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(v.Float64Val())
		}, nil
	case *array.FixedSizeListBuilder:
		vals := e.ValueBuilder().(*array.Float64Builder)
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(true)
			x, y, z := v.Float64x3Val()
			vals.Append(x)
			vals.Append(y)
			vals.Append(z)
		}, nil
	case *array.Int64Builder:
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(v.Int64Val())
		}, nil
	case *array.Uint32Builder:
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(v.Uint32Val())
		}, nil
	case *array.StringBuilder:
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(v.StringVal())
		}, nil
	case *array.BinaryBuilder:
		return func(v ts.Value, valid bool) {
			if !valid {
				e.AppendNull()
				return
			}
			e.Append(v.BytesVal())
		}, nil
	}
	return nil, fmt.Errorf("unsupported arrow builder %T", b)
}

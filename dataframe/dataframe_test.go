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

package dataframe

import (
	"testing"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/query"
	"github.com/chunkdb/chunkdb/storage"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromView(t *testing.T) {
	s, err := storage.NewStore(nil)
	require.NoError(t, err)

	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(ts.SequenceTimeline("frame_nr")).
		AddComponent("Position3D", ts.Float64x3Type).
		AddComponent("Speed", ts.Float64Type)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 0},
		Values: map[string]ts.Value{"Position3D": ts.Float64x3(1, 2, 3)},
	}))
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 1},
		Values: map[string]ts.Value{"Speed": ts.Float64(9.5)},
	}))
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	mem := memory.NewGoAllocator()
	v := query.NewView(s, "frame_nr").SelectContents("/car")
	rec, err := FromView(mem, "frame_nr", v)
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	require.Equal(t, int64(3), rec.NumCols())
	assert.Equal(t, "frame_nr", rec.ColumnName(0))
	assert.Equal(t, "/car:Position3D", rec.ColumnName(1))
	assert.Equal(t, "/car:Speed", rec.ColumnName(2))

	frames := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(0), frames.Value(0))
	assert.Equal(t, int64(1), frames.Value(1))

	pos := rec.Column(1).(*array.FixedSizeList)
	require.False(t, pos.IsNull(0))
	require.True(t, pos.IsNull(1))
	xyz := pos.ListValues().(*array.Float64)
	assert.Equal(t, 1.0, xyz.Value(0))
	assert.Equal(t, 2.0, xyz.Value(1))
	assert.Equal(t, 3.0, xyz.Value(2))

	speed := rec.Column(2).(*array.Float64)
	require.True(t, speed.IsNull(0))
	assert.Equal(t, 9.5, speed.Value(1))
}

func TestFromViewEmpty(t *testing.T) {
	s, err := storage.NewStore(nil)
	require.NoError(t, err)

	v := query.NewView(s, "frame_nr").SelectContents("/**")
	rec, err := FromView(memory.NewGoAllocator(), "frame_nr", v)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestArrowTypeMapping(t *testing.T) {
	for _, typ := range []ts.ValueType{
		ts.Float64Type, ts.Float64x3Type, ts.Int64Type,
		ts.Uint32Type, ts.StringType, ts.BytesType,
	} {
		at, err := ArrowType(typ)
		require.NoError(t, err)
		assert.NotNil(t, at)
	}
}

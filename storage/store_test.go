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

package storage

import (
	"testing"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameNr = ts.SequenceTimeline("frame_nr")

func newTestStore(t *testing.T, opts Options) Store {
	t.Helper()
	if opts == nil {
		// Disable opportunistic compaction so tests control it.
		opts = NewOptions().SetCompactionEveryNumInserts(0)
	}
	s, err := NewStore(opts)
	require.NoError(t, err)
	return s
}

func positionChunk(t *testing.T, entity string, frames []ts.TimeValue, xs []float64) *chunk.Chunk {
	t.Helper()
	b := chunk.NewBuilder(ts.NewEntityPath(entity)).
		AddTimeline(frameNr).
		AddComponent("Position3D", ts.Float64x3Type)
	for i, f := range frames {
		require.NoError(t, b.AppendRow(chunk.Row{
			Times:  map[string]ts.TimeValue{"frame_nr": f},
			Values: map[string]ts.Value{"Position3D": ts.Float64x3(xs[i], 0, 0)},
		}))
	}
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func TestLatestAtBasic(t *testing.T) {
	// Insert frames [0,1,2] for /car; latest-at frame 1 must be the frame
	// 1 row.
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0, 1, 2}, []float64{0, 1, 2})))

	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 1, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(1), res.Time)
	assert.False(t, res.Static)
	x, y, z := res.Value.Float64x3Val()
	assert.Equal(t, []float64{1, 0, 0}, []float64{x, y, z})

	// Before the first event there is nothing.
	_, ok = s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", -1, "Position3D")
	assert.False(t, ok)

	// After the last event the last row sticks.
	res, ok = s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 100, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(2), res.Time)
}

func TestLatestAtMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))

	_, ok := s.LatestAt(ts.NewEntityPath("/nope"), "frame_nr", 0, "Position3D")
	assert.False(t, ok)
	_, ok = s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 0, "Color")
	assert.False(t, ok)
	_, ok = s.LatestAt(ts.NewEntityPath("/car"), "log_time", 0, "Position3D")
	// No temporal rows on log_time, but the rows are static on it.
	require.True(t, ok)
}

func TestLatestAtTieBreakLastWriteWins(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{5}, []float64{1})))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{5}, []float64{2})))

	for i := 0; i < 10; i++ {
		res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 5, "Position3D")
		require.True(t, ok)
		x, _, _ := res.Value.Float64x3Val()
		assert.Equal(t, 2.0, x)
	}

	// Within one chunk the later row wins too.
	require.NoError(t, s.Insert(positionChunk(t, "/bike", []ts.TimeValue{7, 7}, []float64{1, 2})))
	res, ok := s.LatestAt(ts.NewEntityPath("/bike"), "frame_nr", 7, "Position3D")
	require.True(t, ok)
	x, _, _ := res.Value.Float64x3Val()
	assert.Equal(t, 2.0, x)
}

func TestLatestAtUnsortedChunk(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{9, 2, 5}, []float64{9, 2, 5})))

	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 6, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(5), res.Time)
	x, _, _ := res.Value.Float64x3Val()
	assert.Equal(t, 5.0, x)
}

func TestLatestAtStaticFallback(t *testing.T) {
	s := newTestStore(t, nil)

	b := chunk.NewBuilder(ts.NewEntityPath("/map")).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{Values: map[string]ts.Value{"Label": ts.String("old")}}))
	require.NoError(t, b.AppendRow(chunk.Row{Values: map[string]ts.Value{"Label": ts.String("new")}}))
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	res, ok := s.LatestAt(ts.NewEntityPath("/map"), "frame_nr", 3, "Label")
	require.True(t, ok)
	assert.True(t, res.Static)
	assert.Equal(t, "new", res.Value.StringVal())

	// A temporal row beats the static fallback.
	b = chunk.NewBuilder(ts.NewEntityPath("/map")).
		AddTimeline(frameNr).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 1},
		Values: map[string]ts.Value{"Label": ts.String("temporal")},
	}))
	c, err = b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	res, ok = s.LatestAt(ts.NewEntityPath("/map"), "frame_nr", 3, "Label")
	require.True(t, ok)
	assert.False(t, res.Static)
	assert.Equal(t, "temporal", res.Value.StringVal())
}

func TestLatestAtMixedChunkTemporalThenStatic(t *testing.T) {
	// One chunk whose physical order is a temporal row followed by a
	// static one. Sorting must move the static row to the prefix or the
	// temporal event disappears behind it.
	s := newTestStore(t, nil)
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 5},
		Values: map[string]ts.Value{"Label": ts.String("temporal")},
	}))
	require.NoError(t, b.AppendRow(chunk.Row{
		Values: map[string]ts.Value{"Label": ts.String("static")},
	}))
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 10, "Label")
	require.True(t, ok)
	assert.False(t, res.Static)
	assert.Equal(t, ts.TimeValue(5), res.Time)
	assert.Equal(t, "temporal", res.Value.StringVal())

	// Before the event the static row is the fallback.
	res, ok = s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 2, "Label")
	require.True(t, ok)
	assert.True(t, res.Static)
	assert.Equal(t, "static", res.Value.StringVal())
}

func TestLatestAtMixedChunkInterleaved(t *testing.T) {
	s := newTestStore(t, nil)
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Label", ts.StringType)
	for _, r := range []chunk.Row{
		{Values: map[string]ts.Value{"Label": ts.String("s0")}},
		{Times: map[string]ts.TimeValue{"frame_nr": 3},
			Values: map[string]ts.Value{"Label": ts.String("t3")}},
		{Values: map[string]ts.Value{"Label": ts.String("s1")}},
		{Times: map[string]ts.TimeValue{"frame_nr": 7},
			Values: map[string]ts.Value{"Label": ts.String("t7")}},
	} {
		require.NoError(t, b.AppendRow(r))
	}
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 5, "Label")
	require.True(t, ok)
	assert.False(t, res.Static)
	assert.Equal(t, ts.TimeValue(3), res.Time)
	assert.Equal(t, "t3", res.Value.StringVal())

	// Below every event the most recently appended static row wins.
	res, ok = s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 0, "Label")
	require.True(t, ok)
	assert.True(t, res.Static)
	assert.Equal(t, "s1", res.Value.StringVal())
}

func TestChunksOverlapping(t *testing.T) {
	// Two chunks covering [0,10) and [10,20); the range (5,15) hits both.
	s := newTestStore(t, nil)
	first := positionChunk(t, "/car",
		[]ts.TimeValue{0, 3, 6, 9}, []float64{0, 3, 6, 9})
	second := positionChunk(t, "/car",
		[]ts.TimeValue{10, 13, 16, 19}, []float64{10, 13, 16, 19})
	require.NoError(t, s.Insert(first))
	require.NoError(t, s.Insert(second))

	got := s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 5, 15)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID(), got[0].ID())
	assert.Equal(t, second.ID(), got[1].ID())

	got = s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 25, 30)
	assert.Empty(t, got)

	got = s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 0, 4)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID(), got[0].ID())
}

func TestChunksOverlappingIncludesStatic(t *testing.T) {
	s := newTestStore(t, nil)
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{Values: map[string]ts.Value{"Label": ts.String("x")}}))
	static, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(static))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{100}, []float64{1})))

	got := s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 0, 10)
	require.Len(t, got, 1)
	assert.Equal(t, static.ID(), got[0].ID())
}

func TestChunksOverlappingMixedChunkOnce(t *testing.T) {
	// A chunk carrying both temporal and static rows is indexed in the
	// interval entries and the static list; candidates must come back
	// deduplicated, and outside the temporal extent the static rows still
	// make it visible.
	s := newTestStore(t, nil)
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 100},
		Values: map[string]ts.Value{"Label": ts.String("temporal")},
	}))
	require.NoError(t, b.AppendRow(chunk.Row{
		Values: map[string]ts.Value{"Label": ts.String("static")},
	}))
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(c))

	got := s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 90, 110)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID(), got[0].ID())

	got = s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 0, 10)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID(), got[0].ID())
}

func TestInsertSchemaConflict(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))

	// Same entity, same component name, different type: rejected whole.
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Position3D", ts.Float64Type).
		AddComponent("Color", ts.Uint32Type)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 1},
		Values: map[string]ts.Value{"Position3D": ts.Float64(1), "Color": ts.Uint32(7)},
	}))
	bad, err := b.Build()
	require.NoError(t, err)

	err = s.Insert(bad)
	require.ErrorIs(t, err, ErrSchemaConflict)

	// All-or-nothing: nothing of the rejected chunk is visible, not even
	// the conflict-free Color column.
	assert.Equal(t, 1, s.NumChunks())
	_, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 10, "Color")
	assert.False(t, ok)
}

func TestSchemaConflictScopedPerEntity(t *testing.T) {
	// The same component name may carry different types on different
	// entities.
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))

	b := chunk.NewBuilder(ts.NewEntityPath("/truck")).
		AddTimeline(frameNr).
		AddComponent("Position3D", ts.Float64Type)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 0},
		Values: map[string]ts.Value{"Position3D": ts.Float64(1)},
	}))
	other, err := b.Build()
	require.NoError(t, err)

	assert.NoError(t, s.Insert(other))
}

func TestChunksForAndStats(t *testing.T) {
	s := newTestStore(t, nil)
	assert.Empty(t, s.ChunksFor(ts.NewEntityPath("/car")))

	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0, 1}, []float64{0, 1})))
	require.NoError(t, s.Insert(positionChunk(t, "/truck", []ts.TimeValue{0}, []float64{0})))

	assert.Len(t, s.ChunksFor(ts.NewEntityPath("/car")), 1)
	assert.Equal(t, 2, s.NumChunks())
	assert.Equal(t, 3, s.NumRows())
	assert.True(t, s.NumBytes() > 0)
	assert.Equal(t,
		[]ts.EntityPath{ts.NewEntityPath("/car"), ts.NewEntityPath("/truck")},
		s.Entities())
	require.Len(t, s.Timelines(), 1)
	assert.Equal(t, frameNr, s.Timelines()[0])
}

func TestClear(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))
	s.Clear()
	assert.Equal(t, 0, s.NumChunks())
	assert.Equal(t, 0, s.NumRows())
	assert.Empty(t, s.Entities())

	// Still usable, and prior schemas no longer constrain inserts.
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Position3D", ts.Float64Type)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 0},
		Values: map[string]ts.Value{"Position3D": ts.Float64(1)},
	}))
	c, err := b.Build()
	require.NoError(t, err)
	assert.NoError(t, s.Insert(c))
}

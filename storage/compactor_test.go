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

func TestCompactMergesSmallChunks(t *testing.T) {
	s := newTestStore(t, nil)
	for i := 0; i < 8; i++ {
		f := ts.TimeValue(i)
		require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{f}, []float64{float64(i)})))
	}
	require.Equal(t, 8, s.NumChunks())

	res := s.Compact()
	assert.Equal(t, 1, res.Compactions)
	assert.Equal(t, 8, res.ChunksMerged)
	assert.Equal(t, 8, res.RowsMerged)
	assert.Equal(t, 1, s.NumChunks())
	assert.Equal(t, 8, s.NumRows())
}

func TestCompactionTransparency(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0, 1}, []float64{0, 1})))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{1, 4}, []float64{10, 4})))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{2, 3}, []float64{2, 3})))

	type obs struct {
		res LatestAtResult
		ok  bool
	}
	snapshot := func() []obs {
		var out []obs
		for at := ts.TimeValue(-1); at <= 6; at++ {
			res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", at, "Position3D")
			out = append(out, obs{res: res, ok: ok})
		}
		return out
	}

	before := snapshot()
	s.Compact()
	assert.Equal(t, before, snapshot())
	assert.Equal(t, 6, s.NumRows())

	// Tie at frame 1: the second insert still wins after its rows were
	// folded into a superchunk.
	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 1, "Position3D")
	require.True(t, ok)
	x, _, _ := res.Value.Float64x3Val()
	assert.Equal(t, 10.0, x)
}

func TestCompactIdempotent(t *testing.T) {
	s := newTestStore(t, nil)
	for i := 0; i < 6; i++ {
		f := ts.TimeValue(i)
		require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{f}, []float64{float64(i)})))
	}
	first := s.Compact()
	require.Equal(t, 1, first.Compactions)
	rows, chunks := s.NumRows(), s.NumChunks()

	second := s.Compact()
	assert.Equal(t, 0, second.Compactions)
	assert.Equal(t, 0, second.ChunksMerged)
	assert.Equal(t, rows, s.NumRows())
	assert.Equal(t, chunks, s.NumChunks())
}

func TestCompactRespectsRowCeiling(t *testing.T) {
	opts := NewOptions().
		SetCompactionEveryNumInserts(0).
		SetCompactionMaxChunkRows(4)
	s := newTestStore(t, opts)
	for i := 0; i < 6; i++ {
		f := ts.TimeValue(i * 2)
		require.NoError(t, s.Insert(positionChunk(t, "/car",
			[]ts.TimeValue{f, f + 1}, []float64{float64(i), float64(i)})))
	}
	// Six 2-row chunks with a 4-row ceiling merge pairwise.
	res := s.Compact()
	assert.Equal(t, 3, res.Compactions)
	assert.Equal(t, 3, s.NumChunks())
	assert.Equal(t, 12, s.NumRows())
}

func TestCompactSkipsOversizedRuns(t *testing.T) {
	opts := NewOptions().
		SetCompactionEveryNumInserts(0).
		SetCompactionMaxChunkRows(3)
	s := newTestStore(t, opts)
	require.NoError(t, s.Insert(positionChunk(t, "/car",
		[]ts.TimeValue{0, 1}, []float64{0, 1})))
	require.NoError(t, s.Insert(positionChunk(t, "/car",
		[]ts.TimeValue{2, 3}, []float64{2, 3})))

	res := s.Compact()
	assert.Equal(t, 0, res.Compactions)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, s.NumChunks())
}

func TestCompactOnlyAdjacentSameSchema(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))

	// A chunk with a different schema splits the run.
	b := chunk.NewBuilder(ts.NewEntityPath("/car")).
		AddTimeline(frameNr).
		AddComponent("Label", ts.StringType)
	require.NoError(t, b.AppendRow(chunk.Row{
		Times:  map[string]ts.TimeValue{"frame_nr": 1},
		Values: map[string]ts.Value{"Label": ts.String("x")},
	}))
	other, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, s.Insert(other))

	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{2}, []float64{2})))

	res := s.Compact()
	assert.Equal(t, 0, res.Compactions)
	assert.Equal(t, 3, s.NumChunks())
}

func TestCompactOutOfOrderChunksStayQueryable(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{10, 11}, []float64{10, 11})))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0, 1}, []float64{0, 1})))

	res := s.Compact()
	require.Equal(t, 1, res.Compactions)

	got, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 5, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(1), got.Time)

	chunks := s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 0, 20)
	require.Len(t, chunks, 1)
	// Pure concatenation leaves the merged chunk unsorted; queries sort
	// lazily.
	assert.False(t, chunks[0].IsSorted("frame_nr"))
}

func TestOpportunisticCompaction(t *testing.T) {
	opts := NewOptions().SetCompactionEveryNumInserts(4)
	s := newTestStore(t, opts)
	for i := 0; i < 4; i++ {
		f := ts.TimeValue(i)
		require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{f}, []float64{float64(i)})))
	}
	// The fourth insert triggered a compaction pass.
	assert.Equal(t, 1, s.NumChunks())
	assert.Equal(t, 4, s.NumRows())
}

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
	"sync"
	"testing"
	"time"

	"github.com/chunkdb/chunkdb/ts"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionOldestFirst(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))
	perChunk := s.NumBytes()

	opts := NewOptions().
		SetCompactionEveryNumInserts(0).
		SetMaxRecordingBytes(3 * perChunk)
	s = newTestStore(t, opts)

	first := positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})
	require.NoError(t, s.Insert(first))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{1}, []float64{1})))
	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{2}, []float64{2})))
	assert.Equal(t, 3, s.NumChunks())
	assert.Equal(t, EvictionStats{}, s.EvictionStats())

	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{3}, []float64{3})))

	assert.Equal(t, 3, s.NumChunks())
	stats := s.EvictionStats()
	assert.Equal(t, int64(1), stats.Chunks)
	assert.Equal(t, int64(1), stats.Rows)
	assert.True(t, stats.Bytes > 0)

	evicted := s.EvictedChunks()
	require.Len(t, evicted, 1)
	assert.Equal(t, first.ID(), evicted[0].ID)
	assert.Equal(t, ts.NewEntityPath("/car"), evicted[0].Entity)

	// The oldest event is gone; the rest answer as before.
	_, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 0, "Position3D")
	assert.False(t, ok)
	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 3, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(3), res.Time)
}

func TestEvictionNeverRemovesJustInserted(t *testing.T) {
	opts := NewOptions().
		SetCompactionEveryNumInserts(0).
		SetMaxRecordingBytes(1) // absurdly small
	s := newTestStore(t, opts)

	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{0}, []float64{0})))
	assert.Equal(t, 1, s.NumChunks())

	require.NoError(t, s.Insert(positionChunk(t, "/car", []ts.TimeValue{1}, []float64{1})))
	assert.Equal(t, 1, s.NumChunks())
	res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", 5, "Position3D")
	require.True(t, ok)
	assert.Equal(t, ts.TimeValue(1), res.Time)
}

// Queries running concurrently with inserts, compaction and eviction must
// only ever observe complete states: for any frame f that LatestAt resolves,
// the value is exactly the one written for f.
func TestConcurrentQueriesDuringMutation(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Minute)()

	opts := NewOptions().
		SetCompactionEveryNumInserts(8).
		SetMaxRecordingBytes(1 << 16)
	s := newTestStore(t, opts)

	const numInserts = 500
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < numInserts; i++ {
			f := ts.TimeValue(i)
			if err := s.Insert(positionChunk(t, "/car", []ts.TimeValue{f}, []float64{float64(i)})); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				res, ok := s.LatestAt(ts.NewEntityPath("/car"), "frame_nr", numInserts, "Position3D")
				if !ok {
					continue
				}
				x, _, _ := res.Value.Float64x3Val()
				if float64(res.Time) != x {
					t.Errorf("latest-at returned torn row: time=%d x=%v", res.Time, x)
					return
				}
				snapshot := s.ChunksOverlapping(ts.NewEntityPath("/car"), "frame_nr", 0, numInserts)
				rows := 0
				for _, c := range snapshot {
					rows += c.RowCount()
				}
				if rows == 0 {
					t.Error("snapshot lost all rows while latest-at saw data")
					return
				}
			}
		}()
	}

	wg.Wait()
}

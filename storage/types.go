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

// Package storage implements the per-recording chunk store: an append-only,
// multi-index aggregate of immutable chunks supporting range and latest-at
// queries, best-effort compaction and byte-budget eviction.
package storage

import (
	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/ts"
)

// Store is the queryable aggregate of all chunks for one recording. It is
// safe for concurrent use: mutation (Insert, Compact, eviction) is
// internally serialized, readers operate on immutable snapshots and never
// observe partial state. Recordings are fully independent; each gets its own
// Store handle.
type Store interface {
	// Insert publishes a chunk into the store's indexes. Insertion is
	// all-or-nothing: a chunk whose component types conflict with prior
	// chunks of the same entity fails with ErrSchemaConflict and leaves
	// the store untouched.
	Insert(c *chunk.Chunk) error

	// ChunksFor returns every chunk stored for the entity, in insertion
	// order.
	ChunksFor(entity ts.EntityPath) []*chunk.Chunk

	// ChunksOverlapping returns every chunk for the entity whose time
	// range on the timeline intersects [start, end], plus chunks carrying
	// static rows (present at every time). Pruning uses per-chunk stats
	// and never yields false negatives.
	ChunksOverlapping(entity ts.EntityPath, timeline string, start, end ts.TimeValue) []*chunk.Chunk

	// LatestAt returns the component value with the greatest time on the
	// timeline that is ≤ at. Rows at equal times resolve to the most
	// recently inserted (last write wins). Static rows are the fallback
	// when no temporal row qualifies. ok=false means no data, which is
	// not an error.
	LatestAt(entity ts.EntityPath, timeline string, at ts.TimeValue, component string) (LatestAtResult, bool)

	// Compact merges small runs of adjacent same-schema chunks into
	// superchunks. It is best-effort, idempotent and observably a no-op
	// for queries.
	Compact() CompactionResult

	// Entities returns every entity path with stored chunks, sorted.
	Entities() []ts.EntityPath

	// Timelines returns every timeline seen across stored chunks.
	Timelines() []ts.Timeline

	// NumChunks returns the number of live chunks.
	NumChunks() int

	// NumRows returns the number of live rows across all chunks.
	NumRows() int

	// NumBytes returns the approximate payload bytes of live chunks.
	NumBytes() int64

	// EvictionStats returns cumulative eviction counters.
	EvictionStats() EvictionStats

	// EvictedChunks returns metadata for every chunk evicted so far.
	EvictedChunks() []EvictedChunk

	// Clear drops all chunks and indexes, keeping the store usable.
	Clear()
}

// LatestAtResult is the row located by Store.LatestAt.
type LatestAtResult struct {
	// Time is the located row's time on the queried timeline; zero and
	// meaningless when Static is set.
	Time ts.TimeValue

	// Static is set when the value came from a static row (no value on
	// the queried timeline).
	Static bool

	// Value is the located cell.
	Value ts.Value
}

// CompactionResult summarizes one Compact call.
type CompactionResult struct {
	// Compactions is the number of merge groups executed.
	Compactions int

	// ChunksMerged is the number of input chunks consumed by merges.
	ChunksMerged int

	// RowsMerged is the number of rows moved into superchunks.
	RowsMerged int

	// Skipped is the number of candidate runs left alone because merging
	// would exceed the configured ceilings.
	Skipped int
}

// EvictionStats are cumulative counters of budget-driven eviction.
type EvictionStats struct {
	Chunks int64
	Rows   int64
	Bytes  int64
}

// EvictedChunk is the retained metadata of one evicted chunk.
type EvictedChunk struct {
	ID     chunk.ID
	Entity ts.EntityPath
	Rows   int
	Bytes  int
}

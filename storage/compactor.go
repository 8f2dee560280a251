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
	"sort"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/ts"

	"go.uber.org/zap"
)

// mergePlan is one group of adjacent, merge-compatible chunks to fold into a
// superchunk. Adjacency is in per-entity insertion order so the merged row
// order keeps encoding the last-write-wins tie-break.
type mergePlan struct {
	entity ts.EntityPath
	refs   []chunkRef
}

// Compact merges small runs of adjacent same-schema chunks into superchunks,
// trading ingestion-time CPU for query-time and memory efficiency. Planning
// takes a read snapshot; the expensive merge work runs on private copies
// without any lock; each swap is a brief atomic index update that verifies
// its inputs are still live (best-effort: inputs evicted mid-merge simply
// void that plan). Re-invoking with no intervening insert changes nothing.
func (s *store) Compact() CompactionResult {
	plans, skipped := s.planCompaction()
	res := CompactionResult{Skipped: skipped}
	s.metrics.mergesSkipped.Inc(int64(skipped))

	for _, plan := range plans {
		chunks := make([]*chunk.Chunk, 0, len(plan.refs))
		for _, ref := range plan.refs {
			chunks = append(chunks, ref.c)
		}
		merged, err := chunk.Merge(chunks...)
		if err != nil {
			s.log.Warn("compaction merge failed, skipping group",
				zap.String("entity", plan.entity.String()),
				zap.Error(err))
			continue
		}
		if !s.swapCompacted(plan, merged) {
			continue
		}
		res.Compactions++
		res.ChunksMerged += len(plan.refs)
		res.RowsMerged += merged.RowCount()
		s.metrics.compactions.Inc(1)
		s.metrics.chunksMerged.Inc(int64(len(plan.refs)))
	}

	if res.Compactions > 0 {
		s.log.Debug("compacted recording",
			zap.Int("compactions", res.Compactions),
			zap.Int("chunksMerged", res.ChunksMerged),
			zap.Int("rowsMerged", res.RowsMerged),
			zap.Int("skipped", res.Skipped))
	}
	return res
}

// planCompaction walks every entity's chunks in insertion order, splits them
// into maximal runs of equal schema fingerprints, and greedily groups run
// members while the combined row count and payload stay under the configured
// ceilings. Runs of two or more chunks that yield no group count as skipped.
func (s *store) planCompaction() ([]mergePlan, int) {
	maxRows := s.opts.CompactionMaxChunkRows()
	maxBytes := s.opts.CompactionMaxChunkBytes()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		plans   []mergePlan
		skipped int
	)
	for entity, ec := range s.entities {
		i := 0
		for i < len(ec.refs) {
			// Maximal run [i, j) sharing a fingerprint.
			fp := ec.refs[i].c.Schema().Fingerprint()
			j := i + 1
			for j < len(ec.refs) && ec.refs[j].c.Schema().Fingerprint() == fp {
				j++
			}
			if j-i >= 2 {
				groups := groupUnderCeilings(ec.refs[i:j], maxRows, maxBytes)
				if len(groups) == 0 {
					skipped++
				}
				for _, g := range groups {
					plans = append(plans, mergePlan{
						entity: entity,
						refs:   append([]chunkRef(nil), g...),
					})
				}
			}
			i = j
		}
	}
	return plans, skipped
}

func groupUnderCeilings(run []chunkRef, maxRows, maxBytes int) [][]chunkRef {
	var (
		groups   [][]chunkRef
		cur      []chunkRef
		curRows  int
		curBytes int
	)
	flush := func() {
		if len(cur) >= 2 {
			groups = append(groups, cur)
		}
		cur = nil
		curRows, curBytes = 0, 0
	}
	for _, ref := range run {
		rows, bytes := ref.c.RowCount(), ref.c.NumBytes()
		if len(cur) > 0 && (curRows+rows > maxRows || curBytes+bytes > maxBytes) {
			flush()
		}
		cur = append(cur, ref)
		curRows += rows
		curBytes += bytes
	}
	flush()
	return groups
}

// swapCompacted atomically replaces the plan's input chunks with the merged
// superchunk. The superchunk takes over the greatest input sequence so its
// position in the insertion order, and therefore the tie-break, is
// unchanged. Returns false when any input vanished since planning.
func (s *store) swapCompacted(plan mergePlan, merged *chunk.Chunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ec, ok := s.entities[plan.entity]
	if !ok {
		return false
	}
	for _, ref := range plan.refs {
		if !ec.hasSeq(ref.seq) {
			return false
		}
	}

	var inputBytes int
	for _, ref := range plan.refs {
		ec.removeRef(ref.seq)
		s.removeGlobalWithLock(ref.seq)
		inputBytes += ref.c.NumBytes()
	}
	maxSeq := plan.refs[len(plan.refs)-1].seq
	ec.insertRef(chunkRef{seq: maxSeq, c: merged})
	s.insertGlobalWithLock(globalRef{seq: maxSeq, entity: plan.entity})

	s.numChunks.Sub(int64(len(plan.refs) - 1))
	s.numBytes.Add(int64(merged.NumBytes() - inputBytes))
	s.metrics.liveChunks.Update(float64(s.numChunks.Load()))
	s.metrics.liveBytes.Update(float64(s.numBytes.Load()))
	return true
}

func (ec *entityChunks) hasSeq(seq uint64) bool {
	i := sort.Search(len(ec.refs), func(i int) bool {
		return ec.refs[i].seq >= seq
	})
	return i < len(ec.refs) && ec.refs[i].seq == seq
}

func (s *store) removeGlobalWithLock(seq uint64) {
	i := sort.Search(len(s.bySeq), func(i int) bool {
		return s.bySeq[i].seq >= seq
	})
	if i < len(s.bySeq) && s.bySeq[i].seq == seq {
		s.bySeq = append(s.bySeq[:i], s.bySeq[i+1:]...)
	}
}

func (s *store) insertGlobalWithLock(ref globalRef) {
	i := sort.Search(len(s.bySeq), func(i int) bool {
		return s.bySeq[i].seq >= ref.seq
	})
	s.bySeq = append(s.bySeq, globalRef{})
	copy(s.bySeq[i+1:], s.bySeq[i:])
	s.bySeq[i] = ref
}

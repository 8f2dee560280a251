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
)

// chunkRef is a published chunk plus its insertion sequence number. The
// sequence is the tie-break for rows at equal times: higher sequence wins.
type chunkRef struct {
	seq uint64
	c   *chunk.Chunk
}

// intervalEntry indexes one chunk's [min, max] stats on a timeline.
type intervalEntry struct {
	min ts.TimeValue
	max ts.TimeValue
	ref chunkRef
}

// intervalIndex holds the temporal extents of an entity's chunks on one
// timeline, sorted by min time, plus the chunks carrying static rows on it.
// Pruning is conservative at chunk granularity: false positives are refined
// at the row level by callers, false negatives never happen.
type intervalIndex struct {
	entries []intervalEntry
	static  []chunkRef
}

func (idx *intervalIndex) insert(min, max ts.TimeValue, ref chunkRef) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].min > min
	})
	idx.entries = append(idx.entries, intervalEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = intervalEntry{min: min, max: max, ref: ref}
}

func (idx *intervalIndex) insertStatic(ref chunkRef) {
	idx.static = append(idx.static, ref)
}

// overlapping appends to out every ref whose [min, max] intersects
// [start, end]; static refs are always visible and appended too.
func (idx *intervalIndex) overlapping(start, end ts.TimeValue, out []chunkRef) []chunkRef {
	for _, e := range idx.entries {
		if e.min > end {
			break
		}
		if e.max >= start {
			out = append(out, e.ref)
		}
	}
	out = append(out, idx.static...)
	return out
}

// upTo appends to out every ref whose min is ≤ at (candidates for
// latest-at), plus static refs.
func (idx *intervalIndex) upTo(at ts.TimeValue, out []chunkRef) []chunkRef {
	for _, e := range idx.entries {
		if e.min > at {
			break
		}
		out = append(out, e.ref)
	}
	out = append(out, idx.static...)
	return out
}

func (idx *intervalIndex) remove(seq uint64) {
	for i, e := range idx.entries {
		if e.ref.seq == seq {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			break
		}
	}
	for i, ref := range idx.static {
		if ref.seq == seq {
			idx.static = append(idx.static[:i], idx.static[i+1:]...)
			break
		}
	}
}

// entityChunks aggregates one entity's chunks: the per-entity schema
// registry, the chunks in insertion order and the per-timeline interval
// indexes.
type entityChunks struct {
	componentTypes map[string]ts.ValueType
	refs           []chunkRef // ascending seq
	byTimeline     map[string]*intervalIndex
}

func newEntityChunks() *entityChunks {
	return &entityChunks{
		componentTypes: make(map[string]ts.ValueType),
		byTimeline:     make(map[string]*intervalIndex),
	}
}

func (ec *entityChunks) timelineIndex(name string) *intervalIndex {
	idx, ok := ec.byTimeline[name]
	if !ok {
		idx = &intervalIndex{}
		ec.byTimeline[name] = idx
	}
	return idx
}

// addRef registers a freshly inserted chunk's component types and indexes
// it. The caller has already validated the schema against the registry.
func (ec *entityChunks) addRef(ref chunkRef) {
	for _, name := range ref.c.Schema().Components() {
		typ, _ := ref.c.Schema().ComponentType(name)
		ec.componentTypes[name] = typ
	}
	ec.insertRef(ref)
}

// removeRef drops a chunk from the insertion-order list and every timeline
// index. The component type registry is intentionally left intact: schema
// identity for an entity outlives any one chunk.
func (ec *entityChunks) removeRef(seq uint64) (chunkRef, bool) {
	i := sort.Search(len(ec.refs), func(i int) bool {
		return ec.refs[i].seq >= seq
	})
	if i == len(ec.refs) || ec.refs[i].seq != seq {
		return chunkRef{}, false
	}
	ref := ec.refs[i]
	ec.refs = append(ec.refs[:i], ec.refs[i+1:]...)
	for _, tl := range ref.c.Schema().Timelines() {
		if idx, ok := ec.byTimeline[tl.Name]; ok {
			idx.remove(seq)
		}
	}
	return ref, true
}

// insertRef places a ref into the insertion-order list at its sequence
// position and indexes it. Used by compaction, where the merged chunk takes
// over the greatest input sequence.
func (ec *entityChunks) insertRef(ref chunkRef) {
	i := sort.Search(len(ec.refs), func(i int) bool {
		return ec.refs[i].seq >= ref.seq
	})
	ec.refs = append(ec.refs, chunkRef{})
	copy(ec.refs[i+1:], ec.refs[i:])
	ec.refs[i] = ref
	for _, tl := range ref.c.Schema().Timelines() {
		idx := ec.timelineIndex(tl.Name)
		if min, max, ok := ref.c.TimeRange(tl.Name); ok {
			idx.insert(min, max, ref)
		}
		if ref.c.NumStaticRows(tl.Name) > 0 {
			idx.insertStatic(ref)
		}
	}
}

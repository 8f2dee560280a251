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
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/instrument"
	"github.com/chunkdb/chunkdb/ts"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrSchemaConflict is returned when an inserted chunk declares a component
// type that differs from the component's prior occurrences for the same
// entity. The conflict is scoped per entity: the same component name may
// carry different types on different entities.
var ErrSchemaConflict = errors.New("storage: component type conflicts with prior chunks for entity")

type storeMetrics struct {
	insert        instrument.MethodMetrics
	compactions   tally.Counter
	chunksMerged  tally.Counter
	mergesSkipped tally.Counter
	evictedChunks tally.Counter
	evictedBytes  tally.Counter
	liveChunks    tally.Gauge
	liveBytes     tally.Gauge
}

func newStoreMetrics(scope tally.Scope, samplingRate float64) storeMetrics {
	return storeMetrics{
		insert:        instrument.NewMethodMetrics(scope, "insert", samplingRate),
		compactions:   scope.Counter("compactions"),
		chunksMerged:  scope.Counter("chunks-merged"),
		mergesSkipped: scope.Counter("merges-skipped"),
		evictedChunks: scope.Counter("evicted-chunks"),
		evictedBytes:  scope.Counter("evicted-bytes"),
		liveChunks:    scope.Gauge("live-chunks"),
		liveBytes:     scope.Gauge("live-bytes"),
	}
}

// globalRef orders chunks across entities by insertion for eviction.
type globalRef struct {
	seq    uint64
	entity ts.EntityPath
}

type store struct {
	mu   sync.RWMutex
	opts Options
	log  *zap.Logger

	entities  map[ts.EntityPath]*entityChunks
	timelines map[string]ts.Timeline
	bySeq     []globalRef // ascending seq, eviction order
	nextSeq   uint64

	insertsSinceCompact int

	numChunks *atomic.Int64
	numRows   *atomic.Int64
	numBytes  *atomic.Int64

	evicted    EvictionStats
	evictedLog []EvictedChunk

	metrics storeMetrics
}

// NewStore creates an empty store for one recording.
func NewStore(opts Options) (Store, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	iopts := opts.InstrumentOptions()
	return &store{
		opts:      opts,
		log:       iopts.Logger(),
		entities:  make(map[ts.EntityPath]*entityChunks),
		timelines: make(map[string]ts.Timeline),
		numChunks: atomic.NewInt64(0),
		numRows:   atomic.NewInt64(0),
		numBytes:  atomic.NewInt64(0),
		metrics:   newStoreMetrics(iopts.MetricsScope(), iopts.MetricsSamplingRate()),
	}, nil
}

func (s *store) Insert(c *chunk.Chunk) error {
	sw := s.metrics.insert.Latency.Start()
	compact, err := s.insert(c)
	sw.Stop()
	s.metrics.insert.ReportSuccessOrError(err)
	if err != nil {
		return err
	}
	if compact {
		s.Compact()
	}
	return nil
}

func (s *store) insert(c *chunk.Chunk) (compactAfter bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ec := s.entities[c.EntityPath()]

	// Validate everything before touching any index so a rejected chunk
	// leaves the store in its prior valid state.
	if ec != nil {
		for _, name := range c.Schema().Components() {
			typ, _ := c.Schema().ComponentType(name)
			if prior, ok := ec.componentTypes[name]; ok && prior != typ {
				return false, fmt.Errorf("%w: entity %s component %q was %s, got %s",
					ErrSchemaConflict, c.EntityPath(), name, prior, typ)
			}
		}
	}

	if ec == nil {
		ec = newEntityChunks()
		s.entities[c.EntityPath()] = ec
	}
	seq := s.nextSeq
	s.nextSeq++
	ec.addRef(chunkRef{seq: seq, c: c})
	s.bySeq = append(s.bySeq, globalRef{seq: seq, entity: c.EntityPath()})

	for _, tl := range c.Schema().Timelines() {
		if prior, ok := s.timelines[tl.Name]; ok {
			if prior.Kind != tl.Kind {
				s.log.Warn("timeline redeclared with different kind, keeping first",
					zap.String("timeline", tl.Name),
					zap.Stringer("prior", prior.Kind),
					zap.Stringer("new", tl.Kind))
			}
			continue
		}
		s.timelines[tl.Name] = tl
	}

	s.numChunks.Inc()
	s.numRows.Add(int64(c.RowCount()))
	s.numBytes.Add(int64(c.NumBytes()))
	s.metrics.liveChunks.Update(float64(s.numChunks.Load()))
	s.metrics.liveBytes.Update(float64(s.numBytes.Load()))

	if budget := s.opts.MaxRecordingBytes(); budget > 0 && s.numBytes.Load() > budget {
		s.evictOldestWithLock(budget, seq)
	}

	if every := s.opts.CompactionEveryNumInserts(); every > 0 {
		s.insertsSinceCompact++
		if s.insertsSinceCompact >= every {
			s.insertsSinceCompact = 0
			compactAfter = true
		}
	}
	return compactAfter, nil
}

// evictOldestWithLock removes the oldest chunks until the payload fits the
// budget again. The chunk published by the current insert (keepSeq) is never
// evicted. Removal from all indexes happens under the writer lock, so no
// reader observes a torn state; snapshots already captured keep their chunk
// references alive.
func (s *store) evictOldestWithLock(budget int64, keepSeq uint64) {
	for len(s.bySeq) > 0 && s.numBytes.Load() > budget {
		oldest := s.bySeq[0]
		if oldest.seq == keepSeq {
			break
		}
		s.bySeq = s.bySeq[1:]
		ec, ok := s.entities[oldest.entity]
		if !ok {
			continue
		}
		ref, ok := ec.removeRef(oldest.seq)
		if !ok {
			continue
		}
		s.numChunks.Dec()
		s.numRows.Sub(int64(ref.c.RowCount()))
		s.numBytes.Sub(int64(ref.c.NumBytes()))

		ev := EvictedChunk{
			ID:     ref.c.ID(),
			Entity: oldest.entity,
			Rows:   ref.c.RowCount(),
			Bytes:  ref.c.NumBytes(),
		}
		s.evicted.Chunks++
		s.evicted.Rows += int64(ev.Rows)
		s.evicted.Bytes += int64(ev.Bytes)
		s.evictedLog = append(s.evictedLog, ev)
		s.metrics.evictedChunks.Inc(1)
		s.metrics.evictedBytes.Inc(int64(ev.Bytes))

		s.log.Debug("evicted chunk over recording byte budget",
			zap.String("chunk", string(ev.ID)),
			zap.String("entity", ev.Entity.String()),
			zap.Int("rows", ev.Rows),
			zap.Int("bytes", ev.Bytes))
	}
	s.metrics.liveChunks.Update(float64(s.numChunks.Load()))
	s.metrics.liveBytes.Update(float64(s.numBytes.Load()))
}

func (s *store) ChunksFor(entity ts.EntityPath) []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ec, ok := s.entities[entity]
	if !ok {
		return nil
	}
	out := make([]*chunk.Chunk, 0, len(ec.refs))
	for _, ref := range ec.refs {
		out = append(out, ref.c)
	}
	return out
}

// candidateRefs gathers, under the read lock, every ref possibly relevant to
// the timeline: temporal candidates from the interval index plus chunks
// carrying no column for the timeline at all (static on it). The returned
// slice is a private snapshot, deduplicated and ordered by insertion.
func (s *store) candidateRefs(
	ec *entityChunks,
	timeline string,
	gather func(idx *intervalIndex, out []chunkRef) []chunkRef,
) []chunkRef {
	var cands []chunkRef
	if idx, ok := ec.byTimeline[timeline]; ok {
		cands = gather(idx, cands)
	}
	for _, ref := range ec.refs {
		if !ref.c.HasTimeline(timeline) {
			cands = append(cands, ref)
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].seq < cands[j].seq })
	dedup := cands[:0]
	var prev uint64
	for i, ref := range cands {
		if i > 0 && ref.seq == prev {
			continue
		}
		dedup = append(dedup, ref)
		prev = ref.seq
	}
	return dedup
}

func (s *store) ChunksOverlapping(entity ts.EntityPath, timeline string, start, end ts.TimeValue) []*chunk.Chunk {
	s.mu.RLock()
	ec, ok := s.entities[entity]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	refs := s.candidateRefs(ec, timeline, func(idx *intervalIndex, out []chunkRef) []chunkRef {
		return idx.overlapping(start, end, out)
	})
	s.mu.RUnlock()

	out := make([]*chunk.Chunk, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.c)
	}
	return out
}

func (s *store) LatestAt(entity ts.EntityPath, timeline string, at ts.TimeValue, component string) (LatestAtResult, bool) {
	s.mu.RLock()
	ec, ok := s.entities[entity]
	if !ok {
		s.mu.RUnlock()
		return LatestAtResult{}, false
	}
	if _, ok := ec.componentTypes[component]; !ok {
		s.mu.RUnlock()
		return LatestAtResult{}, false
	}
	refs := s.candidateRefs(ec, timeline, func(idx *intervalIndex, out []chunkRef) []chunkRef {
		return idx.upTo(at, out)
	})
	s.mu.RUnlock()

	// All work below runs on immutable chunks outside the lock.
	var (
		best      LatestAtResult
		bestSeq   uint64
		found     bool
		static    LatestAtResult
		staticSeq uint64
		hasStatic bool
	)
	for _, ref := range refs {
		t, v, isStatic, ok := latestInChunk(ref.c, timeline, at, component)
		if !ok {
			continue
		}
		if isStatic {
			if !hasStatic || ref.seq >= staticSeq {
				static = LatestAtResult{Static: true, Value: v}
				staticSeq = ref.seq
				hasStatic = true
			}
			continue
		}
		if !found || t > best.Time || (t == best.Time && ref.seq >= bestSeq) {
			best = LatestAtResult{Time: t, Value: v}
			bestSeq = ref.seq
			found = true
		}
	}
	if found {
		return best, true
	}
	if hasStatic {
		return static, true
	}
	return LatestAtResult{}, false
}

// latestInChunk locates the chunk's best row for a latest-at query: the
// greatest time ≤ at with a non-null component value, tie-broken toward the
// most recently appended row. Falls back to the chunk's latest static row
// when no temporal row qualifies.
func latestInChunk(c *chunk.Chunk, timeline string, at ts.TimeValue, component string) (ts.TimeValue, ts.Value, bool, bool) {
	col, ok := c.Component(component)
	if !ok {
		return 0, ts.Value{}, false, false
	}

	if !c.HasTimeline(timeline) {
		// Every row is static on this timeline: latest non-null wins.
		for r := c.RowCount() - 1; r >= 0; r-- {
			if v, ok := col.Get(r); ok {
				return 0, v, true, true
			}
		}
		return 0, ts.Value{}, false, false
	}

	sc := c.SortedBy(timeline)
	stc, _ := sc.TimeColumn(timeline)
	scol, _ := sc.Component(component)
	numStatic := sc.NumStaticRows(timeline)

	// Static rows sort first; temporal rows occupy [numStatic, rows).
	n := sc.RowCount() - numStatic
	pos := numStatic + sort.Search(n, func(i int) bool {
		t, _ := stc.Get(numStatic + i)
		return t > at
	})
	for r := pos - 1; r >= numStatic; r-- {
		if v, ok := scol.Get(r); ok {
			t, _ := stc.Get(r)
			return t, v, false, true
		}
	}
	// The stable sort keeps static rows in append order, so the last one
	// is the most recently logged.
	for r := numStatic - 1; r >= 0; r-- {
		if v, ok := scol.Get(r); ok {
			return 0, v, true, true
		}
	}
	return 0, ts.Value{}, false, false
}

func (s *store) Entities() []ts.EntityPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ts.EntityPath, 0, len(s.entities))
	for entity, ec := range s.entities {
		if len(ec.refs) == 0 {
			continue
		}
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *store) Timelines() []ts.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ts.Timeline, 0, len(s.timelines))
	for _, tl := range s.timelines {
		out = append(out, tl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *store) NumChunks() int {
	return int(s.numChunks.Load())
}

func (s *store) NumRows() int {
	return int(s.numRows.Load())
}

func (s *store) NumBytes() int64 {
	return s.numBytes.Load()
}

func (s *store) EvictionStats() EvictionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

func (s *store) EvictedChunks() []EvictedChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EvictedChunk(nil), s.evictedLog...)
}

func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = make(map[ts.EntityPath]*entityChunks)
	s.timelines = make(map[string]ts.Timeline)
	s.bySeq = nil
	s.insertsSinceCompact = 0
	s.evicted = EvictionStats{}
	s.evictedLog = nil
	s.numChunks.Store(0)
	s.numRows.Store(0)
	s.numBytes.Store(0)
	s.metrics.liveChunks.Update(0)
	s.metrics.liveBytes.Update(0)
}

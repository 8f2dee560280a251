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

package chunk

import (
	"fmt"
	"sort"

	"github.com/chunkdb/chunkdb/ts"

	"github.com/cespare/xxhash/v2"
)

// Schema describes the fixed column layout of a chunk: the set of timelines
// and the name and type of every component column. Two chunks with equal
// fingerprints are merge-compatible.
type Schema struct {
	timelines   []ts.Timeline // sorted by name
	components  []string      // sorted
	types       map[string]ts.ValueType
	fingerprint uint64
}

func newSchema(timelines []ts.Timeline, types map[string]ts.ValueType) Schema {
	s := Schema{
		timelines: append([]ts.Timeline(nil), timelines...),
		types:     types,
	}
	sort.Slice(s.timelines, func(i, j int) bool {
		return s.timelines[i].Name < s.timelines[j].Name
	})
	for name := range types {
		s.components = append(s.components, name)
	}
	sort.Strings(s.components)

	h := xxhash.New()
	for _, tl := range s.timelines {
		fmt.Fprintf(h, "t:%s=%d;", tl.Name, tl.Kind)
	}
	for _, name := range s.components {
		fmt.Fprintf(h, "c:%s=%d;", name, types[name])
	}
	s.fingerprint = h.Sum64()
	return s
}

// Fingerprint returns a stable hash of the column layout.
func (s Schema) Fingerprint() uint64 {
	return s.fingerprint
}

// Timelines returns the timelines, sorted by name.
func (s Schema) Timelines() []ts.Timeline {
	return s.timelines
}

// Components returns the component column names, sorted.
func (s Schema) Components() []string {
	return s.components
}

// ComponentType returns the declared type of a component column.
func (s Schema) ComponentType(name string) (ts.ValueType, bool) {
	t, ok := s.types[name]
	return t, ok
}

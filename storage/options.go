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

	"github.com/chunkdb/chunkdb/instrument"
)

const (
	// defaultCompactionMaxChunkRows bounds merged superchunk row counts.
	// This is the central lever trading per-chunk fixed costs against
	// merge cost: larger values amortize indexing overhead further but
	// make each merge more expensive.
	defaultCompactionMaxChunkRows = 4096

	// defaultCompactionMaxChunkBytes bounds merged superchunk payloads.
	defaultCompactionMaxChunkBytes = 8 << 20

	// defaultCompactionEveryNumInserts makes compaction run
	// opportunistically after insertion bursts.
	defaultCompactionEveryNumInserts = 64

	// defaultMaxRecordingBytes of zero means no eviction budget.
	defaultMaxRecordingBytes = 0
)

var (
	errNegativeCompactionCeiling = errors.New("storage: compaction ceilings cannot be negative")
	errNegativeRecordingBudget   = errors.New("storage: recording byte budget cannot be negative")
)

// Options configure a Store.
type Options interface {
	// Validate checks the options for coherence.
	Validate() error

	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetCompactionMaxChunkRows sets the row ceiling for merged chunks.
	SetCompactionMaxChunkRows(value int) Options

	// CompactionMaxChunkRows returns the row ceiling for merged chunks.
	CompactionMaxChunkRows() int

	// SetCompactionMaxChunkBytes sets the byte ceiling for merged chunks.
	SetCompactionMaxChunkBytes(value int) Options

	// CompactionMaxChunkBytes returns the byte ceiling for merged chunks.
	CompactionMaxChunkBytes() int

	// SetCompactionEveryNumInserts sets how many inserts may elapse
	// between opportunistic compactions; zero disables them (explicit
	// Compact calls still work).
	SetCompactionEveryNumInserts(value int) Options

	// CompactionEveryNumInserts returns the opportunistic compaction
	// interval.
	CompactionEveryNumInserts() int

	// SetMaxRecordingBytes sets the aggregate payload budget beyond which
	// the oldest chunks are evicted; zero means unbounded.
	SetMaxRecordingBytes(value int64) Options

	// MaxRecordingBytes returns the aggregate payload budget.
	MaxRecordingBytes() int64
}

type opts struct {
	instrumentOpts            instrument.Options
	compactionMaxChunkRows    int
	compactionMaxChunkBytes   int
	compactionEveryNumInserts int
	maxRecordingBytes         int64
}

// NewOptions creates new store options with defaults.
func NewOptions() Options {
	return &opts{
		instrumentOpts:            instrument.NewOptions(),
		compactionMaxChunkRows:    defaultCompactionMaxChunkRows,
		compactionMaxChunkBytes:   defaultCompactionMaxChunkBytes,
		compactionEveryNumInserts: defaultCompactionEveryNumInserts,
		maxRecordingBytes:         defaultMaxRecordingBytes,
	}
}

func (o *opts) Validate() error {
	if o.compactionMaxChunkRows < 0 || o.compactionMaxChunkBytes < 0 ||
		o.compactionEveryNumInserts < 0 {
		return errNegativeCompactionCeiling
	}
	if o.maxRecordingBytes < 0 {
		return errNegativeRecordingBudget
	}
	return nil
}

func (o *opts) SetInstrumentOptions(value instrument.Options) Options {
	options := *o
	options.instrumentOpts = value
	return &options
}

func (o *opts) InstrumentOptions() instrument.Options {
	return o.instrumentOpts
}

func (o *opts) SetCompactionMaxChunkRows(value int) Options {
	options := *o
	options.compactionMaxChunkRows = value
	return &options
}

func (o *opts) CompactionMaxChunkRows() int {
	return o.compactionMaxChunkRows
}

func (o *opts) SetCompactionMaxChunkBytes(value int) Options {
	options := *o
	options.compactionMaxChunkBytes = value
	return &options
}

func (o *opts) CompactionMaxChunkBytes() int {
	return o.compactionMaxChunkBytes
}

func (o *opts) SetCompactionEveryNumInserts(value int) Options {
	options := *o
	options.compactionEveryNumInserts = value
	return &options
}

func (o *opts) CompactionEveryNumInserts() int {
	return o.compactionEveryNumInserts
}

func (o *opts) SetMaxRecordingBytes(value int64) Options {
	options := *o
	options.maxRecordingBytes = value
	return &options
}

func (o *opts) MaxRecordingBytes() int64 {
	return o.maxRecordingBytes
}

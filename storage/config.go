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
	"fmt"

	"github.com/c2h5oh/datasize"
	"gopkg.in/validator.v2"
)

// Configuration is the yaml-facing set of knobs to configure store options.
// Byte quantities are human-readable datasize strings ("8mb", "512kb").
type Configuration struct {
	// CompactionMaxChunkRows is the row ceiling for merged chunks.
	CompactionMaxChunkRows *int `yaml:"compactionMaxChunkRows" validate:"min=0"`

	// CompactionMaxChunkBytes is the byte ceiling for merged chunks.
	CompactionMaxChunkBytes *string `yaml:"compactionMaxChunkBytes"`

	// CompactionEveryNumInserts is the opportunistic compaction interval;
	// zero disables opportunistic compaction.
	CompactionEveryNumInserts *int `yaml:"compactionEveryNumInserts" validate:"min=0"`

	// MaxRecordingBytes is the eviction budget; empty or "0" means
	// unbounded.
	MaxRecordingBytes *string `yaml:"maxRecordingBytes"`
}

// Options returns the store options corresponding to the configuration.
func (c Configuration) Options() (Options, error) {
	if err := validator.Validate(c); err != nil {
		return nil, err
	}
	options := NewOptions()
	if v := c.CompactionMaxChunkRows; v != nil {
		options = options.SetCompactionMaxChunkRows(*v)
	}
	if v := c.CompactionMaxChunkBytes; v != nil {
		n, err := parseBytes(*v)
		if err != nil {
			return nil, fmt.Errorf("storage: invalid compactionMaxChunkBytes: %v", err)
		}
		options = options.SetCompactionMaxChunkBytes(int(n))
	}
	if v := c.CompactionEveryNumInserts; v != nil {
		options = options.SetCompactionEveryNumInserts(*v)
	}
	if v := c.MaxRecordingBytes; v != nil {
		n, err := parseBytes(*v)
		if err != nil {
			return nil, fmt.Errorf("storage: invalid maxRecordingBytes: %v", err)
		}
		options = options.SetMaxRecordingBytes(int64(n))
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func parseBytes(s string) (uint64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return size.Bytes(), nil
}

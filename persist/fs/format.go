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

// Package fs persists recordings as append-only files of chunk frames.
//
// File layout: an 8-byte magic, a msgpack-encoded file info object, then one
// frame per chunk. Each frame is a 4-byte big-endian length and an 8-byte
// big-endian xxhash digest followed by a snappy-compressed msgpack payload.
//
// Adding fields to frame objects is a backwards-compatible change as long
// as the format version is not bumped and decoders tolerate their absence.
package fs

import (
	"github.com/pkg/errors"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/column"
	"github.com/chunkdb/chunkdb/ts"
)

const (
	formatVersion = 1

	// frameHeaderLen is the length prefix plus the digest.
	frameHeaderLen = 4 + 8

	// maxFrameLen caps a single frame's compressed payload; anything
	// larger indicates a corrupt length prefix.
	maxFrameLen = 1 << 30
)

var magic = [8]byte{'c', 'h', 'u', 'n', 'k', 'd', 'b', 0}

var (
	// ErrBadMagic means the file does not start with the recording magic.
	ErrBadMagic = errors.New("fs: not a recording file")

	// ErrUnsupportedVersion means the file was written by a newer format.
	ErrUnsupportedVersion = errors.New("fs: unsupported format version")

	// ErrChecksumMismatch means a frame's payload does not match its
	// digest.
	ErrChecksumMismatch = errors.New("fs: frame checksum mismatch")
)

type fileInfo struct {
	Version int
}

// timelineFrame is one serialized time column. Valid is false where the row
// is static on this timeline.
type timelineFrame struct {
	Name  string
	Kind  uint8
	Times []int64
	Valid []bool
}

// componentFrame is one serialized component column. Exactly one payload
// slice is populated, per Type; Float64x3 flattens to three floats per row.
type componentFrame struct {
	Name    string
	Type    uint8
	Valid   []bool
	Floats  []float64
	Ints    []int64
	Uints   []uint32
	Strings []string
	Blobs   [][]byte
}

type chunkFrame struct {
	Entity     string
	NumRows    int
	Timelines  []timelineFrame
	Components []componentFrame
}

func frameFromChunk(c *chunk.Chunk) chunkFrame {
	rows := c.RowCount()
	frame := chunkFrame{
		Entity:  c.EntityPath().String(),
		NumRows: rows,
	}
	for _, tl := range c.Schema().Timelines() {
		col, _ := c.TimeColumn(tl.Name)
		tf := timelineFrame{
			Name:  tl.Name,
			Kind:  uint8(tl.Kind),
			Times: make([]int64, rows),
			Valid: make([]bool, rows),
		}
		for i := 0; i < rows; i++ {
			if t, ok := col.Get(i); ok {
				tf.Times[i] = int64(t)
				tf.Valid[i] = true
			}
		}
		frame.Timelines = append(frame.Timelines, tf)
	}
	for _, name := range c.Schema().Components() {
		col, _ := c.Component(name)
		typ, _ := c.Schema().ComponentType(name)
		cf := componentFrame{
			Name:  name,
			Type:  uint8(typ),
			Valid: make([]bool, rows),
		}
		for i := 0; i < rows; i++ {
			v, ok := col.Get(i)
			cf.Valid[i] = ok
			switch typ {
			case ts.Float64Type:
				var f float64
				if ok {
					f = v.Float64Val()
				}
				cf.Floats = append(cf.Floats, f)
			case ts.Float64x3Type:
				var x, y, z float64
				if ok {
					x, y, z = v.Float64x3Val()
				}
				cf.Floats = append(cf.Floats, x, y, z)
			case ts.Int64Type:
				var n int64
				if ok {
					n = v.Int64Val()
				}
				cf.Ints = append(cf.Ints, n)
			case ts.Uint32Type:
				var n uint32
				if ok {
					n = v.Uint32Val()
				}
				cf.Uints = append(cf.Uints, n)
			case ts.StringType:
				var s string
				if ok {
					s = v.StringVal()
				}
				cf.Strings = append(cf.Strings, s)
			case ts.BytesType:
				var b []byte
				if ok {
					b = v.BytesVal()
				}
				cf.Blobs = append(cf.Blobs, b)
			}
		}
		frame.Components = append(frame.Components, cf)
	}
	return frame
}

func chunkFromFrame(frame chunkFrame) (*chunk.Chunk, error) {
	rows := frame.NumRows
	times := make([]chunk.TimeColumnSpec, 0, len(frame.Timelines))
	for _, tf := range frame.Timelines {
		if len(tf.Times) != rows || len(tf.Valid) != rows {
			return nil, errors.Errorf("fs: timeline %q has %d times for %d rows",
				tf.Name, len(tf.Times), rows)
		}
		col := column.NewTimeColumn()
		for i := 0; i < rows; i++ {
			if tf.Valid[i] {
				col.Append(ts.TimeValue(tf.Times[i]))
			} else {
				col.AppendNull()
			}
		}
		times = append(times, chunk.TimeColumnSpec{
			Timeline: ts.Timeline{Name: tf.Name, Kind: ts.TimelineKind(tf.Kind)},
			Col:      col,
		})
	}

	comps := make([]chunk.ComponentSpec, 0, len(frame.Components))
	for _, cf := range frame.Components {
		typ := ts.ValueType(cf.Type)
		if !typ.Valid() {
			return nil, errors.Errorf("fs: component %q has unknown type %d", cf.Name, cf.Type)
		}
		if len(cf.Valid) != rows {
			return nil, errors.Errorf("fs: component %q has %d validity bits for %d rows",
				cf.Name, len(cf.Valid), rows)
		}
		col := column.NewBuffer(typ)
		for i := 0; i < rows; i++ {
			if !cf.Valid[i] {
				col.AppendNull()
				continue
			}
			v, err := frameValue(cf, typ, i)
			if err != nil {
				return nil, err
			}
			col.Append(v)
		}
		comps = append(comps, chunk.ComponentSpec{Name: cf.Name, Col: col})
	}

	c, err := chunk.FromColumns(ts.NewEntityPath(frame.Entity), times, comps)
	if err != nil {
		return nil, errors.Wrap(err, "fs: rebuilding chunk")
	}
	return c, nil
}

func frameValue(cf componentFrame, typ ts.ValueType, row int) (ts.Value, error) {
	switch typ {
	case ts.Float64Type:
		if row >= len(cf.Floats) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.Float64(cf.Floats[row]), nil
	case ts.Float64x3Type:
		if 3*row+2 >= len(cf.Floats) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.Float64x3(cf.Floats[3*row], cf.Floats[3*row+1], cf.Floats[3*row+2]), nil
	case ts.Int64Type:
		if row >= len(cf.Ints) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.Int64(cf.Ints[row]), nil
	case ts.Uint32Type:
		if row >= len(cf.Uints) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.Uint32(cf.Uints[row]), nil
	case ts.StringType:
		if row >= len(cf.Strings) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.String(cf.Strings[row]), nil
	case ts.BytesType:
		if row >= len(cf.Blobs) {
			return ts.Value{}, errShortPayload(cf)
		}
		return ts.Bytes(cf.Blobs[row]), nil
	}
	return ts.Value{}, errors.Errorf("fs: component %q has unknown type %d", cf.Name, cf.Type)
}

func errShortPayload(cf componentFrame) error {
	return errors.Errorf("fs: component %q payload shorter than its validity mask", cf.Name)
}

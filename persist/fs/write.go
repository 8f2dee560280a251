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

package fs

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/digest"
)

// Writer appends chunk frames to a recording stream. It is not safe for
// concurrent use.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer
}

// NewWriter writes the recording header and returns a writer for appending
// chunks.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(magic[:]); err != nil {
		return nil, errors.Wrap(err, "fs: writing magic")
	}
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(fileInfo{Version: formatVersion}); err != nil {
		return nil, errors.Wrap(err, "fs: encoding file info")
	}
	var infoLen [4]byte
	binary.BigEndian.PutUint32(infoLen[:], uint32(buf.Len()))
	if _, err := w.Write(infoLen[:]); err != nil {
		return nil, errors.Wrap(err, "fs: writing file info length")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "fs: writing file info")
	}
	return &Writer{w: w}, nil
}

// Write appends one chunk frame: snappy-compressed msgpack, length-prefixed
// and digested.
func (w *Writer) Write(c *chunk.Chunk) error {
	w.buf.Reset()
	if err := msgpack.NewEncoder(&w.buf).Encode(frameFromChunk(c)); err != nil {
		return errors.Wrap(err, "fs: encoding chunk frame")
	}
	compressed := snappy.Encode(nil, w.buf.Bytes())

	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(compressed)))
	binary.BigEndian.PutUint64(header[4:], digest.Checksum(compressed))
	if _, err := w.w.Write(header[:]); err != nil {
		return errors.Wrap(err, "fs: writing frame header")
	}
	if _, err := w.w.Write(compressed); err != nil {
		return errors.Wrap(err, "fs: writing frame payload")
	}
	return nil
}

// WriteFile persists the chunks as a recording file at path.
func WriteFile(path string, chunks []*chunk.Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "fs: creating recording file")
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	for _, c := range chunks {
		if err := w.Write(c); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
	}
	return errors.Wrap(f.Close(), "fs: closing recording file")
}

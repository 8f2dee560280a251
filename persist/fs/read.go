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

// Reader iterates a recording stream's chunk frames, verifying each frame's
// digest. It is not safe for concurrent use.
type Reader struct {
	r       io.Reader
	version int
}

// NewReader validates the recording header and returns a reader positioned
// at the first chunk frame.
func NewReader(r io.Reader) (*Reader, error) {
	var m [8]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, errors.Wrap(err, "fs: reading magic")
	}
	if m != magic {
		return nil, ErrBadMagic
	}
	var infoLen [4]byte
	if _, err := io.ReadFull(r, infoLen[:]); err != nil {
		return nil, errors.Wrap(err, "fs: reading file info length")
	}
	n := binary.BigEndian.Uint32(infoLen[:])
	if n > maxFrameLen {
		return nil, errors.Errorf("fs: file info length %d out of bounds", n)
	}
	infoBuf := make([]byte, n)
	if _, err := io.ReadFull(r, infoBuf); err != nil {
		return nil, errors.Wrap(err, "fs: reading file info")
	}
	var info fileInfo
	if err := msgpack.NewDecoder(bytes.NewReader(infoBuf)).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "fs: decoding file info")
	}
	if info.Version > formatVersion {
		return nil, ErrUnsupportedVersion
	}
	return &Reader{r: r, version: info.Version}, nil
}

// Version returns the recording's format version.
func (r *Reader) Version() int {
	return r.version
}

// Read returns the next chunk, or io.EOF at the end of the recording.
func (r *Reader) Read() (*chunk.Chunk, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "fs: reading frame header")
	}
	n := binary.BigEndian.Uint32(header[:4])
	sum := binary.BigEndian.Uint64(header[4:])
	if n > maxFrameLen {
		return nil, errors.Errorf("fs: frame length %d out of bounds", n)
	}

	compressed := make([]byte, n)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return nil, errors.Wrap(err, "fs: reading frame payload")
	}
	if !digest.Validate(compressed, sum) {
		return nil, ErrChecksumMismatch
	}
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "fs: decompressing frame")
	}
	var frame chunkFrame
	if err := msgpack.NewDecoder(bytes.NewReader(payload)).Decode(&frame); err != nil {
		return nil, errors.Wrap(err, "fs: decoding chunk frame")
	}
	return chunkFromFrame(frame)
}

// ReadFile loads every chunk of the recording at path, in file order.
func ReadFile(path string) ([]*chunk.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "fs: opening recording file")
	}
	defer f.Close() //nolint:errcheck

	r, err := NewReader(f)
	if err != nil {
		return nil, err
	}
	var chunks []*chunk.Chunk
	for {
		c, err := r.Read()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
}

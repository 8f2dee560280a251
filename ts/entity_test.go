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

package ts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPathNormalize(t *testing.T) {
	assert.Equal(t, "/world/robot", NewEntityPath("world/robot").String())
	assert.Equal(t, "/world/robot", NewEntityPath("/world/robot/").String())
	assert.Equal(t, "/world/robot", NewEntityPath("//world//robot").String())
	assert.Equal(t, "/", NewEntityPath("").String())
	assert.Equal(t, "/", NewEntityPath("/").String())
}

func TestEntityPathParent(t *testing.T) {
	p, ok := NewEntityPath("/world/robot/camera").Parent()
	require.True(t, ok)
	assert.Equal(t, NewEntityPath("/world/robot"), p)

	p, ok = NewEntityPath("/world").Parent()
	require.True(t, ok)
	assert.Equal(t, NewEntityPath("/"), p)

	_, ok = NewEntityPath("/").Parent()
	assert.False(t, ok)
}

func TestEntityPathMatches(t *testing.T) {
	for _, test := range []struct {
		path    string
		pattern string
		matches bool
	}{
		{"/a/b/c", "/a/**", true},
		{"/a/b", "/a/**", true},
		{"/a", "/a/**", true},
		{"/ab", "/a/**", false},
		{"/a", "/a", true},
		{"/a/b", "/a", false},
		{"/a/b", "/a/b", true},
		{"/x/y", "/a/**", false},
		{"/a/b/c", "/**", true},
		{"/", "/**", true},
	} {
		assert.Equal(t, test.matches, NewEntityPath(test.path).Matches(test.pattern),
			"path=%s pattern=%s", test.path, test.pattern)
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Float64x3(1, 2, 3).Equal(Float64x3(1, 2, 3)))
	assert.False(t, Float64x3(1, 2, 3).Equal(Float64x3(1, 2, 4)))
	assert.False(t, Float64(1).Equal(Int64(1)))
	assert.True(t, String("label").Equal(String("label")))
	assert.True(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 2})))
	assert.False(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1})))
	assert.True(t, Uint32(7).Equal(Uint32(7)))
}

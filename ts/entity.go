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

import "strings"

// EntityPath is a slash-separated hierarchical key identifying a logged
// object (e.g. "/world/robot/camera"). Paths are normalized to a single
// leading slash and no trailing slash; the root path is "/".
type EntityPath string

// NewEntityPath normalizes a raw path string into an EntityPath.
func NewEntityPath(raw string) EntityPath {
	parts := splitPath(raw)
	if len(parts) == 0 {
		return EntityPath("/")
	}
	return EntityPath("/" + strings.Join(parts, "/"))
}

func splitPath(raw string) []string {
	var parts []string
	for _, p := range strings.Split(raw, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// String returns the normalized string form of the path.
func (p EntityPath) String() string {
	return string(p)
}

// Parts returns the path segments, empty for the root path.
func (p EntityPath) Parts() []string {
	return splitPath(string(p))
}

// Parent returns the parent path, and false when called on the root.
func (p EntityPath) Parent() (EntityPath, bool) {
	parts := p.Parts()
	if len(parts) == 0 {
		return EntityPath("/"), false
	}
	if len(parts) == 1 {
		return EntityPath("/"), true
	}
	return EntityPath("/" + strings.Join(parts[:len(parts)-1], "/")), true
}

// Matches reports whether the path matches a selector pattern. A pattern is
// a normalized path whose final segment may be "**", which matches the
// prefix path itself and every descendant (so "/a/**" matches "/a", "/a/b"
// and "/a/b/c", while "/a" matches only "/a").
func (p EntityPath) Matches(pattern string) bool {
	patParts := splitPath(pattern)
	subtree := false
	if n := len(patParts); n > 0 && patParts[n-1] == "**" {
		subtree = true
		patParts = patParts[:n-1]
	}
	parts := p.Parts()
	if subtree {
		if len(parts) < len(patParts) {
			return false
		}
	} else if len(parts) != len(patParts) {
		return false
	}
	for i := range patParts {
		if parts[i] != patParts[i] {
			return false
		}
	}
	return true
}

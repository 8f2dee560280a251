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
	"fmt"
	"time"
)

// TimelineKind is the ordering domain of a timeline.
type TimelineKind uint8

const (
	// Sequence timelines carry opaque monotonic integers (frame numbers,
	// tick counts).
	Sequence TimelineKind = iota
	// Duration timelines carry nanoseconds.
	Duration
)

func (k TimelineKind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Duration:
		return "duration"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Timeline is a named logical clock along which events are ordered. A single
// event may carry values on multiple timelines simultaneously.
type Timeline struct {
	Name string
	Kind TimelineKind
}

// SequenceTimeline returns a sequence-ordered timeline.
func SequenceTimeline(name string) Timeline {
	return Timeline{Name: name, Kind: Sequence}
}

// DurationTimeline returns a nanosecond-ordered timeline.
func DurationTimeline(name string) Timeline {
	return Timeline{Name: name, Kind: Duration}
}

// TimeValue is a point on some timeline: a sequence number or nanoseconds,
// depending on the timeline's kind.
type TimeValue int64

// DurationValue converts a duration into a TimeValue for Duration timelines.
func DurationValue(d time.Duration) TimeValue {
	return TimeValue(d.Nanoseconds())
}

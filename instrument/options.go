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

// Package instrument bundles the logger and metrics scope threaded through
// the store and persistence layers.
package instrument

import (
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Options carries the logger and metrics scope.
type Options interface {
	// SetLogger sets the zap logger.
	SetLogger(value *zap.Logger) Options

	// Logger returns the zap logger.
	Logger() *zap.Logger

	// SetMetricsScope sets the tally metrics scope.
	SetMetricsScope(value tally.Scope) Options

	// MetricsScope returns the tally metrics scope.
	MetricsScope() tally.Scope

	// SetMetricsSamplingRate sets the sampling rate for timers.
	SetMetricsSamplingRate(value float64) Options

	// MetricsSamplingRate returns the sampling rate for timers.
	MetricsSamplingRate() float64
}

const defaultSamplingRate = 1.0

type options struct {
	logger       *zap.Logger
	scope        tally.Scope
	samplingRate float64
}

// NewOptions creates new instrument options with a no-op logger and scope.
func NewOptions() Options {
	return &options{
		logger:       zap.NewNop(),
		scope:        tally.NoopScope,
		samplingRate: defaultSamplingRate,
	}
}

func (o *options) SetLogger(value *zap.Logger) Options {
	opts := *o
	opts.logger = value
	return &opts
}

func (o *options) Logger() *zap.Logger {
	return o.logger
}

func (o *options) SetMetricsScope(value tally.Scope) Options {
	opts := *o
	opts.scope = value
	return &opts
}

func (o *options) MetricsScope() tally.Scope {
	return o.scope
}

func (o *options) SetMetricsSamplingRate(value float64) Options {
	opts := *o
	opts.samplingRate = value
	return &opts
}

func (o *options) MetricsSamplingRate() float64 {
	return o.samplingRate
}

// Copyright (c) 2022 The rcproxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rcresp/core/codec"
)

var GlobalStats DecoderStats

const (
	SourceBuffer = "buffer"
	SourceStream = "stream"
	SourceHTTP   = "http"
)

type DecoderStats struct {
	Frames       *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
	IOErrors     *prometheus.CounterVec
	BytesRead    *prometheus.CounterVec
	Refills      *prometheus.CounterVec

	Buffered    *prometheus.GaugeVec
	ReadLatency *prometheus.HistogramVec
}

func init() {
	GlobalStats = NewDecoderStats("rcresp", prometheus.DefaultRegisterer)
}

func NewDecoderStats(namespace string, reg prometheus.Registerer) DecoderStats {
	stats := DecoderStats{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "decoded frames",
		}, []string{"source", "kind"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "malformed or incomplete input",
		}, []string{"source", "kind"}),
		IOErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_errors_total",
			Help:      "failures of the underlying byte source",
		}, []string{"source"}),
		BytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "bytes pulled from byte sources",
		}, []string{"source"}),
		Refills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refills_total",
			Help:      "reads issued because the buffered input ended inside a frame",
		}, nil),
		Buffered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_bytes",
			Help:      "bytes held by frame readers and not yet decoded",
		}, nil),
		ReadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_read_latency",
			Help:      "time in ms to read one frame from a blocking source",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
		}, nil),
	}
	reg.MustRegister(
		stats.Frames, stats.DecodeErrors, stats.IOErrors, stats.BytesRead,
		stats.Refills, stats.Buffered, stats.ReadLatency,
	)
	return stats
}

// Observe records the outcome of one decode attempt. Incomplete buffered
// input is not counted as an error; the caller refills and retries.
func (s *DecoderStats) Observe(source string, f codec.Frame, err error) {
	switch {
	case err == nil:
		s.Frames.WithLabelValues(source, f.Kind.String()).Inc()
	case codec.IsDecodeError(err):
		if source == SourceBuffer && codec.IsIncomplete(err) {
			return
		}
		s.DecodeErrors.WithLabelValues(source, codec.KindOf(err).String()).Inc()
	default:
		s.IOErrors.WithLabelValues(source).Inc()
	}
}

func (s *DecoderStats) ObserveRead(start time.Time) {
	s.ReadLatency.WithLabelValues().Observe(float64(time.Since(start) / time.Millisecond))
}

// Copyright 2025 Google LLC
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

// Package metrics wraps the prometheus client_golang counters/gauges this
// module instruments its core components with. No HTTP exposition server is
// started here; a caller that wants to expose them registers
// metrics.Registry with their own promhttp handler.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Handle groups every metric the core components touch, mirroring the
// teacher's pattern of a single handle struct threaded through the
// filesystem rather than package-level globals.
type Handle struct {
	Registry *prometheus.Registry

	BackendRetries  *prometheus.CounterVec
	ReadLatency     prometheus.Histogram
	OpenStreams     prometheus.Gauge
	StreamEvictions prometheus.Counter
	LiveInodes      prometheus.Gauge
}

// New builds a Handle with its own private registry, so tests can construct
// one per case without colliding on prometheus's global default registry.
func New() *Handle {
	reg := prometheus.NewRegistry()

	h := &Handle{
		Registry: reg,
		BackendRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torrentfuse",
			Subsystem: "backend",
			Name:      "retries_total",
			Help:      "Count of backend request retries, by error class.",
		}, []string{"class"}),
		ReadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "torrentfuse",
			Subsystem: "fs",
			Name:      "read_latency_seconds",
			Help:      "Latency of ReadFile operations served through the stream pool.",
			Buckets:   prometheus.DefBuckets,
		}),
		OpenStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "torrentfuse",
			Subsystem: "streampool",
			Name:      "open_streams",
			Help:      "Number of persistent backend range-read streams currently held open.",
		}),
		StreamEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torrentfuse",
			Subsystem: "streampool",
			Name:      "evictions_total",
			Help:      "Count of stream pool entries evicted to stay under the pool cap.",
		}),
		LiveInodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "torrentfuse",
			Subsystem: "inode",
			Name:      "live_total",
			Help:      "Number of inodes currently tracked by the inode table.",
		}),
	}

	reg.MustRegister(h.BackendRetries, h.ReadLatency, h.OpenStreams, h.StreamEvictions, h.LiveInodes)
	return h
}

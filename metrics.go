// Copyright 2011 Google Inc. All Rights Reserved.
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

package nin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// buildMetrics exposes a fixed set of prometheus collectors describing one
// build run: how many edges succeeded or failed, how long they took, and
// how deep the ready queue got. The zero value is a valid, unregistered
// buildMetrics whose Observe calls are safe no-ops-on-label-cardinality;
// callers that want the metrics exported must call Register.
type buildMetrics struct {
	edgesTotal   *prometheus.CounterVec
	edgeDuration prometheus.Histogram
	readyDepth   prometheus.Gauge
}

// newBuildMetrics constructs the collector set without registering it.
func newBuildMetrics() buildMetrics {
	return buildMetrics{
		edgesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nin",
			Subsystem: "build",
			Name:      "edges_total",
			Help:      "Number of build edges run, partitioned by outcome.",
		}, []string{"outcome"}),
		edgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nin",
			Subsystem: "build",
			Name:      "edge_duration_seconds",
			Help:      "Wall-clock time a single edge's command took to run.",
			Buckets:   prometheus.DefBuckets,
		}),
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nin",
			Subsystem: "build",
			Name:      "ready_queue_depth",
			Help:      "Number of edges currently sitting on the ready queue.",
		}),
	}
}

// Register adds every collector in m to reg.
func (m buildMetrics) Register(reg prometheus.Registerer) error {
	if m.edgesTotal == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.edgesTotal, m.edgeDuration, m.readyDepth} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m buildMetrics) observeEdge(e *Edge, success bool, d time.Duration) {
	if m.edgesTotal == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.edgesTotal.WithLabelValues(outcome).Inc()
	m.edgeDuration.Observe(d.Seconds())
}

func (m buildMetrics) setReadyDepth(n int) {
	if m.readyDepth == nil {
		return
	}
	m.readyDepth.Set(float64(n))
}

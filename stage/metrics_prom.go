// Copyright (c) 2020 The Bluge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stage

import "github.com/prometheus/client_golang/prometheus"

// prometheusObserverVec and prometheusCounterVec narrow
// *prometheus.HistogramVec / *prometheus.CounterVec down to the two
// label values (stage kind, shard tag) the Profiler needs, so the
// Profiler type itself stays independent of the label ordering.

type prometheusObserverVec struct {
	vec *prometheus.HistogramVec
}

// NewDurationMetric builds a Prometheus histogram, labeled by stage kind
// and shard tag, suitable for ProfilerMetrics.Duration.
func NewDurationMetric(namespace, subsystem string) *prometheusObserverVec {
	return &prometheusObserverVec{vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in a pipeline stage's Next call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "shard"})}
}

// Collector exposes the underlying HistogramVec for registration.
func (m *prometheusObserverVec) Collector() prometheus.Collector { return m.vec }

func (m *prometheusObserverVec) observe(kind, shard string, seconds float64) {
	m.vec.WithLabelValues(kind, shard).Observe(seconds)
}

type prometheusCounterVec struct {
	vec *prometheus.CounterVec
}

// NewInvokedMetric builds a Prometheus counter, labeled by stage kind
// and shard tag, suitable for ProfilerMetrics.Invoked.
func NewInvokedMetric(namespace, subsystem string) *prometheusCounterVec {
	return &prometheusCounterVec{vec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stage_invocations_total",
		Help:      "Number of times a pipeline stage's Next was called.",
	}, []string{"kind", "shard"})}
}

// Collector exposes the underlying CounterVec for registration.
func (m *prometheusCounterVec) Collector() prometheus.Collector { return m.vec }

func (m *prometheusCounterVec) inc(kind, shard string) {
	m.vec.WithLabelValues(kind, shard).Inc()
}

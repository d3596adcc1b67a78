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

// Package metrics exposes the prometheus-backed counters/gauges every
// component registers against, the same way the domain statistics structs
// elsewhere in the tree are just named bundles of Incr/Decr fields.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counter is a named, Incr/Add-only prometheus counter.
type Counter struct{ c prometheus.Counter }

func (c Counter) Incr()          { c.c.Add(1) }
func (c Counter) Add(v float64)  { c.c.Add(v) }

// Gauge is a named prometheus gauge that also supports Incr/Decr, matching
// the ergonomics of Counter for the statistics structs below.
type Gauge struct{ g prometheus.Gauge }

func (g Gauge) Incr()         { g.g.Inc() }
func (g Gauge) Decr()         { g.g.Dec() }
func (g Gauge) Set(v float64) { g.g.Set(v) }

func newCounter(name, help string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gridsdk", Name: name, Help: help})
	_ = prometheus.Register(c)
	return Counter{c: c}
}

func newGauge(name, help string) Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gridsdk", Name: name, Help: help})
	_ = prometheus.Register(g)
	return Gauge{g: g}
}

// NewCounterVec registers (once) a counter family distinguished by labels and
// returns it, so callers with a dynamic name (e.g. one per worker pool
// instance) get their own series without colliding on the metric name.
func NewCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gridsdk", Name: name, Help: help}, labels)
	_ = prometheus.Register(v)
	return v
}

// NewGaugeVec is NewCounterVec's gauge counterpart.
func NewGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "gridsdk", Name: name, Help: help}, labels)
	_ = prometheus.Register(v)
	return v
}

// WrapCounter adapts a raw prometheus.Counter (e.g. from a Vec) to Counter.
func WrapCounter(c prometheus.Counter) Counter { return Counter{c: c} }

// WrapGauge adapts a raw prometheus.Gauge (e.g. from a Vec) to Gauge.
func WrapGauge(g prometheus.Gauge) Gauge { return Gauge{g: g} }

// SubmitterStatistics tracks the per-chunk submission pipeline.
type SubmitterStatistics struct {
	ChunksSubmitted     Counter
	TasksSubmitted      Counter
	TasksDropped        Counter
	SmallPayloadUploads Counter
	LargePayloadUploads Counter
	RetriesExhausted    Counter
}

// NewSubmitterStatistics creates and registers the Submitter's metrics.
func NewSubmitterStatistics() *SubmitterStatistics {
	return &SubmitterStatistics{
		ChunksSubmitted:     newCounter("submitter_chunks_submitted_total", "chunks processed by the submission pipeline"),
		TasksSubmitted:      newCounter("submitter_tasks_submitted_total", "tasks successfully created"),
		TasksDropped:        newCounter("submitter_tasks_dropped_total", "tasks dropped after exhausting retries"),
		SmallPayloadUploads: newCounter("submitter_small_payload_uploads_total", "inline CreateResults calls"),
		LargePayloadUploads: newCounter("submitter_large_payload_uploads_total", "UploadResultData calls"),
		RetriesExhausted:    newCounter("submitter_retries_exhausted_total", "RPC stages that exhausted their retry budget"),
	}
}

// ResultWaiterStatistics tracks waiting/downloading results.
type ResultWaiterStatistics struct {
	WaitsIssued    Counter
	ResultsReady   Counter
	ResultsErrored Counter
	ChunksReceived Counter
}

// NewResultWaiterStatistics creates and registers the ResultWaiter's metrics.
func NewResultWaiterStatistics() *ResultWaiterStatistics {
	return &ResultWaiterStatistics{
		WaitsIssued:    newCounter("waiter_waits_issued_total", "WaitForCompletion RPCs issued"),
		ResultsReady:   newCounter("waiter_results_ready_total", "results observed ready"),
		ResultsErrored: newCounter("waiter_results_errored_total", "results observed in error or aborted"),
		ChunksReceived: newCounter("waiter_chunks_received_total", "result data chunks received"),
	}
}

// DispatcherStatistics tracks the async dispatcher loop.
type DispatcherStatistics struct {
	AlivePending    Gauge
	Delivered       Counter
	DeliveredErrors Counter
	Passes          Counter
	IdlePasses      Counter
}

// NewDispatcherStatistics creates and registers the DispatcherLoop's metrics.
func NewDispatcherStatistics() *DispatcherStatistics {
	return &DispatcherStatistics{
		AlivePending:    newGauge("dispatcher_pending_handlers", "handlers registered awaiting a result"),
		Delivered:       newCounter("dispatcher_delivered_total", "handlers delivered a response"),
		DeliveredErrors: newCounter("dispatcher_delivered_errors_total", "handlers delivered an error"),
		Passes:          newCounter("dispatcher_passes_total", "sweep passes executed"),
		IdlePasses:      newCounter("dispatcher_idle_passes_total", "sweep passes with no newly ready results"),
	}
}

// ChannelPoolStatistics tracks the gRPC channel pool.
type ChannelPoolStatistics struct {
	Leased  Counter
	Faulted Counter
	Created Counter
	InUse   Gauge
}

// NewChannelPoolStatistics creates and registers the ChannelPool's metrics.
func NewChannelPoolStatistics() *ChannelPoolStatistics {
	return &ChannelPoolStatistics{
		Leased:  newCounter("chanpool_leased_total", "channels leased"),
		Faulted: newCounter("chanpool_faulted_total", "channels tagged faulted and destroyed"),
		Created: newCounter("chanpool_created_total", "channels dialed"),
		InUse:   newGauge("chanpool_in_use", "channels currently leased"),
	}
}

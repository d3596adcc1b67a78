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

package concurrent

import (
	"go.uber.org/atomic"

	"github.com/gridmesh/sdk/pkg/metrics"
)

var (
	workersAliveVec   = metrics.NewGaugeVec("concurrent_workers_alive", "live workers in a pool", "pool")
	tasksProcessedVec = metrics.NewCounterVec("concurrent_tasks_processed_total", "tasks a pool has run to completion", "pool")
	tasksPanickedVec  = metrics.NewCounterVec("concurrent_tasks_panicked_total", "tasks that panicked", "pool")
	tasksRejectedVec  = metrics.NewCounterVec("concurrent_tasks_rejected_total", "tasks rejected because the pool stopped or the caller's context expired", "pool")
)

// liveGauge is an atomic counter that mirrors itself into a prometheus
// gauge, so Get() is cheap and exact while /metrics still sees it.
type liveGauge struct {
	v atomic.Float64
	g metrics.Gauge
}

func (g *liveGauge) Incr() {
	g.g.Set(g.v.Add(1))
}

func (g *liveGauge) Decr() {
	g.g.Set(g.v.Sub(1))
}

func (g *liveGauge) Get() float64 {
	return g.v.Load()
}

// Statistics tracks one named worker pool's lifecycle.
type Statistics struct {
	WorkersAlive   liveGauge
	TasksProcessed metrics.Counter
	TasksPanicked  metrics.Counter
	TasksRejected  metrics.Counter
}

// NewStatistics creates the metrics family for a pool named name.
func NewStatistics(name string) *Statistics {
	return &Statistics{
		WorkersAlive:   liveGauge{g: metrics.WrapGauge(workersAliveVec.WithLabelValues(name))},
		TasksProcessed: metrics.WrapCounter(tasksProcessedVec.WithLabelValues(name)),
		TasksPanicked:  metrics.WrapCounter(tasksPanickedVec.WithLabelValues(name)),
		TasksRejected:  metrics.WrapCounter(tasksRejectedVec.WithLabelValues(name)),
	}
}

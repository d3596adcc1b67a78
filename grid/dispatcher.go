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

package grid

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/gridmesh/sdk/internal/concurrent"
	"github.com/gridmesh/sdk/internal/retry"
	"github.com/gridmesh/sdk/pkg/logger"
	"github.com/gridmesh/sdk/pkg/metrics"
)

const (
	dispatcherIdleInterval = 100 * time.Millisecond
	dispatcherBatchSize    = 10000
	dispatcherSubBatchSize = 100
)

// dispatcherBackoffSteps is the geometric schedule a pass with no newly
// ready results advances through, resetting to the front the moment a pass
// delivers something -- a storm-avoidance measure for an idle server that
// costs nothing in latency while results are actually flowing.
var dispatcherBackoffSteps = []time.Duration{1 * time.Second, 5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second}

// DispatcherLoop is the single cooperative worker behind fire-and-forget
// submissions: it polls the ResultRegistry's outstanding ids and delivers
// each one's handler at most once, off its own bounded worker pool (separate
// from the Submitter's).
type DispatcherLoop struct {
	session     *SessionContext
	results     ResultsClient
	registry    *ResultRegistry
	pool        concurrent.Pool
	maxParallel int

	statistics *metrics.DispatcherStatistics
	log        *logger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	joined   chan struct{}
}

// NewDispatcherLoop creates a DispatcherLoop; call Run to start it on its
// own goroutine.
func NewDispatcherLoop(session *SessionContext, results ResultsClient, registry *ResultRegistry, maxParallel int) *DispatcherLoop {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	stats := metrics.NewDispatcherStatistics()
	return &DispatcherLoop{
		session:     session,
		results:     results,
		registry:    registry,
		pool:        concurrent.NewPool("dispatcher", maxParallel, 30*time.Second, concurrent.NewStatistics("dispatcher")),
		maxParallel: maxParallel,
		statistics:  stats,
		log:         logger.GetLogger("grid", "DispatcherLoop"),
		ctx:         ctx,
		cancel:      cancel,
		joined:      make(chan struct{}),
	}
}

// Run starts the sweep loop on its own goroutine. Stop ends it after the
// current pass; outstanding handlers are not invoked on dispose, by design
// -- the caller controls lifetime, not the dispatcher.
func (d *DispatcherLoop) Run() {
	go func() {
		defer close(d.joined)
		bo := retry.NewSteppedBackOff(dispatcherBackoffSteps)
		for {
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			if d.registry.Empty() {
				select {
				case <-d.ctx.Done():
					return
				case <-time.After(dispatcherIdleInterval):
				}
				continue
			}

			delivered := d.pass()
			d.statistics.Passes.Incr()
			if delivered {
				bo.Reset()
				continue
			}
			d.statistics.IdlePasses.Incr()
			delay := bo.NextBackOff()
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

// Stop cancels the loop and blocks until the in-flight pass, if any,
// finishes. Idempotent.
func (d *DispatcherLoop) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
	})
	<-d.joined
	d.pool.Stop()
}

// pass batches the registry's outstanding ids (capped at
// dispatcherBatchSize) into sub-batches of dispatcherSubBatchSize, fanned
// out across the bounded worker pool, and reports whether it delivered at
// least one handler.
func (d *DispatcherLoop) pass() bool {
	ids := d.registry.IDs()
	if len(ids) > dispatcherBatchSize {
		ids = ids[:dispatcherBatchSize]
	}

	var delivered atomic.Bool
	var wg sync.WaitGroup
	for start := 0; start < len(ids); start += dispatcherSubBatchSize {
		end := start + dispatcherSubBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		sub := ids[start:end]

		wg.Add(1)
		accepted := d.pool.Submit(d.ctx, concurrent.NewTask(func() {
			defer wg.Done()
			if d.sweepSubBatch(sub) {
				delivered.Store(true)
			}
		}, func(error) {}))
		if !accepted {
			wg.Done()
		}
	}
	wg.Wait()
	return delivered.Load()
}

// sweepSubBatch checks status for one sub-batch and delivers every
// terminal entry's handler exactly once. A transport fault on the
// ListResults call routes to on-error for the first id in the sub-batch and
// abandons the rest of it for this pass, per the spec's batch-abandonment
// rule.
func (d *DispatcherLoop) sweepSubBatch(ids []ResultID) (delivered bool) {
	listing, err := d.results.ListResults(d.ctx, &ListResultsRequest{
		SessionID: d.session.ID,
		ResultIDs: ids,
	})
	if err != nil {
		if handler, taskID, ok := d.registry.Take(ids[0]); ok {
			d.deliverError(handler, taskID, SubmissionExhausted("ListResults", err))
		}
		return false
	}

	byID := make(map[ResultID]ServerResultStatus, len(listing.Results))
	for _, r := range listing.Results {
		byID[r.ResultID] = r.Status
	}

	for _, id := range ids {
		status, known := byID[id]
		if !known || status == ServerStatusCreated {
			continue
		}

		handler, taskID, ok := d.registry.Take(id)
		if !ok {
			continue
		}
		delivered = true

		switch status {
		case ServerStatusCompleted:
			data, errored, dlErr := downloadResult(d.ctx, d.results, d.session.ID, id)
			if dlErr != nil {
				d.deliverError(handler, taskID, dlErr)
				continue
			}
			if errored {
				d.deliverError(handler, taskID, ResultInError(string(id), nil))
				continue
			}
			d.deliverResponse(handler, taskID, data)
		case ServerStatusAborted:
			d.deliverError(handler, taskID, ResultAborted(string(id)))
		default:
			d.deliverError(handler, taskID, newErrorf(KindResultInError, "result %q unspecified", id))
		}
	}
	return delivered
}

func (d *DispatcherLoop) deliverResponse(h Handler, taskID string, data []byte) {
	d.statistics.Delivered.Incr()
	if h.OnResponse != nil {
		h.OnResponse(data, taskID)
	}
}

func (d *DispatcherLoop) deliverError(h Handler, taskID string, err error) {
	d.statistics.DeliveredErrors.Incr()
	if h.OnError != nil {
		h.OnError(err, taskID)
	}
}

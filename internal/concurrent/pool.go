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

// Package concurrent provides a bounded worker pool used to fan submission
// and upload work out across a small number of goroutines instead of
// spawning one per task.
package concurrent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Task is a unit of work submitted to a Pool. onPanic, if non-nil, is
// invoked with the recovered value (wrapped as an error) instead of letting
// the worker goroutine die loudly.
type Task struct {
	fn      func()
	onPanic func(error)
}

// NewTask wraps fn (and an optional panic handler) as a Task.
func NewTask(fn func(), onPanic func(error)) *Task {
	return &Task{fn: fn, onPanic: onPanic}
}

// Pool runs submitted tasks on a bounded number of background workers.
type Pool interface {
	// Submit queues task for execution, spawning a worker if the pool has
	// not reached maxWorkers, else blocking until one frees up or ctx is
	// done, in which case the task is dropped and Submit returns false.
	// Neither task.fn nor task.onPanic runs when Submit returns false.
	Submit(ctx context.Context, task *Task) bool
	// Stop shuts the pool down. Idempotent; safe to call more than once.
	Stop()
}

// NewPool creates a Pool named name, bounded at maxWorkers concurrent
// workers (0 means unbounded). Workers that sit idle for longer than
// idleTimeout exit (0 means they never time out). statistics must not be
// nil.
func NewPool(name string, maxWorkers int, idleTimeout time.Duration, statistics *Statistics) Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		name:         name,
		maxWorkers:   maxWorkers,
		idleTimeout:  idleTimeout,
		statistics:   statistics,
		readyWorkers: make(chan *worker, maxWorkerBuffer(maxWorkers)),
		taskCh:       make(chan *Task),
		ctx:          ctx,
		cancel:       cancel,
	}
	go p.loop()
	return p
}

func maxWorkerBuffer(maxWorkers int) int {
	if maxWorkers <= 0 {
		return 1024
	}
	return maxWorkers
}

type workerPool struct {
	name        string
	maxWorkers  int
	idleTimeout time.Duration
	statistics  *Statistics

	readyWorkers chan *worker
	taskCh       chan *Task
	numWorkers   atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	stopOnce sync.Once
}

func (p *workerPool) Submit(ctx context.Context, task *Task) bool {
	select {
	case <-p.ctx.Done():
		p.statistics.TasksRejected.Incr()
		return false
	default:
	}

	// hand the task straight to a worker that is already waiting.
	select {
	case w := <-p.readyWorkers:
		w.assign(task)
		return true
	default:
	}

	if p.maxWorkers <= 0 || p.numWorkers.Load() < int32(p.maxWorkers) {
		p.numWorkers.Inc()
		p.statistics.WorkersAlive.Incr()
		w := newWorker(p)
		w.assign(task)
		return true
	}

	// pool is saturated; queue the task for the dispatch loop to hand to
	// the next worker that frees up, respecting both the caller's
	// deadline and the pool's own shutdown.
	select {
	case p.taskCh <- task:
		return true
	case <-ctx.Done():
		p.statistics.TasksRejected.Incr()
		return false
	case <-p.ctx.Done():
		p.statistics.TasksRejected.Incr()
		return false
	}
}

func (p *workerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
	})
}

// loop runs the dispatch goroutine for the pool's lifetime, repeatedly
// pairing a free worker with the next queued task.
func (p *workerPool) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
			p.idle()
		}
	}
}

// idle waits for a worker to become available, then waits up to
// idleTimeout for a task to hand it. If nothing arrives in time the worker
// is reaped; if the pool is stopped first the worker is told to exit.
func (p *workerPool) idle() {
	var w *worker
	select {
	case w = <-p.readyWorkers:
	case <-p.ctx.Done():
		return
	}

	if p.idleTimeout <= 0 {
		select {
		case task, ok := <-p.taskCh:
			if !ok {
				return
			}
			w.assign(task)
		case <-p.ctx.Done():
			w.shutdown()
		}
		return
	}

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()
	select {
	case task, ok := <-p.taskCh:
		if !ok {
			return
		}
		w.assign(task)
	case <-timer.C:
		w.shutdown()
	case <-p.ctx.Done():
		w.shutdown()
	}
}

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

import "fmt"

// worker runs one task at a time on its own goroutine, requeuing itself
// onto the pool's readyWorkers once idle, and exiting when its channel is
// closed or it panics.
type worker struct {
	pool   *workerPool
	taskCh chan *Task
}

func newWorker(pool *workerPool) *worker {
	w := &worker{pool: pool, taskCh: make(chan *Task, 1)}
	go w.run()
	return w
}

// assign hands task to the worker. Buffered so the caller never blocks on
// a worker that hasn't reached its receive yet.
func (w *worker) assign(task *Task) {
	w.taskCh <- task
}

// shutdown tells the worker to exit instead of waiting for another task.
func (w *worker) shutdown() {
	close(w.taskCh)
}

func (w *worker) run() {
	for {
		task, ok := <-w.taskCh
		if !ok {
			w.die()
			return
		}
		if !w.execute(task) {
			w.die()
			return
		}
		select {
		case w.pool.readyWorkers <- w:
		case <-w.pool.ctx.Done():
			w.die()
			return
		}
	}
}

// execute runs task.fn, recovering a panic into task.onPanic instead of
// letting it crash the process. Returns false if the task panicked, telling
// run to retire this worker rather than requeue it.
func (w *worker) execute(task *Task) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if task.onPanic != nil {
				task.onPanic(fmt.Errorf("%v", r))
			}
			w.pool.statistics.TasksPanicked.Incr()
			return
		}
		w.pool.statistics.TasksProcessed.Incr()
	}()
	task.fn()
	return
}

func (w *worker) die() {
	w.pool.numWorkers.Dec()
	w.pool.statistics.WorkersAlive.Decr()
}

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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestPool_Submit(t *testing.T) {
	pool := NewPool("test", 2, 0, NewStatistics("test-submit"))

	var c atomic.Int32
	finished := make(chan struct{})
	do := func(iterations int) {
		for i := 0; i < iterations; i++ {
			pool.Submit(context.Background(), NewTask(func() {
				c.Inc()
			}, nil))
		}
		finished <- struct{}{}
	}
	go do(100)
	<-finished
	pool.Stop()
	pool.Stop() // idempotent

	// submitting after Stop rejects every task instead of running it.
	go do(100)
	<-finished
	assert.Equal(t, int32(100), c.Load())
}

func TestPool_Submit_PanicTask(t *testing.T) {
	pool := NewPool("test", 0, time.Millisecond*200, NewStatistics("test-panic"))
	var wait sync.WaitGroup
	wait.Add(1)
	pool.Submit(context.Background(), NewTask(func() {
		panic("boom")
	}, func(_ error) {
		wait.Done()
	}))
	wait.Wait()

	wp := pool.(*workerPool)
	assert.Eventually(t, func() bool {
		return wp.statistics.WorkersAlive.Get() == 0
	}, time.Second, time.Millisecond*10)
	pool.Stop()
}

func TestPool_Submit_TaskTimeout(t *testing.T) {
	pool := NewPool("test", 0, time.Millisecond*100, NewStatistics("test-timeout"))
	submit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*2)
		defer cancel()
		pool.Submit(ctx, NewTask(func() {
			time.Sleep(20 * time.Millisecond)
		}, nil))
	}
	for i := 0; i < 50; i++ {
		submit()
	}
	time.Sleep(time.Second)
	pool.Stop()
}

func TestPool_idle(t *testing.T) {
	p := NewPool("test", 0, time.Millisecond*100, NewStatistics("test-idle"))
	// no worker has been spawned yet.
	time.Sleep(time.Millisecond * 50)

	p1 := p.(*workerPool)
	p1.statistics.WorkersAlive.Incr()
	p1.readyWorkers <- newWorker(p1)
	done := make(chan struct{})
	go func() {
		p1.idle()
		time.Sleep(time.Millisecond * 10)
		p1.cancel()
		time.Sleep(time.Millisecond * 10)
		p1.idle()
		done <- struct{}{}
	}()
	p1.idle()
	<-done
}

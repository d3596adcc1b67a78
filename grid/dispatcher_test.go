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
	"testing"
	"time"
)

func TestDispatcherLoopDeliversCompletedResult(t *testing.T) {
	cp := newFakeControlPlane()
	resultID := cp.allocID()
	cp.data[resultID] = []byte("done")
	cp.status[resultID] = ServerStatusCreated

	registry := NewResultRegistry()
	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})
	registry.Register(resultID, "task-1", Handler{
		OnResponse: func(data []byte, taskID string) {
			mu.Lock()
			got = data
			mu.Unlock()
			close(done)
		},
	})

	d := NewDispatcherLoop(newTestSession(), cp, registry, 2)
	d.Run()
	defer d.Stop()

	// flip to completed after the loop has had a chance to see it pending.
	go func() {
		time.Sleep(20 * time.Millisecond)
		cp.mu.Lock()
		cp.status[resultID] = ServerStatusCompleted
		cp.mu.Unlock()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "done" {
		t.Fatalf("got %q, want %q", got, "done")
	}
}

func TestDispatcherLoopDeliversAbortedAsError(t *testing.T) {
	cp := newFakeControlPlane()
	resultID := cp.allocID()
	cp.status[resultID] = ServerStatusAborted

	registry := NewResultRegistry()
	done := make(chan error, 1)
	registry.Register(resultID, "task-1", Handler{
		OnError: func(err error, taskID string) { done <- err },
	})

	d := NewDispatcherLoop(newTestSession(), cp, registry, 2)
	d.Run()
	defer d.Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a non-nil error for an aborted result")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was never delivered")
	}
}

func TestDispatcherLoopDeliversExactlyOnce(t *testing.T) {
	cp := newFakeControlPlane()
	resultID := cp.allocID()
	cp.status[resultID] = ServerStatusCompleted
	cp.data[resultID] = []byte("x")

	registry := NewResultRegistry()
	var calls int
	var mu sync.Mutex
	done := make(chan struct{})
	registry.Register(resultID, "task-1", Handler{
		OnResponse: func(data []byte, taskID string) {
			mu.Lock()
			calls++
			mu.Unlock()
			close(done)
		},
	})

	d := NewDispatcherLoop(newTestSession(), cp, registry, 2)
	d.Run()
	defer d.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was never delivered")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
	if !registry.Empty() {
		t.Fatal("expected the registry to be empty after delivery")
	}
}

func TestDispatcherLoopAbandonsBatchOnTransportFault(t *testing.T) {
	cp := newFakeControlPlane()
	resultID := cp.allocID()
	cp.status[resultID] = ServerStatusCreated
	cp.failListResults = context.DeadlineExceeded

	registry := NewResultRegistry()
	done := make(chan error, 1)
	registry.Register(resultID, "task-1", Handler{
		OnError: func(err error, taskID string) { done <- err },
	})

	d := NewDispatcherLoop(newTestSession(), cp, registry, 2)
	d.Run()
	defer d.Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a transport error to be delivered")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was never delivered after a persistent transport fault")
	}
}

func TestDispatcherLoopStopIsIdempotent(t *testing.T) {
	cp := newFakeControlPlane()
	registry := NewResultRegistry()
	d := NewDispatcherLoop(newTestSession(), cp, registry, 2)
	d.Run()
	d.Stop()
	d.Stop()
}

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
	"testing"
	"time"

	"github.com/gridmesh/sdk/pkg/config"
)

func newTestClient(cp *fakeControlPlane) *Client {
	cfg := config.Default()
	return newClient(cfg, newTestSession(), nil, cp, cp)
}

func TestClientSubmitAndGetResult(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	taskID, err := c.SubmitTask(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	data, err := c.GetResult(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q, want %q", data, "payload")
	}
}

func TestClientSubmitTasksWithDependencies(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	parentIDs, err := c.SubmitTasks(context.Background(), [][]byte{[]byte("p1")})
	if err != nil {
		t.Fatalf("SubmitTasks: %v", err)
	}

	childIDs, err := c.SubmitTasksWithDependencies(context.Background(), [][]byte{[]byte("c1")}, [][]string{parentIDs}, false)
	if err != nil {
		t.Fatalf("SubmitTasksWithDependencies: %v", err)
	}
	if len(childIDs) != 1 {
		t.Fatalf("expected one child task id, got %v", childIDs)
	}
}

func TestClientSubmitTaskWithDependenciesUnknownParent(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	_, err := c.SubmitTaskWithDependencies(context.Background(), []byte("c1"), []string{"no-such-task"})
	if err == nil {
		t.Fatal("expected DependencyUnknown for an unresolved parent task id")
	}
}

func TestClientTryGetResultNotReady(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	data, err := c.TryGetResult(context.Background(), "never-submitted")
	if err != nil {
		t.Fatalf("TryGetResult: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil data for a task with no bound result, got %q", data)
	}
}

func TestClientTryGetResultReady(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	taskID, err := c.SubmitTask(context.Background(), []byte("ready"))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	data, err := c.TryGetResult(context.Background(), taskID)
	if err != nil {
		t.Fatalf("TryGetResult: %v", err)
	}
	if string(data) != "ready" {
		t.Fatalf("got %q, want %q", data, "ready")
	}
}

func TestClientGetResultsAggregatesFailures(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	okID, err := c.SubmitTask(context.Background(), []byte("ok"))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	_, err = c.GetResults(context.Background(), []string{okID, "missing-task"})
	if err == nil {
		t.Fatal("expected an aggregated error for the missing task id")
	}
	results, ok := err.(*ClientResults)
	if !ok {
		t.Fatalf("expected *ClientResults, got %T", err)
	}
	if len(results.FailedIDs) != 1 || results.FailedIDs[0] != "missing-task" {
		t.Fatalf("unexpected FailedIDs: %v", results.FailedIDs)
	}
}

func TestClientSubmitTasksWithDependenciesAsyncDeliversViaDispatcher(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	done := make(chan []byte, 1)
	c.SubmitTasksWithDependenciesAsync(context.Background(), [][]byte{[]byte("async")}, [][]string{nil}, false, Handler{
		OnResponse: func(data []byte, taskID string) { done <- data },
	})

	select {
	case data := <-done:
		if string(data) != "async" {
			t.Fatalf("got %q, want %q", data, "async")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("async handler was never delivered")
	}
}

func TestClientCreateResultsMetadataByName(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	byName, err := c.CreateResultsMetadata(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateResultsMetadata: %v", err)
	}
	if len(byName) != 2 || byName["a"] == "" || byName["b"] == "" {
		t.Fatalf("expected two named ids, got %v", byName)
	}
}

func TestClientWaitForTasksCompletion(t *testing.T) {
	cp := newFakeControlPlane()
	c := newTestClient(cp)
	defer stopClientIgnoringNilPool(c)

	taskID, err := c.SubmitTask(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}
	if err := c.WaitForTasksCompletion(context.Background(), []string{taskID}); err != nil {
		t.Fatalf("WaitForTasksCompletion: %v", err)
	}
}

// stopClientIgnoringNilPool mirrors Client.Close but tolerates the nil
// chanpool.Pool these tests construct directly via newClient, bypassing
// Dial/Open (which always supply a real one).
func stopClientIgnoringNilPool(c *Client) {
	c.dispatcher.Stop()
	c.registry.Purge()
	c.submitter.Stop()
}

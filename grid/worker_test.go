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
	"sync"
	"testing"
)

func TestWorkerSubmitterRecordsCreatedTasks(t *testing.T) {
	cp := newFakeControlPlane()
	s := newTestSubmitter(cp, SubmitterConfig{})
	defer s.Stop()

	outputs := NewTaskOutputMap()
	ws := NewWorkerSubmitter(s, "parent-task", "parent-result", outputs, false)

	result, err := ws.Submit(TaskRequest{Payload: Payload("child")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	resolved, ok := outputs.Resolve(result.TaskID)
	if !ok || resolved != result.ResultID {
		t.Fatalf("expected taskOutputs to record (%q -> %q), got (%q, %v)", result.TaskID, result.ResultID, resolved, ok)
	}
}

func TestWorkerSubmitterTranslatesSiblingDependency(t *testing.T) {
	cp := newFakeControlPlane()
	s := newTestSubmitter(cp, SubmitterConfig{})
	defer s.Stop()

	outputs := NewTaskOutputMap()
	ws := NewWorkerSubmitter(s, "parent-task", "parent-result", outputs, false)

	sibling, err := ws.Submit(TaskRequest{Payload: Payload("sibling")})
	if err != nil {
		t.Fatalf("Submit sibling: %v", err)
	}

	dependent, err := ws.Submit(TaskRequest{
		Payload:      Payload("dependent"),
		Dependencies: []ResultID{ResultID(sibling.TaskID)},
	})
	if err != nil {
		t.Fatalf("Submit dependent: %v", err)
	}
	if dependent.TaskID == "" {
		t.Fatal("expected a task id for the dependent submission")
	}
}

func TestWorkerSubmitterUnknownDependencyFails(t *testing.T) {
	cp := newFakeControlPlane()
	s := newTestSubmitter(cp, SubmitterConfig{})
	defer s.Stop()

	outputs := NewTaskOutputMap()
	ws := NewWorkerSubmitter(s, "parent-task", "parent-result", outputs, false)

	_, err := ws.Submit(TaskRequest{
		Payload:      Payload("x"),
		Dependencies: []ResultID{"never-submitted-task"},
	})
	if err == nil {
		t.Fatal("expected DependencyUnknown for an untranslatable dependency")
	}
	if e, ok := err.(*Error); !ok || e.Kind() != string(KindDependencyUnknown) {
		t.Fatalf("expected KindDependencyUnknown, got %v", err)
	}
}

func TestWorkerSubmitterResultForParent(t *testing.T) {
	cp := newFakeControlPlane()
	s := newTestSubmitter(cp, SubmitterConfig{})
	defer s.Stop()

	outputs := NewTaskOutputMap()
	expected := ResultID("parent-expected-output")
	ws := NewWorkerSubmitter(s, "parent-task", expected, outputs, true)

	result, err := ws.Submit(TaskRequest{Payload: Payload("x")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.ResultID != expected {
		t.Fatalf("expected resultForParent to force result id %q, got %q", expected, result.ResultID)
	}
}

// TestWorkerSubmittersShareUnderlyingSubmitterSafely exercises the fix that
// replaced a mutable onTaskCreated field on Submitter with a parameter
// threaded down submitWithDependencies -- concurrent WorkerSubmitters
// wrapping the same Submitter must never record into the wrong TaskOutputMap.
func TestWorkerSubmittersShareUnderlyingSubmitterSafely(t *testing.T) {
	cp := newFakeControlPlane()
	s := newTestSubmitter(cp, SubmitterConfig{MaxParallel: 4})
	defer s.Stop()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			outputs := NewTaskOutputMap()
			ws := NewWorkerSubmitter(s, "parent", ResultID("parent-result"), outputs, false)
			result, err := ws.Submit(TaskRequest{Payload: Payload("w")})
			if err != nil {
				t.Errorf("worker %d: Submit: %v", i, err)
				return
			}
			resolved, ok := outputs.Resolve(result.TaskID)
			if !ok || resolved != result.ResultID {
				t.Errorf("worker %d: expected its own TaskOutputMap to record (%q -> %q), got (%q, %v)",
					i, result.TaskID, result.ResultID, resolved, ok)
			}
		}()
	}
	wg.Wait()
}

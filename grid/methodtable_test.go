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

import "testing"

type fakeMethodContext struct{ taskID string }

func (f *fakeMethodContext) TaskID() string { return f.taskID }
func (f *fakeMethodContext) Submit(req TaskRequest) (*TaskResult, error) {
	return &TaskResult{TaskID: "child", ResultID: "child-result"}, nil
}

func TestMethodTableDispatch(t *testing.T) {
	table := NewMethodTable()
	table.Register("echo", func(ctx MethodContext, payload []byte) ([]byte, error) {
		return payload, nil
	})

	out, err := table.Dispatch(&fakeMethodContext{taskID: "t1"}, "echo", []byte("hi"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(out) != "hi" {
		t.Fatalf("got %q, want %q", out, "hi")
	}
}

func TestMethodTableDispatchUnknownMethod(t *testing.T) {
	table := NewMethodTable()
	_, err := table.Dispatch(&fakeMethodContext{taskID: "t1"}, "missing", nil)
	if err == nil {
		t.Fatal("expected MethodDispatchError for an unregistered method")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind() != string(KindMethodDispatchError) {
		t.Fatalf("expected KindMethodDispatchError, got %v", err)
	}
}

func TestMethodTableRegisterOverwrites(t *testing.T) {
	table := NewMethodTable()
	table.Register("m", func(ctx MethodContext, payload []byte) ([]byte, error) { return []byte("v1"), nil })
	table.Register("m", func(ctx MethodContext, payload []byte) ([]byte, error) { return []byte("v2"), nil })

	out, err := table.Dispatch(&fakeMethodContext{}, "m", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(out) != "v2" {
		t.Fatalf("got %q, want the latest registration's result %q", out, "v2")
	}
}

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
	"fmt"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xlab/treeprint"
)

// ResultID names the expected output of exactly one task. Distinct from
// the task id that produces it.
type ResultID string

// Payload is an immutable byte sequence submitted as a task's input.
type Payload []byte

// sizeClass classifies p against the server-advertised chunk-max-size.
func (p Payload) sizeClass(chunkMaxSize int) payloadSizeClass {
	if len(p) > chunkMaxSize {
		return payloadLarge
	}
	return payloadSmall
}

type payloadSizeClass int

const (
	payloadSmall payloadSizeClass = iota
	payloadLarge
)

// TaskRequest is one entry of a submission's input stream.
type TaskRequest struct {
	// ResultID, if set by the caller, names the slot this task's output
	// must land in; otherwise the Submitter allocates one.
	ResultID ResultID
	Payload  Payload
	// Dependencies lists result ids (or, worker-side, task ids translated
	// via TaskId2OutputId) this task's inputs depend on.
	Dependencies []ResultID
	// Options, if non-nil, overrides the submission's default TaskOptions
	// for this one task.
	Options *TaskOptions
}

// TaskResult is the position-matched reply to one TaskRequest.
type TaskResult struct {
	TaskID   string
	ResultID ResultID
}

// Handler is the pair of callbacks an async submission registers against
// a result id. Invoked at most once; must not block.
type Handler struct {
	OnResponse func(data []byte, taskID string)
	OnError    func(err error, taskID string)
}

// TaskOutputMap is the client-side task-id -> result-id mapping populated
// from submission replies. Append-only within a session; translation
// failures are fatal to the submission that needed them.
type TaskOutputMap struct {
	mu sync.Mutex
	m  sync.Map
}

// NewTaskOutputMap creates an empty mapping.
func NewTaskOutputMap() *TaskOutputMap {
	return &TaskOutputMap{}
}

// Record stores taskID -> resultID. Safe for concurrent use; a repeated
// Record for the same task id overwrites the earlier binding.
func (t *TaskOutputMap) Record(taskID string, resultID ResultID) {
	t.m.Store(taskID, resultID)
}

// Resolve looks up the result id produced by taskID.
func (t *TaskOutputMap) Resolve(taskID string) (ResultID, bool) {
	v, ok := t.m.Load(taskID)
	if !ok {
		return "", false
	}
	return v.(ResultID), true
}

// DebugTree renders the current task-id -> result-id bindings as a tree,
// for logging alongside a translation failure without dumping the whole
// underlying map.
func (t *TaskOutputMap) DebugTree() string {
	root := treeprint.New()
	root.SetValue("task outputs")
	t.m.Range(func(k, v interface{}) bool {
		root.AddNode(fmt.Sprintf("%s -> %s", k.(string), v.(ResultID)))
		return true
	})
	return root.String()
}

// Translate resolves every entry of deps, each a task id, into its bound
// result id, under a
// single critical section so concurrent translations of the same
// dependency set observe a consistent snapshot. Returns DependencyUnknown
// for the first deps entry with no recorded mapping.
func (t *TaskOutputMap) Translate(deps []string) ([]ResultID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ResultID, 0, len(deps))
	for _, d := range deps {
		rid, ok := t.Resolve(d)
		if !ok {
			return nil, DependencyUnknown(d)
		}
		out = append(out, rid)
	}
	return out, nil
}

// ResultStatus is one queried id's classification.
type ResultStatus int

const (
	StatusReady ResultStatus = iota
	StatusNotReady
	StatusResultError
	StatusMissing
)

func (s ResultStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusNotReady:
		return "not-ready"
	case StatusResultError:
		return "result-error"
	case StatusMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// ResultStatusCollection partitions a queried result-id set into four
// disjoint buckets whose union is the query. Order within a bucket matches
// query order.
type ResultStatusCollection struct {
	Ready       []ResultID
	NotReady    []ResultID
	ResultError []ResultID
	Missing     []ResultID
}

// Classify appends id to the bucket matching status, preserving the order
// ids are classified in.
func (c *ResultStatusCollection) Classify(id ResultID, status ResultStatus) {
	switch status {
	case StatusReady:
		c.Ready = append(c.Ready, id)
	case StatusNotReady:
		c.NotReady = append(c.NotReady, id)
	case StatusResultError:
		c.ResultError = append(c.ResultError, id)
	default:
		c.Missing = append(c.Missing, id)
	}
}

// String renders the collection as a small table, for debug logging.
func (c *ResultStatusCollection) String() string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"status", "count", "ids"})
	tw.AppendRow(table.Row{StatusReady, len(c.Ready), c.Ready})
	tw.AppendRow(table.Row{StatusNotReady, len(c.NotReady), c.NotReady})
	tw.AppendRow(table.Row{StatusResultError, len(c.ResultError), c.ResultError})
	tw.AppendRow(table.Row{StatusMissing, len(c.Missing), c.Missing})
	return tw.Render()
}

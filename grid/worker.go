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

	"github.com/gridmesh/sdk/pkg/logger"
)

// WorkerSubmitter is the Submitter as seen from inside a running task: every
// task id it produces is recorded into taskOutputs, and every caller-supplied
// dependency names a sibling task id -- it is translated to that task's
// result id before the underlying Submitter ever sees it. taskID/expectedOutput identify the task this WorkerSubmitter is
// running inside of, for the result-for-parent pattern.
type WorkerSubmitter struct {
	*Submitter

	taskID         string
	expectedOutput ResultID
	taskOutputs    *TaskOutputMap

	// resultForParent makes every child task submitted through this
	// WorkerSubmitter produce its parent's expected output instead of one
	// allocated for itself -- the "child produces parent's output" pattern.
	resultForParent bool

	log *logger.Logger
}

// NewWorkerSubmitter wraps submitter for use inside the execution of task
// taskID (whose own result id is expectedOutput), recording every task it
// creates into taskOutputs. submitter may be shared by other
// WorkerSubmitters executing concurrently -- the recording callback is
// passed per-call, never stored on the shared Submitter, so concurrent
// users never race over it.
func NewWorkerSubmitter(submitter *Submitter, taskID string, expectedOutput ResultID, taskOutputs *TaskOutputMap, resultForParent bool) *WorkerSubmitter {
	return &WorkerSubmitter{
		Submitter:       submitter,
		taskID:          taskID,
		expectedOutput:  expectedOutput,
		taskOutputs:     taskOutputs,
		resultForParent: resultForParent,
		log:             logger.GetLogger("grid", "WorkerSubmitter"),
	}
}

// TaskID implements MethodContext.
func (w *WorkerSubmitter) TaskID() string { return w.taskID }

// Submit implements MethodContext: submit one child task, translating any
// task-id-shaped dependency and applying the result-for-parent override.
func (w *WorkerSubmitter) Submit(req TaskRequest) (*TaskResult, error) {
	results, err := w.SubmitWithDependencies(context.Background(), []TaskRequest{req}, nil)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// SubmitWithDependencies overrides Submitter.SubmitWithDependencies to
// translate task-id dependencies via taskOutputs and, when resultForParent
// is set, force every request's result id to the parent's expected output
// (valid only for single-request, single-chunk calls -- the pattern exists
// for a task producing exactly its parent's output, not for fan-out).
func (w *WorkerSubmitter) SubmitWithDependencies(ctx context.Context, reqs []TaskRequest, opts *TaskOptions) ([]TaskResult, error) {
	translated := make([]TaskRequest, len(reqs))
	for i, req := range reqs {
		deps, err := w.translateDependencies(req.Dependencies)
		if err != nil {
			return nil, err
		}
		req.Dependencies = deps
		if w.resultForParent {
			req.ResultID = w.expectedOutput
		}
		translated[i] = req
	}
	return w.Submitter.submitWithDependencies(ctx, translated, opts, func(taskID string, resultID ResultID) {
		w.taskOutputs.Record(taskID, resultID)
	})
}

// translateDependencies resolves every worker-side dependency -- always a
// sibling task id, never an already-resolved result id -- via taskOutputs.
func (w *WorkerSubmitter) translateDependencies(deps []ResultID) ([]ResultID, error) {
	if len(deps) == 0 {
		return deps, nil
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = string(d)
	}
	resolved, err := w.taskOutputs.Translate(ids)
	if err != nil {
		w.log.Warn("dependency translation failed",
			logger.String("taskID", w.taskID),
			logger.Error(err),
			logger.String("taskOutputs", w.taskOutputs.DebugTree()))
		return nil, err
	}
	return resolved, nil
}

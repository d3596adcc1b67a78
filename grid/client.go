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
	"time"

	"google.golang.org/grpc"

	"github.com/gridmesh/sdk/internal/chanpool"
	"github.com/gridmesh/sdk/pkg/config"
	"github.com/gridmesh/sdk/pkg/logger"
	"github.com/gridmesh/sdk/pkg/metrics"
)

// Client is the top-level handle a caller constructs once per session: it
// owns the channel pool, the Submitter, the ResultWaiter, the
// DispatcherLoop and the ResultRegistry, and exposes the spec's full
// caller surface over them.
type Client struct {
	cfg     *config.Config
	session *SessionContext

	pool       *chanpool.Pool
	submitter  *Submitter
	waiter     *ResultWaiter
	dispatcher *DispatcherLoop
	registry   *ResultRegistry

	log *logger.Logger
}

// Dial connects to cfg.Endpoint, creates a new session with defaultOptions,
// and wires up the submission/result/dispatch pipeline. The returned
// Client owns everything it wires and must be Closed.
func Dial(ctx context.Context, cfg *config.Config, defaultOptions TaskOptions) (*Client, error) {
	dialer := chanpool.DefaultDialer(grpc.WithDefaultCallOptions(grpc.UseCompressor(compressorNameFor(defaultOptions.EngineType))))
	pool := chanpool.New([]string{cfg.Endpoint}, cfg.MaxParallelChannels, dialer, metrics.NewChannelPoolStatistics())

	sessions := NewGRPCSessionsClient(pool, defaultOptions.MaxRetries, 2*time.Second)
	results := NewGRPCResultsClient(pool, defaultOptions.MaxRetries, 2*time.Second)
	tasks := NewGRPCTasksClient(pool, defaultOptions.MaxRetries, 2*time.Second)

	session, err := CreateSession(ctx, sessions, defaultOptions)
	if err != nil {
		pool.Stop()
		return nil, err
	}

	return newClient(cfg, session, pool, results, tasks), nil
}

// Open reattaches to an existing session by id instead of creating a new
// one, otherwise wiring the pipeline identically to Dial. engine must match
// the engine type the session was created with, since it picks the
// transport's compression codec before the server ever confirms it.
func Open(ctx context.Context, cfg *config.Config, sessionID string, engine EngineType) (*Client, error) {
	dialer := chanpool.DefaultDialer(grpc.WithDefaultCallOptions(grpc.UseCompressor(compressorNameFor(engine))))
	pool := chanpool.New([]string{cfg.Endpoint}, cfg.MaxParallelChannels, dialer, metrics.NewChannelPoolStatistics())

	sessions := NewGRPCSessionsClient(pool, 5, 2*time.Second)
	results := NewGRPCResultsClient(pool, 5, 2*time.Second)
	tasks := NewGRPCTasksClient(pool, 5, 2*time.Second)

	session, err := OpenSession(ctx, sessions, sessionID)
	if err != nil {
		pool.Stop()
		return nil, err
	}

	return newClient(cfg, session, pool, results, tasks), nil
}

func newClient(cfg *config.Config, session *SessionContext, pool *chanpool.Pool, results ResultsClient, tasks TasksClient) *Client {
	registry := NewResultRegistry()
	submitter := NewSubmitter(session, results, tasks, SubmitterConfig{
		ChunkSize:      cfg.ChunkSubmitSize,
		MaxParallel:    cfg.MaxParallelChannels,
		DefaultOptions: session.DefaultTaskOptions,
	})
	dispatcher := NewDispatcherLoop(session, results, registry, cfg.MaxParallelChannels)
	dispatcher.Run()

	return &Client{
		cfg:        cfg,
		session:    session,
		pool:       pool,
		submitter:  submitter,
		waiter:     NewResultWaiter(session, results),
		dispatcher: dispatcher,
		registry:   registry,
		log:        logger.GetLogger("grid", "Client"),
	}
}

// Close stops the dispatcher and submitter worker pools, purges the
// registry, and tears down the channel pool. Outstanding async handlers are
// not invoked.
func (c *Client) Close() {
	c.dispatcher.Stop()
	c.registry.Purge()
	c.submitter.Stop()
	c.pool.Stop()
}

// SessionID returns the session this Client is scoped to.
func (c *Client) SessionID() string { return c.session.ID }

// SubmitTask submits one task with no dependencies, delivering nothing
// asynchronously -- the caller retrieves its result with GetResult.
func (c *Client) SubmitTask(ctx context.Context, payload []byte) (string, error) {
	result, err := c.submitter.SubmitTask(ctx, Payload(payload))
	if err != nil {
		return "", err
	}
	return result.TaskID, nil
}

// SubmitTaskWithDependencies submits one task depending on the results of
// dependencyTaskIDs (resolved through GetResultIdsForTasks before
// submission, since the top-level Client -- unlike WorkerSubmitter -- has
// no TaskOutputMap of its own to translate through).
func (c *Client) SubmitTaskWithDependencies(ctx context.Context, payload []byte, dependencyTaskIDs []string) (string, error) {
	taskIDs, err := c.SubmitTasksWithDependencies(ctx, [][]byte{payload}, [][]string{dependencyTaskIDs}, false)
	if err != nil {
		return "", err
	}
	return taskIDs[0], nil
}

// SubmitTasks submits payloads with no dependencies, returning their task
// ids in order.
func (c *Client) SubmitTasks(ctx context.Context, payloads [][]byte) ([]string, error) {
	deps := make([][]string, len(payloads))
	return c.SubmitTasksWithDependencies(ctx, payloads, deps, false)
}

// SubmitTasksWithDependencies submits one task per (payload, dependencies)
// pair. resultForParent is accepted for interface symmetry with
// WorkerSubmitter but has no effect here -- the pattern only makes sense
// inside a running task, which is what WorkerSubmitter is for.
func (c *Client) SubmitTasksWithDependencies(ctx context.Context, payloads [][]byte, dependencyTaskIDs [][]string, resultForParent bool) ([]string, error) {
	reqs := make([]TaskRequest, len(payloads))
	for i, payload := range payloads {
		deps, err := c.resolveDependencies(ctx, dependencyTaskIDs[i])
		if err != nil {
			return nil, err
		}
		reqs[i] = TaskRequest{Payload: payload, Dependencies: deps}
	}

	results, err := c.submitter.SubmitWithDependencies(ctx, reqs, nil)
	if err != nil {
		return nil, err
	}
	taskIDs := make([]string, len(results))
	for i, r := range results {
		taskIDs[i] = r.TaskID
	}
	return taskIDs, nil
}

func (c *Client) resolveDependencies(ctx context.Context, taskIDs []string) ([]ResultID, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	byTaskID, err := c.waiter.GetResultIdsForTasks(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	out := make([]ResultID, len(taskIDs))
	for i, id := range taskIDs {
		rid, ok := byTaskID[id]
		if !ok {
			return nil, DependencyUnknown(id)
		}
		out[i] = rid
	}
	return out, nil
}

// SubmitTasksWithDependenciesAsync runs SubmitTasksWithDependencies on its
// own goroutine, registering handler against every produced task's result
// id so the DispatcherLoop delivers it once ready.
func (c *Client) SubmitTasksWithDependenciesAsync(ctx context.Context, payloads [][]byte, dependencyTaskIDs [][]string, resultForParent bool, handler Handler) {
	go func() {
		reqs := make([]TaskRequest, len(payloads))
		for i, payload := range payloads {
			deps, err := c.resolveDependencies(ctx, dependencyTaskIDs[i])
			if err != nil {
				if handler.OnError != nil {
					handler.OnError(err, "")
				}
				return
			}
			reqs[i] = TaskRequest{Payload: payload, Dependencies: deps}
		}

		results, err := c.submitter.SubmitWithDependencies(ctx, reqs, nil)
		if err != nil {
			if handler.OnError != nil {
				handler.OnError(err, "")
			}
			return
		}
		for _, r := range results {
			c.registry.Register(r.ResultID, r.TaskID, handler)
		}
	}()
}

// WaitForTasksCompletion blocks until every task id's result is terminal.
func (c *Client) WaitForTasksCompletion(ctx context.Context, taskIDs []string) error {
	byTaskID, err := c.waiter.GetResultIdsForTasks(ctx, taskIDs)
	if err != nil {
		return err
	}
	ids := make([]ResultID, 0, len(byTaskID))
	for _, rid := range byTaskID {
		ids = append(ids, rid)
	}
	return c.waiter.WaitForReady(ctx, ids)
}

// GetResult blocks until taskID's result is ready and returns its bytes.
func (c *Client) GetResult(ctx context.Context, taskID string) ([]byte, error) {
	return c.waiter.GetResult(ctx, taskID)
}

// GetResults is GetResult fanned out over taskIDs, aggregating any
// per-task failures into a ClientResults naming the first failed id as the
// primary cause.
func (c *Client) GetResults(ctx context.Context, taskIDs []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(taskIDs))
	failures := NewClientResults()
	for _, taskID := range taskIDs {
		data, err := c.GetResult(ctx, taskID)
		if err != nil {
			failures.Add(taskID, err)
			continue
		}
		out[taskID] = data
	}
	return out, failures.ErrorOrNil()
}

// TryGetResult returns taskID's bytes if ready, or (nil, nil) if not --
// never an error for the not-ready case, per the spec's TryGet* contract.
func (c *Client) TryGetResult(ctx context.Context, taskID string) ([]byte, error) {
	byTaskID, err := c.waiter.GetResultIdsForTasks(ctx, []string{taskID})
	if err != nil {
		return nil, err
	}
	resultID, ok := byTaskID[taskID]
	if !ok {
		return nil, nil
	}
	data, _, err := downloadResult(ctx, c.waiter.results, c.session.ID, resultID)
	return data, err
}

// GetTaskStatus reports the server-side status of each task id.
func (c *Client) GetTaskStatus(ctx context.Context, taskIDs []string) ([]GetTaskStatusReply, error) {
	return c.submitter.tasks.GetTaskStatus(ctx, taskIDs)
}

// GetTaskOutputInfo reports the result ids taskID produced.
func (c *Client) GetTaskOutputInfo(ctx context.Context, taskID string) (*TaskOutputInfo, error) {
	return c.submitter.tasks.TryGetTaskOutput(ctx, taskID)
}

// CreateResultsMetadata allocates one named result slot per entry of names,
// returning the server-assigned id for each.
func (c *Client) CreateResultsMetadata(ctx context.Context, names []string) (map[string]ResultID, error) {
	reply, err := c.waiter.results.CreateResultsMetadata(ctx, &CreateResultsMetadataRequest{
		SessionID: c.session.ID,
		Names:     names,
	})
	if err != nil {
		return nil, SubmissionExhausted("CreateResultsMetadata", err)
	}
	return reply.ByName, nil
}

// NewWorkerSubmitter returns a WorkerSubmitter scoped to the task currently
// executing (taskID, whose own expected output is expectedOutput),
// recording every child task it creates into taskOutputs.
func (c *Client) NewWorkerSubmitter(taskID string, expectedOutput ResultID, taskOutputs *TaskOutputMap, resultForParent bool) *WorkerSubmitter {
	return NewWorkerSubmitter(c.submitter, taskID, expectedOutput, taskOutputs, resultForParent)
}

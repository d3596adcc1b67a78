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
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gridmesh/sdk/internal/concurrent"
	"github.com/gridmesh/sdk/pkg/logger"
	"github.com/gridmesh/sdk/pkg/metrics"
)

const taskCreationSubChunkSize = 100

// SubmitterConfig bounds one Submitter's behavior.
type SubmitterConfig struct {
	ChunkSize      int // default 500
	MaxParallel    int // default 4 -- the upload fan-out width within a chunk
	DefaultOptions TaskOptions
}

func (c SubmitterConfig) withDefaults() SubmitterConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	return c
}

// Submitter runs the chunked submission pipeline: allocate result ids,
// upload payloads (small inline, large as addressed blobs), then create
// tasks referencing them.
type Submitter struct {
	session *SessionContext
	results ResultsClient
	tasks   TasksClient
	cfg     SubmitterConfig

	pool       concurrent.Pool
	statistics *metrics.SubmitterStatistics
	log        *logger.Logger
}

// NewSubmitter creates a Submitter bound to session, issuing RPCs through
// results/tasks.
func NewSubmitter(session *SessionContext, results ResultsClient, tasks TasksClient, cfg SubmitterConfig) *Submitter {
	cfg = cfg.withDefaults()
	stats := metrics.NewSubmitterStatistics()
	return &Submitter{
		session:    session,
		results:    results,
		tasks:      tasks,
		cfg:        cfg,
		pool:       concurrent.NewPool("submitter-upload", cfg.MaxParallel, 30*time.Second, concurrentStatistics("submitter-upload")),
		statistics: stats,
		log:        logger.GetLogger("grid", "Submitter"),
	}
}

func concurrentStatistics(name string) *concurrent.Statistics {
	return concurrent.NewStatistics(name)
}

// Stop releases the Submitter's upload worker pool.
func (s *Submitter) Stop() {
	s.pool.Stop()
}

// SubmitTask is SubmitWithDependencies([(payload, nil)]).first.
func (s *Submitter) SubmitTask(ctx context.Context, payload Payload) (*TaskResult, error) {
	results, err := s.SubmitWithDependencies(ctx, []TaskRequest{{Payload: payload}}, nil)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// SubmitTaskWithDependencies is SubmitWithDependencies([(payload, deps)]).first.
func (s *Submitter) SubmitTaskWithDependencies(ctx context.Context, payload Payload, deps []ResultID) (*TaskResult, error) {
	results, err := s.SubmitWithDependencies(ctx, []TaskRequest{{Payload: payload, Dependencies: deps}}, nil)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// SubmitWithDependencies chunks reqs, processing each chunk as one logical
// transaction. opts, if nil, falls back to the session's default options.
// The returned slice preserves reqs' order across chunk boundaries.
func (s *Submitter) SubmitWithDependencies(ctx context.Context, reqs []TaskRequest, opts *TaskOptions) ([]TaskResult, error) {
	return s.submitWithDependencies(ctx, reqs, opts, nil)
}

// submitWithDependencies is SubmitWithDependencies plus an optional
// onTaskCreated callback, invoked for every (taskID, resultID) pair a
// sub-chunk's SubmitTasks call produces. Threaded as a parameter rather
// than stored on Submitter so WorkerSubmitter instances wrapping the same
// underlying Submitter never race over which callback is active.
func (s *Submitter) submitWithDependencies(ctx context.Context, reqs []TaskRequest, opts *TaskOptions, onTaskCreated func(taskID string, resultID ResultID)) ([]TaskResult, error) {
	options := s.session.DefaultTaskOptions
	if opts != nil {
		options = opts.Clone()
	}

	results := make([]TaskResult, 0, len(reqs))
	for start := 0; start < len(reqs); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(reqs) {
			end = len(reqs)
		}
		chunkResults, err := s.submitChunk(ctx, reqs[start:end], options, onTaskCreated)
		if err != nil {
			return nil, err
		}
		results = append(results, chunkResults...)
		s.statistics.ChunksSubmitted.Incr()
	}
	return results, nil
}

// taskDescriptor is one chunk entry's resolved submission state.
type taskDescriptor struct {
	req         TaskRequest
	large       bool
	resultID    ResultID // bound once allocation/upload completes
	payloadID   ResultID
	uploadErr   error
}

func (s *Submitter) submitChunk(ctx context.Context, chunk []TaskRequest, options TaskOptions, onTaskCreated func(taskID string, resultID ResultID)) ([]TaskResult, error) {
	if options.EngineType.usesLegacyStreaming() {
		return s.submitChunkLegacy(ctx, chunk, options, onTaskCreated)
	}

	chunkMaxSize := s.session.ChunkMaxSize()
	if chunkMaxSize <= 0 {
		chunkMaxSize = 1 << 20 // 1 MiB fallback when GetServiceConfiguration was never called
	}

	descriptors := make([]*taskDescriptor, len(chunk))
	var needResultSlot, needContainerSlot []int
	for i, req := range chunk {
		d := &taskDescriptor{req: req, large: req.Payload.sizeClass(chunkMaxSize) == payloadLarge}
		descriptors[i] = d
		if req.ResultID != "" {
			d.resultID = req.ResultID
		} else {
			needResultSlot = append(needResultSlot, i)
		}
		if d.large {
			needContainerSlot = append(needContainerSlot, i)
		}
	}

	if err := s.allocateResultIDs(ctx, descriptors, needResultSlot, needContainerSlot); err != nil {
		return nil, err
	}

	if err := s.uploadPayloads(ctx, descriptors); err != nil {
		return nil, err
	}

	return s.createTasks(ctx, descriptors, options, onTaskCreated)
}

// submitChunkLegacy is submitChunk's counterpart for the Symphony/
// DataSynapse engine types: instead of allocating upload slots and
// creating tasks in two separate RPC families, it opens one CreateLargeTasks
// bidirectional stream per chunk and writes each task's header and payload
// onto it directly, serialized through a legacyUploader. Result ids are
// still allocated up front through CreateResultsMetadata, exactly as the
// modern path does for tasks the caller didn't supply one for -- the two
// submission modes only diverge in how the payload and task creation
// travel over the wire, not in how output slots are named.
func (s *Submitter) submitChunkLegacy(ctx context.Context, chunk []TaskRequest, options TaskOptions, onTaskCreated func(taskID string, resultID ResultID)) ([]TaskResult, error) {
	descriptors := make([]*taskDescriptor, len(chunk))
	var needResultSlot []int
	for i, req := range chunk {
		d := &taskDescriptor{req: req}
		descriptors[i] = d
		if req.ResultID != "" {
			d.resultID = req.ResultID
		} else {
			needResultSlot = append(needResultSlot, i)
		}
	}

	if err := s.allocateResultIDs(ctx, descriptors, needResultSlot, nil); err != nil {
		return nil, err
	}

	stream, err := s.tasks.OpenLargeTaskStream(ctx, &CreateLargeTasksInit{
		SessionID:   s.session.ID,
		TaskOptions: options,
	})
	if err != nil {
		return nil, SubmissionExhausted("OpenLargeTaskStream", err)
	}

	reply, err := newLegacyUploader(stream).submit(descriptors)
	if err != nil {
		return nil, SubmissionExhausted("CreateLargeTasks", err)
	}
	if len(reply.Entries) != len(descriptors) {
		return nil, newErrorf(KindTransportFatal, "CreateLargeTasks returned %d entries, wanted %d", len(reply.Entries), len(descriptors))
	}

	results := make([]TaskResult, 0, len(reply.Entries))
	for _, entry := range reply.Entries {
		if onTaskCreated != nil {
			onTaskCreated(entry.TaskID, entry.ExpectedOutputID)
		}
		results = append(results, TaskResult{TaskID: entry.TaskID, ResultID: entry.ExpectedOutputID})
		s.statistics.TasksSubmitted.Incr()
	}
	return results, nil
}

// allocateResultIDs issues one CreateResultsMetadata call for every slot
// the chunk needs: a result id for tasks the caller didn't name one for,
// plus a container id for every large payload's addressable blob.
func (s *Submitter) allocateResultIDs(ctx context.Context, descriptors []*taskDescriptor, needResultSlot, needContainerSlot []int) error {
	total := len(needResultSlot) + len(needContainerSlot)
	if total == 0 {
		return nil
	}
	reply, err := s.results.CreateResultsMetadata(ctx, &CreateResultsMetadataRequest{
		SessionID: s.session.ID,
		Count:     total,
	})
	if err != nil {
		return SubmissionExhausted("CreateResultsMetadata", err)
	}
	if len(reply.ResultIDs) != total {
		return newErrorf(KindTransportFatal, "CreateResultsMetadata returned %d ids, wanted %d", len(reply.ResultIDs), total)
	}

	ids := reply.ResultIDs
	for _, idx := range needResultSlot {
		descriptors[idx].resultID = ids[0]
		ids = ids[1:]
	}
	for _, idx := range needContainerSlot {
		descriptors[idx].payloadID = ids[0]
		ids = ids[1:]
	}
	return nil
}

// uploadPayloads fans small CreateResults calls and large UploadResultData
// calls out across the Submitter's bounded worker pool, joining on a
// WaitGroup before returning.
func (s *Submitter) uploadPayloads(ctx context.Context, descriptors []*taskDescriptor) error {
	var wg sync.WaitGroup
	for _, d := range descriptors {
		d := d
		wg.Add(1)
		accepted := s.pool.Submit(ctx, concurrent.NewTask(func() {
			defer wg.Done()
			if d.large {
				d.uploadErr = s.results.UploadResultData(ctx, &UploadResultDataRequest{
					SessionID: s.session.ID,
					ResultID:  d.payloadID,
					Data:      d.req.Payload,
				})
				if d.uploadErr != nil {
					d.uploadErr = SubmissionExhausted("UploadResultData", d.uploadErr)
				} else {
					s.statistics.LargePayloadUploads.Incr()
				}
				return
			}
			reply, err := s.results.CreateResults(ctx, &CreateResultsRequest{
				SessionID: s.session.ID,
				Data:      [][]byte{d.req.Payload},
			})
			if err != nil {
				d.uploadErr = SubmissionExhausted("CreateResults", err)
				return
			}
			d.payloadID = reply.ResultIDs[0]
			s.statistics.SmallPayloadUploads.Incr()
		}, func(panicErr error) {
			d.uploadErr = panicErr
		}))
		if !accepted {
			// the pool never ran fn or onPanic for this task -- account for
			// the WaitGroup ourselves so Wait below can't block forever.
			d.uploadErr = SubmissionExhausted("upload", ctx.Err())
			wg.Done()
		}
	}
	wg.Wait()

	// a payload upload that fails definitively drops that task from the
	// chunk (createTasks filters it out below); its result id slot is
	// still consumed.
	for _, d := range descriptors {
		if d.uploadErr != nil {
			s.log.Warn("dropping task after upload failure",
				logger.String("resultID", string(d.resultID)),
				logger.String("payloadSize", humanize.Bytes(uint64(len(d.req.Payload)))),
				logger.Error(d.uploadErr))
			s.statistics.TasksDropped.Incr()
		}
	}
	return nil
}

// createTasks groups descriptors into sub-chunks of 100 and issues one
// SubmitTasks call per sub-chunk, preserving descriptor order in the
// returned results.
func (s *Submitter) createTasks(ctx context.Context, descriptors []*taskDescriptor, options TaskOptions, onTaskCreated func(taskID string, resultID ResultID)) ([]TaskResult, error) {
	live := make([]*taskDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d != nil && (d.uploadErr == nil) {
			live = append(live, d)
		}
	}

	results := make([]TaskResult, 0, len(live))
	for start := 0; start < len(live); start += taskCreationSubChunkSize {
		end := start + taskCreationSubChunkSize
		if end > len(live) {
			end = len(live)
		}
		sub := live[start:end]

		creations := make([]TaskCreation, len(sub))
		for i, d := range sub {
			creations[i] = TaskCreation{
				PayloadID:          d.payloadID,
				Dependencies:       d.req.Dependencies,
				ExpectedOutputKeys: []ResultID{d.resultID},
				Options:            d.req.Options,
			}
		}

		reply, err := s.tasks.SubmitTasks(ctx, &SubmitTasksRequest{
			SessionID:   s.session.ID,
			TaskOptions: options,
			Tasks:       creations,
		})
		if err != nil {
			return nil, SubmissionExhausted("SubmitTasks", err)
		}
		if len(reply.Entries) != len(sub) {
			return nil, newErrorf(KindTransportFatal, "SubmitTasks returned %d entries, wanted %d", len(reply.Entries), len(sub))
		}

		for _, entry := range reply.Entries {
			if onTaskCreated != nil {
				onTaskCreated(entry.TaskID, entry.ExpectedOutputID)
			}
			results = append(results, TaskResult{TaskID: entry.TaskID, ResultID: entry.ExpectedOutputID})
			s.statistics.TasksSubmitted.Incr()
		}
	}
	return results, nil
}

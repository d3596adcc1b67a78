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
	"fmt"
	"io"
	"sync"
)

// fakeControlPlane is an in-memory stand-in for the whole Sessions/
// Results/Tasks surface, sharing one state so a SubmitTasks-created task id
// resolves through GetResultIds the same way the real server would.
type fakeControlPlane struct {
	mu       sync.Mutex
	nextID   int
	data     map[ResultID][]byte
	status   map[ResultID]ServerResultStatus
	streams  map[ResultID][]*ResultChunk
	taskRIDs map[string][]ResultID

	failCreateResultsMetadata error
	failUploadResultData      error
	failCreateResults         error
	failWaitForCompletion     error
	failListResults           error
	failTryGetResultStream    error
	failSubmitTasks           error
	failOpenLargeTaskStream   error
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		data:     map[ResultID][]byte{},
		status:   map[ResultID]ServerResultStatus{},
		streams:  map[ResultID][]*ResultChunk{},
		taskRIDs: map[string][]ResultID{},
	}
}

func (f *fakeControlPlane) allocID() ResultID {
	f.nextID++
	return ResultID(fmt.Sprintf("result-%d", f.nextID))
}

// --- ResultsClient ---

func (f *fakeControlPlane) CreateResultsMetadata(ctx context.Context, req *CreateResultsMetadataRequest) (*CreateResultsMetadataReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateResultsMetadata != nil {
		return nil, f.failCreateResultsMetadata
	}
	reply := &CreateResultsMetadataReply{ByName: map[string]ResultID{}}
	if len(req.Names) > 0 {
		for _, name := range req.Names {
			id := f.allocID()
			f.status[id] = ServerStatusCreated
			reply.ByName[name] = id
			reply.ResultIDs = append(reply.ResultIDs, id)
		}
		return reply, nil
	}
	for i := 0; i < req.Count; i++ {
		id := f.allocID()
		f.status[id] = ServerStatusCreated
		reply.ResultIDs = append(reply.ResultIDs, id)
	}
	return reply, nil
}

func (f *fakeControlPlane) CreateResults(ctx context.Context, req *CreateResultsRequest) (*CreateResultsReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateResults != nil {
		return nil, f.failCreateResults
	}
	reply := &CreateResultsReply{}
	for _, d := range req.Data {
		id := f.allocID()
		f.data[id] = d
		f.status[id] = ServerStatusCompleted
		reply.ResultIDs = append(reply.ResultIDs, id)
	}
	return reply, nil
}

func (f *fakeControlPlane) UploadResultData(ctx context.Context, req *UploadResultDataRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploadResultData != nil {
		return f.failUploadResultData
	}
	f.data[req.ResultID] = req.Data
	f.status[req.ResultID] = ServerStatusCompleted
	return nil
}

func (f *fakeControlPlane) GetResultIds(ctx context.Context, req *GetResultIdsRequest) (*GetResultIdsReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := &GetResultIdsReply{}
	for _, taskID := range req.TaskIDs {
		reply.Entries = append(reply.Entries, TaskResultIds{TaskID: taskID, ResultIDs: f.taskRIDs[taskID]})
	}
	return reply, nil
}

func (f *fakeControlPlane) ListResults(ctx context.Context, req *ListResultsRequest) (*ListResultsReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListResults != nil {
		return nil, f.failListResults
	}
	reply := &ListResultsReply{}
	for _, id := range req.ResultIDs {
		status, ok := f.status[id]
		if !ok {
			continue
		}
		reply.Results = append(reply.Results, ResultListing{ResultID: id, Status: status})
	}
	return reply, nil
}

func (f *fakeControlPlane) WaitForCompletion(ctx context.Context, req *WaitForCompletionRequest) (*WaitForCompletionReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWaitForCompletion != nil {
		return nil, f.failWaitForCompletion
	}
	reply := &WaitForCompletionReply{Statuses: map[ResultID]ServerResultStatus{}}
	for _, id := range req.ResultIDs {
		reply.Statuses[id] = f.status[id]
	}
	return reply, nil
}

func (f *fakeControlPlane) TryGetResultStream(ctx context.Context, req *TryGetResultStreamRequest) (ResultStreamReceiver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTryGetResultStream != nil {
		return nil, f.failTryGetResultStream
	}
	status := f.status[req.ResultID]
	if status == ServerStatusCreated {
		return nil, ResultNotReady(string(req.ResultID))
	}
	if chunks, ok := f.streams[req.ResultID]; ok {
		return &fakeStreamReceiver{chunks: chunks}, nil
	}
	if status == ServerStatusAborted {
		return &fakeStreamReceiver{chunks: []*ResultChunk{{Kind: ChunkError, ErrorDetails: []string{"aborted"}}}}, nil
	}
	data := f.data[req.ResultID]
	return &fakeStreamReceiver{chunks: []*ResultChunk{{Kind: ChunkData, Data: data, DataComplete: true}}}, nil
}

// --- TasksClient ---

func (f *fakeControlPlane) SubmitTasks(ctx context.Context, req *SubmitTasksRequest) (*SubmitTasksReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubmitTasks != nil {
		return nil, f.failSubmitTasks
	}
	reply := &SubmitTasksReply{}
	for _, t := range req.Tasks {
		f.nextID++
		taskID := fmt.Sprintf("task-%d", f.nextID)
		var out ResultID
		if len(t.ExpectedOutputKeys) > 0 {
			out = t.ExpectedOutputKeys[0]
			f.taskRIDs[taskID] = t.ExpectedOutputKeys
			f.status[out] = ServerStatusCompleted
			f.data[out] = f.data[t.PayloadID]
		}
		reply.Entries = append(reply.Entries, SubmitTasksReplyEntry{TaskID: taskID, ExpectedOutputID: out})
	}
	return reply, nil
}

func (f *fakeControlPlane) GetTaskStatus(ctx context.Context, taskIDs []string) ([]GetTaskStatusReply, error) {
	out := make([]GetTaskStatusReply, 0, len(taskIDs))
	for _, id := range taskIDs {
		out = append(out, GetTaskStatusReply{TaskID: id, Status: "completed"})
	}
	return out, nil
}

func (f *fakeControlPlane) TryGetTaskOutput(ctx context.Context, taskID string) (*TaskOutputInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &TaskOutputInfo{TaskID: taskID, ResultIDs: f.taskRIDs[taskID]}, nil
}

func (f *fakeControlPlane) OpenLargeTaskStream(ctx context.Context, init *CreateLargeTasksInit) (LargeTaskStream, error) {
	if f.failOpenLargeTaskStream != nil {
		return nil, f.failOpenLargeTaskStream
	}
	return &fakeLargeTaskStream{cp: f}, nil
}

// fakeLargeTaskStream replays the legacyUploader's SendHeader/SendChunk
// pairs into the same shared control-plane state SubmitTasks uses, so a
// legacy-engine submission is indistinguishable from a modern one once it
// reaches GetResultIds/GetResult.
type fakeLargeTaskStream struct {
	cp      *fakeControlPlane
	pending *LargeTaskInitHeader
	entries []SubmitTasksReplyEntry
}

func (s *fakeLargeTaskStream) SendHeader(header *LargeTaskInitHeader) error {
	s.pending = header
	return nil
}

func (s *fakeLargeTaskStream) SendChunk(chunk *LargeTaskDataChunk) error {
	s.cp.mu.Lock()
	defer s.cp.mu.Unlock()

	s.cp.nextID++
	taskID := fmt.Sprintf("legacy-task-%d", s.cp.nextID)
	var out ResultID
	if s.pending != nil && len(s.pending.ExpectedOutputKeys) > 0 {
		out = s.pending.ExpectedOutputKeys[0]
		s.cp.taskRIDs[taskID] = s.pending.ExpectedOutputKeys
		s.cp.data[out] = chunk.Data
		s.cp.status[out] = ServerStatusCompleted
	}
	s.entries = append(s.entries, SubmitTasksReplyEntry{TaskID: taskID, ExpectedOutputID: out})
	s.pending = nil
	return nil
}

func (s *fakeLargeTaskStream) CloseAndRecv() (*CreateLargeTasksReply, error) {
	return &CreateLargeTasksReply{Entries: s.entries}, nil
}

// --- SessionsClient ---

func (f *fakeControlPlane) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionReply, error) {
	return &CreateSessionReply{SessionID: "session-1"}, nil
}

func (f *fakeControlPlane) GetSession(ctx context.Context, sessionID string) (*GetSessionReply, error) {
	return &GetSessionReply{SessionID: sessionID, Status: SessionRunning}, nil
}

func (f *fakeControlPlane) GetServiceConfiguration(ctx context.Context, sessionID string) (*ServiceConfiguration, error) {
	return &ServiceConfiguration{DataChunkMaxSize: 1 << 20}, nil
}

// fakeStreamReceiver replays a fixed slice of chunks, then io.EOF.
type fakeStreamReceiver struct {
	chunks []*ResultChunk
	idx    int
	closed bool
}

func (r *fakeStreamReceiver) Recv() (*ResultChunk, error) {
	if r.idx >= len(r.chunks) {
		return nil, io.EOF
	}
	c := r.chunks[r.idx]
	r.idx++
	return c, nil
}

func (r *fakeStreamReceiver) CloseSend() error {
	r.closed = true
	return nil
}

func newTestSession() *SessionContext {
	return &SessionContext{
		ID:                 "session-1",
		DefaultTaskOptions: DefaultTaskOptions(),
		status:             SessionRunning,
		chunkMaxSize:       1 << 20,
	}
}

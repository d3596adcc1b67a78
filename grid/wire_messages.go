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

// Package grid implements the client-side task submission and result
// retrieval core: chunked submission, the result waiter, the async
// dispatcher, and the session that owns them. Wire messages here are plain
// Go structs standing in for a generated protobuf client -- code
// generation from a .proto schema is out of scope for this module.
package grid

import "time"

// CreateSessionRequest is the payload of the CreateSession RPC.
type CreateSessionRequest struct {
	DefaultTaskOptions TaskOptions
	Partitions         []string
}

// CreateSessionReply is CreateSession's reply.
type CreateSessionReply struct {
	SessionID string
}

// SessionStatus is the lifecycle state of a server-side session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCancelled SessionStatus = "cancelled"
	SessionPurged    SessionStatus = "purged"
)

// GetSessionReply is GetSession's reply.
type GetSessionReply struct {
	SessionID string
	Status    SessionStatus
}

// ServiceConfiguration is GetServiceConfiguration's reply.
type ServiceConfiguration struct {
	DataChunkMaxSize int
}

// CreateResultsMetadataRequest allocates Count unnamed result slots, or,
// if Names is non-empty, one named slot per entry (Count is ignored then).
type CreateResultsMetadataRequest struct {
	SessionID string
	Count     int
	Names     []string
}

// CreateResultsMetadataReply returns the allocated ids, positionally bound
// to the request (or name-bound, when Names was used).
type CreateResultsMetadataReply struct {
	ResultIDs []ResultID
	ByName    map[string]ResultID
}

// CreateResultsRequest creates one result per inline data blob.
type CreateResultsRequest struct {
	SessionID string
	Data      [][]byte
}

// CreateResultsReply returns one result id per CreateResultsRequest.Data
// entry, in order.
type CreateResultsReply struct {
	ResultIDs []ResultID
}

// UploadResultDataRequest streams bytes into a previously-allocated
// metadata slot.
type UploadResultDataRequest struct {
	SessionID string
	ResultID  ResultID
	Data      []byte
}

// TaskCreation is one entry of a SubmitTasks call.
type TaskCreation struct {
	PayloadID          ResultID
	Dependencies       []ResultID
	ExpectedOutputKeys []ResultID
	Options            *TaskOptions
}

// SubmitTasksRequest creates a batch of tasks in one RPC.
type SubmitTasksRequest struct {
	SessionID   string
	TaskOptions TaskOptions
	Tasks       []TaskCreation
}

// SubmitTasksReplyEntry pairs a created task with its expected output id.
type SubmitTasksReplyEntry struct {
	TaskID           string
	ExpectedOutputID ResultID
}

// SubmitTasksReply is SubmitTasks's reply, ordered to match the request.
type SubmitTasksReply struct {
	Entries []SubmitTasksReplyEntry
}

// GetResultIdsRequest resolves task ids to their bound result ids.
type GetResultIdsRequest struct {
	TaskIDs []string
}

// TaskResultIds pairs one task id with the result ids it produced.
type TaskResultIds struct {
	TaskID    string
	ResultIDs []ResultID
}

// GetResultIdsReply is GetResultIds's reply.
type GetResultIdsReply struct {
	Entries []TaskResultIds
}

// ServerResultStatus is the server-reported lifecycle state of a result.
type ServerResultStatus string

const (
	ServerStatusCreated     ServerResultStatus = "created"
	ServerStatusCompleted   ServerResultStatus = "completed"
	ServerStatusAborted     ServerResultStatus = "aborted"
	ServerStatusUnspecified ServerResultStatus = "unspecified"
)

// ListResultsRequest filters results by id or session.
type ListResultsRequest struct {
	SessionID string
	ResultIDs []ResultID
}

// ResultListing is one entry of ListResults's reply.
type ResultListing struct {
	ResultID ResultID
	Status   ServerResultStatus
}

// ListResultsReply is ListResults's reply.
type ListResultsReply struct {
	Results []ResultListing
}

// WaitForCompletionRequest issues a server-side availability wait.
type WaitForCompletionRequest struct {
	ResultIDs               []ResultID
	StopOnFirstTaskError    bool
	StopOnFirstCancellation bool
}

// WaitForCompletionReply reports every id's terminal status once the wait
// returns.
type WaitForCompletionReply struct {
	Statuses map[ResultID]ServerResultStatus
}

// ResultChunkKind discriminates TryGetResultStream's message union.
type ResultChunkKind int

const (
	ChunkData ResultChunkKind = iota
	ChunkError
	ChunkNotCompletedTask
	ChunkNone
)

// ResultChunk is one message of the TryGetResultStream response stream.
type ResultChunk struct {
	Kind         ResultChunkKind
	Data         []byte
	DataComplete bool
	ErrorDetails []string
}

// TryGetResultStreamRequest opens a download stream for one result.
type TryGetResultStreamRequest struct {
	SessionID string
	ResultID  ResultID
}

// TaskStatus is the server-reported lifecycle state of a task.
type TaskStatus string

// GetTaskStatusReply pairs a task id with its status.
type GetTaskStatusReply struct {
	TaskID string
	Status TaskStatus
}

// TaskOutputInfo is TryGetTaskOutput's reply.
type TaskOutputInfo struct {
	TaskID    string
	ResultIDs []ResultID
}

// --- legacy streaming submission mode (CreateLargeTasks) ---

// LargeTaskInitHeader opens one task's descriptor on the CreateLargeTasks
// stream.
type LargeTaskInitHeader struct {
	Dependencies       []ResultID
	ExpectedOutputKeys []ResultID
	Options            *TaskOptions
}

// LargeTaskDataChunk is one payload chunk of the streaming upload; Complete
// marks the final chunk of the current task's payload.
type LargeTaskDataChunk struct {
	Data     []byte
	Complete bool
}

// CreateLargeTasksInit opens the stream with the session and shared
// defaults, mirroring the small-id mode's SubmitTasksRequest header.
type CreateLargeTasksInit struct {
	SessionID   string
	TaskOptions TaskOptions
}

// CreateLargeTasksReply mirrors SubmitTasksReply for the streaming path.
type CreateLargeTasksReply struct {
	Entries []SubmitTasksReplyEntry
}

// dialTimeout bounds how long a single RPC waits to establish its stream,
// independent of the caller's own deadline on the call itself.
const dialTimeout = 10 * time.Second

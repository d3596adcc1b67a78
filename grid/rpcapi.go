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

import "context"

//go:generate mockgen -source=./rpcapi.go -destination=./rpcapi_mock.go -package=grid

// SessionsClient is the subset of the control-plane surface SessionContext
// drives directly.
type SessionsClient interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionReply, error)
	GetSession(ctx context.Context, sessionID string) (*GetSessionReply, error)
	GetServiceConfiguration(ctx context.Context, sessionID string) (*ServiceConfiguration, error)
}

// ResultsClient is the subset of the control-plane surface the Submitter
// and ResultWaiter drive to allocate, upload, and fetch results.
type ResultsClient interface {
	CreateResultsMetadata(ctx context.Context, req *CreateResultsMetadataRequest) (*CreateResultsMetadataReply, error)
	CreateResults(ctx context.Context, req *CreateResultsRequest) (*CreateResultsReply, error)
	UploadResultData(ctx context.Context, req *UploadResultDataRequest) error
	GetResultIds(ctx context.Context, req *GetResultIdsRequest) (*GetResultIdsReply, error)
	ListResults(ctx context.Context, req *ListResultsRequest) (*ListResultsReply, error)
	WaitForCompletion(ctx context.Context, req *WaitForCompletionRequest) (*WaitForCompletionReply, error)
	TryGetResultStream(ctx context.Context, req *TryGetResultStreamRequest) (ResultStreamReceiver, error)
}

// ResultStreamReceiver is the receive-half of TryGetResultStream's
// server-streaming reply.
type ResultStreamReceiver interface {
	Recv() (*ResultChunk, error)
	CloseSend() error
}

// TasksClient is the subset of the control-plane surface used to create
// and inspect tasks.
type TasksClient interface {
	SubmitTasks(ctx context.Context, req *SubmitTasksRequest) (*SubmitTasksReply, error)
	GetTaskStatus(ctx context.Context, taskIDs []string) ([]GetTaskStatusReply, error)
	TryGetTaskOutput(ctx context.Context, taskID string) (*TaskOutputInfo, error)
	// OpenLargeTaskStream opens the legacy bidirectional submission stream
	// used by the Symphony/DataSynapse engine types.
	OpenLargeTaskStream(ctx context.Context, init *CreateLargeTasksInit) (LargeTaskStream, error)
}

// LargeTaskStream is the legacy streaming-upload submission mode's
// bidirectional RPC. Writes are not concurrency-safe -- callers must hold
// a process-wide lock around Send, per the spec's streaming-mode
// exclusion rule.
type LargeTaskStream interface {
	SendHeader(header *LargeTaskInitHeader) error
	SendChunk(chunk *LargeTaskDataChunk) error
	CloseAndRecv() (*CreateLargeTasksReply, error)
}

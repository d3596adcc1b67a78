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
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/gridmesh/sdk/internal/chanpool"
	"github.com/gridmesh/sdk/internal/retry"
)

// requestIDHeader carries a fresh client-generated request id on every RPC,
// so a log line on either side of the wire can be correlated regardless of
// how many retries it took.
const requestIDHeader = "x-gridmesh-request-id"

func withRequestID(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, requestIDHeader, uuid.New().String())
}

// service method paths. There is no .proto schema behind these -- jsonCodec
// marshals the wire_messages.go structs directly -- but the path strings
// still identify the RPC the way a generated stub's method name would.
const (
	methodCreateSession           = "/gridmesh.v1.Sessions/CreateSession"
	methodGetSession              = "/gridmesh.v1.Sessions/GetSession"
	methodGetServiceConfiguration = "/gridmesh.v1.Sessions/GetServiceConfiguration"
	methodCreateResultsMetadata   = "/gridmesh.v1.Results/CreateResultsMetadata"
	methodCreateResults           = "/gridmesh.v1.Results/CreateResults"
	methodUploadResultData        = "/gridmesh.v1.Results/UploadResultData"
	methodGetResultIds            = "/gridmesh.v1.Results/GetResultIds"
	methodListResults             = "/gridmesh.v1.Results/ListResults"
	methodWaitForCompletion       = "/gridmesh.v1.Results/WaitForCompletion"
	methodTryGetResultStream      = "/gridmesh.v1.Results/TryGetResultStream"
	methodSubmitTasks             = "/gridmesh.v1.Tasks/SubmitTasks"
	methodGetTaskStatus           = "/gridmesh.v1.Tasks/GetTaskStatus"
	methodTryGetTaskOutput        = "/gridmesh.v1.Tasks/TryGetTaskOutput"
	methodCreateLargeTasks        = "/gridmesh.v1.Tasks/CreateLargeTasks"
)

// retriableRPCKinds lists the kinds RetryHarness treats as retriable for
// every pipeline RPC, per the spec's propagation policy: transient
// transport faults, including their subkinds (derivedOk).
var retriableRPCKinds = []string{string(KindTransportTransient)}

// rpcTransport is the shared unary-call plumbing every generated-client
// stand-in below is built on: lease a channel, invoke, tag-and-drop it on
// failure, retry transient faults.
type rpcTransport struct {
	pool       *chanpool.Pool
	maxRetries int
	retryDelay time.Duration
}

func callOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

func (t *rpcTransport) invoke(ctx context.Context, method string, req, reply interface{}) error {
	retries := t.maxRetries
	if retries < 1 {
		retries = 1
	}
	return retry.Do(ctx, retries, t.retryDelay, retriableRPCKinds, true, func(ctx context.Context, _ int) error {
		err := t.pool.WithChannel(ctx, func(conn *grpc.ClientConn) error {
			return conn.Invoke(withRequestID(ctx), method, req, reply, callOptions()...)
		})
		if err != nil {
			return TransportError(err)
		}
		return nil
	})
}

// NewGRPCSessionsClient returns a SessionsClient issuing RPCs over pool.
func NewGRPCSessionsClient(pool *chanpool.Pool, maxRetries int, retryDelay time.Duration) SessionsClient {
	return &grpcSessionsClient{rpcTransport{pool: pool, maxRetries: maxRetries, retryDelay: retryDelay}}
}

type grpcSessionsClient struct{ rpcTransport }

func (c *grpcSessionsClient) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionReply, error) {
	reply := &CreateSessionReply{}
	if err := c.invoke(ctx, methodCreateSession, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcSessionsClient) GetSession(ctx context.Context, sessionID string) (*GetSessionReply, error) {
	reply := &GetSessionReply{}
	if err := c.invoke(ctx, methodGetSession, &struct{ SessionID string }{sessionID}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcSessionsClient) GetServiceConfiguration(ctx context.Context, sessionID string) (*ServiceConfiguration, error) {
	reply := &ServiceConfiguration{}
	if err := c.invoke(ctx, methodGetServiceConfiguration, &struct{ SessionID string }{sessionID}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// NewGRPCResultsClient returns a ResultsClient issuing RPCs over pool.
func NewGRPCResultsClient(pool *chanpool.Pool, maxRetries int, retryDelay time.Duration) ResultsClient {
	return &grpcResultsClient{rpcTransport{pool: pool, maxRetries: maxRetries, retryDelay: retryDelay}}
}

type grpcResultsClient struct{ rpcTransport }

func (c *grpcResultsClient) CreateResultsMetadata(ctx context.Context, req *CreateResultsMetadataRequest) (*CreateResultsMetadataReply, error) {
	reply := &CreateResultsMetadataReply{}
	if err := c.invoke(ctx, methodCreateResultsMetadata, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcResultsClient) CreateResults(ctx context.Context, req *CreateResultsRequest) (*CreateResultsReply, error) {
	reply := &CreateResultsReply{}
	if err := c.invoke(ctx, methodCreateResults, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcResultsClient) UploadResultData(ctx context.Context, req *UploadResultDataRequest) error {
	return c.invoke(ctx, methodUploadResultData, req, &struct{}{})
}

func (c *grpcResultsClient) GetResultIds(ctx context.Context, req *GetResultIdsRequest) (*GetResultIdsReply, error) {
	reply := &GetResultIdsReply{}
	if err := c.invoke(ctx, methodGetResultIds, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcResultsClient) ListResults(ctx context.Context, req *ListResultsRequest) (*ListResultsReply, error) {
	reply := &ListResultsReply{}
	if err := c.invoke(ctx, methodListResults, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcResultsClient) WaitForCompletion(ctx context.Context, req *WaitForCompletionRequest) (*WaitForCompletionReply, error) {
	reply := &WaitForCompletionReply{}
	if err := c.invoke(ctx, methodWaitForCompletion, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcResultsClient) TryGetResultStream(ctx context.Context, req *TryGetResultStreamRequest) (ResultStreamReceiver, error) {
	ch, err := c.pool.Lease(ctx)
	if err != nil {
		return nil, TransportError(err)
	}
	desc := &grpc.StreamDesc{StreamName: "TryGetResultStream", ServerStreams: true}
	stream, err := ch.Conn().NewStream(withRequestID(ctx), desc, methodTryGetResultStream, callOptions()...)
	if err != nil {
		ch.Fault()
		c.pool.Return(ch)
		return nil, TransportError(err)
	}
	if err := stream.SendMsg(req); err != nil {
		ch.Fault()
		c.pool.Return(ch)
		return nil, TransportError(err)
	}
	if err := stream.CloseSend(); err != nil {
		ch.Fault()
		c.pool.Return(ch)
		return nil, TransportError(err)
	}
	return &resultStreamReceiver{stream: stream, channel: ch, pool: c.pool}, nil
}

type resultStreamReceiver struct {
	stream  grpc.ClientStream
	channel *chanpool.Channel
	pool    *chanpool.Pool
	closed  bool
}

func (r *resultStreamReceiver) Recv() (*ResultChunk, error) {
	chunk := &ResultChunk{}
	if err := r.stream.RecvMsg(chunk); err != nil {
		if err != io.EOF {
			r.channel.Fault()
		}
		return nil, err
	}
	return chunk, nil
}

func (r *resultStreamReceiver) CloseSend() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.pool.Return(r.channel)
	return nil
}

// NewGRPCTasksClient returns a TasksClient issuing RPCs over pool.
func NewGRPCTasksClient(pool *chanpool.Pool, maxRetries int, retryDelay time.Duration) TasksClient {
	return &grpcTasksClient{rpcTransport{pool: pool, maxRetries: maxRetries, retryDelay: retryDelay}}
}

type grpcTasksClient struct{ rpcTransport }

func (c *grpcTasksClient) SubmitTasks(ctx context.Context, req *SubmitTasksRequest) (*SubmitTasksReply, error) {
	reply := &SubmitTasksReply{}
	if err := c.invoke(ctx, methodSubmitTasks, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcTasksClient) GetTaskStatus(ctx context.Context, taskIDs []string) ([]GetTaskStatusReply, error) {
	var reply []GetTaskStatusReply
	if err := c.invoke(ctx, methodGetTaskStatus, &struct{ TaskIDs []string }{taskIDs}, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *grpcTasksClient) TryGetTaskOutput(ctx context.Context, taskID string) (*TaskOutputInfo, error) {
	reply := &TaskOutputInfo{}
	if err := c.invoke(ctx, methodTryGetTaskOutput, &struct{ TaskID string }{taskID}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// OpenLargeTaskStream opens the legacy bidirectional submission stream.
// Per the spec's concurrency model, writes to this stream are not
// concurrency-safe: callers must serialize Send* calls with a process-wide
// lock, which is what submitter.go's legacy path does.
func (c *grpcTasksClient) OpenLargeTaskStream(ctx context.Context, init *CreateLargeTasksInit) (LargeTaskStream, error) {
	ch, err := c.pool.Lease(ctx)
	if err != nil {
		return nil, TransportError(err)
	}
	desc := &grpc.StreamDesc{StreamName: "CreateLargeTasks", ClientStreams: true, ServerStreams: false}
	stream, err := ch.Conn().NewStream(withRequestID(ctx), desc, methodCreateLargeTasks, callOptions()...)
	if err != nil {
		ch.Fault()
		c.pool.Return(ch)
		return nil, TransportError(err)
	}
	if err := stream.SendMsg(init); err != nil {
		ch.Fault()
		c.pool.Return(ch)
		return nil, TransportError(err)
	}
	return &largeTaskStream{stream: stream, channel: ch, pool: c.pool}, nil
}

type largeTaskStream struct {
	stream  grpc.ClientStream
	channel *chanpool.Channel
	pool    *chanpool.Pool
}

func (s *largeTaskStream) SendHeader(header *LargeTaskInitHeader) error {
	if err := s.stream.SendMsg(header); err != nil {
		s.channel.Fault()
		return TransportError(err)
	}
	return nil
}

func (s *largeTaskStream) SendChunk(chunk *LargeTaskDataChunk) error {
	if err := s.stream.SendMsg(chunk); err != nil {
		s.channel.Fault()
		return TransportError(err)
	}
	return nil
}

func (s *largeTaskStream) CloseAndRecv() (*CreateLargeTasksReply, error) {
	defer s.pool.Return(s.channel)
	if err := s.stream.CloseSend(); err != nil {
		s.channel.Fault()
		return nil, TransportError(err)
	}
	reply := &CreateLargeTasksReply{}
	if err := s.stream.RecvMsg(reply); err != nil {
		s.channel.Fault()
		return nil, TransportError(err)
	}
	return reply, nil
}

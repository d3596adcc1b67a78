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
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/gridmesh/sdk/pkg/logger"
	"github.com/gridmesh/sdk/pkg/metrics"
)

// ResultWaiter blocks a caller on result availability and downloads
// completed results, chunk by chunk, off the server's streaming RPC.
type ResultWaiter struct {
	session *SessionContext
	results ResultsClient

	statistics *metrics.ResultWaiterStatistics
	log        *logger.Logger
}

// NewResultWaiter creates a ResultWaiter bound to session, issuing RPCs
// through results.
func NewResultWaiter(session *SessionContext, results ResultsClient) *ResultWaiter {
	return &ResultWaiter{
		session:    session,
		results:    results,
		statistics: metrics.NewResultWaiterStatistics(),
		log:        logger.GetLogger("grid", "ResultWaiter"),
	}
}

// WaitForReady blocks until every id in resultIDs is terminal (ready or in
// one of the error statuses), or ctx is done. The wait itself runs
// server-side with stop-on-first-task-error and
// stop-on-first-task-cancellation both set, so one failing result ends the
// whole wait instead of polling the rest to completion first.
func (w *ResultWaiter) WaitForReady(ctx context.Context, resultIDs []ResultID) error {
	if len(resultIDs) == 0 {
		return nil
	}
	_, err := w.results.WaitForCompletion(ctx, &WaitForCompletionRequest{
		ResultIDs:               resultIDs,
		StopOnFirstTaskError:    true,
		StopOnFirstCancellation: true,
	})
	if err != nil {
		return SubmissionExhausted("WaitForCompletion", err)
	}
	w.statistics.WaitsIssued.Incr()
	return nil
}

// GetResult resolves taskID to its bound result id, waits for it to become
// ready, then downloads and reassembles its bytes. Returns ResultNotReady
// if taskID has no result id bound yet -- callers that want the
// not-ready-is-absence contract instead of an error should use
// Client.TryGetResult.
func (w *ResultWaiter) GetResult(ctx context.Context, taskID string) ([]byte, error) {
	reply, err := w.results.GetResultIds(ctx, &GetResultIdsRequest{TaskIDs: []string{taskID}})
	if err != nil {
		return nil, SubmissionExhausted("GetResultIds", err)
	}
	if len(reply.Entries) == 0 || len(reply.Entries[0].ResultIDs) == 0 {
		return nil, ResultNotReady(taskID)
	}
	resultID := reply.Entries[0].ResultIDs[0]

	if err := w.WaitForReady(ctx, []ResultID{resultID}); err != nil {
		return nil, err
	}
	return w.download(ctx, resultID)
}

// download runs the dataComplete chunk state machine described in the
// spec: bytes accumulate in order, dataComplete flips a boolean, and a data
// chunk arriving after dataComplete resets it -- the stream is corrupt but
// recoverable bytes keep accumulating; a stream that closes without a final
// dataComplete raises ResultIncomplete.
func (w *ResultWaiter) download(ctx context.Context, resultID ResultID) ([]byte, error) {
	data, errored, err := downloadResult(ctx, w.results, w.session.ID, resultID)
	if errored {
		w.statistics.ResultsErrored.Incr()
	}
	if err != nil {
		return nil, err
	}
	if data != nil {
		w.statistics.ResultsReady.Incr()
		w.log.Debug("result downloaded",
			logger.String("resultID", string(resultID)),
			logger.String("size", humanize.Bytes(uint64(len(data)))))
	}
	return data, nil
}

// downloadResult runs the dataComplete chunk state machine against a bare
// ResultsClient, shared by ResultWaiter and the DispatcherLoop so both
// observe identical download semantics. errored reports whether the result
// returned ResultInError (still returned as err, but called out separately
// so callers can drive their own error-specific accounting).
func downloadResult(ctx context.Context, results ResultsClient, sessionID string, resultID ResultID) (data []byte, errored bool, err error) {
	stream, err := results.TryGetResultStream(ctx, &TryGetResultStreamRequest{
		SessionID: sessionID,
		ResultID:  resultID,
	})
	if err != nil {
		if IsNotReady(err) {
			return nil, false, nil
		}
		return nil, false, SubmissionExhausted("TryGetResultStream", err)
	}
	defer stream.CloseSend()

	var buf bytes.Buffer
	dataComplete := false
	for {
		chunk, recvErr := stream.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if IsNotReady(recvErr) {
				return nil, false, nil
			}
			return nil, false, SubmissionExhausted("TryGetResultStream", recvErr)
		}
		switch chunk.Kind {
		case ChunkData:
			buf.Write(chunk.Data)
			dataComplete = chunk.DataComplete
		case ChunkError:
			return nil, true, ResultInError(string(resultID), chunk.ErrorDetails)
		case ChunkNotCompletedTask, ChunkNone:
			return nil, false, nil
		}
	}

	if !dataComplete {
		return nil, false, ResultIncomplete(string(resultID))
	}
	return buf.Bytes(), false, nil
}

// GetResultStatus classifies every id in ids against the server's reported
// status. Order within each returned partition matches ids' order. Callers
// holding task ids rather than result ids must resolve them through
// GetResultIdsForTasks first -- the wire format gives the two namespaces no
// distinguishing marker, so GetResultStatus itself only ever classifies
// result ids.
func (w *ResultWaiter) GetResultStatus(ctx context.Context, ids []ResultID) (*ResultStatusCollection, error) {
	listing, err := w.results.ListResults(ctx, &ListResultsRequest{
		SessionID: w.session.ID,
		ResultIDs: ids,
	})
	if err != nil {
		return nil, SubmissionExhausted("ListResults", err)
	}

	byID := make(map[ResultID]ServerResultStatus, len(listing.Results))
	for _, r := range listing.Results {
		byID[r.ResultID] = r.Status
	}

	collection := &ResultStatusCollection{}
	for _, id := range ids {
		status, known := byID[id]
		if !known {
			collection.Classify(id, StatusMissing)
			continue
		}
		switch status {
		case ServerStatusCreated:
			collection.Classify(id, StatusNotReady)
		case ServerStatusCompleted:
			collection.Classify(id, StatusReady)
		case ServerStatusAborted, ServerStatusUnspecified:
			collection.Classify(id, StatusResultError)
		default:
			collection.Classify(id, StatusMissing)
		}
	}
	return collection, nil
}

// GetResultIdsForTasks resolves each of taskIDs to its first bound result
// id, for callers that want to feed GetResultStatus with task-derived ids.
// A task with no recorded result id is omitted from the returned map.
func (w *ResultWaiter) GetResultIdsForTasks(ctx context.Context, taskIDs []string) (map[string]ResultID, error) {
	reply, err := w.results.GetResultIds(ctx, &GetResultIdsRequest{TaskIDs: taskIDs})
	if err != nil {
		return nil, SubmissionExhausted("GetResultIds", err)
	}
	out := make(map[string]ResultID, len(reply.Entries))
	for _, e := range reply.Entries {
		if len(e.ResultIDs) > 0 {
			out[e.TaskID] = e.ResultIDs[0]
		}
	}
	return out, nil
}

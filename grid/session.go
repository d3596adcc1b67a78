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

	"github.com/gridmesh/sdk/pkg/bootstrap"
	"github.com/gridmesh/sdk/pkg/logger"
)

// SessionContext is an opaque grouping of tasks with shared default
// options and partition. It is refused for operations unless its last
// observed status was running.
type SessionContext struct {
	ID                string
	DefaultTaskOptions TaskOptions
	status             SessionStatus
	chunkMaxSize       int

	log *logger.Logger
}

// CreateSession asks the control plane for a new session scoped to
// defaultOptions, deriving its partition list from
// defaultOptions.PartitionID per the spec's default-partition rule.
func CreateSession(ctx context.Context, client SessionsClient, defaultOptions TaskOptions) (*SessionContext, error) {
	bootstrap.TuneRuntime()

	reply, err := client.CreateSession(ctx, &CreateSessionRequest{
		DefaultTaskOptions: defaultOptions,
		Partitions:         defaultOptions.defaultPartitions(),
	})
	if err != nil {
		return nil, TransportError(err)
	}

	sc := &SessionContext{
		ID:                 reply.SessionID,
		DefaultTaskOptions: defaultOptions,
		status:             SessionRunning,
		log:                logger.GetLogger("grid", "SessionContext"),
	}
	sc.log.Info("session created", logger.String("sessionID", sc.ID))
	return sc, nil
}

// OpenSession reattaches to an existing session, refusing any status other
// than running.
func OpenSession(ctx context.Context, client SessionsClient, sessionID string) (*SessionContext, error) {
	bootstrap.TuneRuntime()

	reply, err := client.GetSession(ctx, sessionID)
	if err != nil {
		return nil, TransportError(err)
	}
	if reply.Status != SessionRunning {
		return nil, SessionNotOpenable(sessionID, string(reply.Status))
	}

	sc := &SessionContext{
		ID:     sessionID,
		status: reply.Status,
		log:    logger.GetLogger("grid", "SessionContext"),
	}

	if cfg, err := client.GetServiceConfiguration(ctx, sessionID); err == nil {
		sc.chunkMaxSize = cfg.DataChunkMaxSize
	}
	return sc, nil
}

// Status returns the last status this SessionContext observed.
func (s *SessionContext) Status() SessionStatus { return s.status }

// ChunkMaxSize returns the server-advertised payload chunk size this
// session was opened with (0 if never fetched; the Submitter then
// classifies payloads against a 1 MiB default).
func (s *SessionContext) ChunkMaxSize() int { return s.chunkMaxSize }

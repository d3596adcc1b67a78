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

import "time"

// EngineType selects the wire-protocol and submission-mode variant a
// session uses.
type EngineType string

const (
	// EngineSymphony and EngineDataSynapse select the legacy bidirectional
	// CreateLargeTasks streaming submission mode.
	EngineSymphony    EngineType = "Symphony"
	EngineDataSynapse EngineType = "DataSynapse"
	// EngineUnified selects the modern CreateResults/UploadResultData/
	// SubmitTasks submission mode.
	EngineUnified EngineType = "Unified"
)

// usesLegacyStreaming reports whether e requires the CreateLargeTasks
// bidirectional streaming submission path instead of small-id mode.
func (e EngineType) usesLegacyStreaming() bool {
	return e == EngineSymphony || e == EngineDataSynapse
}

// TaskOptions carries the defaults a session was created with, optionally
// overridden per submission. Clone before mutating a copy handed to a
// single call.
type TaskOptions struct {
	MaxDuration          time.Duration
	MaxRetries           int
	Priority             int
	EngineType           EngineType
	ApplicationName      string
	ApplicationVersion   string
	ApplicationNamespace string
	ApplicationService   string
	PartitionID          string
}

// DefaultTaskOptions returns the SDK's baseline options.
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		MaxDuration: time.Hour,
		MaxRetries:  5,
		Priority:    1,
		EngineType:  EngineUnified,
	}
}

// Clone returns an independent copy, so per-submission overrides never leak
// back into the session's defaults.
func (o TaskOptions) Clone() TaskOptions {
	return o
}

// defaultPartitions implements the session-creation rule: if a partition id
// was set on the default options, use it alone, else defer to the server's
// default partition (an empty list).
func (o TaskOptions) defaultPartitions() []string {
	if o.PartitionID != "" {
		return []string{o.PartitionID}
	}
	return nil
}

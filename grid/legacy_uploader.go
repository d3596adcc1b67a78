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

import "sync"

// legacyUploader serializes every write to one CreateLargeTasks
// bidirectional stream. The wire protocol multiplexes every task in a
// chunk onto the single stream opened for it, so two goroutines writing
// concurrently could interleave one task's header with another's payload
// chunk -- per the spec's concurrency model, callers must hold a
// process-wide lock around Send on this stream, which is what submit below
// does.
type legacyUploader struct {
	stream LargeTaskStream
}

// legacyStreamMu is the process-wide lock every legacyUploader holds while
// writing to its stream.
var legacyStreamMu sync.Mutex

func newLegacyUploader(stream LargeTaskStream) *legacyUploader {
	return &legacyUploader{stream: stream}
}

// submit writes one header+payload pair per descriptor, in order, then
// closes the stream and returns its reply. Held entirely under
// legacyStreamMu, so concurrent submitChunkLegacy calls -- each with its own
// stream and its own uploader -- write one at a time across the process.
func (u *legacyUploader) submit(descriptors []*taskDescriptor) (*CreateLargeTasksReply, error) {
	legacyStreamMu.Lock()
	defer legacyStreamMu.Unlock()

	for _, d := range descriptors {
		header := &LargeTaskInitHeader{
			Dependencies:       d.req.Dependencies,
			ExpectedOutputKeys: []ResultID{d.resultID},
			Options:            d.req.Options,
		}
		if err := u.stream.SendHeader(header); err != nil {
			return nil, err
		}
		if err := u.stream.SendChunk(&LargeTaskDataChunk{Data: d.req.Payload, Complete: true}); err != nil {
			return nil, err
		}
	}
	return u.stream.CloseAndRecv()
}

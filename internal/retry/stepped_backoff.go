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

package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// steppedBackOff walks a fixed schedule of delays, holding at the last step
// once exhausted rather than erroring out -- the dispatcher's sweep loop
// never stops polling, it just slows down.
type steppedBackOff struct {
	steps []time.Duration
	idx   int
}

// NewSteppedBackOff returns a backoff.BackOff that yields steps in order,
// repeating the final step forever once the schedule is exhausted.
func NewSteppedBackOff(steps []time.Duration) backoff.BackOff {
	return &steppedBackOff{steps: steps}
}

func (s *steppedBackOff) NextBackOff() time.Duration {
	if len(s.steps) == 0 {
		return backoff.Stop
	}
	if s.idx >= len(s.steps) {
		return s.steps[len(s.steps)-1]
	}
	d := s.steps[s.idx]
	s.idx++
	return d
}

func (s *steppedBackOff) Reset() {
	s.idx = 0
}

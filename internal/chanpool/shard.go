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

package chanpool

import (
	"github.com/cespare/xxhash/v2"
	jump "github.com/lithammer/go-jump-consistent-hash"
)

// PickTarget deterministically maps key onto one of targets using a jump
// consistent hash, so repeated calls for the same affinity key (a session
// id, a result id) land on the same endpoint even as the target list grows,
// instead of reshuffling every assignment the way a plain modulo would.
func PickTarget(key string, targets []string) string {
	switch len(targets) {
	case 0:
		return ""
	case 1:
		return targets[0]
	}
	h := xxhash.Sum64String(key)
	idx := jump.Hash(h, int32(len(targets)))
	return targets[idx]
}

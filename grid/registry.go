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

// ResultRegistry maps a result id to the invocation handler an async
// submission registered for it. Handler insertion is single-writer per id
// (result ids are unique), so the underlying map needs no coordination
// beyond what sync.Map already gives concurrent readers.
type ResultRegistry struct {
	entries sync.Map // ResultID -> *registryEntry
	size    sizeCounter
}

type registryEntry struct {
	handler Handler
	taskID  string
}

// NewResultRegistry creates an empty registry.
func NewResultRegistry() *ResultRegistry {
	return &ResultRegistry{}
}

// Register associates resultID with handler, for delivery once the
// DispatcherLoop observes a terminal status for taskID.
func (r *ResultRegistry) Register(resultID ResultID, taskID string, handler Handler) {
	r.entries.Store(resultID, &registryEntry{handler: handler, taskID: taskID})
	r.size.incr()
}

// Take removes and returns the handler registered for resultID, so a
// caller can deliver it exactly once.
func (r *ResultRegistry) Take(resultID ResultID) (Handler, string, bool) {
	v, ok := r.entries.LoadAndDelete(resultID)
	if !ok {
		return Handler{}, "", false
	}
	r.size.decr()
	e := v.(*registryEntry)
	return e.handler, e.taskID, true
}

// Empty reports whether the registry currently holds no entries.
func (r *ResultRegistry) Empty() bool {
	return r.size.get() == 0
}

// IDs returns a snapshot of every currently-registered result id, for the
// dispatcher to batch into ListResults calls.
func (r *ResultRegistry) IDs() []ResultID {
	ids := make([]ResultID, 0, r.size.get())
	r.entries.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(ResultID))
		return true
	})
	return ids
}

// Purge removes every entry without delivering to it -- used on session
// dispose, where outstanding handlers are deliberately not invoked.
func (r *ResultRegistry) Purge() {
	r.entries.Range(func(key, _ interface{}) bool {
		r.entries.Delete(key)
		r.size.decr()
		return true
	})
}

// sizeCounter tracks the registry's entry count without a full Range scan
// on the common Empty() check.
type sizeCounter struct {
	mu sync.Mutex
	n  int
}

func (c *sizeCounter) incr() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *sizeCounter) decr() {
	c.mu.Lock()
	c.n--
	c.mu.Unlock()
}

func (c *sizeCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

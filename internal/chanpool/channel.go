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

// Package chanpool pools gRPC connections behind a lease/return contract:
// stream-based RPC clients are expensive to build and a channel that faults
// mid-call may be left holding a half-closed stream, so a faulted channel
// is destroyed rather than handed back to the next caller.
package chanpool

import (
	"go.uber.org/atomic"
	"google.golang.org/grpc"
)

// Channel wraps one pooled gRPC connection. The zero value is not usable;
// obtain one from Pool.Lease or Pool.WithChannel.
type Channel struct {
	id      int
	target  string
	conn    *grpc.ClientConn
	faulted atomic.Bool
}

// Conn returns the underlying connection for issuing RPCs.
func (c *Channel) Conn() *grpc.ClientConn {
	return c.conn
}

// Fault tags the channel as faulted. A faulted channel is destroyed by
// Pool.Return instead of being recycled.
func (c *Channel) Fault() {
	c.faulted.Store(true)
}

// Faulted reports whether Fault has been called on this channel.
func (c *Channel) Faulted() bool {
	return c.faulted.Load()
}

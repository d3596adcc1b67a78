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
	"context"
	"strconv"
	"sync"

	"google.golang.org/grpc"

	"github.com/gridmesh/sdk/pkg/metrics"
)

// Dialer builds a fresh *grpc.ClientConn to target. Swappable for tests.
type Dialer func(target string) (*grpc.ClientConn, error)

// Pool leases up to maxParallel concurrent *grpc.ClientConn against
// targets, re-creating channels on demand and never re-pooling one tagged
// faulted. When targets names more than one backend, each channel slot's
// target is chosen by a consistent hash on its ordinal, so the pool's
// backend distribution is stable as maxParallel grows instead of
// reshuffling on every resize; a single-target pool always dials that one
// target, same as before consistent hashing existed here.
type Pool struct {
	targets     []string
	maxParallel int
	dial        Dialer
	statistics  *metrics.ChannelPoolStatistics

	mu       sync.Mutex
	channels []*Channel
	free     chan *Channel

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a Pool bounded at maxParallel channels (at least 1) against
// targets, dialing new channels with dial. targets is usually a single
// backend address; a multi-element targets additionally shards the pool's
// channels across backends via PickTarget.
func New(targets []string, maxParallel int, dial Dialer, statistics *metrics.ChannelPoolStatistics) *Pool {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		targets:     targets,
		maxParallel: maxParallel,
		dial:        dial,
		statistics:  statistics,
		free:        make(chan *Channel, maxParallel),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Lease returns an exclusively-owned channel, creating one if the pool
// hasn't reached maxParallel yet, else waiting for one to be returned or
// ctx to expire.
func (p *Pool) Lease(ctx context.Context) (*Channel, error) {
	select {
	case ch := <-p.free:
		p.onLeased()
		return ch, nil
	default:
	}

	p.mu.Lock()
	if len(p.channels) < p.maxParallel {
		ch, err := p.createLocked()
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		p.onLeased()
		return ch, nil
	}
	p.mu.Unlock()

	select {
	case ch := <-p.free:
		p.onLeased()
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	}
}

func (p *Pool) onLeased() {
	p.statistics.Leased.Incr()
	p.statistics.InUse.Incr()
}

func (p *Pool) createLocked() (*Channel, error) {
	target := PickTarget(strconv.Itoa(len(p.channels)), p.targets)
	conn, err := p.dial(target)
	if err != nil {
		return nil, err
	}
	ch := &Channel{id: len(p.channels), target: target, conn: conn}
	p.channels = append(p.channels, ch)
	p.statistics.Created.Incr()
	return ch, nil
}

// Return hands ch back to the pool, destroying it instead if it was
// tagged faulted or the pool is shutting down.
func (p *Pool) Return(ch *Channel) {
	p.statistics.InUse.Decr()
	if ch.Faulted() || p.ctx.Err() != nil {
		p.destroy(ch)
		return
	}
	select {
	case p.free <- ch:
	default:
		p.destroy(ch)
	}
}

func (p *Pool) destroy(ch *Channel) {
	p.statistics.Faulted.Incr()
	_ = ch.conn.Close()
	p.mu.Lock()
	for i, c := range p.channels {
		if c == ch {
			p.channels = append(p.channels[:i], p.channels[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// WithChannel leases a channel, runs fn against its connection, and
// returns it -- tagging it faulted first if fn returned an error, so the
// channel is destroyed rather than recycled.
func (p *Pool) WithChannel(ctx context.Context, fn func(*grpc.ClientConn) error) error {
	ch, err := p.Lease(ctx)
	if err != nil {
		return err
	}
	defer p.Return(ch)

	if err := fn(ch.Conn()); err != nil {
		ch.Fault()
		return err
	}
	return nil
}

// Stop tears the pool down, closing every channel. Idempotent.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.cancel()
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, ch := range p.channels {
			_ = ch.conn.Close()
		}
		p.channels = nil
	})
}

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

// Package retry implements the attempt/backoff harness every RPC stage in
// the pipeline is wrapped in: a fixed number of attempts over a whitelist
// of retriable failure kinds, built on top of cenkalti/backoff so the loop
// itself, cancellation and the final-attempt passthrough are the library's
// responsibility rather than hand-rolled.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Op is one attempt of a retried operation. attempt is 1-indexed.
type Op func(ctx context.Context, attempt int) error

// Do runs op up to attempts times with baseDelay between attempts.
//
// On every attempt but the last: a nil error returns immediately; a
// non-nil error is checked against whitelist/derivedOk -- if retriable the
// harness sleeps baseDelay and tries again, otherwise the error is
// returned immediately. The final attempt is never classified: whatever it
// returns (nil or not) propagates unchanged.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, whitelist []string, derivedOk bool, op Op) error {
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt >= attempts {
			return backoff.Permanent(err)
		}
		if !retriable(err, whitelist, derivedOk) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(baseDelay), uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(operation, bo)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// DoAsync runs Do on its own goroutine and delivers the result on the
// returned channel, which is always sent to exactly once.
func DoAsync(ctx context.Context, attempts int, baseDelay time.Duration, whitelist []string, derivedOk bool, op Op) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- Do(ctx, attempts, baseDelay, whitelist, derivedOk, op)
	}()
	return out
}

// DoFireAndForget runs Do on its own goroutine and hands any final error to
// onError instead of making the caller wait on or poll for a result.
func DoFireAndForget(ctx context.Context, attempts int, baseDelay time.Duration, whitelist []string, derivedOk bool, op Op, onError func(error)) {
	go func() {
		if err := Do(ctx, attempts, baseDelay, whitelist, derivedOk, op); err != nil && onError != nil {
			onError(err)
		}
	}()
}

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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindedErr struct {
	kind    string
	parents []string
}

func (e *kindedErr) Error() string        { return "kinded: " + e.kind }
func (e *kindedErr) Kind() string         { return e.kind }
func (e *kindedErr) ParentKinds() []string { return e.parents }

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, []string{"transport-transient"}, false, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return &kindedErr{kind: "transport-transient"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetriableStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := &kindedErr{kind: "permission-denied"}
	err := Do(context.Background(), 5, time.Millisecond, []string{"transport-transient"}, false, func(_ context.Context, attempt int) error {
		calls++
		return sentinel
	})
	assert.Same(t, error(sentinel), err)
	assert.Equal(t, 1, calls)
}

func TestDo_FinalAttemptPropagatesUnclassified(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, []string{"transport-transient"}, false, func(_ context.Context, attempt int) error {
		calls++
		return &kindedErr{kind: "transport-transient"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_EmptyWhitelistRetriesEverything(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 4, time.Millisecond, nil, false, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 4 {
			return errors.New("anything")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_DerivedOkMatchesParentKind(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, []string{"transport-transient"}, true, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return &kindedErr{kind: "dial-timeout", parents: []string{"transport-transient"}}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_AggregatedErrorUsesFirstInner(t *testing.T) {
	calls := 0
	agg := multierror.Append(nil, &kindedErr{kind: "transport-transient"})
	err := Do(context.Background(), 3, time.Millisecond, []string{"transport-transient"}, false, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return agg
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoAsync(t *testing.T) {
	ch := DoAsync(context.Background(), 1, time.Millisecond, nil, false, func(_ context.Context, _ int) error {
		return nil
	})
	require.NoError(t, <-ch)
}

func TestDoFireAndForget(t *testing.T) {
	done := make(chan error, 1)
	DoFireAndForget(context.Background(), 1, time.Millisecond, []string{"x"}, false, func(_ context.Context, _ int) error {
		return &kindedErr{kind: "unlisted"}
	}, func(err error) {
		done <- err
	})
	require.Error(t, <-done)
}

func TestSteppedBackOff(t *testing.T) {
	bo := NewSteppedBackOff([]time.Duration{time.Second, 5 * time.Second, 10 * time.Second})
	assert.Equal(t, time.Second, bo.NextBackOff())
	assert.Equal(t, 5*time.Second, bo.NextBackOff())
	assert.Equal(t, 10*time.Second, bo.NextBackOff())
	assert.Equal(t, 10*time.Second, bo.NextBackOff())
	bo.Reset()
	assert.Equal(t, time.Second, bo.NextBackOff())
}

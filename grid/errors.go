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
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind names one of the taxonomy's error classes. Kinds, not Go types: the
// retry harness and the dispatcher both switch on Kind() rather than on
// concrete error identity.
type Kind string

const (
	// KindTransportTransient is a network or RPC fault the harness retries.
	KindTransportTransient Kind = "transport-transient"
	// KindTransportFatal covers auth, not-found-on-just-created, schema
	// mismatch -- faults retrying cannot fix.
	KindTransportFatal Kind = "transport-fatal"
	// KindDependencyUnknown marks a worker-side dependency translation miss.
	KindDependencyUnknown Kind = "dependency-unknown"
	// KindResultInError marks a server-reported producing-task error.
	KindResultInError Kind = "result-in-error"
	// KindResultAborted marks a result in the aborted status.
	KindResultAborted Kind = "result-aborted"
	// KindResultIncomplete marks a download stream that ended without a
	// dataComplete terminator.
	KindResultIncomplete Kind = "result-incomplete"
	// KindResultNotReady marks a result polled before completion.
	KindResultNotReady Kind = "result-not-ready"
	// KindSessionNotOpenable marks a session not in the running state.
	KindSessionNotOpenable Kind = "session-not-openable"
	// KindSubmissionExhausted marks a submission whose retries were all spent.
	KindSubmissionExhausted Kind = "submission-exhausted"
	// KindMethodDispatchError marks a worker-side capability lookup miss.
	KindMethodDispatchError Kind = "method-dispatch-error"
)

// Error is the concrete error type carried through the SDK. It satisfies
// retry.Kinded (and retry.Derived for transport faults), so RetryHarness
// can classify it without any SDK-specific import.
type Error struct {
	kind    Kind
	parents []Kind
	msg     string
	cause   error
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func newErrorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind implements retry.Kinded.
func (e *Error) Kind() string { return string(e.kind) }

// ParentKinds implements retry.Derived.
func (e *Error) ParentKinds() []string {
	out := make([]string, len(e.parents))
	for i, k := range e.parents {
		out[i] = string(k)
	}
	return out
}

// Unwrap exposes the wrapped transport cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the underlying error this Error was derived from,
// wrapping it with pkg/errors so a stack trace survives to the log line.
func (e *Error) WithCause(cause error) *Error {
	e.cause = errors.WithStack(cause)
	return e
}

// DependencyUnknown reports a worker-side dependency translation miss for
// the given caller-supplied task id.
func DependencyUnknown(taskID string) *Error {
	return newErrorf(KindDependencyUnknown, "dependency task id %q has no recorded result id", taskID)
}

// ResultInError reports a server-side producing-task failure, carrying
// every detail string the server supplied.
func ResultInError(resultID string, details []string) *Error {
	return newErrorf(KindResultInError, "result %q: %s", resultID, strings.Join(details, "; "))
}

// ResultAborted reports a result in the aborted status.
func ResultAborted(resultID string) *Error {
	return newErrorf(KindResultAborted, "result %q aborted", resultID)
}

// ResultIncomplete reports a download stream that ended without its
// dataComplete terminator.
func ResultIncomplete(resultID string) *Error {
	return newErrorf(KindResultIncomplete, "result %q stream ended without dataComplete", resultID)
}

// ResultNotReady reports a result polled before completion.
func ResultNotReady(resultID string) *Error {
	return newErrorf(KindResultNotReady, "result %q not ready", resultID)
}

// SessionNotOpenable reports a session that exists but isn't running.
func SessionNotOpenable(sessionID, status string) *Error {
	return newErrorf(KindSessionNotOpenable, "session %q is %s, not running", sessionID, status)
}

// SubmissionExhausted reports a submission stage whose retries were spent.
func SubmissionExhausted(stage string, cause error) *Error {
	return newErrorf(KindSubmissionExhausted, "stage %q exhausted its retry budget", stage).WithCause(cause)
}

// MethodDispatchError reports a worker-side capability lookup miss.
func MethodDispatchError(method string) *Error {
	return newErrorf(KindMethodDispatchError, "no capability registered for method %q", method)
}

// TransportError classifies a raw gRPC/transport error into a transient or
// fatal Error, the way RetryHarness and TryGetResult* expect.
func TransportError(err error) *Error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return newError(KindTransportTransient, "transport fault").WithCause(err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		e := newError(KindTransportTransient, st.Message()).WithCause(err)
		e.parents = []Kind{KindTransportTransient}
		return e
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
		return newError(KindTransportFatal, st.Message()).WithCause(err)
	default:
		return newError(KindTransportTransient, st.Message()).WithCause(err)
	}
}

// IsNotReady reports whether a transport error should surface as
// ResultNotReady from a TryGet* call rather than as a hard failure: an
// *Error of kind ResultNotReady, or a NotFound/Canceled/Aborted gRPC status,
// either bare or as the cause of an *Error built by TransportError.
func IsNotReady(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		if e.kind == KindResultNotReady {
			return true
		}
		if e.cause != nil {
			err = errors.Cause(e.cause)
		}
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.NotFound, codes.Canceled, codes.Aborted:
		return true
	default:
		return false
	}
}

// ClientResults aggregates the failures of a batch operation, naming the
// first-in-error id as the primary cause the way the taxonomy requires.
type ClientResults struct {
	merr *multierror.Error
	// FailedIDs lists every result or task id that failed, in report order.
	FailedIDs []string
}

// NewClientResults creates an empty aggregate.
func NewClientResults() *ClientResults {
	return &ClientResults{merr: &multierror.Error{}}
}

// Add records a failure for id.
func (c *ClientResults) Add(id string, err error) {
	c.FailedIDs = append(c.FailedIDs, id)
	c.merr = multierror.Append(c.merr, errors.Wrapf(err, "id %q", id))
}

// Empty reports whether any failure was recorded.
func (c *ClientResults) Empty() bool {
	return c.merr == nil || len(c.merr.Errors) == 0
}

// ErrorOrNil returns the aggregate as an error, or nil if nothing failed.
func (c *ClientResults) ErrorOrNil() error {
	if c.Empty() {
		return nil
	}
	return c
}

func (c *ClientResults) Error() string {
	if c.Empty() {
		return "no errors"
	}
	return fmt.Sprintf("%d of the batch failed, primary error (id %s): %v",
		len(c.merr.Errors), c.FailedIDs[0], c.merr.Errors[0])
}

// Unwrap exposes the underlying *multierror.Error for errors.Is/As chains.
func (c *ClientResults) Unwrap() error { return c.merr }

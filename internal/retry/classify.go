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

import "github.com/hashicorp/go-multierror"

// Kinded is implemented by errors that carry a concrete classification kind,
// so the harness can match it against a whitelist.
type Kinded interface {
	error
	Kind() string
}

// Derived is implemented by a Kinded error that is also a subkind of one or
// more broader kinds, e.g. a dial-timeout error that is also a
// transport-transient error.
type Derived interface {
	Kinded
	ParentKinds() []string
}

// retriable reports whether err should be retried against whitelist, per:
//
//   - the whitelist is empty: everything retries;
//   - err's concrete Kind() is listed;
//   - derivedOk is set and err is Derived with a ParentKinds() entry listed;
//   - err is an aggregated *multierror.Error whose first wrapped error
//     matches one of the above.
func retriable(err error, whitelist []string, derivedOk bool) bool {
	if len(whitelist) == 0 {
		return true
	}
	if merr, ok := err.(*multierror.Error); ok {
		if len(merr.Errors) == 0 {
			return false
		}
		return retriable(merr.Errors[0], whitelist, derivedOk)
	}
	ke, ok := err.(Kinded)
	if !ok {
		return false
	}
	if hasKind(whitelist, ke.Kind()) {
		return true
	}
	if derivedOk {
		if de, ok := err.(Derived); ok {
			for _, parent := range de.ParentKinds() {
				if hasKind(whitelist, parent) {
					return true
				}
			}
		}
	}
	return false
}

func hasKind(whitelist []string, kind string) bool {
	for _, k := range whitelist {
		if k == kind {
			return true
		}
	}
	return false
}

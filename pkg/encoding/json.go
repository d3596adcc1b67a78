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

// Package encoding holds the small marshal helpers shared by every package
// that needs to log or persist a struct as JSON, so nobody reaches for
// encoding/json ad hoc.
package encoding

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONMarshal marshals v, swallowing the error the way call sites that only
// ever feed it well-formed internal structs expect -- returns nil on failure.
func JSONMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// JSONUnmarshal unmarshals data into v, returning the underlying error.
func JSONUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

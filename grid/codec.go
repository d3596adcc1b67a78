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
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the grpcResultsClient/grpcTasksClient family call Invoke
// with the plain structs in wire_messages.go directly, instead of needing
// generated protobuf message types -- wire schema codegen is out of scope
// here, but the transport still needs a real grpc.Codec to marshal onto
// the stream.
type jsonCodec struct{}

const codecName = "gridmesh-json"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return jsonAPI.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

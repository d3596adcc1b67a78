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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestWithRequestIDAttachesUniqueHeaderPerCall(t *testing.T) {
	ctx1 := withRequestID(context.Background())
	ctx2 := withRequestID(context.Background())

	md1, ok := metadata.FromOutgoingContext(ctx1)
	require.True(t, ok)
	md2, ok := metadata.FromOutgoingContext(ctx2)
	require.True(t, ok)

	id1 := md1.Get(requestIDHeader)
	id2 := md2.Get(requestIDHeader)
	require.Len(t, id1, 1)
	require.Len(t, id2, 1)
	assert.NotEqual(t, id1[0], id2[0])
}

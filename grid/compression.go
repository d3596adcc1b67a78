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
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/grpc/encoding"
)

// Compression is wire-level only: it never changes the logical byte length
// the SDK observes at UploadResultData/GetResult, it just shrinks what
// crosses the network for it.
const (
	compressorGzip   = "gzip"
	compressorSnappy = "snappy"
)

// compressorNameFor picks the dial-option-level compressor a session's
// engine type should negotiate: the legacy streaming engines keep their
// original snappy framing, the modern small-id path uses gzip.
func compressorNameFor(e EngineType) string {
	if e.usesLegacyStreaming() {
		return compressorSnappy
	}
	return compressorGzip
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (gzipCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

func (gzipCompressor) Name() string { return compressorGzip }

type snappyCompressor struct{}

func (snappyCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

func (snappyCompressor) Name() string { return compressorSnappy }

func init() {
	encoding.RegisterCompressor(gzipCompressor{})
	encoding.RegisterCompressor(snappyCompressor{})
}

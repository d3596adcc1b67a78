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

// Package config loads the SDK's recognized configuration keys from a TOML
// file. Unknown keys are tolerated, not rejected -- they land in Extra.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// FileStorageType names the file adapter backend a deployment advertises.
// The adapters themselves are out of scope; the SDK only needs the tag.
type FileStorageType string

const (
	FileStorageFS FileStorageType = "FS"
	FileStorageS3 FileStorageType = "S3"
)

// Config holds every recognized key from the spec's configuration table.
type Config struct {
	Endpoint              string          `toml:"endpoint" validate:"required"`
	MaxParallelChannels   int             `toml:"max-parallel-channels" validate:"gt=0"`
	ChunkSubmitSize       int             `toml:"chunk-submit-size" validate:"gt=0"`
	BufferRequestSize     int             `toml:"buffer-request-size"`
	MaxConcurrentBuffers  int             `toml:"max-concurrent-buffers"`
	FileStorageType       FileStorageType `toml:"file-storage-type" validate:"omitempty,oneof=FS S3"`
	S3AccessKeyID         string          `toml:"s3-access-key-id"`
	S3SecretAccessKey     string          `toml:"s3-secret-access-key"`
	S3ServiceURL          string          `toml:"s3-service-url"`
	S3BucketName          string          `toml:"s3-bucket-name"`

	// Extra holds any unrecognized key, tolerated rather than rejected.
	Extra map[string]interface{} `toml:"-"`
}

var validate = validator.New()

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		MaxParallelChannels: 4,
		ChunkSubmitSize:     500,
		FileStorageType:     FileStorageFS,
	}
}

// Load reads path as TOML into a Config seeded with Default, validating the
// recognized fields. Keys the struct doesn't know about are preserved in a
// second, loose decode pass into Extra rather than causing a load failure.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	loose := map[string]interface{}{}
	if _, err := toml.DecodeFile(path, &loose); err == nil {
		cfg.Extra = loose
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

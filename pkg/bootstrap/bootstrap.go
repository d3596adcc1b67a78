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

// Package bootstrap holds the one-time process setup a client library does
// before it spins up worker pools and channel pools.
package bootstrap

import (
	"sync"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gridmesh/sdk/pkg/logger"
)

var once sync.Once

// TuneRuntime sets GOMAXPROCS from the container's CPU quota, once per
// process. Safe to call from every CreateSession/OpenSession -- only the first
// call does anything.
func TuneRuntime() {
	once.Do(func() {
		log := logger.GetLogger("bootstrap", "TuneRuntime")
		if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			log.Sugar().Debugf(format, args...)
		})); err != nil {
			log.Warn("failed to tune GOMAXPROCS", logger.Error(err))
		}
	})
}

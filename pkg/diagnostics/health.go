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

package diagnostics

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostInfo is the /healthz host snapshot: enough to tell an operator the
// process is alive and not obviously starved, nothing more.
type hostInfo struct {
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpuPercent"`
	MemUsedPct float64 `json:"memUsedPercent"`
	MemUsedMB  uint64  `json:"memUsedMB"`
}

func hostSnapshot() (*hostInfo, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	return &hostInfo{
		Goroutines: runtime.NumGoroutine(),
		CPUPercent: cpuPct,
		MemUsedPct: vm.UsedPercent,
		MemUsedMB:  vm.Used / (1 << 20),
	}, nil
}

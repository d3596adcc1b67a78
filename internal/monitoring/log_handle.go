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

// Package monitoring holds the gin handlers the diagnostics server mounts
// alongside health/metrics/pprof -- today just the log-file explorer.
package monitoring

import (
	"bufio"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gridmesh/sdk/pkg/httpapi"
	"github.com/gridmesh/sdk/pkg/logger"
)

// for testing
var readDirFn = os.ReadDir

// lineBreak terminates every line LoggerAPI.View streams back.
var lineBreak = []byte("\n")

// FileInfo is one entry of LoggerAPI.List's reply.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

var (
	LogListPath = "/log/list"
	LogViewPath = "/log/view"
)

// LoggerAPI exposes the SDK's own log directory for operator inspection --
// useful when the process runs embedded in a caller's service with no
// other way to reach its log files.
type LoggerAPI struct {
	logDir string
	log    *logger.Logger
}

// NewLoggerAPI creates a log-explorer api instance rooted at logDir.
func NewLoggerAPI(logDir string) *LoggerAPI {
	return &LoggerAPI{
		logDir: logDir,
		log:    logger.GetLogger("monitoring", "LoggerAPI"),
	}
}

// Register mounts the log-explorer routes on route.
func (d *LoggerAPI) Register(route gin.IRoutes) {
	route.GET(LogListPath, d.List)
	route.GET(LogViewPath, d.View)
}

// List returns every *.log file in the log dir.
func (d *LoggerAPI) List(c *gin.Context) {
	files, err := readDirFn(d.logDir)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	var logFiles []FileInfo
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			httpapi.Error(c, err)
			return
		}
		logFiles = append(logFiles, FileInfo{Name: name, Size: info.Size()})
	}
	httpapi.OK(c, logFiles)
}

// View tails a log file, streaming its last Size bytes (1MiB default).
func (d *LoggerAPI) View(c *gin.Context) {
	var param struct {
		FileName string `form:"file" binding:"required"`
		Size     int64  `form:"size,default=1048576"`
	}
	if err := c.ShouldBindQuery(&param); err != nil {
		httpapi.Error(c, err)
		return
	}
	file, err := os.Open(path.Join(d.logDir, param.FileName))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			d.log.Warn("close log file", logger.String("file", param.FileName), logger.Error(err))
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	truncated := stat.Size() > param.Size
	if truncated {
		if _, err := file.Seek(stat.Size()-param.Size, io.SeekStart); err != nil {
			httpapi.Error(c, err)
			return
		}
	}

	scanner := bufio.NewScanner(file)
	if truncated {
		scanner.Scan() // skip the first line, cut short by the seek
	}
	c.Stream(func(w io.Writer) bool {
		for scanner.Scan() {
			if err := writeLine(w, scanner.Bytes()); err != nil {
				d.log.Warn("write log stream", logger.String("file", param.FileName), logger.Error(err))
				return false
			}
		}
		return false
	})
}

func writeLine(w io.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	_, err := w.Write(lineBreak)
	return err
}

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

// Package diagnostics is the SDK's optional operator-facing HTTP surface:
// health, prometheus metrics, pprof, and the log explorer -- everything a
// caller running the SDK embedded in a long-lived process wants without
// standing up its own admin server. Mounting it is opt-in: nothing in
// grid.Client starts it.
package diagnostics

import (
	"context"
	"net/http"
	"time"

	"github.com/felixge/fgprof"
	"github.com/gin-contrib/cors"
	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gridmesh/sdk/internal/monitoring"
	"github.com/gridmesh/sdk/pkg/logger"
)

// Config configures Server.
type Config struct {
	// ListenAddr is the address ListenAndServe binds, e.g. ":8080".
	ListenAddr string
	// LogDir, if non-empty, mounts the log-explorer routes rooted there.
	LogDir string
}

// Server is the SDK's admin HTTP surface: /healthz, /metrics,
// /debug/pprof/*, /swagger/*any, and (when Config.LogDir is set) the log
// explorer. Built on gin the same way the teacher's internal/monitoring
// package mounts its routes -- a *gin.Engine plus one Register call per
// handler group.
type Server struct {
	cfg    Config
	engine *gin.Engine
	srv    *http.Server
	log    *logger.Logger
}

// NewServer builds a Server; call Start to begin serving.
func NewServer(cfg Config) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		log:    logger.GetLogger("diagnostics", "Server"),
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/debug/fgprof", gin.WrapH(fgprof.Handler()))
	ginpprof.Register(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.LogDir != "" {
		monitoring.NewLoggerAPI(cfg.LogDir).Register(engine)
	}

	return s
}

// healthz reports liveness plus a minimal process snapshot. Degrades to
// liveness-only (still 200) if the host snapshot can't be read, since an
// inability to read /proc is never itself a reason to fail a health check.
func (s *Server) healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if snap, err := hostSnapshot(); err != nil {
		s.log.Warn("host snapshot unavailable", logger.Error(err))
	} else {
		body["host"] = snap
	}
	c.JSON(http.StatusOK, body)
}

// Start begins serving on cfg.ListenAddr in the background. Errors other
// than a clean Shutdown are logged, not returned, matching a long-lived
// admin server's fire-and-forget lifecycle.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("diagnostics server stopped unexpectedly", logger.Error(err))
		}
	}()
}

// Stop shuts the server down, waiting up to 5s for in-flight requests to
// drain.
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("diagnostics server shutdown", logger.Error(err))
	}
}

// Package server provides the HTTP surface of the migration engine:
// task status polling, task submission and report downloads.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/config"
)

type RegisterHandlersFn func(router *gin.RouterGroup)

type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// NewServer builds the gin engine with zap request logging and panic
// recovery, and mounts the handlers under /api/v1.
func NewServer(cfg *config.Config, registerHandlers RegisterHandlersFn) *Server {
	if cfg.Server.ServerMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L().Named("http"), time.RFC3339, false))
	router.Use(ginzap.RecoveryWithZap(zap.L().Named("http"), true))

	api := router.Group("/api/v1")
	registerHandlers(api)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: zap.S().Named("server"),
	}
}

// Start blocks serving HTTP until Stop or a listener error.
func (s *Server) Start() error {
	s.log.Infow("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop performs a graceful shutdown, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Package server exposes the agent over HTTP: proposal CRUD, x402-gated
// contributions, payment verification, decision and execution endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/executor"
	"github.com/crowdmind/crowdmind/logger"
	"github.com/crowdmind/crowdmind/protocol"
	"github.com/crowdmind/crowdmind/store"
)

// Server wires the HTTP API over the agent components.
type Server struct {
	store    store.Store
	clients  *clients.Registry
	proto    *protocol.Handler
	executor *executor.Executor
	maker    *decision.Maker
	cfg      config.Config
	log      logger.Logger

	engine *gin.Engine
	http   *http.Server
}

// New builds the server and registers all routes.
func New(cfg config.Config, st store.Store, registry *clients.Registry, proto *protocol.Handler, exec *executor.Executor, maker *decision.Maker, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		store:    st,
		clients:  registry,
		proto:    proto,
		executor: exec,
		maker:    maker,
		cfg:      cfg,
		log:      log,
		engine:   engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.cfg.Metrics.Enabled {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	proposals := s.engine.Group("/proposals")
	{
		proposals.GET("", s.listProposals)
		proposals.POST("", s.createProposal)
		proposals.GET("/:id", s.getProposal)
		proposals.POST("/:id/contribute", s.contribute)
		proposals.POST("/:id/verify", s.verifyPayment)
		proposals.GET("/:id/decision", s.getDecision)
		proposals.GET("/:id/analysis", s.getAnalysis)
		proposals.POST("/:id/execute", s.executeProposal)
		proposals.GET("/:id/transactions", s.listTransactions)
	}

	agent := s.engine.Group("/agent")
	{
		agent.GET("/status", s.agentStatus)
		agent.GET("/recommendations", s.recommendations)
	}
}

// Handler exposes the HTTP handler, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", map[string]any{"addr": s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "chains": s.clients.Chains()})
}

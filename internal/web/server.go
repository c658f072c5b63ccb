// Package web exposes guide sessions to browsers over HTTP and WebSocket.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Server is the browser API server
type Server struct {
	cfg      config.ServerConfig
	store    *Store
	router   *gin.Engine
	upgrader websocket.Upgrader
	sweeper  *cron.Cron
	logger   *zap.SugaredLogger
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.SugaredLogger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server whose sessions come from factory
func NewServer(cfg config.ServerConfig, factory SessionFactory, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = NewStore(factory, time.Duration(cfg.SessionTTL)*time.Second, s.logger)
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Store returns the session store
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api/sessions")
	api.POST("", s.handleCreate)
	api.GET("/:id", s.withRoom(s.handleGet))
	api.DELETE("/:id", s.handleDelete)
	api.POST("/:id/start", s.withRoom(s.handleStart))
	api.POST("/:id/messages", s.withRoom(s.handleSubmit))
	api.POST("/:id/exit", s.withRoom(s.handleExit))
	api.GET("/:id/ws", s.withRoom(s.handleWebSocket))

	return r
}

// StartSweeper schedules the idle session sweep. It is a no-op when no
// session TTL is configured.
func (s *Server) StartSweeper() error {
	if s.cfg.SessionTTL <= 0 || s.sweeper != nil {
		return nil
	}
	schedule := s.cfg.SweepSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.sweeper = c
	s.logger.Infow("session sweeper started", "schedule", schedule, "ttl_seconds", s.cfg.SessionTTL)
	return nil
}

func (s *Server) sweep() {
	if n := s.store.Sweep(); n > 0 {
		s.logger.Infow("idle sessions swept", "removed", n, "remaining", s.store.Len())
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	if err := s.StartSweeper(); err != nil {
		return err
	}
	defer s.stop()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("server listening", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Infow("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) stop() {
	if s.sweeper != nil {
		<-s.sweeper.Stop().Done()
		s.sweeper = nil
	}
	s.store.Close()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Warnw("websocket origin rejected", "origin", origin)
	return false
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Package api provides the HTTP status API of the gateway.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/gateway"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GatewayStats reports connection counters.
type GatewayStats interface {
	Stats() gateway.Stats
}

// DispatcherStats reports RPC counters.
type DispatcherStats interface {
	Stats() rpc.Stats
}

// StorageStats reports table sizes.
type StorageStats interface {
	Stats() (map[string]int64, error)
}

// SessionLister lists live sessions.
type SessionLister interface {
	List() []session.Info
}

// Sources are the components the API reports on. Nil sources are omitted
// from the stats response.
type Sources struct {
	Gateway    GatewayStats
	Dispatcher DispatcherStats
	Storage    StorageStats
	Sessions   SessionLister
}

// Config holds server configuration
type Config struct {
	Addr         string
	EnableCORS   bool
	RateLimit    int // requests per minute per client IP
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		EnableCORS:   true,
		RateLimit:    600,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the status API server.
type Server struct {
	cfg        Config
	src        Sources
	log        *zap.Logger
	router     *gin.Engine
	limiter    *RateLimiter
	httpServer *http.Server
	started    time.Time
}

// NewServer creates the API server and its routes.
func NewServer(cfg Config, src Sources, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		src:     src,
		log:     log.Named("api"),
		router:  gin.New(),
		started: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	if s.cfg.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	if s.cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(s.cfg.RateLimit, time.Minute)
		s.router.Use(RateLimitMiddleware(s.limiter))
	}
	s.router.Use(LoggingMiddleware(s.log))
	s.router.Use(gin.Recovery())
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/stats", s.handleStats)
		v1.GET("/sessions", s.handleSessions)
	}
	s.router.GET("/health", s.handleHealth)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return err
}

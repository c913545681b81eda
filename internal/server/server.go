// Package server exposes the query service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DreamCats/equipid/internal/itemindex"
	"github.com/DreamCats/equipid/internal/query"
)

const defaultMaxBodyBytes = 20 << 20

// Identifier is the query side the HTTP layer depends on.
type Identifier interface {
	Ready() error
	Identify(ctx context.Context, data []byte) ([]query.Match, error)
}

// ItemSearcher answers free-text lookups over item descriptions.
type ItemSearcher interface {
	Search(q string, limit int) ([]itemindex.Hit, error)
}

type Options struct {
	// Mode is "release" or "debug".
	Mode         string
	MaxBodyBytes int64
	// Items enables GET /items/search when non-nil.
	Items  ItemSearcher
	Logger *slog.Logger
}

// Server represents the identification HTTP server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	identify Identifier
	items    ItemSearcher
	maxBody  int64
	logger   *slog.Logger
}

func New(identify Identifier, opts Options) *Server {
	if opts.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		router:   gin.New(),
		identify: identify,
		items:    opts.Items,
		maxBody:  opts.MaxBodyBytes,
		logger:   opts.Logger,
	}
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.logger))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.index)
	s.router.GET("/healthz", s.healthz)
	s.router.POST("/identify", s.handleIdentify)
	if s.items != nil {
		s.router.GET("/items/search", s.searchItems)
	}
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Package httpapi exposes the host over HTTP: stream ingestion, plugin
// listing, plugin-defined routes, context chains, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/dispatch"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
)

// Dispatcher runs a stream through the plugin hooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, event model.StreamEvent) (dispatch.Outcome, error)
}

// Catalog is the part of the plugin registry the API reads.
type Catalog interface {
	Descriptors() []*plugin.Descriptor
	Route(id, method, path string) (plugin.RouteFunc, error)
}

// Config holds listener settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodyBytes caps request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	Debug        bool
}

const (
	// DefaultAddr is used when Config.Addr is empty.
	DefaultAddr = ":7008"
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 1 << 20
)

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	Dispatcher Dispatcher
	Catalog    Catalog
	Snapshots  dispatch.SnapshotSource
	// Streams backs GET /api/streams/:id and is handed to plugin routes.
	// It is optional.
	Streams  ports.StreamClient
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
}

// Server wraps a gin engine and its http.Server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	deps       Dependencies
	maxBody    int64
	logger     *logger.Logger
	startTime  time.Time
}

// NewServer builds the engine and mounts every route.
func NewServer(cfg Config, deps Dependencies) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(deps.Logger))

	s := &Server{
		engine:    engine,
		deps:      deps,
		maxBody:   cfg.MaxBodyBytes,
		logger:    deps.Logger,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.Use(limitBody(s.maxBody))

	streams := api.Group("/streams")
	{
		streams.POST("", s.handleIngest)
		streams.GET("/:id", s.handleGetStream)
	}

	api.GET("/contexts/:id/chain", s.handleChain)

	plugins := api.Group("/plugins")
	{
		plugins.GET("", s.handleListPlugins)
		plugins.Any("/:plugin_id/routes/*path", s.handlePluginRoute)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.With("addr", s.httpServer.Addr).Info("http server listening")
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
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return <-errCh
}

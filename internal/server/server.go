// Package server exposes blending and filling over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"poisson-editor/internal/cache"
	"poisson-editor/internal/config"
	"poisson-editor/internal/inpaint"
	"poisson-editor/internal/logging"
	"poisson-editor/internal/poisson"
	"poisson-editor/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errQueueFull = errors.New("processing queue is full, retry later")

// Server handles blend and fill requests. At most server.max_concurrent
// solves run at once; further requests wait up to server.queue_timeout.
type Server struct {
	cfg    *config.Config
	solver *poisson.Solver
	fill   inpaint.Params
	store  cache.Store // nil disables caching
	sem    chan struct{}
	engine *gin.Engine
}

// New creates a Server. store may be nil.
func New(cfg *config.Config, store cache.Store) *Server {
	s := &Server{
		cfg:    cfg,
		solver: poisson.NewSolver(cfg.Blend.Options()),
		fill:   cfg.Fill.Params(),
		store:  store,
		sem:    make(chan struct{}, cfg.Server.MaxConcurrent),
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Version,
			"cache":   s.store != nil,
		})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info())
	})

	api := r.Group("/api/v1")
	{
		api.POST("/blend", LimitBody(cfg.Server.MaxUploadSize), s.Blend)
		api.POST("/fill", LimitBody(cfg.Server.MaxUploadSize), s.Fill)
		api.GET("/result/:key", s.Result)
	}

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Port,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.L().Info("server starting", zap.String("port", s.cfg.Server.Port),
		zap.Int("max_concurrent", s.cfg.Server.MaxConcurrent))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logging.L().Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// acquire takes a processing slot, waiting at most the queue timeout.
func (s *Server) acquire(ctx context.Context) (release func(), err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.QueueTimeout)
	defer cancel()

	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-ctx.Done():
		return nil, errQueueFull
	}
}

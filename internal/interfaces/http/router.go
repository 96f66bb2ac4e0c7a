package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/marketguard/internal/application/dto"
	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/interfaces/http/handlers"
	"github.com/turtacn/marketguard/internal/interfaces/http/middleware"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
)

// RouterDependencies collects everything the HTTP surface needs.
type RouterDependencies struct {
	Config   *config.ServerConfig
	Logger   logger.Logger
	Tracing  *monitoring.TracingManager
	Gatherer prometheus.Gatherer
	Metrics  *middleware.HTTPMetrics

	HealthHandler  *handlers.HealthHandler
	MonitorHandler *handlers.MonitorHandler
	CacheHandler   *handlers.CacheHandler
	MarketHandler  *handlers.MarketHandler
}

// Router owns the gin engine and the HTTP server.
type Router struct {
	engine *gin.Engine
	deps   RouterDependencies
	logger logger.Logger
	server *http.Server
}

// NewRouter creates the router and registers every route.
func NewRouter(deps RouterDependencies) *Router {
	if deps.Config == nil {
		deps.Config = &config.ServerConfig{Host: "0.0.0.0", Port: 8080}
	}
	r := &Router{
		engine: gin.New(),
		deps:   deps,
		logger: logger.OrNoop(deps.Logger).WithComponent("router"),
	}
	r.setupRoutes()
	return r
}

// Engine exposes the gin engine, mostly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupRoutes() {
	d := r.deps

	r.engine.Use(handlers.RecoveryMiddleware(d.Logger))
	r.engine.Use(handlers.RequestIDMiddleware())
	r.engine.Use(handlers.TracingMiddleware(d.Tracing))
	r.engine.Use(handlers.LoggingMiddleware(d.Logger))
	if d.Metrics != nil {
		r.engine.Use(middleware.ObservabilityMiddleware(d.Metrics))
	}
	r.engine.Use(handlers.CORSMiddleware(d.Config.CORSOrigins))

	if d.HealthHandler != nil {
		r.engine.GET("/health", d.HealthHandler.HealthCheck)
		r.engine.GET("/live", d.HealthHandler.LivenessCheck)
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if d.Config.EnablePprof {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	if d.MonitorHandler != nil {
		mon := v1.Group("/monitor")
		{
			mon.GET("/stats", d.MonitorHandler.AllStats)
			mon.DELETE("/stats", d.MonitorHandler.ResetAll)
			mon.GET("/stats/:api", d.MonitorHandler.Stats)
			mon.DELETE("/stats/:api", d.MonitorHandler.Reset)
		}
	}
	if d.CacheHandler != nil {
		c := v1.Group("/cache")
		{
			c.GET("/stats", d.CacheHandler.Stats)
			c.DELETE("/:prefix", d.CacheHandler.Clear)
		}
	}
	if d.MarketHandler != nil {
		m := v1.Group("/market")
		{
			m.GET("/quotes", d.MarketHandler.GetQuotes)
			m.GET("/quotes/:symbol", d.MarketHandler.GetQuote)
			m.GET("/news/:symbol", d.MarketHandler.GetNews)
			m.GET("/context", d.MarketHandler.GetMarketContext)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, errors.ErrNotFound("the requested resource was not found"))
	})
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context) error {
	cfg := r.deps.Config
	r.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r.engine,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info(ctx, "Starting HTTP server", logger.String("address", cfg.Addr()))
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	r.logger.Info(shutdownCtx, "Shutting down HTTP server")
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.logger.Error(shutdownCtx, "HTTP server forced to shutdown", err)
		return err
	}
	r.logger.Info(shutdownCtx, "HTTP server stopped")
	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/turtacn/marketguard/internal/application"
	"github.com/turtacn/marketguard/internal/config"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/internal/interfaces/http"
	"github.com/turtacn/marketguard/internal/interfaces/http/handlers"
	"github.com/turtacn/marketguard/internal/interfaces/http/middleware"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	v, err := config.NewViper(*configPath)
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	config.Watch(v, func(next *config.Config, err error) {
		if err != nil {
			appLogger.Warn(ctx, "Ignoring invalid config reload", logger.Err(err))
			return
		}
		appLogger.SetLevel(constants.LogLevel(next.Log.Level))
		appLogger.Info(ctx, "Log level reloaded", logger.String("level", next.Log.Level))
	})

	// Initialize tracing
	tracer, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	// Initialize store
	store := application.OpenStore(ctx, cfg.Redis, appLogger)
	defer store.Close()

	// Initialize resilience components
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	components, err := application.Build(ctx, cfg, store, application.Deps{
		Logger:  appLogger,
		Metrics: metrics,
		Tracer:  tracer,
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to build components", err)
	}
	defer components.Close()

	marketSvc := components.MarketDataService(cfg.Providers, appLogger)

	// Initialize HTTP handlers and router
	router := http.NewRouter(http.RouterDependencies{
		Config:         &cfg.Server,
		Logger:         appLogger,
		Tracing:        tracer,
		Gatherer:       registry,
		Metrics:        middleware.NewHTTPMetrics(registry),
		HealthHandler:  handlers.NewHealthHandler(store, components.Limiters.Algorithm(), appLogger),
		MonitorHandler: handlers.NewMonitorHandler(components.Monitors, appLogger),
		CacheHandler:   handlers.NewCacheHandler(components.Caches, appLogger),
		MarketHandler:  handlers.NewMarketHandler(marketSvc, appLogger),
	})

	if err := router.Start(ctx); err != nil {
		appLogger.Error(ctx, "HTTP server failed", err)
	}
}

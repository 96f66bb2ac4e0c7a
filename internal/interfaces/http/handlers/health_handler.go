package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/marketguard/internal/domain/service"
	"github.com/turtacn/marketguard/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store     service.KVStore
	algorithm string
	log       logger.Logger
}

// NewHealthHandler creates a new HealthHandler. algorithm is the rate
// limiter algorithm selected at startup.
func NewHealthHandler(store service.KVStore, algorithm string, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		algorithm: algorithm,
		log:       logger.OrNoop(log),
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Checks the shared store and reports the rate limiter in use.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	checks := h.performChecks(c.Request.Context())

	httpStatus := http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"timestamp":    time.Now().UTC(),
		"checks":       checks,
		"rate_limiter": h.algorithm,
	})
}

// LivenessCheck reports that the process is serving requests.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var wg sync.WaitGroup
	checks := make(map[string]string)
	mu := &sync.Mutex{}

	checkers := map[string]func(context.Context) error{
		"store": h.checkStore,
	}

	wg.Add(len(checkers))
	for name, checkFunc := range checkers {
		go func(name string, f func(context.Context) error) {
			defer wg.Done()
			status := "ok"
			if err := f(ctx); err != nil {
				h.log.Warn(ctx, "Health check failed", logger.String("check", name), logger.Err(err))
				status = "error: " + err.Error()
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
		}(name, checkFunc)
	}
	wg.Wait()
	return checks
}

// checkStore pings stores that support it and otherwise round-trips a key.
func (h *HealthHandler) checkStore(ctx context.Context) error {
	if p, ok := h.store.(service.Pinger); ok {
		return p.Ping(ctx)
	}
	_, _, err := h.store.Get(ctx, "_health")
	return err
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/marketguard/internal/application/dto"
	"github.com/turtacn/marketguard/internal/infrastructure/monitoring"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
)

// MonitorHandler exposes the API call monitors.
type MonitorHandler struct {
	registry *monitoring.Registry
	log      logger.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(registry *monitoring.Registry, log logger.Logger) *MonitorHandler {
	return &MonitorHandler{registry: registry, log: logger.OrNoop(log)}
}

// AllStats returns every monitored API's snapshot keyed by name.
// @Router /api/v1/monitor/stats [get]
func (h *MonitorHandler) AllStats(c *gin.Context) {
	dto.SendSuccess(c, h.registry.AllStats(c.Request.Context()))
}

// Stats returns one API's snapshot.
// @Router /api/v1/monitor/stats/{api} [get]
func (h *MonitorHandler) Stats(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context(), c.Param("api"))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, stats)
}

// ResetAll clears every API's statistics.
// @Router /api/v1/monitor/stats [delete]
func (h *MonitorHandler) ResetAll(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.registry.ResetAll(ctx); err != nil {
		h.log.Error(ctx, "Failed to reset API statistics", err)
		dto.SendError(c, errors.WrapError(err, constants.ErrCodeStoreUnavailable, "failed to reset statistics"))
		return
	}
	dto.SendSuccess(c, gin.H{"reset": h.registry.Names()})
}

// Reset clears one API's statistics.
// @Router /api/v1/monitor/stats/{api} [delete]
func (h *MonitorHandler) Reset(c *gin.Context) {
	ctx := c.Request.Context()
	api := c.Param("api")
	if err := h.registry.Reset(ctx, api); err != nil {
		if errors.IsNotFoundError(err) {
			dto.SendError(c, err)
			return
		}
		h.log.Error(ctx, "Failed to reset API statistics", err, logger.String("api", api))
		dto.SendError(c, errors.WrapError(err, constants.ErrCodeStoreUnavailable, "failed to reset statistics"))
		return
	}
	dto.SendSuccess(c, gin.H{"reset": []string{api}})
}

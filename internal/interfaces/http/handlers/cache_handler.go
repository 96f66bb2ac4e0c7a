package handlers

import (
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/marketguard/internal/application/dto"
	"github.com/turtacn/marketguard/internal/infrastructure/cache"
	"github.com/turtacn/marketguard/pkg/constants"
	"github.com/turtacn/marketguard/pkg/errors"
	"github.com/turtacn/marketguard/pkg/logger"
)

// CacheHandler exposes the result caches.
type CacheHandler struct {
	caches map[string]*cache.ResultCache
	log    logger.Logger
}

// NewCacheHandler creates a new CacheHandler over the configured caches.
func NewCacheHandler(caches []*cache.ResultCache, log logger.Logger) *CacheHandler {
	byPrefix := make(map[string]*cache.ResultCache, len(caches))
	for _, c := range caches {
		byPrefix[c.Prefix()] = c
	}
	return &CacheHandler{caches: byPrefix, log: logger.OrNoop(log)}
}

func (h *CacheHandler) prefixes() []string {
	out := make([]string, 0, len(h.caches))
	for p := range h.caches {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats reports store statistics and the cache configuration.
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	resp := dto.CacheStatsResponse{Caches: []dto.CacheInfoDTO{}}
	for _, p := range h.prefixes() {
		info := h.caches[p].Info()
		resp.Caches = append(resp.Caches, dto.CacheInfoDTO{Prefix: info.Prefix, TTLSeconds: info.TTL.Seconds()})
	}

	// Every cache shares one store, so any of them can report it.
	for _, p := range h.prefixes() {
		stats, ok, err := h.caches[p].Stats(ctx)
		if err != nil {
			h.log.Error(ctx, "Failed to read cache stats", err)
			dto.SendError(c, errors.WrapError(err, constants.ErrCodeStoreUnavailable, "failed to read cache stats"))
			return
		}
		resp.Supported = ok
		resp.Stats = stats
		break
	}
	dto.SendSuccess(c, resp)
}

// Clear deletes every entry under a configured prefix.
// @Router /api/v1/cache/{prefix} [delete]
func (h *CacheHandler) Clear(c *gin.Context) {
	ctx := c.Request.Context()
	prefix := c.Param("prefix")
	rc, ok := h.caches[prefix]
	if !ok {
		dto.SendError(c, errors.ErrNotFound(fmt.Sprintf("no cache configured for prefix %q", prefix)))
		return
	}

	deleted, supported, err := rc.ClearPrefix(ctx, prefix)
	if err != nil {
		h.log.Error(ctx, "Failed to clear cache prefix", err, logger.String("prefix", prefix))
		dto.SendError(c, errors.WrapError(err, constants.ErrCodeStoreUnavailable, "failed to clear cache"))
		return
	}
	dto.SendSuccess(c, dto.CacheClearResponse{Prefix: prefix, Supported: supported, Deleted: deleted})
}

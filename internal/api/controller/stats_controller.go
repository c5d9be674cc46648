package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatsResponse reports cache counters for the running client.
type StatsResponse struct {
	Entries  int              `json:"entries"`
	Counters map[string]int64 `json:"counters"`
}

type metricsCollector interface {
	Collect(ctx context.Context) (map[string]int64, error)
}

type cacheSizer interface {
	Len() int
}

// StatsController exposes the cache metrics.
type StatsController struct {
	metrics metricsCollector
	cache   cacheSizer
}

func NewStatsController(metrics metricsCollector, cache cacheSizer) *StatsController {
	return &StatsController{metrics: metrics, cache: cache}
}

// GetStats handles GET /api/stats.
func (sc *StatsController) GetStats(c *gin.Context) {
	counters, err := sc.metrics.Collect(c.Request.Context())
	if err != nil {
		writeError(c, "stats-controller", err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Entries: sc.cache.Len(), Counters: counters})
}

package route

import (
	"time"

	"github.com/bassista/snapgram/internal/api/controller"
	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/cache"
	"github.com/bassista/snapgram/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// NewStatsRouter exposes the cache counters.
func NewStatsRouter(timeout time.Duration, group *gin.RouterGroup, tp *telemetry.Provider, c *cache.Coordinator) {
	sc := controller.NewStatsController(tp, c)
	group.GET("stats", middleware.RequestTimeout(timeout), sc.GetStats)
}

package route

import (
	"net/http"
	"time"

	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// uploads stream a file to the object store before the document write
	uploadTimeout = 60 * time.Second
)

// SetupRoutes builds the engine serving the local HTTP surface of a.
func SetupRoutes(a *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(a.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
			"session": a.Session.State().Status,
		})
	})

	timeout := a.Config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	maxFileSize := a.Config.Remote.Objects.MaxSize

	api := r.Group("/api")
	NewAuthRouter(timeout, api, a.Queries)
	NewUserRouter(timeout, uploadTimeout, api, a.Queries, maxFileSize)
	NewPostRouter(timeout, uploadTimeout, api, a.Queries, maxFileSize)
	NewStatsRouter(timeout, api, a.Telemetry, a.Cache)

	NewObjectRouter(timeout, r.Group(""), a.Client.ObjectStore)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": "NotFound", "message": "no route for " + c.Request.URL.Path}})
	})
	return r
}

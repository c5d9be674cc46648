package route

import (
	"time"

	"github.com/bassista/snapgram/internal/api/controller"
	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/gin-gonic/gin"
)

// NewObjectRouter serves stored object bytes and initials avatars.
func NewObjectRouter(timeout time.Duration, group *gin.RouterGroup, objects remote.ObjectStore) {
	oc := controller.NewObjectController(objects)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("objects/:id", timeoutMiddleware, oc.Get)
	group.GET("avatars/initials", oc.Avatar)
}

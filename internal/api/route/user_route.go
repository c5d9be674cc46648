package route

import (
	"time"

	"github.com/bassista/snapgram/internal/api/controller"
	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/gin-gonic/gin"
)

// NewUserRouter sets up profile routes. Profile updates may carry an image and
// get the upload timeout.
func NewUserRouter(timeout, uploadTimeout time.Duration, group *gin.RouterGroup, q *queries.Queries, maxFileSize int64) {
	uc := controller.NewUserController(q, maxFileSize)
	users := group.Group("users")

	read := users.Group("", middleware.RequestTimeout(timeout))
	read.GET("", uc.List)
	read.GET("me", uc.Me)
	read.GET(":id", uc.Get)
	read.GET(":id/posts", uc.Posts)

	users.PUT(":id", middleware.RequestTimeout(uploadTimeout), uc.Update)
}

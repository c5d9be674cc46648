package route

import (
	"time"

	"github.com/bassista/snapgram/internal/api/controller"
	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/gin-gonic/gin"
)

// NewPostRouter sets up post, feed and search routes. Create and update carry
// an image and get the upload timeout.
func NewPostRouter(timeout, uploadTimeout time.Duration, group *gin.RouterGroup, q *queries.Queries, maxFileSize int64) {
	pc := controller.NewPostController(q, maxFileSize)
	posts := group.Group("posts")

	std := posts.Group("", middleware.RequestTimeout(timeout))
	std.GET("recent", pc.Recent)
	std.GET("feed", pc.Feed)
	std.GET("search", pc.Search)
	std.GET(":id", pc.Get)
	std.DELETE(":id", pc.Delete)
	std.POST(":id/like", pc.Like)
	std.POST(":id/save", pc.Save)

	upload := posts.Group("", middleware.RequestTimeout(uploadTimeout))
	upload.POST("", pc.Create)
	upload.PUT(":id", pc.Update)
}

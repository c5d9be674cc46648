package route

import (
	"time"

	"github.com/bassista/snapgram/internal/api/controller"
	"github.com/bassista/snapgram/internal/api/middleware"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/gin-gonic/gin"
)

// NewAuthRouter sets up account and session routes.
func NewAuthRouter(timeout time.Duration, group *gin.RouterGroup, q *queries.Queries) {
	ac := controller.NewAuthController(q)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.POST("auth/sign-up", timeoutMiddleware, ac.SignUp)
	group.POST("auth/sign-in", timeoutMiddleware, ac.SignIn)
	group.POST("auth/sign-out", timeoutMiddleware, ac.SignOut)
	group.GET("session", ac.Session)
}

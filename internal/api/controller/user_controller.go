package controller

import (
	"net/http"

	"github.com/bassista/snapgram/internal/queries"
	"github.com/bassista/snapgram/internal/social"
	"github.com/gin-gonic/gin"
)

// UserController serves profiles and the profile post grid.
type UserController struct {
	q           *queries.Queries
	maxFileSize int64
}

func NewUserController(q *queries.Queries, maxFileSize int64) *UserController {
	return &UserController{q: q, maxFileSize: maxFileSize}
}

// Me handles GET /api/users/me.
func (uc *UserController) Me(c *gin.Context) {
	writeResult(c, uc.q.CurrentUser(c.Request.Context()))
}

// List handles GET /api/users.
func (uc *UserController) List(c *gin.Context) {
	writeResult(c, uc.q.Users(c.Request.Context()))
}

// Get handles GET /api/users/:id.
func (uc *UserController) Get(c *gin.Context) {
	writeResult(c, uc.q.User(c.Request.Context(), c.Param("id")))
}

// Posts handles GET /api/users/:id/posts.
func (uc *UserController) Posts(c *gin.Context) {
	writeResult(c, uc.q.UserPosts(c.Request.Context(), c.Param("id")))
}

// Update handles PUT /api/users/:id (multipart: name, bio, imageId, imageUrl, file).
// Only the signed-in user's own profile can be edited.
func (uc *UserController) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	me := uc.q.CurrentUser(ctx)
	if me.Data.ID == "" {
		writeError(c, "user-controller", me.Err)
		return
	}
	if me.Data.ID != id {
		forbidden(c, "cannot edit another user's profile")
		return
	}

	files, err := formFiles(c, uc.maxFileSize)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := uc.q.UpdateUser(ctx, social.UpdateUser{
		UserID:   id,
		Name:     c.PostForm("name"),
		Bio:      c.PostForm("bio"),
		ImageID:  c.DefaultPostForm("imageId", me.Data.ImageID),
		ImageURL: c.DefaultPostForm("imageUrl", me.Data.ImageURL),
		Files:    files,
	})
	if err != nil {
		writeError(c, "user-controller", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

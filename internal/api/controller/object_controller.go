package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/social"
	"github.com/gin-gonic/gin"
)

// ObjectController serves the preview URLs handed out by local object stores
// and the generated initials avatars.
type ObjectController struct {
	objects remote.ObjectStore
}

func NewObjectController(objects remote.ObjectStore) *ObjectController {
	return &ObjectController{objects: objects}
}

// Get handles GET /objects/:id. Stores that hand out their own URLs (S3) have
// nothing to serve here.
func (oc *ObjectController) Get(c *gin.Context) {
	reader, ok := oc.objects.(remote.ObjectReader)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": &ErrorBody{Kind: "NotFound", Message: "object store serves its own URLs"}})
		return
	}

	body, obj, err := reader.OpenObject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, "object-controller", err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", obj.ContentType)
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.WithComponent("object-controller").WithError(err).Warnf("streaming object %s", obj.ID)
	}
}

// Avatar handles GET /avatars/initials?name=.
func (oc *ObjectController) Avatar(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		badRequest(c, "name is required")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", []byte(social.InitialsSVG(name)))
}

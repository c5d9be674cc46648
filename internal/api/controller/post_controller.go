package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/bassista/snapgram/internal/social"
	"github.com/gin-gonic/gin"
)

// FeedResponse is a read of every loaded feed page.
type FeedResponse struct {
	ReadResponse[[]social.Post]
	HasMore bool `json:"hasMore"`
	Pages   int  `json:"pages"`
}

// SearchResponse carries the settled search term next to its results.
type SearchResponse struct {
	ReadResponse[[]social.Post]
	Term string `json:"term"`
}

type LikeResponse struct {
	Post  social.Post `json:"post"`
	Liked bool        `json:"liked"`
}

type SaveResponse struct {
	PostID string `json:"postId"`
	Saved  bool   `json:"saved"`
}

// PostController serves posts, the feed, search and the like/save toggles.
type PostController struct {
	q           *queries.Queries
	maxFileSize int64
}

func NewPostController(q *queries.Queries, maxFileSize int64) *PostController {
	return &PostController{q: q, maxFileSize: maxFileSize}
}

// Recent handles GET /api/posts/recent.
func (pc *PostController) Recent(c *gin.Context) {
	writeResult(c, pc.q.RecentPosts(c.Request.Context()))
}

// Feed handles GET /api/posts/feed. With next=1, or before any page is
// loaded, one more page is fetched first.
func (pc *PostController) Feed(c *gin.Context) {
	ctx := c.Request.Context()

	next, _ := strconv.ParseBool(c.DefaultQuery("next", "false"))
	if next || pc.q.FeedPages() == 0 {
		if page, _ := pc.q.FeedNext(ctx); page.Err != nil && page.Data == nil {
			writeResult(c, page)
			return
		}
	}

	status, body := readResponse(c, pc.q.Feed(ctx))
	c.JSON(status, FeedResponse{ReadResponse: body, HasMore: pc.q.FeedHasMore(), Pages: pc.q.FeedPages()})
}

// Search handles GET /api/posts/search?q=. Each call records q as typed input;
// results belong to the last term that settled, which may lag behind q.
func (pc *PostController) Search(c *gin.Context) {
	if q, ok := c.GetQuery("q"); ok {
		pc.q.SearchInput(q)
	}
	term, res := pc.q.SearchResults(c.Request.Context())
	status, body := readResponse(c, res)
	c.JSON(status, SearchResponse{ReadResponse: body, Term: term})
}

// Get handles GET /api/posts/:id.
func (pc *PostController) Get(c *gin.Context) {
	writeResult(c, pc.q.Post(c.Request.Context(), c.Param("id")))
}

// Create handles POST /api/posts (multipart: caption, location, tags, file).
func (pc *PostController) Create(c *gin.Context) {
	files, err := formFiles(c, pc.maxFileSize)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	post, err := pc.q.CreatePost(c.Request.Context(), social.NewPost{
		Caption:  c.PostForm("caption"),
		Location: c.PostForm("location"),
		Tags:     c.PostForm("tags"),
		Files:    files,
	})
	if err != nil {
		writeError(c, "post-controller", err)
		return
	}
	logger.WithComponent("post-controller").Infof("post %s created", post.ID)
	c.JSON(http.StatusCreated, post)
}

// ownPost resolves post id for a write. Only its creator may change it: without
// a session the answer is 401, for anyone else 403.
func (pc *PostController) ownPost(c *gin.Context, id string) (social.Post, bool) {
	ctx := c.Request.Context()
	me := pc.q.CurrentUser(ctx)
	if me.Data.ID == "" {
		writeError(c, "post-controller", me.Err)
		return social.Post{}, false
	}
	current := pc.q.Post(ctx, id)
	if current.Data.ID == "" {
		writeError(c, "post-controller", current.Err)
		return social.Post{}, false
	}
	if current.Data.Creator != me.Data.ID {
		forbidden(c, "only the creator can change this post")
		return social.Post{}, false
	}
	return current.Data, true
}

// Update handles PUT /api/posts/:id. Omitted fields keep their current value.
func (pc *PostController) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	cur, ok := pc.ownPost(c, id)
	if !ok {
		return
	}
	files, err := formFiles(c, pc.maxFileSize)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	post, err := pc.q.UpdatePost(ctx, social.UpdatePost{
		PostID:   id,
		Caption:  c.DefaultPostForm("caption", cur.Caption),
		Location: c.DefaultPostForm("location", cur.Location),
		Tags:     c.DefaultPostForm("tags", strings.Join(cur.Tags, ",")),
		ImageID:  cur.ImageID,
		ImageURL: cur.ImageURL,
		Files:    files,
	})
	if err != nil {
		writeError(c, "post-controller", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// Delete handles DELETE /api/posts/:id. The post's own image goes with it.
func (pc *PostController) Delete(c *gin.Context) {
	id := c.Param("id")
	post, ok := pc.ownPost(c, id)
	if !ok {
		return
	}
	if err := pc.q.DeletePost(c.Request.Context(), id, post.ImageID); err != nil {
		writeError(c, "post-controller", err)
		return
	}
	logger.WithComponent("post-controller").Infof("post %s deleted", id)
	c.Status(http.StatusNoContent)
}

// Like handles POST /api/posts/:id/like.
func (pc *PostController) Like(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := pc.q.ToggleLike(ctx, c.Param("id"))
	if err != nil {
		writeError(c, "post-controller", err)
		return
	}
	me := pc.q.Session().User
	liked := me != nil && social.IsLiked(post.Likes, me.ID)
	c.JSON(http.StatusOK, LikeResponse{Post: post, Liked: liked})
}

// Save handles POST /api/posts/:id/save.
func (pc *PostController) Save(c *gin.Context) {
	id := c.Param("id")
	saved, err := pc.q.ToggleSave(c.Request.Context(), id)
	if err != nil {
		writeError(c, "post-controller", err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{PostID: id, Saved: saved})
}

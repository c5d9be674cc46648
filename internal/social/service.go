package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// listAllLimit is the page size used when an operation walks a whole collection.
const listAllLimit = 100

const savedPostsConcurrency = 4

// Settings are the tunables of the resource operations.
type Settings struct {
	// PageSize bounds every GetInfinitePosts page.
	PageSize    int
	RecentLimit int
	// PublicURL prefixes the initials avatar of new accounts.
	PublicURL string
}

// Service exposes one coarse-grained operation per domain action, composed
// from remote client calls. It holds no cache.
type Service struct {
	client    *remote.Client
	ids       remote.IDGenerator
	validator *validator.Validate
	settings  Settings
}

func NewService(client *remote.Client, ids remote.IDGenerator, settings Settings) *Service {
	if ids == nil {
		ids = remote.UUIDGenerator{}
	}
	if settings.PageSize <= 0 {
		settings.PageSize = 9
	}
	if settings.RecentLimit <= 0 {
		settings.RecentLimit = 20
	}
	return &Service{client: client, ids: ids, validator: validator.New(), settings: settings}
}

// PageSize returns the feed page size.
func (s *Service) PageSize() int { return s.settings.PageSize }

func (s *Service) validate(v any) error {
	if err := s.validator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", remote.ErrInvalidArgument, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", remote.ErrInvalidArgument, err)
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", remote.ErrInvalidArgument, name)
	}
	return nil
}

// persistence classifies a document write failure, keeping NotFound visible.
func persistence(op string, err error) error {
	if errors.Is(err, remote.ErrPersistence) || errors.Is(err, remote.ErrNotFound) || errors.Is(err, remote.ErrInvalidArgument) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, remote.ErrPersistence, err)
}

// CreateAccount creates the identity and then the linked profile document.
// A failed profile write leaves the identity behind; it is logged, not undone.
func (s *Service) CreateAccount(ctx context.Context, in NewUser) (User, error) {
	if err := s.validate(in); err != nil {
		return User{}, err
	}

	identity, err := s.client.CreateIdentity(ctx, in.Email, in.Password, in.Name)
	if err != nil {
		return User{}, fmt.Errorf("create identity: %w", err)
	}

	doc, err := s.client.CreateDocument(ctx, UsersCollection, s.ids.New(), map[string]any{
		"accountId": identity.ID,
		"name":      identity.Name,
		"username":  in.Username,
		"email":     identity.Email,
		"imageUrl":  AvatarURL(s.settings.PublicURL, in.Name),
		"imageId":   "",
		"bio":       "",
	})
	if err != nil {
		logger.WithComponent("social").WithError(err).Warnf("identity %s has no profile document", identity.ID)
		return User{}, fmt.Errorf("create profile: %w: %w", remote.ErrPersistence, err)
	}
	return userFromDocument(doc)
}

func (s *Service) SignIn(ctx context.Context, in Credentials) (remote.Session, error) {
	if err := s.validate(in); err != nil {
		return remote.Session{}, err
	}
	session, err := s.client.CreateSession(ctx, in.Email, in.Password)
	if err != nil {
		return remote.Session{}, fmt.Errorf("sign in: %w", err)
	}
	return session, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if err := s.client.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// GetCurrentUser resolves the session identity, its linked profile and its bookmarks.
func (s *Service) GetCurrentUser(ctx context.Context, token string) (CurrentUser, error) {
	identity, err := s.client.GetCurrentIdentity(ctx, token)
	if err != nil {
		return CurrentUser{}, fmt.Errorf("current identity: %w", err)
	}

	page, err := s.client.ListDocuments(ctx, UsersCollection, remote.Query{
		Filters: []remote.Filter{{Field: "accountId", Value: identity.ID}},
		Limit:   1,
	})
	if err != nil {
		return CurrentUser{}, fmt.Errorf("profile lookup: %w", err)
	}
	if len(page.Documents) == 0 {
		return CurrentUser{}, fmt.Errorf("profile for identity %s: %w", identity.ID, remote.ErrNotFound)
	}
	user, err := userFromDocument(page.Documents[0])
	if err != nil {
		return CurrentUser{}, err
	}

	docs, err := s.listAll(ctx, SavesCollection, []remote.Filter{{Field: "user", Value: user.ID}})
	if err != nil {
		return CurrentUser{}, fmt.Errorf("saves lookup: %w", err)
	}
	saves := make([]SavedPostRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := saveFromDocument(doc)
		if err != nil {
			return CurrentUser{}, err
		}
		saves = append(saves, rec)
	}

	cur := CurrentUser{User: user, Saves: saves}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.listAll(gctx, PostsCollection, []remote.Filter{{Field: "likes", Value: user.ID, Contains: true}})
		if err != nil {
			return fmt.Errorf("liked posts lookup: %w", err)
		}
		cur.Liked, err = postsFromDocuments(docs)
		return err
	})
	g.Go(func() error {
		var err error
		cur.Saved, err = s.savedPosts(gctx, saves)
		return err
	})
	if err := g.Wait(); err != nil {
		return CurrentUser{}, err
	}
	return cur, nil
}

// savedPosts resolves the bookmarked posts. A bookmark whose post was deleted
// is skipped.
func (s *Service) savedPosts(ctx context.Context, saves []SavedPostRecord) ([]Post, error) {
	found := make([]*Post, len(saves))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(savedPostsConcurrency)
	for i, rec := range saves {
		g.Go(func() error {
			doc, err := s.client.GetDocument(gctx, PostsCollection, rec.Post)
			if errors.Is(err, remote.ErrNotFound) {
				logger.WithComponent("social").Debugf("saved post %s no longer exists", rec.Post)
				return nil
			}
			if err != nil {
				return fmt.Errorf("saved post %s: %w", rec.Post, err)
			}
			p, err := postFromDocument(doc)
			if err != nil {
				return err
			}
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(saves))
	for _, p := range found {
		if p != nil {
			posts = append(posts, *p)
		}
	}
	return posts, nil
}

// listAll walks a filtered collection page by page, newest first.
func (s *Service) listAll(ctx context.Context, collection string, filters []remote.Filter) ([]remote.Document, error) {
	var all []remote.Document
	cursor := ""
	for {
		page, err := s.client.ListDocuments(ctx, collection, remote.Query{
			Filters:     filters,
			OrderBy:     remote.SortCreatedAt,
			CursorAfter: cursor,
			Limit:       listAllLimit,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Documents...)
		if len(page.Documents) < listAllLimit {
			return all, nil
		}
		cursor = page.Documents[len(page.Documents)-1].ID
	}
}

func (s *Service) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := required("user id", id); err != nil {
		return User{}, err
	}
	doc, err := s.client.GetDocument(ctx, UsersCollection, id)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return userFromDocument(doc)
}

// GetUsers lists the newest profiles. limit <= 0 uses the store default.
func (s *Service) GetUsers(ctx context.Context, limit int) ([]User, error) {
	if limit < 0 {
		limit = 0
	}
	page, err := s.client.ListDocuments(ctx, UsersCollection, remote.Query{OrderBy: remote.SortCreatedAt, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(page.Documents))
	for _, doc := range page.Documents {
		u, err := userFromDocument(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

type imageRef struct {
	id  string
	url string
}

// uploadSteps appends the upload and preview steps for file. The uploaded object
// is deleted again if a later step fails.
func (s *Service) uploadSteps(saga *Saga, file File, image *imageRef) {
	var uploaded remote.Object
	saga.Step("upload",
		func(ctx context.Context) error {
			obj, err := s.client.UploadObject(ctx, file.upload())
			if err != nil {
				if errors.Is(err, remote.ErrUpload) {
					return err
				}
				return fmt.Errorf("%w: %w", remote.ErrUpload, err)
			}
			uploaded = obj
			image.id = obj.ID
			return nil
		},
		func(ctx context.Context) error {
			return s.client.DeleteObject(ctx, uploaded.ID)
		},
	)
	saga.Step("preview",
		func(ctx context.Context) error {
			u, err := s.client.GetObjectPreviewURL(ctx, uploaded.ID)
			if err != nil {
				return fmt.Errorf("%w: preview %s: %w", remote.ErrUpload, uploaded.ID, err)
			}
			if u == "" {
				return fmt.Errorf("%w: empty preview url for %s", remote.ErrUpload, uploaded.ID)
			}
			image.url = u
			return nil
		},
		nil,
	)
}

// deleteObjectQuietly removes a replaced or orphaned object. Failures are logged only.
func (s *Service) deleteObjectQuietly(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.client.DeleteObject(ctx, id); err != nil {
		logger.WithComponent("social").WithError(err).Warnf("failed to delete object %s", id)
	}
}

// UpdateUser optionally replaces the profile image. The previous image is deleted
// only after the profile document was updated.
func (s *Service) UpdateUser(ctx context.Context, in UpdateUser) (User, error) {
	if err := s.validate(in); err != nil {
		return User{}, err
	}

	image := imageRef{id: in.ImageID, url: in.ImageURL}
	replacing := len(in.Files) > 0
	var updated remote.Document

	saga := NewSaga("update-user")
	if replacing {
		s.uploadSteps(saga, in.Files[0], &image)
	}
	saga.Step("update-document", func(ctx context.Context) error {
		doc, err := s.client.UpdateDocument(ctx, UsersCollection, in.UserID, map[string]any{
			"name":     in.Name,
			"bio":      in.Bio,
			"imageUrl": image.url,
			"imageId":  image.id,
		})
		if err != nil {
			return persistence("update user", err)
		}
		updated = doc
		return nil
	}, nil)

	if err := saga.Run(ctx); err != nil {
		return User{}, err
	}
	if replacing && in.ImageID != "" && in.ImageID != image.id {
		s.deleteObjectQuietly(ctx, in.ImageID)
	}
	return userFromDocument(updated)
}

// CreatePost uploads the image, resolves its preview URL and writes the post.
// If the document write fails the uploaded object is deleted again.
func (s *Service) CreatePost(ctx context.Context, in NewPost) (Post, error) {
	if err := s.validate(in); err != nil {
		return Post{}, err
	}

	var image imageRef
	var created remote.Document

	saga := NewSaga("create-post")
	s.uploadSteps(saga, in.Files[0], &image)
	saga.Step("create-document", func(ctx context.Context) error {
		doc, err := s.client.CreateDocument(ctx, PostsCollection, s.ids.New(), map[string]any{
			"creator":  in.UserID,
			"caption":  in.Caption,
			"imageUrl": image.url,
			"imageId":  image.id,
			"location": in.Location,
			"tags":     ParseTags(in.Tags),
			"likes":    []string{},
		})
		if err != nil {
			return persistence("create post", err)
		}
		created = doc
		return nil
	}, nil)

	if err := saga.Run(ctx); err != nil {
		return Post{}, err
	}
	return postFromDocument(created)
}

// UpdatePost optionally replaces the image. The old object is deleted only after
// the document update succeeded; on failure the new object is deleted instead.
func (s *Service) UpdatePost(ctx context.Context, in UpdatePost) (Post, error) {
	if err := s.validate(in); err != nil {
		return Post{}, err
	}

	image := imageRef{id: in.ImageID, url: in.ImageURL}
	replacing := len(in.Files) > 0
	var updated remote.Document

	saga := NewSaga("update-post")
	if replacing {
		s.uploadSteps(saga, in.Files[0], &image)
	}
	saga.Step("update-document", func(ctx context.Context) error {
		doc, err := s.client.UpdateDocument(ctx, PostsCollection, in.PostID, map[string]any{
			"caption":  in.Caption,
			"imageUrl": image.url,
			"imageId":  image.id,
			"location": in.Location,
			"tags":     ParseTags(in.Tags),
		})
		if err != nil {
			return persistence("update post", err)
		}
		updated = doc
		return nil
	}, nil)

	if err := saga.Run(ctx); err != nil {
		return Post{}, err
	}
	if replacing && in.ImageID != "" && in.ImageID != image.id {
		s.deleteObjectQuietly(ctx, in.ImageID)
	}
	return postFromDocument(updated)
}

// DeletePost removes the document and then its image. The document removal is
// authoritative: a failure deleting the image is logged and not returned.
func (s *Service) DeletePost(ctx context.Context, postID, imageID string) error {
	if postID == "" || imageID == "" {
		return fmt.Errorf("%w: post id and image id are required", remote.ErrInvalidArgument)
	}
	if err := s.client.DeleteDocument(ctx, PostsCollection, postID); err != nil {
		return persistence("delete post", err)
	}
	s.deleteObjectQuietly(ctx, imageID)
	return nil
}

// LikePost overwrites the liker set with likes. Last writer wins.
func (s *Service) LikePost(ctx context.Context, postID string, likes []string) (Post, error) {
	if err := required("post id", postID); err != nil {
		return Post{}, err
	}
	doc, err := s.client.UpdateDocument(ctx, PostsCollection, postID, map[string]any{"likes": dedupe(likes)})
	if err != nil {
		return Post{}, persistence("like post", err)
	}
	return postFromDocument(doc)
}

// SavePost creates a bookmark. Callers check FindSavedRecord first to avoid duplicates.
func (s *Service) SavePost(ctx context.Context, userID, postID string) (SavedPostRecord, error) {
	if err := required("user id", userID); err != nil {
		return SavedPostRecord{}, err
	}
	if err := required("post id", postID); err != nil {
		return SavedPostRecord{}, err
	}
	doc, err := s.client.CreateDocument(ctx, SavesCollection, s.ids.New(), map[string]any{"user": userID, "post": postID})
	if err != nil {
		return SavedPostRecord{}, persistence("save post", err)
	}
	return saveFromDocument(doc)
}

func (s *Service) UnsavePost(ctx context.Context, recordID string) error {
	if err := required("saved record id", recordID); err != nil {
		return err
	}
	if err := s.client.DeleteDocument(ctx, SavesCollection, recordID); err != nil {
		return persistence("unsave post", err)
	}
	return nil
}

func (s *Service) GetPostByID(ctx context.Context, id string) (Post, error) {
	if err := required("post id", id); err != nil {
		return Post{}, err
	}
	doc, err := s.client.GetDocument(ctx, PostsCollection, id)
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return postFromDocument(doc)
}

func (s *Service) GetRecentPosts(ctx context.Context) ([]Post, error) {
	return s.listPosts(ctx, remote.Query{OrderBy: remote.SortCreatedAt, Limit: s.settings.RecentLimit})
}

// GetInfinitePosts returns the feed page after cursor, the id of the last post of
// the previous page ("" for the first page). An empty page marks the end.
func (s *Service) GetInfinitePosts(ctx context.Context, cursor string) ([]Post, error) {
	return s.listPosts(ctx, remote.Query{OrderBy: remote.SortUpdatedAt, CursorAfter: cursor, Limit: s.settings.PageSize})
}

func (s *Service) SearchPosts(ctx context.Context, term string) ([]Post, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is empty", remote.ErrInvalidArgument)
	}
	return s.listPosts(ctx, remote.Query{Search: &remote.Search{Field: "caption", Term: term}, OrderBy: remote.SortCreatedAt})
}

func (s *Service) GetUserPosts(ctx context.Context, userID string) ([]Post, error) {
	if err := required("user id", userID); err != nil {
		return nil, err
	}
	docs, err := s.listAll(ctx, PostsCollection, []remote.Filter{{Field: "creator", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("list user posts: %w", err)
	}
	return postsFromDocuments(docs)
}

func (s *Service) listPosts(ctx context.Context, q remote.Query) ([]Post, error) {
	page, err := s.client.ListDocuments(ctx, PostsCollection, q)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return postsFromDocuments(page.Documents)
}

// Package queries is the presentation boundary: cached reads returning
// (data, isLoading, isStale) and mutations that apply the invalidation table.
package queries

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bassista/snapgram/internal/cache"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/session"
	"github.com/bassista/snapgram/internal/social"
)

type Options struct {
	SearchDebounce time.Duration
	UsersLimit     int
}

type Queries struct {
	svc        *social.Service
	cache      *cache.Coordinator
	session    *session.Bootstrap
	usersLimit int

	search *cache.Search[[]social.Post]

	mu   sync.Mutex
	feed *cache.Pager[social.Post]
}

func New(svc *social.Service, c *cache.Coordinator, boot *session.Bootstrap, opts Options) *Queries {
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = 500 * time.Millisecond
	}
	if opts.UsersLimit <= 0 {
		opts.UsersLimit = 10
	}
	q := &Queries{svc: svc, cache: c, session: boot, usersLimit: opts.UsersLimit}
	q.search = cache.NewSearch(c, opts.SearchDebounce, svc.SearchPosts)
	q.feed = q.newFeed()
	return q
}

func (q *Queries) newFeed() *cache.Pager[social.Post] {
	return cache.NewPager(q.cache, func(p social.Post) string { return p.ID }, q.svc.GetInfinitePosts)
}

func (q *Queries) pager() *cache.Pager[social.Post] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.feed
}

// Close stops a pending search settle.
func (q *Queries) Close() {
	q.search.Stop()
}

func (q *Queries) Session() session.State {
	return q.session.State()
}

func (q *Queries) CurrentUser(ctx context.Context) cache.Result[social.CurrentUser] {
	return q.session.CurrentUser(ctx)
}

func (q *Queries) User(ctx context.Context, id string) cache.Result[social.User] {
	return cache.Fetch(ctx, q.cache, cache.UserKey(id), func(ctx context.Context) (social.User, error) {
		return q.svc.GetUserByID(ctx, id)
	})
}

func (q *Queries) Users(ctx context.Context) cache.Result[[]social.User] {
	limit := q.usersLimit
	return cache.Fetch(ctx, q.cache, cache.UsersKey(limit), func(ctx context.Context) ([]social.User, error) {
		return q.svc.GetUsers(ctx, limit)
	})
}

func (q *Queries) Post(ctx context.Context, id string) cache.Result[social.Post] {
	return cache.Fetch(ctx, q.cache, cache.PostKey(id), func(ctx context.Context) (social.Post, error) {
		return q.svc.GetPostByID(ctx, id)
	})
}

func (q *Queries) RecentPosts(ctx context.Context) cache.Result[[]social.Post] {
	return cache.Fetch(ctx, q.cache, cache.RecentPostsKey(), q.svc.GetRecentPosts)
}

func (q *Queries) UserPosts(ctx context.Context, userID string) cache.Result[[]social.Post] {
	return cache.Fetch(ctx, q.cache, cache.UserPostsKey(userID), func(ctx context.Context) ([]social.Post, error) {
		return q.svc.GetUserPosts(ctx, userID)
	})
}

// Feed returns every feed item loaded so far, refreshing stale pages first.
func (q *Queries) Feed(ctx context.Context) cache.Result[[]social.Post] {
	return q.pager().Items(ctx)
}

// FeedNext loads one more feed page. more is false once the feed is exhausted.
func (q *Queries) FeedNext(ctx context.Context) (cache.Result[[]social.Post], bool) {
	return q.pager().Next(ctx)
}

func (q *Queries) FeedHasMore() bool {
	return q.pager().HasMore()
}

// FeedPages is the number of feed pages loaded so far.
func (q *Queries) FeedPages() int {
	return q.pager().Pages()
}

// SearchInput records typed search input; the query runs once input settles.
func (q *Queries) SearchInput(term string) {
	q.search.Input(term)
}

// SearchResults returns the settled term and its results. Without a settled
// term there are no results and nothing is fetched.
func (q *Queries) SearchResults(ctx context.Context) (string, cache.Result[[]social.Post]) {
	return q.search.Results(ctx)
}

func (q *Queries) me(ctx context.Context) (social.CurrentUser, error) {
	if q.session.Token() == "" {
		return social.CurrentUser{}, remote.ErrNoSession
	}
	res := q.CurrentUser(ctx)
	if res.Err != nil && res.Data.ID == "" {
		return social.CurrentUser{}, res.Err
	}
	return res.Data, nil
}

// identityChanged drops every cached projection together with the feed traversal.
func (q *Queries) identityChanged(ctx context.Context, w cache.Write) {
	q.cache.Apply(ctx, w, "")
	q.mu.Lock()
	q.feed = q.newFeed()
	q.mu.Unlock()
}

// SignUp creates the account, signs in and re-runs the session bootstrap.
func (q *Queries) SignUp(ctx context.Context, in social.NewUser) (session.State, error) {
	user, err := q.svc.CreateAccount(ctx, in)
	if err != nil {
		return q.Session(), err
	}
	q.cache.Apply(ctx, cache.WriteCreateAccount, user.ID)
	return q.SignIn(ctx, social.Credentials{Email: in.Email, Password: in.Password})
}

func (q *Queries) SignIn(ctx context.Context, in social.Credentials) (session.State, error) {
	s, err := q.svc.SignIn(ctx, in)
	if err != nil {
		return q.Session(), err
	}
	q.identityChanged(ctx, cache.WriteSignIn)
	state, err := q.session.Establish(ctx, s.Token)
	if err != nil {
		return state, err
	}
	if state.Status != session.StatusAuthenticated {
		return state, fmt.Errorf("session check: %w", state.Err)
	}
	return state, nil
}

// SignOut ends the remote session if there is one and always forgets it locally.
func (q *Queries) SignOut(ctx context.Context) error {
	var remoteErr error
	if token := q.session.Token(); token != "" {
		if err := q.svc.SignOut(ctx, token); err != nil && !errors.Is(err, remote.ErrNoSession) {
			remoteErr = err
		}
	}
	localErr := q.session.End()
	q.identityChanged(ctx, cache.WriteSignOut)
	return errors.Join(remoteErr, localErr)
}

// CreatePost creates a post authored by the signed-in user.
func (q *Queries) CreatePost(ctx context.Context, in social.NewPost) (social.Post, error) {
	me, err := q.me(ctx)
	if err != nil {
		return social.Post{}, err
	}
	in.UserID = me.ID
	post, err := q.svc.CreatePost(ctx, in)
	if err != nil {
		return social.Post{}, err
	}
	q.cache.Apply(ctx, cache.WriteCreatePost, post.ID)
	return post, nil
}

func (q *Queries) UpdatePost(ctx context.Context, in social.UpdatePost) (social.Post, error) {
	post, err := q.svc.UpdatePost(ctx, in)
	if err != nil {
		return social.Post{}, err
	}
	q.cache.Apply(ctx, cache.WriteUpdatePost, post.ID)
	return post, nil
}

func (q *Queries) DeletePost(ctx context.Context, postID, imageID string) error {
	if err := q.svc.DeletePost(ctx, postID, imageID); err != nil {
		return err
	}
	q.cache.Apply(ctx, cache.WriteDeletePost, postID)
	return nil
}

func (q *Queries) UpdateUser(ctx context.Context, in social.UpdateUser) (social.User, error) {
	user, err := q.svc.UpdateUser(ctx, in)
	if err != nil {
		return social.User{}, err
	}
	q.cache.Apply(ctx, cache.WriteUpdateUser, user.ID)
	return user, nil
}

// ToggleLike flips the signed-in user in the liker set of postID. The cached
// post and recent posts show the new set until the write settles.
func (q *Queries) ToggleLike(ctx context.Context, postID string) (social.Post, error) {
	me, err := q.me(ctx)
	if err != nil {
		return social.Post{}, err
	}
	current := q.Post(ctx, postID)
	if current.Err != nil && current.Data.ID == "" {
		return social.Post{}, current.Err
	}
	likes := social.ToggleLike(current.Data.Likes, me.ID)

	withLikes := func(p social.Post) social.Post {
		if p.ID == postID {
			p.Likes = likes
		}
		return p
	}
	patches := []cache.Patch{
		cache.PatchOf(cache.PostKey(postID), withLikes),
		cache.PatchOf(cache.RecentPostsKey(), func(posts []social.Post) []social.Post {
			out := make([]social.Post, len(posts))
			for i, p := range posts {
				out[i] = withLikes(p)
			}
			return out
		}),
	}

	var updated social.Post
	err = q.cache.Mutate(ctx, cache.WriteLikePost, postID, patches, func(ctx context.Context) error {
		p, err := q.svc.LikePost(ctx, postID, likes)
		updated = p
		return err
	})
	if err != nil {
		return social.Post{}, err
	}
	return updated, nil
}

// ToggleSave bookmarks postID for the signed-in user, or removes the existing
// bookmark. It reports whether the post is saved afterwards.
func (q *Queries) ToggleSave(ctx context.Context, postID string) (bool, error) {
	me, err := q.me(ctx)
	if err != nil {
		return false, err
	}
	log := logger.WithComponent("queries")

	if rec, ok := social.FindSavedRecord(me.Saves, postID); ok {
		patch := cache.PatchOf(cache.CurrentUserKey(), func(u social.CurrentUser) social.CurrentUser {
			saves := make([]social.SavedPostRecord, 0, len(u.Saves))
			for _, s := range u.Saves {
				if s.ID != rec.ID {
					saves = append(saves, s)
				}
			}
			u.Saves = saves
			kept := make([]social.Post, 0, len(u.Saved))
			for _, p := range u.Saved {
				if p.ID != postID {
					kept = append(kept, p)
				}
			}
			u.Saved = kept
			return u
		})
		err := q.cache.Mutate(ctx, cache.WriteUnsavePost, postID, []cache.Patch{patch}, func(ctx context.Context) error {
			return q.svc.UnsavePost(ctx, rec.ID)
		})
		if err != nil {
			return true, err
		}
		log.Debugf("post %s unsaved", postID)
		return false, nil
	}

	patch := cache.PatchOf(cache.CurrentUserKey(), func(u social.CurrentUser) social.CurrentUser {
		saves := append(make([]social.SavedPostRecord, 0, len(u.Saves)+1), u.Saves...)
		u.Saves = append(saves, social.SavedPostRecord{User: me.ID, Post: postID})
		return u
	})
	err = q.cache.Mutate(ctx, cache.WriteSavePost, postID, []cache.Patch{patch}, func(ctx context.Context) error {
		_, err := q.svc.SavePost(ctx, me.ID, postID)
		return err
	})
	if err != nil {
		return false, err
	}
	log.Debugf("post %s saved", postID)
	return true, nil
}

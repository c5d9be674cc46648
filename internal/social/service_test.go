package social

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/remote/remotetest"
	"github.com/bassista/snapgram/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *remotetest.Fixture) {
	t.Helper()
	fx := remotetest.NewFixture(t)
	svc := NewService(fx.Client, testutil.NewStubIDGenerator(), Settings{PageSize: 9, RecentLimit: 20, PublicURL: remotetest.PublicURL})
	return svc, fx
}

func image() []File {
	return []File{{Name: "img.png", ContentType: "image/png", Data: []byte("png")}}
}

func signUp(t *testing.T, svc *Service, email string) (User, remote.Session) {
	t.Helper()
	ctx := context.Background()
	user, err := svc.CreateAccount(ctx, NewUser{Name: "Ada Lovelace", Username: "ada_l", Email: email, Password: "correct horse"})
	require.NoError(t, err)
	session, err := svc.SignIn(ctx, Credentials{Email: email, Password: "correct horse"})
	require.NoError(t, err)
	return user, session
}

func TestService_CreatePost_ParsesTagsAndStoresImage(t *testing.T) {
	svc, fx := newTestService(t)

	post, err := svc.CreatePost(context.Background(), NewPost{UserID: "U", Caption: "hi", Files: image(), Tags: "a,b, c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, post.Tags)
	assert.NotEmpty(t, post.ImageID)
	assert.Equal(t, remotetest.PublicURL+"/objects/"+post.ImageID, post.ImageURL)
	assert.Equal(t, "U", post.Creator)
	assert.Empty(t, post.Likes)
	assert.Equal(t, 1, fx.Objects.Len())
}

func TestService_CreatePost_CompensatesFailedDocumentWrite(t *testing.T) {
	svc, fx := newTestService(t)
	fx.Docs.FailCreate(PostsCollection, fmt.Errorf("%w: disk full", remote.ErrPersistence))

	_, err := svc.CreatePost(context.Background(), NewPost{UserID: "U", Caption: "hi", Files: image()})

	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrPersistence)
	assert.Equal(t, "PersistenceError", remote.KindOf(err))
	assert.Equal(t, 0, fx.Objects.Len(), "uploaded object must be deleted")

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "create-document", sagaErr.Step)
	assert.NoError(t, sagaErr.Compensation)
}

func TestService_CreatePost_UploadFailureWritesNoDocument(t *testing.T) {
	svc, fx := newTestService(t)

	_, err := svc.CreatePost(context.Background(), NewPost{UserID: "U", Files: []File{{Name: "empty.png"}}})

	assert.ErrorIs(t, err, remote.ErrUpload)
	page, err := fx.Memory.ListDocuments(context.Background(), PostsCollection, remote.Query{})
	require.NoError(t, err)
	assert.Empty(t, page.Documents)
}

func TestService_CreatePost_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewPost
	}{
		{"no files", NewPost{UserID: "U"}},
		{"two files", NewPost{UserID: "U", Files: append(image(), image()...)}},
		{"no user", NewPost{Files: image()}},
		{"long location", NewPost{UserID: "U", Files: image(), Location: string(make([]byte, 101))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.in)
			assert.ErrorIs(t, err, remote.ErrInvalidArgument)
		})
	}
}

func TestService_DeletePost_RequiresIDsWithoutRemoteCalls(t *testing.T) {
	m := &remotetest.Mock{}
	svc := NewService(m.Client(), nil, Settings{})

	err := svc.DeletePost(context.Background(), "", "x")

	assert.ErrorIs(t, err, remote.ErrInvalidArgument)
	assert.Equal(t, "InvalidArgument", remote.KindOf(err))
	m.AssertExpectations(t)
	assert.Empty(t, m.Calls, "no remote call may be issued")
}

func TestService_DeletePost_ObjectFailureIsNotFatal(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, NewPost{UserID: "U", Files: image()})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(ctx, post.ID, "missing-object"))
	_, err = svc.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, 1, fx.Objects.Len())

	assert.ErrorIs(t, svc.DeletePost(ctx, post.ID, post.ImageID), remote.ErrNotFound)
}

func TestService_UpdatePost_ReplacesImageAfterWrite(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, NewPost{UserID: "U", Caption: "v1", Files: image(), Tags: "x"})
	require.NoError(t, err)

	updated, err := svc.UpdatePost(ctx, UpdatePost{
		PostID: post.ID, Caption: "v2", ImageID: post.ImageID, ImageURL: post.ImageURL, Files: image(), Tags: "y, z",
	})
	require.NoError(t, err)

	assert.Equal(t, "v2", updated.Caption)
	assert.Equal(t, []string{"y", "z"}, updated.Tags)
	assert.NotEqual(t, post.ImageID, updated.ImageID)
	assert.Equal(t, 1, fx.Objects.Len(), "old object deleted, new one kept")
	_, err = fx.Objects.GetObjectPreviewURL(ctx, post.ImageID)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestService_UpdatePost_FailureKeepsOldImage(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, NewPost{UserID: "U", Files: image()})
	require.NoError(t, err)
	fx.Docs.FailUpdate(PostsCollection, fmt.Errorf("%w: conflict", remote.ErrPersistence))

	_, err = svc.UpdatePost(ctx, UpdatePost{PostID: post.ID, ImageID: post.ImageID, ImageURL: post.ImageURL, Files: image()})

	assert.ErrorIs(t, err, remote.ErrPersistence)
	assert.Equal(t, 1, fx.Objects.Len())
	_, err = fx.Objects.GetObjectPreviewURL(ctx, post.ImageID)
	assert.NoError(t, err, "old object must survive a failed update")
}

func TestService_UpdatePost_WithoutFileKeepsImage(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, NewPost{UserID: "U", Files: image()})
	require.NoError(t, err)

	updated, err := svc.UpdatePost(ctx, UpdatePost{PostID: post.ID, Caption: "edited", ImageID: post.ImageID, ImageURL: post.ImageURL})
	require.NoError(t, err)
	assert.Equal(t, post.ImageID, updated.ImageID)
	assert.Equal(t, 1, fx.Objects.Len())
}

func TestService_LikePost_TogglesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, NewPost{UserID: "U", Files: image()})
	require.NoError(t, err)

	liked, err := svc.LikePost(ctx, post.ID, ToggleLike(post.Likes, "u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, liked.Likes)

	// a caller sending duplicates still gets a de-duplicated set
	liked, err = svc.LikePost(ctx, post.ID, []string{"u1", "u2", "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, liked.Likes)

	unliked, err := svc.LikePost(ctx, post.ID, ToggleLike(liked.Likes, "u1"))
	require.NoError(t, err)
	assert.False(t, IsLiked(unliked.Likes, "u1"))
	assert.Equal(t, []string{"u2"}, unliked.Likes)
}

func TestService_AccountLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, session := signUp(t, svc, "ada@example.com")
	assert.Equal(t, "ada_l", user.Username)
	assert.Equal(t, remotetest.PublicURL+"/avatars/initials?name=Ada+Lovelace", user.ImageURL)

	_, err := svc.CreateAccount(ctx, NewUser{Name: "Ada Again", Username: "ada_2", Email: "ada@example.com", Password: "12345678"})
	assert.ErrorIs(t, err, remote.ErrIdentityConflict)

	current, err := svc.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)
	assert.Empty(t, current.Saves)

	post, err := svc.CreatePost(ctx, NewPost{UserID: user.ID, Files: image()})
	require.NoError(t, err)
	rec, err := svc.SavePost(ctx, user.ID, post.ID)
	require.NoError(t, err)

	current, err = svc.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	found, ok := FindSavedRecord(current.Saves, post.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ID, found.ID)

	require.NoError(t, svc.UnsavePost(ctx, rec.ID))
	current, err = svc.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.False(t, IsSaved(current.Saves, post.ID))

	require.NoError(t, svc.SignOut(ctx, session.Token))
	_, err = svc.GetCurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, remote.ErrNoSession)
}

func TestService_CurrentUser_LikedAndSaved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, session := signUp(t, svc, "ada@example.com")

	kept, err := svc.CreatePost(ctx, NewPost{UserID: user.ID, Caption: "kept", Files: image()})
	require.NoError(t, err)
	gone, err := svc.CreatePost(ctx, NewPost{UserID: user.ID, Caption: "gone", Files: image()})
	require.NoError(t, err)
	other, err := svc.CreatePost(ctx, NewPost{UserID: user.ID, Caption: "other", Files: image()})
	require.NoError(t, err)

	_, err = svc.LikePost(ctx, kept.ID, []string{user.ID})
	require.NoError(t, err)
	_, err = svc.LikePost(ctx, other.ID, []string{"someone-else"})
	require.NoError(t, err)
	_, err = svc.SavePost(ctx, user.ID, kept.ID)
	require.NoError(t, err)
	_, err = svc.SavePost(ctx, user.ID, gone.ID)
	require.NoError(t, err)

	current, err := svc.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	require.Len(t, current.Liked, 1)
	assert.Equal(t, "kept", current.Liked[0].Caption)
	assert.Len(t, current.Saved, 2)

	require.NoError(t, svc.DeletePost(ctx, gone.ID, gone.ImageID))
	current, err = svc.GetCurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Len(t, current.Saves, 2, "the bookmark outlives its post")
	require.Len(t, current.Saved, 1)
	assert.Equal(t, kept.ID, current.Saved[0].ID)
}

func TestService_CreateAccount_Errors(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, NewUser{Name: "Ada", Username: "ada_l", Email: "ada@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, remote.ErrInvalidArgument, "name shorter than 4")

	fx.Docs.FailCreate(UsersCollection, errors.New("boom"))
	_, err = svc.CreateAccount(ctx, NewUser{Name: "Ada Lovelace", Username: "ada_l", Email: "ada@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, remote.ErrPersistence)

	// the identity is orphaned: signing in works but no profile is linked
	session, err := svc.SignIn(ctx, Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	_, err = svc.GetCurrentUser(ctx, session.Token)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestService_SignIn_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	signUp(t, svc, "ada@example.com")

	_, err := svc.SignIn(context.Background(), Credentials{Email: "ada@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, remote.ErrInvalidCredentials)

	_, err = svc.SignIn(context.Background(), Credentials{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, remote.ErrInvalidArgument)
}

func TestService_UpdateUser(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	user, _ := signUp(t, svc, "ada@example.com")

	updated, err := svc.UpdateUser(ctx, UpdateUser{UserID: user.ID, Name: "Ada K.", Bio: "math", ImageURL: user.ImageURL, Files: image()})
	require.NoError(t, err)
	assert.Equal(t, "Ada K.", updated.Name)
	assert.Equal(t, "math", updated.Bio)
	assert.NotEmpty(t, updated.ImageID)
	assert.Equal(t, 1, fx.Objects.Len())

	again, err := svc.UpdateUser(ctx, UpdateUser{UserID: user.ID, Name: "Ada K.", ImageID: updated.ImageID, ImageURL: updated.ImageURL, Files: image()})
	require.NoError(t, err)
	assert.NotEqual(t, updated.ImageID, again.ImageID)
	assert.Equal(t, 1, fx.Objects.Len(), "previous avatar deleted")

	_, err = svc.UpdateUser(ctx, UpdateUser{UserID: user.ID, Name: "A"})
	assert.ErrorIs(t, err, remote.ErrInvalidArgument)
}

func TestService_GetInfinitePosts_Terminates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := svc.CreatePost(ctx, NewPost{UserID: "U", Caption: fmt.Sprintf("post %d", i), Files: image()})
		require.NoError(t, err)
	}

	var sizes []int
	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := svc.GetInfinitePosts(ctx, cursor)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			assert.False(t, seen[p.ID])
			seen[p.ID] = true
		}
		cursor = page[len(page)-1].ID
	}
	assert.Equal(t, []int{9, 9, 2, 0}, sizes)

	first, err := svc.GetInfinitePosts(ctx, "")
	require.NoError(t, err)
	again, err := svc.GetInfinitePosts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestService_Listings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, NewPost{UserID: "u1", Caption: "sunset over rome", Files: image()})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, NewPost{UserID: "u2", Caption: "morning coffee", Files: image()})
	require.NoError(t, err)

	recent, err := svc.GetRecentPosts(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "morning coffee", recent[0].Caption)

	found, err := svc.SearchPosts(ctx, "Rome")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u1", found[0].Creator)

	_, err = svc.SearchPosts(ctx, "  ")
	assert.ErrorIs(t, err, remote.ErrInvalidArgument)

	mine, err := svc.GetUserPosts(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "morning coffee", mine[0].Caption)
}

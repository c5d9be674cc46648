package cache

// Write names a classified write operation.
type Write string

const (
	WriteCreatePost    Write = "CreatePost"
	WriteLikePost      Write = "LikePost"
	WriteSavePost      Write = "SavePost"
	WriteUnsavePost    Write = "UnsavePost"
	WriteUpdatePost    Write = "UpdatePost"
	WriteDeletePost    Write = "DeletePost"
	WriteUpdateUser    Write = "UpdateUser"
	WriteCreateAccount Write = "CreateAccount"
	WriteSignIn        Write = "SignIn"
	WriteSignOut       Write = "SignOut"
)

// Targets returns the keys a successful write marks stale. id is the post or
// user the write touched. Targets without an ID cover their whole scope.
// The table errs on the side of invalidating too much.
func Targets(w Write, id string) []Key {
	switch w {
	case WriteCreatePost:
		return []Key{scopeKey(ScopeFeed), RecentPostsKey(), scopeKey(ScopeUserPosts)}
	case WriteLikePost:
		return []Key{PostKey(id), RecentPostsKey(), scopeKey(ScopeFeed), CurrentUserKey()}
	case WriteSavePost, WriteUnsavePost:
		return []Key{RecentPostsKey(), scopeKey(ScopeFeed), CurrentUserKey()}
	case WriteUpdatePost:
		return []Key{PostKey(id), RecentPostsKey(), scopeKey(ScopeFeed), scopeKey(ScopeUserPosts)}
	case WriteDeletePost:
		return []Key{RecentPostsKey(), PostKey(id), scopeKey(ScopeFeed), scopeKey(ScopeUserPosts)}
	case WriteUpdateUser:
		return []Key{CurrentUserKey(), UserKey(id), scopeKey(ScopeUsers)}
	case WriteCreateAccount:
		return []Key{scopeKey(ScopeUsers)}
	default:
		return nil
	}
}

// ResetsCache reports whether w changes the acting identity, which makes every
// cached projection meaningless.
func (w Write) ResetsCache() bool {
	return w == WriteSignIn || w == WriteSignOut
}

package cache

import "strconv"

// Scope names a family of cached queries.
type Scope string

const (
	ScopeCurrentUser Scope = "currentUser"
	ScopeUser        Scope = "user"
	ScopeUsers       Scope = "users"
	ScopePost        Scope = "post"
	ScopeRecentPosts Scope = "recentPosts"
	ScopeFeed        Scope = "feed"
	ScopeSearch      Scope = "search"
	ScopeUserPosts   Scope = "userPosts"
)

// Key identifies one cached query result: the scope plus its parameter.
type Key struct {
	Scope Scope
	ID    string
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Scope)
	}
	return string(k.Scope) + "/" + k.ID
}

// Matches reports whether k, used as an invalidation target, covers other.
// A target without ID covers the whole scope.
func (k Key) Matches(other Key) bool {
	return k.Scope == other.Scope && (k.ID == "" || k.ID == other.ID)
}

func CurrentUserKey() Key { return Key{Scope: ScopeCurrentUser} }
func UserKey(id string) Key { return Key{Scope: ScopeUser, ID: id} }
func UsersKey(limit int) Key { return Key{Scope: ScopeUsers, ID: strconv.Itoa(limit)} }
func PostKey(id string) Key { return Key{Scope: ScopePost, ID: id} }
func RecentPostsKey() Key { return Key{Scope: ScopeRecentPosts} }
func FeedKey(cursor string) Key { return Key{Scope: ScopeFeed, ID: cursor} }
func SearchKey(term string) Key { return Key{Scope: ScopeSearch, ID: term} }
func UserPostsKey(userID string) Key { return Key{Scope: ScopeUserPosts, ID: userID} }
func scopeKey(scope Scope) Key { return Key{Scope: scope} }

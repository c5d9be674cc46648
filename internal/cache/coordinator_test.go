package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bassista/snapgram/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := NewCoordinator(Options{GCTime: time.Minute})
	t.Cleanup(c.Close)
	return c
}

func constFetcher(v string) Fetcher[string] {
	return func(context.Context) (string, error) { return v, nil }
}

func TestFetch_CachesFreshValue(t *testing.T) {
	c := newTestCoordinator(t)
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "post", nil
	}

	for i := 0; i < 3; i++ {
		res := Fetch(context.Background(), c, PostKey("p1"), fetch)
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Data != "post" || res.IsStale || res.IsLoading {
			t.Errorf("unexpected result %+v", res)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
}

func TestFetch_CoalescesConcurrentReads(t *testing.T) {
	c := newTestCoordinator(t)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "feed", nil
	}

	var wg sync.WaitGroup
	results := make([]Result[string], 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Fetch(context.Background(), c, FeedKey(""), fetch)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, "feed", res.Data)
		assert.NoError(t, res.Err)
	}
}

func TestFetch_RefetchesAfterInvalidationDuringFetch(t *testing.T) {
	c := newTestCoordinator(t)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "before-write", nil
		}
		return "after-write", nil
	}

	done := make(chan Result[string])
	go func() { done <- Fetch(context.Background(), c, PostKey("p1"), fetch) }()

	<-started
	c.Invalidate(PostKey("p1"))
	close(release)

	res := <-done
	assert.Equal(t, "after-write", res.Data)
	assert.False(t, res.IsStale)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ErrorKeepsPreviousValue(t *testing.T) {
	c := newTestCoordinator(t)
	boom := errors.New("offline")
	var fail atomic.Bool
	fetch := func(context.Context) (string, error) {
		if fail.Load() {
			return "", boom
		}
		return "v1", nil
	}

	res := Fetch(context.Background(), c, RecentPostsKey(), fetch)
	require.NoError(t, res.Err)

	fail.Store(true)
	c.Invalidate(RecentPostsKey())
	res = Fetch(context.Background(), c, RecentPostsKey(), fetch)

	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "v1", res.Data)
	assert.True(t, res.IsStale)
}

func TestFetch_NoFetcher(t *testing.T) {
	c := newTestCoordinator(t)
	res := Fetch[string](context.Background(), c, UserKey("u1"), nil)
	assert.ErrorIs(t, res.Err, ErrNoFetcher)
	assert.True(t, res.IsStale)
}

func TestPeek_NoFetcherReportsError(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	Peek[string](ctx, c, UserKey("u1"), nil)
	require.Eventually(t, func() bool {
		res := Peek[string](ctx, c, UserKey("u1"), nil)
		return errors.Is(res.Err, ErrNoFetcher)
	}, time.Second, 5*time.Millisecond)

	res := Peek[string](ctx, c, UserKey("u1"), nil)
	assert.True(t, res.IsStale)
	assert.Empty(t, res.Data)
}

func TestFetch_CancelledWaitLeavesFetchRunning(t *testing.T) {
	c := newTestCoordinator(t)
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		<-release
		return "user", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result[string])
	go func() { done <- Fetch(ctx, c, UserKey("u1"), fetch) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	res := <-done
	assert.ErrorIs(t, res.Err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		stale, ok := c.IsStale(UserKey("u1"))
		return ok && !stale
	}, time.Second, 5*time.Millisecond)
}

func TestPeek_StaleWhileRevalidate(t *testing.T) {
	c := newTestCoordinator(t)
	var version atomic.Int32
	version.Store(1)
	fetch := func(context.Context) (int32, error) { return version.Load(), nil }
	ctx := context.Background()

	first := Peek(ctx, c, CurrentUserKey(), fetch)
	assert.True(t, first.IsLoading)
	assert.True(t, first.IsStale)
	assert.Zero(t, first.Data)

	require.Eventually(t, func() bool {
		res := Peek(ctx, c, CurrentUserKey(), fetch)
		return !res.IsStale && res.Data == 1
	}, time.Second, 5*time.Millisecond)

	version.Store(2)
	c.Invalidate(CurrentUserKey())
	stale := Peek(ctx, c, CurrentUserKey(), fetch)
	assert.Equal(t, int32(1), stale.Data)
	assert.True(t, stale.IsStale)
	assert.False(t, stale.IsLoading)

	require.Eventually(t, func() bool {
		res := Peek(ctx, c, CurrentUserKey(), fetch)
		return !res.IsStale && res.Data == 2
	}, time.Second, 5*time.Millisecond)
}

func populate(t *testing.T, c *Coordinator, keys []Key) {
	t.Helper()
	for _, k := range keys {
		res := Fetch(context.Background(), c, k, constFetcher(k.String()))
		require.NoError(t, res.Err)
	}
}

func staleKeys(c *Coordinator, keys []Key) []string {
	var out []string
	for _, k := range keys {
		if stale, ok := c.IsStale(k); ok && stale {
			out = append(out, k.String())
		}
	}
	sort.Strings(out)
	return out
}

func TestApply_InvalidationTable(t *testing.T) {
	keys := []Key{
		CurrentUserKey(),
		UserKey("u1"),
		UserKey("u2"),
		UsersKey(10),
		PostKey("p1"),
		PostKey("p2"),
		RecentPostsKey(),
		FeedKey(""),
		FeedKey("p9"),
		SearchKey("app"),
		UserPostsKey("u1"),
	}

	tests := []struct {
		write Write
		id    string
		want  []string
	}{
		{WriteCreatePost, "p3", []string{"feed", "feed/p9", "recentPosts", "userPosts/u1"}},
		{WriteLikePost, "p1", []string{"currentUser", "feed", "feed/p9", "post/p1", "recentPosts"}},
		{WriteSavePost, "p1", []string{"currentUser", "feed", "feed/p9", "recentPosts"}},
		{WriteUnsavePost, "p1", []string{"currentUser", "feed", "feed/p9", "recentPosts"}},
		{WriteUpdatePost, "p1", []string{"feed", "feed/p9", "post/p1", "recentPosts", "userPosts/u1"}},
		{WriteDeletePost, "p2", []string{"feed", "feed/p9", "post/p2", "recentPosts", "userPosts/u1"}},
		{WriteUpdateUser, "u1", []string{"currentUser", "user/u1", "users/10"}},
		{WriteCreateAccount, "u3", []string{"users/10"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.write), func(t *testing.T) {
			c := newTestCoordinator(t)
			populate(t, c, keys)
			require.Empty(t, staleKeys(c, keys))

			n := c.Apply(context.Background(), tt.write, tt.id)

			assert.Equal(t, tt.want, staleKeys(c, keys))
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestApply_IdentityChangeResetsCache(t *testing.T) {
	for _, w := range []Write{WriteSignIn, WriteSignOut} {
		t.Run(string(w), func(t *testing.T) {
			c := newTestCoordinator(t)
			populate(t, c, []Key{CurrentUserKey(), FeedKey(""), PostKey("p1")})

			c.Apply(context.Background(), w, "")

			if c.Len() != 0 {
				t.Errorf("expected empty cache after %s, got %d entries", w, c.Len())
			}
		})
	}
}

func TestReset_DiscardsFetchInFlight(t *testing.T) {
	c := newTestCoordinator(t)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "old identity", nil
		}
		return "detached", nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		Fetch(context.Background(), c, CurrentUserKey(), fetch)
	}()
	<-started
	c.Reset()
	close(release)
	<-done

	if _, ok := c.IsStale(CurrentUserKey()); ok {
		t.Error("expected no entry after reset")
	}
}

func TestCoordinator_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	p := telemetry.NewProvider()
	t.Cleanup(func() { _ = p.Shutdown(ctx) })
	m, err := telemetry.NewCacheMetrics(p.Meter())
	require.NoError(t, err)

	c := NewCoordinator(Options{GCTime: time.Minute, Metrics: m})
	t.Cleanup(c.Close)

	Fetch(ctx, c, PostKey("p1"), constFetcher("x"))
	Fetch(ctx, c, PostKey("p1"), constFetcher("x"))
	c.Apply(ctx, WriteLikePost, "p1")

	got, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got["snapgram_cache_hit_total{snapgram_cache_scope=post}"])
	assert.Equal(t, int64(1), got["snapgram_cache_miss_total{snapgram_cache_scope=post}"])
	assert.Equal(t, int64(1), got["snapgram_cache_fetch_total{snapgram_cache_scope=post,snapgram_status=success}"])
	assert.Equal(t, int64(1), got["snapgram_cache_invalidation_total{snapgram_write=LikePost}"])
}

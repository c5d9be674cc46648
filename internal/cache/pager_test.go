package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedServer struct {
	mu       sync.Mutex
	ids      []string
	pageSize int
	cursors  []string
}

func newFeedServer(n, pageSize int) *feedServer {
	s := &feedServer{pageSize: pageSize}
	for i := 1; i <= n; i++ {
		s.ids = append(s.ids, fmt.Sprintf("p%02d", i))
	}
	return s
}

func (s *feedServer) page(_ context.Context, cursor string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = append(s.cursors, cursor)

	start := 0
	if cursor != "" {
		start = -1
		for i, id := range s.ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("cursor document %s: not found", cursor)
		}
	}
	end := min(start+s.pageSize, len(s.ids))
	return append([]string{}, s.ids[start:end]...), nil
}

func (s *feedServer) prepend(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append([]string{id}, s.ids...)
}

func (s *feedServer) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

func (s *feedServer) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cursors...)
}

func identity(s string) string { return s }

func TestPager_StopsOnEmptyPage(t *testing.T) {
	c := newTestCoordinator(t)
	srv := newFeedServer(20, 9)
	p := NewPager(c, identity, srv.page)
	ctx := context.Background()

	var sizes []int
	for {
		res, more := p.Next(ctx)
		require.NoError(t, res.Err)
		sizes = append(sizes, len(res.Data))
		if !more {
			break
		}
	}

	assert.Equal(t, []int{9, 9, 2, 0}, sizes)
	assert.Equal(t, []string{"", "p09", "p18", "p20"}, srv.requests())
	assert.False(t, p.HasMore())

	res, more := p.Next(ctx)
	assert.False(t, more)
	assert.Empty(t, res.Data)
	assert.Len(t, srv.requests(), 4, "no request after the end was reached")
	assert.Equal(t, 3, p.Pages())
}

func TestPager_DropsDuplicates(t *testing.T) {
	c := newTestCoordinator(t)
	pages := map[string][]string{
		"":  {"a", "b"},
		"b": {"b", "c"},
		"c": {},
	}
	p := NewPager(c, identity, func(_ context.Context, cursor string) ([]string, error) {
		return pages[cursor], nil
	})
	ctx := context.Background()

	first, _ := p.Next(ctx)
	second, _ := p.Next(ctx)
	_, more := p.Next(ctx)

	assert.Equal(t, []string{"a", "b"}, first.Data)
	assert.Equal(t, []string{"c"}, second.Data)
	assert.False(t, more)
	assert.Equal(t, []string{"a", "b", "c"}, p.Items(ctx).Data)
}

func TestPager_ItemsRefreshesStalePages(t *testing.T) {
	c := newTestCoordinator(t)
	srv := newFeedServer(20, 9)
	p := NewPager(c, identity, srv.page)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p.Next(ctx)
	}
	require.Len(t, p.Items(ctx).Data, 20)
	before := len(srv.requests())

	srv.prepend("p00")
	c.Apply(ctx, WriteCreatePost, "p00")

	res := p.Items(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Data, 21)
	assert.Equal(t, "p00", res.Data[0])
	assert.Equal(t, "p20", res.Data[20])
	assert.Equal(t, []string{"", "p08", "p17"}, srv.requests()[before:])

	seen := map[string]bool{}
	for _, id := range res.Data {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestPager_ItemsServesFreshPagesFromCache(t *testing.T) {
	c := newTestCoordinator(t)
	srv := newFeedServer(5, 9)
	p := NewPager(c, identity, srv.page)
	ctx := context.Background()

	p.Next(ctx)
	p.Next(ctx)
	n := len(srv.requests())

	assert.Len(t, p.Items(ctx).Data, 5)
	assert.Len(t, srv.requests(), n)
}

func TestPager_NextAfterCursorItemDeleted(t *testing.T) {
	c := newTestCoordinator(t)
	srv := newFeedServer(20, 9)
	p := NewPager(c, identity, srv.page)
	ctx := context.Background()

	first, more := p.Next(ctx)
	require.True(t, more)
	require.Equal(t, "p09", first.Data[8])

	srv.remove("p09")
	c.Apply(ctx, WriteDeletePost, "p09")

	second, more := p.Next(ctx)
	require.NoError(t, second.Err)
	assert.True(t, more)
	assert.Equal(t, []string{"p11", "p12", "p13", "p14", "p15", "p16", "p17", "p18", "p19"}, second.Data)

	for more {
		var res Result[[]string]
		res, more = p.Next(ctx)
		require.NoError(t, res.Err)
	}
	assert.False(t, p.HasMore())

	items := p.Items(ctx).Data
	assert.Len(t, items, 19)
	assert.NotContains(t, items, "p09")
	assert.Equal(t, "p10", items[8])
}

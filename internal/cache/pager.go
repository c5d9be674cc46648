package cache

import (
	"context"
	"sync"
)

// PageFetcher loads the page that follows cursor. An empty cursor is the first page.
type PageFetcher[T any] func(ctx context.Context, cursor string) ([]T, error)

type loadedPage[T any] struct {
	cursor string
	items  []T
	// last is the id of the final item as returned by the server, before dedupe.
	last string
}

// Pager walks a cursor-paginated listing. Pages are cached under FeedKey(cursor),
// the cursor being the id of the last item of the previous page.
type Pager[T any] struct {
	c     *Coordinator
	fetch PageFetcher[T]
	id    func(T) string

	mu    sync.Mutex
	pages []loadedPage[T]
	seen  map[string]struct{}
	done  bool
}

func NewPager[T any](c *Coordinator, id func(T) string, fetch PageFetcher[T]) *Pager[T] {
	return &Pager[T]{c: c, fetch: fetch, id: id, seen: map[string]struct{}{}}
}

// Next loads one more page and returns its items. more is false once a page
// came back empty; after that Next issues no further requests. Stale loaded
// pages are reloaded first, so the cursor never points at a deleted item.
func (p *Pager[T]) Next(ctx context.Context) (res Result[[]T], more bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.anyStaleLocked() {
		if reloaded := p.reloadLocked(ctx); reloaded.Err != nil {
			return Result[[]T]{Data: []T{}, IsStale: true, Err: reloaded.Err}, !p.done
		}
	}
	return p.nextLocked(ctx)
}

func (p *Pager[T]) nextLocked(ctx context.Context) (Result[[]T], bool) {
	if p.done {
		return Result[[]T]{Data: []T{}}, false
	}

	cursor := ""
	if n := len(p.pages); n > 0 {
		cursor = p.pages[n-1].last
	}

	raw := Fetch(ctx, p.c, FeedKey(cursor), func(ctx context.Context) ([]T, error) {
		return p.fetch(ctx, cursor)
	})
	if raw.Err != nil && raw.Data == nil {
		return Result[[]T]{Data: []T{}, IsStale: true, Err: raw.Err}, true
	}
	if len(raw.Data) == 0 {
		p.done = true
		return Result[[]T]{Data: []T{}, IsStale: raw.IsStale, Err: raw.Err}, false
	}

	items := make([]T, 0, len(raw.Data))
	for _, it := range raw.Data {
		id := p.id(it)
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = struct{}{}
		items = append(items, it)
	}
	p.pages = append(p.pages, loadedPage[T]{cursor: cursor, items: items, last: p.id(raw.Data[len(raw.Data)-1])})
	return Result[[]T]{Data: items, IsStale: raw.IsStale, State: raw.State, Err: raw.Err}, true
}

// Items returns every loaded item, refreshing stale pages first. Pages are
// reloaded in order from the first one, so a page that now ends on a different
// item moves the cursors of the pages after it.
func (p *Pager[T]) Items(ctx context.Context) Result[[]T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.anyStaleLocked() {
		return Result[[]T]{Data: p.flattenLocked()}
	}
	return p.reloadLocked(ctx)
}

// reloadLocked drops the loaded pages and fetches as many again from the start.
func (p *Pager[T]) reloadLocked(ctx context.Context) Result[[]T] {
	want := len(p.pages)
	p.pages = nil
	p.seen = map[string]struct{}{}
	p.done = false

	var out Result[[]T]
	for i := 0; i < want; i++ {
		res, more := p.nextLocked(ctx)
		if res.Err != nil && out.Err == nil {
			out.Err = res.Err
		}
		out.IsStale = out.IsStale || res.IsStale
		if !more || res.Err != nil {
			break
		}
	}
	out.Data = p.flattenLocked()
	return out
}

// HasMore reports whether Next can still return items.
func (p *Pager[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done
}

// Pages returns the number of non-empty pages loaded.
func (p *Pager[T]) Pages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

func (p *Pager[T]) anyStaleLocked() bool {
	for _, pg := range p.pages {
		if stale, ok := p.c.IsStale(FeedKey(pg.cursor)); stale || !ok {
			return true
		}
	}
	if p.done {
		stale, ok := p.c.IsStale(FeedKey(p.tailCursorLocked()))
		return stale || !ok
	}
	return false
}

func (p *Pager[T]) tailCursorLocked() string {
	if n := len(p.pages); n > 0 {
		return p.pages[n-1].last
	}
	return ""
}

func (p *Pager[T]) flattenLocked() []T {
	out := []T{}
	for _, pg := range p.pages {
		out = append(out, pg.items...)
	}
	return out
}

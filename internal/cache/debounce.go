package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Debouncer delays a value until no newer one arrived for window, then hands
// the last value to fn. Each Set restarts the window.
type Debouncer struct {
	window time.Duration
	fn     func(value string)

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func NewDebouncer(window time.Duration, fn func(value string)) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

func (d *Debouncer) Set(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A Set that raced with this timer firing wins.
		current := seq == d.seq
		d.mu.Unlock()
		if current {
			d.fn(value)
		}
	})
}

// Stop drops the pending value, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
}

// SearchFetcher runs a search for a settled, non-empty term.
type SearchFetcher[T any] func(ctx context.Context, term string) (T, error)

// Search debounces typed input into settled search terms. Only a settled,
// non-empty term reaches the fetcher; results are cached under SearchKey(term).
type Search[T any] struct {
	c     *Coordinator
	fetch SearchFetcher[T]
	deb   *Debouncer

	mu      sync.Mutex
	settled string
}

func NewSearch[T any](c *Coordinator, window time.Duration, fetch SearchFetcher[T]) *Search[T] {
	s := &Search[T]{c: c, fetch: fetch}
	s.deb = NewDebouncer(window, s.settle)
	return s
}

// Input records what the user typed so far.
func (s *Search[T]) Input(term string) {
	s.deb.Set(strings.TrimSpace(term))
}

func (s *Search[T]) settle(term string) {
	s.mu.Lock()
	s.settled = term
	s.mu.Unlock()
	if term != "" {
		Peek(s.c.baseCtx, s.c, SearchKey(term), s.fetcherFor(term))
	}
}

func (s *Search[T]) fetcherFor(term string) Fetcher[T] {
	return func(ctx context.Context) (T, error) { return s.fetch(ctx, term) }
}

// Term returns the last settled term.
func (s *Search[T]) Term() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// Results returns the cached results of the settled term. An empty term has
// no results and issues no query.
func (s *Search[T]) Results(ctx context.Context) (string, Result[T]) {
	term := s.Term()
	if term == "" {
		return "", Result[T]{}
	}
	return term, Fetch(ctx, s.c, SearchKey(term), s.fetcherFor(term))
}

// Stop cancels a pending settle.
func (s *Search[T]) Stop() {
	s.deb.Stop()
}

// Package cache coordinates cached remote query results: freshness, coalescing,
// invalidation after writes, optimistic patches, feed pagination and search debounce.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/telemetry"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// State tracks the optimistic patch lifecycle of an entry.
type State string

const (
	StateNone      State = ""
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateReverted  State = "reverted"
)

// maxFetchRounds bounds how often Fetch retries when its fetch was overtaken
// by an invalidation.
const maxFetchRounds = 3

var ErrNoFetcher = errors.New("cache entry has no fetcher")

// Fetcher loads the authoritative value of one key.
type Fetcher[T any] func(ctx context.Context) (T, error)

type loader func(ctx context.Context) (any, error)

// Result is what read accessors return: the data plus its loading and staleness flags.
type Result[T any] struct {
	Data      T
	IsLoading bool
	IsStale   bool
	State     State
	Err       error
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	err        error
	fresh      bool
	generation uint64
	inflight   int
	state      State
	// pending counts optimistic patches whose write is still running.
	pending   int
	patchSeq  uint64
	fetcher   loader
	fetchedAt time.Time
}

type snapshot struct {
	value      any
	hasValue   bool
	err        error
	fresh      bool
	fetching   bool
	generation uint64
	state      State
}

func (e *entry) snapshot() snapshot {
	return snapshot{
		value:      e.value,
		hasValue:   e.hasValue,
		err:        e.err,
		fresh:      e.fresh,
		fetching:   e.inflight > 0,
		generation: e.generation,
		state:      e.state,
	}
}

// Coordinator is the process-wide query cache. Create it once at start and
// Close it at exit; pass it explicitly to whoever reads or writes through it.
type Coordinator struct {
	mu       sync.Mutex
	items    *gocache.Cache
	flight   singleflight.Group
	metrics  *telemetry.CacheMetrics
	nextGen  uint64
	patchSeq uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Options struct {
	// GCTime is how long an untouched entry is kept.
	GCTime  time.Duration
	Metrics *telemetry.CacheMetrics
}

func NewCoordinator(opts Options) *Coordinator {
	gcTime := opts.GCTime
	if gcTime <= 0 {
		gcTime = 5 * time.Minute
	}
	cleanup := gcTime / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}

	items := gocache.New(gcTime, cleanup)
	items.OnEvicted(func(k string, _ interface{}) {
		logger.WithComponent("cache").Tracef("entry %s garbage collected", k)
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{items: items, metrics: opts.Metrics, baseCtx: ctx, cancel: cancel}
}

// Close stops background refetches and waits for them to return.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// entryLocked returns the entry for key, touching its GC deadline.
func (c *Coordinator) entryLocked(key Key, create bool) *entry {
	k := key.String()
	if v, ok := c.items.Get(k); ok {
		e := v.(*entry)
		c.items.SetDefault(k, e)
		return e
	}
	if !create {
		return nil
	}
	c.nextGen++
	e := &entry{key: key, generation: c.nextGen}
	c.items.SetDefault(k, e)
	return e
}

func (c *Coordinator) markStaleLocked(e *entry) {
	e.fresh = false
	c.nextGen++
	e.generation = c.nextGen
}

func (c *Coordinator) lookup(key Key, fn loader) (*entry, snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key, true)
	if fn != nil {
		e.fetcher = fn
	}
	return e, e.snapshot()
}

// get serves key, fetching when the entry is missing or stale. When an
// invalidation overtakes the fetch, it fetches again.
func (c *Coordinator) get(ctx context.Context, key Key, fn loader) snapshot {
	scope := string(key.Scope)
	e, s := c.lookup(key, fn)
	if s.fresh {
		c.metrics.RecordHit(ctx, scope)
		return s
	}
	c.metrics.RecordMiss(ctx, scope)

	for round := 0; round < maxFetchRounds; round++ {
		if err := c.refetch(ctx, e, s.generation); err != nil && ctx.Err() != nil {
			s.err = ctx.Err()
			return s
		}

		c.mu.Lock()
		next := e.snapshot()
		c.mu.Unlock()
		if next.fresh || next.generation == s.generation {
			return next
		}
		s = next
	}
	return s
}

// peek serves key without blocking. A missing or stale entry starts a
// background refetch unless one is already running.
func (c *Coordinator) peek(ctx context.Context, key Key, fn loader) snapshot {
	e, s := c.lookup(key, fn)
	if s.fresh {
		c.metrics.RecordHit(ctx, string(key.Scope))
		return s
	}
	c.metrics.RecordMiss(ctx, string(key.Scope))
	if !s.fetching {
		c.background(e, s.generation)
		s.fetching = true
	}
	return s
}

func (c *Coordinator) background(e *entry, generation uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.refetch(c.baseCtx, e, generation)
	}()
}

// refetch runs the entry's fetcher once per generation, however many callers ask.
// The fetch itself is not cancelled with ctx; only the wait is.
func (c *Coordinator) refetch(ctx context.Context, e *entry, generation uint64) error {
	flightKey := e.key.String() + "#" + strconv.FormatUint(generation, 10)
	ch := c.flight.DoChan(flightKey, func() (interface{}, error) {
		c.mu.Lock()
		fn := e.fetcher
		if fn == nil {
			e.err = ErrNoFetcher
			c.mu.Unlock()
			return nil, ErrNoFetcher
		}
		e.inflight++
		c.mu.Unlock()

		fetchCtx := context.WithoutCancel(ctx)
		v, err := fn(fetchCtx)
		c.metrics.RecordFetch(fetchCtx, string(e.key.Scope), err)
		c.complete(e, generation, v, err)
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) complete(e *entry, generation uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.inflight--
	log := logger.WithComponent("cache").WithField("key", e.key.String())
	if e.generation != generation {
		log.Debug("discarding fetch overtaken by an invalidation")
		return
	}
	if err != nil {
		log.WithError(err).Warn("refetch failed, keeping previous data")
		e.err = err
		e.fresh = false
		return
	}
	if e.pending > 0 {
		log.Debug("optimistic write still running, keeping shadow value")
		return
	}
	e.value = v
	e.hasValue = true
	e.err = nil
	e.fresh = true
	e.fetchedAt = time.Now()
	if e.state == StatePending {
		e.state = StateConfirmed
	}
}

func erase[T any](fetch Fetcher[T]) loader {
	if fetch == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) { return fetch(ctx) }
}

func resultOf[T any](s snapshot) Result[T] {
	var data T
	if s.hasValue {
		if v, ok := s.value.(T); ok {
			data = v
		}
	}
	return Result[T]{
		Data:      data,
		IsLoading: s.fetching && !s.hasValue,
		IsStale:   !s.fresh,
		State:     s.state,
		Err:       s.err,
	}
}

// Fetch returns the value of key, blocking on a refetch when the entry is
// missing or stale. Concurrent callers for the same key share one fetch.
// A nil fetch reuses the fetcher registered by an earlier read.
func Fetch[T any](ctx context.Context, c *Coordinator, key Key, fetch Fetcher[T]) Result[T] {
	return resultOf[T](c.get(ctx, key, erase(fetch)))
}

// Peek returns what the cache holds for key right now and, when that is missing
// or stale, starts a background refetch (stale-while-revalidate).
func Peek[T any](ctx context.Context, c *Coordinator, key Key, fetch Fetcher[T]) Result[T] {
	return resultOf[T](c.peek(ctx, key, erase(fetch)))
}

// Invalidate marks every entry covered by one of targets stale and returns how
// many entries it touched. Fetches already running cannot mark them fresh again.
func (c *Coordinator) Invalidate(targets ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidateLocked(targets)
}

func (c *Coordinator) invalidateLocked(targets []Key) int {
	n := 0
	for _, item := range c.items.Items() {
		e := item.Object.(*entry)
		for _, t := range targets {
			if t.Matches(e.key) {
				c.markStaleLocked(e)
				n++
				break
			}
		}
	}
	return n
}

// InvalidateAll marks every entry stale, e.g. after the backing data changed
// outside of this process.
func (c *Coordinator) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items.Items() {
		c.markStaleLocked(item.Object.(*entry))
		n++
	}
	logger.WithComponent("cache").Infof("invalidated all %d entries", n)
	return n
}

// Reset drops every entry. Results of fetches still running are discarded.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items.Items() {
		c.markStaleLocked(item.Object.(*entry))
	}
	c.items.Flush()
	logger.WithComponent("cache").Info("cache reset")
}

// Apply runs the invalidation table for a successful write. Writes that change
// the acting identity reset the whole cache.
func (c *Coordinator) Apply(ctx context.Context, w Write, id string) int {
	if w.ResetsCache() {
		c.Reset()
		return 0
	}
	c.mu.Lock()
	n := c.invalidateLocked(Targets(w, id))
	c.mu.Unlock()

	c.metrics.RecordInvalidations(ctx, string(w), n)
	logger.WithComponent("cache").Debugf("%s(%s) invalidated %d entries", w, id, n)
	return n
}

// IsStale reports whether key is cached and stale. ok is false when the key is not cached.
func (c *Coordinator) IsStale(key Key) (stale, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, found := c.items.Get(key.String())
	if !found {
		return false, false
	}
	return !v.(*entry).fresh, true
}

// Len returns the number of cached entries.
func (c *Coordinator) Len() int {
	return c.items.ItemCount()
}

type staleRef struct {
	entry      *entry
	generation uint64
}

// staleEntries lists stale entries that can be refetched now.
func (c *Coordinator) staleEntries() []staleRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []staleRef
	for _, item := range c.items.Items() {
		e := item.Object.(*entry)
		if !e.fresh && e.fetcher != nil && e.inflight == 0 && e.pending == 0 {
			out = append(out, staleRef{entry: e, generation: e.generation})
		}
	}
	return out
}

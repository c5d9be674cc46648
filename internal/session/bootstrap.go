package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bassista/snapgram/internal/cache"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/social"
)

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
)

// State is one step of the bootstrap state machine. User is set only when
// Authenticated; Err holds the reason of a failed check.
type State struct {
	Status Status
	User   *social.CurrentUser
	Err    error
}

// CurrentUserLoader resolves the profile linked to a session token.
type CurrentUserLoader interface {
	GetCurrentUser(ctx context.Context, token string) (social.CurrentUser, error)
}

// Bootstrap owns the session token and the authentication state. The profile
// is resolved through the cache so a successful check leaves it cached.
type Bootstrap struct {
	markers MarkerStore
	cache   *cache.Coordinator
	users   CurrentUserLoader

	mu    sync.Mutex
	state State
	token string
	// seq orders checks; only the latest one may publish its outcome.
	seq  uint64
	subs map[chan State]struct{}
}

func NewBootstrap(markers MarkerStore, c *cache.Coordinator, users CurrentUserLoader) *Bootstrap {
	return &Bootstrap{
		markers: markers,
		cache:   c,
		users:   users,
		state:   State{Status: StatusUnauthenticated},
		subs:    map[chan State]struct{}{},
	}
}

func (b *Bootstrap) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Token returns the token of the current session, or "".
func (b *Bootstrap) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// Subscribe returns a channel receiving every later state. A slow reader only
// misses intermediate states, never the latest one. Call cancel to stop.
func (b *Bootstrap) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *Bootstrap) publishLocked(s State) {
	b.state = s
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// CurrentUser reads the cached profile of the signed-in user.
func (b *Bootstrap) CurrentUser(ctx context.Context) cache.Result[social.CurrentUser] {
	token := b.Token()
	return cache.Fetch(ctx, b.cache, cache.CurrentUserKey(), b.fetcher(token))
}

func (b *Bootstrap) fetcher(token string) cache.Fetcher[social.CurrentUser] {
	return func(ctx context.Context) (social.CurrentUser, error) {
		if token == "" {
			return social.CurrentUser{}, fmt.Errorf("no session marker: %w", remote.ErrNoSession)
		}
		return b.users.GetCurrentUser(ctx, token)
	}
}

// Check runs the bootstrap: no marker goes straight to Unauthenticated,
// otherwise Checking until the linked profile resolves or fails.
func (b *Bootstrap) Check(ctx context.Context) State {
	log := logger.WithComponent("session")

	token, err := b.markers.Load()
	if err != nil {
		log.WithError(err).Warn("cannot read session marker")
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.token = token
	if token == "" {
		b.publishLocked(State{Status: StatusUnauthenticated, Err: err})
		s := b.state
		b.mu.Unlock()
		log.Debug("no session marker, unauthenticated")
		return s
	}
	b.publishLocked(State{Status: StatusChecking})
	b.mu.Unlock()

	res := cache.Fetch(ctx, b.cache, cache.CurrentUserKey(), b.fetcher(token))

	var next State
	switch {
	case res.Err != nil:
		next = State{Status: StatusUnauthenticated, Err: res.Err}
		if errors.Is(res.Err, remote.ErrNoSession) {
			if err := b.markers.Clear(); err != nil {
				log.WithError(err).Warn("cannot clear stale session marker")
			}
		}
		log.WithError(res.Err).Infof("session check failed (%s)", remote.KindOf(res.Err))
	default:
		user := res.Data
		next = State{Status: StatusAuthenticated, User: &user}
		log.Infof("authenticated as %s", user.Username)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return b.state
	}
	if next.Status == StatusUnauthenticated {
		b.token = ""
	}
	b.publishLocked(next)
	return next
}

// Establish stores the marker of a freshly created session and re-runs the check.
func (b *Bootstrap) Establish(ctx context.Context, token string) (State, error) {
	if err := b.markers.Save(token); err != nil {
		return State{}, fmt.Errorf("save session marker: %w", err)
	}
	return b.Check(ctx), nil
}

// End forgets the session locally.
func (b *Bootstrap) End() error {
	err := b.markers.Clear()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.token = ""
	b.publishLocked(State{Status: StatusUnauthenticated})
	return err
}

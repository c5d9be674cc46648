package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/snapgram/internal/cache"
	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/remote/docstore"
	"github.com/bassista/snapgram/internal/remote/identity"
	"github.com/bassista/snapgram/internal/remote/objectstore"
	"github.com/bassista/snapgram/internal/session"
	"github.com/bassista/snapgram/internal/social"
	"github.com/bassista/snapgram/internal/telemetry"
)

// reloadNotifier is implemented by document stores that notice external edits.
type reloadNotifier interface {
	OnReload(fn func())
	StartWatcher(ctx context.Context) error
}

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config    *config.Config
	Client    *remote.Client
	Service   *social.Service
	Cache     *cache.Coordinator
	Session   *session.Bootstrap
	Queries   *queries.Queries
	Telemetry *telemetry.Provider

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the layers above an already built remote client.
func New(cfg *config.Config, client *remote.Client, markers session.MarkerStore) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if client == nil {
		return nil, errors.New("remote client is nil")
	}
	if markers == nil {
		return nil, errors.New("session marker store is nil")
	}

	tp := telemetry.NewProvider()
	metrics, err := telemetry.NewCacheMetrics(tp.Meter())
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	svc := social.NewService(client, remote.UUIDGenerator{}, social.Settings{
		PageSize:    cfg.Cache.PageSize,
		RecentLimit: cfg.Cache.RecentLimit,
		PublicURL:   cfg.Server.PublicURL,
	})
	coordinator := cache.NewCoordinator(cache.Options{GCTime: cfg.Cache.GCTime, Metrics: metrics})
	boot := session.NewBootstrap(markers, coordinator, svc)
	q := queries.New(svc, coordinator, boot, queries.Options{
		SearchDebounce: cfg.Cache.SearchDebounce,
		UsersLimit:     cfg.Cache.UsersLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:    cfg,
		Client:    client,
		Service:   svc,
		Cache:     coordinator,
		Session:   boot,
		Queries:   q,
		Telemetry: tp,
		BaseCtx:   ctx,
		Cancel:    cancel,
	}, nil
}

// Build creates the remote stores named in cfg and the App on top of them.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	clock := remote.RealClock{}
	ids := remote.UUIDGenerator{}

	docs, err := docstore.NewFromConfig(ctx, cfg.Remote.Documents, clock)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	objects, err := objectstore.NewFromConfig(ctx, cfg.Remote.Objects, cfg.Server.PublicURL, ids, clock)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	client, err := remote.NewClient(identity.NewProvider(docs), docs, objects)
	if err != nil {
		return nil, err
	}
	markers, err := session.NewFileMarker(cfg.Session.MarkerPath)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(cfg, client, markers)
}

// Shutdown stops the background work and releases the remote stores.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	a.Queries.Close()
	a.Cache.Close()
	if err := a.Client.Close(); err != nil {
		logger.WithComponent("app").Warnf("closing remote client: %v", err)
	}
	if err := a.Telemetry.Shutdown(context.Background()); err != nil {
		logger.WithComponent("app").Warnf("telemetry shutdown: %v", err)
	}
}

// StartWatchers runs the session bootstrap, the stale entry refresher and, when
// the document store can notice external edits, a watcher that invalidates
// the whole cache after each reload.
func (a *App) StartWatchers() error {
	if notifier, ok := a.Client.DocumentStore.(reloadNotifier); ok {
		notifier.OnReload(func() { a.Cache.InvalidateAll() })
		if err := notifier.StartWatcher(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start document file watcher: %w", err)
		}
	}

	cache.StartRefreshScheduler(a.BaseCtx, a.Cache, a.Config.Cache.RefreshInterval, a.Config.Cache.RefreshConcurrency)

	state := a.Session.Check(a.BaseCtx)
	logger.WithComponent("app").Infof("session bootstrap finished: %s", state.Status)
	return nil
}

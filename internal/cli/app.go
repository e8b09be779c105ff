package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/config"
	"github.com/roach88/homeroom/internal/hub"
	"github.com/roach88/homeroom/internal/outbox"
	"github.com/roach88/homeroom/internal/provider"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/session"
	"github.com/roach88/homeroom/internal/store"
	"github.com/roach88/homeroom/internal/syncer"
)

// App is the wired application: one store, one cache and one sync
// controller shared by every command.
type App struct {
	Config   config.Config
	Store    *store.Store
	Cache    *cache.Cache
	Client   *remote.Client
	Hub      *hub.Hub
	Syncer   *syncer.Controller
	Provider *provider.Provider
	Session  *session.Manager

	// Outbox is nil when outbox.enabled is false; writes then go through
	// direct.
	Outbox *outbox.Outbox
	direct *outbox.Direct

	logger *slog.Logger
}

// OpenApp opens the store and builds every component from cfg.
func OpenApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	clientOpts := []remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithLogger(logger),
	}
	if cfg.Remote.Validate {
		v, err := remote.NewValidator()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load schemas: %w", err)
		}
		clientOpts = append(clientOpts, remote.WithValidator(v))
	}
	client := remote.NewClient(cfg.Remote.Endpoint, clientOpts...)

	a := &App{
		Config: cfg,
		Store:  st,
		Client: client,
		Cache:  cache.Load(ctx, st.Slot(cfg.Store.CacheKey), logger),
		Hub:    hub.New(hub.State{Status: hub.StatusIdle}),
		logger: logger,
	}

	syncOpts := []syncer.Option{syncer.WithTimeout(cfg.Sync.Timeout), syncer.WithLogger(logger)}
	var dispatch outbox.Dispatcher
	if cfg.Outbox.Enabled {
		a.Outbox = outbox.New(st, client, outbox.Config{
			FlushInterval: cfg.Outbox.FlushInterval,
			BaseBackoff:   cfg.Outbox.BaseBackoff,
			MaxBackoff:    cfg.Outbox.MaxBackoff,
		}, outbox.WithLogger(logger))
		dispatch = a.Outbox
		syncOpts = append(syncOpts, syncer.WithMerger(a.Outbox))
	} else {
		a.direct = outbox.NewDirect(client, cfg.Remote.Timeout, logger)
		dispatch = a.direct
	}

	a.Syncer = syncer.New(a.Cache, client, a.Hub, syncOpts...)
	a.Provider = provider.New(a.Cache, dispatch, client, provider.WithLogger(logger))
	a.Session = session.Open(ctx, st.Slot(cfg.Store.SessionKey), client, logger)
	return a, nil
}

// Pending returns the number of undelivered writes; always zero without the
// outbox.
func (a *App) Pending(ctx context.Context) (int, error) {
	if a.Outbox == nil {
		return 0, nil
	}
	return a.Outbox.Len(ctx)
}

// Flush delivers due outbox entries. A no-op without the outbox.
func (a *App) Flush(ctx context.Context) {
	if a.Outbox == nil {
		return
	}
	n, err := a.Outbox.Flush(ctx)
	if err != nil {
		a.logger.Warn("outbox flush failed", "error", err)
	}
	if n > 0 {
		a.logger.Info("outbox flushed", "delivered", n)
	}
}

// Close waits for in-flight direct writes and closes the store.
func (a *App) Close() error {
	if a.direct != nil {
		a.direct.Wait()
	}
	return a.Store.Close()
}

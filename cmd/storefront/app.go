package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"storefront/internal/api"
	"storefront/internal/assets"
	"storefront/internal/clients"
	"storefront/internal/config"
	"storefront/internal/orchestrator"
	"storefront/internal/sequencer"
	"storefront/internal/store"
	"storefront/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and closed by Execute.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	logCloser    io.Closer

	rdb       *redis.Client
	store     *store.Store
	persistor *store.Persistor

	settings      *clients.SettingsClient
	notifications *clients.NotificationClient
	commerce      *clients.CommerceClient
	bridge        *clients.NotificationBridge // nil without a NATS URL

	loader       *assets.Loader
	sequencer    *sequencer.Sequencer
	orchestrator *orchestrator.Orchestrator
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates the store and starts rehydrating it
//  3. Creates the clients, one circuit breaker each
//  4. Creates the asset loader and the sequencer
//  5. Creates the orchestrator and the HTTP router
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(ctx, cfg.Telemetry)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	// The store is created once per process and outlives every subcommand.
	app.rdb = clients.NewRedis(cfg.Store)
	app.store = store.New(store.State{Language: "en", Currency: "USD"})
	app.persistor = store.PersistStore(context.Background(), app.store,
		store.NewRedisBackend(app.rdb, cfg.Store.KeyPrefix))

	app.settings = clients.NewSettingsClient(app.rdb, cfg.Store.KeyPrefix, cfg.Notification.Enabled,
		clients.NewCircuitBreaker("store"))
	app.notifications = clients.NewNotificationClient(cfg.Notification, clients.NewCircuitBreaker("notification"))
	app.commerce = clients.NewCommerceClient(clients.NewCircuitBreaker("commerce"))
	if cfg.Notification.NATSURL != "" {
		app.bridge = clients.NewNotificationBridge(cfg.Notification.NATSURL, app.notifications,
			clients.NewCircuitBreaker("event-bridge"))
	}

	loader, err := assets.NewLoader(os.DirFS(cfg.Assets.Dir), cfg.Assets.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating asset loader: %w", err)
	}
	app.loader = loader

	app.sequencer = sequencer.New(
		app.settings,
		app.notifications,
		app.commerce,
		app.loader,
		sequencer.SettingsFromConfig(cfg),
		sequencer.WithBindings(sequencer.DefaultBindings(slog.Default())),
	)

	probers := map[string]orchestrator.Prober{
		"commerce": app.commerce,
		"store":    app.settings,
	}
	if app.bridge != nil {
		probers["event-bridge"] = app.bridge
	}
	app.orchestrator = orchestrator.New(app.sequencer, probers)
	gin.SetMode(gin.ReleaseMode)
	app.router = api.NewRouter(app.orchestrator, cfg.Telemetry.ServiceName)

	return app, nil
}

// startBridge connects the NATS event bridge when one is configured. A
// failure only costs cross-process push delivery, so it is logged.
func (a *AppContext) startBridge(ctx context.Context) {
	if a.bridge == nil {
		return
	}
	if err := a.bridge.Start(ctx); err != nil {
		slog.WarnContext(ctx, "notification bridge unavailable", "error", err)
	}
}

// Close unmounts the sequencer and releases everything buildAppContext
// opened, in reverse order.
func (a *AppContext) Close(ctx context.Context) error {
	var errs []error

	if err := a.sequencer.Unmount(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unmounting: %w", err))
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing notification bridge: %w", err))
		}
	}
	if err := a.persistor.Stop(ctx); err != nil {
		slog.Warn("final state snapshot not saved", "err", err)
	}
	if err := a.rdb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing redis: %w", err))
	}
	if err := a.otelProvider.Shutdown(ctx); err != nil {
		slog.Warn("OTEL shutdown error", "err", err)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

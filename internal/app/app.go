package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/refcache"
	"github.com/angelmondragon/storefront/pkg/catalogapi"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/redis"
	"github.com/angelmondragon/storefront/pkg/storage"
)

// App holds every long-lived component shared by the storefront binaries.
type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.SyncMetrics
	Cache      *refcache.Cache
	Catalog    *catalog.Service
	Storage    storage.Storage
	Cart       *cart.Store
	Reconciler *cart.Reconciler
	Watcher    *cart.Watcher
	Readiness  map[string]controllers.Pinger

	closers []func() error
}

// New wires storage, the catalog client and the cart sync pipeline from cfg.
// Callers must Close the returned App, including when New fails part way.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, watcherOpts ...cart.WatcherOption) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    logg,
		Registry:  prometheus.NewRegistry(),
		Readiness: map[string]controllers.Pinger{},
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewSyncMetrics(a.Registry)
	a.Cache = refcache.New(refcache.WithObserver(func(kind refcache.Kind, n int) {
		a.Metrics.SetRefcacheSize(string(kind), n)
	}))

	st, err := a.openStorage(ctx)
	if err != nil {
		return a, err
	}
	a.Storage = st

	client, err := catalogapi.NewClient(cfg.Catalog.BaseURL,
		catalogapi.WithTimeout(cfg.Catalog.Timeout),
		catalogapi.WithUserAgent("storefront/"+instance.GetID()),
	)
	if err != nil {
		return a, fmt.Errorf("creating catalog client: %w", err)
	}

	a.Catalog, err = catalog.NewService(client, a.Cache, logg,
		catalog.WithOmitUnresolvedFilters(cfg.Catalog.OmitUnresolvedFilters),
		catalog.WithDefaultLimit(cfg.Catalog.DefaultLimit),
	)
	if err != nil {
		return a, fmt.Errorf("creating catalog service: %w", err)
	}

	a.Cart, err = cart.NewStore(st, cfg.Storage.CartKey, logg)
	if err != nil {
		return a, fmt.Errorf("creating cart store: %w", err)
	}

	a.Reconciler, err = cart.NewReconciler(a.Catalog, logg,
		cart.WithMaxConcurrentFetches(cfg.Sync.MaxConcurrentFetches),
		cart.WithReconcileMetrics(a.Metrics),
	)
	if err != nil {
		return a, fmt.Errorf("creating reconciler: %w", err)
	}

	opts := append([]cart.WatcherOption{
		cart.WithPollInterval(cfg.Sync.PollInterval),
		cart.WithDebounce(cfg.Sync.Debounce),
		cart.WithRefreshInterval(cfg.Sync.RefreshInterval),
		cart.WithWatchMetrics(a.Metrics),
	}, watcherOpts...)
	a.Watcher, err = cart.NewWatcher(a.Cart, a.Reconciler, logg, opts...)
	if err != nil {
		return a, fmt.Errorf("creating cart watcher: %w", err)
	}

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := a.Config
	ctx = a.Logger.WithField(ctx, "storage_driver", cfg.Storage.Driver)

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case config.StorageDriverMemory:
		a.Logger.Warn(ctx, "memory storage selected; the cart is lost on restart")
		return storage.NewMemory(), nil

	case config.StorageDriverFile:
		st, err := storage.NewFile(cfg.Storage.FileDir, cfg.Sync.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("opening file storage: %w", err)
		}
		return st, nil

	case config.StorageDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Readiness["redis"] = client
		return storage.NewRedis(client, instance.GetID())

	case config.StorageDriverSQL:
		client, err := db.New(ctx, cfg.DB, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping database: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Readiness["database"] = client
		if err := migrate.MaybeRun(ctx, cfg, a.Logger, client); err != nil {
			return nil, err
		}
		return storage.NewSQL(client.DB(), cfg.Sync.PollInterval)
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// Close releases storage connections in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

func testConfig(t *testing.T, backendURL, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.AppConfig{Env: config.AppEnvDev},
		Catalog: config.CatalogConfig{BaseURL: backendURL, Timeout: time.Second, DefaultLimit: 24},
		Storage: config.StorageConfig{Driver: driver, FileDir: t.TempDir(), CartKey: "cart"},
		DB: config.DBConfig{
			Driver:      config.DBDriverSQLite,
			DSN:         filepath.Join(t.TempDir(), "storefront.db"),
			AutoMigrate: true,
		},
		Sync: config.SyncConfig{
			PollInterval:         20 * time.Millisecond,
			Debounce:             5 * time.Millisecond,
			MaxConcurrentFetches: 2,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"_id":"d1-m","size":{"_id":"65f1a2b3c4d5e6f708192a3b","name":"M"},"price":40,"stockQuantity":3}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWiresEveryDriver(t *testing.T) {
	backend := newBackend(t)

	for _, driver := range []string{config.StorageDriverMemory, config.StorageDriverFile, config.StorageDriverSQL} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, testConfig(t, backend.URL, driver), logger.Nop())
			t.Cleanup(func() { require.NoError(t, a.Close()) })
			require.NoError(t, err)

			_, err = a.Cart.Add(ctx, "d1", "M", 2)
			require.NoError(t, err)

			view, err := a.Reconciler.Reconcile(ctx, a.Cart.Get(ctx))
			require.NoError(t, err)
			require.Equal(t, "80", view.TotalAmount.String())
			require.Equal(t, 2, view.ItemCount)

			if driver == config.StorageDriverSQL {
				require.Contains(t, a.Readiness, "database")
				require.NoError(t, a.Readiness["database"].Ping(ctx))
			}
		})
	}
}

func TestNewRecordsRefcacheMetric(t *testing.T) {
	backend := newBackend(t)
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, backend.URL, config.StorageDriverMemory), logger.Nop())
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, err)

	_, err = a.Catalog.DesignVariants(ctx, "d1")
	require.NoError(t, err)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "storefront_refcache_entries" {
			found = true
		}
	}
	require.True(t, found)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "etcd")
	a, err := New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	require.NoError(t, a.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	var a *App
	require.NoError(t, a.Close())

	calls := 0
	a = &App{closers: []func() error{func() error { calls++; return nil }}}
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Equal(t, 1, calls)
}

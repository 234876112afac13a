package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/refcache"
	"github.com/angelmondragon/storefront/pkg/catalogapi"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/storage"
)

const backendVariants = `{"success":true,"data":[
	{"_id":"d2-m","size":{"_id":"65f1a2b3c4d5e6f708192a3b","name":"M"},"productType":"Tees","price":100,"stockQuantity":0},
	{"_id":"d2-l","size":{"_id":"65f1a2b3c4d5e6f708192a3c","name":"L"},"productType":"Tees","price":150,"discountAmount":30,"stockQuantity":5}
]}`

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	handler http.Handler
	store   *cart.Store
	watcher *cart.Watcher
	backend *httptest.Server

	mu      sync.Mutex
	lastURL string
}

func (e *testEnv) backendURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastURL
}

func newTestEnv(t *testing.T, readiness map[string]controllers.Pinger) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.lastURL = r.URL.String()
		env.mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/products/designs/d2/"):
			_, _ = w.Write([]byte(backendVariants))
		case strings.HasPrefix(r.URL.Path, "/products/designs/"):
			http.Error(w, "gone", http.StatusInternalServerError)
		case r.URL.Query().Get("groupBy") == "design":
			_, _ = w.Write([]byte(`{"success":true,"data":{"items":[{"_id":"d2","name":"Tee","typeName":"Tees","availableSizes":["L"],"variants":[]}],"total":1,"page":1,"limit":24}}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"message":"not yet"}`))
		}
	}))
	t.Cleanup(env.backend.Close)

	client, err := catalogapi.NewClient(env.backend.URL)
	require.NoError(t, err)
	svc, err := catalog.NewService(client, refcache.New(), logger.Nop())
	require.NoError(t, err)

	env.store, err = cart.NewStore(storage.NewMemory(), "", nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	reconciler, err := cart.NewReconciler(svc, nil, cart.WithReconcileMetrics(metrics.NewSyncMetrics(reg)))
	require.NoError(t, err)
	env.watcher, err = cart.NewWatcher(env.store, reconciler, nil)
	require.NoError(t, err)

	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	env.handler = NewRouter(cfg, logger.Nop(), reg, readiness, svc, env.store, reconciler, env.watcher)
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, map[string]controllers.Pinger{
		"storage": pingFunc(func(context.Context) error { return nil }),
	})
	rec := env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Storefront-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestEnv(t, map[string]controllers.Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("refused") }),
	})
	rec = down.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCartLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines", map[string]any{"designId": "d2", "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/v1/cart/lines", map[string]any{"designId": "d9", "sizeName": "M"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got controllers.CartResponse
	decodeData(t, rec, &got)
	require.Len(t, got.Cart.Lines, 2)
	require.NotNil(t, got.View)
	// d2 legacy line falls back to the in-stock L at 120; d9 fails and stays pending.
	assert.True(t, got.View.TotalAmount.Equal(decimal.NewFromInt(240)), got.View.TotalAmount.String())
	assert.Equal(t, cart.StatusResolved, got.View.Lines[0].Status)
	assert.Equal(t, "L", got.View.Lines[0].Variant.SizeName)
	assert.Equal(t, cart.StatusPending, got.View.Lines[1].Status)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/lines", map[string]any{"designId": "d2", "quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/cart/lines?designId=d9&sizeName=M", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.Get(context.Background()).Lines)

	_, err := env.store.Add(context.Background(), "d2", "L", 1)
	require.NoError(t, err)
	rec = env.do(t, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.Get(context.Background()).Lines)
}

func TestCartValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines", map[string]any{"designId": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/cart/lines", map[string]any{"designId": "d1", "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/cart/lines", map[string]any{"designId": "d1", "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/cart/lines", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/catalog/designs?size=M&minPrice=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var designs struct {
		Canonical bool `json:"canonical"`
		Page      struct {
			Items []catalog.Design `json:"items"`
		} `json:"page"`
	}
	decodeData(t, rec, &designs)
	assert.True(t, designs.Canonical)
	require.Len(t, designs.Page.Items, 1)
	assert.Equal(t, []string{"L"}, designs.Page.Items[0].AvailableSizeNames)
	assert.Contains(t, env.backendURL(), "size=M")
	assert.Contains(t, env.backendURL(), "minPrice=5")

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var raw controllers.CatalogPageResponse
	decodeData(t, rec, &raw)
	assert.False(t, raw.Canonical)
	assert.Equal(t, false, raw.Raw["success"])

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/designs/d2/variants", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The variants fetch populated the size cache, so the name now goes out as an id.
	rec = env.do(t, http.MethodGet, "/api/v1/catalog/designs?size=M", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.backendURL(), "size=65f1a2b3c4d5e6f708192a3b")

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/products?minPrice=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog/designs/d404/variants", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVisibilityAndView(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPut, "/api/v1/session/visibility", map[string]any{"visible": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, env.watcher.Visible())

	rec = env.do(t, http.MethodPut, "/api/v1/session/visibility", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cart/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	decodeData(t, rec, &view)
	assert.Equal(t, false, view["ready"])
	assert.Equal(t, false, view["visible"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	_ = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_cart_reconciles_total")
}

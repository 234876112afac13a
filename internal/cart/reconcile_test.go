package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	variants map[string][]catalog.Variant
	failures map[string]error
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSource) DesignVariants(ctx context.Context, designID string) ([]catalog.Variant, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[designID]; err != nil {
		return nil, err
	}
	return f.variants[designID], nil
}

func (f *fakeSource) set(designID string, variants ...catalog.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.variants == nil {
		f.variants = map[string][]catalog.Variant{}
	}
	f.variants[designID] = variants
}

func variant(id, size string, stock int, final int64) catalog.Variant {
	return catalog.Variant{
		ID:            id,
		SizeName:      size,
		StockQuantity: stock,
		BasePrice:     decimal.NewFromInt(final),
		FinalPrice:    decimal.NewFromInt(final),
	}
}

func standardSource() *fakeSource {
	src := &fakeSource{}
	src.set("d1", variant("d1-m", "M", 3, 170))
	src.set("d2", variant("d2-m", "M", 0, 100), variant("d2-l", "L", 5, 120))
	return src
}

func standardCart() Cart {
	return Cart{Lines: []Line{
		{DesignID: "d1", SizeName: "M", Quantity: 2},
		{DesignID: "d2", Quantity: 1},
	}}
}

func TestReconciliationTotals(t *testing.T) {
	r, err := NewReconciler(standardSource(), nil)
	require.NoError(t, err)

	view, err := r.Reconcile(context.Background(), standardCart())
	require.NoError(t, err)
	assert.Equal(t, "460", view.TotalAmount.String())
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "d2-l", view.Lines[1].Variant.ID)
	assert.Equal(t, StatusResolved, view.Lines[1].Status)
	assert.Equal(t, 3, view.ItemCount)
	assert.Zero(t, view.Pending)
}

func TestIsolationOnPartialFailure(t *testing.T) {
	src := standardSource()
	src.failures = map[string]error{"d2": errors.New("503")}
	reg := prometheus.NewRegistry()
	r, err := NewReconciler(src, nil, WithReconcileMetrics(metrics.NewSyncMetrics(reg)))
	require.NoError(t, err)

	view, err := r.Reconcile(context.Background(), standardCart())
	require.NoError(t, err)
	assert.Equal(t, "340", view.TotalAmount.String())
	require.Len(t, view.Lines, 2)
	assert.Equal(t, StatusResolved, view.Lines[0].Status)
	assert.Equal(t, StatusPending, view.Lines[1].Status)
	assert.Nil(t, view.Lines[1].Variant)
	assert.Equal(t, 1, view.Pending)

	assert.Equal(t, 1.0, gatherValue(t, reg, "storefront_design_fetch_failures_total"))
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestLegacyLineFallback(t *testing.T) {
	variants := []catalog.Variant{variant("m", "M", 0, 10), variant("l", "L", 3, 12)}
	got, ok := SelectVariant(variants, "")
	require.True(t, ok)
	assert.Equal(t, "l", got.ID)

	got, _ = SelectVariant(variants, "M")
	assert.Equal(t, "m", got.ID)

	got, _ = SelectVariant(variants, "XXL")
	assert.Equal(t, "l", got.ID)

	got, _ = SelectVariant([]catalog.Variant{variant("m", "M", 0, 10), variant("l", "L", 0, 12)}, "")
	assert.Equal(t, "m", got.ID)

	_, ok = SelectVariant(nil, "M")
	assert.False(t, ok)
}

func TestDedupeByVariantKeepsEveryQuantityInTotal(t *testing.T) {
	src := &fakeSource{}
	src.set("d1", variant("d1-m", "M", 0, 50), variant("d1-l", "L", 2, 80))
	r, err := NewReconciler(src, nil)
	require.NoError(t, err)

	c := Cart{Lines: []Line{
		{DesignID: "d1", Quantity: 1},
		{DesignID: "d1", SizeName: "L", Quantity: 2},
		{DesignID: "d1", SizeName: "M", Quantity: 1},
	}}
	view, err := r.Reconcile(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "d1-l", view.Lines[0].Variant.ID)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.Equal(t, "240", view.Lines[0].Subtotal.String())
	assert.Equal(t, "290", view.TotalAmount.String())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestFetchesRunConcurrently(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	lines := []Line{}
	for _, id := range []string{"a", "b", "c", "d"} {
		src.set(id, variant(id+"-m", "M", 1, 10))
		lines = append(lines, Line{DesignID: id, SizeName: "M", Quantity: 1})
	}
	r, err := NewReconciler(src, nil, WithMaxConcurrentFetches(2))
	require.NoError(t, err)

	view, err := r.Reconcile(context.Background(), Cart{Lines: lines})
	require.NoError(t, err)
	assert.Equal(t, "40", view.TotalAmount.String())
	assert.Equal(t, int32(2), src.peak.Load())
}

func TestReconcileIsReadOnlyAndIdempotent(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, "d1", "M", 2)
	require.NoError(t, err)
	before := store.Get(ctx)

	r, err := NewReconciler(standardSource(), nil)
	require.NoError(t, err)
	first, err := r.Reconcile(ctx, before)
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, store.Get(ctx))
	require.NoError(t, err)

	assert.Equal(t, before, store.Get(ctx))
	assert.Equal(t, first.TotalAmount.String(), second.TotalAmount.String())
	assert.Equal(t, first.Lines, second.Lines)
}

func TestReconcileCanceled(t *testing.T) {
	src := standardSource()
	src.delay = time.Second
	r, err := NewReconciler(src, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Reconcile(ctx, standardCart())
	assert.ErrorIs(t, err, context.Canceled)
}

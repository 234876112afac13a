package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unwatchedStorage hides the backend's Watch so only polling can notice
// writes from other stores.
type unwatchedStorage struct{ storage.Storage }

type watchHarness struct {
	watcher *Watcher
	src     *fakeSource
	cancel  context.CancelFunc
	done    chan struct{}
}

func startWatcher(t *testing.T, store *Store, opts ...WatcherOption) *watchHarness {
	t.Helper()
	src := standardSource()
	r, err := NewReconciler(src, nil)
	require.NoError(t, err)

	opts = append([]WatcherOption{WithDebounce(20 * time.Millisecond), WithPollInterval(time.Hour), WithRefreshInterval(0)}, opts...)
	w, err := NewWatcher(store, r, nil, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	h := &watchHarness{watcher: w, src: src, cancel: cancel, done: done}
	t.Cleanup(h.stop)
	return h
}

func (h *watchHarness) stop() {
	h.cancel()
	<-h.done
}

func (h *watchHarness) total() string {
	view, ok := h.watcher.Latest()
	if !ok {
		return ""
	}
	return view.TotalAmount.String()
}

func TestWatcherReconcilesOnStart(t *testing.T) {
	store, _ := newMemoryStore(t)
	_, err := store.Add(context.Background(), "d1", "M", 2)
	require.NoError(t, err)

	h := startWatcher(t, store)
	require.Eventually(t, func() bool { return h.total() == "340" }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherSeesOtherStoreThroughStorage(t *testing.T) {
	shared := storage.NewMemory()
	tabA, err := NewStore(shared, "", nil)
	require.NoError(t, err)
	tabB, err := NewStore(shared, "", nil)
	require.NoError(t, err)

	h := startWatcher(t, tabA)
	require.Eventually(t, func() bool { return h.total() == "0" }, 2*time.Second, 10*time.Millisecond)

	_, err = tabB.Add(context.Background(), "d2", "", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.total() == "120" }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherPollCatchesUnannouncedWrites(t *testing.T) {
	shared := unwatchedStorage{storage.NewMemory()}
	tabA, err := NewStore(shared, "", nil)
	require.NoError(t, err)
	tabB, err := NewStore(shared, "", nil)
	require.NoError(t, err)

	h := startWatcher(t, tabA, WithPollInterval(20*time.Millisecond))
	require.Eventually(t, func() bool { return h.total() == "0" }, 2*time.Second, 10*time.Millisecond)

	_, err = tabB.Add(context.Background(), "d1", "M", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.total() == "170" }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	store, _ := newMemoryStore(t)
	h := startWatcher(t, store, WithDebounce(100*time.Millisecond))
	require.Eventually(t, func() bool { return h.total() == "0" }, 2*time.Second, 10*time.Millisecond)
	before := h.src.calls.Load()

	for i := 0; i < 10; i++ {
		_, err := store.Add(context.Background(), "d1", "M", 1)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return h.total() == "1700" }, 2*time.Second, 10*time.Millisecond)
	assert.Less(t, h.src.calls.Load()-before, int32(10))
}

func TestWatcherIdleWhileHidden(t *testing.T) {
	store, _ := newMemoryStore(t)
	h := startWatcher(t, store)
	require.Eventually(t, func() bool { return h.total() == "0" }, 2*time.Second, 10*time.Millisecond)

	h.watcher.SetVisible(false)
	_, err := store.Add(context.Background(), "d1", "M", 1)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "0", h.total())

	h.watcher.SetVisible(true)
	require.Eventually(t, func() bool { return h.total() == "170" }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherRefreshPicksUpPriceChanges(t *testing.T) {
	store, _ := newMemoryStore(t)
	_, err := store.Add(context.Background(), "d1", "M", 1)
	require.NoError(t, err)

	h := startWatcher(t, store, WithRefreshInterval(30*time.Millisecond))
	require.Eventually(t, func() bool { return h.total() == "170" }, 2*time.Second, 10*time.Millisecond)

	h.src.set("d1", variant("d1-m", "M", 3, 150))
	require.Eventually(t, func() bool { return h.total() == "150" }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherOnViewCallback(t *testing.T) {
	store, _ := newMemoryStore(t)
	var mu sync.Mutex
	var views []*View
	startWatcher(t, store, WithOnView(func(_ context.Context, v *View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(views) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherKeepsViewWhenCartReadFails(t *testing.T) {
	flaky := &flakyStorage{Storage: unwatchedStorage{storage.NewMemory()}}
	store, err := NewStore(flaky, "", nil)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "d1", "M", 2)
	require.NoError(t, err)

	h := startWatcher(t, store, WithPollInterval(10*time.Millisecond))
	require.Eventually(t, func() bool { return h.total() == "340" }, 2*time.Second, 10*time.Millisecond)

	flaky.failReads.Store(true)
	h.watcher.Request(metrics.SourceRefresh)
	require.Never(t, func() bool { return h.total() != "340" }, 200*time.Millisecond, 10*time.Millisecond)

	flaky.failReads.Store(false)
	_, err = store.Add(context.Background(), "d1", "M", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.total() == "510" }, 2*time.Second, 10*time.Millisecond)
}

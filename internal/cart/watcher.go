package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/storage"
)

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultDebounce        = 50 * time.Millisecond
	defaultRefreshInterval = 30 * time.Second
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the persisted cart is compared with the
// last reconciled one.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDebounce sets how long a burst of triggers is collected before one
// reconcile runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRefreshInterval sets the forced re-reconcile period that picks up
// price and stock changes. Zero or negative disables it.
func WithRefreshInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.refreshInterval = d }
}

// WithWatchMetrics counts triggers by source.
func WithWatchMetrics(m *metrics.SyncMetrics) WatcherOption {
	return func(w *Watcher) { w.metrics = m }
}

// WithInitialVisibility sets whether the view starts visible. Default true.
func WithInitialVisibility(visible bool) WatcherOption {
	return func(w *Watcher) { w.visible.Store(visible) }
}

// WithOnView registers fn to receive every reconciled view.
func WithOnView(fn func(context.Context, *View)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onView = append(w.onView, fn)
		}
	}
}

// Watcher keeps a reconciled view of the cart current while the consuming
// view is visible. Every trigger feeds one coalescing signal; reconciles run
// one at a time on the Run goroutine.
type Watcher struct {
	store      *Store
	reconciler *Reconciler
	logg       *logger.Logger
	metrics    *metrics.SyncMetrics

	pollInterval    time.Duration
	debounce        time.Duration
	refreshInterval time.Duration

	visible atomic.Bool
	pending chan struct{}
	onView  []func(context.Context, *View)

	mu              sync.RWMutex
	latest          *View
	lastFingerprint string
	reconciled      bool
}

// NewWatcher builds a watcher over store and reconciler.
func NewWatcher(store *Store, reconciler *Reconciler, logg *logger.Logger, opts ...WatcherOption) (*Watcher, error) {
	if store == nil {
		return nil, errors.New("cart store required")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	w := &Watcher{
		store:           store,
		reconciler:      reconciler,
		logg:            logg,
		pollInterval:    defaultPollInterval,
		debounce:        defaultDebounce,
		refreshInterval: defaultRefreshInterval,
		pending:         make(chan struct{}, 1),
	}
	w.visible.Store(true)
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Visible reports whether the consuming view is visible.
func (w *Watcher) Visible() bool {
	return w.visible.Load()
}

// SetVisible records visibility. Becoming visible requests a reconcile.
func (w *Watcher) SetVisible(visible bool) {
	was := w.visible.Swap(visible)
	if visible && !was {
		w.Request(metrics.SourceVisibility)
	}
}

// Request asks for a reconcile. Requests made while hidden are dropped;
// requests arriving together collapse into one.
func (w *Watcher) Request(source string) {
	if !w.visible.Load() {
		return
	}
	w.metrics.IncTrigger(source)
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// Latest returns the most recent reconciled view.
func (w *Watcher) Latest() (*View, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest, w.latest != nil
}

// Run watches until ctx is done. It always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	events, unsubscribe := w.store.Subscribe()
	defer unsubscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.forward(ctx, events, metrics.SourceStore)
	}()

	if watcher, ok := w.store.Storage().(storage.Watcher); ok {
		changes, err := watcher.Watch(ctx, w.store.Key())
		if err != nil {
			logCtx := w.logg.WithField(w.logg.WithStorageKey(ctx, w.store.Key()), "error", err.Error())
			w.logg.Warn(logCtx, "storage watch unavailable; relying on polling")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.forward(ctx, changes, metrics.SourceStorage)
			}()
		}
	}

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	var refresh <-chan time.Time
	if w.refreshInterval > 0 {
		ticker := time.NewTicker(w.refreshInterval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	w.Request(metrics.SourceVisibility)

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.pending:
			if fire == nil {
				debounce = time.NewTimer(w.debounce)
				fire = debounce.C
			}
		case <-fire:
			fire = nil
			debounce = nil
			w.reconcileOnce(ctx)
		case <-poll.C:
			w.checkFingerprint(ctx)
		case <-refresh:
			w.Request(metrics.SourceRefresh)
		}
	}
}

func (w *Watcher) forward(ctx context.Context, ch <-chan struct{}, source string) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			w.Request(source)
		}
	}
}

func (w *Watcher) checkFingerprint(ctx context.Context) {
	if !w.visible.Load() {
		return
	}
	c, err := w.store.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logg.Warn(w.logg.WithField(w.logg.WithStorageKey(ctx, w.store.Key()), "error", err.Error()), "poll cart read failed; skipping tick")
		}
		return
	}
	current := c.Fingerprint()
	w.mu.RLock()
	stale := !w.reconciled || current != w.lastFingerprint
	w.mu.RUnlock()
	if stale {
		w.Request(metrics.SourcePoll)
	}
}

func (w *Watcher) reconcileOnce(ctx context.Context) {
	if !w.visible.Load() {
		return
	}
	c, err := w.store.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logg.Error(w.logg.WithStorageKey(ctx, w.store.Key()), "read cart; keeping previous view", err)
		}
		return
	}
	view, err := w.reconciler.Reconcile(ctx, c)
	if err != nil {
		if ctx.Err() == nil {
			w.logg.Error(ctx, "reconcile cart", err)
		}
		return
	}

	w.mu.Lock()
	w.latest = view
	w.lastFingerprint = c.Fingerprint()
	w.reconciled = true
	w.mu.Unlock()

	for _, fn := range w.onView {
		fn(ctx, view)
	}
}

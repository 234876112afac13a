package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentFetches = 8

// LineStatus says whether a view line was matched to a variant.
type LineStatus string

const (
	StatusResolved LineStatus = "resolved"
	// StatusPending marks a line whose design could not be fetched this pass.
	StatusPending LineStatus = "pending"
)

// VariantSource fetches the normalized variants of one design.
type VariantSource interface {
	DesignVariants(ctx context.Context, designID string) ([]catalog.Variant, error)
}

// ViewLine is one displayed cart row. Lines resolving to the same variant
// are shown once with their quantities summed.
type ViewLine struct {
	Line     Line             `json:"line"`
	Variant  *catalog.Variant `json:"variant,omitempty"`
	Quantity int              `json:"quantity"`
	Status   LineStatus       `json:"status"`
	Subtotal decimal.Decimal  `json:"subtotal"`
}

// View is a priced, display-ready cart. It is never persisted.
type View struct {
	Lines        []ViewLine      `json:"lines"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	ItemCount    int             `json:"itemCount"`
	Pending      int             `json:"pending"`
	ReconciledAt time.Time       `json:"reconciledAt"`
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMaxConcurrentFetches bounds in-flight design fetches.
func WithMaxConcurrentFetches(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithReconcileMetrics records durations and fetch failures.
func WithReconcileMetrics(m *metrics.SyncMetrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// Reconciler prices a cart against live catalog data. It only reads.
type Reconciler struct {
	source        VariantSource
	logg          *logger.Logger
	metrics       *metrics.SyncMetrics
	maxConcurrent int
	now           func() time.Time
}

// NewReconciler builds a Reconciler over source.
func NewReconciler(source VariantSource, logg *logger.Logger, opts ...ReconcilerOption) (*Reconciler, error) {
	if source == nil {
		return nil, errors.New("variant source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	r := &Reconciler{
		source:        source,
		logg:          logg,
		maxConcurrent: defaultMaxConcurrentFetches,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Reconcile fetches every distinct design in c concurrently and matches each
// line to a variant. A failed design fetch leaves that design's lines pending;
// the call itself only fails when ctx ends.
func (r *Reconciler) Reconcile(ctx context.Context, c Cart) (*View, error) {
	start := r.now()
	view, err := r.reconcile(ctx, c)
	r.metrics.ObserveReconcile(time.Since(start), err)
	return view, err
}

func (r *Reconciler) reconcile(ctx context.Context, c Cart) (*View, error) {
	designIDs := distinctDesigns(c.Lines)
	fetched := make([][]catalog.Variant, len(designIDs))
	failed := make([]bool, len(designIDs))

	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for i, designID := range designIDs {
		g.Go(func() error {
			variants, err := r.source.DesignVariants(ctx, designID)
			if err != nil {
				failed[i] = true
				if ctx.Err() == nil {
					r.metrics.IncFetchFailure()
					logCtx := r.logg.WithField(r.logg.WithDesignID(ctx, designID), "error", err.Error())
					r.logg.Warn(logCtx, "design fetch failed; lines left pending")
				}
				return nil
			}
			fetched[i] = variants
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byDesign := make(map[string][]catalog.Variant, len(designIDs))
	for i, designID := range designIDs {
		if !failed[i] {
			byDesign[designID] = fetched[i]
		}
	}
	return buildView(c.Lines, byDesign, r.now()), nil
}

func buildView(lines []Line, byDesign map[string][]catalog.Variant, at time.Time) *View {
	view := &View{Lines: make([]ViewLine, 0, len(lines)), TotalAmount: decimal.Zero, ReconciledAt: at}
	shown := map[string]int{}

	for _, line := range lines {
		view.ItemCount += line.Quantity
		variant, ok := SelectVariant(byDesign[line.DesignID], line.SizeName)
		if !ok {
			view.Pending++
			view.Lines = append(view.Lines, ViewLine{
				Line: line, Quantity: line.Quantity, Status: StatusPending, Subtotal: decimal.Zero,
			})
			continue
		}

		subtotal := variant.FinalPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.TotalAmount = view.TotalAmount.Add(subtotal)

		if i, seen := shown[variant.ID]; seen && variant.ID != "" {
			view.Lines[i].Quantity += line.Quantity
			view.Lines[i].Subtotal = view.Lines[i].Subtotal.Add(subtotal)
			continue
		}
		shown[variant.ID] = len(view.Lines)
		v := variant
		view.Lines = append(view.Lines, ViewLine{
			Line: line, Variant: &v, Quantity: line.Quantity, Status: StatusResolved, Subtotal: subtotal,
		})
	}
	return view
}

// SelectVariant picks the variant for a line: the exact size when recorded
// and present, else the first in-stock variant, else the first variant.
func SelectVariant(variants []catalog.Variant, sizeName string) (catalog.Variant, bool) {
	if len(variants) == 0 {
		return catalog.Variant{}, false
	}
	if sizeName = strings.TrimSpace(sizeName); sizeName != "" {
		for _, v := range variants {
			if v.SizeName == sizeName {
				return v, true
			}
		}
	}
	for _, v := range variants {
		if v.InStock() {
			return v, true
		}
	}
	return variants[0], true
}

func distinctDesigns(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.DesignID]; ok {
			continue
		}
		seen[line.DesignID] = struct{}{}
		out = append(out, line.DesignID)
	}
	return out
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/refcache"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Query is a catalog listing request expressed in display names.
type Query struct {
	SizeName string
	TypeName string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	Page     int
	Limit    int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOmitUnresolvedFilters drops a name filter the cache cannot map to an
// id instead of forwarding the plain name.
func WithOmitUnresolvedFilters(omit bool) ServiceOption {
	return func(s *Service) { s.omitUnresolved = omit }
}

// WithDefaultLimit sets the page size used when a query has none.
func WithDefaultLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = pagination.NormalizeLimit(limit)
		}
	}
}

// Service fetches catalog data and returns it normalized.
type Service struct {
	fetcher        Fetcher
	normalizer     *Normalizer
	cache          *refcache.Cache
	logg           *logger.Logger
	omitUnresolved bool
	defaultLimit   int
	variants       singleflight.Group
}

// NewService wires a Service around fetcher and cache.
func NewService(fetcher Fetcher, cache *refcache.Cache, logg *logger.Logger, opts ...ServiceOption) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("catalog fetcher required")
	}
	if cache == nil {
		return nil, fmt.Errorf("reference cache required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Service{
		fetcher:      fetcher,
		normalizer:   NewNormalizer(cache, logg),
		cache:        cache,
		logg:         logg,
		defaultLimit: pagination.DefaultLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Normalizer exposes the service's normalizer.
func (s *Service) Normalizer() *Normalizer {
	return s.normalizer
}

// ResolveFilters maps display names to reference ids where the cache knows
// them.
func (s *Service) ResolveFilters(ctx context.Context, q Query) Filters {
	return Filters{
		Size:        s.resolveFilter(ctx, refcache.KindSize, q.SizeName),
		ProductType: s.resolveFilter(ctx, refcache.KindProductType, q.TypeName),
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
	}
}

func (s *Service) resolveFilter(ctx context.Context, kind refcache.Kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || refcache.LooksLikeID(name) {
		return name
	}
	if id, ok := s.cache.ResolveID(kind, name); ok {
		return id
	}
	if s.omitUnresolved {
		logCtx := s.logg.WithFields(ctx, map[string]any{"kind": string(kind), "name": name})
		s.logg.Debug(logCtx, "filter name not resolvable yet; omitting")
		return ""
	}
	return name
}

// List fetches one catalog page. A page the backend returns in an
// unrecognized shape comes back as PageResult.Raw.
func (s *Service) List(ctx context.Context, q Query, groupBy GroupBy) (PageResult, error) {
	if q.MinPrice.Valid && q.MaxPrice.Valid && q.MinPrice.Decimal.GreaterThan(q.MaxPrice.Decimal) {
		return PageResult{}, pkgerrors.New(pkgerrors.CodeValidation, "minPrice must not exceed maxPrice")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	page := pagination.Params{Page: q.Page, Limit: limit}.Normalize()

	raw, err := s.fetcher.FetchCatalogPage(ctx, s.ResolveFilters(ctx, q), Pagination{Page: page.Page, Limit: page.Limit}, groupBy)
	if err != nil {
		return PageResult{}, dependencyError(err, "fetch catalog page")
	}
	return s.normalizer.NormalizePage(ctx, raw, groupBy), nil
}

// DesignVariants fetches and normalizes every variant of one design.
// Concurrent calls for the same design share one fetch. The shared fetch is
// not tied to any one caller's cancellation; a canceled caller stops waiting
// and gets ctx.Err() while the others keep theirs.
func (s *Service) DesignVariants(ctx context.Context, designID string) ([]Variant, error) {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design id is required")
	}
	fetchCtx := context.WithoutCancel(ctx)
	results := s.variants.DoChan(designID, func() (any, error) {
		return s.fetcher.FetchDesignVariants(fetchCtx, designID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, dependencyError(res.Err, "fetch design variants")
		}
		raws, _ := res.Val.([]RawRecord)
		return s.normalizer.NormalizeVariants(ctx, raws), nil
	}
}

func dependencyError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

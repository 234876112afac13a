package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Filters are the values sent to the backend. Size and ProductType carry a
// reference id when one is known and a plain name otherwise.
type Filters struct {
	Size        string
	ProductType string
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// Fetcher is the catalog backend.
type Fetcher interface {
	FetchCatalogPage(ctx context.Context, filters Filters, page Pagination, groupBy GroupBy) (RawPage, error)
	// FetchDesignVariants returns every size variant of a design, zero-stock
	// ones included, with size references populated.
	FetchDesignVariants(ctx context.Context, designID string) ([]RawRecord, error)
}

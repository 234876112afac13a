package catalog

import "github.com/shopspring/decimal"

// Variant is one purchasable size of a design. Values are built by the
// Normalizer and passed by value.
type Variant struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"imageUrl"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`
	SizeName      string          `json:"sizeName"`
	TypeName      string          `json:"typeName"`
	StockQuantity int             `json:"stockQuantity"`
}

// InStock reports whether the variant can be bought right now.
func (v Variant) InStock() bool {
	return v.StockQuantity > 0
}

// Design groups the size variants of one product concept.
//
// The representative prices are the first variant's prices. That is an
// approximation: it misstates designs whose first variant is discounted
// differently from the rest or is out of stock.
type Design struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	TypeName                 string          `json:"typeName"`
	RepresentativeBasePrice  decimal.Decimal `json:"representativeBasePrice"`
	RepresentativeFinalPrice decimal.Decimal `json:"representativeFinalPrice"`
	Variants                 []Variant       `json:"variants"`
	AvailableSizeNames       []string        `json:"availableSizeNames"`
}

// GroupBy selects the catalog page shape.
type GroupBy string

const (
	GroupByNone   GroupBy = ""
	GroupByDesign GroupBy = "design"
)

// Page is a canonical page of catalog items.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// PageResult is what NormalizePage returns. Exactly one of Variants, Designs
// or Raw is set; Raw means the response was not in a recognized shape and is
// handed back untouched.
type PageResult struct {
	Variants *Page[Variant]
	Designs  *Page[Design]
	Raw      RawPage
}

// Canonical reports whether the page was normalized.
func (r PageResult) Canonical() bool {
	return r.Raw == nil && (r.Variants != nil || r.Designs != nil)
}

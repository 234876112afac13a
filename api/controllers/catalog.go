package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/go-chi/chi/v5"
)

const maxFilterLen = 64

// CatalogPageResponse carries either a normalized page or, when the backend
// answered in a shape not yet understood, its raw body.
type CatalogPageResponse struct {
	Canonical bool            `json:"canonical"`
	Page      any             `json:"page,omitempty"`
	Raw       catalog.RawPage `json:"raw,omitempty"`
}

func CatalogProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return catalogList(svc, logg, catalog.GroupByNone)
}

func CatalogDesigns(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return catalogList(svc, logg, catalog.GroupByDesign)
}

func catalogList(svc CatalogService, logg *logger.Logger, groupBy catalog.GroupBy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), q, groupBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := CatalogPageResponse{Canonical: result.Canonical()}
		switch {
		case !resp.Canonical:
			resp.Raw = result.Raw
		case result.Designs != nil:
			resp.Page = result.Designs
		default:
			resp.Page = result.Variants
		}
		responses.WriteSuccess(w, resp)
	}
}

func parseCatalogQuery(r *http.Request) (catalog.Query, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return catalog.Query{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return catalog.Query{}, err
	}
	minPrice, err := validators.ParseQueryDecimal(r, "minPrice")
	if err != nil {
		return catalog.Query{}, err
	}
	maxPrice, err := validators.ParseQueryDecimal(r, "maxPrice")
	if err != nil {
		return catalog.Query{}, err
	}
	query := r.URL.Query()
	return catalog.Query{
		SizeName: validators.SanitizeName(query.Get("size"), maxFilterLen),
		TypeName: validators.SanitizeName(query.Get("productType"), maxFilterLen),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Page:     page,
		Limit:    limit,
	}, nil
}

func DesignVariants(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designID := strings.TrimSpace(chi.URLParam(r, "designId"))
		if designID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "design id is required"))
			return
		}
		ctx := logg.WithDesignID(r.Context(), designID)
		variants, err := svc.DesignVariants(ctx, designID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"designId": designID, "variants": variants})
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const maxSizeNameLen = 64

type cartLineRequest struct {
	DesignID string `json:"designId" validate:"required,notblank,max=128"`
	SizeName string `json:"sizeName" validate:"max=64"`
	Quantity int    `json:"quantity" validate:"gte=0,max=999"`
}

// CartResponse pairs the persisted cart with its priced view.
type CartResponse struct {
	Cart cart.Cart  `json:"cart"`
	View *cart.View `json:"view,omitempty"`
}

// CartGet reconciles the persisted cart now.
func CartGet(store CartStore, reconciler CartReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := store.Get(r.Context())
		view, err := reconciler.Reconcile(r.Context(), c)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile cart"))
			return
		}
		responses.WriteSuccess(w, CartResponse{Cart: c, View: view})
	}
}

// CartView returns the watcher's latest view without fetching.
func CartView(watcher CartWatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := watcher.Latest()
		responses.WriteSuccess(w, map[string]any{
			"ready":   ok,
			"visible": watcher.Visible(),
			"view":    view,
		})
	}
}

func CartAddLine(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cartLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithDesignID(r.Context(), req.DesignID)
		c, err := store.Add(ctx, req.DesignID, validators.SanitizeName(req.SizeName, maxSizeNameLen), req.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, CartResponse{Cart: c})
	}
}

func CartSetQuantity(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cartLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithDesignID(r.Context(), req.DesignID)
		c, err := store.SetQuantity(ctx, req.DesignID, validators.SanitizeName(req.SizeName, maxSizeNameLen), req.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, CartResponse{Cart: c})
	}
}

// CartRemoveLine removes one (designId, sizeName) line when sizeName is in
// the query, even if empty, and every line of the design otherwise.
func CartRemoveLine(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		designID := strings.TrimSpace(query.Get("designId"))
		if designID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "designId is required").
				WithDetails(map[string]any{"field": "designId"}))
			return
		}
		ctx := logg.WithDesignID(r.Context(), designID)

		var (
			c   cart.Cart
			err error
		)
		if query.Has("sizeName") {
			c, err = store.RemoveLine(ctx, designID, validators.SanitizeName(query.Get("sizeName"), maxSizeNameLen))
		} else {
			c, err = store.Remove(ctx, designID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, CartResponse{Cart: c})
	}
}

func CartClear(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, CartResponse{Cart: cart.Cart{Lines: []cart.Line{}}})
	}
}

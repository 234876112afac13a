package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// SessionVisibility lets the UI report whether the cart view is on screen.
// The watcher only reconciles while it is.
func SessionVisibility(watcher CartWatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req visibilityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		watcher.SetVisible(*req.Visible)
		logg.Debug(logg.WithField(r.Context(), "visible", *req.Visible), "session.visibility")
		responses.WriteSuccess(w, map[string]bool{"visible": watcher.Visible()})
	}
}

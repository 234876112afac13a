package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const cartViewPath = "/api/v1/cart/view"

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	readiness map[string]controllers.Pinger,
	catalogService controllers.CatalogService,
	cartStore controllers.CartStore,
	reconciler controllers.CartReconciler,
	watcher controllers.CartWatcher,
) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Logging(logg, cartViewPath),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, readiness))
	if cfg.Metrics.Enabled && gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(catalogService, logg))
			r.Get("/designs", controllers.CatalogDesigns(catalogService, logg))
			r.Get("/designs/{designId}/variants", controllers.DesignVariants(catalogService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartStore, reconciler, logg))
			r.Delete("/", controllers.CartClear(cartStore, logg))
			r.Get("/view", controllers.CartView(watcher))
			r.Post("/lines", controllers.CartAddLine(cartStore, logg))
			r.Put("/lines", controllers.CartSetQuantity(cartStore, logg))
			r.Delete("/lines", controllers.CartRemoveLine(cartStore, logg))
		})

		r.Put("/session/visibility", controllers.SessionVisibility(watcher, logg))
	})

	return r
}

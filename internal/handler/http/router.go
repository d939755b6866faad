package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/storefront/pkg/health"
	"github.com/utafrali/EcommerceGo/storefront/pkg/middleware"
)

const (
	serviceName           = "storefront"
	defaultRequestTimeout = 30 * time.Second
)

// RouterConfig carries the handlers and settings the router mounts.
type RouterConfig struct {
	Cart      *CartHandler
	Wishlist  *WishlistHandler
	Sync      *SyncHandler
	Health    *health.Handler
	Inspector SessionInspector
	CORS      middleware.CORSConfig
	Logger    *slog.Logger

	// RequestTimeout bounds a request. It must cover a full retry budget
	// of one sync call; zero means 30s.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront sync routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(timeout))
	r.Use(middleware.RequestLogging(cfg.Logger, "/health", "/metrics"))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		r.Use(Session(cfg.Inspector))
		r.Use(middleware.RequestLogger(cfg.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)

			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{id}", cfg.Cart.RemoveItem)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", cfg.Wishlist.GetWishlist)
			r.Delete("/", cfg.Wishlist.ClearWishlist)

			r.Post("/items", cfg.Wishlist.AddItem)
			r.Get("/items/{id}", cfg.Wishlist.GetItem)
			r.Delete("/items/{id}", cfg.Wishlist.RemoveItem)
			r.Post("/toggle", cfg.Wishlist.Toggle)
		})

		r.Post("/session/login", cfg.Sync.Login)
		r.Post("/sync/pull", cfg.Sync.Pull)
		r.Get("/sync/status", cfg.Sync.Status)
		r.Put("/connectivity", cfg.Sync.SetConnectivity)
	})

	return r
}

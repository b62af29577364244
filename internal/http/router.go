// Package http exposes the storefront's cart, checkout and catalog over a
// JSON API for the render layer.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Checkout CheckoutService
	Catalog  Catalog

	// Instrument wraps every route, typically the telemetry request middleware.
	Instrument     func(http.Handler) http.Handler
	MetricsHandler http.Handler
	HealthChecks   map[string]HealthCheck

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Logger             *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 1 << 20 // 1MB
	}

	cartHandler := NewCartHandler(cfg.Checkout)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.Checkout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Instrument != nil {
		r.Use(cfg.Instrument)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/books", catalogHandler.ListBooks)
			r.Get("/books/{slug}", catalogHandler.GetBook)
			r.Get("/covers", catalogHandler.CartCovers)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetState)
			r.Put("/shipping", checkoutHandler.SaveShipping)
			r.Post("/step", checkoutHandler.SetStep)
			r.Post("/back", checkoutHandler.NavigateBack)
			r.Post("/orders", checkoutHandler.SubmitOrder)
			r.Post("/payment", checkoutHandler.CompletePayment)
			r.Post("/reconcile", checkoutHandler.Reconcile)
		})
	})

	return otelhttp.NewHandler(r, "storefront.http")
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		respondJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

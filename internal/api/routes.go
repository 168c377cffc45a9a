package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Storefront surface, unauthenticated.
		r.Get("/products", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Post("/orders", h.CreateOrder)
		r.Get("/track/{code}", h.TrackOrder)

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Put("/orders/{id}/status", h.UpdateOrderStatus)
			r.Post("/orders/{id}/read", h.MarkOrderRead)

			r.Post("/products", h.AddProduct)
			r.Get("/products/low-stock", h.LowStockProducts)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeactivateProduct)

			r.Get("/customers/{email}/orders", h.CustomerOrders)
			r.Get("/customers/{email}/stats", h.CustomerStats)

			r.Get("/sync/status", h.SyncStatus)
			r.Post("/sync/trigger", h.TriggerSync)
			r.Put("/sync/online", h.SetOnline)
		})
	})

	return r
}

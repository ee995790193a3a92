package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimization", func(r chi.Router) {
		r.Get("/risk-free-rate", h.HandleGetRiskFreeRate)

		r.Route("/sharpe", func(r chi.Router) {
			r.Post("/", h.HandleOptimize)
			r.Post("/chart", h.HandleOptimizeChart)
			r.Post("/returns", h.HandleOptimizeReturns)
		})
	})
}

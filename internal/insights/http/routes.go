package insightshttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the analytics pages.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/analytics", h.handleBusiness)
	r.Get("/analytics/success", h.handleSuccess)
	r.Get("/analytics/success.json", h.handleSuccessJSON)
	r.Get("/analytics/success/export.csv", h.handleSuccessCSV)
	r.Get("/customers/{id}/analytics", h.handleCustomerAnalytics)
}

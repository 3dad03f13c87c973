package api

import (
	"net/http"

	"github.com/ashureev/datagym/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the API routes. runLimit, when set, wraps the
// run endpoint.
func (h *Handler) RegisterRoutes(r chi.Router, runLimit func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/profile", h.GetProfile)
		r.Get("/lessons", h.ListLessons)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Route("/lab", func(r chi.Router) {
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.PutSettings)
			r.Get("/dataset", h.GetDataset)
			r.Post("/dataset", h.UploadDataset)
			r.Delete("/dataset", h.ResetDataset)
			r.Post("/dataset/sample", h.LoadSample)
			if runLimit != nil {
				r.With(runLimit).Post("/run", h.Run)
			} else {
				r.Post("/run", h.Run)
			}
		})
	})
}

// DeviceKey buckets rate limits by anonymous device.
func DeviceKey(r *http.Request) string {
	return identity.DeviceIDFromContext(r.Context())
}

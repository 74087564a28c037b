// internal/app/features/authapi/routes.go
package authapi

import "github.com/go-chi/chi/v5"

// Routes mounts the auth API endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/recover", h.Recover)
	r.Get("/me", h.Me)
	return r
}

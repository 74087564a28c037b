// internal/app/features/approvals/routes.go
package approvals

import (
	"github.com/go-chi/chi/v5"

	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// Routes mounts the approvals API. Submission needs any signed-in
// user; everything else is admin only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Post("/approvals", h.Submit)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Get("/approvals", h.ListAll)
		r.Get("/approvals/pending", h.ListPending)
		r.Post("/approvals/{id}/approve", h.Approve)
		r.Post("/approvals/{id}/reject", h.Reject)
		r.Get("/notifications", h.Notifications)
		r.Get("/notifications/unread-count", h.UnreadCount)
		r.Post("/notifications/mark-read", h.MarkRead)
	})

	return r
}

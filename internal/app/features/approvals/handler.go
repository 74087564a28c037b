// internal/app/features/approvals/handler.go

// Package approvals exposes the role-upgrade workflow API: submission
// for signed-in users, review and notifications for admins.
package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	approvalstore "github.com/zamanic/numerizam/internal/app/store/approvals"
	"github.com/zamanic/numerizam/internal/app/system/approval"
	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/app/system/timeouts"
	"github.com/zamanic/numerizam/internal/domain/models"
)

type Handler struct {
	Engine *approval.Engine
	Log    *zap.Logger
}

// NewHandler constructs the approvals handler.
func NewHandler(engine *approval.Engine, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Log: logger}
}

type submitRequest struct {
	RequestedRole         string `json:"requested_role"`
	BusinessJustification string `json:"business_justification"`
	Experience            string `json:"experience,omitempty"`
	AdditionalInfo        string `json:"additional_info,omitempty"`
}

// Submit handles POST /api/approvals for the signed-in user.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	if u.Profile.ID.IsZero() {
		// Degraded sessions have no authoritative profile to attach
		// the request to.
		writeError(w, http.StatusConflict, "profile not available yet, try again shortly")
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	req, err := h.Engine.Submit(ctx, approval.SubmitInput{
		UserID:                u.Profile.ID,
		Email:                 u.Profile.Email,
		FullName:              u.Profile.FullName,
		CompanyName:           u.Profile.CompanyName,
		RequestedRole:         models.Role(body.RequestedRole),
		BusinessJustification: body.BusinessJustification,
		Experience:            body.Experience,
		AdditionalInfo:        body.AdditionalInfo,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, req)
	case errors.Is(err, approvalstore.ErrDuplicatePending):
		writeError(w, http.StatusConflict, "you already have a pending request")
	case errors.Is(err, approval.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "unknown requested role")
	case errors.Is(err, approval.ErrMissingJustification):
		writeError(w, http.StatusBadRequest, "business justification is required")
	default:
		h.Log.Error("approval submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submission failed")
	}
}

// ListAll handles GET /api/approvals.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, err := h.Engine.ListAll(ctx)
	if err != nil {
		h.Log.Error("listing approval requests failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListPending handles GET /api/approvals/pending.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reqs, err := h.Engine.ListPending(ctx)
	if err != nil {
		h.Log.Error("listing pending requests failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type decisionRequest struct {
	Notes string `json:"notes,omitempty"`
}

// Approve handles POST /api/approvals/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Engine.Approve)
}

// Reject handles POST /api/approvals/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Engine.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op func(context.Context, primitive.ObjectID, string, string) error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var body decisionRequest
	if r.Body != nil {
		// Notes are optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	err = op(ctx, id, u.Profile.Email, body.Notes)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, approvalstore.ErrAlreadyReviewed):
		writeError(w, http.StatusConflict, "request has already been reviewed")
	case errors.Is(err, approvalstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "request not found")
	default:
		h.Log.Error("approval decision failed",
			zap.String("request_id", id.Hex()),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "decision failed")
	}
}

// Notifications handles GET /api/notifications for the signed-in admin.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Engine.GetNotifications(ctx, u.Profile.Email)
	if err != nil {
		h.Log.Error("listing notifications failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	count, err := h.Engine.GetUnreadCount(ctx, u.Profile.Email)
	if err != nil {
		h.Log.Error("unread count failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "count failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

type markReadRequest struct {
	RequestIDs []string `json:"request_ids,omitempty"`
}

// MarkRead handles POST /api/notifications/mark-read. Without request
// ids, everything unread for the admin is marked.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	var body markReadRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	ids := make([]primitive.ObjectID, 0, len(body.RequestIDs))
	for _, raw := range body.RequestIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request id")
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Engine.MarkRead(ctx, u.Profile.Email, ids...); err != nil {
		h.Log.Error("mark read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internal/app/features/authapi/handler.go

// Package authapi exposes the authentication endpoints. Each endpoint
// translates to an identity-provider call plus the matching auth-state
// event pushed through the session reconciler; the resulting view is
// cached in the session cookie.
package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/app/system/identity"
	"github.com/zamanic/numerizam/internal/app/system/normalize"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/app/system/timeouts"
)

// SubjectLinker records the provider subject on a profile after the
// first successful sign-in.
type SubjectLinker interface {
	LinkSubject(ctx context.Context, id primitive.ObjectID, subjectID string) error
}

type Handler struct {
	Provider   identity.Provider
	Reconciler *reconciler.Reconciler
	SessionMgr *auth.SessionManager
	Profiles   SubjectLinker
	Log        *zap.Logger
}

// NewHandler constructs the auth API handler.
func NewHandler(provider identity.Provider, rec *reconciler.Reconciler, sessionMgr *auth.SessionManager, profiles SubjectLinker, logger *zap.Logger) *Handler {
	return &Handler{
		Provider:   provider,
		Reconciler: rec,
		SessionMgr: sessionMgr,
		Profiles:   profiles,
		Log:        logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is the JSON shape of the reconciled user.
type userView struct {
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	IsApproved bool      `json:"is_approved"`
	Degraded   bool      `json:"degraded"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func viewOf(u *reconciler.User) userView {
	return userView{
		Email:      u.Profile.Email,
		FullName:   u.Profile.FullName,
		Role:       string(u.Profile.Role),
		IsApproved: u.Profile.IsApproved,
		Degraded:   u.Degraded,
		ExpiresAt:  u.Session.ExpiresAt,
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creds.Email = normalize.Email(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Provider.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.Log.Error("identity provider sign-in failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "sign-in unavailable, try again")
		return
	}

	u := h.Reconciler.OnProviderEvent(r.Context(), identity.Event{
		Type:    identity.EventSignedIn,
		Session: sess,
	})
	if u == nil {
		writeError(w, http.StatusUnauthorized, "session expired, sign in again")
		return
	}

	// Best effort: remember which provider subject owns this profile.
	if !u.Degraded && !u.Profile.ID.IsZero() {
		linkCtx, linkCancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer linkCancel()
		if err := h.Profiles.LinkSubject(linkCtx, u.Profile.ID, sess.SubjectID); err != nil {
			h.Log.Warn("failed to link auth subject",
				zap.String("email", u.Profile.Email),
				zap.Error(err))
		}
	}

	if err := h.SessionMgr.Establish(w, r, u); err != nil {
		h.Log.Error("failed to establish session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(u))
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.SessionMgr.RefreshToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "no session to refresh")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Provider.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrSessionExpired) {
			h.Reconciler.OnProviderEvent(r.Context(), identity.Event{Type: identity.EventSignedOut})
			_ = h.SessionMgr.Clear(w, r)
			writeError(w, http.StatusUnauthorized, "session expired, sign in again")
			return
		}
		h.Log.Error("identity provider refresh failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "refresh unavailable, try again")
		return
	}

	u := h.Reconciler.OnProviderEvent(r.Context(), identity.Event{
		Type:    identity.EventTokenRefreshed,
		Session: sess,
	})
	if u == nil {
		_ = h.SessionMgr.Clear(w, r)
		writeError(w, http.StatusUnauthorized, "session expired, sign in again")
		return
	}

	if err := h.SessionMgr.Establish(w, r, u); err != nil {
		h.Log.Error("failed to refresh session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(u))
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.SessionMgr.RefreshToken(r); token != "" {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		if err := h.Provider.SignOut(ctx, token); err != nil {
			h.Log.Warn("provider sign-out failed", zap.Error(err))
		}
	}

	h.Reconciler.OnProviderEvent(r.Context(), identity.Event{Type: identity.EventSignedOut})
	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Warn("failed to clear session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recover handles POST /api/auth/recover. The response never reveals
// whether the email exists.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := normalize.Email(body.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	if err := h.Provider.RecoverPassword(ctx, email); err != nil {
		h.Log.Warn("password recovery request failed", zap.Error(err))
	}

	// With a live session, recovery behaves like a refresh of the
	// current subject; without one there is nothing to reconcile.
	if u, ok := auth.CurrentUser(r); ok {
		sess := u.Session
		h.Reconciler.OnProviderEvent(r.Context(), identity.Event{
			Type:    identity.EventPasswordRecovery,
			Session: &sess,
		})
	}
	w.WriteHeader(http.StatusAccepted)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(u))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

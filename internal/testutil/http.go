package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/app/system/identity"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// User builds a reconciled view for handler tests.
func User(email string, role models.Role, approved bool) *reconciler.User {
	return &reconciler.User{
		Session: identity.Session{
			SubjectID: primitive.NewObjectID().Hex(),
			Email:     email,
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		},
		Profile: models.UserProfile{
			ID:         primitive.NewObjectID(),
			Email:      email,
			FullName:   "Test User",
			Role:       role,
			IsApproved: approved,
		},
	}
}

// AdminUser builds an approved admin view.
func AdminUser() *reconciler.User {
	return User("admin@test.com", models.RoleAdmin, true)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request carrying a JSON body.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates a request with a user in context,
// bypassing the session middleware.
func NewAuthenticatedRequest(method, target string, u *reconciler.User) *http.Request {
	return auth.WithTestUser(httptest.NewRequest(method, target, nil), u)
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// internal/app/system/auth/auth.go

// Package auth carries the reconciled user across HTTP requests. The
// view produced at sign-in is cached in an authenticated cookie and
// re-injected into the request context by LoadSessionUser; handlers
// never read the cookie directly.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/app/system/authz"
	"github.com/zamanic/numerizam/internal/app/system/identity"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
)

const (
	isAuthKey     = "is_authenticated"
	profileIDKey  = "profile_id"
	subjectIDKey  = "subject_id"
	emailKey      = "email"
	fullNameKey   = "full_name"
	roleKey       = "role"
	approvedKey   = "is_approved"
	degradedKey   = "degraded"
	expiresAtKey  = "expires_at"
	refreshTokKey = "refresh_token"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the reconciled user injected by LoadSessionUser.
func CurrentUser(r *http.Request) (*reconciler.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*reconciler.User)
	return u, ok
}

// WithTestUser injects a user into the request context. Test helper.
func WithTestUser(r *http.Request, u *reconciler.User) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *reconciler.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// SessionManager owns the session cookie.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionManager builds a manager over a cookie store.
// In production (secure=true) cookies are Secure with SameSite=None so
// they survive cross-site use over HTTPS; in dev Lax is fine.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, logger: logger, now: time.Now}, nil
}

// Establish caches the reconciled user in the session cookie.
func (m *SessionManager) Establish(w http.ResponseWriter, r *http.Request, u *reconciler.User) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[isAuthKey] = true
	sess.Values[subjectIDKey] = u.Session.SubjectID
	sess.Values[profileIDKey] = u.Profile.ID.Hex()
	sess.Values[emailKey] = u.Profile.Email
	sess.Values[fullNameKey] = u.Profile.FullName
	sess.Values[roleKey] = string(u.Profile.Role)
	sess.Values[approvedKey] = u.Profile.IsApproved
	sess.Values[degradedKey] = u.Degraded
	sess.Values[expiresAtKey] = u.Session.ExpiresAt.Unix()
	sess.Values[refreshTokKey] = u.Session.RefreshToken
	return sess.Save(r, w)
}

// Clear ends the session.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// RefreshToken returns the cached refresh token, if any.
func (m *SessionManager) RefreshToken(r *http.Request) string {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[refreshTokKey].(string)
	return tok
}

// LoadSessionUser rebuilds the cached user view and injects it into the
// request context. An undecodable cookie (rotated key, tampering) is
// dropped and the request continues unauthenticated. A cookie whose
// cached session is past expiry is ignored; the client must refresh.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.store.Get(r, m.name)
		if err != nil {
			var scErr securecookie.Error
			if errors.As(err, &scErr) && scErr.IsDecode() {
				m.logger.Debug("dropping undecodable session cookie", zap.Error(err))
				_ = m.Clear(w, r)
			}
			next.ServeHTTP(w, r)
			return
		}

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			if u := m.userFromSession(sess); u != nil {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SessionManager) userFromSession(sess *sessions.Session) *reconciler.User {
	expiresUnix, _ := sess.Values[expiresAtKey].(int64)
	expiresAt := time.Unix(expiresUnix, 0)
	if expiresUnix == 0 || !m.now().Before(expiresAt) {
		return nil
	}

	role, _ := models.ParseRole(getString(sess, roleKey))
	approved, _ := sess.Values[approvedKey].(bool)
	degraded, _ := sess.Values[degradedKey].(bool)
	profileID, _ := primitive.ObjectIDFromHex(getString(sess, profileIDKey))

	return &reconciler.User{
		Session: identity.Session{
			SubjectID:    getString(sess, subjectIDKey),
			Email:        getString(sess, emailKey),
			RefreshToken: getString(sess, refreshTokKey),
			ExpiresAt:    expiresAt,
		},
		Profile: models.UserProfile{
			ID:         profileID,
			Email:      getString(sess, emailKey),
			FullName:   getString(sess, fullNameKey),
			Role:       role,
			IsApproved: approved,
		},
		Degraded: degraded,
	}
}

// RequireSignedIn rejects requests without a user in context.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only approved users holding one of the allowed
// roles. No user yields 401; a user the gate denies (wrong role or
// still unapproved) yields 403.
func RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !authz.Allow(u, allowed...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

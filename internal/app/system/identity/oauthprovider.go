// internal/app/system/identity/oauthprovider.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuthProvider authenticates against an external identity service that
// speaks the OAuth2 password and refresh_token grants and issues JWT
// access tokens. The subject and email are read from the token claims;
// signature verification is the issuer's job, not ours, so claims are
// decoded unverified and the token is only ever sent back to the
// issuer that minted it.
type OAuthProvider struct {
	cfg    *oauth2.Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// OAuthConfig configures an OAuthProvider.
type OAuthConfig struct {
	// TokenURL is the issuer's token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify this application to the issuer.
	ClientID     string
	ClientSecret string

	// HTTPClient overrides the client used for token requests. Optional.
	HTTPClient *http.Client
}

// NewOAuthProvider builds a provider for the given issuer.
func NewOAuthProvider(cfg OAuthConfig, logger *zap.Logger) *OAuthProvider {
	return &OAuthProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: cfg.HTTPClient,
		logger: logger,
		now:    time.Now,
	}
}

func (p *OAuthProvider) context(ctx context.Context) context.Context {
	if p.client != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	return ctx
}

// SignIn exchanges credentials via the password grant.
func (p *OAuthProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tok, err := p.cfg.PasswordCredentialsToken(p.context(ctx), email, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			(rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("identity: password grant: %w", err)
	}
	return p.session(tok)
}

// Refresh exchanges a refresh token for a renewed session.
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	src := p.cfg.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			(rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("identity: refresh grant: %w", err)
	}
	return p.session(tok)
}

// SignOut is a no-op for plain OAuth2 issuers; tokens age out on their
// own. Revocation endpoints are issuer specific and not part of the
// grants this provider uses.
func (p *OAuthProvider) SignOut(ctx context.Context, refreshToken string) error {
	return nil
}

// RecoverPassword is not supported by the OAuth2 grants; recovery runs
// through the issuer's own UI. Always succeeds so callers cannot probe
// for account existence.
func (p *OAuthProvider) RecoverPassword(ctx context.Context, email string) error {
	return nil
}

// session converts an issued token into a Session, pulling subject and
// email from the JWT claims.
func (p *OAuthProvider) session(tok *oauth2.Token) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("identity: decode access token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("identity: access token missing sub claim")
	}
	email, _ := claims["email"].(string)

	s := &Session{
		SubjectID:    sub,
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IssuedAt:     p.now(),
		ExpiresAt:    tok.Expiry,
	}
	if s.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time
		}
	}
	if p.logger != nil {
		p.logger.Debug("identity session issued",
			zap.String("subject_id", s.SubjectID),
			zap.Time("expires_at", s.ExpiresAt))
	}
	return s, nil
}

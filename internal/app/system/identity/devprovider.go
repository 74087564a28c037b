// internal/app/system/identity/devprovider.go
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zamanic/numerizam/internal/app/system/normalize"
)

// DevProvider is an in-memory Provider for local development and tests.
// Accounts are registered up front; sessions live until TTL or SignOut.
type DevProvider struct {
	mu       sync.Mutex
	accounts map[string]devAccount // keyed by normalized email
	refresh  map[string]string     // refresh token -> subject id
	ttl      time.Duration
	now      func() time.Time
}

type devAccount struct {
	subjectID string
	email     string
	hash      []byte
}

// NewDevProvider builds an empty provider whose sessions last ttl.
func NewDevProvider(ttl time.Duration) *DevProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DevProvider{
		accounts: make(map[string]devAccount),
		refresh:  make(map[string]string),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register creates an account and returns its subject id.
func (p *DevProvider) Register(email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	email = normalize.Email(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	acct := devAccount{subjectID: uuid.NewString(), email: email, hash: hash}
	p.accounts[email] = acct
	return acct.subjectID, nil
}

// SignIn validates the credentials against the registered accounts.
func (p *DevProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[normalize.Email(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issueLocked(acct), nil
}

// Refresh renews the session behind the refresh token, rotating it.
func (p *DevProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.refresh[refreshToken]
	if !ok {
		return nil, ErrSessionExpired
	}
	delete(p.refresh, refreshToken)
	for _, acct := range p.accounts {
		if acct.subjectID == sub {
			return p.issueLocked(acct), nil
		}
	}
	return nil, ErrSessionExpired
}

// SignOut revokes the refresh token.
func (p *DevProvider) SignOut(ctx context.Context, refreshToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refresh, refreshToken)
	return nil
}

// RecoverPassword is a no-op; dev accounts have no mailbox.
func (p *DevProvider) RecoverPassword(ctx context.Context, email string) error {
	return nil
}

func (p *DevProvider) issueLocked(acct devAccount) *Session {
	rt := uuid.NewString()
	p.refresh[rt] = acct.subjectID
	now := p.now()
	return &Session{
		SubjectID:    acct.subjectID,
		Email:        acct.email,
		AccessToken:  uuid.NewString(),
		RefreshToken: rt,
		IssuedAt:     now,
		ExpiresAt:    now.Add(p.ttl),
	}
}

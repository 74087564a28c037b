// internal/app/system/reconciler/reconciler.go

// Package reconciler keeps a locally held authenticated-user view
// consistent with the asynchronous auth-state events emitted by the
// identity provider.
//
// Events for one subject are processed strictly in arrival order and
// never interleaved (single-flight per subject). Profile fetches race a
// deadline; losing the race degrades the view to a fallback profile
// instead of blocking the caller, and the real fetch result is still
// committed later if nothing newer superseded it.
package reconciler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	profilestore "github.com/zamanic/numerizam/internal/app/store/profiles"
	"github.com/zamanic/numerizam/internal/app/system/identity"
	"github.com/zamanic/numerizam/internal/app/system/metrics"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// ProfileSource loads the durable profile backing a session subject.
// Not-found must be reported as profilestore.ErrNotFound.
type ProfileSource interface {
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
}

// User is the reconciled view consumed by the role gate and by every
// protected operation. It is immutable once returned.
type User struct {
	Session identity.Session
	Profile models.UserProfile

	// Degraded marks a fallback view synthesized after a failed or
	// timed-out profile fetch. The profile fields are best guesses,
	// not authoritative.
	Degraded bool
}

// Config tunes the reconciler. Zero values take the defaults.
type Config struct {
	// InitialTimeout bounds the profile fetch for the first event
	// after startup (default 10s).
	InitialTimeout time.Duration

	// EventTimeout bounds the profile fetch for every later event
	// (default 5s).
	EventTimeout time.Duration

	// NotFoundRetries is how many times a not-yet-materialized profile
	// is re-fetched before degrading (default 2). Profile creation is
	// asynchronous relative to identity registration, so a miss right
	// after sign-in is usually transient.
	NotFoundRetries int

	// RetryDelay is the pause between not-found retries (default 250ms).
	RetryDelay time.Duration

	// FallbackRole is the role carried by a degraded fallback view
	// (default accountant).
	FallbackRole models.Role
}

const (
	defaultInitialTimeout  = 10 * time.Second
	defaultEventTimeout    = 5 * time.Second
	defaultNotFoundRetries = 2
	defaultRetryDelay      = 250 * time.Millisecond
)

// Reconciler consumes identity events and resolves the current user
// view. Safe for concurrent use.
type Reconciler struct {
	source ProfileSource
	logger *zap.Logger
	cfg    Config
	now    func() time.Time

	// mu guards subject, epoch and user. epoch increments on every
	// transition; a fetch result is committed only if the epoch it was
	// started under is still current.
	mu      sync.Mutex
	subject string
	epoch   uint64
	user    *User

	// flights serializes event processing per subject.
	flights sync.Map // subject id -> *sync.Mutex
}

// New builds a Reconciler over the given profile source.
func New(source ProfileSource, cfg Config, logger *zap.Logger) *Reconciler {
	if cfg.InitialTimeout <= 0 {
		cfg.InitialTimeout = defaultInitialTimeout
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = defaultEventTimeout
	}
	if cfg.NotFoundRetries <= 0 {
		cfg.NotFoundRetries = defaultNotFoundRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if !cfg.FallbackRole.Valid() {
		cfg.FallbackRole = models.RoleAccountant
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		source: source,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Current returns the latest reconciled view, or nil when no user is
// authenticated.
func (r *Reconciler) Current() *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

// OnProviderEvent applies one auth-state event and returns the
// resulting user view (nil when unauthenticated). The call resolves
// within the configured timeout; it never blocks indefinitely.
func (r *Reconciler) OnProviderEvent(ctx context.Context, ev identity.Event) *User {
	metrics.SessionEvents.WithLabelValues(string(ev.Type)).Inc()

	sess := ev.Session
	if ev.Type == identity.EventSignedOut || sess == nil {
		// Explicit sign-out, or an initial report with nothing restored.
		return r.signOut()
	}
	if sess.Expired(r.now()) {
		r.logger.Info("session already expired, forcing sign-out",
			zap.String("subject_id", sess.SubjectID))
		return r.signOut()
	}

	// Serialize with any in-flight event for the same subject.
	lock := r.flightLock(sess.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	switch ev.Type {
	case identity.EventTokenRefreshed, identity.EventPasswordRecovery:
		// These renew an existing session; if the subject is no longer
		// current a newer sign-out or sign-in superseded the event.
		r.mu.Lock()
		stale := r.subject != sess.SubjectID
		r.mu.Unlock()
		if stale {
			metrics.StaleDiscards.Inc()
			r.logger.Info("discarding stale event",
				zap.String("type", string(ev.Type)),
				zap.String("subject_id", sess.SubjectID))
			return r.Current()
		}
	}

	timeout := r.cfg.EventTimeout
	if ev.Type == identity.EventInitialSession {
		timeout = r.cfg.InitialTimeout
	}

	epoch := r.begin(sess.SubjectID)
	return r.resolve(ctx, sess, timeout, epoch)
}

// begin starts a new reconciliation generation for the subject.
func (r *Reconciler) begin(subject string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.subject = subject
	return r.epoch
}

func (r *Reconciler) signOut() *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.subject = ""
	r.user = nil
	return nil
}

// commit installs the view if its generation is still current.
func (r *Reconciler) commit(epoch uint64, u *User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		metrics.StaleDiscards.Inc()
		return false
	}
	r.user = u
	return true
}

func (r *Reconciler) flightLock(subject string) *sync.Mutex {
	m, _ := r.flights.LoadOrStore(subject, &sync.Mutex{})
	return m.(*sync.Mutex)
}

type fetchResult struct {
	profile *models.UserProfile
	err     error
}

// resolve races the profile fetch against the deadline. The fetch is
// detached from the caller's context so a timeout only cancels the
// wait; the fetch itself runs to completion and its result is still
// committed if the generation matches.
func (r *Reconciler) resolve(ctx context.Context, sess *identity.Session, timeout time.Duration, epoch uint64) *User {
	fetchCtx := context.WithoutCancel(ctx)
	ch := make(chan fetchResult, 1)
	go func() {
		p, err := r.fetchProfile(fetchCtx, sess.Email)
		ch <- fetchResult{profile: p, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return r.degrade(sess, epoch, "profile fetch failed", res.err)
		}
		u := r.authenticated(sess, res.profile)
		r.commit(epoch, u)
		return u
	case <-timer.C:
		metrics.FetchTimeouts.Inc()
		go r.commitLate(sess, epoch, ch)
		return r.degrade(sess, epoch, "profile fetch timed out", nil)
	}
}

// commitLate waits out the losing fetch and upgrades the degraded view
// when the result arrives, unless something newer superseded it.
func (r *Reconciler) commitLate(sess *identity.Session, epoch uint64, ch <-chan fetchResult) {
	res := <-ch
	if res.err != nil {
		return
	}
	u := r.authenticated(sess, res.profile)
	if r.commit(epoch, u) {
		r.logger.Info("late profile fetch committed",
			zap.String("subject_id", sess.SubjectID),
			zap.String("email", sess.Email))
	}
}

// fetchProfile loads the profile with a bounded retry on not-found.
func (r *Reconciler) fetchProfile(ctx context.Context, email string) (*models.UserProfile, error) {
	for attempt := 0; ; attempt++ {
		p, err := r.source.GetByEmail(ctx, email)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, profilestore.ErrNotFound) || attempt >= r.cfg.NotFoundRetries {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
}

func (r *Reconciler) authenticated(sess *identity.Session, p *models.UserProfile) *User {
	return &User{Session: *sess, Profile: *p}
}

// degrade commits and returns the fallback view. The caller is never
// left without a user object; the role gate still sees the real
// approval flag semantics because the fallback is marked Degraded.
func (r *Reconciler) degrade(sess *identity.Session, epoch uint64, reason string, err error) *User {
	u := &User{
		Session:  *sess,
		Degraded: true,
		Profile: models.UserProfile{
			Email:      sess.Email,
			FullName:   nameFromEmail(sess.Email),
			Role:       r.cfg.FallbackRole,
			IsApproved: true,
		},
	}
	metrics.DegradedFallbacks.Inc()
	r.logger.Warn("degrading to fallback profile",
		zap.String("subject_id", sess.SubjectID),
		zap.String("email", sess.Email),
		zap.String("reason", reason),
		zap.Error(err))
	r.commit(epoch, u)
	return u
}

func nameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

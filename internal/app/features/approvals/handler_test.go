package approvals_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/app/features/approvals"
	approvalstore "github.com/zamanic/numerizam/internal/app/store/approvals"
	"github.com/zamanic/numerizam/internal/app/system/approval"
	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
	"github.com/zamanic/numerizam/internal/testutil"
)

// In-memory stores mirroring the storage contracts the engine assumes.

type memRequests struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]models.ApprovalRequest
	pending map[primitive.ObjectID]bool
}

func newMemRequests() *memRequests {
	return &memRequests{
		byID:    make(map[primitive.ObjectID]models.ApprovalRequest),
		pending: make(map[primitive.ObjectID]bool),
	}
}

func (m *memRequests) Insert(ctx context.Context, r models.ApprovalRequest) (models.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[r.UserID] {
		return models.ApprovalRequest{}, approvalstore.ErrDuplicatePending
	}
	r.ID = primitive.NewObjectID()
	r.Status = models.RequestPending
	m.byID[r.ID] = r
	m.pending[r.UserID] = true
	return r, nil
}

func (m *memRequests) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, approvalstore.ErrNotFound
	}
	return &r, nil
}

func (m *memRequests) ListAll(ctx context.Context) ([]models.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ApprovalRequest, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRequests) ListPending(ctx context.Context) ([]models.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ApprovalRequest
	for _, r := range m.byID {
		if r.Status == models.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) MarkReviewed(ctx context.Context, id primitive.ObjectID, status, adminEmail, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return approvalstore.ErrNotFound
	}
	if r.Status != models.RequestPending {
		return approvalstore.ErrAlreadyReviewed
	}
	r.Status = status
	r.ReviewedBy = adminEmail
	m.byID[id] = r
	m.pending[r.UserID] = false
	return nil
}

type memProfiles struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.UserProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byID: make(map[primitive.ObjectID]models.UserProfile)}
}

func (m *memProfiles) add(p models.UserProfile) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	m.byID[p.ID] = p
	return p.ID
}

func (m *memProfiles) SetRoleApproved(ctx context.Context, id primitive.ObjectID, role models.Role, approvedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	p.Role = role
	p.IsApproved = true
	m.byID[id] = p
	return nil
}

func (m *memProfiles) ListByRole(ctx context.Context, role models.Role, approvedOnly bool) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserProfile
	for _, p := range m.byID {
		if p.Role == role && (!approvedOnly || p.IsApproved) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []models.ApprovalNotification
}

func (m *memNotifications) InsertBatch(ctx context.Context, batch []models.ApprovalNotification) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, batch...)
	return len(batch), nil
}

func (m *memNotifications) ListForAdmin(ctx context.Context, adminEmail string) ([]models.ApprovalNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ApprovalNotification
	for _, n := range m.rows {
		if n.AdminEmail == adminEmail {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) UnreadCount(ctx context.Context, adminEmail string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.rows {
		if n.AdminEmail == adminEmail && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) MarkRead(ctx context.Context, adminEmail string, requestIDs ...primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].AdminEmail == adminEmail {
			m.rows[i].IsRead = true
		}
	}
	return nil
}

func (m *memNotifications) MarkReadByRequest(ctx context.Context, requestID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].RequestID == requestID {
			m.rows[i].IsRead = true
		}
	}
	return nil
}

func newRouter(t *testing.T) (http.Handler, *memProfiles) {
	t.Helper()
	profiles := newMemProfiles()
	engine := approval.NewEngine(newMemRequests(), profiles, &memNotifications{}, zap.NewNop())
	return approvals.Routes(approvals.NewHandler(engine, zap.NewNop())), profiles
}

func viewerFor(profiles *memProfiles) *reconciler.User {
	u := testutil.User("casey@example.com", models.RoleViewer, true)
	u.Profile.ID = profiles.add(u.Profile)
	return u
}

func authedJSON(t *testing.T, u *reconciler.User, method, target string, body any) *http.Request {
	t.Helper()
	return auth.WithTestUser(testutil.NewJSONRequest(t, method, target, body), u)
}

func TestSubmit_RequiresSignIn(t *testing.T) {
	router, _ := newRouter(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/approvals", map[string]string{
		"requested_role":         "accountant",
		"business_justification": "x",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSubmit_CreatesRequest(t *testing.T) {
	router, profiles := newRouter(t)
	u := viewerFor(profiles)

	req := authedJSON(t, u, http.MethodPost, "/approvals", map[string]string{
		"requested_role":         "accountant",
		"business_justification": "Need ledger access.",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.ApprovalRequest
	testutil.DecodeJSON(t, rec, &created)
	if created.Status != models.RequestPending {
		t.Errorf("expected pending, got %q", created.Status)
	}
}

func TestSubmit_DuplicateConflict(t *testing.T) {
	router, profiles := newRouter(t)
	u := viewerFor(profiles)

	body := map[string]string{
		"requested_role":         "accountant",
		"business_justification": "Need ledger access.",
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, u, http.MethodPost, "/approvals", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first submit failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, u, http.MethodPost, "/approvals", body))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate pending, got %d", rec.Code)
	}
}

func TestSubmit_DegradedProfileUnavailable(t *testing.T) {
	router, _ := newRouter(t)
	u := testutil.User("casey@example.com", models.RoleAccountant, true)
	u.Profile.ID = primitive.NilObjectID
	u.Degraded = true

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, u, http.MethodPost, "/approvals", map[string]string{
		"requested_role":         "accountant",
		"business_justification": "x",
	}))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 without a materialized profile, got %d", rec.Code)
	}
}

func TestAdminEndpoints_RequireAdmin(t *testing.T) {
	router, profiles := newRouter(t)
	u := viewerFor(profiles)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/approvals", u))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer listing approvals: expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/notifications", u))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer listing notifications: expected 403, got %d", rec.Code)
	}
}

func TestApproveFlow(t *testing.T) {
	router, profiles := newRouter(t)
	u := viewerFor(profiles)
	admin := testutil.AdminUser()
	admin.Profile.ID = profiles.add(admin.Profile)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, u, http.MethodPost, "/approvals", map[string]string{
		"requested_role":         "accountant",
		"business_justification": "Need ledger access.",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d", rec.Code)
	}
	var created models.ApprovalRequest
	testutil.DecodeJSON(t, rec, &created)

	// Approve as admin.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, admin, http.MethodPost, "/approvals/"+created.ID.Hex()+"/approve", map[string]string{"notes": "ok"}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("approve failed: %d: %s", rec.Code, rec.Body.String())
	}

	// Second approval conflicts.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, admin, http.MethodPost, "/approvals/"+created.ID.Hex()+"/approve", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for re-approval, got %d", rec.Code)
	}

	// The target profile now holds the requested role.
	profiles.mu.Lock()
	granted := profiles.byID[u.Profile.ID]
	profiles.mu.Unlock()
	if granted.Role != models.RoleAccountant || !granted.IsApproved {
		t.Errorf("profile should hold accountant approved, got %+v", granted)
	}
}

func TestDecision_BadID(t *testing.T) {
	router, profiles := newRouter(t)
	admin := testutil.AdminUser()
	admin.Profile.ID = profiles.add(admin.Profile)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, admin, http.MethodPost, "/approvals/not-an-id/reject", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed id, got %d", rec.Code)
	}
}

func TestNotifications_UnreadCount(t *testing.T) {
	router, profiles := newRouter(t)
	u := viewerFor(profiles)
	admin := testutil.AdminUser()
	admin.Profile.IsApproved = true
	admin.Profile.ID = profiles.add(admin.Profile)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, u, http.MethodPost, "/approvals", map[string]string{
		"requested_role":         "accountant",
		"business_justification": "Need ledger access.",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/notifications/unread-count", admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("unread-count failed: %d", rec.Code)
	}
	var count struct {
		Unread int64 `json:"unread"`
	}
	testutil.DecodeJSON(t, rec, &count)
	if count.Unread != 1 {
		t.Errorf("expected 1 unread, got %d", count.Unread)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedJSON(t, admin, http.MethodPost, "/notifications/mark-read", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark-read failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/notifications/unread-count", admin))
	testutil.DecodeJSON(t, rec, &count)
	if count.Unread != 0 {
		t.Errorf("expected 0 unread after mark-read, got %d", count.Unread)
	}
}

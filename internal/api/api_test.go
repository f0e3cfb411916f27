package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/account"
	"portal/internal/admin"
	"portal/internal/apperr"
	"portal/internal/attendance"
	"portal/internal/audit"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/geo"
	"portal/internal/httpmiddleware"
	"portal/internal/review"
	"portal/internal/store"
)

// ---------- fakes ----------

type memUsers struct {
	byID map[int]account.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (account.User, error) {
	for _, u := range m.byID {
		if u.Email == account.NormalizeEmail(email) {
			return u, nil
		}
	}
	return account.User{}, account.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id int) (account.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return account.User{}, account.ErrNotFound
	}
	return u, nil
}

type memAttendance struct {
	mu      sync.Mutex
	records []attendance.Record
	days    map[string]bool
}

func (m *memAttendance) Insert(_ context.Context, rec attendance.Record, day string) (attendance.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d", day, rec.UserID)
	if m.days[key] {
		return attendance.Record{}, false, nil
	}
	m.days[key] = true
	rec.ID = len(m.records) + 1
	rec.CreatedAt = rec.Date
	m.records = append(m.records, rec)
	return rec, true, nil
}

func (m *memAttendance) FirstInRange(_ context.Context, userID int, from, to time.Time) (*attendance.Record, error) {
	recs, _ := m.ListRange(context.Background(), userID, from, to)
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (m *memAttendance) History(_ context.Context, userID, limit int) ([]attendance.Record, error) {
	recs, _ := m.ListRange(context.Background(), userID, time.Time{}, time.Now().AddDate(1, 0, 0))
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (m *memAttendance) ListRange(_ context.Context, userID int, from, to time.Time) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []attendance.Record{}
	for _, r := range m.records {
		if r.UserID == userID && !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type memReviews struct {
	mu      sync.Mutex
	reviews []*review.Review
}

func (m *memReviews) Create(_ context.Context, moderatorID int, in review.SubmitInput) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rv := &review.Review{
		ID: len(m.reviews) + 1, ModeratorID: moderatorID, CustomerName: in.CustomerName,
		CustomerEmail: in.CustomerEmail, Rating: in.Rating, ReviewText: in.ReviewText,
		BusinessResponse: in.BusinessResponse, Status: review.StatusPending,
		SubmittedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	m.reviews = append(m.reviews, rv)
	return *rv, nil
}

func (m *memReviews) Get(_ context.Context, id int) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > len(m.reviews) {
		return review.Review{}, review.ErrNotFound
	}
	return *m.reviews[id-1], nil
}

func (m *memReviews) List(_ context.Context, status string) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []review.Review{}
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if status == "" || m.reviews[i].Status == status {
			out = append(out, *m.reviews[i])
		}
	}
	return out, nil
}

func (m *memReviews) ListByModerator(_ context.Context, moderatorID int) ([]review.Review, error) {
	all, _ := m.List(context.Background(), "")
	out := []review.Review{}
	for _, r := range all {
		if r.ModeratorID == moderatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) Moderate(_ context.Context, _ store.Querier, id, adminID int, status string, comments *string, at time.Time) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > len(m.reviews) {
		return review.Review{}, review.ErrNotFound
	}
	rv := m.reviews[id-1]
	if rv.Status != review.StatusPending {
		return review.Review{}, review.ErrNotPending
	}
	rv.Status, rv.AdminReviewID, rv.AdminComments, rv.ReviewedAt = status, &adminID, comments, &at
	return *rv, nil
}

type memActions struct {
	mu      sync.Mutex
	actions []audit.AdminAction
}

func (m *memActions) Log(_ context.Context, _ store.Querier, a audit.AdminAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

type directTx struct{}

func (directTx) InTx(_ context.Context, fn func(q store.Querier) error) error { return fn(nil) }

type memLogins struct {
	mu   sync.Mutex
	logs []audit.LoginLog
}

func (m *memLogins) Create(_ context.Context, userID int, ip, location, userAgent string) (audit.LoginLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := audit.LoginLog{ID: len(m.logs) + 1, UserID: userID, IPAddress: ip, Location: &location, UserAgent: &userAgent, LoginTime: time.Now()}
	m.logs = append(m.logs, l)
	return l, nil
}

func (m *memLogins) CloseOpen(_ context.Context, userID int, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.logs {
		if m.logs[i].UserID == userID && m.logs[i].LogoutTime == nil {
			m.logs[i].LogoutTime = &at
			n++
		}
	}
	return n, nil
}

type fakeAdmin struct {
	statusCalls []string
}

func (f *fakeAdmin) Stats(context.Context) (admin.Stats, error) {
	return admin.Stats{Moderators: admin.ModeratorCounts{Total: 2, Active: 1, Inactive: 1}}, nil
}

func (f *fakeAdmin) Moderators(context.Context) ([]admin.Moderator, error) {
	return []admin.Moderator{{User: account.User{ID: 2, Email: "agent@portal.com", Role: account.RoleModerator}, AttendanceRate: 50}}, nil
}

func (f *fakeAdmin) SetModeratorStatus(_ context.Context, adminID, moderatorID int, active bool, ip string) error {
	if moderatorID != 2 {
		return apperr.NotFound("Moderator")
	}
	f.statusCalls = append(f.statusCalls, ip)
	return nil
}

func (f *fakeAdmin) ModeratorAttendance(_ context.Context, _ int, from, to time.Time) ([]attendance.Record, error) {
	return []attendance.Record{{ID: 1, Date: from}, {ID: 2, Date: to}}, nil
}

func (f *fakeAdmin) ModeratorLogins(context.Context, int, int) ([]audit.LoginLog, error) {
	return []audit.LoginLog{}, nil
}

func (f *fakeAdmin) Actions(context.Context, int) ([]audit.AdminAction, error) {
	return []audit.AdminAction{}, nil
}

type staticHealth bool

func (s staticHealth) Healthy(context.Context) bool { return bool(s) }

// ---------- harness ----------

type testEnv struct {
	router *gin.Engine
	logins *memLogins
	admin  *fakeAdmin
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash := func(pw string) string {
		h, err := auth.HashPassword(pw)
		require.NoError(t, err)
		return h
	}
	users := &memUsers{byID: map[int]account.User{
		1: {ID: 1, Email: "admin@portal.com", PasswordHash: hash("admin123"), Role: account.RoleAdmin, IsActive: true},
		2: {ID: 2, Email: "agent@portal.com", PasswordHash: hash("agent123"), Role: account.RoleModerator, IsActive: true},
		3: {ID: 3, Email: "zeno@portal.com", PasswordHash: hash("zeno123"), Role: account.RoleModerator, IsActive: false},
	}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logins := &memLogins{}
	authSvc, err := auth.NewService(users, auth.NewSessions(client, 24*time.Hour), auth.NewCookieSigner("test-secret", "portal"), logins)
	require.NoError(t, err)

	// httptest requests arrive from 192.0.2.1, which acts as the reverse proxy here
	cfg := config.App{SessionCookieName: "portal_session", SessionTTL: 24 * time.Hour, TrustedProxies: []string{"192.0.2.1"}}
	env := &testEnv{logins: logins, admin: &fakeAdmin{}}
	d := Deps{
		Config:       cfg,
		Auth:         authSvc,
		Attendance:   attendance.NewService(&memAttendance{days: map[string]bool{}}, time.UTC),
		Reviews:      review.NewService(&memReviews{}, directTx{}, &memActions{}),
		Admin:        env.admin,
		Logins:       logins,
		Geo:          geo.New("", true, nil),
		LoginLimiter: httpmiddleware.NewSimpleTokenBucket(100, 100),
		Health:       map[string]HealthChecker{"db": staticHealth(true), "redis": staticHealth(true)},
		Location:     time.UTC,
	}
	for _, opt := range opts {
		opt(&d)
	}
	env.router = NewRouter(New(d), d)
	return env
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "portal_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// ---------- tests ----------

func TestLoginAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/auth/login", `{"email":"admin@portal.com","password":"admin123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string          `json:"message"`
		User    account.Summary `json:"user"`
	}
	decode(t, w, &body)
	assert.Equal(t, "Login successful", body.Message)
	assert.Equal(t, account.RoleAdmin, body.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 86400, cookies[0].MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", `{"email":"admin@portal.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")

	w = env.do(http.MethodPost, "/api/auth/login", `{"email":"zeno@portal.com","password":"zeno123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Account is deactivated")

	w = env.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email address")
}

func TestLoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Config.TrustedProxies = nil
		d.LoginLimiter = httpmiddleware.NewSimpleTokenBucket(2, 2)
	})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"admin@portal.com","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestCurrentUserAndLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "agent@portal.com", "agent123")

	w := env.do(http.MethodGet, "/api/auth/user", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var me account.Summary
	decode(t, w, &me)
	assert.Equal(t, "agent@portal.com", me.Email)

	w = env.do(http.MethodPost, "/api/auth/track-login", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.logins.logs, 1)
	assert.Equal(t, "203.0.113.7", env.logins.logs[0].IPAddress)
	assert.Equal(t, geo.UnknownLocation, *env.logins.logs[0].Location)

	w = env.do(http.MethodPost, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logout successful")
	assert.NotNil(t, env.logins.logs[0].LogoutTime)

	w = env.do(http.MethodGet, "/api/auth/user", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/auth/user", "/api/attendance/today", "/api/reviews/my-reviews", "/api/admin/stats"} {
		w := env.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestMarkAttendanceTwice(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "agent@portal.com", "agent123")

	w := env.do(http.MethodPost, "/api/attendance/mark", "", cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = env.do(http.MethodPost, "/api/attendance/mark", "", cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Message    string             `json:"message"`
		Attendance *attendance.Record `json:"attendance"`
	}
	decode(t, w, &body)
	assert.Equal(t, "Attendance already marked for today", body.Message)
	require.NotNil(t, body.Attendance)
	assert.Equal(t, 1, body.Attendance.ID)

	w = env.do(http.MethodGet, "/api/attendance/today", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ipAddress":"203.0.113.7"`)

	w = env.do(http.MethodGet, "/api/attendance/history?limit=5", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		History []attendance.Record `json:"history"`
	}
	decode(t, w, &hist)
	assert.Len(t, hist.History, 1)
}

func TestTodayBeforeMarkingIsNull(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "agent@portal.com", "agent123")

	w := env.do(http.MethodGet, "/api/attendance/today", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attendance":null}`, w.Body.String())
}

func TestAdminRoutesForbiddenForModerators(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "agent@portal.com", "agent123")

	for _, path := range []string{"/api/admin/stats", "/api/admin/moderators", "/api/admin/reviews"} {
		w := env.do(http.MethodGet, path, "", cookie)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Contains(t, w.Body.String(), "Admin access required")
	}
	w := env.do(http.MethodPatch, "/api/admin/moderators/2/status", `{"isActive":false}`, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReviewSubmitAndApprove(t *testing.T) {
	env := newTestEnv(t)
	mod := env.login(t, "agent@portal.com", "agent123")
	adm := env.login(t, "admin@portal.com", "admin123")

	w := env.do(http.MethodPost, "/api/reviews/submit",
		`{"customerName":"Jane Doe","customerEmail":"jane@example.com","rating":5,"reviewText":"Great support"}`, mod)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var submitted struct {
		Review review.Review `json:"review"`
	}
	decode(t, w, &submitted)
	assert.Equal(t, review.StatusPending, submitted.Review.Status)

	w = env.do(http.MethodPost, "/api/admin/reviews/1/review", `{"status":"approved","adminComments":"looks good"}`, adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/admin/reviews?status=approved", "", adm)
	require.Equal(t, http.StatusOK, w.Code)
	var list []review.Review
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, review.StatusApproved, list[0].Status)
	require.NotNil(t, list[0].AdminComments)
	assert.Equal(t, "looks good", *list[0].AdminComments)
	assert.NotNil(t, list[0].ReviewedAt)

	w = env.do(http.MethodPost, "/api/admin/reviews/1/review", `{"status":"rejected"}`, adm)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/api/reviews/my-reviews", "", mod)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, review.StatusApproved, list[0].Status)
}

func TestReviewValidation(t *testing.T) {
	env := newTestEnv(t)
	mod := env.login(t, "agent@portal.com", "agent123")
	adm := env.login(t, "admin@portal.com", "admin123")

	w := env.do(http.MethodPost, "/api/reviews/submit",
		`{"customerName":"Jane","customerEmail":"jane@example.com","rating":9,"reviewText":"ok"}`, mod)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "rating must be at most 5")

	w = env.do(http.MethodPost, "/api/admin/reviews/1/review", `{"status":"maybe"}`, adm)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/admin/reviews/42/review", `{"status":"approved"}`, adm)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/admin/reviews?status=bogus", "", adm)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminModeratorEndpoints(t *testing.T) {
	env := newTestEnv(t)
	adm := env.login(t, "admin@portal.com", "admin123")

	w := env.do(http.MethodGet, "/api/admin/stats", "", adm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"moderators":{"total":2,"active":1,"inactive":1}`)

	w = env.do(http.MethodGet, "/api/admin/moderators", "", adm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"attendanceRate":50`)

	w = env.do(http.MethodPatch, "/api/admin/moderators/2/status", `{"isActive":false}`, adm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"203.0.113.7"}, env.admin.statusCalls)

	w = env.do(http.MethodPatch, "/api/admin/moderators/2/status", `{}`, adm)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPatch, "/api/admin/moderators/1/status", `{"isActive":false}`, adm)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/admin/moderators/2/attendance?from=2024-03-01&to=2024-03-05", "", adm)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2024-03-01T00:00:00Z"`)

	w = env.do(http.MethodGet, "/api/admin/moderators/2/attendance?from=yesterday", "", adm)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/admin/actions", "", adm)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":true,"redis":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(httpmiddleware.RequestIDHeader))
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/admin"
	"portal/internal/apperr"
	"portal/internal/attendance"
	"portal/internal/audit"
	"portal/internal/auth"
	"portal/internal/config"
	"portal/internal/httpmiddleware"
	"portal/internal/metrics"
	"portal/internal/review"
)

// AttendanceService marks and reads daily attendance.
type AttendanceService interface {
	Mark(ctx context.Context, userID int, ip, location, userAgent string) (attendance.Record, error)
	Today(ctx context.Context, userID int) (*attendance.Record, error)
	History(ctx context.Context, userID, limit int) ([]attendance.Record, error)
}

// ReviewService is the review submission and moderation workflow.
type ReviewService interface {
	Submit(ctx context.Context, moderatorID int, in review.SubmitInput) (review.Review, error)
	ListMine(ctx context.Context, moderatorID int) ([]review.Review, error)
	List(ctx context.Context, status string) ([]review.Review, error)
	Moderate(ctx context.Context, id, adminID int, status, comments, ip string) (review.Review, error)
}

// AdminService backs the admin dashboard.
type AdminService interface {
	Stats(ctx context.Context) (admin.Stats, error)
	Moderators(ctx context.Context) ([]admin.Moderator, error)
	SetModeratorStatus(ctx context.Context, adminID, moderatorID int, active bool, ip string) error
	ModeratorAttendance(ctx context.Context, moderatorID int, from, to time.Time) ([]attendance.Record, error)
	ModeratorLogins(ctx context.Context, moderatorID, limit int) ([]audit.LoginLog, error)
	Actions(ctx context.Context, limit int) ([]audit.AdminAction, error)
}

// LoginLog records login and logout events.
type LoginLog interface {
	Create(ctx context.Context, userID int, ip, location, userAgent string) (audit.LoginLog, error)
	CloseOpen(ctx context.Context, userID int, at time.Time) (int64, error)
}

// Locator resolves client IPs to a location label.
type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Deps groups everything the HTTP layer needs.
type Deps struct {
	Config       config.App
	Auth         *auth.Service
	Attendance   AttendanceService
	Reviews      ReviewService
	Admin        AdminService
	Logins       LoginLog
	Geo          Locator
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	APILimiter   httpmiddleware.Limiter
	LoginLimiter httpmiddleware.Limiter
	Health       map[string]HealthChecker
	Location     *time.Location
}

// Handler implements the portal's HTTP endpoints.
type Handler struct {
	cfg        config.App
	auth       *auth.Service
	attendance AttendanceService
	reviews    ReviewService
	admin      AdminService
	logins     LoginLog
	geo        Locator
	metrics    *metrics.Metrics
	log        *zap.Logger
	health     map[string]HealthChecker
	loc        *time.Location
	now        func() time.Time
}

// New creates a handler.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	return &Handler{
		cfg:        d.Config,
		auth:       d.Auth,
		attendance: d.Attendance,
		reviews:    d.Reviews,
		admin:      d.Admin,
		logins:     d.Logins,
		geo:        d.Geo,
		metrics:    d.Metrics,
		log:        d.Logger,
		health:     d.Health,
		loc:        d.Location,
		now:        time.Now,
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, checker := range h.health {
		ok := checker.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

// fail renders err. AppErrors are shown as-is; anything else is logged and hidden
// behind a generic 500.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		_ = c.Error(err)
		h.log.Error("request failed",
			zap.String("request_id", httpmiddleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		appErr = apperr.Internal("")
	}
	c.AbortWithStatusJSON(appErr.Status, appErr)
}

func sessionOf(c *gin.Context) auth.Session {
	sess, _ := auth.CurrentSession(c)
	return sess
}

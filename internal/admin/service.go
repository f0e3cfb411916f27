package admin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/apperr"
	"portal/internal/attendance"
	"portal/internal/audit"
	"portal/internal/queue"
	"portal/internal/store"
)

// Users is the account access the admin service needs.
type Users interface {
	GetByID(ctx context.Context, id int) (account.User, error)
	ListModerators(ctx context.Context) ([]account.User, error)
	SetActive(ctx context.Context, q store.Querier, id int, active bool) error
}

// Analytics computes aggregate figures.
type Analytics interface {
	Counts(ctx context.Context, dayStart, dayEnd time.Time) (Stats, error)
	Activity(ctx context.Context, windowStart time.Time) (map[int]Activity, error)
}

// AttendanceReader reads a user's attendance between two days.
type AttendanceReader interface {
	Range(ctx context.Context, userID int, from, to time.Time) ([]attendance.Record, error)
}

// LoginReader reads a user's login history.
type LoginReader interface {
	History(ctx context.Context, userID, limit int) ([]audit.LoginLog, error)
}

// ActionLog writes and lists admin actions.
type ActionLog interface {
	Log(ctx context.Context, q store.Querier, a audit.AdminAction) error
	List(ctx context.Context, limit int) ([]audit.AdminAction, error)
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int) (int, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Users      Users
	Analytics  Analytics
	Attendance AttendanceReader
	Logins     LoginReader
	Actions    ActionLog
	Tx         store.TxRunner
	Events     queue.Publisher
	Sessions   SessionRevoker
	Location   *time.Location
	Logger     *zap.Logger
}

// Service implements the admin dashboard and moderator management.
type Service struct {
	d   Deps
	now func() time.Time
}

// NewService creates a service. Without an Events publisher deactivation revokes sessions
// directly through Sessions.
func NewService(d Deps) *Service {
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{d: d, now: time.Now}
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	start, end := attendance.DayBounds(s.now().In(s.d.Location))
	return s.d.Analytics.Counts(ctx, start, end)
}

// Moderators lists every moderator with derived activity figures.
func (s *Service) Moderators(ctx context.Context) ([]Moderator, error) {
	users, err := s.d.Users.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	today, _ := attendance.DayBounds(s.now().In(s.d.Location))
	activity, err := s.d.Analytics.Activity(ctx, today.AddDate(0, 0, -(RateWindowDays-1)))
	if err != nil {
		return nil, err
	}
	out := make([]Moderator, 0, len(users))
	for _, u := range users {
		a := activity[u.ID]
		out = append(out, Moderator{
			User:             u,
			LastLocation:     a.LastLocation,
			LastAttendanceAt: a.LastAttendanceAt,
			LastLoginAt:      a.LastLoginAt,
			AttendanceDays:   a.AttendanceDays,
			AttendanceRate:   attendanceRate(a.AttendanceDays),
		})
	}
	return out, nil
}

// SetModeratorStatus activates or deactivates a moderator and records the admin action in
// the same transaction. Admin accounts cannot be toggled and report NotFound.
func (s *Service) SetModeratorStatus(ctx context.Context, adminID, moderatorID int, active bool, ip string) error {
	action, state := "Activated moderator", "active"
	if !active {
		action, state = "Deactivated moderator", "inactive"
	}
	details := "Changed status to " + state
	target := moderatorID

	err := s.d.Tx.InTx(ctx, func(q store.Querier) error {
		if err := s.d.Users.SetActive(ctx, q, moderatorID, active); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return apperr.NotFound("Moderator")
			}
			return err
		}
		return s.d.Actions.Log(ctx, q, audit.AdminAction{
			AdminID:      adminID,
			Action:       action,
			TargetUserID: &target,
			Details:      &details,
			IPAddress:    ip,
		})
	})
	if err != nil {
		return err
	}

	s.d.Logger.Info("moderator status changed",
		zap.Int("admin_id", adminID), zap.Int("moderator_id", moderatorID), zap.Bool("active", active))
	if !active {
		s.announceDeactivation(ctx, moderatorID)
	}
	return nil
}

// announceDeactivation hands session cleanup to the worker. When the event cannot be
// published the sessions are revoked here so the moderator is signed out either way.
func (s *Service) announceDeactivation(ctx context.Context, moderatorID int) {
	if s.d.Events != nil {
		err := s.d.Events.Publish(ctx, queue.ModeratorDeactivated(moderatorID))
		if err == nil {
			return
		}
		s.d.Logger.Warn("publish deactivation event failed", zap.Int("moderator_id", moderatorID), zap.Error(err))
	}
	if s.d.Sessions == nil {
		return
	}
	n, err := s.d.Sessions.RevokeUser(ctx, moderatorID)
	if err != nil {
		s.d.Logger.Error("revoke sessions failed", zap.Int("moderator_id", moderatorID), zap.Error(err))
		return
	}
	s.d.Logger.Info("sessions revoked", zap.Int("moderator_id", moderatorID), zap.Int("count", n))
}

// ModeratorAttendance returns a moderator's records between two days, inclusive.
func (s *Service) ModeratorAttendance(ctx context.Context, moderatorID int, from, to time.Time) ([]attendance.Record, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	return s.d.Attendance.Range(ctx, moderatorID, from, to)
}

// ModeratorLogins returns a moderator's recent login events.
func (s *Service) ModeratorLogins(ctx context.Context, moderatorID, limit int) ([]audit.LoginLog, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	return s.d.Logins.History(ctx, moderatorID, limit)
}

// Actions lists the admin action log, newest first.
func (s *Service) Actions(ctx context.Context, limit int) ([]audit.AdminAction, error) {
	return s.d.Actions.List(ctx, limit)
}

func (s *Service) requireModerator(ctx context.Context, id int) error {
	u, err := s.d.Users.GetByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) || (err == nil && u.Role != account.RoleModerator) {
		return apperr.NotFound("Moderator")
	}
	return err
}

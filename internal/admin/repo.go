package admin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository runs the aggregate queries behind the admin dashboard.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Counts computes dashboard counters; today is [dayStart, dayEnd).
func (r *Repository) Counts(ctx context.Context, dayStart, dayEnd time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'moderator'),
			(SELECT COUNT(*) FROM users WHERE role = 'moderator' AND is_active),
			(SELECT COUNT(*) FROM attendance_records WHERE date >= $1 AND date < $2),
			(SELECT COUNT(*) FROM attendance_records),
			(SELECT COUNT(*) FROM login_logs WHERE login_time >= $1 AND login_time < $2),
			(SELECT COUNT(*) FROM login_logs)
	`, dayStart, dayEnd).Scan(
		&s.Moderators.Total, &s.Moderators.Active,
		&s.Attendance.Today, &s.Attendance.Total,
		&s.Logins.Today, &s.Logins.Total,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("admin counts: %w", err)
	}
	s.Moderators.Inactive = s.Moderators.Total - s.Moderators.Active
	return s, nil
}

// Activity returns derived figures per moderator id. AttendanceDays counts distinct days
// marked since windowStart.
func (r *Repository) Activity(ctx context.Context, windowStart time.Time) (map[int]Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, la.location, la.date,
			(SELECT MAX(l.login_time) FROM login_logs l WHERE l.user_id = u.id),
			(SELECT COUNT(DISTINCT a.day) FROM attendance_records a WHERE a.user_id = u.id AND a.date >= $1)
		FROM users u
		LEFT JOIN LATERAL (
			SELECT location, date FROM attendance_records
			WHERE user_id = u.id
			ORDER BY date DESC
			LIMIT 1
		) la ON TRUE
		WHERE u.role = 'moderator'
	`, windowStart)
	if err != nil {
		return nil, fmt.Errorf("moderator activity: %w", err)
	}
	defer rows.Close()
	out := map[int]Activity{}
	for rows.Next() {
		var (
			id int
			a  Activity
		)
		if err := rows.Scan(&id, &a.LastLocation, &a.LastAttendanceAt, &a.LastLoginAt, &a.AttendanceDays); err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, rows.Err()
}

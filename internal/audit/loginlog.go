package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LoginLog is one login event. LogoutTime stays nil until the session is closed.
type LoginLog struct {
	ID         int        `json:"id"`
	UserID     int        `json:"userId"`
	IPAddress  string     `json:"ipAddress"`
	Location   *string    `json:"location"`
	UserAgent  *string    `json:"userAgent"`
	LoginTime  time.Time  `json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime"`
}

const loginLogColumns = `id, user_id, ip_address, location, user_agent, login_time, logout_time`

// LoginLogRepository persists login events in Postgres.
type LoginLogRepository struct {
	db *sql.DB
}

// NewLoginLogRepository creates a repo.
func NewLoginLogRepository(db *sql.DB) *LoginLogRepository {
	return &LoginLogRepository{db: db}
}

// Create appends a login event.
func (r *LoginLogRepository) Create(ctx context.Context, userID int, ip, location, userAgent string) (LoginLog, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO login_logs (user_id, ip_address, location, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING `+loginLogColumns,
		userID, ip, nullable(location), nullable(userAgent))
	var l LoginLog
	if err := row.Scan(&l.ID, &l.UserID, &l.IPAddress, &l.Location, &l.UserAgent, &l.LoginTime, &l.LogoutTime); err != nil {
		return LoginLog{}, fmt.Errorf("create login log: %w", err)
	}
	return l, nil
}

// CloseOpen sets the logout time on every open entry of the user. Entries that are
// already closed keep their original logout time.
func (r *LoginLogRepository) CloseOpen(ctx context.Context, userID int, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE login_logs SET logout_time = $2
		WHERE user_id = $1 AND logout_time IS NULL
	`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("close login logs: %w", err)
	}
	return res.RowsAffected()
}

// History returns the user's most recent login events.
func (r *LoginLogRepository) History(ctx context.Context, userID, limit int) ([]LoginLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+loginLogColumns+` FROM login_logs
		WHERE user_id = $1
		ORDER BY login_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("login history: %w", err)
	}
	defer rows.Close()
	res := []LoginLog{}
	for rows.Next() {
		var l LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.IPAddress, &l.Location, &l.UserAgent, &l.LoginTime, &l.LogoutTime); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

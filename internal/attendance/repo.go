package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = `id, user_id, date, ip_address, location, user_agent, created_at`

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.IPAddress, &rec.Location, &rec.UserAgent, &rec.CreatedAt)
	return rec, err
}

// Insert writes a record for the given calendar day. The (user_id, day) unique key makes
// the insert a no-op when the user already has a record that day; inserted is then false.
func (r *Repository) Insert(ctx context.Context, rec Record, day string) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (user_id, date, day, ip_address, location, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, day) DO NOTHING
		RETURNING `+recordColumns,
		rec.UserID, rec.Date, day, rec.IPAddress, rec.Location, rec.UserAgent)
	created, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("insert attendance: %w", err)
	}
	return created, true, nil
}

// FirstInRange returns the user's record within [from, to), or nil.
func (r *Repository) FirstInRange(ctx context.Context, userID int, from, to time.Time) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date DESC
		LIMIT 1
	`, userID, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attendance in range: %w", err)
	}
	return &rec, nil
}

// History returns the user's most recent records, newest first.
func (r *Repository) History(ctx context.Context, userID, limit int) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, userID, limit)
}

// ListRange returns the user's records within [from, to), newest first.
func (r *Repository) ListRange(ctx context.Context, userID int, from, to time.Time) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date DESC
	`, userID, from, to)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"portal/internal/store"
)

// ErrNotFound is returned when no user matches.
var ErrNotFound = errors.New("user not found")

const userColumns = `id, email, password, first_name, last_name, role, is_active, created_at, updated_at`

// Repository persists users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID returns a user by id.
func (r *Repository) GetByID(ctx context.Context, id int) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetByEmail returns a user by email, compared case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Create inserts a user. The email must not exist yet.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	if u.Role == "" {
		u.Role = RoleModerator
	}
	created, err := scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password, first_name, last_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive))
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// ListModerators returns all users with the moderator role.
func (r *Repository) ListModerators(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id`, RoleModerator)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// SetActive toggles the active flag of a moderator. Admin accounts are never touched;
// ErrNotFound is returned when no moderator has the id.
func (r *Repository) SetActive(ctx context.Context, q store.Querier, id int, active bool) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND role = 'moderator'
	`, id, active)
	if err != nil {
		return fmt.Errorf("set user %d active: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

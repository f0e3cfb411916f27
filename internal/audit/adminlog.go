package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portal/internal/store"
)

// AdminAction is an immutable record of a privileged mutation.
type AdminAction struct {
	ID           int       `json:"id"`
	AdminID      int       `json:"adminId"`
	Action       string    `json:"action"`
	TargetUserID *int      `json:"targetUserId"`
	Details      *string   `json:"details"`
	IPAddress    string    `json:"ipAddress"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AdminActionRepository appends to and reads the admin action log.
type AdminActionRepository struct {
	db *sql.DB
}

// NewAdminActionRepository creates a repo.
func NewAdminActionRepository(db *sql.DB) *AdminActionRepository {
	return &AdminActionRepository{db: db}
}

// Log appends an action. It runs on q so callers can write it in the same
// transaction as the mutation it describes.
func (r *AdminActionRepository) Log(ctx context.Context, q store.Querier, a AdminAction) error {
	if a.IPAddress == "" {
		a.IPAddress = "unknown"
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO admin_actions (admin_id, action, target_user_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5)
	`, a.AdminID, a.Action, a.TargetUserID, a.Details, a.IPAddress)
	if err != nil {
		return fmt.Errorf("log admin action: %w", err)
	}
	return nil
}

// List returns the newest actions first.
func (r *AdminActionRepository) List(ctx context.Context, limit int) ([]AdminAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, admin_id, action, target_user_id, details, ip_address, created_at
		FROM admin_actions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin actions: %w", err)
	}
	defer rows.Close()
	res := []AdminAction{}
	for rows.Next() {
		var a AdminAction
		if err := rows.Scan(&a.ID, &a.AdminID, &a.Action, &a.TargetUserID, &a.Details, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

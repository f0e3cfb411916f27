package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"portal/internal/apperr"
	"portal/internal/audit"
	"portal/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, moderatorID int, in SubmitInput) (Review, error)
	Get(ctx context.Context, id int) (Review, error)
	List(ctx context.Context, status string) ([]Review, error)
	ListByModerator(ctx context.Context, moderatorID int) ([]Review, error)
	Moderate(ctx context.Context, q store.Querier, id, adminID int, status string, comments *string, at time.Time) (Review, error)
}

// ActionLogger writes admin actions, inside the caller's transaction.
type ActionLogger interface {
	Log(ctx context.Context, q store.Querier, a audit.AdminAction) error
}

// Service implements the submission and moderation workflow.
type Service struct {
	repo     Store
	tx       store.TxRunner
	actions  ActionLogger
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service.
func NewService(repo Store, tx store.TxRunner, actions ActionLogger) *Service {
	return &Service{repo: repo, tx: tx, actions: actions, validate: validator.New(), now: time.Now}
}

// Submit validates the input and stores a new pending review.
func (s *Service) Submit(ctx context.Context, moderatorID int, in SubmitInput) (Review, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.ReviewText = strings.TrimSpace(in.ReviewText)
	if in.BusinessResponse != nil && strings.TrimSpace(*in.BusinessResponse) == "" {
		in.BusinessResponse = nil
	}
	if err := s.validate.Struct(in); err != nil {
		return Review{}, apperr.FromBinding(err)
	}
	return s.repo.Create(ctx, moderatorID, in)
}

// Get returns a single review.
func (s *Service) Get(ctx context.Context, id int) (Review, error) {
	rv, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Review{}, apperr.NotFound("Review")
	}
	return rv, err
}

// List returns all reviews, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]Review, error) {
	if status != "" && !ValidStatus(status) {
		return nil, apperr.Validation("status must be one of: pending, approved, rejected")
	}
	return s.repo.List(ctx, status)
}

// ListMine returns the reviews submitted by a moderator.
func (s *Service) ListMine(ctx context.Context, moderatorID int) ([]Review, error) {
	return s.repo.ListByModerator(ctx, moderatorID)
}

// Moderate approves or rejects a pending review and records the admin action in the
// same transaction. A review can be moderated once; later calls get ErrAlreadyReviewed.
func (s *Service) Moderate(ctx context.Context, id, adminID int, status, comments, ip string) (Review, error) {
	if status != StatusApproved && status != StatusRejected {
		return Review{}, apperr.Validation("status must be one of: approved, rejected")
	}
	var commentsPtr *string
	if c := strings.TrimSpace(comments); c != "" {
		commentsPtr = &c
	}

	var out Review
	err := s.tx.InTx(ctx, func(q store.Querier) error {
		rv, err := s.repo.Moderate(ctx, q, id, adminID, status, commentsPtr, s.now())
		switch {
		case errors.Is(err, ErrNotFound):
			return apperr.NotFound("Review")
		case errors.Is(err, ErrNotPending):
			return apperr.ErrAlreadyReviewed
		case err != nil:
			return err
		}
		shown := "None"
		if commentsPtr != nil {
			shown = *commentsPtr
		}
		details := fmt.Sprintf("Review ID: %d, Comments: %s", id, shown)
		target := rv.ModeratorID
		if err := s.actions.Log(ctx, q, audit.AdminAction{
			AdminID:      adminID,
			Action:       "reviewed_trustpilot_review_" + status,
			TargetUserID: &target,
			Details:      &details,
			IPAddress:    ip,
		}); err != nil {
			return err
		}
		out = rv
		return nil
	})
	return out, err
}

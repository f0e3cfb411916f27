package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portal/internal/queue"
)

// SessionRevoker deletes every session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int) (int, error)
}

// LoginCloser closes a user's open login-log entries.
type LoginCloser interface {
	CloseOpen(ctx context.Context, userID int, at time.Time) (int64, error)
}

// Handler processes domain events from the queue.
type Handler struct {
	sessions SessionRevoker
	logins   LoginCloser
	log      *zap.Logger
	now      func() time.Time
}

// NewHandler creates a handler.
func NewHandler(sessions SessionRevoker, logins LoginCloser, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sessions: sessions, logins: logins, log: log, now: time.Now}
}

// Handle processes one message. Unknown types are ignored.
func (h *Handler) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeModeratorDeactivated:
		userID, err := msg.UserID()
		if err != nil {
			return err
		}
		return h.moderatorDeactivated(ctx, userID)
	default:
		h.log.Debug("ignoring message", zap.String("type", msg.Type))
		return nil
	}
}

func (h *Handler) moderatorDeactivated(ctx context.Context, userID int) error {
	revoked, err := h.sessions.RevokeUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions of user %d: %w", userID, err)
	}
	closed, err := h.logins.CloseOpen(ctx, userID, h.now())
	if err != nil {
		return fmt.Errorf("close login logs of user %d: %w", userID, err)
	}
	h.log.Info("moderator signed out after deactivation",
		zap.Int("user_id", userID), zap.Int("sessions", revoked), zap.Int64("login_logs", closed))
	return nil
}

// Run consumes q until ctx is done. Failed messages are logged and dropped.
func (h *Handler) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	h.log.Info("worker started, waiting for messages")
	for msg := range messages {
		if err := h.Handle(ctx, msg); err != nil {
			h.log.Error("processing message failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	h.log.Info("worker stopped")
	return nil
}

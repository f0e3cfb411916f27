package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side state bound to a cookie.
type Session struct {
	ID        string    `json:"-"`
	UserID    int       `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sessions stores sessions in Redis. Each session key expires on its own after the TTL,
// which is fixed at creation and never extended.
type Sessions struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a Redis-backed session store.
func NewSessions(client *redis.Client, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{client: client, prefix: "portal:", ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

func (s *Sessions) sessionKey(id string) string { return s.prefix + "session:" + id }

func (s *Sessions) userKey(userID int) string {
	return s.prefix + "user_sessions:" + strconv.Itoa(userID)
}

// Create starts a new session for userID.
func (s *Sessions) Create(ctx context.Context, userID int) (Session, error) {
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.ID), body, s.ttl)
	pipe.SAdd(ctx, s.userKey(userID), sess.ID)
	pipe.Expire(ctx, s.userKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get loads a session by id.
func (s *Sessions) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if !sess.ExpiresAt.After(s.now()) {
		return Session{}, ErrSessionNotFound
	}
	sess.ID = id
	return sess, nil
}

// Delete destroys a session. Deleting an unknown session is not an error.
func (s *Sessions) Delete(ctx context.Context, sess Session) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(sess.ID))
	pipe.SRem(ctx, s.userKey(sess.UserID), sess.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeUser destroys every session of userID and returns how many were removed.
func (s *Sessions) RevokeUser(ctx context.Context, userID int) (int, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	if err := s.client.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return int(removed), err
	}
	return int(removed), nil
}

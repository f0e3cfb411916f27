package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portal/internal/account"
	"portal/internal/apperr"
)

// UserStore is the credential lookup the service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (account.User, error)
	GetByID(ctx context.Context, id int) (account.User, error)
}

// LoginCloser closes open login-log entries at logout.
type LoginCloser interface {
	CloseOpen(ctx context.Context, userID int, at time.Time) (int64, error)
}

// Issued is the result of a successful login.
type Issued struct {
	Cookie  string
	Session Session
	User    account.User
}

// Service coordinates credential checks and session lifecycle.
type Service struct {
	users    UserStore
	sessions *Sessions
	signer   *CookieSigner
	logins   LoginCloser
	// compared against when the email is unknown so both failure paths cost a bcrypt round
	dummyHash string
	now       func() time.Time
}

// NewService creates an auth service.
func NewService(users UserStore, sessions *Sessions, signer *CookieSigner, logins LoginCloser) (*Service, error) {
	dummy, err := HashPassword("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		signer:    signer,
		logins:    logins,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// Sessions exposes the underlying session store.
func (s *Service) Sessions() *Sessions { return s.sessions }

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Issued, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		CheckPassword(s.dummyHash, password)
		return Issued{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return Issued{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Issued{}, apperr.ErrInvalidCredentials
	}
	if !u.IsActive {
		return Issued{}, apperr.ErrAccountDeactivated
	}

	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return Issued{}, err
	}
	cookie, err := s.signer.Sign(sess.ID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess)
		return Issued{}, fmt.Errorf("sign session cookie: %w", err)
	}
	return Issued{Cookie: cookie, Session: sess, User: u}, nil
}

// Authenticate resolves a cookie value to a live session.
func (s *Service) Authenticate(ctx context.Context, cookie string) (Session, error) {
	if cookie == "" {
		return Session{}, apperr.ErrUnauthorized
	}
	id, err := s.signer.Parse(cookie)
	if err != nil {
		return Session{}, apperr.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// CurrentUser loads the account behind a session.
func (s *Service) CurrentUser(ctx context.Context, userID int) (account.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, account.ErrNotFound) {
		return account.User{}, apperr.NotFound("User")
	}
	return u, err
}

// Logout destroys the session and closes the user's open login-log entries.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	if err := s.sessions.Delete(ctx, sess); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	if s.logins != nil {
		if _, err := s.logins.CloseOpen(ctx, sess.UserID, s.now()); err != nil {
			return fmt.Errorf("close login log: %w", err)
		}
	}
	return nil
}

package attendance

import (
	"context"
	"errors"
	"time"

	"portal/internal/apperr"
)

// Record is one daily attendance mark.
type Record struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Date      time.Time `json:"date"`
	IPAddress string    `json:"ipAddress"`
	Location  *string   `json:"location"`
	UserAgent *string   `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, rec Record, day string) (Record, bool, error)
	FirstInRange(ctx context.Context, userID int, from, to time.Time) (*Record, error)
	History(ctx context.Context, userID, limit int) ([]Record, error)
	ListRange(ctx context.Context, userID int, from, to time.Time) ([]Record, error)
}

const (
	defaultHistory = 30
	maxHistory     = 365
)

// Service records daily attendance.
type Service struct {
	repo Store
	loc  *time.Location
	now  func() time.Time
}

// NewService creates a service. Days are computed in loc; nil means server-local time.
func NewService(repo Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// DayBounds returns [midnight, next midnight) of the day containing t, in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Mark records today's attendance for the user. When the user has already marked today it
// returns the existing record together with apperr.ErrAlreadyMarked.
func (s *Service) Mark(ctx context.Context, userID int, ip, location, userAgent string) (Record, error) {
	if userID <= 0 {
		return Record{}, errors.New("user id required")
	}
	now := s.now().In(s.loc)
	rec := Record{
		UserID:    userID,
		Date:      now,
		IPAddress: ip,
		Location:  nullable(location),
		UserAgent: nullable(userAgent),
	}
	created, inserted, err := s.repo.Insert(ctx, rec, now.Format(time.DateOnly))
	if err != nil {
		return Record{}, err
	}
	if inserted {
		return created, nil
	}
	existing, err := s.Today(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if existing == nil {
		return Record{}, apperr.ErrAlreadyMarked
	}
	return *existing, apperr.ErrAlreadyMarked
}

// Today returns the user's record for the current day, or nil.
func (s *Service) Today(ctx context.Context, userID int) (*Record, error) {
	start, end := DayBounds(s.now().In(s.loc))
	return s.repo.FirstInRange(ctx, userID, start, end)
}

// History returns up to limit recent records, newest first.
func (s *Service) History(ctx context.Context, userID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	return s.repo.History(ctx, userID, limit)
}

// Range returns the user's records between the from and to calendar days, inclusive.
func (s *Service) Range(ctx context.Context, userID int, from, to time.Time) ([]Record, error) {
	start, _ := DayBounds(from.In(s.loc))
	_, end := DayBounds(to.In(s.loc))
	if !end.After(start) {
		return nil, apperr.Validation("from must not be after to")
	}
	return s.repo.ListRange(ctx, userID, start, end)
}

// Location returns the location days are computed in.
func (s *Service) Location() *time.Location { return s.loc }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

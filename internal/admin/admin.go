package admin

import (
	"time"

	"portal/internal/account"
)

// RateWindowDays is the trailing window attendance rates are computed over.
const RateWindowDays = 30

// Stats is the dashboard summary, recomputed on every request.
type Stats struct {
	Moderators ModeratorCounts `json:"moderators"`
	Attendance DailyCounts     `json:"attendance"`
	Logins     DailyCounts     `json:"logins"`
}

// ModeratorCounts splits moderators by their active flag.
type ModeratorCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// DailyCounts is a today/all-time pair.
type DailyCounts struct {
	Today int `json:"today"`
	Total int `json:"total"`
}

// Activity holds the figures derived from a moderator's ledgers.
type Activity struct {
	LastLocation     *string
	LastAttendanceAt *time.Time
	LastLoginAt      *time.Time
	AttendanceDays   int
}

// Moderator is a moderator account together with its derived activity.
type Moderator struct {
	account.User
	LastLocation     *string    `json:"lastLocation"`
	LastAttendanceAt *time.Time `json:"lastAttendanceAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt"`
	AttendanceDays   int        `json:"attendanceDays"`
	AttendanceRate   int        `json:"attendanceRate"`
}

// attendanceRate is the share of the window's days with a mark, in whole percent.
func attendanceRate(days int) int {
	if days <= 0 {
		return 0
	}
	if days >= RateWindowDays {
		return 100
	}
	return (days*100 + RateWindowDays/2) / RateWindowDays
}

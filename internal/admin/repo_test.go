package admin

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountsDerivesInactive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	mock.ExpectQuery("SELECT").WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).AddRow(16, 12, 5, 200, 7, 340))

	s, err := NewRepository(db).Counts(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, ModeratorCounts{Total: 16, Active: 12, Inactive: 4}, s.Moderators)
	assert.Equal(t, DailyCounts{Today: 5, Total: 200}, s.Attendance)
	assert.Equal(t, DailyCounts{Today: 7, Total: 340}, s.Logins)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityScansNulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
	at := since.Add(48 * time.Hour)
	mock.ExpectQuery("LEFT JOIN LATERAL").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "location", "date", "last_login", "days"}).
			AddRow(2, "Local Network", at, at, 3).
			AddRow(3, nil, nil, nil, 0))

	got, err := NewRepository(db).Activity(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Local Network", *got[2].LastLocation)
	assert.Equal(t, 3, got[2].AttendanceDays)
	assert.Nil(t, got[3].LastAttendanceAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

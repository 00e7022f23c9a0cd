package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/modules/session/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (repository.SessionRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSessionRepository(database.NewFromSQLx(sqlx.NewDb(db, "sqlmock"))), mock
}

func TestSessionRepository_GetByID(t *testing.T) {
	r, mock := newRepo(t)
	id := uuid.New()
	start := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "coach_id", "client_id", "start_time", "duration_minutes", "status",
		"title", "notes", "location", "meeting_id", "created_at", "updated_at",
		"client_first_name", "client_last_name", "client_email",
		"coach_first_name", "coach_last_name", "coach_email", "coach_timezone",
	}).AddRow(
		id.String(), uuid.NewString(), uuid.NewString(), start, 60, "scheduled",
		"Career review", nil, nil, nil, start, start,
		"Ada", "Lovelace", "ada@example.com",
		"Grace", "Hopper", "grace@example.com", "America/New_York",
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions s")).WithArgs(id).WillReturnRows(rows)

	s, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "Ada Lovelace", s.ClientName())
	require.Equal(t, start.Add(time.Hour), s.EndTime())
	require.Equal(t, "America/New_York", s.TimezoneName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByID_NoRows(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions s")).WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrNoRows)

	s, err := r.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, s)
	require.NoError(t, mock.ExpectationsWereMet())
}

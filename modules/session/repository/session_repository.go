package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

// SessionRepository is a read-only view over sessions. Writes belong to the booking CRUD layer.
type SessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetFutureByCoach(ctx context.Context, coachID uuid.UUID, after time.Time) ([]entity.Session, error)
	GetStartingBetween(ctx context.Context, from, to time.Time) ([]entity.Session, error)
}

type sessionRepository struct {
	db database.IDatabase
}

func NewSessionRepository(db database.IDatabase) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionSelect = `
	SELECT s.id, s.coach_id, s.client_id, s.start_time, s.duration_minutes, s.status,
		s.title, s.notes, s.location, s.meeting_id, s.created_at, s.updated_at,
		cl.first_name AS client_first_name, cl.last_name AS client_last_name, cl.email AS client_email,
		co.first_name AS coach_first_name, co.last_name AS coach_last_name, co.email AS coach_email,
		co.timezone AS coach_timezone
	FROM sessions s
	JOIN users cl ON cl.id = s.client_id
	JOIN users co ON co.id = s.coach_id
`

// GetByID returns nil, nil when the session does not exist.
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var session entity.Session
	err := r.db.GetContext(ctx, &session, sessionSelect+` WHERE s.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Error("SessionRepository:GetByID:Error", "session_id", id, "error", err)
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetFutureByCoach returns scheduled or confirmed sessions starting after the given time.
func (r *sessionRepository) GetFutureByCoach(ctx context.Context, coachID uuid.UUID, after time.Time) ([]entity.Session, error) {
	var sessions []entity.Session
	query := sessionSelect + `
		WHERE s.coach_id = $1
		AND s.start_time > $2
		AND s.status IN ('scheduled', 'confirmed')
		ORDER BY s.start_time ASC
	`
	if err := r.db.SelectContext(ctx, &sessions, query, coachID, after); err != nil {
		logger.Error("SessionRepository:GetFutureByCoach:Error", "coach_id", coachID, "error", err)
		return nil, err
	}
	return sessions, nil
}

// GetStartingBetween returns scheduled or confirmed sessions with from < start_time <= to.
func (r *sessionRepository) GetStartingBetween(ctx context.Context, from, to time.Time) ([]entity.Session, error) {
	var sessions []entity.Session
	query := sessionSelect + `
		WHERE s.start_time > $1
		AND s.start_time <= $2
		AND s.status IN ('scheduled', 'confirmed')
		ORDER BY s.start_time ASC
	`
	if err := r.db.SelectContext(ctx, &sessions, query, from, to); err != nil {
		logger.Error("SessionRepository:GetStartingBetween:Error", "error", err)
		return nil, err
	}
	return sessions, nil
}

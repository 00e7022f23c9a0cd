package repository

import (
	"context"
	"database/sql"
	"errors"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
)

type EventMappingRepository interface {
	// GetActive returns the oldest synced mapping for the pair, or nil.
	GetActive(ctx context.Context, sessionID, connectionID uuid.UUID) (*entity.EventMapping, error)
	Upsert(ctx context.Context, m *entity.EventMapping) (*entity.EventMapping, error)
	UpdateSnapshot(ctx context.Context, m *entity.EventMapping) error
	MarkDeleted(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.EventMapping, error)
	ListByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.EventMapping, error)
}

type eventMappingRepository struct {
	db database.IDatabase
}

func NewEventMappingRepository(db database.IDatabase) EventMappingRepository {
	return &eventMappingRepository{db: db}
}

const mappingColumns = `
	id, session_id, connection_id, external_event_id, external_calendar_id,
	synced_title, synced_description, synced_start, synced_end, synced_location,
	sync_status, last_synced_at, created_at, updated_at
`

func (r *eventMappingRepository) GetActive(ctx context.Context, sessionID, connectionID uuid.UUID) (*entity.EventMapping, error) {
	var m entity.EventMapping
	query := `
		SELECT ` + mappingColumns + `
		FROM calendar_event_mappings
		WHERE session_id = $1 AND connection_id = $2 AND sync_status = 'synced'
		ORDER BY created_at ASC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &m, query, sessionID, connectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Upsert records the external event for (session, connection). A previously
// deleted mapping for the pair is overwritten in place.
func (r *eventMappingRepository) Upsert(ctx context.Context, m *entity.EventMapping) (*entity.EventMapping, error) {
	query := `
		INSERT INTO calendar_event_mappings (
			session_id, connection_id, external_event_id, external_calendar_id,
			synced_title, synced_description, synced_start, synced_end, synced_location,
			sync_status, last_synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'synced', NOW())
		ON CONFLICT (session_id, connection_id) DO UPDATE SET
			external_event_id = EXCLUDED.external_event_id,
			external_calendar_id = EXCLUDED.external_calendar_id,
			synced_title = EXCLUDED.synced_title,
			synced_description = EXCLUDED.synced_description,
			synced_start = EXCLUDED.synced_start,
			synced_end = EXCLUDED.synced_end,
			synced_location = EXCLUDED.synced_location,
			sync_status = 'synced',
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING ` + mappingColumns

	var saved entity.EventMapping
	err := r.db.GetContext(ctx, &saved, query,
		m.SessionID, m.ConnectionID, m.ExternalEventID, m.ExternalCalendarID,
		m.SyncedTitle, m.SyncedDescription, m.SyncedStart, m.SyncedEnd, m.SyncedLocation,
	)
	if err != nil {
		logger.Error("EventMappingRepository:Upsert:Error", "session_id", m.SessionID, "connection_id", m.ConnectionID, "error", err)
		return nil, err
	}
	return &saved, nil
}

func (r *eventMappingRepository) UpdateSnapshot(ctx context.Context, m *entity.EventMapping) error {
	query := `
		UPDATE calendar_event_mappings
		SET synced_title = $1, synced_description = $2, synced_start = $3, synced_end = $4,
			synced_location = $5, sync_status = 'synced', last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $6
	`
	return r.db.ExecContext(ctx, query,
		m.SyncedTitle, m.SyncedDescription, m.SyncedStart, m.SyncedEnd, m.SyncedLocation, m.ID,
	)
}

func (r *eventMappingRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calendar_event_mappings
		SET sync_status = 'deleted', last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.db.ExecContext(ctx, query, id)
}

func (r *eventMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.ExecContext(ctx, `DELETE FROM calendar_event_mappings WHERE id = $1`, id)
}

func (r *eventMappingRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.EventMapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM calendar_event_mappings
		WHERE session_id = $1
		ORDER BY connection_id, created_at ASC
	`
	var mappings []entity.EventMapping
	if err := r.db.SelectContext(ctx, &mappings, query, sessionID); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (r *eventMappingRepository) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.EventMapping, error) {
	query := `
		SELECT m.id, m.session_id, m.connection_id, m.external_event_id, m.external_calendar_id,
			m.synced_title, m.synced_description, m.synced_start, m.synced_end, m.synced_location,
			m.sync_status, m.last_synced_at, m.created_at, m.updated_at
		FROM calendar_event_mappings m
		JOIN calendar_connections c ON c.id = m.connection_id
		WHERE c.coach_id = $1
		ORDER BY m.session_id, m.connection_id, m.created_at ASC
	`
	var mappings []entity.EventMapping
	if err := r.db.SelectContext(ctx, &mappings, query, coachID); err != nil {
		return nil, err
	}
	return mappings, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
)

type SyncJobRepository interface {
	FindActive(ctx context.Context, connectionID uuid.UUID, sessionID *uuid.UUID, op entity.SyncOperation) (*uuid.UUID, error)
	Insert(ctx context.Context, job *entity.SyncJob) (uuid.UUID, error)
	ClaimNext(ctx context.Context) (*entity.SyncJob, error)
	Complete(ctx context.Context, id uuid.UUID) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error
	RequeueStale(ctx context.Context, startedBefore time.Time) (int64, error)
	FailOpenForConnection(ctx context.Context, connectionID uuid.UUID, errMsg string) (int64, error)
	ListRetriedWithSession(ctx context.Context, minAttempts int) ([]entity.SyncJob, error)
}

type syncJobRepository struct {
	db database.IDatabase
}

func NewSyncJobRepository(db database.IDatabase) SyncJobRepository {
	return &syncJobRepository{db: db}
}

const syncJobColumns = `
	id, connection_id, session_id, operation, priority, status, attempts, max_attempts,
	scheduled_for, started_at, completed_at, error_message, created_at, updated_at
`

// FindActive returns the id of a pending or processing job for the same work, if any.
func (r *syncJobRepository) FindActive(ctx context.Context, connectionID uuid.UUID, sessionID *uuid.UUID, op entity.SyncOperation) (*uuid.UUID, error) {
	var id uuid.UUID
	query := `
		SELECT id FROM calendar_sync_queue
		WHERE connection_id = $1
		AND session_id IS NOT DISTINCT FROM $2
		AND operation = $3
		AND status IN ('pending', 'processing')
		ORDER BY created_at ASC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &id, query, connectionID, sessionID, op)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *syncJobRepository) Insert(ctx context.Context, job *entity.SyncJob) (uuid.UUID, error) {
	query := `
		INSERT INTO calendar_sync_queue (connection_id, session_id, operation, priority, status, attempts, max_attempts, scheduled_for)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6)
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.GetContext(ctx, &id, query,
		job.ConnectionID, job.SessionID, job.Operation, job.Priority, job.MaxAttempts, job.ScheduledFor,
	)
	if err != nil {
		logger.Error("SyncJobRepository:Insert:Error", "connection_id", job.ConnectionID, "operation", job.Operation, "error", err)
		return uuid.Nil, err
	}
	return id, nil
}

// ClaimNext atomically moves the most urgent eligible pending job to processing.
// It returns nil, nil when nothing is eligible.
func (r *syncJobRepository) ClaimNext(ctx context.Context) (*entity.SyncJob, error) {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'processing', started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM calendar_sync_queue
			WHERE status = 'pending' AND scheduled_for <= NOW()
			ORDER BY priority ASC, scheduled_for ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + syncJobColumns

	var job entity.SyncJob
	err := r.db.GetContext(ctx, &job, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim sync job: %w", err)
	}
	return &job, nil
}

func (r *syncJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'completed', completed_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.db.ExecContext(ctx, query, id)
}

func (r *syncJobRepository) ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, errMsg string) error {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'pending', attempts = $1, scheduled_for = $2, error_message = $3,
			started_at = NULL, updated_at = NOW()
		WHERE id = $4
	`
	return r.db.ExecContext(ctx, query, attempts, runAt, errMsg, id)
}

func (r *syncJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'failed', attempts = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`
	return r.db.ExecContext(ctx, query, attempts, errMsg, id)
}

// RequeueStale returns processing jobs claimed before the cutoff to pending.
func (r *syncJobRepository) RequeueStale(ctx context.Context, startedBefore time.Time) (int64, error) {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'pending', started_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND started_at < $1
	`
	res, err := r.db.ExecResultContext(ctx, query, startedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *syncJobRepository) FailOpenForConnection(ctx context.Context, connectionID uuid.UUID, errMsg string) (int64, error) {
	query := `
		UPDATE calendar_sync_queue
		SET status = 'failed', error_message = $1, completed_at = NOW(), updated_at = NOW()
		WHERE connection_id = $2 AND status IN ('pending', 'processing')
	`
	res, err := r.db.ExecResultContext(ctx, query, errMsg, connectionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListRetriedWithSession lists session-bound jobs that have already been attempted
// at least minAttempts times and are not completed.
func (r *syncJobRepository) ListRetriedWithSession(ctx context.Context, minAttempts int) ([]entity.SyncJob, error) {
	query := `
		SELECT ` + syncJobColumns + `
		FROM calendar_sync_queue
		WHERE session_id IS NOT NULL
		AND status IN ('pending', 'processing', 'failed')
		AND attempts >= $1
		ORDER BY created_at ASC
	`
	var jobs []entity.SyncJob
	if err := r.db.SelectContext(ctx, &jobs, query, minAttempts); err != nil {
		return nil, err
	}
	return jobs, nil
}

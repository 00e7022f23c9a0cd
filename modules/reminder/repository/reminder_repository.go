package repository

import (
	"context"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/reminder/entity"

	"github.com/google/uuid"
)

type ReminderRepository interface {
	Create(ctx context.Context, reminder *entity.ScheduledReminder) error
	// ExistsForLead reports whether a non-cancelled reminder planned for sessionStart already covers the lead time.
	ExistsForLead(ctx context.Context, sessionID uuid.UUID, sessionStart time.Time, reminderType string, hoursBefore int) (bool, error)
	// HasSent reports whether a reminder planned for sessionStart was delivered.
	HasSent(ctx context.Context, sessionID uuid.UUID, sessionStart time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]entity.ScheduledReminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	CancelBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	ExpireUnsent(ctx context.Context, scheduledBefore time.Time, reason string) (int64, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type reminderRepository struct {
	db database.IDatabase
}

func NewReminderRepository(db database.IDatabase) ReminderRepository {
	return &reminderRepository{db: db}
}

const reminderColumns = `
	id, session_id, reminder_type, recipient_id, recipient_email, session_start, scheduled_for, hours_before,
	sent, sent_at, cancelled, failed, failure_reason, payload, created_at, updated_at
`

func (r *reminderRepository) Create(ctx context.Context, reminder *entity.ScheduledReminder) error {
	query := `
		INSERT INTO scheduled_reminders (
			session_id, reminder_type, recipient_id, recipient_email, session_start, scheduled_for, hours_before,
			sent, sent_at, cancelled, failed, failure_reason, payload
		)
		VALUES (
			:session_id, :reminder_type, :recipient_id, :recipient_email, :session_start, :scheduled_for, :hours_before,
			:sent, :sent_at, :cancelled, :failed, :failure_reason, :payload
		)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, reminder)
	if err != nil {
		logger.Error("ReminderRepository:Create:Error", "session_id", reminder.SessionID, "type", reminder.ReminderType, "error", err)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&reminder.ID)
	}
	return rows.Err()
}

func (r *reminderRepository) ExistsForLead(ctx context.Context, sessionID uuid.UUID, sessionStart time.Time, reminderType string, hoursBefore int) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_reminders
			WHERE session_id = $1 AND session_start = $2 AND reminder_type = $3 AND hours_before = $4
			AND cancelled = false
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, sessionID, sessionStart, reminderType, hoursBefore); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *reminderRepository) HasSent(ctx context.Context, sessionID uuid.UUID, sessionStart time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_reminders
			WHERE session_id = $1 AND session_start = $2 AND sent = true
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, sessionID, sessionStart); err != nil {
		return false, err
	}
	return exists, nil
}

// ListDue returns unsent, uncancelled, unfailed reminders scheduled at or before now.
func (r *reminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]entity.ScheduledReminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM scheduled_reminders
		WHERE sent = false AND cancelled = false AND failed = false
		AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	var reminders []entity.ScheduledReminder
	if err := r.db.SelectContext(ctx, &reminders, query, now, limit); err != nil {
		logger.Error("ReminderRepository:ListDue:Error", "error", err)
		return nil, err
	}
	return reminders, nil
}

func (r *reminderRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE scheduled_reminders
		SET sent = true, sent_at = $1, failed = false, failure_reason = NULL, updated_at = NOW()
		WHERE id = $2
	`
	return r.db.ExecContext(ctx, query, sentAt, id)
}

func (r *reminderRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE scheduled_reminders
		SET failed = true, failure_reason = $1, updated_at = NOW()
		WHERE id = $2
	`
	return r.db.ExecContext(ctx, query, reason, id)
}

func (r *reminderRepository) CancelBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	query := `
		UPDATE scheduled_reminders
		SET cancelled = true, updated_at = NOW()
		WHERE session_id = $1 AND sent = false AND cancelled = false
	`
	res, err := r.db.ExecResultContext(ctx, query, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *reminderRepository) ExpireUnsent(ctx context.Context, scheduledBefore time.Time, reason string) (int64, error) {
	query := `
		UPDATE scheduled_reminders
		SET failed = true, failure_reason = $1, updated_at = NOW()
		WHERE sent = false AND cancelled = false AND failed = false AND scheduled_for < $2
	`
	res, err := r.db.ExecResultContext(ctx, query, reason, scheduledBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteFinishedBefore removes sent or cancelled reminders last touched before the cutoff.
func (r *reminderRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM scheduled_reminders
		WHERE (sent = true OR cancelled = true) AND updated_at < $1
	`
	res, err := r.db.ExecResultContext(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

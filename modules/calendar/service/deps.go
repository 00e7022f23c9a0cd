package service

import (
	"context"
	"time"

	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

// SessionReader is the read side of the sessions table.
type SessionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sessionEntity.Session, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetFutureByCoach(ctx context.Context, coachID uuid.UUID, after time.Time) ([]sessionEntity.Session, error)
}

// ReminderScheduler is notified after a session's first external event is created.
type ReminderScheduler interface {
	ScheduleSessionReminders(ctx context.Context, sessionID uuid.UUID) error
}

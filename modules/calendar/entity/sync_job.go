package entity

import (
	"time"

	"coach-sync-api/core/entity"

	"github.com/google/uuid"
)

type SyncOperation string

const (
	OperationCreate   SyncOperation = "create"
	OperationUpdate   SyncOperation = "update"
	OperationDelete   SyncOperation = "delete"
	OperationFullSync SyncOperation = "full_sync"
)

func (o SyncOperation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationFullSync:
		return true
	}
	return false
}

type SyncStatus string

const (
	JobPending    SyncStatus = "pending"
	JobProcessing SyncStatus = "processing"
	JobCompleted  SyncStatus = "completed"
	JobFailed     SyncStatus = "failed"
)

// SyncJob is one queued unit of work against a connection.
type SyncJob struct {
	entity.BaseEntity
	ConnectionID uuid.UUID     `db:"connection_id" json:"connection_id"`
	SessionID    *uuid.UUID    `db:"session_id" json:"session_id,omitempty"`
	Operation    SyncOperation `db:"operation" json:"operation"`
	Priority     int           `db:"priority" json:"priority"`
	Status       SyncStatus    `db:"status" json:"status"`
	Attempts     int           `db:"attempts" json:"attempts"`
	MaxAttempts  int           `db:"max_attempts" json:"max_attempts"`
	ScheduledFor time.Time     `db:"scheduled_for" json:"scheduled_for"`
	StartedAt    *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
}

// Backoff is the delay before retry n: 2^n minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 20 {
		attempts = 20
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}

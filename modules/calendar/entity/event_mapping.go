package entity

import (
	"time"

	"coach-sync-api/core/entity"

	"github.com/google/uuid"
)

const (
	MappingSynced  = "synced"
	MappingDeleted = "deleted"
)

// EventMapping ties a session to the external event it produced on one connection.
type EventMapping struct {
	entity.BaseEntity
	SessionID          uuid.UUID  `db:"session_id" json:"session_id"`
	ConnectionID       uuid.UUID  `db:"connection_id" json:"connection_id"`
	ExternalEventID    string     `db:"external_event_id" json:"external_event_id"`
	ExternalCalendarID string     `db:"external_calendar_id" json:"external_calendar_id"`
	SyncedTitle        string     `db:"synced_title" json:"synced_title"`
	SyncedDescription  *string    `db:"synced_description" json:"synced_description,omitempty"`
	SyncedStart        time.Time  `db:"synced_start" json:"synced_start"`
	SyncedEnd          time.Time  `db:"synced_end" json:"synced_end"`
	SyncedLocation     *string    `db:"synced_location" json:"synced_location,omitempty"`
	SyncStatus         string     `db:"sync_status" json:"sync_status"`
	LastSyncedAt       *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
}

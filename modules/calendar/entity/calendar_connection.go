package entity

import (
	"time"

	"coach-sync-api/core/entity"

	"github.com/google/uuid"
)

const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
)

const (
	LastSyncSuccess = "success"
	LastSyncFailed  = "failed"
)

// CalendarConnection is a coach's linked external calendar account.
type CalendarConnection struct {
	entity.BaseEntity
	CoachID                  uuid.UUID  `db:"coach_id" json:"coach_id"`
	Provider                 string     `db:"provider" json:"provider"`
	AccessToken              string     `db:"access_token" json:"-"`
	RefreshToken             *string    `db:"refresh_token" json:"-"`
	TokenExpiresAt           *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	CalendarEmail            *string    `db:"calendar_email" json:"calendar_email,omitempty"`
	CalendarID               *string    `db:"calendar_id" json:"calendar_id,omitempty"`
	CalendarName             *string    `db:"calendar_name" json:"calendar_name,omitempty"`
	CalendarTimezone         *string    `db:"calendar_timezone" json:"calendar_timezone,omitempty"`
	IsActive                 bool       `db:"is_active" json:"is_active"`
	SyncEnabled              bool       `db:"sync_enabled" json:"sync_enabled"`
	AutoCreateEvents         bool       `db:"auto_create_events" json:"auto_create_events"`
	AutoUpdateEvents         bool       `db:"auto_update_events" json:"auto_update_events"`
	EventTitleTemplate       string     `db:"event_title_template" json:"event_title_template"`
	EventDescriptionTemplate *string    `db:"event_description_template" json:"event_description_template,omitempty"`
	IncludeClientDetails     bool       `db:"include_client_details" json:"include_client_details"`
	LastSyncAt               *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	LastSyncStatus           *string    `db:"last_sync_status" json:"last_sync_status,omitempty"`
	LastSyncError            *string    `db:"last_sync_error" json:"last_sync_error,omitempty"`
}

// TargetCalendarID is the calendar events are written to, "primary" when unset.
func (c *CalendarConnection) TargetCalendarID() string {
	if c.CalendarID != nil && *c.CalendarID != "" {
		return *c.CalendarID
	}
	return "primary"
}

// Location resolves the calendar's timezone, falling back to UTC.
func (c *CalendarConnection) Location() *time.Location {
	if c.CalendarTimezone == nil || *c.CalendarTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(*c.CalendarTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Syncable reports whether jobs may be executed against the connection.
func (c *CalendarConnection) Syncable() bool {
	return c.IsActive && c.SyncEnabled
}

package dto

import (
	"time"

	"coach-sync-api/modules/calendar/entity"
)

type ConnectionResponse struct {
	ID                       string     `json:"id"`
	Provider                 string     `json:"provider"`
	CalendarEmail            *string    `json:"calendar_email,omitempty"`
	CalendarID               *string    `json:"calendar_id,omitempty"`
	CalendarName             *string    `json:"calendar_name,omitempty"`
	CalendarTimezone         *string    `json:"calendar_timezone,omitempty"`
	IsActive                 bool       `json:"is_active"`
	SyncEnabled              bool       `json:"sync_enabled"`
	AutoCreateEvents         bool       `json:"auto_create_events"`
	AutoUpdateEvents         bool       `json:"auto_update_events"`
	EventTitleTemplate       string     `json:"event_title_template"`
	EventDescriptionTemplate *string    `json:"event_description_template,omitempty"`
	IncludeClientDetails     bool       `json:"include_client_details"`
	LastSyncAt               *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus           *string    `json:"last_sync_status,omitempty"`
	LastSyncError            *string    `json:"last_sync_error,omitempty"`
	ConnectedAt              string     `json:"connected_at"`
}

func ToConnectionResponse(c *entity.CalendarConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:                       c.ID.String(),
		Provider:                 c.Provider,
		CalendarEmail:            c.CalendarEmail,
		CalendarID:               c.CalendarID,
		CalendarName:             c.CalendarName,
		CalendarTimezone:         c.CalendarTimezone,
		IsActive:                 c.IsActive,
		SyncEnabled:              c.SyncEnabled,
		AutoCreateEvents:         c.AutoCreateEvents,
		AutoUpdateEvents:         c.AutoUpdateEvents,
		EventTitleTemplate:       c.EventTitleTemplate,
		EventDescriptionTemplate: c.EventDescriptionTemplate,
		IncludeClientDetails:     c.IncludeClientDetails,
		LastSyncAt:               c.LastSyncAt,
		LastSyncStatus:           c.LastSyncStatus,
		LastSyncError:            c.LastSyncError,
		ConnectedAt:              c.CreatedAt.Format(time.RFC3339),
	}
}

type ConnectionListResponse struct {
	Connections []ConnectionResponse `json:"connections"`
}

// UpdateSettingsRequest only changes the fields that are present.
type UpdateSettingsRequest struct {
	SyncEnabled              *bool   `json:"sync_enabled"`
	AutoCreateEvents         *bool   `json:"auto_create_events"`
	AutoUpdateEvents         *bool   `json:"auto_update_events"`
	EventTitleTemplate       *string `json:"event_title_template" validate:"omitempty,max=255"`
	EventDescriptionTemplate *string `json:"event_description_template" validate:"omitempty,max=4000"`
	IncludeClientDetails     *bool   `json:"include_client_details"`
}

type OAuthURLResponse struct {
	URL string `json:"url"`
}

type FullSyncResponse struct {
	JobID *string `json:"job_id,omitempty"`
}

type CleanupDuplicatesRequest struct {
	SessionID *string `json:"session_id" validate:"omitempty,uuid"`
}

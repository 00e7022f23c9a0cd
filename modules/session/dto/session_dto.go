package dto

const (
	EventCreated     = "created"
	EventUpdated     = "updated"
	EventRescheduled = "rescheduled"
	EventCancelled   = "cancelled"
)

type SyncSessionRequest struct {
	Event string `json:"event" validate:"required,oneof=created updated rescheduled cancelled"`
}

type SyncSessionResponse struct {
	SessionID          string   `json:"session_id"`
	Event              string   `json:"event"`
	QueuedJobIDs       []string `json:"queued_job_ids"`
	RemindersCancelled int64    `json:"reminders_cancelled"`
}

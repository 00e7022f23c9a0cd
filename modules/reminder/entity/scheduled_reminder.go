package entity

import (
	"database/sql/driver"
	"errors"
	"time"

	"coach-sync-api/core/entity"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	TypeEmail   = "email"
	TypeMessage = "message"
)

// ReminderPayload is captured when the reminder is scheduled and is not
// refreshed at send time.
type ReminderPayload struct {
	SessionID       uuid.UUID `json:"session_id"`
	SessionTime     time.Time `json:"session_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`
	Title           *string   `json:"title,omitempty"`
	Location        *string   `json:"location,omitempty"`
	MeetingID       *string   `json:"meeting_id,omitempty"`
	CoachID         uuid.UUID `json:"coach_id"`
	CoachName       string    `json:"coach_name"`
	CoachEmail      string    `json:"coach_email"`
	ClientID        uuid.UUID `json:"client_id"`
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email"`
}

func (p ReminderPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *ReminderPayload) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// LocalTime is the session start in the coach's timezone.
func (p *ReminderPayload) LocalTime() time.Time {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return p.SessionTime.In(loc)
}

type ScheduledReminder struct {
	entity.BaseEntity
	SessionID      uuid.UUID       `db:"session_id" json:"session_id"`
	ReminderType   string          `db:"reminder_type" json:"reminder_type"`
	RecipientID    uuid.UUID       `db:"recipient_id" json:"recipient_id"`
	RecipientEmail *string         `db:"recipient_email" json:"recipient_email,omitempty"`
	// SessionStart is the session start the row was planned for. Rows planned
	// for an earlier start do not count once the session is rescheduled.
	SessionStart   time.Time       `db:"session_start" json:"session_start"`
	ScheduledFor   time.Time       `db:"scheduled_for" json:"scheduled_for"`
	HoursBefore    int             `db:"hours_before" json:"hours_before"`
	Sent           bool            `db:"sent" json:"sent"`
	SentAt         *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	Cancelled      bool            `db:"cancelled" json:"cancelled"`
	Failed         bool            `db:"failed" json:"failed"`
	FailureReason  *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	Payload        ReminderPayload `db:"payload" json:"payload"`
}

package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Session is the read model of a coaching appointment joined with both participants.
type Session struct {
	ID              uuid.UUID `db:"id" json:"id"`
	CoachID         uuid.UUID `db:"coach_id" json:"coach_id"`
	ClientID        uuid.UUID `db:"client_id" json:"client_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          string    `db:"status" json:"status"`
	Title           *string   `db:"title" json:"title,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	Location        *string   `db:"location" json:"location,omitempty"`
	MeetingID       *string   `db:"meeting_id" json:"meeting_id,omitempty"`

	ClientFirstName string  `db:"client_first_name" json:"client_first_name"`
	ClientLastName  string  `db:"client_last_name" json:"client_last_name"`
	ClientEmail     string  `db:"client_email" json:"client_email"`
	CoachFirstName  string  `db:"coach_first_name" json:"coach_first_name"`
	CoachLastName   string  `db:"coach_last_name" json:"coach_last_name"`
	CoachEmail      string  `db:"coach_email" json:"coach_email"`
	CoachTimezone   *string `db:"coach_timezone" json:"coach_timezone,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s *Session) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *Session) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// IsActive reports whether the session is still expected to take place.
func (s *Session) IsActive() bool {
	return s.Status == StatusScheduled || s.Status == StatusConfirmed
}

func (s *Session) ClientName() string {
	return strings.TrimSpace(s.ClientFirstName + " " + s.ClientLastName)
}

func (s *Session) CoachName() string {
	return strings.TrimSpace(s.CoachFirstName + " " + s.CoachLastName)
}

func (s *Session) TimezoneName() string {
	if s.CoachTimezone == nil || *s.CoachTimezone == "" {
		return "UTC"
	}
	return *s.CoachTimezone
}

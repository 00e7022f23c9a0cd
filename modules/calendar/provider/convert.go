package provider

import (
	"strings"
	"time"

	sessionEntity "coach-sync-api/modules/session/entity"
)

// WallClockLayout is the local date-time layout sent alongside an IANA zone name.
const WallClockLayout = "2006-01-02T15:04:05"

const defaultEventTitle = "Coaching Session"

// EventTemplate carries the per-connection presentation settings.
type EventTemplate struct {
	Title                string
	Description          *string
	IncludeClientDetails bool
}

// TemplateFor extracts the event template from a connection's settings.
func TemplateFor(title string, description *string, includeClientDetails bool) EventTemplate {
	return EventTemplate{Title: title, Description: description, IncludeClientDetails: includeClientDetails}
}

// ConvertSessionToEvent renders a session as an event in the calendar's own timezone.
func ConvertSessionToEvent(session *sessionEntity.Session, tmpl EventTemplate, loc *time.Location) *Event {
	if loc == nil {
		loc = time.UTC
	}

	title := strings.TrimSpace(tmpl.Title)
	if title == "" {
		title = defaultEventTitle
	}
	if tmpl.IncludeClientDetails {
		if name := session.ClientName(); name != "" {
			title += " - " + name
		}
	}

	var parts []string
	if tmpl.Description != nil && strings.TrimSpace(*tmpl.Description) != "" {
		parts = append(parts, strings.TrimSpace(*tmpl.Description))
	}
	if tmpl.IncludeClientDetails && session.ClientEmail != "" {
		parts = append(parts, "Client: "+session.ClientName()+" <"+session.ClientEmail+">")
	}
	if session.Notes != nil && strings.TrimSpace(*session.Notes) != "" {
		parts = append(parts, strings.TrimSpace(*session.Notes))
	}

	var location string
	if session.Location != nil {
		location = *session.Location
	}

	return &Event{
		Title:       title,
		Description: strings.Join(parts, "\n\n"),
		Location:    location,
		Start:       session.StartTime.In(loc).Format(WallClockLayout),
		End:         session.EndTime().In(loc).Format(WallClockLayout),
		TimeZone:    loc.String(),
	}
}

// ParseWallClock reads a wall-clock value back as an instant in the named zone.
func ParseWallClock(value, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(WallClockLayout, value, loc)
}

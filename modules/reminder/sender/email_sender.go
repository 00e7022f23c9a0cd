package sender

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var reminderTemplate = template.Must(template.ParseFS(templateFS, "templates/session_reminder.html"))

// ReminderEmail is everything the reminder template renders.
type ReminderEmail struct {
	To              string
	RecipientName   string
	CoachName       string
	Title           string
	SessionTime     time.Time // already in the display timezone
	DurationMinutes int
	HoursBefore     int
	Location        string
	MeetingID       string
}

func (e ReminderEmail) Subject() string {
	return "Reminder: coaching session with " + e.CoachName + " " + e.lead()
}

func (e ReminderEmail) lead() string {
	switch {
	case e.HoursBefore <= 0:
		return "starting soon"
	case e.HoursBefore == 1:
		return "in 1 hour"
	case e.HoursBefore%24 == 0 && e.HoursBefore >= 24:
		if e.HoursBefore == 24 {
			return "tomorrow"
		}
		return fmt.Sprintf("in %d days", e.HoursBefore/24)
	default:
		return fmt.Sprintf("in %d hours", e.HoursBefore)
	}
}

type EmailSender interface {
	SendSessionReminder(ctx context.Context, email ReminderEmail) error
}

// Render produces the HTML body of a reminder.
func Render(e ReminderEmail) (string, error) {
	var buf bytes.Buffer
	err := reminderTemplate.Execute(&buf, map[string]any{
		"RecipientName":   e.RecipientName,
		"CoachName":       e.CoachName,
		"Title":           e.Title,
		"Lead":            e.lead(),
		"When":            e.SessionTime.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		"DurationMinutes": e.DurationMinutes,
		"Location":        e.Location,
		"MeetingID":       e.MeetingID,
	})
	if err != nil {
		return "", fmt.Errorf("render reminder email: %w", err)
	}
	return buf.String(), nil
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) SendSessionReminder(ctx context.Context, email ReminderEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if email.To == "" {
		return fmt.Errorf("reminder email has no recipient")
	}
	body, err := Render(email)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", email.To, email.RecipientName)
	m.SetHeader("Subject", email.Subject())
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send reminder email: %w", err)
	}
	logger.Info("EmailSender:SendSessionReminder:Sent", "to", email.To, "hours_before", email.HoursBefore)
	return nil
}

// LogSender renders reminders and logs them instead of sending. Used when SMTP is not configured.
type LogSender struct{}

func (LogSender) SendSessionReminder(ctx context.Context, email ReminderEmail) error {
	if _, err := Render(email); err != nil {
		return err
	}
	logger.Info("EmailSender:SendSessionReminder:Logged", "to", email.To, "subject", email.Subject())
	return nil
}

// New picks the SMTP sender when a host is configured.
func New(cfg config.SMTPConfig) EmailSender {
	if cfg.Host == "" {
		logger.Warn("EmailSender:New:SMTPNotConfigured")
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"
	messageEntity "coach-sync-api/modules/message/entity"
	"coach-sync-api/modules/reminder/entity"
	"coach-sync-api/modules/reminder/repository"
	"coach-sync-api/modules/reminder/sender"
	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

const dueBatchSize = 100

type SessionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sessionEntity.Session, error)
	GetStartingBetween(ctx context.Context, from, to time.Time) ([]sessionEntity.Session, error)
}

type MessageSender interface {
	SendSystemMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*messageEntity.Message, error)
}

// ProcessResult counts one pass over due reminders.
type ProcessResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

type CleanupResult struct {
	Expired int64 `json:"expired"`
	Deleted int64 `json:"deleted"`
}

type ReminderService struct {
	repo     repository.ReminderRepository
	sessions SessionReader
	messages MessageSender
	email    sender.EmailSender
	cfg      config.ReminderConfig
	now      func() time.Time
}

func NewReminderService(
	repo repository.ReminderRepository,
	sessions SessionReader,
	messages MessageSender,
	email sender.EmailSender,
	cfg config.ReminderConfig,
) *ReminderService {
	if cfg.EmailLeadHours == nil {
		cfg.EmailLeadHours = []int{24, 2}
	}
	if cfg.MessageLeadHours == nil {
		cfg.MessageLeadHours = []int{24, 1}
	}
	if cfg.ImmediateWindow <= 0 {
		cfg.ImmediateWindow = time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	return &ReminderService{
		repo:     repo,
		sessions: sessions,
		messages: messages,
		email:    email,
		cfg:      cfg,
		now:      time.Now,
	}
}

func payloadFor(s *sessionEntity.Session) entity.ReminderPayload {
	return entity.ReminderPayload{
		SessionID:       s.ID,
		SessionTime:     s.StartTime,
		DurationMinutes: s.DurationMinutes,
		Timezone:        s.TimezoneName(),
		Title:           s.Title,
		Location:        s.Location,
		MeetingID:       s.MeetingID,
		CoachID:         s.CoachID,
		CoachName:       s.CoachName(),
		CoachEmail:      s.CoachEmail,
		ClientID:        s.ClientID,
		ClientName:      s.ClientName(),
		ClientEmail:     s.ClientEmail,
	}
}

func newReminder(s *sessionEntity.Session, reminderType string, hoursBefore int, at time.Time) *entity.ScheduledReminder {
	r := &entity.ScheduledReminder{
		SessionID:    s.ID,
		ReminderType: reminderType,
		RecipientID:  s.ClientID,
		SessionStart: s.StartTime,
		ScheduledFor: at,
		HoursBefore:  hoursBefore,
		Payload:      payloadFor(s),
	}
	if reminderType == entity.TypeEmail && s.ClientEmail != "" {
		email := s.ClientEmail
		r.RecipientEmail = &email
	}
	return r
}

// ScheduleSessionReminders plans the reminders of a session. Sessions starting
// within the immediate window are reminded right away; otherwise one row is
// stored per lead time that is still in the future. Calling it again for the
// same session adds nothing.
func (s *ReminderService) ScheduleSessionReminders(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		logger.Warn("ReminderService:Schedule:SessionNotFound", "session_id", sessionID)
		return nil
	}
	if !session.IsActive() {
		logger.Info("ReminderService:Schedule:SessionInactive", "session_id", sessionID, "status", session.Status)
		return nil
	}

	now := s.now()
	until := session.StartTime.Sub(now)
	if until <= 0 {
		logger.Info("ReminderService:Schedule:AlreadyStarted", "session_id", sessionID)
		return nil
	}
	if until <= s.cfg.ImmediateWindow {
		return s.remindNow(ctx, session)
	}

	created := 0
	plan := []struct {
		reminderType string
		leads        []int
	}{
		{entity.TypeEmail, s.cfg.EmailLeadHours},
		{entity.TypeMessage, s.cfg.MessageLeadHours},
	}
	for _, p := range plan {
		for _, hours := range p.leads {
			at := session.StartTime.Add(-time.Duration(hours) * time.Hour)
			if !at.After(now) {
				continue
			}
			exists, err := s.repo.ExistsForLead(ctx, session.ID, session.StartTime, p.reminderType, hours)
			if err != nil {
				return fmt.Errorf("check existing %s reminder: %w", p.reminderType, err)
			}
			if exists {
				continue
			}
			if err := s.repo.Create(ctx, newReminder(session, p.reminderType, hours, at)); err != nil {
				return fmt.Errorf("create %s reminder: %w", p.reminderType, err)
			}
			created++
		}
	}

	logger.Info("ReminderService:Schedule:Done", "session_id", sessionID, "created", created)
	return nil
}

// remindNow sends both channels for a session that is about to start and
// records the outcome. It does nothing when a reminder for the current start
// time was already sent.
func (s *ReminderService) remindNow(ctx context.Context, session *sessionEntity.Session) error {
	sent, err := s.repo.HasSent(ctx, session.ID, session.StartTime)
	if err != nil {
		return fmt.Errorf("check sent reminders: %w", err)
	}
	if sent {
		return nil
	}

	now := s.now()
	var errs []error
	for _, reminderType := range []string{entity.TypeEmail, entity.TypeMessage} {
		r := newReminder(session, reminderType, 0, now)
		if err := s.dispatch(ctx, r); err != nil {
			reason := err.Error()
			r.Failed = true
			r.FailureReason = &reason
			errs = append(errs, err)
			logger.Error("ReminderService:Immediate:DispatchError", "session_id", session.ID, "type", reminderType, "error", err)
		} else {
			r.Sent = true
			r.SentAt = &now
		}
		if err := s.repo.Create(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("record %s reminder: %w", reminderType, err))
		}
	}

	logger.Info("ReminderService:Immediate:Done", "session_id", session.ID, "errors", len(errs))
	return errors.Join(errs...)
}

func (s *ReminderService) dispatch(ctx context.Context, r *entity.ScheduledReminder) error {
	p := r.Payload
	switch r.ReminderType {
	case entity.TypeEmail:
		to := p.ClientEmail
		if r.RecipientEmail != nil {
			to = *r.RecipientEmail
		}
		email := sender.ReminderEmail{
			To:              to,
			RecipientName:   p.ClientName,
			CoachName:       p.CoachName,
			SessionTime:     p.LocalTime(),
			DurationMinutes: p.DurationMinutes,
			HoursBefore:     r.HoursBefore,
		}
		if p.Title != nil {
			email.Title = *p.Title
		}
		if p.Location != nil {
			email.Location = *p.Location
		}
		if p.MeetingID != nil {
			email.MeetingID = *p.MeetingID
		}
		return s.email.SendSessionReminder(ctx, email)
	case entity.TypeMessage:
		_, err := s.messages.SendSystemMessage(ctx, p.CoachID, p.ClientID, messageText(&p, r.HoursBefore))
		return err
	default:
		return fmt.Errorf("unknown reminder type %q", r.ReminderType)
	}
}

func messageText(p *entity.ReminderPayload, hoursBefore int) string {
	when := p.LocalTime().Format("Mon Jan 2 at 3:04 PM MST")
	switch {
	case hoursBefore <= 0:
		return fmt.Sprintf("Reminder: our session starts soon (%s).", when)
	case hoursBefore == 1:
		return fmt.Sprintf("Reminder: our session starts in 1 hour (%s).", when)
	default:
		return fmt.Sprintf("Reminder: our session is in %d hours (%s).", hoursBefore, when)
	}
}

// CheckUpcomingSessions sends immediate reminders for sessions inside the
// immediate window that have not been reminded yet. It returns how many
// sessions were reminded without error.
func (s *ReminderService) CheckUpcomingSessions(ctx context.Context) (int, error) {
	now := s.now()
	sessions, err := s.sessions.GetStartingBetween(ctx, now, now.Add(s.cfg.ImmediateWindow))
	if err != nil {
		return 0, fmt.Errorf("load upcoming sessions: %w", err)
	}

	reminded := 0
	for i := range sessions {
		session := &sessions[i]
		sent, err := s.repo.HasSent(ctx, session.ID, session.StartTime)
		if err != nil {
			logger.Error("ReminderService:CheckUpcoming:HasSentError", "session_id", session.ID, "error", err)
			continue
		}
		if sent {
			continue
		}
		if err := s.remindNow(ctx, session); err != nil {
			logger.Error("ReminderService:CheckUpcoming:RemindError", "session_id", session.ID, "error", err)
			continue
		}
		reminded++
	}

	if reminded > 0 {
		logger.Info("ReminderService:CheckUpcoming:Done", "sessions", len(sessions), "reminded", reminded)
	}
	return reminded, nil
}

// ProcessDueReminders dispatches every reminder whose time has come. A failing
// reminder is marked failed and does not stop the batch.
func (s *ReminderService) ProcessDueReminders(ctx context.Context) (*ProcessResult, error) {
	due, err := s.repo.ListDue(ctx, s.now(), dueBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	result := &ProcessResult{}
	for i := range due {
		r := &due[i]
		result.Processed++

		if err := s.dispatch(ctx, r); err != nil {
			result.Failed++
			logger.Error("ReminderService:ProcessDue:DispatchError", "reminder_id", r.ID, "type", r.ReminderType, "error", err)
			if err := s.repo.MarkFailed(ctx, r.ID, err.Error()); err != nil {
				logger.Error("ReminderService:ProcessDue:MarkFailedError", "reminder_id", r.ID, "error", err)
			}
			continue
		}
		if err := s.repo.MarkSent(ctx, r.ID, s.now()); err != nil {
			logger.Error("ReminderService:ProcessDue:MarkSentError", "reminder_id", r.ID, "error", err)
			continue
		}
		result.Sent++
	}

	if result.Processed > 0 {
		logger.Info("ReminderService:ProcessDue:Done", "processed", result.Processed, "sent", result.Sent, "failed", result.Failed)
	}
	return result, nil
}

// CancelSessionReminders cancels the unsent reminders of a session.
func (s *ReminderService) CancelSessionReminders(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	n, err := s.repo.CancelBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	logger.Info("ReminderService:Cancel:Done", "session_id", sessionID, "cancelled", n)
	return n, nil
}

// CleanupStaleReminders fails reminders that were never dispatched and drops
// finished rows past the retention window.
func (s *ReminderService) CleanupStaleReminders(ctx context.Context) (*CleanupResult, error) {
	now := s.now()
	expired, err := s.repo.ExpireUnsent(ctx, now.Add(-s.cfg.StaleAfter), "expired before dispatch")
	if err != nil {
		return nil, fmt.Errorf("expire stale reminders: %w", err)
	}
	deleted, err := s.repo.DeleteFinishedBefore(ctx, now.AddDate(0, 0, -s.cfg.RetentionDays))
	if err != nil {
		return nil, fmt.Errorf("delete old reminders: %w", err)
	}
	logger.Info("ReminderService:Cleanup:Done", "expired", expired, "deleted", deleted)
	return &CleanupResult{Expired: expired, Deleted: deleted}, nil
}

package service

import (
	"context"

	appErrors "coach-sync-api/core/errors"
	"coach-sync-api/core/logger"
	calendarEntity "coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/session/dto"
	"coach-sync-api/modules/session/entity"
	"coach-sync-api/modules/session/repository"

	"github.com/google/uuid"
)

type SyncQueuer interface {
	QueueSessionSync(ctx context.Context, coachID, sessionID uuid.UUID, op calendarEntity.SyncOperation) ([]uuid.UUID, error)
}

type ReminderManager interface {
	ScheduleSessionReminders(ctx context.Context, sessionID uuid.UUID) error
	CancelSessionReminders(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// Hooks is what the appointment CRUD layer calls after it changes a session.
// Sync and reminder failures are logged and never fail the caller.
type Hooks struct {
	sessions  repository.SessionRepository
	queue     SyncQueuer
	reminders ReminderManager
}

func NewHooks(sessions repository.SessionRepository, queue SyncQueuer, reminders ReminderManager) *Hooks {
	return &Hooks{sessions: sessions, queue: queue, reminders: reminders}
}

func (h *Hooks) load(ctx context.Context, sessionID uuid.UUID) (*entity.Session, error) {
	session, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to load session", err)
	}
	if session == nil {
		return nil, appErrors.NewAppError(appErrors.ErrNotFound, "Session not found", nil)
	}
	return session, nil
}

func (h *Hooks) queueSync(ctx context.Context, session *entity.Session, op calendarEntity.SyncOperation) []uuid.UUID {
	ids, err := h.queue.QueueSessionSync(ctx, session.CoachID, session.ID, op)
	if err != nil {
		logger.Error("SessionHooks:QueueSync:Error", "session_id", session.ID, "operation", op, "error", err)
	}
	return ids
}

func (h *Hooks) schedule(ctx context.Context, session *entity.Session) {
	if err := h.reminders.ScheduleSessionReminders(ctx, session.ID); err != nil {
		logger.Error("SessionHooks:ScheduleReminders:Error", "session_id", session.ID, "error", err)
	}
}

func (h *Hooks) cancel(ctx context.Context, session *entity.Session) int64 {
	n, err := h.reminders.CancelSessionReminders(ctx, session.ID)
	if err != nil {
		logger.Error("SessionHooks:CancelReminders:Error", "session_id", session.ID, "error", err)
	}
	return n
}

func (h *Hooks) OnSessionCreated(ctx context.Context, sessionID uuid.UUID) (*dto.SyncSessionResponse, error) {
	session, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := h.queueSync(ctx, session, calendarEntity.OperationCreate)
	h.schedule(ctx, session)
	return response(session, dto.EventCreated, ids, 0), nil
}

func (h *Hooks) OnSessionUpdated(ctx context.Context, sessionID uuid.UUID) (*dto.SyncSessionResponse, error) {
	session, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCancelled() {
		return h.cancelled(ctx, session)
	}
	ids := h.queueSync(ctx, session, calendarEntity.OperationUpdate)
	return response(session, dto.EventUpdated, ids, 0), nil
}

// OnSessionRescheduled replaces the reminders, since their times are derived from the old start.
func (h *Hooks) OnSessionRescheduled(ctx context.Context, sessionID uuid.UUID) (*dto.SyncSessionResponse, error) {
	session, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCancelled() {
		return h.cancelled(ctx, session)
	}
	cancelled := h.cancel(ctx, session)
	ids := h.queueSync(ctx, session, calendarEntity.OperationUpdate)
	h.schedule(ctx, session)
	return response(session, dto.EventRescheduled, ids, cancelled), nil
}

func (h *Hooks) OnSessionCancelled(ctx context.Context, sessionID uuid.UUID) (*dto.SyncSessionResponse, error) {
	session, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return h.cancelled(ctx, session)
}

func (h *Hooks) cancelled(ctx context.Context, session *entity.Session) (*dto.SyncSessionResponse, error) {
	ids := h.queueSync(ctx, session, calendarEntity.OperationDelete)
	n := h.cancel(ctx, session)
	return response(session, dto.EventCancelled, ids, n), nil
}

// Dispatch runs the hook for event on behalf of a participant of the session.
func (h *Hooks) Dispatch(ctx context.Context, userID, sessionID uuid.UUID, event string) (*dto.SyncSessionResponse, error) {
	session, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CoachID != userID && session.ClientID != userID {
		return nil, appErrors.NewAppError(appErrors.ErrNotFound, "Session not found", nil)
	}

	switch event {
	case dto.EventCreated:
		return h.OnSessionCreated(ctx, sessionID)
	case dto.EventUpdated:
		return h.OnSessionUpdated(ctx, sessionID)
	case dto.EventRescheduled:
		return h.OnSessionRescheduled(ctx, sessionID)
	case dto.EventCancelled:
		return h.OnSessionCancelled(ctx, sessionID)
	default:
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "Unknown session event", nil)
	}
}

func response(session *entity.Session, event string, ids []uuid.UUID, cancelled int64) *dto.SyncSessionResponse {
	res := &dto.SyncSessionResponse{
		SessionID:          session.ID.String(),
		Event:              event,
		QueuedJobIDs:       make([]string, 0, len(ids)),
		RemindersCancelled: cancelled,
	}
	for _, id := range ids {
		res.QueuedJobIDs = append(res.QueuedJobIDs, id.String())
	}
	return res
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/repository"
	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

// SyncExecutor claims queued jobs and applies them to the external calendars.
type SyncExecutor struct {
	jobs      repository.SyncJobRepository
	conns     repository.ConnectionRepository
	mappings  repository.EventMappingRepository
	sessions  SessionReader
	providers *provider.Registry
	reminders ReminderScheduler
	now       func() time.Time
}

func NewSyncExecutor(
	jobs repository.SyncJobRepository,
	conns repository.ConnectionRepository,
	mappings repository.EventMappingRepository,
	sessions SessionReader,
	providers *provider.Registry,
	reminders ReminderScheduler,
) *SyncExecutor {
	return &SyncExecutor{
		jobs:      jobs,
		conns:     conns,
		mappings:  mappings,
		sessions:  sessions,
		providers: providers,
		reminders: reminders,
		now:       time.Now,
	}
}

// ProcessNextSyncJob claims and runs a single job. It reports whether a job was
// claimed. Job failures are persisted on the job and never returned.
func (e *SyncExecutor) ProcessNextSyncJob(ctx context.Context) (processed bool, err error) {
	job, err := e.jobs.ClaimNext(ctx)
	if err != nil {
		logger.Error("SyncExecutor:Claim:Error", "error", err)
		return false, err
	}
	if job == nil {
		return false, nil
	}

	logger.Info("SyncExecutor:Job:Start", "job_id", job.ID, "operation", job.Operation, "connection_id", job.ConnectionID, "attempt", job.Attempts+1)

	runErr := e.run(ctx, job)
	if runErr != nil {
		e.fail(ctx, job, runErr)
	} else if err := e.jobs.Complete(ctx, job.ID); err != nil {
		logger.Error("SyncExecutor:Complete:Error", "job_id", job.ID, "error", err)
	} else {
		logger.Info("SyncExecutor:Job:Completed", "job_id", job.ID, "operation", job.Operation)
	}

	e.recordConnectionResult(ctx, job, runErr)
	return true, nil
}

// ProcessPendingJobs drains up to limit jobs and returns how many were processed.
func (e *SyncExecutor) ProcessPendingJobs(ctx context.Context, limit int) (int, error) {
	processed := 0
	for processed < limit {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		ok, err := e.ProcessNextSyncJob(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}
		processed++
	}
	return processed, nil
}

func (e *SyncExecutor) run(ctx context.Context, job *entity.SyncJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing job: %v", r)
		}
	}()

	conn, err := e.conns.GetByID(ctx, job.ConnectionID)
	if err != nil {
		return fmt.Errorf("load connection: %w", err)
	}
	if conn == nil || !conn.Syncable() {
		return fmt.Errorf("%w: %s", ErrConnectionInactive, job.ConnectionID)
	}
	p, err := e.providers.ForConnection(conn)
	if err != nil {
		return err
	}

	switch job.Operation {
	case entity.OperationCreate:
		return e.create(ctx, job, conn, p)
	case entity.OperationUpdate:
		return e.update(ctx, job, conn, p)
	case entity.OperationDelete:
		return e.delete(ctx, job, conn, p)
	case entity.OperationFullSync:
		return e.fullSync(ctx, conn, p)
	default:
		return nonRetryablef("unknown operation %q", job.Operation)
	}
}

func (e *SyncExecutor) loadSession(ctx context.Context, job *entity.SyncJob) (*sessionEntity.Session, error) {
	if job.SessionID == nil {
		return nil, nonRetryablef("%s job %s has no session", job.Operation, job.ID)
	}
	session, err := e.sessions.GetByID(ctx, *job.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, *job.SessionID)
	}
	return session, nil
}

func (e *SyncExecutor) create(ctx context.Context, job *entity.SyncJob, conn *entity.CalendarConnection, p provider.CalendarProvider) error {
	if job.SessionID == nil {
		return nonRetryablef("create job %s has no session", job.ID)
	}
	mapping, err := e.mappings.GetActive(ctx, *job.SessionID, conn.ID)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	if mapping != nil {
		logger.Info("SyncExecutor:Create:AlreadyMapped", "session_id", *job.SessionID, "external_event_id", mapping.ExternalEventID)
		return nil
	}

	session, err := e.loadSession(ctx, job)
	if err != nil {
		return err
	}
	return e.createForSession(ctx, conn, p, session)
}

func (e *SyncExecutor) createForSession(ctx context.Context, conn *entity.CalendarConnection, p provider.CalendarProvider, session *sessionEntity.Session) error {
	if session.IsCancelled() {
		logger.Info("SyncExecutor:Create:SessionCancelled", "session_id", session.ID)
		return nil
	}
	if !conn.AutoCreateEvents {
		logger.Info("SyncExecutor:Create:AutoCreateOff", "connection_id", conn.ID)
		return nil
	}

	ev := e.toEvent(conn, session)
	calendarID := conn.TargetCalendarID()
	externalID, err := p.CreateEvent(ctx, conn.ID, calendarID, ev)
	if err != nil {
		return err
	}

	if _, err := e.mappings.Upsert(ctx, snapshot(session, conn.ID, externalID, calendarID, ev)); err != nil {
		return fmt.Errorf("save mapping for event %s: %w", externalID, err)
	}
	logger.Info("SyncExecutor:Create:Synced", "session_id", session.ID, "connection_id", conn.ID, "external_event_id", externalID)

	if e.reminders != nil {
		if err := e.reminders.ScheduleSessionReminders(ctx, session.ID); err != nil {
			logger.Error("SyncExecutor:Create:ScheduleRemindersError", "session_id", session.ID, "error", err)
		}
	}
	return nil
}

func (e *SyncExecutor) update(ctx context.Context, job *entity.SyncJob, conn *entity.CalendarConnection, p provider.CalendarProvider) error {
	if job.SessionID == nil {
		return nonRetryablef("update job %s has no session", job.ID)
	}
	mapping, err := e.mappings.GetActive(ctx, *job.SessionID, conn.ID)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	if mapping == nil {
		return e.create(ctx, job, conn, p)
	}
	if !conn.AutoUpdateEvents {
		logger.Info("SyncExecutor:Update:AutoUpdateOff", "connection_id", conn.ID)
		return nil
	}

	session, err := e.loadSession(ctx, job)
	if err != nil {
		return err
	}
	return e.updateForSession(ctx, conn, p, session, mapping, true)
}

func (e *SyncExecutor) updateForSession(ctx context.Context, conn *entity.CalendarConnection, p provider.CalendarProvider, session *sessionEntity.Session, mapping *entity.EventMapping, allowDelete bool) error {
	if session.IsCancelled() {
		if !allowDelete {
			return nil
		}
		if _, err := p.DeleteEvent(ctx, conn.ID, mapping.ExternalCalendarID, mapping.ExternalEventID); err != nil {
			return err
		}
		if err := e.mappings.MarkDeleted(ctx, mapping.ID); err != nil {
			return fmt.Errorf("mark mapping deleted: %w", err)
		}
		logger.Info("SyncExecutor:Update:CancelledDeleted", "session_id", session.ID, "external_event_id", mapping.ExternalEventID)
		return nil
	}

	ev := e.toEvent(conn, session)
	_, err := p.UpdateEvent(ctx, conn.ID, mapping.ExternalCalendarID, mapping.ExternalEventID, ev)
	if errors.Is(err, provider.ErrNotFound) {
		// Removed on the provider side; put it back.
		logger.Warn("SyncExecutor:Update:RemoteMissing", "session_id", session.ID, "external_event_id", mapping.ExternalEventID)
		externalID, err := p.CreateEvent(ctx, conn.ID, mapping.ExternalCalendarID, ev)
		if err != nil {
			return err
		}
		if _, err := e.mappings.Upsert(ctx, snapshot(session, conn.ID, externalID, mapping.ExternalCalendarID, ev)); err != nil {
			return fmt.Errorf("save mapping for event %s: %w", externalID, err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	updated := snapshot(session, conn.ID, mapping.ExternalEventID, mapping.ExternalCalendarID, ev)
	updated.ID = mapping.ID
	if err := e.mappings.UpdateSnapshot(ctx, updated); err != nil {
		return fmt.Errorf("update mapping snapshot: %w", err)
	}
	logger.Info("SyncExecutor:Update:Synced", "session_id", session.ID, "external_event_id", mapping.ExternalEventID)
	return nil
}

func (e *SyncExecutor) delete(ctx context.Context, job *entity.SyncJob, conn *entity.CalendarConnection, p provider.CalendarProvider) error {
	if job.SessionID == nil {
		return nonRetryablef("delete job %s has no session", job.ID)
	}
	mapping, err := e.mappings.GetActive(ctx, *job.SessionID, conn.ID)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	if mapping == nil {
		logger.Info("SyncExecutor:Delete:NothingMapped", "session_id", *job.SessionID, "connection_id", conn.ID)
		return nil
	}

	if _, err := p.DeleteEvent(ctx, conn.ID, mapping.ExternalCalendarID, mapping.ExternalEventID); err != nil {
		return err
	}
	if err := e.mappings.MarkDeleted(ctx, mapping.ID); err != nil {
		return fmt.Errorf("mark mapping deleted: %w", err)
	}
	logger.Info("SyncExecutor:Delete:Deleted", "session_id", *job.SessionID, "external_event_id", mapping.ExternalEventID)
	return nil
}

// fullSync creates or updates events for every upcoming session of the coach.
// Existing events are never deleted here.
func (e *SyncExecutor) fullSync(ctx context.Context, conn *entity.CalendarConnection, p provider.CalendarProvider) error {
	sessions, err := e.sessions.GetFutureByCoach(ctx, conn.CoachID, e.now())
	if err != nil {
		return fmt.Errorf("load future sessions: %w", err)
	}

	var errs []error
	created, updated := 0, 0
	for i := range sessions {
		session := &sessions[i]
		mapping, err := e.mappings.GetActive(ctx, session.ID, conn.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}

		if mapping == nil {
			err = e.createForSession(ctx, conn, p, session)
			if err == nil {
				created++
			}
		} else if conn.AutoUpdateEvents {
			err = e.updateForSession(ctx, conn, p, session, mapping, false)
			if err == nil {
				updated++
			}
		}
		if err != nil {
			if errors.Is(err, provider.ErrConnectionUnusable) {
				return err
			}
			logger.Error("SyncExecutor:FullSync:SessionError", "session_id", session.ID, "error", err)
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
		}
	}

	logger.Info("SyncExecutor:FullSync:Done", "connection_id", conn.ID, "sessions", len(sessions), "created", created, "updated", updated, "errors", len(errs))
	return errors.Join(errs...)
}

func (e *SyncExecutor) toEvent(conn *entity.CalendarConnection, session *sessionEntity.Session) *provider.Event {
	tmpl := provider.TemplateFor(conn.EventTitleTemplate, conn.EventDescriptionTemplate, conn.IncludeClientDetails)
	return provider.ConvertSessionToEvent(session, tmpl, conn.Location())
}

func snapshot(session *sessionEntity.Session, connectionID uuid.UUID, externalID, calendarID string, ev *provider.Event) *entity.EventMapping {
	m := &entity.EventMapping{
		SessionID:          session.ID,
		ConnectionID:       connectionID,
		ExternalEventID:    externalID,
		ExternalCalendarID: calendarID,
		SyncedTitle:        ev.Title,
		SyncedStart:        session.StartTime,
		SyncedEnd:          session.EndTime(),
		SyncStatus:         entity.MappingSynced,
	}
	if ev.Description != "" {
		desc := ev.Description
		m.SyncedDescription = &desc
	}
	if ev.Location != "" {
		loc := ev.Location
		m.SyncedLocation = &loc
	}
	return m
}

// fail applies the retry policy: terminal after max_attempts or on a
// non-retryable error, otherwise back to pending after Backoff(attempts).
func (e *SyncExecutor) fail(ctx context.Context, job *entity.SyncJob, cause error) {
	attempts := job.Attempts + 1
	msg := cause.Error()

	if IsNonRetryable(cause) || attempts >= job.MaxAttempts {
		if err := e.jobs.MarkFailed(ctx, job.ID, attempts, msg); err != nil {
			logger.Error("SyncExecutor:MarkFailed:Error", "job_id", job.ID, "error", err)
			return
		}
		logger.Warn("SyncExecutor:Job:Failed", "job_id", job.ID, "attempts", attempts, "non_retryable", IsNonRetryable(cause), "error", msg)
		return
	}

	runAt := e.now().Add(entity.Backoff(attempts))
	if err := e.jobs.ScheduleRetry(ctx, job.ID, attempts, runAt, msg); err != nil {
		logger.Error("SyncExecutor:ScheduleRetry:Error", "job_id", job.ID, "error", err)
		return
	}
	logger.Warn("SyncExecutor:Job:Retrying", "job_id", job.ID, "attempts", attempts, "run_at", runAt, "error", msg)
}

func (e *SyncExecutor) recordConnectionResult(ctx context.Context, job *entity.SyncJob, runErr error) {
	// Deactivation already wrote its own status.
	if errors.Is(runErr, provider.ErrConnectionUnusable) || errors.Is(runErr, ErrConnectionInactive) {
		return
	}
	status := entity.LastSyncSuccess
	var msg *string
	if runErr != nil {
		status = entity.LastSyncFailed
		s := runErr.Error()
		msg = &s
	}
	if err := e.conns.RecordSyncResult(ctx, job.ConnectionID, status, msg); err != nil {
		logger.Error("SyncExecutor:RecordSyncResult:Error", "connection_id", job.ConnectionID, "error", err)
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "coach-sync-api/core/errors"
	calendarEntity "coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/session/dto"
	"coach-sync-api/modules/session/entity"
	"coach-sync-api/modules/session/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	sessions map[uuid.UUID]*entity.Session
}

func (s *stubSessions) GetByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	return s.sessions[id], nil
}

func (s *stubSessions) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.sessions[id]
	return ok, nil
}

func (s *stubSessions) GetFutureByCoach(context.Context, uuid.UUID, time.Time) ([]entity.Session, error) {
	return nil, nil
}

func (s *stubSessions) GetStartingBetween(context.Context, time.Time, time.Time) ([]entity.Session, error) {
	return nil, nil
}

type recorder struct {
	calls    []string
	queueErr error
}

func (r *recorder) QueueSessionSync(_ context.Context, _, _ uuid.UUID, op calendarEntity.SyncOperation) ([]uuid.UUID, error) {
	r.calls = append(r.calls, "sync:"+string(op))
	if r.queueErr != nil {
		return nil, r.queueErr
	}
	return []uuid.UUID{uuid.New()}, nil
}

func (r *recorder) ScheduleSessionReminders(context.Context, uuid.UUID) error {
	r.calls = append(r.calls, "reminders:schedule")
	return nil
}

func (r *recorder) CancelSessionReminders(context.Context, uuid.UUID) (int64, error) {
	r.calls = append(r.calls, "reminders:cancel")
	return 2, nil
}

func setup(status string) (*service.Hooks, *recorder, *entity.Session) {
	session := &entity.Session{
		ID:              uuid.New(),
		CoachID:         uuid.New(),
		ClientID:        uuid.New(),
		StartTime:       time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
		Status:          status,
	}
	rec := &recorder{}
	sessions := &stubSessions{sessions: map[uuid.UUID]*entity.Session{session.ID: session}}
	return service.NewHooks(sessions, rec, rec), rec, session
}

func TestHooks_Created(t *testing.T) {
	hooks, rec, session := setup(entity.StatusScheduled)

	res, err := hooks.OnSessionCreated(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync:create", "reminders:schedule"}, rec.calls)
	assert.Len(t, res.QueuedJobIDs, 1)
	assert.Equal(t, dto.EventCreated, res.Event)
}

func TestHooks_Updated(t *testing.T) {
	hooks, rec, session := setup(entity.StatusConfirmed)

	_, err := hooks.OnSessionUpdated(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync:update"}, rec.calls)
}

func TestHooks_UpdatedCancelledSessionDeletesEvent(t *testing.T) {
	hooks, rec, session := setup(entity.StatusCancelled)

	res, err := hooks.OnSessionUpdated(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync:delete", "reminders:cancel"}, rec.calls)
	assert.Equal(t, dto.EventCancelled, res.Event)
}

func TestHooks_RescheduledReplacesReminders(t *testing.T) {
	hooks, rec, session := setup(entity.StatusScheduled)

	res, err := hooks.OnSessionRescheduled(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"reminders:cancel", "sync:update", "reminders:schedule"}, rec.calls)
	assert.Equal(t, int64(2), res.RemindersCancelled)
}

func TestHooks_Cancelled(t *testing.T) {
	hooks, rec, session := setup(entity.StatusCancelled)

	res, err := hooks.OnSessionCancelled(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sync:delete", "reminders:cancel"}, rec.calls)
	assert.Equal(t, int64(2), res.RemindersCancelled)
}

func TestHooks_QueueFailureDoesNotFailCaller(t *testing.T) {
	hooks, rec, session := setup(entity.StatusScheduled)
	rec.queueErr = errors.New("db down")

	res, err := hooks.OnSessionCreated(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, res.QueuedJobIDs)
	assert.Contains(t, rec.calls, "reminders:schedule")
}

func TestHooks_MissingSession(t *testing.T) {
	hooks, _, _ := setup(entity.StatusScheduled)

	_, err := hooks.OnSessionCreated(context.Background(), uuid.New())
	var appErr *appErrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound, appErr.Code)
}

func TestHooks_DispatchRequiresParticipant(t *testing.T) {
	hooks, rec, session := setup(entity.StatusScheduled)

	_, err := hooks.Dispatch(context.Background(), uuid.New(), session.ID, dto.EventCreated)
	var appErr *appErrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound, appErr.Code)
	assert.Empty(t, rec.calls)

	res, err := hooks.Dispatch(context.Background(), session.ClientID, session.ID, dto.EventUpdated)
	require.NoError(t, err)
	assert.Equal(t, dto.EventUpdated, res.Event)
}

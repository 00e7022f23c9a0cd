package service

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "coach-sync-api/core/errors"
	"coach-sync-api/core/utils"
	"coach-sync-api/modules/calendar/dto"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appCode(t *testing.T, err error) appErrors.ErrorCode {
	t.Helper()
	var ae *appErrors.AppError
	require.True(t, errors.As(err, &ae), "expected AppError, got %v", err)
	return ae.Code
}

func TestConnectionService_HandleCallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	newCoach := uuid.New()
	refresh := "refresh-token"
	email := "coach@example.com"
	expires := h.clock.Now().Add(time.Hour)

	h.provider.tokens = &provider.TokenResult{AccessToken: "access-token", RefreshToken: &refresh, ExpiresAt: &expires, UserEmail: &email}
	h.states.claims = &utils.OAuthState{OwnerID: newCoach, Provider: entity.ProviderGoogle, Nonce: "n1"}

	conn, err := h.connections.HandleCallback(ctx, entity.ProviderGoogle, "valid-code", "signed-state")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, newCoach, conn.CoachID)
	assert.Equal(t, "access-token", conn.AccessToken)
	assert.Equal(t, "primary", conn.TargetCalendarID())
	assert.Equal(t, "Coaching Session", conn.EventTitleTemplate)
	require.NotNil(t, conn.CalendarEmail)
	assert.Equal(t, email, *conn.CalendarEmail)

	// A full sync is queued for the new connection.
	id, err := h.jobs.FindActive(ctx, conn.ID, nil, entity.OperationFullSync)
	require.NoError(t, err)
	require.NotNil(t, id)

	// The state cannot be redeemed twice.
	_, err = h.connections.HandleCallback(ctx, entity.ProviderGoogle, "valid-code", "signed-state")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized, appCode(t, err))
}

func TestConnectionService_HandleCallback_ProviderMismatch(t *testing.T) {
	h := newHarness(t)
	h.states.claims = &utils.OAuthState{OwnerID: uuid.New(), Provider: entity.ProviderOutlook, Nonce: "n1"}

	_, err := h.connections.HandleCallback(context.Background(), entity.ProviderGoogle, "valid-code", "state")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput, appCode(t, err))
}

func TestConnectionService_HandleCallback_RejectedCode(t *testing.T) {
	h := newHarness(t)
	h.states.claims = &utils.OAuthState{OwnerID: uuid.New(), Provider: entity.ProviderGoogle, Nonce: "n1"}

	_, err := h.connections.HandleCallback(context.Background(), entity.ProviderGoogle, "bad-code", "state")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized, appCode(t, err))
	assert.ErrorIs(t, err, provider.ErrOAuthExchange)
}

func TestConnectionService_UpdateSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	off := false
	title := "  Session with coach  "

	res, err := h.connections.UpdateSettings(ctx, h.coachID, h.conn.ID, &dto.UpdateSettingsRequest{
		AutoUpdateEvents:   &off,
		EventTitleTemplate: &title,
	})
	require.NoError(t, err)
	assert.False(t, res.AutoUpdateEvents)
	assert.True(t, res.AutoCreateEvents)
	assert.True(t, res.SyncEnabled)
	assert.Equal(t, "Session with coach", res.EventTitleTemplate)

	stored := h.conns.conns[h.conn.ID]
	assert.False(t, stored.AutoUpdateEvents)
	assert.Equal(t, "Session with coach", stored.EventTitleTemplate)

	empty := " "
	_, err = h.connections.UpdateSettings(ctx, h.coachID, h.conn.ID, &dto.UpdateSettingsRequest{EventTitleTemplate: &empty})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput, appCode(t, err))
}

func TestConnectionService_OtherCoachGetsNotFound(t *testing.T) {
	h := newHarness(t)

	err := h.connections.Disconnect(context.Background(), uuid.New(), h.conn.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound, appCode(t, err))
	assert.True(t, h.conns.conns[h.conn.ID].IsActive)
}

func TestConnectionService_DisconnectFailsOpenJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.addSession(24 * time.Hour)

	id, err := h.queue.QueueSync(ctx, h.conn.ID, entity.OperationCreate, &s.ID, 0)
	require.NoError(t, err)

	require.NoError(t, h.connections.Disconnect(ctx, h.coachID, h.conn.ID))

	assert.False(t, h.conns.conns[h.conn.ID].IsActive)
	job := h.job(*id)
	assert.Equal(t, entity.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "connection disconnected", *job.ErrorMessage)

	_, err = h.connections.TriggerFullSync(ctx, h.coachID, h.conn.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput, appCode(t, err))
}

func TestConnectionService_GetEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.events["evt-x"] = &provider.Event{Title: "Existing"}
	start := h.clock.Now()

	events, err := h.connections.GetEvents(ctx, h.coachID, h.conn.ID, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Existing", events[0].Title)

	_, err = h.connections.GetEvents(ctx, h.coachID, h.conn.ID, start, start)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidInput, appCode(t, err))
}

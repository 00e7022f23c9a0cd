package service

import (
	"context"
	"testing"
	"time"

	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) addMapping(sessionID uuid.UUID, externalID string, age time.Duration, status string) *entity.EventMapping {
	m := &entity.EventMapping{
		SessionID:          sessionID,
		ConnectionID:       h.conn.ID,
		ExternalEventID:    externalID,
		ExternalCalendarID: "primary",
		SyncedTitle:        "Coaching Session",
		SyncStatus:         status,
	}
	m.ID = uuid.New()
	m.CreatedAt = h.clock.Now().Add(-age)
	h.mappings.mappings = append(h.mappings.mappings, m)
	h.provider.events[externalID] = &provider.Event{Title: "Coaching Session"}
	return m
}

func TestReconciliation_KeepsOldestMapping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.addSession(24 * time.Hour)

	// Inserted newest first so ordering comes from created_at.
	h.addMapping(s.ID, "evt-c", time.Minute, entity.MappingSynced)
	h.addMapping(s.ID, "evt-b", time.Hour, entity.MappingSynced)
	oldest := h.addMapping(s.ID, "evt-a", 2*time.Hour, entity.MappingSynced)

	res, err := h.recon.CleanupDuplicateEvents(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.GroupsChecked)
	assert.Equal(t, 2, res.DuplicatesFound)
	assert.Equal(t, 2, res.EventsDeleted)
	assert.Equal(t, 2, res.MappingsDeleted)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, []string{"evt-b", "evt-c"}, h.provider.deleted)

	left, _ := h.mappings.ListBySession(ctx, s.ID)
	require.Len(t, left, 1)
	assert.Equal(t, oldest.ID, left[0].ID)
	assert.Contains(t, h.provider.events, "evt-a")
}

func TestReconciliation_PrefersSyncedKeeper(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.addSession(24 * time.Hour)

	h.addMapping(s.ID, "evt-old", 3*time.Hour, entity.MappingDeleted)
	keeper := h.addMapping(s.ID, "evt-live", time.Hour, entity.MappingSynced)

	res, err := h.recon.CleanupDuplicateEvents(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.DuplicatesFound)
	assert.Zero(t, res.EventsDeleted)
	assert.Equal(t, 1, res.MappingsDeleted)
	left, _ := h.mappings.ListBySession(ctx, s.ID)
	require.Len(t, left, 1)
	assert.Equal(t, keeper.ID, left[0].ID)
}

func TestReconciliation_SharedExternalEventIsNotDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.addSession(24 * time.Hour)

	h.addMapping(s.ID, "evt-same", 2*time.Hour, entity.MappingSynced)
	h.addMapping(s.ID, "evt-same", time.Hour, entity.MappingSynced)

	res, err := h.recon.CleanupDuplicateEvents(ctx, s.ID)
	require.NoError(t, err)

	assert.Zero(t, res.EventsDeleted)
	assert.Equal(t, 1, res.MappingsDeleted)
	assert.Empty(t, h.provider.deleted)
	assert.Contains(t, h.provider.events, "evt-same")
}

func TestReconciliation_AllDuplicatesForCoach(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	one := h.addSession(24 * time.Hour)
	two := h.addSession(48 * time.Hour)

	h.addMapping(one.ID, "evt-1a", 2*time.Hour, entity.MappingSynced)
	h.addMapping(one.ID, "evt-1b", time.Hour, entity.MappingSynced)
	h.addMapping(two.ID, "evt-2a", time.Hour, entity.MappingSynced)

	res, err := h.recon.CleanupAllDuplicateEvents(ctx, h.coachID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.GroupsChecked)
	assert.Equal(t, 1, res.DuplicatesFound)
	assert.Equal(t, []string{"evt-1b"}, h.provider.deleted)
}

func TestReconciliation_CleanupFailedSyncJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	live := h.addSession(24 * time.Hour)
	gone := uuid.New()

	orphanID, err := h.queue.QueueSync(ctx, h.conn.ID, entity.OperationUpdate, &gone, 0)
	require.NoError(t, err)
	h.job(*orphanID).Attempts = 2

	liveID, err := h.queue.QueueSync(ctx, h.conn.ID, entity.OperationUpdate, &live.ID, 0)
	require.NoError(t, err)
	h.job(*liveID).Attempts = 2

	staleID, err := h.queue.QueueSync(ctx, h.conn.ID, entity.OperationFullSync, nil, 0)
	require.NoError(t, err)
	stale := h.job(*staleID)
	stale.Status = entity.JobProcessing
	startedAt := h.clock.Now().Add(-time.Hour)
	stale.StartedAt = &startedAt

	res, err := h.recon.CleanupFailedSyncJobs(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.JobsChecked)
	assert.Equal(t, 1, res.JobsFailed)
	assert.Equal(t, 1, res.JobsRequeued)

	assert.Equal(t, entity.JobFailed, h.job(*orphanID).Status)
	assert.Equal(t, entity.JobPending, h.job(*liveID).Status)
	assert.Equal(t, entity.JobPending, stale.Status)
}

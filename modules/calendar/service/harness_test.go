package service

import (
	"testing"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"
	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

type harness struct {
	clock     *clock
	jobs      *fakeJobs
	conns     *fakeConns
	mappings  *fakeMappings
	sessions  *fakeSessions
	reminders *fakeReminders
	provider  *fakeProvider
	states    *fakeStates

	queue       *SyncQueueService
	executor    *SyncExecutor
	recon       *ReconciliationService
	connections *ConnectionService

	conn    *entity.CalendarConnection
	coachID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	coachID := uuid.New()
	conn := &entity.CalendarConnection{
		CoachID:            coachID,
		Provider:           entity.ProviderGoogle,
		AccessToken:        "access",
		IsActive:           true,
		SyncEnabled:        true,
		AutoCreateEvents:   true,
		AutoUpdateEvents:   true,
		EventTitleTemplate: "Coaching Session",
	}
	conn.ID = uuid.New()

	h := &harness{
		clock:     clk,
		jobs:      &fakeJobs{clock: clk},
		conns:     newFakeConns(conn),
		mappings:  &fakeMappings{clock: clk},
		sessions:  &fakeSessions{sessions: make(map[uuid.UUID]*sessionEntity.Session)},
		reminders: &fakeReminders{},
		provider:  newFakeProvider(),
		states:    &fakeStates{},
		conn:      conn,
		coachID:   coachID,
	}
	registry := provider.NewRegistry(h.provider)

	h.queue = NewSyncQueueService(h.jobs, h.conns, h.mappings, config.SyncConfig{})
	h.queue.now = clk.Now
	h.executor = NewSyncExecutor(h.jobs, h.conns, h.mappings, h.sessions, registry, h.reminders)
	h.executor.now = clk.Now
	h.recon = NewReconciliationService(h.conns, h.mappings, h.jobs, h.sessions, registry, h.queue)
	h.connections = NewConnectionService(h.conns, h.jobs, registry, h.states, h.queue)
	return h
}

// addSession stores a scheduled one-hour session starting in the given offset.
func (h *harness) addSession(in time.Duration) *sessionEntity.Session {
	s := &sessionEntity.Session{
		ID:              uuid.New(),
		CoachID:         h.coachID,
		ClientID:        uuid.New(),
		StartTime:       h.clock.Now().Add(in),
		DurationMinutes: 60,
		Status:          sessionEntity.StatusScheduled,
		ClientFirstName: "Ada",
		ClientLastName:  "Lovelace",
		ClientEmail:     "ada@example.com",
	}
	h.sessions.sessions[s.ID] = s
	return s
}

func (h *harness) job(id uuid.UUID) *entity.SyncJob {
	return h.jobs.byID(id)
}

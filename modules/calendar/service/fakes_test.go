package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"coach-sync-api/core/utils"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/repository"
	sessionEntity "coach-sync-api/modules/session/entity"

	"github.com/google/uuid"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeJobs struct {
	clock *clock
	jobs  []*entity.SyncJob
}

func (f *fakeJobs) byID(id uuid.UUID) *entity.SyncJob {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func sameSession(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeJobs) FindActive(_ context.Context, connectionID uuid.UUID, sessionID *uuid.UUID, op entity.SyncOperation) (*uuid.UUID, error) {
	for _, j := range f.jobs {
		if j.ConnectionID == connectionID && sameSession(j.SessionID, sessionID) && j.Operation == op &&
			(j.Status == entity.JobPending || j.Status == entity.JobProcessing) {
			id := j.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) Insert(_ context.Context, job *entity.SyncJob) (uuid.UUID, error) {
	j := *job
	j.ID = uuid.New()
	j.Status = entity.JobPending
	j.CreatedAt = f.clock.Now().Add(time.Duration(len(f.jobs)) * time.Microsecond)
	f.jobs = append(f.jobs, &j)
	return j.ID, nil
}

func (f *fakeJobs) ClaimNext(context.Context) (*entity.SyncJob, error) {
	var eligible []*entity.SyncJob
	for _, j := range f.jobs {
		if j.Status == entity.JobPending && !j.ScheduledFor.After(f.clock.Now()) {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.SliceStable(eligible, func(a, b int) bool {
		if eligible[a].Priority != eligible[b].Priority {
			return eligible[a].Priority < eligible[b].Priority
		}
		return eligible[a].ScheduledFor.Before(eligible[b].ScheduledFor)
	})
	j := eligible[0]
	j.Status = entity.JobProcessing
	now := f.clock.Now()
	j.StartedAt = &now
	claimed := *j
	return &claimed, nil
}

func (f *fakeJobs) Complete(_ context.Context, id uuid.UUID) error {
	j := f.byID(id)
	j.Status = entity.JobCompleted
	j.ErrorMessage = nil
	return nil
}

func (f *fakeJobs) ScheduleRetry(_ context.Context, id uuid.UUID, attempts int, runAt time.Time, errMsg string) error {
	j := f.byID(id)
	j.Status = entity.JobPending
	j.Attempts = attempts
	j.ScheduledFor = runAt
	j.ErrorMessage = &errMsg
	j.StartedAt = nil
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, id uuid.UUID, attempts int, errMsg string) error {
	j := f.byID(id)
	j.Status = entity.JobFailed
	j.Attempts = attempts
	j.ErrorMessage = &errMsg
	return nil
}

func (f *fakeJobs) RequeueStale(_ context.Context, startedBefore time.Time) (int64, error) {
	var n int64
	for _, j := range f.jobs {
		if j.Status == entity.JobProcessing && j.StartedAt != nil && j.StartedAt.Before(startedBefore) {
			j.Status = entity.JobPending
			j.StartedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeJobs) FailOpenForConnection(_ context.Context, connectionID uuid.UUID, errMsg string) (int64, error) {
	var n int64
	for _, j := range f.jobs {
		if j.ConnectionID == connectionID && (j.Status == entity.JobPending || j.Status == entity.JobProcessing) {
			j.Status = entity.JobFailed
			j.ErrorMessage = &errMsg
			n++
		}
	}
	return n, nil
}

func (f *fakeJobs) ListRetriedWithSession(_ context.Context, minAttempts int) ([]entity.SyncJob, error) {
	var out []entity.SyncJob
	for _, j := range f.jobs {
		if j.SessionID != nil && j.Status != entity.JobCompleted && j.Attempts >= minAttempts {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeConns struct {
	conns   map[uuid.UUID]*entity.CalendarConnection
	results []string
}

func newFakeConns(conns ...*entity.CalendarConnection) *fakeConns {
	f := &fakeConns{conns: make(map[uuid.UUID]*entity.CalendarConnection)}
	for _, c := range conns {
		f.conns[c.ID] = c
	}
	return f
}

func (f *fakeConns) Upsert(_ context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	for _, c := range f.conns {
		if c.CoachID == conn.CoachID && c.Provider == conn.Provider {
			c.AccessToken = conn.AccessToken
			if conn.RefreshToken != nil {
				c.RefreshToken = conn.RefreshToken
			}
			c.IsActive = true
			return c, nil
		}
	}
	saved := *conn
	saved.ID = uuid.New()
	saved.IsActive = true
	saved.SyncEnabled = true
	saved.AutoCreateEvents = true
	saved.AutoUpdateEvents = true
	f.conns[saved.ID] = &saved
	return &saved, nil
}

func (f *fakeConns) GetByID(_ context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	c, ok := f.conns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConns) ListByCoach(_ context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error) {
	var out []entity.CalendarConnection
	for _, c := range f.conns {
		if c.CoachID == coachID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConns) ListSyncableByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error) {
	all, _ := f.ListByCoach(ctx, coachID)
	var out []entity.CalendarConnection
	for _, c := range all {
		if c.Syncable() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConns) UpdateTokens(_ context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	c := f.conns[id]
	c.AccessToken = accessToken
	if refreshToken != nil {
		c.RefreshToken = refreshToken
	}
	c.TokenExpiresAt = expiresAt
	return nil
}

func (f *fakeConns) UpdateCalendarInfo(_ context.Context, id uuid.UUID, calendarID, calendarName, timezone string) error {
	c := f.conns[id]
	c.CalendarID, c.CalendarName, c.CalendarTimezone = &calendarID, &calendarName, &timezone
	return nil
}

func (f *fakeConns) UpdateSettings(_ context.Context, id uuid.UUID, s repository.ConnectionSettings) error {
	c := f.conns[id]
	c.SyncEnabled = s.SyncEnabled
	c.AutoCreateEvents = s.AutoCreateEvents
	c.AutoUpdateEvents = s.AutoUpdateEvents
	c.EventTitleTemplate = s.EventTitleTemplate
	c.EventDescriptionTemplate = s.EventDescriptionTemplate
	c.IncludeClientDetails = s.IncludeClientDetails
	return nil
}

func (f *fakeConns) Deactivate(_ context.Context, id uuid.UUID, reason string) error {
	c := f.conns[id]
	c.IsActive = false
	c.LastSyncError = &reason
	return nil
}

func (f *fakeConns) RecordSyncResult(_ context.Context, id uuid.UUID, status string, _ *string) error {
	f.results = append(f.results, status)
	c := f.conns[id]
	c.LastSyncStatus = &status
	return nil
}

type fakeMappings struct {
	clock    *clock
	mappings []*entity.EventMapping
}

func (f *fakeMappings) GetActive(_ context.Context, sessionID, connectionID uuid.UUID) (*entity.EventMapping, error) {
	var best *entity.EventMapping
	for _, m := range f.mappings {
		if m.SessionID == sessionID && m.ConnectionID == connectionID && m.SyncStatus == entity.MappingSynced {
			if best == nil || m.CreatedAt.Before(best.CreatedAt) {
				best = m
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeMappings) Upsert(_ context.Context, m *entity.EventMapping) (*entity.EventMapping, error) {
	for _, existing := range f.mappings {
		if existing.SessionID == m.SessionID && existing.ConnectionID == m.ConnectionID {
			id, created := existing.ID, existing.CreatedAt
			*existing = *m
			existing.ID, existing.CreatedAt = id, created
			existing.SyncStatus = entity.MappingSynced
			cp := *existing
			return &cp, nil
		}
	}
	saved := *m
	saved.ID = uuid.New()
	saved.SyncStatus = entity.MappingSynced
	saved.CreatedAt = f.clock.Now()
	f.mappings = append(f.mappings, &saved)
	cp := saved
	return &cp, nil
}

func (f *fakeMappings) find(id uuid.UUID) *entity.EventMapping {
	for _, m := range f.mappings {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (f *fakeMappings) UpdateSnapshot(_ context.Context, m *entity.EventMapping) error {
	existing := f.find(m.ID)
	if existing == nil {
		return errors.New("mapping not found")
	}
	existing.SyncedTitle = m.SyncedTitle
	existing.SyncedStart = m.SyncedStart
	existing.SyncedEnd = m.SyncedEnd
	return nil
}

func (f *fakeMappings) MarkDeleted(_ context.Context, id uuid.UUID) error {
	f.find(id).SyncStatus = entity.MappingDeleted
	return nil
}

func (f *fakeMappings) Delete(_ context.Context, id uuid.UUID) error {
	for i, m := range f.mappings {
		if m.ID == id {
			f.mappings = append(f.mappings[:i], f.mappings[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeMappings) ListBySession(_ context.Context, sessionID uuid.UUID) ([]entity.EventMapping, error) {
	var out []entity.EventMapping
	for _, m := range f.mappings {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMappings) ListByCoach(_ context.Context, _ uuid.UUID) ([]entity.EventMapping, error) {
	var out []entity.EventMapping
	for _, m := range f.mappings {
		out = append(out, *m)
	}
	return out, nil
}

type fakeSessions struct {
	sessions map[uuid.UUID]*sessionEntity.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*sessionEntity.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.sessions[id]
	return ok, nil
}

func (f *fakeSessions) GetFutureByCoach(_ context.Context, coachID uuid.UUID, after time.Time) ([]sessionEntity.Session, error) {
	var out []sessionEntity.Session
	for _, s := range f.sessions {
		if s.CoachID == coachID && s.StartTime.After(after) && s.IsActive() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type fakeStates struct {
	claims *utils.OAuthState
}

func (f *fakeStates) Consume(context.Context, string) (*utils.OAuthState, error) {
	if f.claims == nil {
		return nil, provider.ErrInvalidState
	}
	claims := f.claims
	f.claims = nil
	return claims, nil
}

type fakeReminders struct {
	scheduled []uuid.UUID
}

func (f *fakeReminders) ScheduleSessionReminders(_ context.Context, sessionID uuid.UUID) error {
	f.scheduled = append(f.scheduled, sessionID)
	return nil
}

// fakeProvider keeps an in-memory calendar keyed by event id.
type fakeProvider struct {
	events    map[string]*provider.Event
	created   int
	deleted   []string
	tokens    *provider.TokenResult
	createErr error
	updateErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(map[string]*provider.Event)}
}

func (p *fakeProvider) Name() string { return entity.ProviderGoogle }

func (p *fakeProvider) GetAuthURL(_ context.Context, ownerID uuid.UUID) (string, error) {
	return "https://accounts.example.com/auth?state=" + ownerID.String(), nil
}

func (p *fakeProvider) ExchangeCodeForTokens(_ context.Context, code string) (*provider.TokenResult, error) {
	if p.tokens != nil && code == "valid-code" {
		return p.tokens, nil
	}
	return nil, fmt.Errorf("%w: unexpected code %s", provider.ErrOAuthExchange, code)
}

func (p *fakeProvider) GetPrimaryCalendar(context.Context, uuid.UUID, *provider.Credentials) (*provider.Calendar, error) {
	return &provider.Calendar{ID: "primary", Name: "Work", TimeZone: "UTC"}, nil
}

func (p *fakeProvider) CreateEvent(_ context.Context, _ uuid.UUID, _ string, ev *provider.Event) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	p.created++
	id := fmt.Sprintf("evt-%d", p.created)
	cp := *ev
	p.events[id] = &cp
	return id, nil
}

func (p *fakeProvider) UpdateEvent(_ context.Context, _ uuid.UUID, _, eventID string, ev *provider.Event) (bool, error) {
	if p.updateErr != nil {
		return false, p.updateErr
	}
	if _, ok := p.events[eventID]; !ok {
		return false, provider.ErrNotFound
	}
	cp := *ev
	p.events[eventID] = &cp
	return true, nil
}

func (p *fakeProvider) DeleteEvent(_ context.Context, _ uuid.UUID, _, eventID string) (bool, error) {
	p.deleted = append(p.deleted, eventID)
	delete(p.events, eventID)
	return true, nil
}

func (p *fakeProvider) GetEvents(context.Context, uuid.UUID, string, time.Time, time.Time) ([]provider.ExternalEvent, error) {
	var out []provider.ExternalEvent
	for id, ev := range p.events {
		out = append(out, provider.ExternalEvent{ID: id, Title: ev.Title})
	}
	return out, nil
}

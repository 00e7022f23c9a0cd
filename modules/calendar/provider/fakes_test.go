package provider

import (
	"context"
	"sync"
	"time"

	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu          sync.Mutex
	conns       map[uuid.UUID]*entity.CalendarConnection
	deactivated map[uuid.UUID]string
	updated     []string
}

func newFakeStore(conns ...*entity.CalendarConnection) *fakeStore {
	s := &fakeStore{conns: map[uuid.UUID]*entity.CalendarConnection{}, deactivated: map[uuid.UUID]string{}}
	for _, c := range conns {
		s.conns[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) UpdateTokens(_ context.Context, id uuid.UUID, access string, refresh *string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, access)
	if c, ok := s.conns[id]; ok {
		c.AccessToken = access
		c.TokenExpiresAt = expiresAt
	}
	return nil
}

func (s *fakeStore) Deactivate(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated[id] = reason
	if c, ok := s.conns[id]; ok {
		c.IsActive = false
	}
	return nil
}

type staticState struct{}

func (staticState) Issue(_ context.Context, ownerID uuid.UUID, provider string) (string, error) {
	return provider + ":" + ownerID.String(), nil
}

func activeConnection(provider string, expiresIn time.Duration) *entity.CalendarConnection {
	conn := &entity.CalendarConnection{
		Provider:     provider,
		AccessToken:  "stored-access",
		RefreshToken: strPtr("stored-refresh"),
		IsActive:     true,
		SyncEnabled:  true,
	}
	conn.ID = uuid.New()
	exp := time.Now().Add(expiresIn)
	conn.TokenExpiresAt = &exp
	return conn
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
)

var (
	// ErrOAuthExchange means the provider rejected an authorization code.
	ErrOAuthExchange = errors.New("oauth code exchange rejected")
	// ErrConnectionUnusable means the connection is inactive or its credentials cannot be refreshed.
	ErrConnectionUnusable = errors.New("calendar connection unusable")
	// ErrNotFound means the remote event does not exist.
	ErrNotFound = errors.New("calendar event not found")
	// ErrUnsupportedProvider is returned by the registry for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported calendar provider")
)

// TokenResult is the outcome of a successful code exchange.
type TokenResult struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	UserEmail    *string
}

// Credentials are used instead of stored ones when a connection is being created.
type Credentials struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

type Calendar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
}

// Event is a provider-neutral event. Start and End are wall-clock times in TimeZone.
type Event struct {
	Title       string
	Description string
	Location    string
	Start       string
	End         string
	TimeZone    string
}

// ExternalEvent is an event read back from a provider.
type ExternalEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
	Status   string    `json:"status,omitempty"`
}

// CalendarProvider is implemented once per external calendar provider.
//
// Methods that act on a stored connection refresh an expiring access token first.
// When the refresh fails the connection is deactivated and ErrConnectionUnusable
// is returned; retrying is left to the caller.
type CalendarProvider interface {
	Name() string
	GetAuthURL(ctx context.Context, ownerID uuid.UUID) (string, error)
	ExchangeCodeForTokens(ctx context.Context, code string) (*TokenResult, error)
	// GetPrimaryCalendar returns a nil calendar with a non-nil error when the calendar cannot be read.
	GetPrimaryCalendar(ctx context.Context, connectionID uuid.UUID, creds *Credentials) (*Calendar, error)
	CreateEvent(ctx context.Context, connectionID uuid.UUID, calendarID string, event *Event) (string, error)
	// UpdateEvent returns ErrNotFound when the remote event is gone.
	UpdateEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string, event *Event) (bool, error)
	// DeleteEvent treats an already-absent event as success.
	DeleteEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string) (bool, error)
	GetEvents(ctx context.Context, connectionID uuid.UUID, calendarID string, start, end time.Time) ([]ExternalEvent, error)
}

// Registry resolves the adapter for a connection's provider.
type Registry struct {
	providers map[string]CalendarProvider
}

func NewRegistry(providers ...CalendarProvider) *Registry {
	r := &Registry{providers: make(map[string]CalendarProvider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (CalendarProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return p, nil
}

func (r *Registry) ForConnection(conn *entity.CalendarConnection) (CalendarProvider, error) {
	return r.Get(conn.Provider)
}

func IsSupported(name string) bool {
	return name == entity.ProviderGoogle || name == entity.ProviderOutlook
}

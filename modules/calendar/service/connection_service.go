package service

import (
	"context"
	"errors"
	"strings"
	"time"

	appErrors "coach-sync-api/core/errors"
	"coach-sync-api/core/logger"
	"coach-sync-api/core/utils"
	"coach-sync-api/modules/calendar/dto"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/repository"

	"github.com/google/uuid"
)

// StateVerifier redeems the state returned on the OAuth callback.
type StateVerifier interface {
	Consume(ctx context.Context, state string) (*utils.OAuthState, error)
}

const defaultTitleTemplate = "Coaching Session"

// ConnectionService owns the OAuth linking flow and connection settings.
type ConnectionService struct {
	conns     repository.ConnectionRepository
	jobs      repository.SyncJobRepository
	providers *provider.Registry
	states    StateVerifier
	queue     *SyncQueueService
}

func NewConnectionService(
	conns repository.ConnectionRepository,
	jobs repository.SyncJobRepository,
	providers *provider.Registry,
	states StateVerifier,
	queue *SyncQueueService,
) *ConnectionService {
	return &ConnectionService{conns: conns, jobs: jobs, providers: providers, states: states, queue: queue}
}

func (s *ConnectionService) GetAuthURL(ctx context.Context, ownerID uuid.UUID, providerName string) (string, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", appErrors.NewAppError(appErrors.ErrInvalidInput, "Unsupported calendar provider", err)
	}
	url, err := p.GetAuthURL(ctx, ownerID)
	if err != nil {
		return "", appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to build authorization URL", err)
	}
	return url, nil
}

// HandleCallback completes the OAuth flow: it verifies state, exchanges the code,
// reads the primary calendar, stores the connection and queues a full sync.
func (s *ConnectionService) HandleCallback(ctx context.Context, providerName, code, state string) (*entity.CalendarConnection, error) {
	claims, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrUnauthorized, "Invalid or expired authorization state", err)
	}
	if claims.Provider != providerName {
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "Authorization state does not match provider", nil)
	}

	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "Unsupported calendar provider", err)
	}

	tokens, err := p.ExchangeCodeForTokens(ctx, code)
	if err != nil {
		if errors.Is(err, provider.ErrOAuthExchange) {
			return nil, appErrors.NewAppError(appErrors.ErrUnauthorized, "Calendar provider rejected the authorization code", err)
		}
		return nil, appErrors.NewAppError(appErrors.ErrProviderUnavailable, "Failed to exchange authorization code", err)
	}

	conn := &entity.CalendarConnection{
		CoachID:            claims.OwnerID,
		Provider:           providerName,
		AccessToken:        tokens.AccessToken,
		RefreshToken:       tokens.RefreshToken,
		TokenExpiresAt:     tokens.ExpiresAt,
		CalendarEmail:      tokens.UserEmail,
		EventTitleTemplate: defaultTitleTemplate,
	}

	cal, err := p.GetPrimaryCalendar(ctx, uuid.Nil, &provider.Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil || cal == nil {
		logger.Warn("ConnectionService:Callback:PrimaryCalendarUnavailable", "provider", providerName, "coach_id", claims.OwnerID, "error", err)
	} else {
		conn.CalendarID = &cal.ID
		conn.CalendarName = &cal.Name
		if cal.TimeZone != "" {
			conn.CalendarTimezone = &cal.TimeZone
		}
		if conn.CalendarEmail == nil && strings.Contains(cal.ID, "@") {
			conn.CalendarEmail = &cal.ID
		}
	}

	saved, err := s.conns.Upsert(ctx, conn)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to save calendar connection", err)
	}
	logger.Info("ConnectionService:Callback:Connected", "connection_id", saved.ID, "coach_id", saved.CoachID, "provider", providerName)

	if _, err := s.queue.QueueSync(ctx, saved.ID, entity.OperationFullSync, nil, 0); err != nil {
		logger.Error("ConnectionService:Callback:QueueFullSyncError", "connection_id", saved.ID, "error", err)
	}
	return saved, nil
}

func (s *ConnectionService) ListConnections(ctx context.Context, coachID uuid.UUID) ([]dto.ConnectionResponse, error) {
	conns, err := s.conns.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to get connections", err)
	}
	res := make([]dto.ConnectionResponse, 0, len(conns))
	for i := range conns {
		res = append(res, dto.ToConnectionResponse(&conns[i]))
	}
	return res, nil
}

// owned loads a connection and checks it belongs to the coach.
func (s *ConnectionService) owned(ctx context.Context, coachID, connectionID uuid.UUID) (*entity.CalendarConnection, error) {
	conn, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to load connection", err)
	}
	if conn == nil || conn.CoachID != coachID {
		return nil, appErrors.NewAppError(appErrors.ErrNotFound, "Calendar connection not found", nil)
	}
	return conn, nil
}

func (s *ConnectionService) UpdateSettings(ctx context.Context, coachID, connectionID uuid.UUID, req *dto.UpdateSettingsRequest) (*dto.ConnectionResponse, error) {
	conn, err := s.owned(ctx, coachID, connectionID)
	if err != nil {
		return nil, err
	}

	settings := repository.ConnectionSettings{
		SyncEnabled:              conn.SyncEnabled,
		AutoCreateEvents:         conn.AutoCreateEvents,
		AutoUpdateEvents:         conn.AutoUpdateEvents,
		EventTitleTemplate:       conn.EventTitleTemplate,
		EventDescriptionTemplate: conn.EventDescriptionTemplate,
		IncludeClientDetails:     conn.IncludeClientDetails,
	}
	if req.SyncEnabled != nil {
		settings.SyncEnabled = *req.SyncEnabled
	}
	if req.AutoCreateEvents != nil {
		settings.AutoCreateEvents = *req.AutoCreateEvents
	}
	if req.AutoUpdateEvents != nil {
		settings.AutoUpdateEvents = *req.AutoUpdateEvents
	}
	if req.EventTitleTemplate != nil {
		title := strings.TrimSpace(*req.EventTitleTemplate)
		if title == "" {
			return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "event_title_template cannot be empty", nil)
		}
		settings.EventTitleTemplate = title
	}
	if req.EventDescriptionTemplate != nil {
		settings.EventDescriptionTemplate = req.EventDescriptionTemplate
	}
	if req.IncludeClientDetails != nil {
		settings.IncludeClientDetails = *req.IncludeClientDetails
	}

	if err := s.conns.UpdateSettings(ctx, conn.ID, settings); err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to update settings", err)
	}

	conn.SyncEnabled = settings.SyncEnabled
	conn.AutoCreateEvents = settings.AutoCreateEvents
	conn.AutoUpdateEvents = settings.AutoUpdateEvents
	conn.EventTitleTemplate = settings.EventTitleTemplate
	conn.EventDescriptionTemplate = settings.EventDescriptionTemplate
	conn.IncludeClientDetails = settings.IncludeClientDetails
	res := dto.ToConnectionResponse(conn)
	return &res, nil
}

// Disconnect deactivates the connection and fails its open jobs.
func (s *ConnectionService) Disconnect(ctx context.Context, coachID, connectionID uuid.UUID) error {
	conn, err := s.owned(ctx, coachID, connectionID)
	if err != nil {
		return err
	}
	if err := s.conns.Deactivate(ctx, conn.ID, "Disconnected by owner"); err != nil {
		return appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to disconnect", err)
	}
	n, err := s.jobs.FailOpenForConnection(ctx, conn.ID, "connection disconnected")
	if err != nil {
		logger.Error("ConnectionService:Disconnect:FailJobsError", "connection_id", conn.ID, "error", err)
	}
	logger.Info("ConnectionService:Disconnect:Done", "connection_id", conn.ID, "failed_jobs", n)
	return nil
}

func (s *ConnectionService) TriggerFullSync(ctx context.Context, coachID, connectionID uuid.UUID) (*uuid.UUID, error) {
	conn, err := s.owned(ctx, coachID, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Syncable() {
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "Calendar connection is not active", nil)
	}
	id, err := s.queue.QueueSync(ctx, conn.ID, entity.OperationFullSync, nil, 0)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInternalServer, "Failed to queue full sync", err)
	}
	return id, nil
}

// GetEvents reads events straight from the provider, for diagnostics.
func (s *ConnectionService) GetEvents(ctx context.Context, coachID, connectionID uuid.UUID, start, end time.Time) ([]provider.ExternalEvent, error) {
	conn, err := s.owned(ctx, coachID, connectionID)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "end_time must be after start_time", nil)
	}
	p, err := s.providers.ForConnection(conn)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrInvalidInput, "Unsupported calendar provider", err)
	}
	events, err := p.GetEvents(ctx, conn.ID, conn.TargetCalendarID(), start, end)
	if err != nil {
		if errors.Is(err, provider.ErrConnectionUnusable) {
			return nil, appErrors.NewAppError(appErrors.ErrForbidden, "Calendar connection needs to be reconnected", err)
		}
		return nil, appErrors.NewAppError(appErrors.ErrProviderUnavailable, "Failed to read calendar events", err)
	}
	return events, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/core/utils"
	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
)

// ConnectionSettings are the owner-editable flags of a connection.
type ConnectionSettings struct {
	SyncEnabled              bool
	AutoCreateEvents         bool
	AutoUpdateEvents         bool
	EventTitleTemplate       string
	EventDescriptionTemplate *string
	IncludeClientDetails     bool
}

type ConnectionRepository interface {
	Upsert(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	ListByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error)
	ListSyncableByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error
	UpdateCalendarInfo(ctx context.Context, id uuid.UUID, calendarID, calendarName, timezone string) error
	UpdateSettings(ctx context.Context, id uuid.UUID, settings ConnectionSettings) error
	Deactivate(ctx context.Context, id uuid.UUID, reason string) error
	RecordSyncResult(ctx context.Context, id uuid.UUID, status string, syncErr *string) error
}

type connectionRepository struct {
	db     database.IDatabase
	cipher *utils.TokenCipher
}

// NewConnectionRepository seals tokens with cipher when it is non-nil.
func NewConnectionRepository(db database.IDatabase, cipher *utils.TokenCipher) ConnectionRepository {
	return &connectionRepository{db: db, cipher: cipher}
}

const connectionColumns = `
	id, coach_id, provider, access_token, refresh_token, token_expires_at,
	calendar_email, calendar_id, calendar_name, calendar_timezone,
	is_active, sync_enabled, auto_create_events, auto_update_events,
	event_title_template, event_description_template, include_client_details,
	last_sync_at, last_sync_status, last_sync_error, created_at, updated_at
`

func (r *connectionRepository) seal(conn *entity.CalendarConnection) (string, *string, error) {
	access, err := r.cipher.Seal(conn.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("seal access token: %w", err)
	}
	if conn.RefreshToken == nil {
		return access, nil, nil
	}
	refresh, err := r.cipher.Seal(*conn.RefreshToken)
	if err != nil {
		return "", nil, fmt.Errorf("seal refresh token: %w", err)
	}
	return access, &refresh, nil
}

func (r *connectionRepository) open(conn *entity.CalendarConnection) error {
	access, err := r.cipher.Open(conn.AccessToken)
	if err != nil {
		return err
	}
	conn.AccessToken = access
	if conn.RefreshToken != nil {
		refresh, err := r.cipher.Open(*conn.RefreshToken)
		if err != nil {
			return err
		}
		conn.RefreshToken = &refresh
	}
	return nil
}

// Upsert stores the credentials of a freshly authorised connection. Re-linking the same
// provider reactivates the existing row; a nil refresh token keeps the stored one.
func (r *connectionRepository) Upsert(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	access, refresh, err := r.seal(conn)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO calendar_connections (
			coach_id, provider, access_token, refresh_token, token_expires_at,
			calendar_email, calendar_id, calendar_name, calendar_timezone,
			is_active, sync_enabled, auto_create_events, auto_update_events,
			event_title_template, include_client_details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, true, true, true, $10, $11)
		ON CONFLICT (coach_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, calendar_connections.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			calendar_email = COALESCE(EXCLUDED.calendar_email, calendar_connections.calendar_email),
			calendar_id = COALESCE(EXCLUDED.calendar_id, calendar_connections.calendar_id),
			calendar_name = COALESCE(EXCLUDED.calendar_name, calendar_connections.calendar_name),
			calendar_timezone = COALESCE(EXCLUDED.calendar_timezone, calendar_connections.calendar_timezone),
			is_active = true,
			last_sync_error = NULL,
			updated_at = NOW()
		RETURNING ` + connectionColumns

	var saved entity.CalendarConnection
	err = r.db.GetContext(ctx, &saved, query,
		conn.CoachID, conn.Provider, access, refresh, conn.TokenExpiresAt,
		conn.CalendarEmail, conn.CalendarID, conn.CalendarName, conn.CalendarTimezone,
		conn.EventTitleTemplate, conn.IncludeClientDetails,
	)
	if err != nil {
		logger.Error("ConnectionRepository:Upsert:Error", "coach_id", conn.CoachID, "provider", conn.Provider, "error", err)
		return nil, err
	}
	if err := r.open(&saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetByID returns nil, nil when the connection does not exist.
func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	var conn entity.CalendarConnection
	err := r.db.GetContext(ctx, &conn, `SELECT `+connectionColumns+` FROM calendar_connections WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.open(&conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) list(ctx context.Context, query string, args ...any) ([]entity.CalendarConnection, error) {
	var conns []entity.CalendarConnection
	if err := r.db.SelectContext(ctx, &conns, query, args...); err != nil {
		return nil, err
	}
	for i := range conns {
		if err := r.open(&conns[i]); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

func (r *connectionRepository) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error) {
	return r.list(ctx, `
		SELECT `+connectionColumns+`
		FROM calendar_connections
		WHERE coach_id = $1
		ORDER BY created_at DESC
	`, coachID)
}

func (r *connectionRepository) ListSyncableByCoach(ctx context.Context, coachID uuid.UUID) ([]entity.CalendarConnection, error) {
	return r.list(ctx, `
		SELECT `+connectionColumns+`
		FROM calendar_connections
		WHERE coach_id = $1 AND is_active = true AND sync_enabled = true
		ORDER BY created_at ASC
	`, coachID)
}

func (r *connectionRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	sealed, refresh, err := r.seal(&entity.CalendarConnection{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	query := `
		UPDATE calendar_connections
		SET access_token = $1,
			refresh_token = COALESCE($2, refresh_token),
			token_expires_at = $3,
			updated_at = NOW()
		WHERE id = $4
	`
	return r.db.ExecContext(ctx, query, sealed, refresh, expiresAt, id)
}

func (r *connectionRepository) UpdateCalendarInfo(ctx context.Context, id uuid.UUID, calendarID, calendarName, timezone string) error {
	query := `
		UPDATE calendar_connections
		SET calendar_id = $1, calendar_name = $2, calendar_timezone = $3, updated_at = NOW()
		WHERE id = $4
	`
	return r.db.ExecContext(ctx, query, calendarID, calendarName, timezone, id)
}

func (r *connectionRepository) UpdateSettings(ctx context.Context, id uuid.UUID, s ConnectionSettings) error {
	query := `
		UPDATE calendar_connections
		SET sync_enabled = $1,
			auto_create_events = $2,
			auto_update_events = $3,
			event_title_template = $4,
			event_description_template = $5,
			include_client_details = $6,
			updated_at = NOW()
		WHERE id = $7
	`
	return r.db.ExecContext(ctx, query,
		s.SyncEnabled, s.AutoCreateEvents, s.AutoUpdateEvents,
		s.EventTitleTemplate, s.EventDescriptionTemplate, s.IncludeClientDetails, id,
	)
}

// Deactivate marks the connection unusable. Rows are never deleted.
func (r *connectionRepository) Deactivate(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE calendar_connections
		SET is_active = false,
			last_sync_status = 'failed',
			last_sync_error = $1,
			updated_at = NOW()
		WHERE id = $2
	`
	return r.db.ExecContext(ctx, query, reason, id)
}

func (r *connectionRepository) RecordSyncResult(ctx context.Context, id uuid.UUID, status string, syncErr *string) error {
	query := `
		UPDATE calendar_connections
		SET last_sync_at = NOW(), last_sync_status = $1, last_sync_error = $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.db.ExecContext(ctx, query, status, syncErr, id)
}

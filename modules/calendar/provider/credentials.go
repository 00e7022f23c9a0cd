package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// refreshSkew refreshes tokens slightly before they expire.
const refreshSkew = 5 * time.Minute

// ConnectionStore is the part of the connection repository the adapters need.
type ConnectionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID, reason string) error
}

// StateIssuer produces the opaque state value for a consent URL.
type StateIssuer interface {
	Issue(ctx context.Context, ownerID uuid.UUID, provider string) (string, error)
}

// credentials resolves an authorised HTTP client for a connection, refreshing
// stored tokens when needed. Shared by both adapters.
type credentials struct {
	provider   string
	oauth      *oauth2.Config
	store      ConnectionStore
	baseClient *http.Client
	now        func() time.Time
}

func (c *credentials) context(ctx context.Context) context.Context {
	if c.baseClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.baseClient)
	}
	return ctx
}

func tokenFromCredentials(creds *Credentials) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}
	if creds.RefreshToken != nil {
		tok.RefreshToken = *creds.RefreshToken
	}
	if creds.ExpiresAt != nil {
		tok.Expiry = *creds.ExpiresAt
	}
	return tok
}

// client returns an HTTP client for the given credentials, or for the stored
// credentials of connectionID when creds is nil.
func (c *credentials) client(ctx context.Context, connectionID uuid.UUID, creds *Credentials) (*http.Client, error) {
	if creds != nil {
		return c.oauth.Client(c.context(ctx), tokenFromCredentials(creds)), nil
	}

	tok, err := c.validToken(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(c.context(ctx), oauth2.StaticTokenSource(tok)), nil
}

func (c *credentials) validToken(ctx context.Context, connectionID uuid.UUID) (*oauth2.Token, error) {
	conn, err := c.store.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return nil, fmt.Errorf("%w: connection %s is not active", ErrConnectionUnusable, connectionID)
	}

	tok := tokenFromCredentials(&Credentials{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		ExpiresAt:    conn.TokenExpiresAt,
	})
	if conn.TokenExpiresAt == nil || c.now().Before(conn.TokenExpiresAt.Add(-refreshSkew)) {
		return tok, nil
	}

	logger.Info("CalendarProvider:RefreshToken:Start", "provider", c.provider, "connection_id", connectionID)

	if tok.RefreshToken == "" {
		return nil, c.deactivate(ctx, connectionID, "Access token expired and no refresh token is stored. Please reconnect your calendar.")
	}

	// Force a refresh; oauth2 only refreshes within its own small expiry window.
	stale := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: c.now().Add(-time.Minute)}
	fresh, err := c.oauth.TokenSource(c.context(ctx), stale).Token()
	if err != nil {
		logger.Error("CalendarProvider:RefreshToken:Error", "provider", c.provider, "connection_id", connectionID, "error", err)
		return nil, c.deactivate(ctx, connectionID, fmt.Sprintf("Failed to refresh %s access token: %v. Please reconnect your calendar.", c.provider, err))
	}

	var refresh *string
	if fresh.RefreshToken != "" && fresh.RefreshToken != tok.RefreshToken {
		refresh = &fresh.RefreshToken
	}
	var expiresAt *time.Time
	if !fresh.Expiry.IsZero() {
		expiresAt = &fresh.Expiry
	}
	if err := c.store.UpdateTokens(ctx, connectionID, fresh.AccessToken, refresh, expiresAt); err != nil {
		logger.Error("CalendarProvider:RefreshToken:SaveError", "connection_id", connectionID, "error", err)
	}

	logger.Info("CalendarProvider:RefreshToken:Success", "provider", c.provider, "connection_id", connectionID)
	return fresh, nil
}

func (c *credentials) deactivate(ctx context.Context, connectionID uuid.UUID, reason string) error {
	if err := c.store.Deactivate(ctx, connectionID, reason); err != nil {
		logger.Error("CalendarProvider:Deactivate:Error", "connection_id", connectionID, "error", err)
	}
	return fmt.Errorf("%w: %s", ErrConnectionUnusable, reason)
}

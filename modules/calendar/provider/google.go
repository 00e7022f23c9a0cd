package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleProvider struct {
	creds    *credentials
	state    StateIssuer
	endpoint string
}

// Option tweaks an adapter, mostly for tests.
type Option func(*adapterOptions)

type adapterOptions struct {
	endpoint   string
	baseClient *http.Client
	now        func() time.Time
	oauthURL   *oauth2.Endpoint
}

// WithEndpoint points the adapter at a different API base URL.
func WithEndpoint(url string) Option {
	return func(o *adapterOptions) { o.endpoint = url }
}

// WithHTTPClient sets the transport used for token and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *adapterOptions) { o.baseClient = c }
}

// WithOAuthEndpoint overrides the provider's authorization and token URLs.
func WithOAuthEndpoint(ep oauth2.Endpoint) Option {
	return func(o *adapterOptions) { o.oauthURL = &ep }
}

func WithClock(now func() time.Time) Option {
	return func(o *adapterOptions) { o.now = now }
}

func buildOptions(opts []Option) adapterOptions {
	o := adapterOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewGoogleProvider(cfg config.OAuthConfig, store ConnectionStore, state StateIssuer, opts ...Option) *GoogleProvider {
	o := buildOptions(opts)
	endpoint := google.Endpoint
	if o.oauthURL != nil {
		endpoint = *o.oauthURL
	}
	return &GoogleProvider{
		creds: &credentials{
			provider: entity.ProviderGoogle,
			oauth: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURI,
				Endpoint:     endpoint,
				Scopes:       []string{calendar.CalendarScope, "openid", "email"},
			},
			store:      store,
			baseClient: o.baseClient,
			now:        o.now,
		},
		state:    state,
		endpoint: o.endpoint,
	}
}

func (p *GoogleProvider) Name() string { return entity.ProviderGoogle }

func (p *GoogleProvider) GetAuthURL(ctx context.Context, ownerID uuid.UUID) (string, error) {
	state, err := p.state.Issue(ctx, ownerID, p.Name())
	if err != nil {
		return "", err
	}
	return p.creds.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (p *GoogleProvider) ExchangeCodeForTokens(ctx context.Context, code string) (*TokenResult, error) {
	tok, err := p.creds.oauth.Exchange(p.creds.context(ctx), code)
	if err != nil {
		logger.Error("GoogleProvider:ExchangeCode:Error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}
	return tokenResult(tok, emailFromIDToken(tok)), nil
}

func tokenResult(tok *oauth2.Token, email *string) *TokenResult {
	res := &TokenResult{AccessToken: tok.AccessToken, UserEmail: email}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		res.RefreshToken = &rt
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		res.ExpiresAt = &exp
	}
	return res
}

// emailFromIDToken reads the email claim of the id_token returned with the
// access token. The token comes straight from the token endpoint, so the
// signature is not checked here.
func emailFromIDToken(tok *oauth2.Token) *string {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil
	}
	return &email
}

func (p *GoogleProvider) service(ctx context.Context, connectionID uuid.UUID, creds *Credentials) (*calendar.Service, error) {
	client, err := p.creds.client(ctx, connectionID, creds)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func isGoogleNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

func (p *GoogleProvider) GetPrimaryCalendar(ctx context.Context, connectionID uuid.UUID, creds *Credentials) (*Calendar, error) {
	svc, err := p.service(ctx, connectionID, creds)
	if err != nil {
		return nil, err
	}
	cal, err := svc.Calendars.Get("primary").Context(ctx).Do()
	if err != nil {
		logger.Error("GoogleProvider:GetPrimaryCalendar:Error", "connection_id", connectionID, "error", err)
		return nil, fmt.Errorf("get primary calendar: %w", err)
	}
	return &Calendar{ID: cal.Id, Name: cal.Summary, TimeZone: cal.TimeZone}, nil
}

func toGoogleEvent(ev *Event) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start, TimeZone: ev.TimeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End, TimeZone: ev.TimeZone},
	}
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, connectionID uuid.UUID, calendarID string, ev *Event) (string, error) {
	svc, err := p.service(ctx, connectionID, nil)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google create event: %w", err)
	}
	return created.Id, nil
}

func (p *GoogleProvider) UpdateEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string, ev *Event) (bool, error) {
	svc, err := p.service(ctx, connectionID, nil)
	if err != nil {
		return false, err
	}
	if _, err := svc.Events.Patch(calendarID, eventID, toGoogleEvent(ev)).Context(ctx).Do(); err != nil {
		if isGoogleNotFound(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("google update event: %w", err)
	}
	return true, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string) (bool, error) {
	svc, err := p.service(ctx, connectionID, nil)
	if err != nil {
		return false, err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		if isGoogleNotFound(err) {
			logger.Info("GoogleProvider:DeleteEvent:AlreadyGone", "event_id", eventID)
			return true, nil
		}
		return false, fmt.Errorf("google delete event: %w", err)
	}
	return true, nil
}

func (p *GoogleProvider) GetEvents(ctx context.Context, connectionID uuid.UUID, calendarID string, start, end time.Time) ([]ExternalEvent, error) {
	svc, err := p.service(ctx, connectionID, nil)
	if err != nil {
		return nil, err
	}
	res, err := svc.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google list events: %w", err)
	}

	events := make([]ExternalEvent, 0, len(res.Items))
	for _, item := range res.Items {
		ev := ExternalEvent{ID: item.Id, Title: item.Summary, Location: item.Location, Status: item.Status}
		if item.Start != nil {
			ev.Start = parseGoogleTime(item.Start)
		}
		if item.End != nil {
			ev.End = parseGoogleTime(item.End)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseGoogleTime(dt *calendar.EventDateTime) time.Time {
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
		if dt.TimeZone != "" {
			if t, err := ParseWallClock(dt.DateTime, dt.TimeZone); err == nil {
				return t
			}
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

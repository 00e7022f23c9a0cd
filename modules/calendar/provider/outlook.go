package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const msGraphBaseURL = "https://graph.microsoft.com/v1.0"

type OutlookProvider struct {
	creds   *credentials
	state   StateIssuer
	baseURL string
}

func NewOutlookProvider(cfg config.OAuthConfig, store ConnectionStore, state StateIssuer, opts ...Option) *OutlookProvider {
	o := buildOptions(opts)
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	if o.oauthURL != nil {
		endpoint = *o.oauthURL
	}
	baseURL := msGraphBaseURL
	if o.endpoint != "" {
		baseURL = o.endpoint
	}
	return &OutlookProvider{
		creds: &credentials{
			provider: entity.ProviderOutlook,
			oauth: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.RedirectURI,
				Endpoint:     endpoint,
				Scopes:       []string{"offline_access", "User.Read", "Calendars.ReadWrite", "MailboxSettings.Read"},
			},
			store:      store,
			baseClient: o.baseClient,
			now:        o.now,
		},
		state:   state,
		baseURL: baseURL,
	}
}

func (p *OutlookProvider) Name() string { return entity.ProviderOutlook }

func (p *OutlookProvider) GetAuthURL(ctx context.Context, ownerID uuid.UUID) (string, error) {
	state, err := p.state.Issue(ctx, ownerID, p.Name())
	if err != nil {
		return "", err
	}
	return p.creds.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// graphError is returned for non-2xx Graph responses.
type graphError struct {
	Status int
	Body   string
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.Status, e.Body)
}

func (p *OutlookProvider) do(ctx context.Context, client *http.Client, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &graphError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isGraphNotFound(err error) bool {
	gerr, ok := err.(*graphError)
	return ok && (gerr.Status == http.StatusNotFound || gerr.Status == http.StatusGone)
}

func (p *OutlookProvider) ExchangeCodeForTokens(ctx context.Context, code string) (*TokenResult, error) {
	tok, err := p.creds.oauth.Exchange(p.creds.context(ctx), code)
	if err != nil {
		logger.Error("OutlookProvider:ExchangeCode:Error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	var email *string
	client := p.creds.oauth.Client(p.creds.context(ctx), tok)
	if err := p.do(ctx, client, http.MethodGet, "/me?$select=mail,userPrincipalName", nil, &me); err != nil {
		logger.Warn("OutlookProvider:ExchangeCode:ProfileUnavailable", "error", err)
	} else if me.Mail != "" {
		email = &me.Mail
	} else if me.UserPrincipalName != "" {
		email = &me.UserPrincipalName
	}
	return tokenResult(tok, email), nil
}

func (p *OutlookProvider) GetPrimaryCalendar(ctx context.Context, connectionID uuid.UUID, creds *Credentials) (*Calendar, error) {
	client, err := p.creds.client(ctx, connectionID, creds)
	if err != nil {
		return nil, err
	}

	var cal struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := p.do(ctx, client, http.MethodGet, "/me/calendar", nil, &cal); err != nil {
		logger.Error("OutlookProvider:GetPrimaryCalendar:Error", "connection_id", connectionID, "error", err)
		return nil, fmt.Errorf("get primary calendar: %w", err)
	}

	// Mailbox settings usually report a Windows zone name.
	var settings struct {
		TimeZone string `json:"timeZone"`
	}
	if err := p.do(ctx, client, http.MethodGet, "/me/mailboxSettings", nil, &settings); err != nil {
		logger.Warn("OutlookProvider:GetPrimaryCalendar:MailboxSettingsUnavailable", "error", err)
	}
	tz := ResolveTimeZone(settings.TimeZone)

	return &Calendar{ID: cal.ID, Name: cal.Name, TimeZone: tz}, nil
}

type outlookDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type outlookEvent struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"subject"`
	Body    *struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body,omitempty"`
	Start    outlookDateTime `json:"start"`
	End      outlookDateTime `json:"end"`
	Location *struct {
		DisplayName string `json:"displayName"`
	} `json:"location,omitempty"`
	IsCancelled bool `json:"isCancelled,omitempty"`
}

func toOutlookEvent(ev *Event) *outlookEvent {
	out := &outlookEvent{
		Subject: ev.Title,
		Start:   outlookDateTime{DateTime: ev.Start, TimeZone: ev.TimeZone},
		End:     outlookDateTime{DateTime: ev.End, TimeZone: ev.TimeZone},
	}
	out.Body = &struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	}{ContentType: "text", Content: ev.Description}
	if ev.Location != "" {
		out.Location = &struct {
			DisplayName string `json:"displayName"`
		}{DisplayName: ev.Location}
	}
	return out
}

func calendarEventsPath(calendarID string) string {
	if calendarID == "" || calendarID == "primary" {
		return "/me/calendar/events"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (p *OutlookProvider) CreateEvent(ctx context.Context, connectionID uuid.UUID, calendarID string, ev *Event) (string, error) {
	client, err := p.creds.client(ctx, connectionID, nil)
	if err != nil {
		return "", err
	}
	var created outlookEvent
	if err := p.do(ctx, client, http.MethodPost, calendarEventsPath(calendarID), toOutlookEvent(ev), &created); err != nil {
		return "", fmt.Errorf("outlook create event: %w", err)
	}
	return created.ID, nil
}

func (p *OutlookProvider) UpdateEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string, ev *Event) (bool, error) {
	client, err := p.creds.client(ctx, connectionID, nil)
	if err != nil {
		return false, err
	}
	if err := p.do(ctx, client, http.MethodPatch, "/me/events/"+url.PathEscape(eventID), toOutlookEvent(ev), nil); err != nil {
		if isGraphNotFound(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("outlook update event: %w", err)
	}
	return true, nil
}

func (p *OutlookProvider) DeleteEvent(ctx context.Context, connectionID uuid.UUID, calendarID, eventID string) (bool, error) {
	client, err := p.creds.client(ctx, connectionID, nil)
	if err != nil {
		return false, err
	}
	if err := p.do(ctx, client, http.MethodDelete, "/me/events/"+url.PathEscape(eventID), nil, nil); err != nil {
		if isGraphNotFound(err) {
			logger.Info("OutlookProvider:DeleteEvent:AlreadyGone", "event_id", eventID)
			return true, nil
		}
		return false, fmt.Errorf("outlook delete event: %w", err)
	}
	return true, nil
}

func (p *OutlookProvider) GetEvents(ctx context.Context, connectionID uuid.UUID, calendarID string, start, end time.Time) ([]ExternalEvent, error) {
	client, err := p.creds.client(ctx, connectionID, nil)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(WallClockLayout))
	params.Set("endDateTime", end.UTC().Format(WallClockLayout))
	params.Set("$orderby", "start/dateTime")

	path := "/me/calendarView?" + params.Encode()
	if calendarID != "" && calendarID != "primary" {
		path = "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView?" + params.Encode()
	}

	var result struct {
		Value []outlookEvent `json:"value"`
	}
	if err := p.do(ctx, client, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("outlook list events: %w", err)
	}

	events := make([]ExternalEvent, 0, len(result.Value))
	for _, item := range result.Value {
		ev := ExternalEvent{ID: item.ID, Title: item.Subject, Status: "confirmed"}
		if item.IsCancelled {
			ev.Status = "cancelled"
		}
		if item.Location != nil {
			ev.Location = item.Location.DisplayName
		}
		ev.Start = parseOutlookTime(item.Start)
		ev.End = parseOutlookTime(item.End)
		events = append(events, ev)
	}
	return events, nil
}

// parseOutlookTime handles Graph's fractional-second wall-clock values.
func parseOutlookTime(dt outlookDateTime) time.Time {
	value := dt.DateTime
	if len(value) > len(WallClockLayout) {
		value = value[:len(WallClockLayout)]
	}
	t, err := ParseWallClock(value, ResolveTimeZone(dt.TimeZone))
	if err != nil {
		t, _ = time.Parse(WallClockLayout, value)
	}
	return t
}

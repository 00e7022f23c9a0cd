package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coach-sync-api/core/config"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newOutlookForTest(t *testing.T, handler http.Handler, store ConnectionStore) *OutlookProvider {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOutlookProvider(
		config.OAuthConfig{ClientID: "cid", ClientSecret: "secret", RedirectURI: "https://app.test/callback"},
		store,
		staticState{},
		WithEndpoint(srv.URL),
		WithOAuthEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}),
	)
}

func TestOutlookProvider_CreateEvent(t *testing.T) {
	conn := activeConnection("outlook", time.Hour)
	var sent outlookEvent
	mux := http.NewServeMux()
	mux.HandleFunc("/me/calendar/events", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer stored-access", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"AAMk-1"}`))
	})

	p := newOutlookForTest(t, mux, newFakeStore(conn))
	id, err := p.CreateEvent(context.Background(), conn.ID, "primary", &Event{
		Title: "Coaching Session", Start: "2025-07-15T13:30:00", End: "2025-07-15T14:30:00", TimeZone: "America/New_York",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAMk-1", id)
	assert.Equal(t, "2025-07-15T13:30:00", sent.Start.DateTime)
	assert.Equal(t, "America/New_York", sent.End.TimeZone)
}

func TestOutlookProvider_DeleteMissingEventIsSuccess(t *testing.T) {
	conn := activeConnection("outlook", time.Hour)
	mux := http.NewServeMux()
	mux.HandleFunc("/me/events/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	p := newOutlookForTest(t, mux, newFakeStore(conn))
	ok, err := p.DeleteEvent(context.Background(), conn.ID, "primary", "gone")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOutlookProvider_GetPrimaryCalendarMapsWindowsZone(t *testing.T) {
	conn := activeConnection("outlook", time.Hour)
	zone := "Pacific Standard Time"
	mux := http.NewServeMux()
	mux.HandleFunc("/me/calendar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cal-1","name":"Calendar"}`))
	})
	mux.HandleFunc("/me/mailboxSettings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timeZone":"` + zone + `"}`))
	})

	p := newOutlookForTest(t, mux, newFakeStore(conn))
	cal, err := p.GetPrimaryCalendar(context.Background(), conn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "cal-1", cal.ID)
	assert.Equal(t, "America/Los_Angeles", cal.TimeZone)

	zone = "Mars Standard Time"
	cal, err = p.GetPrimaryCalendar(context.Background(), conn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cal.TimeZone)
}

func TestResolveTimeZone(t *testing.T) {
	assert.Equal(t, "America/New_York", ResolveTimeZone("Eastern Standard Time"))
	assert.Equal(t, "Europe/Berlin", ResolveTimeZone("W. Europe Standard Time"))
	assert.Equal(t, "Europe/Paris", ResolveTimeZone("Europe/Paris"))
	assert.Equal(t, "UTC", ResolveTimeZone(""))
	assert.Equal(t, "UTC", ResolveTimeZone("Nowhere Standard Time"))
}

func TestParseOutlookTime_WindowsZone(t *testing.T) {
	got := parseOutlookTime(outlookDateTime{DateTime: "2025-07-15T13:30:00.0000000", TimeZone: "Eastern Standard Time"})
	assert.True(t, got.Equal(time.Date(2025, 7, 15, 17, 30, 0, 0, time.UTC)), got.String())
}

func TestOutlookProvider_ExchangeCodeReadsProfileEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"mail":"coach@contoso.com"}`))
	})

	p := newOutlookForTest(t, mux, newFakeStore())
	res, err := p.ExchangeCodeForTokens(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "at", res.AccessToken)
	require.NotNil(t, res.RefreshToken)
	assert.Equal(t, "rt", *res.RefreshToken)
	require.NotNil(t, res.UserEmail)
	assert.Equal(t, "coach@contoso.com", *res.UserEmail)
	require.NotNil(t, res.ExpiresAt)
}

package rofireddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
	"github.com/jamesprial/rofi-reddit/test_helpers"
)

const testClientName = "linux:rofi-reddit-test:0.1"

// newMockSession builds a session pointed at ms with its token cache in a
// fresh temporary directory.
func newMockSession(t *testing.T, ms *test_helpers.RedditMockServer, mutate func(*Config)) (*Session, *Config) {
	t.Helper()
	cfg := &Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		ClientName:     testClientName,
		BaseURL:        ms.URL() + "/",
		AuthURL:        ms.URL() + "/",
		TokenCachePath: filepath.Join(t.TempDir(), "rofi-reddit", "access_token"),
		RateLimit:      &RateLimitConfig{RequestsPerMinute: 60000, Burst: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}
	session, err := NewSession(cfg)
	require.NoError(t, err, "NewSession")
	return session, cfg
}

func seedCache(t *testing.T, path, token string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(token+"\n"), 0o600))
}

func TestNewSession_Validation(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantField string
	}{
		{name: "missing client id", config: &Config{ClientSecret: "s"}, wantField: "ClientID"},
		{name: "missing client secret", config: &Config{ClientID: "id"}, wantField: "ClientSecret"},
		{name: "header injection in client name", config: &Config{ClientID: "id", ClientSecret: "s", ClientName: "ua\r\nX-Evil: 1"}, wantField: "ClientName"},
		{name: "unparseable base url", config: &Config{ClientID: "id", ClientSecret: "s", BaseURL: "://bad"}, wantField: "BaseURL"},
		{name: "unparseable auth url", config: &Config{ClientID: "id", ClientSecret: "s", AuthURL: "://bad"}, wantField: "AuthURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.TokenCachePath = filepath.Join(t.TempDir(), "access_token")
			_, err := NewSession(tt.config)
			var cfgErr *pkgerrs.ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T (%v)", err, err)
			require.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestNewSession_NilConfig(t *testing.T) {
	_, err := NewSession(nil)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr), "expected ClientError, got %T", err)
	require.ErrorContains(t, err, "config cannot be nil")
}

func TestNewSession_Defaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cfg := &Config{ClientID: "id", ClientSecret: "secret"}

	session, err := NewSession(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultUserAgent, cfg.ClientName)
	require.Equal(t, DefaultBaseURL, cfg.BaseURL)
	require.Equal(t, DefaultAuthURL, cfg.AuthURL)
	require.Equal(t, 15, cfg.HotLimit)
	require.NotNil(t, cfg.HTTPClient)
	require.Equal(t, DefaultTimeout, cfg.HTTPClient.Timeout)
	require.Equal(t, "access_token", filepath.Base(cfg.TokenCachePath))
	require.False(t, session.IsConnected(), "NewSession must not connect")
	require.Nil(t, session.LastPage(), "new session must not have a page")
}

func TestGetHotListings_Ok(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("golang", "first", "second")

	session, _ := newMockSession(t, ms, nil)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessOK, access)
	require.NotNil(t, page)
	require.Equal(t, 2, page.Count)
	require.Equal(t, "first", page.Items[0].Title)
	require.Equal(t, "second", page.Items[1].Title)
	require.NotNil(t, page.Items[0].URL)
	require.Equal(t, "https://www.reddit.com/r/golang/comments/1/post_1/", *page.Items[0].URL)
	require.Same(t, page, session.LastPage(), "LastPage should be the page just returned")

	req, err := ms.GetLastRequest(test_helpers.HotPath("golang"))
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "limit=15", req.RawQuery)
	require.Equal(t, "Bearer token-1", req.Authorization)
	require.Equal(t, testClientName, req.UserAgent)

	tokenReq, err := ms.GetLastRequest(test_helpers.TokenPath)
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, tokenReq.Method)
	require.Equal(t, "grant_type=client_credentials&scope=read", tokenReq.Body)
}

func TestGetHotListings_NormalizesSubreddit(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("mysub", "post")

	session, _ := newMockSession(t, ms, nil)

	access, _, err := session.GetHotListings(context.Background(), " my sub ")
	require.NoError(t, err)
	require.Equal(t, types.AccessOK, access)
	require.Equal(t, 1, ms.ListingCalls("mysub"))
}

func TestGetHotListings_BlankSubredditMakesNoRequests(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()

	session, _ := newMockSession(t, ms, nil)

	for _, topic := range []string{"", "   ", "\t\n"} {
		access, page, err := session.GetHotListings(context.Background(), topic)
		require.NoError(t, err, "GetHotListings(%q)", topic)
		require.Equal(t, types.AccessUnknown, access, "GetHotListings(%q)", topic)
		require.Nil(t, page, "GetHotListings(%q)", topic)
	}
	require.Zero(t, ms.TotalCalls())
}

func TestGetHotListings_SingleRetryBound(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetListingHandler(func(string, string) *test_helpers.MockResponse {
		return &test_helpers.MockResponse{Status: http.StatusUnauthorized, Body: `{"message":"Unauthorized","error":401}`}
	})

	_, cfg := newMockSession(t, ms, nil)
	seedCache(t, cfg.TokenCachePath, "cached-token")
	session, err := NewSession(cfg)
	require.NoError(t, err)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessExpiredToken, access)
	require.Nil(t, page)
	require.Equal(t, 2, ms.ListingCalls("golang"), "listing requests")
	require.Equal(t, 1, ms.TokenCalls(), "re-auth requests")
}

func TestGetHotListings_AmbiguousForbiddenRetriesOnce(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetListing("golang", &test_helpers.MockResponse{Status: http.StatusForbidden, Body: "not json"})

	session, _ := newMockSession(t, ms, nil)

	access, _, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessExpiredToken, access)
	// One bootstrap token plus one re-auth.
	require.Equal(t, 2, ms.TokenCalls())
	require.Equal(t, 2, ms.ListingCalls("golang"))
}

func TestGetHotListings_ReauthenticatesAndPersists(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("golang", "fresh")
	ms.SetListingHandler(func(_ string, token string) *test_helpers.MockResponse {
		if token == "stale" {
			return &test_helpers.MockResponse{Status: http.StatusUnauthorized}
		}
		return nil
	})

	_, cfg := newMockSession(t, ms, nil)
	seedCache(t, cfg.TokenCachePath, "stale")
	session, err := NewSession(cfg)
	require.NoError(t, err)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessOK, access)
	require.Equal(t, 1, page.Count)
	require.Equal(t, "token-1", session.Token().Value)

	data, err := os.ReadFile(cfg.TokenCachePath)
	require.NoError(t, err)
	require.Equal(t, "token-1", string(data))
	require.Equal(t, 1, ms.TokenCalls())
	require.Equal(t, 2, ms.ListingCalls("golang"))
}

func TestGetHotListings_TerminalOutcomesKeepPreviousPage(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("golang", "kept")
	ms.SetListing("secret", &test_helpers.MockResponse{Status: http.StatusForbidden, Body: test_helpers.ForbiddenBody("private")})
	ms.SetListing("spicy", &test_helpers.MockResponse{Status: http.StatusForbidden, Body: test_helpers.ForbiddenBody("quarantined")})
	ms.SetListing("broken", &test_helpers.MockResponse{Status: http.StatusInternalServerError})
	ms.SetListing("busy", &test_helpers.MockResponse{Status: http.StatusTooManyRequests})

	session, _ := newMockSession(t, ms, nil)

	_, kept, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)

	tests := []struct {
		subreddit string
		want      types.SubredditAccess
	}{
		{subreddit: "secret", want: types.AccessPrivate},
		{subreddit: "spicy", want: types.AccessQuarantined},
		{subreddit: "nosuchplace", want: types.AccessDoesNotExist},
		{subreddit: "broken", want: types.AccessUnknown},
		{subreddit: "busy", want: types.AccessUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.subreddit, func(t *testing.T) {
			access, page, err := session.GetHotListings(context.Background(), tt.subreddit)
			require.NoError(t, err)
			require.Equal(t, tt.want, access)
			require.Nil(t, page)
			require.Same(t, kept, session.LastPage(), "LastPage changed on a non-ok outcome")
			require.Equal(t, 1, ms.ListingCalls(tt.subreddit), "no retry expected")
		})
	}

	require.Equal(t, 1, ms.TokenCalls())
}

func TestGetHotListings_MalformedOkBodyYieldsEmptyPage(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetListing("golang", &test_helpers.MockResponse{Status: http.StatusOK, Body: "<html>oops</html>"})

	session, _ := newMockSession(t, ms, nil)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessOK, access)
	require.NotNil(t, page)
	require.Zero(t, page.Count)
	require.NotNil(t, page.Items)
}

func TestGetHotListings_AuthFailure(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("golang", "post")
	ms.SetTokenResponse(&test_helpers.MockResponse{Status: http.StatusUnauthorized, Body: `{"message":"Unauthorized","error":401}`})

	session, cfg := newMockSession(t, ms, nil)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	require.Error(t, err)
	var authErr *pkgerrs.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	require.True(t, IsAuthFailure(err))
	require.Equal(t, types.AccessUnknown, access)
	require.Nil(t, page)
	require.Zero(t, ms.ListingCalls("golang"), "no listing request should be made without a token")
	_, statErr := os.Stat(cfg.TokenCachePath)
	require.True(t, os.IsNotExist(statErr), "nothing should be cached after a failed token fetch")

	// A later call tries again once the credentials work.
	ms.SetTokenResponse(nil)
	access, _, err = session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, types.AccessOK, access)
}

func TestGetHotListings_ReauthFailure(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetListing("golang", &test_helpers.MockResponse{Status: http.StatusUnauthorized})
	ms.SetTokenResponse(&test_helpers.MockResponse{Status: http.StatusServiceUnavailable, Body: "down"})

	_, cfg := newMockSession(t, ms, nil)
	seedCache(t, cfg.TokenCachePath, "stale")
	session, err := NewSession(cfg)
	require.NoError(t, err)

	access, page, err := session.GetHotListings(context.Background(), "golang")
	var authErr *pkgerrs.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	require.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
	require.Equal(t, "down", authErr.Body)
	require.Equal(t, types.AccessUnknown, access)
	require.Nil(t, page)
	require.Equal(t, 1, ms.ListingCalls("golang"))
}

func TestGetHotListings_TransportError(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/"
	dead.Close()

	session, _ := newMockSession(t, ms, func(cfg *Config) {
		cfg.BaseURL = deadURL
	})

	access, page, err := session.GetHotListings(context.Background(), "golang")
	var transportErr *pkgerrs.TransportError
	require.True(t, errors.As(err, &transportErr), "expected TransportError, got %T (%v)", err, err)
	require.Equal(t, types.AccessUnknown, access)
	require.Nil(t, page)
	require.Equal(t, 1, ms.TokenCalls())
}

func TestGetHotListings_CustomLimit(t *testing.T) {
	ms := test_helpers.NewRedditMockServer()
	defer ms.Close()
	ms.SetupSubreddit("golang", "post")

	session, _ := newMockSession(t, ms, func(cfg *Config) { cfg.HotLimit = 5 })

	_, _, err := session.GetHotListings(context.Background(), "golang")
	require.NoError(t, err)
	req, err := ms.GetLastRequest(test_helpers.HotPath("golang"))
	require.NoError(t, err)
	require.Equal(t, "limit=5", req.RawQuery)
}

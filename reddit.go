package rofireddit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesprial/rofi-reddit/internal"
	"github.com/jamesprial/rofi-reddit/internal/tokencache"
	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

const (
	// DefaultBaseURL is the default Reddit API base URL
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the default Reddit OAuth base URL
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent is sent when no client name is configured
	DefaultUserAgent = "rofi-reddit/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// maxFetchAttempts bounds GetHotListings to the first request plus a
	// single retry after re-authenticating.
	maxFetchAttempts = 2
)

// RateLimitConfig controls client-side throttling of listing requests.
type RateLimitConfig = internal.RateLimitConfig

// Config holds the configuration for a Session.
//
// Example:
//
//	config := &Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		ClientName:   "linux:rofi-reddit:0.1 by /u/yourusername",
//	}
type Config struct {
	// ClientID and ClientSecret of a Reddit "script" or "web" app.
	// Both are required.
	ClientID     string
	ClientSecret string

	// ClientName identifies the application to Reddit and is sent as the
	// User-Agent header on every request. Defaults to DefaultUserAgent.
	ClientName string

	// BaseURL for the Reddit OAuth API.
	// Defaults to DefaultBaseURL if not specified.
	BaseURL string

	// AuthURL for the Reddit token endpoint.
	// Defaults to DefaultAuthURL if not specified.
	AuthURL string

	// TokenCachePath is the file the access token is cached in.
	// Defaults to tokencache.DefaultPath().
	TokenCachePath string

	// HotLimit is the page size of a hot listings request. Defaults to 15.
	HotLimit int

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// RateLimit throttles outgoing listing requests. Nil uses the defaults.
	RateLimit *RateLimitConfig

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// tokenFetcher performs the client credentials grant.
type tokenFetcher interface {
	FetchToken(ctx context.Context) (types.AccessToken, error)
}

// listingsFetcher requests one page of a subreddit's hot feed.
type listingsFetcher interface {
	FetchHot(ctx context.Context, token types.AccessToken, subreddit string, limit int) (*types.APIResponse, error)
}

// Session owns the current access token and the last successfully fetched
// page. A Session is meant to serve one caller at a time; the token cache on
// disk is not coordinated across processes.
type Session struct {
	auth   tokenFetcher
	client listingsFetcher
	store  tokencache.Store
	parser *internal.Parser
	conn   *internal.ConnectionManager
	logger *slog.Logger
	limit  int

	mu       sync.Mutex
	token    types.AccessToken
	lastPage *types.ListingsPage
}

// NewSession validates config, applies defaults and wires the token cache,
// authenticator and listings client together. It performs no network I/O.
func NewSession(config *Config) (*Session, error) {
	if config == nil {
		return nil, &ClientError{Err: "config cannot be nil"}
	}

	if config.ClientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "is required"}
	}
	if config.ClientSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientSecret", Message: "is required"}
	}

	// Set defaults
	if config.ClientName == "" {
		config.ClientName = DefaultUserAgent
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = DefaultAuthURL
	}
	if config.HotLimit <= 0 {
		config.HotLimit = internal.DefaultHotLimit
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if config.TokenCachePath == "" {
		path, err := tokencache.DefaultPath()
		if err != nil {
			return nil, &pkgerrs.ConfigError{Field: "TokenCachePath", Message: "cannot determine cache directory", Err: err}
		}
		config.TokenCachePath = path
	}

	if err := internal.NewValidator().ValidateUserAgent(config.ClientName); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "ClientName", Err: err}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	auth, err := internal.NewAuthenticator(
		config.HTTPClient,
		types.AppAuth{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			ClientName:   config.ClientName,
		},
		config.ClientName,
		config.AuthURL,
		"",
	)
	if err != nil {
		return nil, err
	}

	client, err := internal.NewClient(config.HTTPClient, config.BaseURL, config.ClientName, config.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		auth:   auth,
		client: client,
		store:  tokencache.New(config.TokenCachePath, logger),
		parser: internal.NewParser(logger),
		conn:   internal.NewConnectionManager(),
		logger: logger,
		limit:  config.HotLimit,
	}, nil
}

// Connect makes sure the session holds a token, resolving it from the cache
// or the token endpoint. Only the first successful call does any work.
// GetHotListings calls it lazily, so calling it up front is optional.
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Initialize(ctx, func(ctx context.Context) error {
		token, err := s.ResolveToken(ctx)
		if err != nil {
			return err
		}
		s.setToken(token)
		return nil
	})
}

// ResolveToken returns the cached token if one exists, otherwise it fetches a
// new token and caches it.
//
// A cache that exists but cannot be read is treated as a miss. A token that
// cannot be written back is still returned; the next run simply fetches again.
func (s *Session) ResolveToken(ctx context.Context) (types.AccessToken, error) {
	if s.store.Exists() {
		token, err := s.store.Load()
		if err == nil {
			s.logger.Debug("using cached access token", "token", token.String())
			return token, nil
		}
		s.logger.Warn("token cache unreadable, fetching a new token", "error", err)
	} else {
		s.logger.Debug("no cached access token")
	}

	return s.fetchAndStore(ctx)
}

func (s *Session) fetchAndStore(ctx context.Context) (types.AccessToken, error) {
	token, err := s.auth.FetchToken(ctx)
	if err != nil {
		return types.AccessToken{}, err
	}

	if err := s.store.Save(token); err != nil {
		s.logger.Warn("failed to cache access token", "error", err)
	}

	return token, nil
}

// GetHotListings fetches the hot feed of subreddit and classifies the result.
//
// All whitespace is removed from subreddit first; if nothing is left the
// outcome is AccessUnknown and no request is made. A page is returned only
// with AccessOK. When Reddit rejects the token the session fetches a new one
// and retries exactly once; a second rejection is returned as
// AccessExpiredToken.
//
// A non-nil error means no outcome could be determined: the token endpoint
// failed or no response was received. The outcome is then AccessUnknown.
func (s *Session) GetHotListings(ctx context.Context, subreddit string) (types.SubredditAccess, *types.ListingsPage, error) {
	name := internal.NormalizeSubreddit(subreddit)
	if name == "" {
		return types.AccessUnknown, nil, nil
	}

	logger := s.logger.With("fetch_id", uuid.NewString(), "subreddit", name)

	if err := s.Connect(ctx); err != nil {
		logger.Debug("could not obtain an access token", "error", err)
		return types.AccessUnknown, nil, err
	}

	outcome := types.AccessUninitialized
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		resp, err := s.client.FetchHot(ctx, s.Token(), name, s.limit)
		if err != nil {
			return types.AccessUnknown, nil, err
		}

		outcome = internal.Classify(resp)
		logger.Debug("classified listings response", "attempt", attempt, "status", resp.StatusCode, "outcome", outcome)

		switch outcome {
		case types.AccessOK:
			page, err := s.parser.ParseListings(resp.Body)
			if err != nil {
				logger.Warn("malformed listings body, returning an empty page", "error", err)
				page = types.NewListingsPage(nil)
			}
			s.setLastPage(page)
			return outcome, page, nil

		case types.AccessExpiredToken:
			if attempt < maxFetchAttempts {
				logger.Info("access token rejected, re-authenticating")
				token, err := s.fetchAndStore(ctx)
				if err != nil {
					return types.AccessUnknown, nil, err
				}
				s.setToken(token)
				continue
			}
		}

		return outcome, nil, nil
	}

	return outcome, nil, nil
}

// LastPage returns the most recent page fetched with AccessOK, or nil.
func (s *Session) LastPage() *types.ListingsPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPage
}

// Token returns the token the session currently holds.
func (s *Session) Token() types.AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsConnected returns true once the session holds a token.
func (s *Session) IsConnected() bool {
	return s.conn.IsInitialized()
}

func (s *Session) setToken(token types.AccessToken) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) setLastPage(page *types.ListingsPage) {
	s.mu.Lock()
	s.lastPage = page
	s.mu.Unlock()
}

// ClientError represents a misuse of the session itself, as opposed to a
// failure talking to Reddit.
type ClientError struct {
	// Err contains the detailed error message describing what went wrong
	Err string
}

// Error implements the error interface for ClientError.
// It returns a formatted error message prefixed with "reddit client error: ".
func (e *ClientError) Error() string {
	return "reddit client error: " + e.Err
}

// IsAuthFailure reports whether err came from the token endpoint rejecting
// the configured credentials.
func IsAuthFailure(err error) bool {
	var authErr *pkgerrs.AuthError
	return errors.As(err, &authErr)
}

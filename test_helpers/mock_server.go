// Package test_helpers provides an httptest server that stands in for both the
// Reddit token endpoint and the OAuth listings API.
package test_helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TokenPath is the path the mock serves tokens from.
const TokenPath = "/api/v1/access_token"

// RequestEntry logs incoming requests for debugging
type RequestEntry struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	UserAgent     string
	Body          string
	Timestamp     time.Time
	ResponseCode  int
}

// MockResponse defines a mock API response
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
}

// ListingHandler decides the listing response for a subreddit given the
// bearer token presented by the client.
type ListingHandler func(subreddit, token string) *MockResponse

// RedditMockServer emulates the token and hot listing endpoints. Tokens are
// issued as "token-1", "token-2", ... unless a token response is configured.
type RedditMockServer struct {
	server *httptest.Server

	mu            sync.Mutex
	tokenResponse *MockResponse
	listings      map[string]*MockResponse
	handler       ListingHandler
	issued        int
	requestLog    []RequestEntry
	callCount     map[string]int
}

// NewRedditMockServer creates and starts a mock server. Unknown subreddits
// answer 404 until configured.
func NewRedditMockServer() *RedditMockServer {
	rms := &RedditMockServer{
		listings:  make(map[string]*MockResponse),
		callCount: make(map[string]int),
	}
	rms.server = httptest.NewServer(http.HandlerFunc(rms.serveHTTP))
	return rms
}

// URL returns the base URL of the mock server
func (rms *RedditMockServer) URL() string {
	return rms.server.URL
}

// Close shuts down the mock server
func (rms *RedditMockServer) Close() {
	rms.server.Close()
}

// SetTokenResponse overrides the token endpoint response. Pass nil to go back
// to issuing sequential tokens.
func (rms *RedditMockServer) SetTokenResponse(resp *MockResponse) {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	rms.tokenResponse = resp
}

// SetListing configures the response for a subreddit's hot feed.
func (rms *RedditMockServer) SetListing(subreddit string, resp *MockResponse) {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	rms.listings[subreddit] = resp
}

// SetListingHandler installs a handler consulted before the static listings.
// A nil result from the handler falls through to them.
func (rms *RedditMockServer) SetListingHandler(h ListingHandler) {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	rms.handler = h
}

// SetupSubreddit serves a 200 feed with one child per title.
func (rms *RedditMockServer) SetupSubreddit(name string, titles ...string) {
	rms.SetListing(name, &MockResponse{Status: http.StatusOK, Body: ListingBody(name, titles...)})
}

// TokenCalls returns how many times the token endpoint was hit.
func (rms *RedditMockServer) TokenCalls() int {
	return rms.GetCallCount(TokenPath)
}

// ListingCalls returns how many hot feed requests were made for a subreddit.
func (rms *RedditMockServer) ListingCalls(subreddit string) int {
	return rms.GetCallCount(HotPath(subreddit))
}

// TotalCalls returns the number of requests of any kind.
func (rms *RedditMockServer) TotalCalls() int {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	return len(rms.requestLog)
}

// GetCallCount returns the call count for a path
func (rms *RedditMockServer) GetCallCount(path string) int {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	return rms.callCount[path]
}

// GetRequestLog returns the request log
func (rms *RedditMockServer) GetRequestLog() []RequestEntry {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	return append([]RequestEntry{}, rms.requestLog...)
}

// GetLastRequest returns the most recent request to path.
func (rms *RedditMockServer) GetLastRequest(path string) (*RequestEntry, error) {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	for i := len(rms.requestLog) - 1; i >= 0; i-- {
		if rms.requestLog[i].Path == path {
			entry := rms.requestLog[i]
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("no requests found for path %s", path)
}

// ClearLog clears the request log and call counters.
func (rms *RedditMockServer) ClearLog() {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	rms.requestLog = rms.requestLog[:0]
	rms.callCount = make(map[string]int)
}

func (rms *RedditMockServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	var resp *MockResponse
	if r.URL.Path == TokenPath || r.URL.Path == TokenPath+"/" {
		resp = rms.tokenReply()
	} else if sub, ok := parseHotPath(r.URL.Path); ok {
		resp = rms.listingReply(sub, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	} else {
		resp = &MockResponse{Status: http.StatusNotFound, Body: `{"message":"Not Found","error":404}`}
	}

	rms.mu.Lock()
	rms.callCount[r.URL.Path]++
	rms.requestLog = append(rms.requestLog, RequestEntry{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		UserAgent:     r.Header.Get("User-Agent"),
		Body:          string(body),
		Timestamp:     time.Now(),
		ResponseCode:  resp.Status,
	})
	rms.mu.Unlock()

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

func (rms *RedditMockServer) tokenReply() *MockResponse {
	rms.mu.Lock()
	defer rms.mu.Unlock()
	if rms.tokenResponse != nil {
		return rms.tokenResponse
	}
	rms.issued++
	return &MockResponse{Status: http.StatusOK, Body: TokenBody(fmt.Sprintf("token-%d", rms.issued))}
}

func (rms *RedditMockServer) listingReply(subreddit, token string) *MockResponse {
	rms.mu.Lock()
	handler := rms.handler
	static := rms.listings[subreddit]
	rms.mu.Unlock()

	if handler != nil {
		if resp := handler(subreddit, token); resp != nil {
			return resp
		}
	}
	if static != nil {
		return static
	}
	return &MockResponse{Status: http.StatusNotFound, Body: `{"reason":"banned","message":"Not Found","error":404}`}
}

// HotPath returns the request path of a subreddit's hot feed.
func HotPath(subreddit string) string {
	return "/r/" + subreddit + "/hot/"
}

func parseHotPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/r/")
	if !ok {
		return "", false
	}
	sub, ok := strings.CutSuffix(rest, "/hot/")
	if !ok || sub == "" || strings.Contains(sub, "/") {
		return "", false
	}
	return sub, true
}

// TokenBody renders a successful token endpoint payload.
func TokenBody(token string) string {
	payload, _ := json.Marshal(map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   86400,
		"scope":        "read",
	})
	return string(payload)
}

// ListingBody renders a hot feed with one post per title.
func ListingBody(subreddit string, titles ...string) string {
	children := make([]map[string]any, 0, len(titles))
	for i, title := range titles {
		children = append(children, map[string]any{
			"kind": "t3",
			"data": map[string]any{
				"title":     title,
				"selftext":  "",
				"ups":       (i + 1) * 10,
				"permalink": fmt.Sprintf("/r/%s/comments/%d/post_%d/", subreddit, i+1, i+1),
			},
		})
	}
	payload, _ := json.Marshal(map[string]any{
		"kind": "Listing",
		"data": map[string]any{"children": children},
	})
	return string(payload)
}

// ForbiddenBody renders a 403 payload carrying a reason.
func ForbiddenBody(reason string) string {
	return fmt.Sprintf(`{"reason":%q,"message":"Forbidden","error":403}`, reason)
}

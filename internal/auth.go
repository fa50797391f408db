package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

const (
	defaultTokenEndpointPath = "api/v1/access_token"
	tokenScope               = "read"

	// maxTokenResponseBytes bounds how much of a token response is read.
	maxTokenResponseBytes = 64 << 10
)

// Authenticator exchanges client credentials for an app-only access token.
// It holds no token state; caching belongs to the caller.
type Authenticator struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	tokenURL     *url.URL
	formBody     string
}

// NewAuthenticator creates a new authenticator.
// The tokenPath parameter can be an empty string to use the default Reddit token endpoint.
func NewAuthenticator(httpClient *http.Client, auth types.AppAuth, userAgent, baseURL, tokenPath string) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if tokenPath == "" {
		tokenPath = defaultTokenEndpointPath
	}

	resolvedTokenURL, err := parsedURL.Parse(tokenPath)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "AuthURL", Message: "failed to parse token endpoint path", Err: err}
	}

	// Encode sorts keys, giving grant_type=client_credentials&scope=read.
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	return &Authenticator{
		client:       httpClient,
		clientID:     auth.ClientID,
		clientSecret: auth.ClientSecret,
		userAgent:    userAgent,
		tokenURL:     resolvedTokenURL,
		formBody:     form.Encode(),
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// FetchToken performs the client credentials grant.
//
// Only a 200 response is accepted; any other status is an AuthError carrying
// the status and body. A response without a string access_token is a ParseError.
func (a *Authenticator) FetchToken(ctx context.Context) (types.AccessToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(a.formBody))
	if err != nil {
		return types.AccessToken{}, &pkgerrs.TransportError{Operation: "fetch token", URL: a.tokenURL.String(), Err: err}
	}

	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return types.AccessToken{}, &pkgerrs.TransportError{Operation: "fetch token", URL: a.tokenURL.String(), Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return types.AccessToken{}, &pkgerrs.TransportError{
			Operation: "fetch token",
			URL:       a.tokenURL.String(),
			Err:       fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return types.AccessToken{}, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return types.AccessToken{}, &pkgerrs.ParseError{
			Operation: "fetch token",
			Message:   "failed to unmarshal token response",
			Err:       err,
		}
	}

	token := types.AccessToken{Value: strings.TrimSpace(tokenResp.AccessToken)}
	if token.IsZero() {
		return types.AccessToken{}, &pkgerrs.ParseError{
			Operation: "fetch token",
			Message:   "access_token missing or empty in response",
		}
	}

	return token, nil
}

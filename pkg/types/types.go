package types

import (
	"strings"

	"golang.org/x/oauth2"
)

// AppAuth holds the credentials of a registered Reddit script application.
// It is loaded once from configuration and never mutated afterwards.
type AppAuth struct {
	ClientID     string
	ClientSecret string
	// ClientName is sent verbatim as the User-Agent. Reddit throttles or blocks
	// clients that keep the default Go user agent.
	ClientName string
}

// AccessToken is an opaque app-only bearer token.
// A token is either present and non-blank or absent; there is no partial state.
type AccessToken struct {
	Value string
}

// IsZero reports whether the token carries no usable value.
func (t AccessToken) IsZero() bool {
	return strings.TrimSpace(t.Value) == ""
}

// OAuth2 converts the token into an oauth2.Token of type Bearer.
func (t AccessToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{AccessToken: t.Value, TokenType: "Bearer"}
}

// String masks the token so it can be logged safely.
func (t AccessToken) String() string {
	if t.IsZero() {
		return "<none>"
	}
	if len(t.Value) <= 8 {
		return "****"
	}
	return t.Value[:4] + "****"
}

// Listing is a single entry of a subreddit feed.
type Listing struct {
	Title    string
	Selftext *string // nil when the post has no body or Reddit sent null
	URL      *string // absolute https link, nil when Reddit sent neither permalink nor url
	Ups      uint32
}

// ListingsPage is one page of a hot feed, in Reddit's ranking order.
type ListingsPage struct {
	Items []Listing
	Count int
}

// NewListingsPage builds a page whose Count always matches Items.
func NewListingsPage(items []Listing) *ListingsPage {
	if items == nil {
		items = []Listing{}
	}
	return &ListingsPage{Items: items, Count: len(items)}
}

// APIResponse is the raw result of a listings request.
// It is consumed once by the classifier and parser and never stored.
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// SubredditAccess is the terminal classification of one listings fetch.
type SubredditAccess int

const (
	AccessUninitialized SubredditAccess = iota
	AccessOK
	AccessDoesNotExist
	AccessPrivate
	AccessQuarantined
	AccessExpiredToken
	AccessUnknown
)

var accessNames = [...]string{
	AccessUninitialized: "uninitialized",
	AccessOK:            "ok",
	AccessDoesNotExist:  "does_not_exist",
	AccessPrivate:       "private",
	AccessQuarantined:   "quarantined",
	AccessExpiredToken:  "expired_token",
	AccessUnknown:       "unknown",
}

// String returns a stable snake_case name, suitable for logs.
func (a SubredditAccess) String() string {
	if a < 0 || int(a) >= len(accessNames) {
		return "invalid"
	}
	return accessNames[a]
}

// Message returns a short human-readable explanation for display in a menu prompt.
func (a SubredditAccess) Message() string {
	switch a {
	case AccessUninitialized:
		return "Enter a subreddit name."
	case AccessOK:
		return "Hot posts"
	case AccessDoesNotExist:
		return "That subreddit does not exist."
	case AccessPrivate:
		return "That subreddit is private."
	case AccessQuarantined:
		return "That subreddit is quarantined."
	case AccessExpiredToken:
		return "Reddit rejected the access token. Check your client credentials."
	default:
		return "Could not load that subreddit."
	}
}

// Package errors defines the error types returned by the rofi-reddit client.
//
// Non-Ok subreddit outcomes (private, quarantined, missing) are not errors; they
// are reported as types.SubredditAccess values. The types here cover failures
// where no outcome could be produced at all.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

var (
	// ErrTokenNotFound is returned when the token cache is absent or blank.
	ErrTokenNotFound = stderrors.New("access token not found in cache")
	// ErrTokenTooLarge is returned when the cache holds more than the maximum token size.
	ErrTokenTooLarge = stderrors.New("cached access token exceeds maximum size")
	// ErrEmptyToken is returned when asked to persist an empty or whitespace-only token.
	ErrEmptyToken = stderrors.New("refusing to cache an empty access token")
	// ErrResponseTooLarge is returned when a listings body exceeds the read limit.
	ErrResponseTooLarge = stderrors.New("response body exceeds maximum size")
)

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available (e.g. a TOML decode error)
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("config error: %s", msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AuthError indicates the token endpoint rejected the client credentials.
type AuthError struct {
	// StatusCode is the HTTP status code returned by the token endpoint
	StatusCode int
	// Body contains the raw response body, which may hold more details
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	parts := []string{"auth error"}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + ": " + strings.Join(parts[1:], ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError indicates that no HTTP response was obtained at all.
type TransportError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Err contains the underlying network error
	Err error
}

func (e *TransportError) Error() string {
	msg := "no response"
	if e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("transport error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("transport error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("transport error: %s", msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response did not have the expected JSON shape.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CacheError indicates the on-disk token cache could not be read or written.
type CacheError struct {
	// Op is "load" or "save"
	Op string
	// Path is the cache file path
	Path string
	// Err contains the underlying error
	Err error
}

func (e *CacheError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("token cache %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("token cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

// WebBaseURL is prefixed to the relative permalinks Reddit returns so they can
// be opened in a browser.
const WebBaseURL = "https://www.reddit.com"

// Parser turns raw listing bodies into ListingsPages.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser instance. A nil logger discards anomalies.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

type listingEnvelope struct {
	Data *struct {
		Children json.RawMessage `json:"children"`
	} `json:"data"`
}

type childEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// ParseListings extracts the hot feed entries from a listing body.
//
// The envelope must be an object with an array at data.children. Individual
// children that cannot be used are skipped, so a partially broken feed still
// yields a page with the remaining entries in their original order.
func (p *Parser) ParseListings(body []byte) (*types.ListingsPage, error) {
	var envelope listingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "parse listings", Message: "body is not a JSON object", Err: err}
	}
	if envelope.Data == nil {
		return nil, &pkgerrs.ParseError{Operation: "parse listings", Message: "missing data object"}
	}

	var children []json.RawMessage
	if err := json.Unmarshal(envelope.Data.Children, &children); err != nil || children == nil {
		return nil, &pkgerrs.ParseError{Operation: "parse listings", Message: "data.children is not an array", Err: err}
	}

	items := make([]types.Listing, 0, len(children))
	for i, raw := range children {
		listing, err := p.ParseListing(raw)
		if err != nil {
			p.logger.Warn("skipping listing", "index", i, "error", err)
			continue
		}
		items = append(items, *listing)
	}

	return types.NewListingsPage(items), nil
}

// ParseListing converts a single child of a listing into a Listing.
func (p *Parser) ParseListing(raw json.RawMessage) (*types.Listing, error) {
	var child childEnvelope
	if err := json.Unmarshal(raw, &child); err != nil {
		return nil, fmt.Errorf("child is not an object: %w", err)
	}

	var fields map[string]json.RawMessage
	if len(child.Data) == 0 {
		return nil, fmt.Errorf("no data found for listing")
	}
	if err := json.Unmarshal(child.Data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("listing data is not an object")
	}

	title, ok := stringField(fields, "title")
	if !ok || title == "" {
		return nil, fmt.Errorf("listing has no title")
	}

	listing := &types.Listing{
		Title: title,
		Ups:   upsField(fields),
	}

	if selftext, ok := stringField(fields, "selftext"); ok {
		listing.Selftext = &selftext
	}

	path, ok := stringField(fields, "permalink")
	if !ok || path == "" {
		path, ok = stringField(fields, "url")
	}
	if ok && path != "" {
		link := WebBaseURL + path
		listing.URL = &link
	} else {
		p.logger.Debug("no url or permalink found for listing", "title", title)
	}

	return listing, nil
}

// stringField reports the value of a string field; null, absent and non-string
// values all report false.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

// upsField reads the integer score, defaulting to 0 and clamping into uint32.
func upsField(fields map[string]json.RawMessage) uint32 {
	raw, ok := fields["ups"]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	switch {
	case n < 0:
		return 0
	case n > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n)
	}
}

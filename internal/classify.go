package internal

import (
	"encoding/json"
	"net/http"

	"github.com/jamesprial/rofi-reddit/pkg/types"
)

// Reddit explains most policy 403s with a "reason" field in the body.
const (
	reasonPrivate     = "private"
	reasonQuarantined = "quarantined"
)

// Classify maps a listings response to its SubredditAccess outcome.
//
// Reddit uses 403 both for a rejected token and for policy blocks. Only a body
// naming a known reason is treated as a policy block; anything else is reported
// as an expired token so the session re-authenticates once before giving up.
func Classify(resp *types.APIResponse) types.SubredditAccess {
	if resp == nil {
		return types.AccessUnknown
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return types.AccessOK
	case http.StatusNotFound:
		return types.AccessDoesNotExist
	case http.StatusUnauthorized:
		return types.AccessExpiredToken
	case http.StatusForbidden:
		switch forbiddenReason(resp.Body) {
		case reasonPrivate:
			return types.AccessPrivate
		case reasonQuarantined:
			return types.AccessQuarantined
		default:
			return types.AccessExpiredToken
		}
	default:
		return types.AccessUnknown
	}
}

// forbiddenReason returns the string "reason" of a JSON object body, or "".
func forbiddenReason(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw, ok := payload["reason"]
	if !ok {
		return ""
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err != nil {
		return ""
	}
	return reason
}

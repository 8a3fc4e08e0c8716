// Package token implements the opaque pagination cursor. Tokens are
// stateless: everything needed to resume a search is embedded in the token
// itself. The format is versioned so in-flight links survive a deploy.
package token

import (
	"encoding/base64"
	"encoding/json"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

const (
	DirectionNext = "next"
	DirectionPrev = "prev"

	// version prefix; bump when the payload shape changes
	prefix = "s1."

	maxTokenLen = 2048
)

// State is the resumption point of a search: a page direction plus the
// store's continuation marker for the last-seen sort key tuple.
type State struct {
	Direction string `json:"d"`
	Marker    string `json:"k"`
}

// Encode produces a URL-query-safe opaque token.
func Encode(s State) string {
	b, _ := json.Marshal(s)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token back into its state. Any malformed, truncated or
// unrecognized-version token fails with MalformedToken; it never substitutes
// a default.
func Decode(tok string) (State, error) {
	if len(tok) > maxTokenLen {
		return State{}, api.NewError(api.KindMalformedToken, "token too long")
	}
	if len(tok) < len(prefix) || tok[:len(prefix)] != prefix {
		return State{}, api.NewError(api.KindMalformedToken, "unknown token version")
	}

	raw, err := base64.RawURLEncoding.DecodeString(tok[len(prefix):])
	if err != nil {
		return State{}, api.NewError(api.KindMalformedToken, "invalid token encoding")
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, api.NewError(api.KindMalformedToken, "invalid token payload")
	}

	if s.Direction != DirectionNext && s.Direction != DirectionPrev {
		return State{}, api.NewError(api.KindMalformedToken, "invalid token direction")
	}
	if s.Marker == "" {
		return State{}, api.NewError(api.KindMalformedToken, "empty token marker")
	}

	return s, nil
}

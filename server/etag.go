package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// etagOf derives a strong validator from the canonical JSON form of a
// record. The marshal/unmarshal round trip normalizes key order and number
// representation, so the same content always fingerprints the same.
func etagOf(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	var norm interface{}
	if err := json.Unmarshal(raw, &norm); err != nil {
		return `""`
	}
	canon, err := json.Marshal(norm)
	if err != nil {
		return `""`
	}
	sum := sha256.Sum256(canon)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// checkPrecondition enforces an If-Match header against the current record
// fingerprint. An absent header passes; "*" matches any existing record.
func checkPrecondition(ifMatch string, current string) error {
	if ifMatch == "" {
		return nil
	}
	for _, candidate := range strings.Split(ifMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == current {
			return nil
		}
	}
	return api.NewError(api.KindPreconditionFailed, "entity tag does not match current state")
}

package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

func validateId(field string, id string) error {
	if len(id) < 1 {
		return fmt.Errorf("validation error: /%s must not be empty", field)
	}
	if len(id) > 512 {
		return fmt.Errorf("validation error: /%s must be less than 512 bytes", field)
	}

	for _, char := range id {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char == '.') ||
			(char == '-') ||
			(char == '_') ||
			(char >= '0' && char <= '9')) {
			return fmt.Errorf("validation error: /%s has invalid character: %c", field, char)
		}
	}
	return nil
}

// parseBBox parses a comma separated bbox query parameter. 2D and 3D boxes
// are accepted; 3D boxes are flattened to their horizontal extent.
func parseBBox(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, api.NewError(api.KindInvalidFilterExpression, "bbox must have 4 or 6 values, got %d", len(parts))
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, api.NewError(api.KindInvalidFilterExpression, "bbox value %q is not a number", p)
		}
		vals[i] = f
	}

	if len(vals) == 6 {
		vals = []float64{vals[0], vals[1], vals[3], vals[4]}
	}
	if vals[1] > vals[3] {
		return nil, api.NewError(api.KindInvalidFilterExpression, "bbox min latitude exceeds max latitude")
	}
	return vals, nil
}

// validateDatetime accepts an RFC 3339 instant or an open or closed interval
// written as start/end, with ".." for an unbounded side.
func validateDatetime(raw string) error {
	check := func(v string) error {
		if v == ".." || v == "" {
			return nil
		}
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return api.NewError(api.KindInvalidFilterExpression, "invalid datetime %q", v)
		}
		return nil
	}

	start, end, isInterval := strings.Cut(raw, "/")
	if !isInterval {
		if raw == ".." || raw == "" {
			return api.NewError(api.KindInvalidFilterExpression, "datetime must not be empty")
		}
		return check(raw)
	}
	if (start == ".." || start == "") && (end == ".." || end == "") {
		return api.NewError(api.KindInvalidFilterExpression, "datetime interval cannot be open on both sides")
	}
	if err := check(start); err != nil {
		return err
	}
	return check(end)
}

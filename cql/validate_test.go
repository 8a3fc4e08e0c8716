package cql

import (
	"testing"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

func TestValidate(t *testing.T) {
	queryables := Queryables{
		"properties.eo:cloud_cover": "number",
		"properties.platform":       "string",
		"properties.active":         "boolean",
	}

	tests := []struct {
		input string
		kind  api.Kind
		ok    bool
	}{
		{input: "id = 'x'", ok: true},
		{input: "properties.eo:cloud_cover < 10", ok: true},
		{input: "properties.platform LIKE 'sentinel%'", ok: true},
		{input: "properties.active = true", ok: true},
		{input: "properties.eo:cloud_cover BETWEEN 0 AND 10", ok: true},
		{input: "collection IN ('a', 'b')", ok: true},
		{input: "datetime IS NULL", ok: true},
		{input: "S_INTERSECTS(geometry, POINT(1 2))", ok: true},
		{input: "CASEI(properties.platform) = 'sentinel-2a'", ok: true},

		// attribute not on the allowlist
		{input: "properties.nope = 1", kind: api.KindUnknownField},
		{input: "id = 'a' AND properties.nope = 1", kind: api.KindUnknownField},
		{input: "NOPEFUNC(id) = 'a'", kind: api.KindUnsupportedFunction},

		// type disagreement, no coercion
		{input: "properties.eo:cloud_cover = 'low'", kind: api.KindInvalidFilterExpression},
		{input: "properties.platform = 5", kind: api.KindInvalidFilterExpression},
		{input: "properties.active = 'yes'", kind: api.KindInvalidFilterExpression},

		// structural misuse
		{input: "1 = 1", kind: api.KindInvalidFilterExpression},
		{input: "'a' LIKE 'b'", kind: api.KindInvalidFilterExpression},
		{input: "geometry = 'POINT(1 2)'", kind: api.KindInvalidFilterExpression},
		{input: "S_INTERSECTS(properties.platform, POINT(1 2))", kind: api.KindInvalidFilterExpression},
		{input: "CASEI(id, collection) = 'x'", kind: api.KindInvalidFilterExpression},
	}

	for i, tt := range tests {
		expr, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("test %d: parse failed for %q: %v", i, tt.input, err)
		}

		err = Validate(expr, queryables)
		if tt.ok {
			if err != nil {
				t.Errorf("test %d: unexpected error for %q: %v", i, tt.input, err)
			}
			continue
		}

		if err == nil {
			t.Errorf("test %d: expected error for %q but got none", i, tt.input)
			continue
		}
		if !api.IsKind(err, tt.kind) {
			t.Errorf("test %d: wrong kind for %q: expected %s, got %s",
				i, tt.input, tt.kind, api.KindOf(err))
		}
	}
}

func TestTranslate(t *testing.T) {
	q := Queryables{"properties.eo:cloud_cover": "number"}

	lowered, err := Translate("properties.eo:cloud_cover < 10 AND collection = 'x'", "cql2-text", q)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if lowered["op"] != "and" {
		t.Errorf("expected an and node, got %v", lowered["op"])
	}

	if _, err := Translate("id = 'x'", "cql2-futuretext", q); err == nil {
		t.Error("expected error for unknown filter language")
	}

	// a json filter goes through the same validation
	_, err = Translate(`{"op":"=","args":[{"property":"nope"},"x"]}`, "cql2-json", q)
	if !api.IsKind(err, api.KindUnknownField) {
		t.Errorf("expected UnknownField, got %v", err)
	}
}

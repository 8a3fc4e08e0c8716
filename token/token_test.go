package token

import (
	"strings"
	"testing"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

func TestRoundTrip(t *testing.T) {
	states := []State{
		{Direction: DirectionNext, Marker: "sentinel-2-l2a:S2A_33UUP_20230810_0_L2A"},
		{Direction: DirectionPrev, Marker: "a:b"},
		{Direction: DirectionNext, Marker: "weird marker with spaces / and ? chars"},
	}

	for i, s := range states {
		tok := Encode(s)

		if !strings.HasPrefix(tok, "s1.") {
			t.Errorf("test %d: token %q is missing its version prefix", i, tok)
		}
		// tokens must be query-safe
		if strings.ContainsAny(tok, " +/?&=#") {
			t.Errorf("test %d: token %q contains unsafe characters", i, tok)
		}

		got, err := Decode(tok)
		if err != nil {
			t.Fatalf("test %d: decode failed: %v", i, err)
		}
		if got != s {
			t.Errorf("test %d: round trip mismatch: expected %+v, got %+v", i, s, got)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no version", "bm90LWEtdG9rZW4"},
		{"wrong version", "s2.bm90LWEtdG9rZW4"},
		{"bad base64", "s1.!!!!"},
		{"not json", "s1.bm90anNvbg"},
		{"bad direction", Encode(State{Direction: "sideways", Marker: "a:b"})},
		{"empty marker", Encode(State{Direction: DirectionNext})},
		{"too long", "s1." + strings.Repeat("A", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.tok)
			if err == nil {
				t.Fatalf("expected error for token %q", tt.tok)
			}
			if !api.IsKind(err, api.KindMalformedToken) {
				t.Errorf("expected MalformedToken, got %s", api.KindOf(err))
			}
		})
	}
}

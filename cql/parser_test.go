package cql

import (
	"reflect"
	"testing"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []Token
	}{
		{
			"collection",
			[]Token{
				{TOKEN_IDENT, "collection"},
				{TOKEN_EOF, ""},
			},
		},
		{
			"properties.eo:cloud_cover <= 10",
			[]Token{
				{TOKEN_IDENT, "properties.eo:cloud_cover"},
				{TOKEN_LTE, "<="},
				{TOKEN_NUMBER, "10"},
				{TOKEN_EOF, ""},
			},
		},
		{
			"id = 'it''s'",
			[]Token{
				{TOKEN_IDENT, "id"},
				{TOKEN_EQ, "="},
				{TOKEN_STRING, "it's"},
				{TOKEN_EOF, ""},
			},
		},
		{
			"x <> -1.5e3",
			[]Token{
				{TOKEN_IDENT, "x"},
				{TOKEN_NEQ, "<>"},
				{TOKEN_NUMBER, "-1.5e3"},
				{TOKEN_EOF, ""},
			},
		},
		{
			"(a, b)",
			[]Token{
				{TOKEN_LPAREN, "("},
				{TOKEN_IDENT, "a"},
				{TOKEN_COMMA, ","},
				{TOKEN_IDENT, "b"},
				{TOKEN_RPAREN, ")"},
				{TOKEN_EOF, ""},
			},
		},
	}

	for i, tt := range tests {
		l := NewLexer(tt.input)
		tokens := []Token{}
		for {
			tok := l.NextToken()
			tokens = append(tokens, tok)
			if tok.Type == TOKEN_EOF {
				break
			}
		}

		if !reflect.DeepEqual(tokens, tt.expected) {
			t.Errorf("test %d: wrong tokens.\nexpected=%+v\ngot=%+v",
				i, tt.expected, tokens)
		}
	}
}

func TestParser(t *testing.T) {
	tests := []struct {
		input       string
		expected    Expr
		shouldError bool
	}{
		{
			input: "collection = 'sentinel-2-l2a'",
			expected: &Comparison{
				Op:    OpEq,
				Left:  &Property{Name: "collection"},
				Right: &Literal{Value: "sentinel-2-l2a"},
			},
		},
		{
			input: "properties.eo:cloud_cover < 10",
			expected: &Comparison{
				Op:    OpLt,
				Left:  &Property{Name: "properties.eo:cloud_cover"},
				Right: &Literal{Value: float64(10)},
			},
		},
		{
			// AND binds tighter than OR
			input: "a = 1 OR b = 2 AND c = 3",
			expected: &Or{Exprs: []Expr{
				&Comparison{Op: OpEq, Left: &Property{Name: "a"}, Right: &Literal{Value: float64(1)}},
				&And{Exprs: []Expr{
					&Comparison{Op: OpEq, Left: &Property{Name: "b"}, Right: &Literal{Value: float64(2)}},
					&Comparison{Op: OpEq, Left: &Property{Name: "c"}, Right: &Literal{Value: float64(3)}},
				}},
			}},
		},
		{
			// parentheses override precedence
			input: "(a = 1 OR b = 2) AND c = 3",
			expected: &And{Exprs: []Expr{
				&Or{Exprs: []Expr{
					&Comparison{Op: OpEq, Left: &Property{Name: "a"}, Right: &Literal{Value: float64(1)}},
					&Comparison{Op: OpEq, Left: &Property{Name: "b"}, Right: &Literal{Value: float64(2)}},
				}},
				&Comparison{Op: OpEq, Left: &Property{Name: "c"}, Right: &Literal{Value: float64(3)}},
			}},
		},
		{
			input: "NOT a = 1",
			expected: &Not{Expr: &Comparison{
				Op: OpEq, Left: &Property{Name: "a"}, Right: &Literal{Value: float64(1)},
			}},
		},
		{
			input:    "datetime IS NULL",
			expected: &IsNull{Operand: &Property{Name: "datetime"}},
		},
		{
			input:    "datetime IS NOT NULL",
			expected: &IsNull{Operand: &Property{Name: "datetime"}, Negate: true},
		},
		{
			input:    "id LIKE 'S2A%'",
			expected: &Like{Operand: &Property{Name: "id"}, Pattern: "S2A%"},
		},
		{
			input:    "id NOT LIKE 'S2A%'",
			expected: &Like{Operand: &Property{Name: "id"}, Pattern: "S2A%", Negate: true},
		},
		{
			input: "collection IN ('a', 'b')",
			expected: &In{
				Operand: &Property{Name: "collection"},
				List:    []Operand{&Literal{Value: "a"}, &Literal{Value: "b"}},
			},
		},
		{
			input: "cloud NOT BETWEEN 0 AND 10",
			expected: &Between{
				Operand: &Property{Name: "cloud"},
				Low:     &Literal{Value: float64(0)},
				High:    &Literal{Value: float64(10)},
				Negate:  true,
			},
		},
		{
			input: "S_INTERSECTS(geometry, POINT(1 2))",
			expected: &Spatial{
				Op:   OpIntersects,
				Left: &Property{Name: "geometry"},
				Right: &Geometry{Object: map[string]interface{}{
					"type":        "Point",
					"coordinates": []interface{}{float64(1), float64(2)},
				}},
			},
		},
		{
			input: "S_WITHIN(geometry, POLYGON((0 0, 1 0, 1 1, 0 0)))",
			expected: &Spatial{
				Op:   OpWithin,
				Left: &Property{Name: "geometry"},
				Right: &Geometry{Object: map[string]interface{}{
					"type": "Polygon",
					"coordinates": []interface{}{
						[]interface{}{
							[]interface{}{float64(0), float64(0)},
							[]interface{}{float64(1), float64(0)},
							[]interface{}{float64(1), float64(1)},
							[]interface{}{float64(0), float64(0)},
						},
					},
				}},
			},
		},
		{
			input: "CASEI(provider) = 'esa'",
			expected: &Comparison{
				Op:    OpEq,
				Left:  &Function{Name: "casei", Args: []Operand{&Property{Name: "provider"}}},
				Right: &Literal{Value: "esa"},
			},
		},
		{
			input: "active = true",
			expected: &Comparison{
				Op:    OpEq,
				Left:  &Property{Name: "active"},
				Right: &Literal{Value: true},
			},
		},
		{input: "", shouldError: true},
		{input: "a =", shouldError: true},
		{input: "a = 1 OR", shouldError: true},
		{input: "(a = 1", shouldError: true},
		{input: "a = 1 b = 2", shouldError: true},
		{input: "a BETWEEN 1", shouldError: true},
		{input: "id LIKE 5", shouldError: true},
		{input: "S_INTERSECTS(geometry)", shouldError: true},
		{input: "a = 'unterminated", shouldError: true},
	}

	for i, tt := range tests {
		actual, err := Parse(tt.input)

		if tt.shouldError {
			if err == nil {
				t.Errorf("test %d: expected error for input %q but got none", i, tt.input)
			}
			continue
		}

		if err != nil {
			t.Errorf("test %d: unexpected error for input %q: %v", i, tt.input, err)
			continue
		}

		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("test %d: wrong expression for input %q.\nexpected=%#v\ngot=%#v",
				i, tt.input, tt.expected, actual)
		}
	}
}

// Both surface syntaxes must decode the same predicate into structurally
// equal trees, so validation and lowering behave identically downstream.
func TestTextJSONEquivalence(t *testing.T) {
	tests := []struct {
		text string
		json string
	}{
		{
			text: "collection = 'sentinel-2-l2a'",
			json: `{"op":"=","args":[{"property":"collection"},"sentinel-2-l2a"]}`,
		},
		{
			text: "cloud < 10 AND collection = 'x'",
			json: `{"op":"and","args":[
				{"op":"<","args":[{"property":"cloud"},10]},
				{"op":"=","args":[{"property":"collection"},"x"]}]}`,
		},
		{
			text: "id LIKE 'S2%'",
			json: `{"op":"like","args":[{"property":"id"},"S2%"]}`,
		},
		{
			text: "cloud BETWEEN 0 AND 10",
			json: `{"op":"between","args":[{"property":"cloud"},0,10]}`,
		},
		{
			text: "S_INTERSECTS(geometry, POINT(13.4 52.5))",
			json: `{"op":"s_intersects","args":[
				{"property":"geometry"},
				{"type":"Point","coordinates":[13.4,52.5]}]}`,
		},
		{
			text: "CASEI(provider) = 'esa'",
			json: `{"op":"=","args":[{"op":"casei","args":[{"property":"provider"}]},"esa"]}`,
		},
	}

	for i, tt := range tests {
		fromText, err := Parse(tt.text)
		if err != nil {
			t.Fatalf("test %d: text parse failed: %v", i, err)
		}
		fromJSON, err := ParseJSON([]byte(tt.json))
		if err != nil {
			t.Fatalf("test %d: json parse failed: %v", i, err)
		}

		if !reflect.DeepEqual(fromText, fromJSON) {
			t.Errorf("test %d: surfaces disagree.\ntext=%#v\njson=%#v",
				i, fromText, fromJSON)
		}
	}
}

func TestLower(t *testing.T) {
	tests := []struct {
		input    string
		expected map[string]interface{}
	}{
		{
			input: "cloud < 10",
			expected: map[string]interface{}{
				"op": "<",
				"args": []interface{}{
					map[string]interface{}{"property": "cloud"},
					float64(10),
				},
			},
		},
		{
			input: "id NOT LIKE 'S2%'",
			expected: map[string]interface{}{
				"op": "not",
				"args": []interface{}{
					map[string]interface{}{
						"op": "like",
						"args": []interface{}{
							map[string]interface{}{"property": "id"},
							"S2%",
						},
					},
				},
			},
		},
		{
			input: "datetime IS NOT NULL",
			expected: map[string]interface{}{
				"op": "not",
				"args": []interface{}{
					map[string]interface{}{
						"op": "isNull",
						"args": []interface{}{
							map[string]interface{}{"property": "datetime"},
						},
					},
				},
			},
		},
	}

	for i, tt := range tests {
		expr, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("test %d: parse failed: %v", i, err)
		}
		actual := Lower(expr)
		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("test %d: wrong lowering for %q.\nexpected=%#v\ngot=%#v",
				i, tt.input, tt.expected, actual)
		}
	}
}

package cql

import (
	"strconv"
	"strings"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// Parser consumes the cql2-text surface syntax. Operator precedence is
// NOT > comparison > AND > OR, with explicit parentheses for grouping.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
}

func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Parse parses a complete cql2-text filter expression.
func Parse(input string) (Expr, error) {
	p := NewParser(NewLexer(input))
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TOKEN_EOF {
		return nil, errf("unexpected %s after expression", tokenName(p.curToken.Type))
	}
	return expr, nil
}

func errf(format string, args ...any) error {
	return api.NewError(api.KindInvalidFilterExpression, format, args...)
}

func (p *Parser) curKeyword(kw string) bool {
	return p.curToken.Type == TOKEN_IDENT && strings.EqualFold(p.curToken.Literal, kw)
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	var exprs []Expr
	for p.curKeyword("OR") {
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if exprs == nil {
			exprs = []Expr{left}
		}
		exprs = append(exprs, right)
	}

	if exprs == nil {
		return left, nil
	}
	return &Or{Exprs: exprs}, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	var exprs []Expr
	for p.curKeyword("AND") {
		p.nextToken()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if exprs == nil {
			exprs = []Expr{left}
		}
		exprs = append(exprs, right)
	}

	if exprs == nil {
		return left, nil
	}
	return &And{Exprs: exprs}, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.curKeyword("NOT") && !strings.EqualFold(p.peekToken.Literal, "LIKE") &&
		!strings.EqualFold(p.peekToken.Literal, "IN") &&
		!strings.EqualFold(p.peekToken.Literal, "BETWEEN") {
		p.nextToken()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	}
	return p.parsePredicate()
}

var spatialOps = map[string]SpatialOp{
	"S_INTERSECTS": OpIntersects,
	"S_CONTAINS":   OpContains,
	"S_WITHIN":     OpWithin,
	"S_DISJOINT":   OpDisjoint,
}

func (p *Parser) parsePredicate() (Expr, error) {
	if p.curToken.Type == TOKEN_LPAREN {
		p.nextToken()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != TOKEN_RPAREN {
			return nil, errf("expected ), got %s", tokenName(p.curToken.Type))
		}
		p.nextToken()
		return inner, nil
	}

	if p.curToken.Type == TOKEN_IDENT {
		if op, ok := spatialOps[strings.ToUpper(p.curToken.Literal)]; ok && p.peekToken.Type == TOKEN_LPAREN {
			return p.parseSpatial(op)
		}
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch p.curToken.Type {
	case TOKEN_EQ, TOKEN_NEQ, TOKEN_LT, TOKEN_LTE, TOKEN_GT, TOKEN_GTE:
		op := CompareOp(p.curToken.Literal)
		p.nextToken()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: op, Left: left, Right: right}, nil
	case TOKEN_IDENT:
		// keyword-operator predicates
	default:
		return nil, errf("expected operator, got %s", tokenName(p.curToken.Type))
	}

	negate := false
	if p.curKeyword("NOT") {
		negate = true
		p.nextToken()
	}

	switch {
	case p.curKeyword("IS"):
		if negate {
			return nil, errf("NOT is not valid before IS")
		}
		p.nextToken()
		if p.curKeyword("NOT") {
			negate = true
			p.nextToken()
		}
		if !p.curKeyword("NULL") {
			return nil, errf("expected NULL, got %q", p.curToken.Literal)
		}
		p.nextToken()
		return &IsNull{Operand: left, Negate: negate}, nil

	case p.curKeyword("LIKE"):
		p.nextToken()
		if p.curToken.Type != TOKEN_STRING {
			return nil, errf("LIKE pattern must be a string")
		}
		pattern := p.curToken.Literal
		p.nextToken()
		return &Like{Operand: left, Pattern: pattern, Negate: negate}, nil

	case p.curKeyword("IN"):
		p.nextToken()
		if p.curToken.Type != TOKEN_LPAREN {
			return nil, errf("expected ( after IN")
		}
		p.nextToken()
		var list []Operand
		for {
			item, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			list = append(list, item)
			if p.curToken.Type == TOKEN_COMMA {
				p.nextToken()
				continue
			}
			break
		}
		if p.curToken.Type != TOKEN_RPAREN {
			return nil, errf("expected ) after IN list")
		}
		p.nextToken()
		return &In{Operand: left, List: list, Negate: negate}, nil

	case p.curKeyword("BETWEEN"):
		p.nextToken()
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.curKeyword("AND") {
			return nil, errf("expected AND in BETWEEN")
		}
		p.nextToken()
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Between{Operand: left, Low: low, High: high, Negate: negate}, nil
	}

	return nil, errf("expected predicate operator, got %q", p.curToken.Literal)
}

func (p *Parser) parseSpatial(op SpatialOp) (Expr, error) {
	p.nextToken() // op name
	p.nextToken() // (

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TOKEN_COMMA {
		return nil, errf("expected , in spatial predicate")
	}
	p.nextToken()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.curToken.Type != TOKEN_RPAREN {
		return nil, errf("expected ) in spatial predicate")
	}
	p.nextToken()

	return &Spatial{Op: op, Left: left, Right: right}, nil
}

var wktTypes = map[string]string{
	"POINT":           "Point",
	"LINESTRING":      "LineString",
	"POLYGON":         "Polygon",
	"MULTIPOINT":      "MultiPoint",
	"MULTILINESTRING": "MultiLineString",
	"MULTIPOLYGON":    "MultiPolygon",
}

func (p *Parser) parseOperand() (Operand, error) {
	switch p.curToken.Type {
	case TOKEN_STRING:
		v := p.curToken.Literal
		p.nextToken()
		return &Literal{Value: v}, nil

	case TOKEN_NUMBER:
		num, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, errf("invalid number %q", p.curToken.Literal)
		}
		p.nextToken()
		return &Literal{Value: num}, nil

	case TOKEN_IDENT:
		upper := strings.ToUpper(p.curToken.Literal)
		if upper == "TRUE" || upper == "FALSE" {
			p.nextToken()
			return &Literal{Value: upper == "TRUE"}, nil
		}
		if gtype, ok := wktTypes[upper]; ok && p.peekToken.Type == TOKEN_LPAREN {
			return p.parseWKT(gtype)
		}
		if p.peekToken.Type == TOKEN_LPAREN {
			return p.parseFunction()
		}
		name := p.curToken.Literal
		p.nextToken()
		return &Property{Name: name}, nil
	}

	return nil, errf("expected operand, got %s", tokenName(p.curToken.Type))
}

func (p *Parser) parseFunction() (Operand, error) {
	name := strings.ToLower(p.curToken.Literal)
	p.nextToken() // name
	p.nextToken() // (

	var args []Operand
	for p.curToken.Type != TOKEN_RPAREN {
		arg, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
		}
	}
	p.nextToken() // )

	return &Function{Name: name, Args: args}, nil
}

// WKT geometry literals convert to GeoJSON objects so both surface syntaxes
// carry the same operand shape.
func (p *Parser) parseWKT(gtype string) (Operand, error) {
	p.nextToken() // type keyword

	var coords interface{}
	var err error
	switch gtype {
	case "Point":
		coords, err = p.parsePositionGroup()
	case "LineString", "MultiPoint":
		coords, err = p.parsePositionList()
	case "Polygon", "MultiLineString":
		coords, err = p.parseRingList()
	case "MultiPolygon":
		coords, err = p.parsePolygonList()
	}
	if err != nil {
		return nil, err
	}

	return &Geometry{Object: map[string]interface{}{
		"type":        gtype,
		"coordinates": coords,
	}}, nil
}

func (p *Parser) expectLParen() error {
	if p.curToken.Type != TOKEN_LPAREN {
		return errf("expected ( in geometry, got %s", tokenName(p.curToken.Type))
	}
	p.nextToken()
	return nil
}

func (p *Parser) expectRParen() error {
	if p.curToken.Type != TOKEN_RPAREN {
		return errf("expected ) in geometry, got %s", tokenName(p.curToken.Type))
	}
	p.nextToken()
	return nil
}

// parsePosition reads "x y [z]" as a coordinate array.
func (p *Parser) parsePosition() ([]interface{}, error) {
	var pos []interface{}
	for p.curToken.Type == TOKEN_NUMBER {
		num, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, errf("invalid coordinate %q", p.curToken.Literal)
		}
		pos = append(pos, num)
		p.nextToken()
	}
	if len(pos) < 2 {
		return nil, errf("geometry position needs at least two coordinates")
	}
	return pos, nil
}

// parsePositionGroup reads "( x y )".
func (p *Parser) parsePositionGroup() (interface{}, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	pos, err := p.parsePosition()
	if err != nil {
		return nil, err
	}
	if err := p.expectRParen(); err != nil {
		return nil, err
	}
	return pos, nil
}

// parsePositionList reads "( x y, x y, ... )".
func (p *Parser) parsePositionList() (interface{}, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	var list []interface{}
	for {
		pos, err := p.parsePosition()
		if err != nil {
			return nil, err
		}
		list = append(list, pos)
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expectRParen(); err != nil {
		return nil, err
	}
	return list, nil
}

// parseRingList reads "( ( x y, ... ), ( x y, ... ) )".
func (p *Parser) parseRingList() (interface{}, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	var rings []interface{}
	for {
		ring, err := p.parsePositionList()
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expectRParen(); err != nil {
		return nil, err
	}
	return rings, nil
}

// parsePolygonList reads the MultiPolygon coordinate nesting.
func (p *Parser) parsePolygonList() (interface{}, error) {
	if err := p.expectLParen(); err != nil {
		return nil, err
	}
	var polys []interface{}
	for {
		poly, err := p.parseRingList()
		if err != nil {
			return nil, err
		}
		polys = append(polys, poly)
		if p.curToken.Type == TOKEN_COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expectRParen(); err != nil {
		return nil, err
	}
	return polys, nil
}

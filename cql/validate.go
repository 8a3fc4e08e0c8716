package cql

import (
	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// Queryables maps queryable property names to their declared type:
// "string", "number", "integer", "boolean", "datetime" or "geometry".
type Queryables map[string]string

// Core fields every catalog record has; always queryable.
var coreQueryables = Queryables{
	"id":         "string",
	"collection": "string",
	"geometry":   "geometry",
	"datetime":   "datetime",
}

// Core returns the always-queryable fields.
func Core() Queryables {
	out := make(Queryables, len(coreQueryables))
	for k, v := range coreQueryables {
		out[k] = v
	}
	return out
}

// functions the store understands, with their arity.
var functionRegistry = map[string]int{
	"casei":   1,
	"accenti": 1,
	"lower":   1,
	"upper":   1,
}

// Validate checks every attribute reference against the allowlist and every
// node for operand arity and type agreement. It runs before any store call.
func Validate(e Expr, q Queryables) error {
	switch n := e.(type) {
	case *And:
		for _, sub := range n.Exprs {
			if err := Validate(sub, q); err != nil {
				return err
			}
		}
		return nil
	case *Or:
		for _, sub := range n.Exprs {
			if err := Validate(sub, q); err != nil {
				return err
			}
		}
		return nil
	case *Not:
		return Validate(n.Expr, q)

	case *Comparison:
		return validateComparison(n, q)

	case *IsNull:
		_, err := operandType(n.Operand, q)
		return err

	case *Like:
		t, err := operandType(n.Operand, q)
		if err != nil {
			return err
		}
		if isLiteralOnly(n.Operand) {
			return errf("LIKE requires a property operand")
		}
		if t != "string" && t != "" {
			return errf("LIKE requires a string property, got %s", t)
		}
		return nil

	case *In:
		t, err := operandType(n.Operand, q)
		if err != nil {
			return err
		}
		if isLiteralOnly(n.Operand) {
			return errf("IN requires a property operand")
		}
		for _, item := range n.List {
			lit, ok := item.(*Literal)
			if !ok {
				return errf("IN list elements must be literals")
			}
			if err := checkTypeMatch(t, lit); err != nil {
				return err
			}
		}
		return nil

	case *Between:
		t, err := operandType(n.Operand, q)
		if err != nil {
			return err
		}
		if isLiteralOnly(n.Operand) {
			return errf("BETWEEN requires a property operand")
		}
		for _, bound := range []Operand{n.Low, n.High} {
			lit, ok := bound.(*Literal)
			if !ok {
				return errf("BETWEEN bounds must be literals")
			}
			if err := checkTypeMatch(t, lit); err != nil {
				return err
			}
		}
		return nil

	case *Spatial:
		return validateSpatial(n, q)
	}

	return errf("unknown filter node")
}

func validateComparison(n *Comparison, q Queryables) error {
	lt, err := operandType(n.Left, q)
	if err != nil {
		return err
	}
	rt, err := operandType(n.Right, q)
	if err != nil {
		return err
	}

	if isLiteralOnly(n.Left) && isLiteralOnly(n.Right) {
		return errf("comparison requires at least one property operand")
	}
	if lt == "geometry" || rt == "geometry" {
		return errf("geometry operands require a spatial predicate")
	}

	// null comparisons use IS NULL, never equality
	if _, ok := literalValue(n.Left); ok {
		if err := checkTypeMatch(rt, n.Left.(*Literal)); err != nil {
			return err
		}
	}
	if _, ok := literalValue(n.Right); ok {
		if err := checkTypeMatch(lt, n.Right.(*Literal)); err != nil {
			return err
		}
	}
	return nil
}

func validateSpatial(n *Spatial, q Queryables) error {
	prop, ok := n.Left.(*Property)
	if !ok {
		return errf("%s requires a property as its first operand", n.Op)
	}
	t, err := propertyType(prop.Name, q)
	if err != nil {
		return err
	}
	if t != "geometry" {
		return errf("%s requires a geometry property, %s is %s", n.Op, prop.Name, t)
	}
	geom, ok := n.Right.(*Geometry)
	if !ok {
		return errf("%s requires a geometry literal as its second operand", n.Op)
	}
	if _, ok := geom.Object["type"].(string); !ok {
		return errf("geometry operand is missing its type")
	}
	return nil
}

func propertyType(name string, q Queryables) (string, error) {
	if t, ok := coreQueryables[name]; ok {
		return t, nil
	}
	if t, ok := q[name]; ok {
		return t, nil
	}
	return "", api.NewError(api.KindUnknownField, "unknown queryable %q", name)
}

// operandType resolves the static type of an operand, validating property
// references and function calls along the way. Literals report their own
// type; functions report "string".
func operandType(o Operand, q Queryables) (string, error) {
	switch v := o.(type) {
	case *Property:
		return propertyType(v.Name, q)
	case *Literal:
		return literalType(v), nil
	case *Geometry:
		return "geometry", nil
	case *Function:
		arity, ok := functionRegistry[v.Name]
		if !ok {
			return "", api.NewError(api.KindUnsupportedFunction, "unsupported function %q", v.Name)
		}
		if len(v.Args) != arity {
			return "", errf("function %s takes %d argument(s), got %d", v.Name, arity, len(v.Args))
		}
		for _, arg := range v.Args {
			t, err := operandType(arg, q)
			if err != nil {
				return "", err
			}
			if t == "geometry" {
				return "", errf("function %s cannot take a geometry argument", v.Name)
			}
		}
		return "string", nil
	}
	return "", errf("unknown operand")
}

func literalType(l *Literal) string {
	switch l.Value.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return ""
}

func literalValue(o Operand) (interface{}, bool) {
	if l, ok := o.(*Literal); ok {
		return l.Value, true
	}
	return nil, false
}

func isLiteralOnly(o Operand) bool {
	_, ok := o.(*Literal)
	return ok
}

// checkTypeMatch enforces that a literal agrees with a property's declared
// type. No silent coercion between text, number and boolean.
func checkTypeMatch(propType string, lit *Literal) error {
	if propType == "" {
		return nil
	}
	lt := literalType(lit)
	switch propType {
	case "string", "datetime":
		if lt != "string" {
			return errf("%s value expected, got %s literal", propType, lt)
		}
	case "number", "integer":
		if lt != "number" {
			return errf("numeric value expected, got %s literal", lt)
		}
	case "boolean":
		if lt != "boolean" {
			return errf("boolean value expected, got %s literal", lt)
		}
	}
	return nil
}

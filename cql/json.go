package cql

import (
	"encoding/json"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// ParseJSON decodes the cql2-json surface syntax. A text expression and a
// json expression for the same predicate decode to structurally equal trees.
func ParseJSON(data []byte) (Expr, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, api.NewError(api.KindInvalidFilterExpression, "invalid cql2-json: %v", err)
	}
	return decodeExpr(v)
}

func decodeExpr(v interface{}) (Expr, error) {
	node, ok := v.(map[string]interface{})
	if !ok {
		return nil, errf("filter node must be an object")
	}

	op, _ := node["op"].(string)
	if op == "" {
		return nil, errf("filter node is missing op")
	}
	args, _ := node["args"].([]interface{})

	switch op {
	case "and", "or":
		if len(args) < 2 {
			return nil, errf("%s requires at least two operands", op)
		}
		exprs := make([]Expr, 0, len(args))
		for _, a := range args {
			e, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if op == "and" {
			return &And{Exprs: exprs}, nil
		}
		return &Or{Exprs: exprs}, nil

	case "not":
		if len(args) != 1 {
			return nil, errf("not requires exactly one operand")
		}
		inner, err := decodeExpr(args[0])
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil

	case "=", "<>", "<", "<=", ">", ">=":
		if len(args) != 2 {
			return nil, errf("%s requires exactly two operands", op)
		}
		left, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		right, err := decodeOperand(args[1])
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: CompareOp(op), Left: left, Right: right}, nil

	case "isNull":
		if len(args) != 1 {
			return nil, errf("isNull requires exactly one operand")
		}
		operand, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		return &IsNull{Operand: operand}, nil

	case "like":
		if len(args) != 2 {
			return nil, errf("like requires exactly two operands")
		}
		operand, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		pattern, ok := args[1].(string)
		if !ok {
			return nil, errf("like pattern must be a string")
		}
		return &Like{Operand: operand, Pattern: pattern}, nil

	case "in":
		if len(args) != 2 {
			return nil, errf("in requires exactly two operands")
		}
		operand, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		items, ok := args[1].([]interface{})
		if !ok {
			return nil, errf("in list must be an array")
		}
		list := make([]Operand, 0, len(items))
		for _, item := range items {
			o, err := decodeOperand(item)
			if err != nil {
				return nil, err
			}
			list = append(list, o)
		}
		return &In{Operand: operand, List: list}, nil

	case "between":
		if len(args) != 3 {
			return nil, errf("between requires exactly three operands")
		}
		operand, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		low, err := decodeOperand(args[1])
		if err != nil {
			return nil, err
		}
		high, err := decodeOperand(args[2])
		if err != nil {
			return nil, err
		}
		return &Between{Operand: operand, Low: low, High: high}, nil

	case "s_intersects", "s_contains", "s_within", "s_disjoint":
		if len(args) != 2 {
			return nil, errf("%s requires exactly two operands", op)
		}
		left, err := decodeOperand(args[0])
		if err != nil {
			return nil, err
		}
		right, err := decodeOperand(args[1])
		if err != nil {
			return nil, err
		}
		return &Spatial{Op: SpatialOp(op), Left: left, Right: right}, nil
	}

	return nil, errf("unknown operator %q", op)
}

func decodeOperand(v interface{}) (Operand, error) {
	switch val := v.(type) {
	case string:
		return &Literal{Value: val}, nil
	case float64:
		return &Literal{Value: val}, nil
	case bool:
		return &Literal{Value: val}, nil
	case map[string]interface{}:
		if name, ok := val["property"].(string); ok {
			return &Property{Name: name}, nil
		}
		if _, ok := val["type"].(string); ok {
			if _, ok := val["coordinates"]; ok {
				return &Geometry{Object: val}, nil
			}
		}
		if ts, ok := val["timestamp"].(string); ok {
			return &Literal{Value: ts}, nil
		}
		if date, ok := val["date"].(string); ok {
			return &Literal{Value: date}, nil
		}
		if name, ok := val["op"].(string); ok {
			args, _ := val["args"].([]interface{})
			ops := make([]Operand, 0, len(args))
			for _, a := range args {
				o, err := decodeOperand(a)
				if err != nil {
					return nil, err
				}
				ops = append(ops, o)
			}
			return &Function{Name: name, Args: ops}, nil
		}
		return nil, errf("unrecognized operand object")
	}
	return nil, errf("unsupported operand type %T", v)
}

package cql

// Lower converts the canonical AST into the store's native filter payload,
// a cql2-json tree. Every node maps 1:1; geometry objects pass through
// verbatim.
func Lower(e Expr) map[string]interface{} {
	switch n := e.(type) {
	case *And:
		return opNode("and", lowerExprs(n.Exprs)...)
	case *Or:
		return opNode("or", lowerExprs(n.Exprs)...)
	case *Not:
		return opNode("not", Lower(n.Expr))
	case *Comparison:
		return opNode(string(n.Op), lowerOperand(n.Left), lowerOperand(n.Right))
	case *IsNull:
		node := opNode("isNull", lowerOperand(n.Operand))
		if n.Negate {
			return opNode("not", node)
		}
		return node
	case *Like:
		node := opNode("like", lowerOperand(n.Operand), n.Pattern)
		if n.Negate {
			return opNode("not", node)
		}
		return node
	case *In:
		list := make([]interface{}, 0, len(n.List))
		for _, item := range n.List {
			list = append(list, lowerOperand(item))
		}
		node := opNode("in", lowerOperand(n.Operand), list)
		if n.Negate {
			return opNode("not", node)
		}
		return node
	case *Between:
		node := opNode("between", lowerOperand(n.Operand), lowerOperand(n.Low), lowerOperand(n.High))
		if n.Negate {
			return opNode("not", node)
		}
		return node
	case *Spatial:
		return opNode(string(n.Op), lowerOperand(n.Left), lowerOperand(n.Right))
	}
	return nil
}

func lowerExprs(exprs []Expr) []interface{} {
	out := make([]interface{}, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, Lower(e))
	}
	return out
}

func lowerOperand(o Operand) interface{} {
	switch v := o.(type) {
	case *Property:
		return map[string]interface{}{"property": v.Name}
	case *Literal:
		return v.Value
	case *Geometry:
		return v.Object
	case *Function:
		args := make([]interface{}, 0, len(v.Args))
		for _, a := range v.Args {
			args = append(args, lowerOperand(a))
		}
		return map[string]interface{}{"op": v.Name, "args": args}
	}
	return nil
}

func opNode(op string, args ...interface{}) map[string]interface{} {
	return map[string]interface{}{"op": op, "args": args}
}

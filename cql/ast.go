package cql

// The filter AST is a closed set of node kinds. Both surface syntaxes
// (cql2-text and cql2-json) decode into this one tree; validation and
// lowering are exhaustive switches over it.

type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "<>"
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

type SpatialOp string

const (
	OpIntersects SpatialOp = "s_intersects"
	OpContains   SpatialOp = "s_contains"
	OpWithin     SpatialOp = "s_within"
	OpDisjoint   SpatialOp = "s_disjoint"
)

// Expr is a boolean-valued filter node.
type Expr interface {
	isExpr()
}

// Operand is a scalar-valued node used inside predicates.
type Operand interface {
	isOperand()
}

type And struct {
	Exprs []Expr
}

type Or struct {
	Exprs []Expr
}

type Not struct {
	Expr Expr
}

type Comparison struct {
	Op    CompareOp
	Left  Operand
	Right Operand
}

type IsNull struct {
	Operand Operand
	Negate  bool
}

type Like struct {
	Operand Operand
	Pattern string
	Negate  bool
}

type In struct {
	Operand Operand
	List    []Operand
	Negate  bool
}

type Between struct {
	Operand Operand
	Low     Operand
	High    Operand
	Negate  bool
}

type Spatial struct {
	Op   SpatialOp
	Left Operand
	Right Operand
}

func (*And) isExpr()        {}
func (*Or) isExpr()         {}
func (*Not) isExpr()        {}
func (*Comparison) isExpr() {}
func (*IsNull) isExpr()     {}
func (*Like) isExpr()       {}
func (*In) isExpr()         {}
func (*Between) isExpr()    {}
func (*Spatial) isExpr()    {}

// Property references a queryable attribute by name.
type Property struct {
	Name string
}

// Literal holds a string, float64 or bool value.
type Literal struct {
	Value interface{}
}

// Geometry holds a GeoJSON geometry object verbatim. Coordinates are opaque
// payload, never reinterpreted.
type Geometry struct {
	Object map[string]interface{}
}

// Function is a call to a registered scalar function.
type Function struct {
	Name string
	Args []Operand
}

func (*Property) isOperand() {}
func (*Literal) isOperand()  {}
func (*Geometry) isOperand() {}
func (*Function) isOperand() {}

package query

import (
	"strings"

	"github.com/secsim/go-kql/kql"
)

// Expression is a node in an expression tree evaluated per row.
type Expression interface {
	exprNode()
	String() string
}

// Literal is a typed constant.
type Literal struct {
	Value kql.Value
	Type  kql.Type
}

func (Literal) exprNode() {}
func (l Literal) String() string {
	if l.Type == kql.TypeString {
		return "'" + strings.ReplaceAll(kql.FormatValue(l.Value), "'", "\\'") + "'"
	}
	return kql.FormatValue(l.Value)
}

// ColumnRef references a column of the current schema by name.
type ColumnRef struct {
	Name string
}

func (ColumnRef) exprNode()        {}
func (c ColumnRef) String() string { return c.Name }

// BinaryOp enumerates binary operators, including the string
// predicates, which bind at comparison precedence.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpContains
	OpStartsWith
	OpEndsWith
	OpHas
	OpMatchesRegex
)

var binaryOpNames = map[BinaryOp]string{
	OpEq:           "==",
	OpNeq:          "!=",
	OpLt:           "<",
	OpLte:          "<=",
	OpGt:           ">",
	OpGte:          ">=",
	OpAdd:          "+",
	OpSub:          "-",
	OpMul:          "*",
	OpDiv:          "/",
	OpAnd:          "and",
	OpOr:           "or",
	OpContains:     "contains",
	OpStartsWith:   "startswith",
	OpEndsWith:     "endswith",
	OpHas:          "has",
	OpMatchesRegex: "matches regex",
}

// String returns the operator's source spelling.
func (op BinaryOp) String() string { return binaryOpNames[op] }

// IsComparison reports whether the operator yields bool from two
// comparable operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// IsStringPredicate reports whether the operator is one of the string
// matching predicates.
func (op BinaryOp) IsStringPredicate() bool {
	switch op {
	case OpContains, OpStartsWith, OpEndsWith, OpHas, OpMatchesRegex:
		return true
	}
	return false
}

// Binary applies a binary operator to two subexpressions.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (Binary) exprNode() {}
func (b Binary) String() string {
	return b.Left.String() + " " + b.Op.String() + " " + b.Right.String()
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

// String returns the operator's source spelling.
func (op UnaryOp) String() string {
	if op == OpNot {
		return "not"
	}
	return "-"
}

// Unary applies a unary operator to a subexpression.
type Unary struct {
	Op   UnaryOp
	Expr Expression
}

func (Unary) exprNode() {}
func (u Unary) String() string {
	if u.Op == OpNot {
		return "not " + u.Expr.String()
	}
	return "-" + u.Expr.String()
}

// Call invokes a scalar function. Inside summarize, aggregate
// functions are parsed into Aggregation nodes instead; an aggregate
// name in scalar position still parses as a Call, and the planner
// rejects it.
type Call struct {
	Fn   string
	Args []Expression
}

func (Call) exprNode() {}
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Fn + "(" + strings.Join(args, ", ") + ")"
}

// aggregateFns is the set of functions legal only inside summarize.
var aggregateFns = map[string]bool{
	"count":     true,
	"sum":       true,
	"avg":       true,
	"min":       true,
	"max":       true,
	"dcount":    true,
	"make_list": true,
}

// IsAggregateFn reports whether name (case-insensitive) is an
// aggregation function.
func IsAggregateFn(name string) bool {
	return aggregateFns[strings.ToLower(name)]
}

package planner

import (
	"fmt"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// inferType resolves the result type of a scalar expression against a
// schema. Any failure is a SemanticError: unknown columns, misplaced
// aggregations, and operand type mismatches are all caught here, before
// a single row is inspected.
func inferType(expr query.Expression, schema kql.Schema) (kql.Type, error) {
	switch node := expr.(type) {
	case query.Literal:
		return node.Type, nil

	case query.ColumnRef:
		idx := schema.IndexOf(node.Name)
		if idx < 0 {
			return kql.TypeNull, unknownColumn(node.Name, schema)
		}
		return schema[idx].Type, nil

	case query.Unary:
		return inferUnary(node, schema)

	case query.Binary:
		return inferBinary(node, schema)

	case query.Call:
		return inferCall(node, schema)
	}
	return kql.TypeNull, kql.ErrInternal.New(fmt.Sprintf("unhandled expression node %T", expr))
}

func inferUnary(node query.Unary, schema kql.Schema) (kql.Type, error) {
	t, err := inferType(node.Expr, schema)
	if err != nil {
		return kql.TypeNull, err
	}
	switch node.Op {
	case query.OpNot:
		if t != kql.TypeBool {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("not requires bool, got %s", t))
		}
		return kql.TypeBool, nil
	case query.OpNeg:
		if t.IsNumeric() || t == kql.TypeTimespan {
			return t, nil
		}
		return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("unary minus requires a numeric or timespan operand, got %s", t))
	}
	return kql.TypeNull, kql.ErrInternal.New(fmt.Sprintf("unhandled unary op %d", node.Op))
}

func inferBinary(node query.Binary, schema kql.Schema) (kql.Type, error) {
	lt, err := inferType(node.Left, schema)
	if err != nil {
		return kql.TypeNull, err
	}
	rt, err := inferType(node.Right, schema)
	if err != nil {
		return kql.TypeNull, err
	}

	switch {
	case node.Op == query.OpAnd || node.Op == query.OpOr:
		if lt != kql.TypeBool || rt != kql.TypeBool {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s requires bool operands, got %s and %s", node.Op, lt, rt))
		}
		return kql.TypeBool, nil

	case node.Op.IsComparison():
		if !comparableTypes(lt, rt) {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("cannot compare %s to %s", lt, rt))
		}
		return kql.TypeBool, nil

	case node.Op.IsStringPredicate():
		if lt != kql.TypeString || rt != kql.TypeString {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s requires string operands, got %s and %s", node.Op, lt, rt))
		}
		return kql.TypeBool, nil

	case node.Op == query.OpAdd || node.Op == query.OpSub:
		return inferAdditive(node.Op, lt, rt)

	case node.Op == query.OpMul || node.Op == query.OpDiv:
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s requires numeric operands, got %s and %s", node.Op, lt, rt))
		}
		if lt == kql.TypeReal || rt == kql.TypeReal {
			return kql.TypeReal, nil
		}
		return kql.TypeInt, nil
	}
	return kql.TypeNull, kql.ErrInternal.New(fmt.Sprintf("unhandled binary op %d", node.Op))
}

// inferAdditive types + and -. Date arithmetic is restricted to
// datetime - datetime = timespan and datetime ± timespan = datetime,
// plus the commuted timespan + datetime = datetime; everything else on
// dates is rejected.
func inferAdditive(op query.BinaryOp, lt, rt kql.Type) (kql.Type, error) {
	switch {
	case lt.IsNumeric() && rt.IsNumeric():
		if lt == kql.TypeReal || rt == kql.TypeReal {
			return kql.TypeReal, nil
		}
		return kql.TypeInt, nil
	case lt == kql.TypeDateTime && rt == kql.TypeTimespan:
		return kql.TypeDateTime, nil
	case lt == kql.TypeTimespan && rt == kql.TypeDateTime && op == query.OpAdd:
		return kql.TypeDateTime, nil
	case lt == kql.TypeDateTime && rt == kql.TypeDateTime && op == query.OpSub:
		return kql.TypeTimespan, nil
	case lt == kql.TypeTimespan && rt == kql.TypeTimespan:
		return kql.TypeTimespan, nil
	}
	return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("invalid operands for %s: %s and %s", op, lt, rt))
}

func comparableTypes(a, b kql.Type) bool {
	if a == b {
		return true
	}
	return a.IsNumeric() && b.IsNumeric()
}

func inferCall(node query.Call, schema kql.Schema) (kql.Type, error) {
	if query.IsAggregateFn(node.Fn) {
		return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("aggregation function %s() is only valid inside summarize", node.Fn))
	}

	argTypes := make([]kql.Type, len(node.Args))
	for i, arg := range node.Args {
		t, err := inferType(arg, schema)
		if err != nil {
			return kql.TypeNull, err
		}
		argTypes[i] = t
	}

	switch node.Fn {
	case "now":
		if len(node.Args) != 0 {
			return kql.TypeNull, arityError(node.Fn, 0, len(node.Args))
		}
		return kql.TypeDateTime, nil

	case "ago":
		if len(node.Args) != 1 {
			return kql.TypeNull, arityError(node.Fn, 1, len(node.Args))
		}
		if argTypes[0] != kql.TypeTimespan {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("ago requires a timespan, got %s", argTypes[0]))
		}
		return kql.TypeDateTime, nil

	case "bin":
		if len(node.Args) != 2 {
			return kql.TypeNull, arityError(node.Fn, 2, len(node.Args))
		}
		if argTypes[0] != kql.TypeDateTime || argTypes[1] != kql.TypeTimespan {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("bin requires (datetime, timespan), got (%s, %s)", argTypes[0], argTypes[1]))
		}
		return kql.TypeDateTime, nil

	case "iif", "iff":
		if len(node.Args) != 3 {
			return kql.TypeNull, arityError(node.Fn, 3, len(node.Args))
		}
		if argTypes[0] != kql.TypeBool {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s condition must be bool, got %s", node.Fn, argTypes[0]))
		}
		if argTypes[1] != argTypes[2] {
			return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("%s branches must have the same type, got %s and %s", node.Fn, argTypes[1], argTypes[2]))
		}
		return argTypes[1], nil

	case "case":
		if len(node.Args) < 3 || len(node.Args)%2 == 0 {
			return kql.TypeNull, kql.ErrSemantic.New("case requires condition/value pairs and a default value")
		}
		valueType := argTypes[len(argTypes)-1]
		for i := 0; i+1 < len(argTypes); i += 2 {
			if argTypes[i] != kql.TypeBool {
				return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("case condition %d must be bool, got %s", i/2+1, argTypes[i]))
			}
			if argTypes[i+1] != valueType {
				return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("case values must share one type, got %s and %s", argTypes[i+1], valueType))
			}
		}
		return valueType, nil

	case "tostring":
		return convType(node.Fn, kql.TypeString, node.Args)
	case "toint":
		return convType(node.Fn, kql.TypeInt, node.Args)
	case "todouble":
		return convType(node.Fn, kql.TypeReal, node.Args)
	case "tobool":
		return convType(node.Fn, kql.TypeBool, node.Args)
	}
	return kql.TypeNull, kql.ErrSemantic.New(fmt.Sprintf("unknown function %q", node.Fn))
}

func convType(fn string, out kql.Type, args []query.Expression) (kql.Type, error) {
	if len(args) != 1 {
		return kql.TypeNull, arityError(fn, 1, len(args))
	}
	return out, nil
}

func arityError(fn string, want, got int) error {
	return kql.ErrSemantic.New(fmt.Sprintf("%s expects %d argument(s), got %d", fn, want, got))
}

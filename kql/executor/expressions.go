package executor

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// evalContext carries the per-query evaluation state: the captured
// now() instant, the compiled-regex cache, and the row currently bound.
type evalContext struct {
	now     time.Time
	schema  kql.Schema
	row     kql.Row
	regexps map[string]*regexp.Regexp
}

func newEvalContext(now time.Time) *evalContext {
	return &evalContext{now: now, regexps: make(map[string]*regexp.Regexp)}
}

func (ctx *evalContext) bind(schema kql.Schema, row kql.Row) {
	ctx.schema = schema
	ctx.row = row
}

func (ctx *evalContext) regex(pattern string) (*regexp.Regexp, error) {
	if re, ok := ctx.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, kql.ErrEval.New(fmt.Sprintf("invalid regular expression %q: %v", pattern, err))
	}
	ctx.regexps[pattern] = re
	return re, nil
}

// evalExpr evaluates an expression against the bound row. Null
// propagates through arithmetic and comparisons; boolean context
// treats it as false.
func (e *Executor) evalExpr(ctx *evalContext, expr query.Expression) (kql.Value, error) {
	switch node := expr.(type) {
	case query.Literal:
		return node.Value, nil

	case query.ColumnRef:
		idx := ctx.schema.IndexOf(node.Name)
		if idx < 0 || idx >= len(ctx.row) {
			return nil, kql.ErrInternal.New(fmt.Sprintf("column %q missing at evaluation time", node.Name))
		}
		return ctx.row[idx], nil

	case query.Unary:
		return e.evalUnary(ctx, node)

	case query.Binary:
		return e.evalBinary(ctx, node)

	case query.Call:
		return e.evalCall(ctx, node)
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled expression node %T", expr))
}

func (e *Executor) evalUnary(ctx *evalContext, node query.Unary) (kql.Value, error) {
	v, err := e.evalExpr(ctx, node.Expr)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	switch node.Op {
	case query.OpNot:
		b, ok := v.(bool)
		if !ok {
			return nil, kql.ErrEval.New(fmt.Sprintf("not requires bool, got %s", kql.TypeOf(v)))
		}
		return !b, nil
	case query.OpNeg:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		case time.Duration:
			return -n, nil
		}
		return nil, kql.ErrEval.New(fmt.Sprintf("cannot negate %s", kql.TypeOf(v)))
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled unary op %d", node.Op))
}

func (e *Executor) evalBinary(ctx *evalContext, node query.Binary) (kql.Value, error) {
	// and/or short-circuit; null counts as false on either side.
	if node.Op == query.OpAnd || node.Op == query.OpOr {
		l, err := e.evalExpr(ctx, node.Left)
		if err != nil {
			return nil, err
		}
		if node.Op == query.OpAnd && !truthy(l) {
			return false, nil
		}
		if node.Op == query.OpOr && truthy(l) {
			return true, nil
		}
		r, err := e.evalExpr(ctx, node.Right)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := e.evalExpr(ctx, node.Left)
	if err != nil {
		return nil, err
	}
	r, err := e.evalExpr(ctx, node.Right)
	if err != nil {
		return nil, err
	}

	switch {
	case node.Op.IsComparison():
		if l == nil || r == nil {
			return nil, nil
		}
		c, err := kql.CompareValues(l, r)
		if err != nil {
			return nil, kql.ErrEval.New(err.Error())
		}
		switch node.Op {
		case query.OpEq:
			return c == 0, nil
		case query.OpNeq:
			return c != 0, nil
		case query.OpLt:
			return c < 0, nil
		case query.OpLte:
			return c <= 0, nil
		case query.OpGt:
			return c > 0, nil
		case query.OpGte:
			return c >= 0, nil
		}

	case node.Op.IsStringPredicate():
		return ctx.evalStringPredicate(node.Op, l, r)

	default:
		return evalArithmetic(node.Op, l, r)
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled binary op %d", node.Op))
}

func evalArithmetic(op query.BinaryOp, l, r kql.Value) (kql.Value, error) {
	if l == nil || r == nil {
		return nil, nil
	}

	// datetime/timespan arithmetic
	switch lv := l.(type) {
	case time.Time:
		switch rv := r.(type) {
		case time.Duration:
			switch op {
			case query.OpAdd:
				return lv.Add(rv), nil
			case query.OpSub:
				return lv.Add(-rv), nil
			}
		case time.Time:
			if op == query.OpSub {
				return lv.Sub(rv), nil
			}
		}
		return nil, arithmeticError(op, l, r)
	case time.Duration:
		switch rv := r.(type) {
		case time.Time:
			if op == query.OpAdd {
				return rv.Add(lv), nil
			}
		case time.Duration:
			switch op {
			case query.OpAdd:
				return lv + rv, nil
			case query.OpSub:
				return lv - rv, nil
			}
		}
		return nil, arithmeticError(op, l, r)
	}

	// numeric arithmetic with int/real promotion
	li, lInt := l.(int64)
	lf, lReal := l.(float64)
	ri, rInt := r.(int64)
	rf, rReal := r.(float64)
	if (!lInt && !lReal) || (!rInt && !rReal) {
		return nil, arithmeticError(op, l, r)
	}

	if lInt && rInt {
		switch op {
		case query.OpAdd:
			return li + ri, nil
		case query.OpSub:
			return li - ri, nil
		case query.OpMul:
			return li * ri, nil
		case query.OpDiv:
			if ri == 0 {
				return nil, kql.ErrEval.New("division by zero")
			}
			return li / ri, nil
		}
	}

	if lInt {
		lf = float64(li)
	}
	if rInt {
		rf = float64(ri)
	}
	switch op {
	case query.OpAdd:
		return lf + rf, nil
	case query.OpSub:
		return lf - rf, nil
	case query.OpMul:
		return lf * rf, nil
	case query.OpDiv:
		if rf == 0 {
			return nil, kql.ErrEval.New("division by zero")
		}
		return lf / rf, nil
	}
	return nil, arithmeticError(op, l, r)
}

func arithmeticError(op query.BinaryOp, l, r kql.Value) error {
	return kql.ErrEval.New(fmt.Sprintf("invalid operands for %s: %s and %s", op, kql.TypeOf(l), kql.TypeOf(r)))
}

// evalStringPredicate implements contains/startswith/endswith/has and
// matches regex. All but matches regex are case-insensitive; null on
// either side yields null (false in boolean context).
func (ctx *evalContext) evalStringPredicate(op query.BinaryOp, l, r kql.Value) (kql.Value, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if !lok || !rok {
		return nil, kql.ErrEval.New(fmt.Sprintf("%s requires string operands, got %s and %s", op, kql.TypeOf(l), kql.TypeOf(r)))
	}

	switch op {
	case query.OpContains:
		return strings.Contains(strings.ToLower(ls), strings.ToLower(rs)), nil
	case query.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(ls), strings.ToLower(rs)), nil
	case query.OpEndsWith:
		return strings.HasSuffix(strings.ToLower(ls), strings.ToLower(rs)), nil
	case query.OpHas:
		return hasToken(ls, rs), nil
	case query.OpMatchesRegex:
		re, err := ctx.regex(rs)
		if err != nil {
			return nil, err
		}
		return re.MatchString(ls), nil
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled string predicate %d", op))
}

// hasToken reports whether needle appears in haystack as a whole
// token. Tokens are maximal runs of letters, digits, and underscores;
// matching is case-insensitive.
func hasToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for _, token := range strings.FieldsFunc(haystack, func(r rune) bool {
		return !isWordRune(r)
	}) {
		if strings.EqualFold(token, needle) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

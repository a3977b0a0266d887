package executor

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/query"
)

// evalCall evaluates a scalar function. Branching functions (iif,
// case) evaluate only the branch they select.
func (e *Executor) evalCall(ctx *evalContext, node query.Call) (kql.Value, error) {
	switch node.Fn {
	case "now":
		return ctx.now, nil

	case "ago":
		v, err := e.evalExpr(ctx, node.Args[0])
		if err != nil {
			return nil, err
		}
		d, ok := v.(time.Duration)
		if !ok {
			return nil, nil
		}
		return ctx.now.Add(-d), nil

	case "bin":
		return e.evalBin(ctx, node)

	case "iif", "iff":
		cond, err := e.evalExpr(ctx, node.Args[0])
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.evalExpr(ctx, node.Args[1])
		}
		return e.evalExpr(ctx, node.Args[2])

	case "case":
		for i := 0; i+1 < len(node.Args); i += 2 {
			cond, err := e.evalExpr(ctx, node.Args[i])
			if err != nil {
				return nil, err
			}
			if truthy(cond) {
				return e.evalExpr(ctx, node.Args[i+1])
			}
		}
		return e.evalExpr(ctx, node.Args[len(node.Args)-1])

	case "tostring", "toint", "todouble", "tobool":
		v, err := e.evalExpr(ctx, node.Args[0])
		if err != nil {
			return nil, err
		}
		return convert(node.Fn, v), nil
	}
	return nil, kql.ErrInternal.New(fmt.Sprintf("unhandled function %q", node.Fn))
}

// evalBin truncates a datetime toward the Unix epoch by multiples of
// the given timespan.
func (e *Executor) evalBin(ctx *evalContext, node query.Call) (kql.Value, error) {
	tv, err := e.evalExpr(ctx, node.Args[0])
	if err != nil {
		return nil, err
	}
	dv, err := e.evalExpr(ctx, node.Args[1])
	if err != nil {
		return nil, err
	}
	if tv == nil || dv == nil {
		return nil, nil
	}
	t, tok := tv.(time.Time)
	d, dok := dv.(time.Duration)
	if !tok || !dok {
		return nil, kql.ErrEval.New(fmt.Sprintf("bin requires (datetime, timespan), got (%s, %s)", kql.TypeOf(tv), kql.TypeOf(dv)))
	}
	if d <= 0 {
		return nil, kql.ErrEval.New(fmt.Sprintf("bin requires a positive timespan, got %s", d))
	}

	n := t.UnixNano()
	step := int64(d)
	rem := n % step
	if rem < 0 {
		rem += step
	}
	return time.Unix(0, n-rem).UTC(), nil
}

// convert implements the to*() coercions. Conversion failure yields
// null, per the best-effort contract.
func convert(fn string, v kql.Value) kql.Value {
	if v == nil {
		if fn == "tostring" {
			return ""
		}
		return nil
	}

	switch fn {
	case "tostring":
		return kql.FormatValue(v)
	case "toint":
		if d, ok := v.(time.Duration); ok {
			return int64(d)
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil
		}
		return n
	case "todouble":
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil
		}
		return f
	case "tobool":
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

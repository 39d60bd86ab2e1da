package commands

import (
	"errors"

	"github.com/crystal-mush/arxscript/pkg/script"
)

func cmdSet(ctx *script.Context) script.Result {
	if ctx.Flags("a").Has('a') {
		ctx.Warnf("-a is obsolete and ignored")
	}
	name := ctx.Word()
	val := ctx.Word()

	typ := script.ParseVarType(name)
	var err error
	switch {
	case typ.Text():
		err = ctx.SetText(name, ctx.StringVar(val))
	case typ.Numeric():
		err = ctx.SetNumber(name, ctx.FloatVar(val))
	default:
		ctx.Warnf("unknown variable type for %q", name)
		return script.Failed
	}
	return assigned(ctx, name, err)
}

func cmdUnset(ctx *script.Context) script.Result {
	name := ctx.Word()
	if script.ParseVarType(name) == script.VarNone {
		ctx.Warnf("unknown variable type for %q", name)
		return script.Failed
	}
	ctx.Unset(name)
	return script.Success
}

// arith implements inc, dec, mul and div on numeric variables. Division by
// zero stores zero.
func arith(op string) handler {
	return func(ctx *script.Context) script.Result {
		name := ctx.Word()
		v := ctx.Float()

		typ := script.ParseVarType(name)
		if !typ.Numeric() {
			ctx.Warnf("%q is not a numeric variable", name)
			return script.Failed
		}
		cur := 0.0
		if old, ok := ctx.Var(name); ok {
			cur = old.Number
		}
		switch op {
		case "inc":
			cur += v
		case "dec":
			cur -= v
		case "mul":
			cur *= v
		case "div":
			if v == 0 {
				cur = 0
			} else {
				cur /= v
			}
		}
		return assigned(ctx, name, ctx.SetNumber(name, cur))
	}
}

// step implements ++ and --.
func step(delta float64) handler {
	return func(ctx *script.Context) script.Result {
		name := ctx.Word()
		if !script.ParseVarType(name).Numeric() {
			ctx.Warnf("%q is not a numeric variable", name)
			return script.Failed
		}
		cur := 0.0
		if old, ok := ctx.Var(name); ok {
			cur = old.Number
		}
		return assigned(ctx, name, ctx.SetNumber(name, cur+delta))
	}
}

func assigned(ctx *script.Context, name string, err error) script.Result {
	if err == nil {
		return script.Success
	}
	if errors.Is(err, script.ErrTableFull) {
		ctx.Warnf("cannot create %s: variable table full", name)
	} else {
		ctx.Warnf("%v", err)
	}
	return script.Failed
}

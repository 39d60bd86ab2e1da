package commands

import (
	"strings"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

func cmdNop(*script.Context) script.Result { return script.Success }

func cmdAccept(*script.Context) script.Result { return script.AbortAccept }

func cmdRefuse(*script.Context) script.Result { return script.AbortRefuse }

func cmdGoto(ctx *script.Context) script.Result {
	label := ctx.Lowercase()
	if ctx.HasMore() {
		ctx.Warnf("unexpected text after label: %q", ctx.Rest())
	}
	return ctx.Goto(label)
}

func cmdGosub(ctx *script.Context) script.Result {
	label := ctx.Lowercase()
	if ctx.HasMore() {
		ctx.Warnf("unexpected text after label: %q", ctx.Rest())
	}
	return ctx.Gosub(label)
}

func cmdReturn(ctx *script.Context) script.Result {
	return ctx.Return()
}

// random N runs the next statement with probability N percent.
func cmdRandom(ctx *script.Context) script.Result {
	chance := clamp(ctx.Float(), 0, 100)
	if ctx.Random()*100 >= chance {
		ctx.SkipStatement()
		return script.Jumped
	}
	return script.Success
}

func cmdElse(ctx *script.Context) script.Result {
	ctx.SkipBody()
	return script.Jumped
}

// cmdIf evaluates "left op right" and skips the next statement when false.
func cmdIf(ctx *script.Context) script.Result {
	left := ctx.Word()
	name := ctx.Lowercase()
	right := ctx.Word()

	if !evalCondition(ctx, left, name, right) {
		ctx.SkipStatement()
		return script.Jumped
	}
	return script.Success
}

type operator struct {
	kind script.ValueKind // preferred kind of the left operand
	num  func(l, r float64) bool
	text func(ctx *script.Context, l, r string) bool
}

var operators = map[string]operator{
	"==": {kind: script.KindNumber,
		num:  func(l, r float64) bool { return l == r },
		text: func(_ *script.Context, l, r string) bool { return l == r }},
	"!=": {kind: script.KindNumber,
		num:  func(l, r float64) bool { return l != r },
		text: func(_ *script.Context, l, r string) bool { return l != r }},
	"<=": {kind: script.KindNumber, num: func(l, r float64) bool { return l <= r }},
	"<":  {kind: script.KindNumber, num: func(l, r float64) bool { return l < r }},
	">=": {kind: script.KindNumber, num: func(l, r float64) bool { return l >= r }},
	">":  {kind: script.KindNumber, num: func(l, r float64) bool { return l > r }},
	"iselement": {kind: script.KindText, text: func(_ *script.Context, l, r string) bool {
		for _, w := range strings.Fields(r) {
			if w == l {
				return true
			}
		}
		return false
	}},
	"isclass": {kind: script.KindText, text: func(_ *script.Context, l, r string) bool {
		return strings.Contains(l, r) || strings.Contains(r, l)
	}},
	"isgroup": {kind: script.KindText, text: func(ctx *script.Context, l, r string) bool {
		e := resolveEntity(ctx, l)
		return e != nil && e.InGroup(r)
	}},
	"!isgroup": {kind: script.KindText, text: func(ctx *script.Context, l, r string) bool {
		e := resolveEntity(ctx, l)
		return e != nil && !e.InGroup(r)
	}},
	"istype": {kind: script.KindText, text: func(ctx *script.Context, l, r string) bool {
		t, ok := gamedb.ParseItemType(r)
		if !ok {
			ctx.Warnf("unknown item type %q", r)
			return false
		}
		e := resolveEntity(ctx, l)
		return e != nil && e.Types&t != 0
	}},
	"isin": {kind: script.KindText, text: func(_ *script.Context, l, r string) bool {
		return strings.Contains(r, l)
	}},
}

func evalCondition(ctx *script.Context, left, name, right string) bool {
	op, ok := operators[name]
	if !ok {
		ctx.Warnf("unknown operator %q", name)
		return false
	}
	l := ctx.Resolve(left, op.kind)
	r := ctx.Resolve(right, l.Kind)
	if l.Kind != r.Kind {
		ctx.Warnf("cannot compare %s %q with %s %q", l.Kind, left, r.Kind, right)
		return false
	}
	if l.Kind == script.KindNumber {
		if op.num == nil {
			ctx.Warnf("operator %s needs text operands", name)
			return false
		}
		return op.num(l.Number, r.Number)
	}
	if op.text == nil {
		ctx.Warnf("operator %s needs numeric operands", name)
		return false
	}
	return op.text(ctx, strings.ToLower(l.Text), strings.ToLower(r.Text))
}

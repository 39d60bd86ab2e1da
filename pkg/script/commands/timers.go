package commands

import (
	"strings"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// settimer [-mi] name count|off duration
// settimer kill_local
// The statement after an armed timer is its body: the arming pass skips it
// and each firing runs it.
func cmdSetTimer(ctx *script.Context) script.Result {
	flags := ctx.Flags("mi")
	name := ctx.Word()
	switch strings.ToLower(name) {
	case "kill_local":
		ctx.Runtime().KillTimers(ctx.Entity().Ref)
		return script.Success
	case "off", "":
		ctx.Warnf("missing timer name")
		return script.Failed
	}
	return armTimer(ctx, flags, name)
}

// timer<name> [-mi] count|off|kill_local duration
func cmdTimer(ctx *script.Context) script.Result {
	flags := ctx.Flags("mi")
	return armTimer(ctx, flags, strings.TrimPrefix(ctx.CommandName(), "timer"))
}

func armTimer(ctx *script.Context, flags script.Flags, name string) script.Result {
	rt := ctx.Runtime()
	self := ctx.Entity()

	word := ctx.Lowercase()
	switch word {
	case "kill_local":
		rt.KillTimers(self.Ref)
		return script.Success
	case "off":
		rt.CancelTimer(name, self.Ref)
		return script.Success
	case "":
		ctx.Warnf("missing count for timer %q", name)
		return script.Failed
	}
	if !ctx.HasMore() {
		ctx.Warnf("missing duration for timer %q", name)
		return script.Failed
	}

	if name == "" || name == "*" {
		name = rt.TimerName(self.Ref)
	}
	var count int64
	switch word {
	case "infinite", "inf":
		count = script.TimerInfinite
	default:
		c := ctx.FloatVar(word)
		if c < 0 {
			count = script.TimerInfinite
		} else {
			count = int64(c)
		}
	}
	period := ctx.Float()
	if !flags.Has('m') {
		period *= 1000
	}
	if period < 0 {
		period = 0
	}

	if !ctx.OwnsBody() {
		ctx.Warnf("timer %q has no statement to run", name)
		return script.Failed
	}
	resume := ctx.NextOffset()
	ctx.SkipBody()
	if count == 0 {
		rt.CancelTimer(name, self.Ref)
		return script.Jumped
	}
	if _, err := rt.ArmTimer(ctx.Instance(), name, resume, count, int64(period), flags.Has('i')); err != nil {
		ctx.Errorf("cannot arm %s: %v", name, err)
		return script.Failed
	}
	return script.Jumped
}

func clockSlot(ctx *script.Context) (int, bool) {
	name := ctx.Lowercase()
	switch name {
	case "timer1":
		return 0, true
	case "timer2":
		return 1, true
	case "timer3":
		return 2, true
	case "timer4":
		return 3, true
	}
	ctx.Warnf("invalid stopwatch %q", name)
	return 0, false
}

// starttimer timerN starts one of the four stopwatches read via ^#timerN.
func cmdStartTimer(ctx *script.Context) script.Result {
	i, ok := clockSlot(ctx)
	if !ok {
		return script.Failed
	}
	now := ctx.Now()
	if now == 0 {
		now = 1
	}
	ctx.Instance().Clocks[i] = now
	return script.Success
}

func cmdStopTimer(ctx *script.Context) script.Result {
	i, ok := clockSlot(ctx)
	if !ok {
		return script.Failed
	}
	ctx.Instance().Clocks[i] = 0
	return script.Success
}

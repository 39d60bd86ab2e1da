// Package commands implements the built-in script commands.
package commands

import (
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

type handler func(ctx *script.Context) script.Result

type command struct {
	script.Base
	run handler
}

func (c *command) Execute(ctx *script.Context) script.Result {
	if !ctx.Applicable(c) {
		return script.Failed
	}
	return c.run(ctx)
}

// RegisterAll adds every built-in command to r.
func RegisterAll(r *script.Registry) {
	register := func(name string, requires gamedb.IOFlags, h handler) {
		r.Register(&command{Base: script.NewBase(name, requires), run: h})
	}
	anyIO := gamedb.AnyIO
	npc := gamedb.IONPC

	// Flow
	register("nop", anyIO, cmdNop)
	register("goto", anyIO, cmdGoto)
	register("gosub", anyIO, cmdGosub)
	register("return", anyIO, cmdReturn)
	register("accept", anyIO, cmdAccept)
	register("refuse", anyIO, cmdRefuse)
	register("random", anyIO, cmdRandom)
	register("if", anyIO, cmdIf)
	register("else", anyIO, cmdElse)

	// Variables
	register("set", anyIO, cmdSet)
	register("unset", anyIO, cmdUnset)
	register("inc", anyIO, arith("inc"))
	register("dec", anyIO, arith("dec"))
	register("mul", anyIO, arith("mul"))
	register("div", anyIO, arith("div"))
	register("++", anyIO, step(1))
	register("--", anyIO, step(-1))

	// Events
	register("sendevent", anyIO, cmdSendEvent)
	register("setevent", anyIO, cmdSetEvent)
	register("setmainevent", anyIO, cmdSetMainEvent)
	register("setstatus", anyIO, cmdSetMainEvent)

	// Timers
	register("settimer", anyIO, cmdSetTimer)
	register("starttimer", anyIO, cmdStartTimer)
	register("stoptimer", anyIO, cmdStopTimer)
	r.RegisterPrefix(&command{Base: script.NewBase("timer", anyIO), run: cmdTimer})

	// NPC
	register("behavior", npc, cmdBehavior)
	register("revive", anyIO, cmdRevive)
	register("spellcast", anyIO, cmdSpellcast)
	register("setdetect", npc, cmdSetDetect)
	register("setblood", npc, cmdSetBlood)
	register("setspeed", npc, cmdSetSpeed)
	register("setstarefactor", npc, cmdSetStareFactor)
	register("setnpcstat", npc, cmdSetNPCStat)
	register("setxpvalue", npc, cmdSetXPValue)
	register("setmovemode", npc, cmdSetMoveMode)
	register("setlife", npc, cmdSetLife)
	register("settarget", anyIO, cmdSetTarget)
	register("forcedeath", anyIO, cmdForceDeath)
	register("pathfind", npc, cmdPathfind)
}

// NewRegistry returns a registry holding every built-in command.
func NewRegistry() *script.Registry {
	r := script.NewRegistry()
	RegisterAll(r)
	return r
}

// resolveEntity turns a target word into an entity; "self" and "me" name
// the running entity.
func resolveEntity(ctx *script.Context, name string) *gamedb.Entity {
	db := ctx.Runtime().DB
	ref := db.LookupTarget(name)
	if ref == gamedb.Self {
		return ctx.Entity()
	}
	return db.Get(ref)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package commands

import (
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

func npcData(ctx *script.Context) (*gamedb.NPCData, bool) {
	if n := ctx.Entity().NPC; n != nil {
		return n, true
	}
	ctx.Warnf("entity has no NPC data")
	return nil, false
}

// behavior [-lsdmfa012] stack|unstack|unstackall|go_home|friendly|move_to|
// flee N|look_for N|hide N|wander_around N|guard|none
func cmdBehavior(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	e := ctx.Entity()
	flags := ctx.Flags("lsdmfa012")
	word := ctx.Lowercase()

	switch word {
	case "stack":
		npc.PushBehavior(e.Target)
		return script.Success
	case "unstack":
		if top, ok := npc.PopBehavior(); ok {
			e.Target = top.Target
		}
		ctx.Runtime().Services.Replan(e)
		return script.Success
	case "unstackall":
		var top gamedb.BehaviorState
		popped := false
		for {
			s, ok := npc.PopBehavior()
			if !ok {
				break
			}
			top, popped = s, true
		}
		if popped {
			e.Target = top.Target
		}
		ctx.Runtime().Services.Replan(e)
		return script.Success
	}

	if flags != "" {
		npc.Behavior = 0
		for _, f := range []struct {
			c byte
			b gamedb.Behavior
		}{
			{'l', gamedb.BehaviorLookAround},
			{'s', gamedb.BehaviorSneak},
			{'d', gamedb.BehaviorDistance},
			{'m', gamedb.BehaviorMagic},
			{'f', gamedb.BehaviorFight},
			{'a', gamedb.BehaviorStareAt},
		} {
			if flags.Has(f.c) {
				npc.Behavior |= f.b
			}
		}
		switch {
		case flags.Has('0'):
			npc.Tactics = gamedb.TacticsNormal
		case flags.Has('1'):
			npc.Tactics = gamedb.TacticsSneak
		case flags.Has('2'):
			npc.Tactics = gamedb.TacticsFight
		}
	}

	switch word {
	case "go_home":
		npc.Behavior |= gamedb.BehaviorGoHome
	case "friendly":
		npc.Behavior |= gamedb.BehaviorFriendly
		npc.MoveMode = gamedb.MoveNone
	case "move_to":
		npc.Behavior |= gamedb.BehaviorMoveTo
		npc.MoveMode = gamedb.MoveWalk
	case "flee":
		npc.Behavior |= gamedb.BehaviorFlee
		npc.BehaviorParam = ctx.Float()
		npc.MoveMode = gamedb.MoveRun
	case "look_for":
		npc.Behavior |= gamedb.BehaviorLookFor
		npc.BehaviorParam = ctx.Float()
		npc.MoveMode = gamedb.MoveWalk
	case "hide":
		npc.Behavior |= gamedb.BehaviorHide
		npc.BehaviorParam = ctx.Float()
		npc.MoveMode = gamedb.MoveWalk
	case "wander_around":
		npc.Behavior |= gamedb.BehaviorWanderAround
		npc.BehaviorParam = ctx.Float()
		npc.MoveMode = gamedb.MoveWalk
	case "guard":
		npc.Behavior |= gamedb.BehaviorGuard
		e.Target = gamedb.Nothing
		npc.MoveMode = gamedb.MoveNone
	case "none":
		npc.Behavior = gamedb.BehaviorNone
		npc.MoveMode = gamedb.MoveNone
	default:
		ctx.Warnf("unknown behavior %q", word)
		return script.Failed
	}
	ctx.Runtime().Services.Replan(e)
	return script.Success
}

// revive [-i] restores a dead entity; -i runs its init again.
func cmdRevive(ctx *script.Context) script.Result {
	flags := ctx.Flags("i")
	e := ctx.Entity()
	e.Alive = true
	if e.NPC != nil {
		e.NPC.Life = e.NPC.MaxLife
	}
	ctx.Runtime().Services.Revive(e, flags.Has('i'))
	return script.Success
}

// spellcast [-kdxmsfz] [duration] level spell target
// spellcast -k spell
func cmdSpellcast(ctx *script.Context) script.Result {
	flags := ctx.Flags("kdxmsfz")
	e := ctx.Entity()
	svc := ctx.Runtime().Services

	if flags.Has('k') {
		spell := ctx.Lowercase()
		svc.EndSpell(e, spell)
		return script.Success
	}
	duration := int64(-1)
	if flags.Has('d') {
		duration = int64(ctx.Float())
	}
	level := int(clamp(ctx.Float(), 1, 10))
	spell := ctx.Lowercase()
	if spell == "" {
		ctx.Warnf("missing spell name")
		return script.Failed
	}
	target := gamedb.Nothing
	if word := ctx.StringVar(ctx.Lowercase()); word != "" {
		t := resolveEntity(ctx, word)
		if t == nil {
			ctx.Warnf("unknown spell target %q", word)
			return script.Failed
		}
		target = t.Ref
	}
	if duration < 0 {
		duration = 1000 + int64(level)*2000
	}
	cast := script.SpellCast{Spell: spell, Level: level, Target: target, Duration: duration, Flags: string(flags)}
	if !svc.CastSpell(e, cast) {
		ctx.Warnf("cannot cast %s", spell)
		return script.Failed
	}
	return script.Success
}

// setdetect off|N sets the detection skill (clamped to -1..100).
func cmdSetDetect(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	word := ctx.Lowercase()
	if word == "off" {
		npc.Detect = -1
	} else {
		npc.Detect = int(clamp(ctx.FloatVar(word), -1, 100))
	}
	return script.Success
}

// setblood r g b takes components in 0..1.
func cmdSetBlood(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	for i := range npc.Blood {
		npc.Blood[i] = uint8(clamp(ctx.Float(), 0, 1) * 255)
	}
	return script.Success
}

func cmdSetSpeed(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	npc.Speed = clamp(ctx.Float(), 0, 10)
	ctx.Runtime().Services.Replan(ctx.Entity())
	return script.Success
}

func cmdSetStareFactor(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	npc.StareFactor = ctx.Float()
	return script.Success
}

// setnpcstat stat value
func cmdSetNPCStat(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	stat := ctx.Lowercase()
	v := ctx.Float()
	if !npc.SetStat(stat, v) {
		ctx.Warnf("unknown stat %q", stat)
		return script.Failed
	}
	return script.Success
}

func cmdSetXPValue(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	v := ctx.Float()
	if v < 0 {
		v = 0
	}
	npc.XPValue = int64(v)
	return script.Success
}

func cmdSetMoveMode(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	word := ctx.Lowercase()
	mode, ok := gamedb.ParseMoveMode(word)
	if !ok {
		ctx.Warnf("unknown move mode %q", word)
		return script.Failed
	}
	npc.MoveMode = mode
	ctx.Runtime().Services.Replan(ctx.Entity())
	return script.Success
}

// setlife N sets both current and maximum life.
func cmdSetLife(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	v := ctx.Float()
	npc.Life = v
	npc.MaxLife = v
	return script.Success
}

// settarget [-san] [object] target|path|none
func cmdSetTarget(ctx *script.Context) script.Result {
	flags := ctx.Flags("san")
	e := ctx.Entity()

	word := ctx.Lowercase()
	if word == "object" {
		word = ctx.Lowercase()
	}
	name := ctx.StringVar(word)

	ref := gamedb.Nothing
	switch name {
	case "path", "none", "":
	default:
		t := resolveEntity(ctx, name)
		if t == nil {
			ctx.Warnf("unknown target %q", name)
			return script.Failed
		}
		ref = t.Ref
	}
	e.Target = ref
	if e.NPC != nil {
		e.NPC.PathOnce = flags.Has('s')
		e.NPC.PathAlways = flags.Has('a')
		e.NPC.PathNoUpdate = flags.Has('n')
		ctx.Runtime().Services.Replan(e)
	}
	return script.Success
}

// forcedeath target kills target on behalf of the running entity.
func cmdForceDeath(ctx *script.Context) script.Result {
	word := ctx.StringVar(ctx.Lowercase())
	victim := resolveEntity(ctx, word)
	if victim == nil {
		ctx.Warnf("unknown target %q", word)
		return script.Failed
	}
	victim.Alive = false
	if victim.NPC != nil {
		victim.NPC.Life = 0
	}
	ctx.Runtime().Services.ForceDeath(victim, ctx.Entity())
	return script.Success
}

// pathfind target asks for a path towards target.
func cmdPathfind(ctx *script.Context) script.Result {
	npc, ok := npcData(ctx)
	if !ok {
		return script.Failed
	}
	word := ctx.StringVar(ctx.Lowercase())
	t := resolveEntity(ctx, word)
	if t == nil {
		ctx.Warnf("unknown target %q", word)
		return script.Failed
	}
	npc.PathTarget = t.Ref
	if !ctx.Runtime().Services.Pathfind(ctx.Entity(), t.Ref) {
		ctx.Warnf("no path to %s", t.Name)
		return script.Failed
	}
	return script.Success
}

package commands

import (
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

// cmdSendEvent implements
//
//	sendevent [-gfinrz] [group] event [zone] [radius] [target] [params]
//
// Radius wins over zone, zone over group, group over a single target.
func cmdSendEvent(ctx *script.Context) script.Result {
	flags := ctx.Flags("gfinrz")

	var group, zone, target string
	var radius float64
	if flags.Has('g') {
		group = ctx.StringVar(ctx.Lowercase())
	}
	event := ctx.Lowercase()
	if flags.Has('z') {
		zone = ctx.StringVar(ctx.Lowercase())
	}
	if flags.Has('r') {
		radius = ctx.Float()
	}
	single := !flags.Has('g') && !flags.Has('z') && !flags.Has('r')
	if single {
		target = ctx.StringVar(ctx.Lowercase())
	}
	params := ctx.Word()

	rt := ctx.Runtime()
	self := ctx.Entity()
	filter := script.SendFilter{Group: group}
	if flags.Has('i') {
		filter.Types |= gamedb.IOItem
	}
	if flags.Has('n') {
		filter.Types |= gamedb.IONPC
	}
	if flags.Has('f') {
		filter.Types |= gamedb.IOFix
	}

	switch {
	case flags.Has('r'):
		rt.SendRadius(self, self.Pos, radius, filter, event, params)
	case flags.Has('z'):
		z := rt.DB.Zone(zone)
		if z == nil {
			ctx.Warnf("unknown zone %q", zone)
			return script.Failed
		}
		rt.SendZone(self, z, filter, event, params)
	case flags.Has('g'):
		rt.SendGroup(self, group, event, params)
	default:
		e := resolveEntity(ctx, target)
		if e == nil && names(ctx, target) {
			// Scripts that wrote the target before the event.
			if swapped := resolveEntity(ctx, event); swapped != nil {
				event, e = target, swapped
			}
		}
		if e == nil {
			ctx.Warnf("unknown target %q", target)
			return script.Failed
		}
		rt.SendEvent(self, e, event, params)
	}
	return script.Success
}

// names reports whether word is an event name, either one the engine raises
// or one the running script handles.
func names(ctx *script.Context, word string) bool {
	if script.IsKnownEvent(word) {
		return true
	}
	_, ok := ctx.Program().Event(word)
	return ok
}

// setevent name on|off enables or disables one of the maskable events.
func cmdSetEvent(ctx *script.Context) script.Result {
	name := ctx.Lowercase()
	enable := ctx.Bool()

	bit, ok := script.ParseDisabledEvent(name)
	if !ok {
		ctx.Warnf("unknown event %q", name)
		return script.Failed
	}
	inst := ctx.Instance()
	if enable {
		inst.Disabled &^= bit
	} else {
		inst.Disabled |= bit
	}
	return script.Success
}

func cmdSetMainEvent(ctx *script.Context) script.Result {
	event := ctx.Lowercase()
	if event == "" {
		ctx.Warnf("missing event name")
		return script.Failed
	}
	ctx.Runtime().SetMainEvent(ctx.Instance(), event)
	return script.Success
}

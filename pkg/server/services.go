package server

import (
	"log"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

// activeSpell is a spell with a duration that is still running.
type activeSpell struct {
	Caster gamedb.Ref
	Target gamedb.Ref
	Spell  string
	Level  int
	EndsAt int64 // game clock in milliseconds
}

// simServices implements script.Services for the host. Requests that the
// real engine answers asynchronously (deaths, path results, spell ends)
// come back to the scripts as queued events on a later tick.
type simServices struct {
	g      *Game
	spells []activeSpell
}

func newSimServices(g *Game) *simServices {
	return &simServices{g: g}
}

// IsActive reports whether e is within the active radius of the player.
// Without a player or a radius every entity is active.
func (s *simServices) IsActive(e *gamedb.Entity) bool {
	radius := s.g.Conf.ActiveRadius
	if radius <= 0 {
		return true
	}
	player := s.g.DB.Get(gamedb.Player)
	if player == nil || player == e {
		return true
	}
	return e.Pos.DistSqr(player.Pos) <= radius*radius
}

func (s *simServices) Replan(e *gamedb.Entity) {
	DebugLog("AI: replan %s (target #%d)", e.Name, e.Target)
}

func (s *simServices) Revive(e *gamedb.Entity, reinit bool) {
	e.Alive = true
	if e.NPC != nil {
		e.NPC.Life = e.NPC.MaxLife
	}
	if reinit {
		s.g.Queue.Add(&QueueEntry{Target: e.Ref, Sender: gamedb.Nothing, Event: "init"})
	}
}

func (s *simServices) CastSpell(caster *gamedb.Entity, c script.SpellCast) bool {
	if !caster.Alive {
		return false
	}
	spell := strings.ToLower(c.Spell)
	target := c.Target
	if target == gamedb.Nothing {
		target = caster.Ref
	}
	if t := s.g.DB.Get(target); t != nil && t != caster {
		s.g.Queue.Add(&QueueEntry{Target: target, Sender: caster.Ref, Event: "spellcast", Params: spell})
	}
	if c.Duration <= 0 {
		return true
	}
	s.spells = append(s.spells, activeSpell{
		Caster: caster.Ref,
		Target: target,
		Spell:  spell,
		Level:  c.Level,
		EndsAt: s.g.Runtime.Now() + c.Duration,
	})
	DebugLog("SPELL: %s casts %s (level %d) on #%d", caster.Name, spell, c.Level, target)
	return true
}

func (s *simServices) EndSpell(caster *gamedb.Entity, spell string) {
	spell = strings.ToLower(spell)
	kept := s.spells[:0]
	for _, sp := range s.spells {
		if sp.Caster == caster.Ref && sp.Spell == spell {
			s.spellEnded(sp)
			continue
		}
		kept = append(kept, sp)
	}
	s.spells = kept
}

func (s *simServices) spellEnded(sp activeSpell) {
	s.g.Queue.Add(&QueueEntry{Target: sp.Caster, Sender: gamedb.Nothing, Event: "spellend", Params: sp.Spell})
}

// expireSpells ends the timed spells whose duration has run out.
func (s *simServices) expireSpells(now int64) {
	kept := s.spells[:0]
	for _, sp := range s.spells {
		if sp.EndsAt <= now {
			s.spellEnded(sp)
			continue
		}
		kept = append(kept, sp)
	}
	s.spells = kept
}

// ActiveSpells returns the spells currently running.
func (s *simServices) ActiveSpells() []activeSpell {
	return append([]activeSpell(nil), s.spells...)
}

func (s *simServices) reset() {
	s.spells = nil
}

func (s *simServices) ForceDeath(victim, killer *gamedb.Entity) {
	victim.Alive = false
	if victim.NPC != nil {
		victim.NPC.Life = 0
	}
	sender := gamedb.Nothing
	if killer != nil {
		sender = killer.Ref
	}
	log.Printf("WORLD: %s dies", victim.Name)
	s.g.Queue.Add(&QueueEntry{Target: victim.Ref, Sender: sender, Event: "die"})
}

// Pathfind answers path requests at once: a path exists whenever the
// target does. The result reaches the script on the next tick.
func (s *simServices) Pathfind(e *gamedb.Entity, target gamedb.Ref) bool {
	if target == gamedb.Nothing {
		return false
	}
	event := "pathfinder_failure"
	if s.g.DB.Get(target) != nil {
		event = "pathfinder_success"
	}
	return s.g.Queue.Add(&QueueEntry{Target: e.Ref, Sender: gamedb.Nothing, Event: event})
}

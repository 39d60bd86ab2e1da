package script

import "github.com/crystal-mush/arxscript/pkg/gamedb"

// SpellCast describes a spellcast request.
type SpellCast struct {
	Spell    string
	Level    int
	Target   gamedb.Ref
	Duration int64  // milliseconds, 0 for instant spells
	Flags    string // k d x m s f z option letters
}

// Services are the simulation systems scripts drive but do not implement:
// AI planning, spells, damage and pathfinding.
type Services interface {
	// IsActive reports whether the entity is inside the active simulation area.
	IsActive(e *gamedb.Entity) bool
	// Replan tells the AI that behavior, target or movement changed.
	Replan(e *gamedb.Entity)
	// Revive brings a dead entity back, optionally re-running its init.
	Revive(e *gamedb.Entity, reinit bool)
	// CastSpell launches a spell. It returns false if the cast was rejected.
	CastSpell(caster *gamedb.Entity, spell SpellCast) bool
	// EndSpell stops a spell previously cast by caster.
	EndSpell(caster *gamedb.Entity, spell string)
	// ForceDeath kills victim, crediting killer (may be nil).
	ForceDeath(victim, killer *gamedb.Entity)
	// Pathfind requests a path to target. It returns false if none was queued.
	Pathfind(e *gamedb.Entity, target gamedb.Ref) bool
}

// NopServices satisfies Services without side effects. Every entity is
// active and every request succeeds.
type NopServices struct{}

func (NopServices) IsActive(*gamedb.Entity) bool             { return true }
func (NopServices) Replan(*gamedb.Entity)                    {}
func (NopServices) Revive(*gamedb.Entity, bool)              {}
func (NopServices) CastSpell(*gamedb.Entity, SpellCast) bool { return true }
func (NopServices) EndSpell(*gamedb.Entity, string)          {}
func (NopServices) ForceDeath(*gamedb.Entity, *gamedb.Entity) {}
func (NopServices) Pathfind(*gamedb.Entity, gamedb.Ref) bool { return true }

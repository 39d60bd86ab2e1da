package commands_test

import (
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/flatfile"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
	"github.com/crystal-mush/arxscript/pkg/script/commands"
)

// faults records warnings and errors raised by scripts.
type faults struct {
	mu   sync.Mutex
	msgs []string
}

func (f *faults) Receive(ev events.Event) {
	if ev.Type != events.EvWarning && ev.Type != events.EvError {
		return
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, ev.Type.String()+": "+ev.Text)
	f.mu.Unlock()
}

func (f *faults) Closed() bool { return false }

func (f *faults) has(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// calls records service requests made by scripts.
type calls struct {
	script.NopServices
	log []string
}

func (c *calls) Replan(e *gamedb.Entity) { c.log = append(c.log, "replan "+e.Name) }
func (c *calls) Revive(e *gamedb.Entity, reinit bool) {
	if reinit {
		c.log = append(c.log, "revive -i "+e.Name)
		return
	}
	c.log = append(c.log, "revive "+e.Name)
}
func (c *calls) ForceDeath(victim, killer *gamedb.Entity) {
	c.log = append(c.log, "death "+victim.Name+" by "+killer.Name)
}
func (c *calls) CastSpell(caster *gamedb.Entity, s script.SpellCast) bool {
	c.log = append(c.log, "cast "+s.Spell)
	return s.Spell != "fizzle"
}

type world struct {
	t      *testing.T
	db     *gamedb.Database
	rt     *script.Runtime
	faults *faults
	svc    *calls
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return newWorldConfig(t, script.DefaultConfig())
}

func newWorldConfig(t *testing.T, cfg script.Config) *world {
	t.Helper()
	db := gamedb.NewDatabase()
	rt := script.New(db, commands.NewRegistry(), cfg)
	rt.Bus = events.NewBus()
	rt.Log = log.New(io.Discard, "", 0)
	w := &world{t: t, db: db, rt: rt, faults: &faults{}, svc: &calls{}}
	rt.Bus.SubscribeGlobal(w.faults)
	rt.Services = w.svc
	return w
}

// spawn adds an NPC running src.
func (w *world) spawn(name string, pos float64, src string) *gamedb.Entity {
	w.t.Helper()
	e := gamedb.NewEntity(name, strings.TrimRight(name, "_0123456789"), gamedb.IONPC)
	e.NPC = gamedb.NewNPCData()
	e.Pos = gamedb.Vec3{X: pos}
	w.db.Add(e)
	if src != "" {
		prog, err := flatfile.ParseScriptString(e.Class, src)
		if err != nil {
			w.t.Fatalf("parse %s: %v", name, err)
		}
		w.rt.Attach(e, prog)
	}
	return e
}

func (w *world) send(e *gamedb.Entity, event, params string) script.Result {
	return w.rt.Dispatch(e, event, params)
}

func (w *world) local(e *gamedb.Entity, name string) *script.Variable {
	w.t.Helper()
	inst := w.rt.Instance(e.Ref)
	if inst == nil {
		w.t.Fatalf("%s has no script", e.Name)
	}
	v, _ := inst.Locals.Get(name)
	return v
}

func (w *world) number(e *gamedb.Entity, name string) float64 {
	w.t.Helper()
	if v := w.local(e, name); v != nil {
		return v.Number
	}
	return 0
}

func (w *world) text(e *gamedb.Entity, name string) string {
	w.t.Helper()
	if v := w.local(e, name); v != nil {
		return v.Text
	}
	return ""
}

func (w *world) global(name string) *script.Variable {
	v, _ := w.rt.Globals.Get(name)
	return v
}

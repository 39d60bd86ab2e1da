package script

import (
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// Config holds the runtime limits.
type Config struct {
	MaxGlobals    int // global variable table capacity
	MaxLocals     int // per-instance local table capacity
	MaxTimers     int // timer table capacity
	MaxCallDepth  int // gosub nesting limit
	MaxEventDepth int // nested sendevent limit
	MaxPassSteps  int // commands per pass before the pass is aborted (0 = unlimited)
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxGlobals:    4096,
		MaxLocals:     512,
		MaxTimers:     512,
		MaxCallDepth:  32,
		MaxEventDepth: 16,
		MaxPassSteps:  100000,
	}
}

// Instance is the per-entity script state.
type Instance struct {
	Entity    gamedb.Ref
	Program   *Program
	Locals    *VarTable
	MainEvent string
	Cursor    int // resume offset of the main event, NoCursor if none
	Disabled  DisabledEvents
	Clocks    [4]int64 // start times of timer1..timer4, 0 = stopped
}

// Runtime owns every piece of script state: globals, instances and timers.
// It is driven from a single goroutine and is not safe for concurrent use.
type Runtime struct {
	DB       *gamedb.Database
	Services Services
	Commands *Registry
	Globals  *VarTable
	Timers   *TimerTable
	Bus      *events.Bus
	Log      *log.Logger
	Rand     func() float64 // uniform in [0,1)

	cfg       Config
	instances map[gamedb.Ref]*Instance
	now       int64
	depth     int
	timerSeq  int
}

// New creates a runtime over db using the commands in reg.
func New(db *gamedb.Database, reg *Registry, cfg Config) *Runtime {
	return &Runtime{
		DB:        db,
		Services:  NopServices{},
		Commands:  reg,
		Globals:   NewVarTable(cfg.MaxGlobals),
		Timers:    NewTimerTable(cfg.MaxTimers),
		Log:       log.Default(),
		Rand:      rand.Float64,
		cfg:       cfg,
		instances: make(map[gamedb.Ref]*Instance),
	}
}

// Config returns the runtime limits.
func (rt *Runtime) Config() Config { return rt.cfg }

// Now returns the game clock in milliseconds.
func (rt *Runtime) Now() int64 { return rt.now }

// Attach gives an entity a script. Any previous instance of the entity is
// detached first.
func (rt *Runtime) Attach(e *gamedb.Entity, prog *Program) *Instance {
	rt.Detach(e.Ref)
	inst := &Instance{
		Entity:    e.Ref,
		Program:   prog,
		Locals:    NewVarTable(rt.cfg.MaxLocals),
		MainEvent: "main",
		Cursor:    NoCursor,
	}
	if off, ok := prog.Event("main"); ok {
		inst.Cursor = off
	}
	rt.instances[e.Ref] = inst
	return inst
}

// Detach destroys an entity's script instance and its timers.
func (rt *Runtime) Detach(ref gamedb.Ref) {
	if _, ok := rt.instances[ref]; !ok {
		return
	}
	rt.Timers.CancelEntity(ref)
	delete(rt.instances, ref)
}

// Instance returns the script instance of an entity, or nil.
func (rt *Runtime) Instance(ref gamedb.Ref) *Instance {
	return rt.instances[ref]
}

// Instances returns the number of attached instances.
func (rt *Runtime) Instances() int { return len(rt.instances) }

// Reload replaces the program of every instance running a program with the
// same name. Their timers are cancelled since resume offsets no longer apply.
func (rt *Runtime) Reload(prog *Program) int {
	n := 0
	for _, ref := range rt.sortedRefs() {
		inst := rt.instances[ref]
		if inst.Program.Name != prog.Name {
			continue
		}
		rt.Timers.CancelEntity(ref)
		inst.Program = prog
		inst.Cursor = NoCursor
		if off, ok := prog.Event(inst.MainEvent); ok {
			inst.Cursor = off
		}
		rt.Bus.Emit(events.Event{Type: events.EvReload, Entity: ref, Source: gamedb.Nothing, Program: prog.Name})
		n++
	}
	return n
}

// Reset tears down all state: instances, globals, timers and the clock.
func (rt *Runtime) Reset() {
	rt.instances = make(map[gamedb.Ref]*Instance)
	rt.Globals.Clear()
	rt.Timers.Clear()
	rt.now = 0
	rt.depth = 0
	rt.timerSeq = 0
}

// SetMainEvent makes event the per-tick main event of an instance.
func (rt *Runtime) SetMainEvent(inst *Instance, event string) {
	inst.MainEvent = EventName(event)
	inst.Cursor = NoCursor
	if off, ok := inst.Program.Event(inst.MainEvent); ok {
		inst.Cursor = off
	}
}

// Dispatch raises an event on an entity from outside the script system.
func (rt *Runtime) Dispatch(e *gamedb.Entity, event, params string) Result {
	return rt.deliver(nil, e, event, params)
}

// DispatchAll raises an event on every scripted entity in reference order.
func (rt *Runtime) DispatchAll(event, params string) {
	for _, ref := range rt.sortedRefs() {
		if e := rt.DB.Get(ref); e != nil {
			rt.deliver(nil, e, event, params)
		}
	}
}

func (rt *Runtime) deliver(sender, target *gamedb.Entity, event, params string) Result {
	inst := rt.instances[target.Ref]
	if inst == nil {
		return Success
	}
	name := EventName(event)
	if bit, ok := ParseDisabledEvent(name); ok && inst.Disabled&bit != 0 {
		return AbortRefuse
	}
	var entry int
	if name == "main" {
		if inst.Cursor == NoCursor {
			return Success
		}
		entry, name = inst.Cursor, inst.MainEvent
	} else {
		off, ok := inst.Program.Event(name)
		if !ok {
			return Success
		}
		entry = off
	}

	src := gamedb.Nothing
	if sender != nil {
		src = sender.Ref
	}
	if rt.depth >= rt.cfg.MaxEventDepth {
		rt.report(events.EvError, inst, target, src, name, 0,
			fmt.Sprintf("event nesting deeper than %d", rt.cfg.MaxEventDepth))
		return AbortError
	}
	rt.depth++
	defer func() { rt.depth-- }()

	target.StatReceived++
	rt.Bus.Emit(events.Event{Type: events.EvDelivered, Entity: target.Ref, Source: src, Program: inst.Program.Name, Name: name})

	ctx := newContext(rt, inst, target, sender, name, params)
	res := ctx.run(entry, -1)
	rt.Bus.Emit(events.Event{Type: events.EvPassEnd, Entity: target.Ref, Source: src, Program: inst.Program.Name, Name: name, Result: res.String()})
	return res
}

func (rt *Runtime) report(typ events.EventType, inst *Instance, e *gamedb.Entity, src gamedb.Ref, event string, line int, msg string) {
	level := "warning"
	if typ == events.EvError {
		level = "error"
	}
	prog := "?"
	if inst != nil {
		prog = inst.Program.Name
	}
	name := "?"
	ref := gamedb.Nothing
	if e != nil {
		name, ref = e.Name, e.Ref
	}
	rt.logger().Printf("SCRIPT: %s:%d %s (on %s) %s: %s", prog, line, name, event, level, msg)
	rt.Bus.Emit(events.Event{Type: typ, Entity: ref, Source: src, Program: prog, Name: event, Line: line, Text: msg})
}

func (rt *Runtime) logger() *log.Logger {
	if rt.Log == nil {
		return log.Default()
	}
	return rt.Log
}

func (rt *Runtime) sortedRefs() []gamedb.Ref {
	refs := make([]gamedb.Ref, 0, len(rt.instances))
	for ref := range rt.instances {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

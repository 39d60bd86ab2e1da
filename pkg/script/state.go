package script

import (
	"fmt"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// InstanceState is the persistent part of a Script Instance.
type InstanceState struct {
	Entity    gamedb.Ref
	Program   string
	Locals    []Variable
	MainEvent string
	Cursor    int
	Disabled  DisabledEvents
	Clocks    [4]int64
}

// State is everything a save game needs to resume the scripts.
type State struct {
	Now       int64
	TimerSeq  int
	Globals   []Variable
	Instances []InstanceState
	Timers    []Timer
}

// Snapshot captures the runtime state.
func (rt *Runtime) Snapshot() State {
	st := State{
		Now:      rt.now,
		TimerSeq: rt.timerSeq,
		Globals:  rt.Globals.All(),
		Timers:   rt.Timers.All(),
	}
	for _, ref := range rt.sortedRefs() {
		inst := rt.instances[ref]
		st.Instances = append(st.Instances, InstanceState{
			Entity:    ref,
			Program:   inst.Program.Name,
			Locals:    inst.Locals.All(),
			MainEvent: inst.MainEvent,
			Cursor:    inst.Cursor,
			Disabled:  inst.Disabled,
			Clocks:    inst.Clocks,
		})
	}
	return st
}

// Restore loads a snapshot. Instances are matched to the entities already
// attached; programs supplies the program for entities that are not. Saved
// offsets are checked against the program they refer to.
func (rt *Runtime) Restore(st State, programs func(name string) *Program) error {
	rt.Timers.Clear()
	if err := rt.Globals.Load(st.Globals); err != nil {
		return fmt.Errorf("restore globals: %w", err)
	}
	rt.now = st.Now
	rt.timerSeq = st.TimerSeq

	for _, is := range st.Instances {
		inst := rt.instances[is.Entity]
		if inst == nil || inst.Program.Name != is.Program {
			e := rt.DB.Get(is.Entity)
			if e == nil {
				return fmt.Errorf("restore: entity %d is not in the world", is.Entity)
			}
			var prog *Program
			if programs != nil {
				prog = programs(is.Program)
			}
			if prog == nil {
				return fmt.Errorf("restore: no program %q for entity %d", is.Program, is.Entity)
			}
			inst = rt.Attach(e, prog)
		}
		if is.Cursor != NoCursor && !inst.Program.Valid(is.Cursor) {
			return fmt.Errorf("restore: cursor %d outside %s", is.Cursor, is.Program)
		}
		if err := inst.Locals.Load(is.Locals); err != nil {
			return fmt.Errorf("restore locals of %d: %w", is.Entity, err)
		}
		inst.MainEvent = is.MainEvent
		inst.Cursor = is.Cursor
		inst.Disabled = is.Disabled
		inst.Clocks = is.Clocks
	}

	for _, t := range st.Timers {
		inst := rt.instances[t.Entity]
		if inst == nil || inst.Program.Name != t.Program || !inst.Program.Valid(t.Resume) {
			rt.logger().Printf("SAVE: dropping timer %s of entity %d: no matching script", t.Name, t.Entity)
			continue
		}
		if _, err := rt.Timers.Arm(t); err != nil {
			return fmt.Errorf("restore timer %s: %w", t.Name, err)
		}
	}
	return nil
}

package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// TimerInfinite is the repeat count of a timer that never runs out.
const TimerInfinite int64 = -1

// ErrNoFreeTimer is returned when the timer table is full.
var ErrNoFreeTimer = errors.New("script: no free timer available")

// Timer re-enters a script at a stored offset after a period elapses.
type Timer struct {
	Name      string
	Entity    gamedb.Ref
	Program   string
	Resume    int
	Period    int64 // milliseconds
	Remaining int64 // fires left, TimerInfinite for no limit
	Start     int64 // clock value the current period is measured from
	Created   int64
	IdleOnly  bool // fires only while the entity is active
}

type timerKey struct {
	name   string
	entity gamedb.Ref
}

// TimerTable is a fixed-capacity table of timers keyed by (name, entity).
type TimerTable struct {
	slots []*Timer
	index map[timerKey]int
}

// NewTimerTable creates a table with room for capacity timers.
func NewTimerTable(capacity int) *TimerTable {
	return &TimerTable{
		slots: make([]*Timer, capacity),
		index: make(map[timerKey]int),
	}
}

func keyFor(name string, entity gamedb.Ref) timerKey {
	return timerKey{name: strings.ToLower(name), entity: entity}
}

// Arm stores a timer, replacing any timer with the same name and entity.
func (tt *TimerTable) Arm(t Timer) (*Timer, error) {
	k := keyFor(t.Name, t.Entity)
	if i, ok := tt.index[k]; ok {
		tt.slots[i] = &t
		return &t, nil
	}
	for i, s := range tt.slots {
		if s == nil {
			tt.slots[i] = &t
			tt.index[k] = i
			return &t, nil
		}
	}
	return nil, ErrNoFreeTimer
}

// Get returns the timer with the given name and entity, or nil.
func (tt *TimerTable) Get(name string, entity gamedb.Ref) *Timer {
	if i, ok := tt.index[keyFor(name, entity)]; ok {
		return tt.slots[i]
	}
	return nil
}

// Cancel removes a timer. It reports whether one existed.
func (tt *TimerTable) Cancel(name string, entity gamedb.Ref) bool {
	k := keyFor(name, entity)
	i, ok := tt.index[k]
	if !ok {
		return false
	}
	tt.slots[i] = nil
	delete(tt.index, k)
	return true
}

// CancelEntity removes every timer of an entity and returns the count.
func (tt *TimerTable) CancelEntity(entity gamedb.Ref) int {
	n := 0
	for k, i := range tt.index {
		if k.entity == entity {
			tt.slots[i] = nil
			delete(tt.index, k)
			n++
		}
	}
	return n
}

// Active returns the number of armed timers.
func (tt *TimerTable) Active() int { return len(tt.index) }

// Capacity returns the table size.
func (tt *TimerTable) Capacity() int { return len(tt.slots) }

// Clear removes every timer.
func (tt *TimerTable) Clear() {
	for i := range tt.slots {
		tt.slots[i] = nil
	}
	tt.index = make(map[timerKey]int)
}

// All returns copies of the armed timers in slot order.
func (tt *TimerTable) All() []Timer {
	var out []Timer
	for _, s := range tt.slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (tt *TimerTable) live(t *Timer) bool {
	i, ok := tt.index[keyFor(t.Name, t.Entity)]
	return ok && tt.slots[i] == t
}

func (tt *TimerTable) snapshot() []*Timer {
	out := make([]*Timer, 0, len(tt.index))
	for _, s := range tt.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// TimerName returns a fresh name for an unnamed timer of an entity.
func (rt *Runtime) TimerName(entity gamedb.Ref) string {
	for {
		rt.timerSeq++
		name := fmt.Sprintf("timer_%d", rt.timerSeq)
		if rt.Timers.Get(name, entity) == nil {
			return name
		}
	}
}

// ArmTimer schedules inst to resume at offset resume every periodMs
// milliseconds, count times (TimerInfinite for ever).
func (rt *Runtime) ArmTimer(inst *Instance, name string, resume int, count, periodMs int64, idleOnly bool) (*Timer, error) {
	if !inst.Program.Valid(resume) {
		return nil, fmt.Errorf("script: resume offset %d outside %s", resume, inst.Program.Name)
	}
	t, err := rt.Timers.Arm(Timer{
		Name:      name,
		Entity:    inst.Entity,
		Program:   inst.Program.Name,
		Resume:    resume,
		Period:    periodMs,
		Remaining: count,
		Start:     rt.now,
		Created:   rt.now,
		IdleOnly:  idleOnly,
	})
	if err != nil {
		return nil, err
	}
	rt.Bus.Emit(events.Event{Type: events.EvTimerArmed, Entity: inst.Entity, Source: gamedb.Nothing, Program: inst.Program.Name, Name: name})
	return t, nil
}

// CancelTimer removes a named timer of an entity.
func (rt *Runtime) CancelTimer(name string, entity gamedb.Ref) bool {
	if !rt.Timers.Cancel(name, entity) {
		return false
	}
	rt.Bus.Emit(events.Event{Type: events.EvTimerCancelled, Entity: entity, Source: gamedb.Nothing, Name: name})
	return true
}

// KillTimers cancels every timer of an entity, publishing each
// cancellation, and returns the count.
func (rt *Runtime) KillTimers(entity gamedb.Ref) int {
	n := 0
	for _, t := range rt.Timers.All() {
		if t.Entity == entity && rt.CancelTimer(t.Name, entity) {
			n++
		}
	}
	return n
}

// Tick advances the game clock and fires every timer whose period has
// elapsed, at most once per timer; a timer that fell behind catches up on
// later ticks. Timers armed or cancelled by the scripts run here take
// effect from the next tick.
func (rt *Runtime) Tick(deltaMs int64) {
	if deltaMs < 0 {
		deltaMs = 0
	}
	rt.now += deltaMs
	for _, t := range rt.Timers.snapshot() {
		if !rt.Timers.live(t) || rt.now-t.Start < t.Period {
			continue
		}
		inst := rt.instances[t.Entity]
		e := rt.DB.Get(t.Entity)
		if inst == nil || e == nil || inst.Program.Name != t.Program || !inst.Program.Valid(t.Resume) {
			rt.CancelTimer(t.Name, t.Entity)
			continue
		}
		if t.IdleOnly && !rt.Services.IsActive(e) {
			if t.Period > 0 {
				t.Start += t.Period * ((rt.now - t.Start) / t.Period)
			}
			continue
		}
		if t.Period > 0 {
			t.Start += t.Period
		} else {
			t.Start = rt.now
		}
		if t.Remaining != TimerInfinite {
			t.Remaining--
			if t.Remaining <= 0 {
				rt.Timers.Cancel(t.Name, t.Entity)
				rt.Bus.Emit(events.Event{Type: events.EvTimerCancelled, Entity: t.Entity, Source: gamedb.Nothing, Program: t.Program, Name: t.Name, Text: "exhausted"})
			}
		}
		rt.fire(inst, e, t)
	}
}

func (rt *Runtime) fire(inst *Instance, e *gamedb.Entity, t *Timer) {
	rt.Bus.Emit(events.Event{Type: events.EvTimerFired, Entity: t.Entity, Source: gamedb.Nothing, Program: t.Program, Name: t.Name})
	ctx := newContext(rt, inst, e, nil, "timer "+t.Name, "")
	ctx.run(t.Resume, inst.Program.Extent(t.Resume))
}

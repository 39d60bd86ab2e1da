package commands_test

import (
	"testing"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

const listener = `
on alarm
{
  inc §alarms 1
  set £from ^sender
  set £why ^param1
  accept
}
on poke
{
  inc §pokes 1
  accept
}
`

func TestSendEventSingleTarget(t *testing.T) {
	w := newWorld(t)
	caller := w.spawn("guard_0001", 0, `
on main
{
  sendevent poke goblin_0002
  sendevent goblin_0002 poke
  sendevent poke nobody
  sendevent alarm goblin_0002 intruder
  set £after yes
  accept
}
on poke
{
  accept
}
`)
	target := w.spawn("goblin_0002", 5, listener)
	if res := w.send(caller, "main", ""); res != script.AbortAccept {
		t.Fatalf("main = %v", res)
	}
	if got := w.number(target, "§pokes"); got != 2 {
		t.Errorf("§pokes = %v, want 2", got)
	}
	if got := w.text(target, "£from"); got != "guard_0001" {
		t.Errorf("^sender = %q", got)
	}
	if got := w.text(target, "£why"); got != "intruder" {
		t.Errorf("^param1 = %q", got)
	}
	if !w.faults.has(`sendevent: unknown target "nobody"`) {
		t.Errorf("faults = %v", w.faults.msgs)
	}
	if w.text(caller, "£after") != "yes" {
		t.Error("a failed send stopped the pass")
	}
	if caller.StatSent != 3 || target.StatReceived != 3 {
		t.Errorf("sent %d, received %d", caller.StatSent, target.StatReceived)
	}
}

func TestSendEventRadius(t *testing.T) {
	w := newWorld(t)
	caller := w.spawn("guard_0001", 0, `
on main
{
  sendevent -r alarm 10 danger
  accept
}
`)
	near := w.spawn("goblin_0002", 5, listener)
	far := w.spawn("goblin_0003", 100, listener)
	chest := w.spawn("chest_0001", 2, listener)
	chest.Flags = gamedb.IOItem

	w.send(caller, "main", "")
	if w.number(near, "§alarms") != 1 || w.text(near, "£why") != "danger" {
		t.Errorf("near: alarms %v, why %q", w.number(near, "§alarms"), w.text(near, "£why"))
	}
	if w.number(far, "§alarms") != 0 {
		t.Error("radius send reached an entity out of range")
	}
	if w.number(chest, "§alarms") != 0 {
		t.Error("radius send without -i reached an item")
	}
}

func TestSendEventGroup(t *testing.T) {
	w := newWorld(t)
	boss := w.spawn("goblin_0001", 0, `
on main
{
  sendevent -g goblins alarm
  accept
}
on alarm
{
  inc §alarms 1
  accept
}
`)
	boss.AddGroup("goblins")
	a := w.spawn("goblin_0002", 50, listener)
	a.AddGroup("goblins")
	b := w.spawn("goblin_0003", 5000, listener)
	b.AddGroup("goblins")
	outsider := w.spawn("rat_0001", 1, listener)

	w.send(boss, "main", "")
	if w.number(a, "§alarms") != 1 || w.number(b, "§alarms") != 1 {
		t.Error("group member missed the event")
	}
	if w.number(boss, "§alarms") != 0 {
		t.Error("group send reached the sender")
	}
	if w.number(outsider, "§alarms") != 0 {
		t.Error("group send reached an outsider")
	}
}

func TestSendEventZone(t *testing.T) {
	w := newWorld(t)
	w.db.AddZone(&gamedb.Zone{Name: "Camp", Points: []gamedb.Vec3{{X: -10, Z: -10}, {X: 10, Z: -10}, {X: 10, Z: 10}, {X: -10, Z: 10}}})
	caller := w.spawn("guard_0001", 0, `
on main
{
  sendevent -z alarm camp
  sendevent -z alarm nowhere
  accept
}
on alarm
{
  inc §alarms 1
  accept
}
`)
	inside := w.spawn("goblin_0002", 5, listener)
	outside := w.spawn("goblin_0003", 50, listener)

	w.send(caller, "main", "")
	if w.number(inside, "§alarms") != 1 || w.number(outside, "§alarms") != 0 {
		t.Error("zone send reached the wrong entities")
	}
	if w.number(caller, "§alarms") != 1 {
		t.Error("zone send skipped the sender inside the zone")
	}
	if !w.faults.has(`unknown zone "nowhere"`) {
		t.Errorf("faults = %v", w.faults.msgs)
	}
}

func TestSendEventZoneFromVariable(t *testing.T) {
	w := newWorld(t)
	w.db.AddZone(&gamedb.Zone{Name: "Camp", Points: []gamedb.Vec3{{X: -10, Z: -10}, {X: 10, Z: -10}, {X: 10, Z: 10}, {X: -10, Z: 10}}})
	caller := w.spawn("guard_0001", 0, `
on main
{
  set £where camp
  sendevent -z alarm £where
  accept
}
`)
	inside := w.spawn("goblin_0002", 5, listener)

	w.send(caller, "main", "")
	if w.number(inside, "§alarms") != 1 {
		t.Errorf("zone named by a variable missed: faults %v", w.faults.msgs)
	}
}

func TestSetEvent(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on init
{
  setevent hit off
  setevent bogus off
  accept
}
on wake
{
  setevent hit on
  accept
}
on hit
{
  inc §hits 1
  accept
}
`)
	w.send(g, "init", "")
	if res := w.send(g, "hit", ""); res != script.AbortRefuse {
		t.Errorf("disabled hit = %v, want refuse", res)
	}
	if !w.faults.has(`unknown event "bogus"`) {
		t.Errorf("faults = %v", w.faults.msgs)
	}
	w.send(g, "wake", "")
	if res := w.send(g, "hit", ""); res != script.AbortAccept || w.number(g, "§hits") != 1 {
		t.Errorf("enabled hit = %v, §hits %v", res, w.number(g, "§hits"))
	}
}

func TestSetMainEvent(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  inc §main 1
  setmainevent patrol
  accept
}
on patrol
{
  inc §patrol 1
  accept
}
`)
	w.rt.DispatchAll("main", "")
	w.rt.DispatchAll("main", "")
	w.rt.DispatchAll("main", "")
	if w.number(g, "§main") != 1 || w.number(g, "§patrol") != 2 {
		t.Errorf("§main %v, §patrol %v", w.number(g, "§main"), w.number(g, "§patrol"))
	}
}

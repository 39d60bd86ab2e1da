package server

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystal-mush/arxscript/pkg/boltstore"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

func TestLoadLevelAttachesScripts(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game

	if got := g.Runtime.Instances(); got != 2 {
		t.Errorf("instances = %d, want 2", got)
	}
	if g.Program("GOBLIN") == nil {
		t.Error("goblin program not registered")
	}
	if inst := g.Runtime.Instance(env.entity(t, "torch_0001").Ref); inst != nil {
		t.Error("torch should not run a script")
	}
	if p := env.entity(t, "player"); p.Ref != gamedb.Player {
		t.Errorf("player ref = %d, want %d", p.Ref, gamedb.Player)
	}
	if n := len(g.DB.GroupMembers("goblins")); n != 2 {
		t.Errorf("goblins group has %d members, want 2", n)
	}
}

func TestLoadLevelLoadsMissingScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "goblin.asl"), goblinASL)
	writeFile(t, filepath.Join(dir, "level.yaml"), testLevel)

	g := NewGame(nil)
	defer g.Close()
	if err := g.LoadLevel(filepath.Join(dir, "level.yaml")); err != nil {
		t.Fatalf("LoadLevel: %v", err)
	}
	if g.Program("goblin") == nil {
		t.Error("goblin program not loaded from the level path")
	}
	if got := g.Runtime.Instances(); got != 2 {
		t.Errorf("instances = %d, want 2", got)
	}
}

func TestLoadLevelMissingScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "level.yaml"), testLevel)

	g := NewGame(nil)
	defer g.Close()
	err := g.LoadLevel(filepath.Join(dir, "level.yaml"))
	if err == nil || !strings.Contains(err.Error(), "goblin_0001") {
		t.Errorf("LoadLevel error = %v, want one naming goblin_0001", err)
	}
}

func TestLoadScriptsSkipsBroken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.asl"), "on init {\n accept\n}\n")
	writeFile(t, filepath.Join(dir, "broken.asl"), "on init {\n accept\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a script")

	g := NewGame(nil)
	defer g.Close()
	n, err := g.LoadScripts(dir)
	if err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d programs, want 1", n)
	}
	if g.Program("good") == nil || g.Program("broken") != nil {
		t.Error("want good loaded and broken skipped")
	}

	if _, err := g.LoadScripts(filepath.Join(dir, "missing")); err == nil {
		t.Error("LoadScripts on a missing dir should fail")
	}
}

func TestBootRunsInit(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.game.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	for _, name := range []string{"goblin_0001", "goblin_0002"} {
		if got := env.localNumber(t, name, "§inits"); got != 1 {
			t.Errorf("%s §inits = %v, want 1", name, got)
		}
	}
}

func TestTickRunsMainOnInterval(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game
	g.Boot()

	g.Tick(500)
	if got := env.localNumber(t, "goblin_0001", "§mains"); got != 0 {
		t.Fatalf("main ran after 500ms: §mains = %v", got)
	}
	g.Tick(500)
	if got := env.localNumber(t, "goblin_0001", "§mains"); got != 1 {
		t.Fatalf("§mains after 1000ms = %v, want 1", got)
	}
	g.Tick(2500)
	if got := env.localNumber(t, "goblin_0001", "§mains"); got != 2 {
		t.Errorf("§mains after 3500ms = %v, want 2", got)
	}
	if g.Now() != 3500 {
		t.Errorf("Now = %d, want 3500", g.Now())
	}
	if g.Ticks() != 3 {
		t.Errorf("Ticks = %d, want 3", g.Ticks())
	}
}

func TestDispatchArmsTimer(t *testing.T) {
	env := newTestEnv(t, func(c *GameConf) { c.MainEveryMS = 100000 })
	g := env.game

	res, err := g.Dispatch("goblin_0001", "hit", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res != script.AbortAccept {
		t.Errorf("result = %v, want accept", res)
	}
	if v, ok := g.Runtime.Globals.Get("#hits"); !ok || v.Number != 1 {
		t.Errorf("#hits = %v, want 1", v)
	}
	if got := env.localNumber(t, "goblin_0001", "§pulses"); got != 0 {
		t.Errorf("timer body ran while arming: §pulses = %v", got)
	}

	for i, want := range []float64{1, 2, 2} {
		g.Tick(1000)
		if got := env.localNumber(t, "goblin_0001", "§pulses"); got != want {
			t.Errorf("after tick %d §pulses = %v, want %v", i+1, got, want)
		}
	}
	if n := g.Runtime.Timers.Active(); n != 0 {
		t.Errorf("active timers = %d, want 0", n)
	}
}

func TestDispatchErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.game.Dispatch("nobody", "hit", ""); err == nil {
		t.Error("Dispatch to a missing entity should fail")
	}
	if _, err := env.game.Dispatch("torch_0001", "hit", ""); err == nil {
		t.Error("Dispatch to an unscripted entity should fail")
	}
	res, err := env.game.Dispatch("goblin_0001", "nosuchevent", "")
	if err != nil || res != script.Success {
		t.Errorf("unhandled event = %v, %v; want success, nil", res, err)
	}
}

func TestQueuedEventsReachScripts(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game
	gob := env.entity(t, "goblin_0001")
	player := env.entity(t, "player")

	g.services.ForceDeath(gob, player)
	if gob.Alive {
		t.Error("goblin still alive after ForceDeath")
	}
	if got := env.localText(t, "goblin_0001", "£state"); got != "" {
		t.Errorf("die delivered before the tick: £state = %q", got)
	}
	if !g.services.Pathfind(gob, gamedb.Player) {
		t.Error("Pathfind to the player should be accepted")
	}
	g.Tick(10)
	if got := env.localText(t, "goblin_0001", "£state"); got != "dead" {
		t.Errorf("£state = %q, want dead", got)
	}
	if got := env.localText(t, "goblin_0001", "£path"); got != "ok" {
		t.Errorf("£path = %q, want ok", got)
	}
	if player.StatSent != 1 {
		t.Errorf("player sent %d events, want 1", player.StatSent)
	}

	g.services.Revive(gob, true)
	if !gob.Alive || gob.NPC.Life != gob.NPC.MaxLife {
		t.Error("Revive did not restore the goblin")
	}
	g.Tick(10)
	if got := env.localNumber(t, "goblin_0001", "§inits"); got != 1 {
		t.Errorf("reinit did not run init: §inits = %v", got)
	}
}

func TestSpellExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game
	gob := env.entity(t, "goblin_0001")
	other := env.entity(t, "goblin_0002")

	if !g.services.CastSpell(gob, script.SpellCast{Spell: "Bless", Level: 2, Target: other.Ref, Duration: 500}) {
		t.Fatal("CastSpell refused")
	}
	if n := len(g.services.ActiveSpells()); n != 1 {
		t.Fatalf("active spells = %d, want 1", n)
	}
	if q := g.Queue.Peek(1); len(q) != 1 || q[0].Event != "spellcast" || q[0].Target != other.Ref {
		t.Errorf("queued = %+v, want spellcast to the target", q)
	}

	g.Tick(400)
	if got := env.localText(t, "goblin_0001", "£ended"); got != "" {
		t.Fatalf("spell ended early: £ended = %q", got)
	}
	g.Tick(100)
	if got := env.localText(t, "goblin_0001", "£ended"); got != "bless" {
		t.Errorf("£ended = %q, want bless", got)
	}
	if n := len(g.services.ActiveSpells()); n != 0 {
		t.Errorf("active spells = %d, want 0", n)
	}
	gob.Alive = false
	if g.services.CastSpell(gob, script.SpellCast{Spell: "bless", Level: 1, Target: gamedb.Nothing}) {
		t.Error("a dead caster cast a spell")
	}
}

func TestEndSpell(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game
	gob := env.entity(t, "goblin_0001")

	g.services.CastSpell(gob, script.SpellCast{Spell: "armor", Level: 1, Target: gamedb.Nothing, Duration: 60000})
	g.services.CastSpell(gob, script.SpellCast{Spell: "light", Level: 1, Target: gamedb.Nothing, Duration: 60000})
	g.services.EndSpell(gob, "ARMOR")
	g.Tick(10)

	if got := env.localText(t, "goblin_0001", "£ended"); got != "armor" {
		t.Errorf("£ended = %q, want armor", got)
	}
	spells := g.services.ActiveSpells()
	if len(spells) != 1 || spells[0].Spell != "light" {
		t.Errorf("active spells = %+v, want only light", spells)
	}
}

func TestIsActiveRadius(t *testing.T) {
	env := newTestEnv(t, func(c *GameConf) { c.ActiveRadius = 50 })
	s := env.game.services

	if !s.IsActive(env.entity(t, "goblin_0001")) {
		t.Error("near goblin should be active")
	}
	if s.IsActive(env.entity(t, "goblin_0002")) {
		t.Error("far goblin should be idle")
	}
	if !s.IsActive(env.entity(t, "player")) {
		t.Error("player should be active")
	}

	env.conf.ActiveRadius = 0
	if !s.IsActive(env.entity(t, "goblin_0002")) {
		t.Error("without a radius every entity is active")
	}
}

func TestSaveRestore(t *testing.T) {
	env := newTestEnv(t, func(c *GameConf) { c.MainEveryMS = 100000 })
	g := env.game

	if err := g.Save(); err == nil {
		t.Error("Save without a store should fail")
	}

	store, err := boltstore.Open(filepath.Join(env.dir, "save.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	g.Store = store

	g.Boot()
	g.Dispatch("goblin_0001", "hit", "")
	g.Tick(1000)
	if err := g.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g.Dispatch("goblin_0001", "hit", "")
	g.Tick(1000)
	env.entity(t, "goblin_0001").Alive = false

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, _ := g.Runtime.Globals.Get("#hits"); v == nil || v.Number != 1 {
		t.Errorf("#hits after restore = %v, want 1", v)
	}
	if got := env.localNumber(t, "goblin_0001", "§pulses"); got != 1 {
		t.Errorf("§pulses after restore = %v, want 1", got)
	}
	if !env.entity(t, "goblin_0001").Alive {
		t.Error("entity state not restored")
	}
	if g.Now() != 1000 {
		t.Errorf("Now after restore = %d, want 1000", g.Now())
	}

	// The saved timer has one firing left.
	g.Tick(1000)
	if got := env.localNumber(t, "goblin_0001", "§pulses"); got != 2 {
		t.Errorf("§pulses after resumed timer = %v, want 2", got)
	}
}

func TestBootRestoresSave(t *testing.T) {
	env := newTestEnv(t, nil)
	store, err := boltstore.Open(filepath.Join(env.dir, "save.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	env.game.Store = store
	env.game.Runtime.Globals.SetNumber("#saved", 7)
	if err := env.game.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	env.game.Runtime.Globals.Clear()

	if err := env.game.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if v, _ := env.game.Runtime.Globals.Get("#saved"); v == nil || v.Number != 7 {
		t.Errorf("#saved = %v, want 7", v)
	}
	if got := env.localNumber(t, "goblin_0001", "§inits"); got != 0 {
		t.Errorf("init ran on a restored boot: §inits = %v", got)
	}
}

func TestReloadScript(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game

	path := filepath.Join(env.dir, "goblin.asl")
	writeFile(t, path, "on main {\n  inc §mains 10\n  accept\n}\n")
	n, err := g.ReloadScript(path)
	if err != nil {
		t.Fatalf("ReloadScript: %v", err)
	}
	if n != 2 {
		t.Errorf("reloaded %d instances, want 2", n)
	}
	g.Tick(1000)
	if got := env.localNumber(t, "goblin_0001", "§mains"); got != 10 {
		t.Errorf("§mains = %v, want 10 from the new script", got)
	}

	if _, err := g.ReloadScript(filepath.Join(env.dir, "missing.asl")); err == nil {
		t.Error("ReloadScript of a missing file should fail")
	}
}

func TestEntitiesAndGlobals(t *testing.T) {
	env := newTestEnv(t, nil)
	g := env.game
	g.Boot()
	g.Dispatch("goblin_0001", "hit", "")

	infos := g.Entities(true)
	if len(infos) != 4 {
		t.Fatalf("Entities returned %d, want 4", len(infos))
	}
	var gob *EntityInfo
	for i := range infos {
		if infos[i].Name == "goblin_0001" {
			gob = &infos[i]
		}
	}
	if gob == nil {
		t.Fatal("goblin_0001 missing from Entities")
	}
	if gob.Program != "goblin" || gob.MainEvent != "main" {
		t.Errorf("program/main = %q/%q", gob.Program, gob.MainEvent)
	}
	if len(gob.Timers) != 1 || gob.Timers[0].Name != "pulse" || gob.Timers[0].Period != 1000 {
		t.Errorf("timers = %+v, want pulse every 1000ms", gob.Timers)
	}
	found := false
	for _, v := range gob.Locals {
		if v.Name == "§inits" && v.Value == "1" {
			found = true
		}
	}
	if !found {
		t.Errorf("locals = %+v, want §inits=1", gob.Locals)
	}
	if len(gob.Groups) != 1 || gob.Groups[0] != "goblins" {
		t.Errorf("groups = %v", gob.Groups)
	}

	globals := g.Globals()
	if len(globals) != 1 || globals[0].Name != "#hits" || globals[0].Value != "1" {
		t.Errorf("globals = %+v", globals)
	}

	if brief := g.Entities(false); brief[1].Locals != nil || brief[1].Timers != nil {
		t.Error("Entities(false) should omit locals and timers")
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.game.Boot()
	stats := env.game.Stats()
	gs, ok := stats["game"].(map[string]any)
	if !ok {
		t.Fatalf("stats[game] = %T", stats["game"])
	}
	if gs["instances"] != 2 {
		t.Errorf("instances = %v, want 2", gs["instances"])
	}
	if gs["entities"] != 4 {
		t.Errorf("entities = %v, want 4", gs["entities"])
	}
}

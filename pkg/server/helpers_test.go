package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

const goblinASL = `// test goblin
on init {
  set §inits 1
  accept
}
on main {
  inc §mains 1
  accept
}
on hit {
  inc #hits 1
  settimer pulse 2 1 inc §pulses 1
  accept
}
on die {
  set £state dead
  accept
}
on pathfinder_success {
  set £path ok
  accept
}
on spellend {
  set £ended ^param1
  accept
}
on bad {
  set xyz 1
  accept
}
`

const testLevel = `name: testlevel
player:
  name: player
  pos: [0, 0, 0]
entities:
  - name: goblin_0001
    flags: [npc]
    groups: [goblins]
    pos: [5, 0, 0]
    script: goblin.asl
  - name: goblin_0002
    flags: [npc]
    groups: [goblins]
    pos: [1000, 0, 0]
    script: goblin.asl
  - name: torch_0001
    flags: [item]
    pos: [1, 0, 1]
`

// testEnv is a game populated from a temporary script directory and level.
type testEnv struct {
	dir  string
	conf *GameConf
	game *Game
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTestEnv loads the test goblin script and level. mod, if not nil, may
// adjust the configuration before the game is created.
func newTestEnv(t *testing.T, mod func(*GameConf)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "goblin.asl"), goblinASL)
	writeFile(t, filepath.Join(dir, "level.yaml"), testLevel)

	conf := DefaultGameConf()
	conf.ScriptDir = dir
	conf.Level = filepath.Join(dir, "level.yaml")
	conf.SavePath = ""
	if mod != nil {
		mod(conf)
	}

	g := NewGame(conf)
	if n, err := g.LoadScripts(dir); err != nil || n != 1 {
		t.Fatalf("LoadScripts = %d, %v; want 1, nil", n, err)
	}
	if err := g.LoadLevel(conf.Level); err != nil {
		t.Fatalf("LoadLevel: %v", err)
	}
	t.Cleanup(g.Close)
	return &testEnv{dir: dir, conf: conf, game: g}
}

func (env *testEnv) entity(t *testing.T, name string) *gamedb.Entity {
	t.Helper()
	e := env.game.DB.Lookup(name)
	if e == nil {
		t.Fatalf("no entity %q", name)
	}
	return e
}

func (env *testEnv) local(t *testing.T, entity, name string) *script.Variable {
	t.Helper()
	inst := env.game.Runtime.Instance(env.entity(t, entity).Ref)
	if inst == nil {
		t.Fatalf("%s has no script", entity)
	}
	v, _ := inst.Locals.Get(name)
	return v
}

func (env *testEnv) localNumber(t *testing.T, entity, name string) float64 {
	t.Helper()
	v := env.local(t, entity, name)
	if v == nil {
		return 0
	}
	return v.Number
}

func (env *testEnv) localText(t *testing.T, entity, name string) string {
	t.Helper()
	v := env.local(t, entity, name)
	if v == nil {
		return ""
	}
	return v.Text
}

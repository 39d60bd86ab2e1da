package server

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultGameConfValid(t *testing.T) {
	gc := DefaultGameConf()
	if err := gc.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := gc.ScriptConfig()
	if cfg.MaxGlobals != gc.MaxGlobals || cfg.MaxPassSteps != gc.MaxPassSteps {
		t.Errorf("ScriptConfig = %+v does not match the conf", cfg)
	}
}

func TestLoadGameConf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	writeFile(t, path, `name: test
level: levels/one.yaml
script_dir: scripts
save_path: /var/lib/sim/save.db
tick_ms: 20
main_every_ms: 500
max_timers: 8
active_radius: 2500
web_cors_origins:
  - http://localhost:3000
`)

	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	if gc.Name != "test" || gc.TickMS != 20 || gc.MainEveryMS != 500 || gc.MaxTimers != 8 {
		t.Errorf("values not loaded: %+v", gc)
	}
	if gc.ActiveRadius != 2500 {
		t.Errorf("active_radius = %v", gc.ActiveRadius)
	}
	if gc.MaxGlobals != DefaultGameConf().MaxGlobals {
		t.Errorf("unset max_globals = %d, want the default", gc.MaxGlobals)
	}
	if want := filepath.Join(dir, "levels/one.yaml"); gc.Level != want {
		t.Errorf("level = %q, want %q", gc.Level, want)
	}
	if want := filepath.Join(dir, "scripts"); gc.ScriptDir != want {
		t.Errorf("script_dir = %q, want %q", gc.ScriptDir, want)
	}
	if gc.SavePath != "/var/lib/sim/save.db" {
		t.Errorf("absolute save_path rewritten to %q", gc.SavePath)
	}
	if gc.JournalPath != "" {
		t.Errorf("empty journal_path became %q", gc.JournalPath)
	}
	if len(gc.WebCORSOrigins) != 1 {
		t.Errorf("cors origins = %v", gc.WebCORSOrigins)
	}
}

func TestLoadGameConfErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadGameConf(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "tick_ms: [1, 2\n")
	if _, err := LoadGameConf(bad); err == nil {
		t.Error("malformed YAML should fail")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "tick_ms: 100\nmain_every_ms: 50\n")
	_, err := LoadGameConf(invalid)
	if err == nil || !strings.Contains(err.Error(), "main_every_ms") {
		t.Errorf("error = %v, want one about main_every_ms", err)
	}
}

func TestGameConfValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*GameConf)
		want string
	}{
		{"zero tick", func(c *GameConf) { c.TickMS = 0 }, "tick_ms"},
		{"no timers", func(c *GameConf) { c.MaxTimers = 0 }, "max_timers"},
		{"no locals", func(c *GameConf) { c.MaxLocals = -1 }, "max_locals"},
		{"negative steps", func(c *GameConf) { c.MaxPassSteps = -1 }, "max_pass_steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc := DefaultGameConf()
			tt.mod(gc)
			err := gc.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error mentioning %s", err, tt.want)
			}
		})
	}

	gc := DefaultGameConf()
	gc.MaxPassSteps = 0
	if err := gc.Validate(); err != nil {
		t.Errorf("max_pass_steps 0 (unlimited) rejected: %v", err)
	}
}

package script

import (
	"reflect"
	"strings"
	"testing"
)

// handlerProgram is
//
//	on main
//	{
//	  if §a == 1
//	    set §x 1
//	  else
//	    set §x 2
//	  >>tail
//	  nop
//	}
func handlerProgram(t *testing.T) *Program {
	t.Helper()
	b := NewBuilder("flow")
	b.Event("on Main", 1)
	b.Open(2)
	b.Command("IF", "§a == 1", 3)
	b.Command("set", "§x 1", 4)
	b.Command("else", "", 5)
	b.Command("set", "§x 2", 6)
	b.Label("tail", 7)
	b.Command("nop", "", 8)
	b.Close(9)
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestProgramTables(t *testing.T) {
	p := handlerProgram(t)
	if p.Len() != 7 {
		t.Fatalf("Len = %d, want 7", p.Len())
	}
	if off, ok := p.Event("MAIN"); !ok || off != 0 {
		t.Errorf("Event(MAIN) = %d, %v", off, ok)
	}
	if off, ok := p.Event("on main"); !ok || off != 0 {
		t.Errorf("Event(on main) = %d, %v", off, ok)
	}
	if off, ok := p.Label("TAIL"); !ok || off != 5 {
		t.Errorf("Label(TAIL) = %d, %v", off, ok)
	}
	if p.Match(0) != 6 || p.Match(6) != 0 {
		t.Errorf("Match = %d/%d, want 6/0", p.Match(0), p.Match(6))
	}
	if p.Match(2) != -1 {
		t.Errorf("Match of a command = %d", p.Match(2))
	}
	if !p.EndsHandler(6) {
		t.Error("closing brace does not end the handler")
	}
	if name, ok := p.EventAt(0); !ok || name != "main" {
		t.Errorf("EventAt(0) = %q, %v", name, ok)
	}
	if p.At(1).Command != "if" {
		t.Errorf("command not lower-cased: %q", p.At(1).Command)
	}
	if !reflect.DeepEqual(p.Events(), []string{"main"}) {
		t.Errorf("Events = %v", p.Events())
	}
}

func TestProgramExtent(t *testing.T) {
	p := handlerProgram(t)
	tests := []struct {
		at, extent, skip int
	}{
		{0, 7, 7}, // the whole block
		{1, 5, 5}, // if, guarded set, else and its body
		{2, 3, 4}, // guarded set; skipping it steps into the else body
		{3, 5, 5}, // else and its body
		{5, 6, 6},
		{6, 6, 6}, // stray close has no extent
		{7, 7, 7}, // end of program
	}
	for _, tt := range tests {
		if got := p.Extent(tt.at); got != tt.extent {
			t.Errorf("Extent(%d) = %d, want %d", tt.at, got, tt.extent)
		}
		if got := p.Skip(tt.at); got != tt.skip {
			t.Errorf("Skip(%d) = %d, want %d", tt.at, got, tt.skip)
		}
	}
}

func TestProgramValid(t *testing.T) {
	p := handlerProgram(t)
	for _, off := range []int{0, 3, 7} {
		if !p.Valid(off) {
			t.Errorf("Valid(%d) = false", off)
		}
	}
	for _, off := range []int{-1, 8} {
		if p.Valid(off) {
			t.Errorf("Valid(%d) = true", off)
		}
	}
}

func TestTimerOwnsBody(t *testing.T) {
	b := NewBuilder("timers")
	b.Command("settimer", "-m pulse 3 500", 1)
	b.Command("inc", "§p 1", 1)
	b.Command("settimer", "pulse off", 2)
	b.Command("timerfoo", "0 1", 3)
	b.Command("nop", "", 3)
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if !p.At(0).Owns() || p.Extent(0) != 2 {
		t.Errorf("armed settimer: Owns=%v Extent=%d", p.At(0).Owns(), p.Extent(0))
	}
	if p.At(2).Owns() || p.Extent(2) != 3 {
		t.Errorf("cancelling settimer: Owns=%v Extent=%d", p.At(2).Owns(), p.Extent(2))
	}
	if !p.At(3).Owns() {
		t.Error("timer<name> does not own its body")
	}
}

func TestResolveSubLabel(t *testing.T) {
	b := NewBuilder("labels")
	b.Label("shared", 1)
	b.Command("nop", "", 1) // 0
	b.Label("outer", 2)
	b.Command("nop", "", 2) // 1
	b.Label("outer.shared", 3)
	b.Command("nop", "", 3) // 2
	b.Label("other", 4)
	b.Command("nop", "", 4) // 3
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		from int
		want int
	}{
		{"shared", 0, 0},
		{"shared", 1, 2}, // inside outer
		{"shared", 2, 2}, // a sub-label is not a parent
		{"shared", 3, 0}, // inside other
		{"OUTER.shared", 3, 2},
	}
	for _, tt := range tests {
		got, ok := p.ResolveLabel(tt.name, tt.from)
		if !ok || got != tt.want {
			t.Errorf("ResolveLabel(%q, %d) = %d, %v; want %d", tt.name, tt.from, got, ok, tt.want)
		}
	}
	if _, ok := p.ResolveLabel("missing", 0); ok {
		t.Error("ResolveLabel(missing) succeeded")
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{"stray close", func(b *Builder) { b.Close(3) }, "bad:3: unbalanced '}'"},
		{"unclosed", func(b *Builder) { b.Open(2); b.Open(4); b.Close(5) }, "bad:2: unbalanced '{'"},
		{"duplicate label", func(b *Builder) { b.Label("a", 1); b.Label("A", 7) }, "bad:7: duplicate label"},
		{"duplicate event", func(b *Builder) { b.Event("hit", 1); b.Event("on hit", 9) }, "bad:9: duplicate handler"},
		{"empty event", func(b *Builder) { b.Event("  ", 4) }, "bad:4: empty event name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("bad")
			tt.build(b)
			_, err := b.Build()
			if err == nil {
				t.Fatal("Build succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestEventName(t *testing.T) {
	tests := map[string]string{
		"main":       "main",
		"ON MAIN":    "main",
		"  on   hit": "hit",
		"online":     "online",
	}
	for in, want := range tests {
		if got := EventName(in); got != want {
			t.Errorf("EventName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitStatement(t *testing.T) {
	tests := []struct {
		cmd, rest  string
		args, tail string
	}{
		{"if", "(§a == 1) set £x y", "§a == 1", "set £x y"},
		{"if", "§a == 1 accept", "§a == 1", "accept"},
		{"if", `(£name == "a (b)") nop`, `£name == "a (b)"`, "nop"},
		{"random", "30 goto away", "30", "goto away"},
		{"random", "(30) goto away", "30", "goto away"},
		{"else", "accept", "", "accept"},
		{"settimer", "-m pulse 2 500 inc §p 1", "-m pulse 2 500", "inc §p 1"},
		{"settimer", "pulse off", "pulse off", ""},
		{"settimer", "pulse kill_local nop", "pulse kill_local", "nop"},
		{"timerfoo", "off", "off", ""},
		{"timerfoo", "-i 1 5 accept", "-i 1 5", "accept"},
		{"set", "§a 1", "§a 1", ""},
	}
	for _, tt := range tests {
		args, tail := SplitStatement(tt.cmd, tt.rest)
		if args != tt.args || tail != tt.tail {
			t.Errorf("SplitStatement(%q, %q) = %q, %q; want %q, %q",
				tt.cmd, tt.rest, args, tail, tt.args, tt.tail)
		}
	}
}

func TestFields(t *testing.T) {
	got := Fields(`hello "big world"  -5 "unterminated`)
	want := []string{"hello", "big world", "-5", "unterminated"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fields = %q, want %q", got, want)
	}
	if Fields("   ") != nil {
		t.Error("Fields of blanks is not empty")
	}
}

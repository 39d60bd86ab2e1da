package commands_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/crystal-mush/arxscript/pkg/script"
)

func TestIfElse(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on hit
{
  if (^param1 == 1) set £branch one
  else set £branch other
  if (£branch == ONE) {
    inc §blocks 1
    inc §blocks 1
  }
  accept
}
`)
	if res := w.send(g, "hit", "1"); res != script.AbortAccept {
		t.Fatalf("hit = %v", res)
	}
	if got := w.text(g, "£branch"); got != "one" {
		t.Errorf("£branch = %q, want one", got)
	}
	if got := w.number(g, "§blocks"); got != 2 {
		t.Errorf("§blocks = %v, want 2", got)
	}

	w.send(g, "hit", "2")
	if got := w.text(g, "£branch"); got != "other" {
		t.Errorf("£branch = %q, want other", got)
	}
	if got := w.number(g, "§blocks"); got != 2 {
		t.Errorf("false condition ran its block: §blocks = %v", got)
	}
}

func TestIfOperators(t *testing.T) {
	tests := []struct {
		cond string
		want string
	}{
		{"§n < 5", "yes"},
		{"§n <= 3", "yes"},
		{"§n > 3", "no"},
		{"§n >= 4", "no"},
		{"§n == 3", "yes"},
		{"§n != 3", "no"},
		{"£s == SWORD", "yes"},
		{"£s != axe", "yes"},
		{"£s isin longsword", "yes"},
		{"£s isin bow", "no"},
		{`£s iselement "axe sword bow"`, "yes"},
		{`£s iselement "axe bow"`, "no"},
		{"^me isgroup goblins", "yes"},
		{"^me !isgroup goblins", "no"},
		{"^me isclass goblin", "yes"},
		{"£s == 3", "no"},
		{"§n == abc", "no"},
		{"§n isin 345", "no"},
		{"§n bogus 1", "no"},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			w := newWorld(t)
			g := w.spawn("goblin_0001", 0, fmt.Sprintf(`
on main
{
  set §n 3
  set £s sword
  if (%s) set £r yes
  else set £r no
  accept
}
`, tt.cond))
			g.AddGroup("goblins")
			w.send(g, "main", "")
			if got := w.text(g, "£r"); got != tt.want {
				t.Errorf("if (%s): £r = %q, want %q", tt.cond, got, tt.want)
			}
		})
	}
}

func TestIfWithoutParens(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  set §n 2
  if §n == 2 set £r yes
  if §n == 9 accept
  set £after yes
  refuse
}
`)
	if res := w.send(g, "main", ""); res != script.AbortRefuse {
		t.Fatalf("main = %v", res)
	}
	if w.text(g, "£r") != "yes" || w.text(g, "£after") != "yes" {
		t.Errorf("£r=%q £after=%q", w.text(g, "£r"), w.text(g, "£after"))
	}
}

func TestGotoAndSubLabels(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  goto patrol
  set £skipped yes
  accept
}
>>patrol
goto step
>>patrol.step
set £where sub
accept
>>step
set £where global
accept
`)
	if res := w.send(g, "main", ""); res != script.AbortAccept {
		t.Fatalf("main = %v", res)
	}
	if got := w.text(g, "£where"); got != "sub" {
		t.Errorf("£where = %q, want sub", got)
	}
	if w.text(g, "£skipped") != "" {
		t.Error("goto did not jump")
	}
}

func TestGotoUnknownLabel(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, "on main\n{\n goto nowhere\n}\n")
	if res := w.send(g, "main", ""); res != script.AbortError {
		t.Errorf("main = %v, want error", res)
	}
	if !w.faults.has(`unknown label "nowhere"`) {
		t.Errorf("faults = %v", w.faults.msgs)
	}
}

func TestNestedGosub(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  gosub one
  set £done yes
  accept
}
>>one
inc §depth 1
gosub two
set £trail "~£trail~1"
return
>>two
inc §depth 1
gosub three
set £trail "~£trail~2"
return
>>three
inc §depth 1
set £trail 3
return
`)
	if res := w.send(g, "main", ""); res != script.AbortAccept {
		t.Fatalf("main = %v", res)
	}
	if got := w.number(g, "§depth"); got != 3 {
		t.Errorf("§depth = %v, want 3", got)
	}
	if got := w.text(g, "£trail"); got != "321" {
		t.Errorf("£trail = %q, want 321", got)
	}
	if got := w.text(g, "£done"); got != "yes" {
		t.Errorf("£done = %q", got)
	}
}

func TestReturnWithoutGosub(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, "on hit\n{\n return\n set £after yes\n}\n")
	if res := w.send(g, "hit", ""); res != script.AbortError {
		t.Errorf("hit = %v, want error", res)
	}
	if w.text(g, "£after") != "" {
		t.Error("pass continued after return")
	}
}

func TestRandomBounds(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  random 100 inc §always 1
  random 0 inc §never 1
  accept
}
`)
	for _, r := range []float64{0, 0.5, 0.999} {
		w.rt.Rand = func() float64 { return r }
		w.send(g, "main", "")
	}
	if got := w.number(g, "§always"); got != 3 {
		t.Errorf("random 100 ran %v times, want 3", got)
	}
	if got := w.number(g, "§never"); got != 0 {
		t.Errorf("random 0 ran %v times", got)
	}
}

func TestRandomFrequency(t *testing.T) {
	w := newWorld(t)
	src := rand.New(rand.NewPCG(7, 11))
	w.rt.Rand = src.Float64
	g := w.spawn("goblin_0001", 0, `
on main
{
  random 30 inc §hits 1
  accept
}
`)
	const trials = 10000
	for i := 0; i < trials; i++ {
		w.send(g, "main", "")
	}
	hits := w.number(g, "§hits")
	if hits < 2700 || hits > 3300 {
		t.Errorf("random 30 hit %v of %d", hits, trials)
	}
}

func TestRandomElse(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, `
on main
{
  random 50 set £r heads
  else set £r tails
  accept
}
`)
	w.rt.Rand = func() float64 { return 0.9 }
	w.send(g, "main", "")
	if got := w.text(g, "£r"); got != "tails" {
		t.Errorf("£r = %q, want tails", got)
	}
	w.rt.Rand = func() float64 { return 0.1 }
	w.send(g, "main", "")
	if got := w.text(g, "£r"); got != "heads" {
		t.Errorf("£r = %q, want heads", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	w := newWorld(t)
	g := w.spawn("goblin_0001", 0, "on hit\n{\n dance wildly\n set £after yes\n}\n")
	if res := w.send(g, "hit", ""); res != script.AbortError {
		t.Errorf("hit = %v, want error", res)
	}
	if !w.faults.has("error: dance: unknown command") {
		t.Errorf("faults = %v", w.faults.msgs)
	}
	if w.text(g, "£after") != "" {
		t.Error("pass continued after the unknown command")
	}
}

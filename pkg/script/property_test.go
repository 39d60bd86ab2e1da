package script

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestVarTableProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer variables hold truncated values", prop.ForAll(
		func(f float64) bool {
			vt := NewVarTable(0)
			v, err := vt.SetNumber("§n", f)
			return err == nil && v.Number == math.Trunc(f)
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("float variables hold exact values", prop.ForAll(
		func(f float64) bool {
			vt := NewVarTable(0)
			v, err := vt.SetNumber("&f", f)
			return err == nil && v.Number == f
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("names are case-insensitive", prop.ForAll(
		func(name, text string) bool {
			vt := NewVarTable(0)
			vt.SetText("$"+strings.ToLower(name), text)
			v, ok := vt.Get("$" + strings.ToUpper(name))
			return ok && v.Text == text && vt.Len() == 1
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("a bounded table never exceeds its capacity", prop.ForAll(
		func(limit int, names []string) bool {
			vt := NewVarTable(limit)
			for _, n := range names {
				vt.SetNumber("#"+n, 1)
			}
			return vt.Len() <= limit
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func TestTimerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a counted timer fires exactly count times", prop.ForAll(
		func(count int, period int, deltas []int) bool {
			f := newFixture(t, DefaultConfig())
			_, inst := f.spawn("goblin", pulseProgram(t))
			if _, err := f.rt.ArmTimer(inst, "pulse", 1, int64(count), int64(period), false); err != nil {
				return false
			}
			for _, d := range deltas {
				f.rt.Tick(int64(d))
			}
			// Drain whatever is still due.
			for i := 0; i < count+1; i++ {
				f.rt.Tick(int64(period))
			}
			return localNumber(t, inst, "§fires") == float64(count) && f.rt.Timers.Active() == 0
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 500),
		gen.SliceOf(gen.IntRange(0, 2000)),
	))

	properties.Property("at most one firing per tick", prop.ForAll(
		func(period int, delta int) bool {
			f := newFixture(t, DefaultConfig())
			_, inst := f.spawn("goblin", pulseProgram(t))
			f.rt.ArmTimer(inst, "pulse", 1, TimerInfinite, int64(period), false)
			f.rt.Tick(int64(delta))
			return localNumber(t, inst, "§fires") <= 1
		},
		gen.IntRange(1, 100),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

func TestProgramProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("nested blocks match and have extent past their close", prop.ForAll(
		func(depth int) bool {
			b := NewBuilder("nest")
			for i := 0; i < depth; i++ {
				b.Open(i + 1)
				b.Command("nop", "", i+1)
			}
			for i := 0; i < depth; i++ {
				b.Close(depth + i + 1)
			}
			p, err := b.Build()
			if err != nil {
				return false
			}
			for i := 0; i < depth; i++ {
				open := 2 * i
				closing := p.Len() - 1 - i
				if p.Match(open) != closing || p.Match(closing) != open || p.Extent(open) != closing+1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

package validate

import (
	"strings"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// CommandChecker reports statements naming commands the registry does not
// know. Those statements fail every time they run.
type CommandChecker struct {
	Registry *script.Registry
}

func (c *CommandChecker) Name() string { return "command" }

func (c *CommandChecker) Check(p *script.Program) []Finding {
	var findings []Finding
	for i := 0; i < p.Len(); i++ {
		st := p.At(i)
		if st.Kind != script.StmtCommand {
			continue
		}
		if c.Registry != nil && c.Registry.Lookup(st.Command) == nil {
			findings = append(findings, finding(p, i, CatCommand, SevError, "unknown command %q", st.Command))
			continue
		}
		if st.Command == "set" {
			if words := script.Fields(st.Args); len(words) > 0 && strings.EqualFold(words[0], "-a") {
				f := finding(p, i, CatCommand, SevWarning, "set -a is obsolete")
				f.Proposed = "set " + strings.Join(words[1:], " ")
				findings = append(findings, f)
			}
		}
	}
	return findings
}

// LabelChecker reports goto and gosub statements whose label does not
// resolve from where they are written.
type LabelChecker struct{}

func (c *LabelChecker) Name() string { return "label" }

func (c *LabelChecker) Check(p *script.Program) []Finding {
	var findings []Finding
	for i := 0; i < p.Len(); i++ {
		st := p.At(i)
		if st.Kind != script.StmtCommand || (st.Command != "goto" && st.Command != "gosub") {
			continue
		}
		words := script.Fields(st.Args)
		if len(words) == 0 {
			findings = append(findings, finding(p, i, CatLabel, SevError, "%s without a label", st.Command))
			continue
		}
		label := words[0]
		if strings.Contains(label, "~") {
			continue // computed at run time
		}
		if _, ok := p.ResolveLabel(label, i); !ok {
			findings = append(findings, finding(p, i, CatLabel, SevError, "unknown label %q", label))
		}
		if len(words) > 1 {
			findings = append(findings, finding(p, i, CatLabel, SevWarning, "unexpected text after label: %q", strings.Join(words[1:], " ")))
		}
	}
	return findings
}

// FlowChecker reports statements that can never run and else branches with
// no conditional to bind to.
type FlowChecker struct{}

func (c *FlowChecker) Name() string { return "flow" }

var terminal = map[string]bool{"goto": true, "return": true, "accept": true, "refuse": true}

func (c *FlowChecker) Check(p *script.Program) []Finding {
	var findings []Finding
	entries := make(map[int]bool)
	for _, name := range p.Labels() {
		off, _ := p.Label(name)
		entries[off] = true
	}
	for _, name := range p.Events() {
		off, _ := p.Event(name)
		entries[off] = true
	}

	for i := 0; i < p.Len(); i++ {
		st := p.At(i)
		if st.Kind != script.StmtCommand {
			continue
		}
		if st.Command == "else" && !boundElse(p, i) {
			findings = append(findings, finding(p, i, CatFlow, SevWarning, "else without a matching if"))
			continue
		}
		if !terminal[st.Command] || guarded(p, i) {
			continue
		}
		j := i + 1
		if j >= p.Len() || entries[j] || p.At(j).Kind == script.StmtClose {
			continue
		}
		findings = append(findings, finding(p, j, CatFlow, SevWarning, "unreachable statement after %s", st.Command))
	}
	return findings
}

// guarded reports whether the statement at i is the body of the statement
// before it.
func guarded(p *script.Program, i int) bool {
	if i == 0 {
		return false
	}
	prev := p.At(i - 1)
	return prev.Kind == script.StmtCommand && prev.Owns()
}

func boundElse(p *script.Program, j int) bool {
	for k := j - 1; k >= 0; k-- {
		st := p.At(k)
		if st.Kind == script.StmtCommand && (st.Command == "if" || st.Command == "random") && p.Extent(k+1) == j {
			return true
		}
	}
	return false
}

// TimerChecker reports timers armed with nothing to run.
type TimerChecker struct{}

func (c *TimerChecker) Name() string { return "timer" }

func (c *TimerChecker) Check(p *script.Program) []Finding {
	var findings []Finding
	for i := 0; i < p.Len(); i++ {
		st := p.At(i)
		if st.Kind != script.StmtCommand || !script.IsTimerCommand(st.Command) || !st.Owns() {
			continue
		}
		if i+1 >= p.Len() || p.At(i+1).Kind == script.StmtClose {
			findings = append(findings, finding(p, i, CatTimer, SevWarning, "timer has no body"))
		}
	}
	return findings
}

// EventChecker reports handlers for events the engine never raises and
// setevent statements naming events that cannot be switched off.
type EventChecker struct{}

func (c *EventChecker) Name() string { return "event" }

func (c *EventChecker) Check(p *script.Program) []Finding {
	var findings []Finding
	for _, name := range p.Events() {
		if script.IsKnownEvent(name) {
			continue
		}
		off, _ := p.Event(name)
		f := finding(p, off, CatEvent, SevInfo, "event %q is only reached through sendevent", name)
		findings = append(findings, f)
	}
	for i := 0; i < p.Len(); i++ {
		st := p.At(i)
		if st.Kind != script.StmtCommand || st.Command != "setevent" {
			continue
		}
		words := script.Fields(st.Args)
		if len(words) == 0 {
			continue
		}
		if _, ok := script.ParseDisabledEvent(words[0]); !ok {
			findings = append(findings, finding(p, i, CatEvent, SevWarning, "event %q cannot be switched off", words[0]))
		}
	}
	return findings
}

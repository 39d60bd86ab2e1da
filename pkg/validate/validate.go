// Package validate lints compiled scripts. It reports unknown commands,
// unresolvable jump targets, misplaced control flow and event names the
// engine never raises, before the scripts are attached to entities.
package validate

import (
	"fmt"
	"sort"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// Category classifies the type of finding.
type Category int

const (
	CatCommand Category = iota // Unknown command
	CatLabel                   // goto/gosub target that does not resolve
	CatFlow                    // Unreachable or orphaned statements
	CatTimer                   // Timer statements without a body
	CatEvent                   // Unknown event names (informational)
)

func (c Category) String() string {
	switch c {
	case CatCommand:
		return "command"
	case CatLabel:
		return "label"
	case CatFlow:
		return "flow"
	case CatTimer:
		return "timer"
	case CatEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Severity indicates how serious a finding is.
type Severity int

const (
	SevError   Severity = iota // The statement fails every time it runs
	SevWarning                 // Should be reviewed
	SevInfo                    // Informational only
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Finding represents a single issue detected in a script.
type Finding struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Program     string   `json:"program"`
	Line        int      `json:"line"`
	Offset      int      `json:"offset"`
	Statement   string   `json:"statement,omitempty"`
	Description string   `json:"description"`
	Proposed    string   `json:"proposed,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", f.Program, f.Line, f.Severity, f.Description)
}

// Checker is the interface that each validation check implements.
type Checker interface {
	Name() string
	Check(p *script.Program) []Finding
}

// Validator orchestrates running all checkers against a set of programs.
type Validator struct {
	checkers []Checker
	programs []*script.Program
	findings []Finding
}

// New creates a Validator with all built-in checkers registered. Commands
// are checked against reg.
func New(reg *script.Registry, programs ...*script.Program) *Validator {
	return &Validator{
		programs: programs,
		checkers: []Checker{
			&CommandChecker{Registry: reg},
			&LabelChecker{},
			&FlowChecker{},
			&TimerChecker{},
			&EventChecker{},
		},
	}
}

// Run executes all checkers and returns findings sorted by program, line
// and offset.
func (v *Validator) Run() []Finding {
	v.findings = nil
	for _, p := range v.programs {
		for _, c := range v.checkers {
			v.findings = append(v.findings, c.Check(p)...)
		}
	}
	sort.SliceStable(v.findings, func(i, j int) bool {
		a, b := v.findings[i], v.findings[j]
		if a.Program != b.Program {
			return a.Program < b.Program
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Offset < b.Offset
	})
	for i := range v.findings {
		v.findings[i].ID = fmt.Sprintf("%s-%s-%d", v.findings[i].Program, v.findings[i].Category, i)
	}
	return v.findings
}

// Findings returns the current findings (after Run has been called).
func (v *Validator) Findings() []Finding {
	return v.findings
}

// Summary returns counts of findings per category.
func (v *Validator) Summary() map[Category]int {
	m := make(map[Category]int)
	for _, f := range v.findings {
		m[f.Category]++
	}
	return m
}

// Errors returns the number of error-severity findings.
func (v *Validator) Errors() int {
	n := 0
	for _, f := range v.findings {
		if f.Severity == SevError {
			n++
		}
	}
	return n
}

func finding(p *script.Program, i int, cat Category, sev Severity, format string, args ...any) Finding {
	f := Finding{
		Category:    cat,
		Severity:    sev,
		Program:     p.Name,
		Offset:      i,
		Description: fmt.Sprintf(format, args...),
	}
	if i >= 0 && i < p.Len() {
		st := p.At(i)
		f.Line = st.Line
		f.Statement = truncate(st.String(), 200)
	}
	return f
}

// truncate returns at most max characters of s, adding "..." if truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

package script

import (
	"fmt"
	"sort"
	"strings"
)

// NoCursor marks an instance without a main context.
const NoCursor = -1

// StmtKind distinguishes commands from the lexical brace markers.
type StmtKind int

const (
	StmtCommand StmtKind = iota
	StmtOpen
	StmtClose
)

type link int

const (
	linkNone link = iota
	linkCond      // if, random: guards the next statement, may bind an else
	linkElse      // else: owns the next statement
	linkTail      // settimer: the next statement is the timer body
)

// Statement is one entry of a compiled program.
type Statement struct {
	Kind    StmtKind
	Command string // lower-cased command name
	Args    string // raw argument text
	Line    int

	link link
}

func (s Statement) String() string {
	switch s.Kind {
	case StmtOpen:
		return "{"
	case StmtClose:
		return "}"
	}
	if s.Args == "" {
		return s.Command
	}
	return s.Command + " " + s.Args
}

// Owns reports whether the statement takes the following statement as its
// body: the guarded statement of a conditional, an else branch or a timer.
func (s Statement) Owns() bool { return s.link != linkNone }

// Program is an immutable compiled script: a flat statement list with its
// label table, event entry table and brace match table. Offsets are indexes
// into the statement list.
type Program struct {
	Name string

	stmts   []Statement
	match   []int
	labels  map[string]int
	order   []labelPos
	events  map[string]int
	starts  map[int]string
	handler map[int]bool
}

type labelPos struct {
	name   string
	offset int
}

// Len returns the number of statements.
func (p *Program) Len() int { return len(p.stmts) }

// At returns the statement at offset i.
func (p *Program) At(i int) Statement { return p.stmts[i] }

// Valid reports whether i is an executable offset or the end of the program.
func (p *Program) Valid(i int) bool { return i >= 0 && i <= len(p.stmts) }

// Event returns the entry offset of an event handler.
func (p *Program) Event(name string) (int, bool) {
	off, ok := p.events[EventName(name)]
	return off, ok
}

// Events returns the handled event names, sorted.
func (p *Program) Events() []string {
	out := make([]string, 0, len(p.events))
	for name := range p.events {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Label returns the offset of a label by exact name.
func (p *Program) Label(name string) (int, bool) {
	off, ok := p.labels[strings.ToLower(name)]
	return off, ok
}

// Labels returns the label names, sorted.
func (p *Program) Labels() []string {
	out := make([]string, 0, len(p.labels))
	for name := range p.labels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ResolveLabel finds a jump target as seen from offset from. A sub-label of
// the enclosing label ("parent.name") wins over a global label of the same
// name.
func (p *Program) ResolveLabel(name string, from int) (int, bool) {
	name = strings.ToLower(name)
	if parent := p.enclosingLabel(from); parent != "" && !strings.Contains(name, ".") {
		if off, ok := p.labels[parent+"."+name]; ok {
			return off, true
		}
	}
	off, ok := p.labels[name]
	return off, ok
}

func (p *Program) enclosingLabel(from int) string {
	i := sort.Search(len(p.order), func(i int) bool { return p.order[i].offset > from })
	for i--; i >= 0; i-- {
		if name := p.order[i].name; !strings.Contains(name, ".") {
			return name
		}
	}
	return ""
}

// EventAt returns the event whose handler starts at offset i.
func (p *Program) EventAt(i int) (string, bool) {
	name, ok := p.starts[i]
	return name, ok
}

// EndsHandler reports whether offset i closes an event handler block.
func (p *Program) EndsHandler(i int) bool {
	if i < 0 || i >= len(p.stmts) || p.stmts[i].Kind != StmtClose {
		return false
	}
	return p.handler[p.match[i]]
}

// Match returns the partner brace of a brace statement, or -1.
func (p *Program) Match(i int) int {
	if i < 0 || i >= len(p.match) {
		return -1
	}
	return p.match[i]
}

// Extent returns the offset just past the statement starting at i. A brace
// block is one statement. A conditional includes its guarded statement and
// any else bound to it. A stray closing brace has no extent.
func (p *Program) Extent(i int) int {
	if i >= len(p.stmts) {
		return len(p.stmts)
	}
	st := &p.stmts[i]
	switch st.Kind {
	case StmtOpen:
		return p.match[i] + 1
	case StmtClose:
		return i
	}
	switch st.link {
	case linkCond:
		j := p.Extent(i + 1)
		if p.isElse(j) {
			j = p.Extent(j)
		}
		return j
	case linkElse, linkTail:
		return p.Extent(i + 1)
	}
	return i + 1
}

// Skip returns the offset reached by skipping the statement at i. When an
// else follows the skipped statement the else keyword is stepped over so
// that its body runs.
func (p *Program) Skip(i int) int {
	j := p.Extent(i)
	if p.isElse(j) {
		j++
	}
	return j
}

func (p *Program) isElse(i int) bool {
	return i < len(p.stmts) && p.stmts[i].link == linkElse
}

// EventName normalises an event name: lower case without the "on " prefix.
func EventName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(name, "on "); ok {
		name = strings.TrimSpace(rest)
	}
	return name
}

// Builder assembles a Program statement by statement.
type Builder struct {
	p    *Program
	open []int
	err  error
}

// NewBuilder starts a program with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{p: &Program{
		Name:    name,
		labels:  make(map[string]int),
		events:  make(map[string]int),
		starts:  make(map[int]string),
		handler: make(map[int]bool),
	}}
}

func (b *Builder) fail(line int, format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%s:%d: %s", b.p.Name, line, fmt.Sprintf(format, args...))
	}
}

// Event marks the start of an event handler at the next statement.
func (b *Builder) Event(name string, line int) {
	name = EventName(name)
	if name == "" {
		b.fail(line, "empty event name")
		return
	}
	if _, dup := b.p.events[name]; dup {
		b.fail(line, "duplicate handler for event %q", name)
		return
	}
	off := len(b.p.stmts)
	b.p.events[name] = off
	b.p.starts[off] = name
}

// Label marks a jump target at the next statement.
func (b *Builder) Label(name string, line int) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		b.fail(line, "empty label")
		return
	}
	if _, dup := b.p.labels[name]; dup {
		b.fail(line, "duplicate label %q", name)
		return
	}
	off := len(b.p.stmts)
	b.p.labels[name] = off
	b.p.order = append(b.p.order, labelPos{name: name, offset: off})
}

// Open appends an opening brace.
func (b *Builder) Open(line int) {
	off := len(b.p.stmts)
	if _, ok := b.p.starts[off]; ok {
		b.p.handler[off] = true
	}
	b.open = append(b.open, off)
	b.p.stmts = append(b.p.stmts, Statement{Kind: StmtOpen, Line: line})
	b.p.match = append(b.p.match, -1)
}

// Close appends a closing brace matched to the innermost open one.
func (b *Builder) Close(line int) {
	if len(b.open) == 0 {
		b.fail(line, "unbalanced '}'")
		return
	}
	off := len(b.p.stmts)
	top := b.open[len(b.open)-1]
	b.open = b.open[:len(b.open)-1]
	b.p.stmts = append(b.p.stmts, Statement{Kind: StmtClose, Line: line})
	b.p.match = append(b.p.match, top)
	b.p.match[top] = off
}

// Command appends a command statement.
func (b *Builder) Command(cmd, args string, line int) {
	cmd = strings.ToLower(cmd)
	args = strings.TrimSpace(args)
	b.p.stmts = append(b.p.stmts, Statement{
		Kind:    StmtCommand,
		Command: cmd,
		Args:    args,
		Line:    line,
		link:    linkOf(cmd, args),
	})
	b.p.match = append(b.p.match, -1)
}

// Build finishes the program. The builder must not be used afterwards.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.open) > 0 {
		st := b.p.stmts[b.open[len(b.open)-1]]
		return nil, fmt.Errorf("%s:%d: unbalanced '{'", b.p.Name, st.Line)
	}
	sort.Slice(b.p.order, func(i, j int) bool { return b.p.order[i].offset < b.p.order[j].offset })
	return b.p, nil
}

func linkOf(cmd, args string) link {
	switch cmd {
	case "if", "random":
		return linkCond
	case "else":
		return linkElse
	}
	if IsTimerCommand(cmd) && !timerCancels(cmd, args) {
		return linkTail
	}
	return linkNone
}

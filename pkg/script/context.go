package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// ValueKind is the kind of an operand resolved by Resolve.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
)

func (k ValueKind) String() string {
	if k == KindText {
		return "text"
	}
	return "number"
}

// Value is a resolved operand.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

// Flags holds the option letters given to a command, e.g. "rn" for -rn.
type Flags string

// Has reports whether option c was given.
func (f Flags) Has(c byte) bool { return strings.IndexByte(string(f), c) >= 0 }

// Context is the state of one execution pass.
type Context struct {
	rt     *Runtime
	inst   *Instance
	entity *gamedb.Entity
	sender *gamedb.Entity
	event  string
	params []string

	next    int   // offset executed next
	pos     int   // offset of the running statement
	stack   []int // gosub return offsets
	steps   int
	landed  bool // next was reached by a label jump or return
	jumped  bool // the pass has left its starting statement by a jump
	resumed bool // next was reached by return

	cmd    string
	args   string
	argPos int
	line   int
}

func newContext(rt *Runtime, inst *Instance, e, sender *gamedb.Entity, event, params string) *Context {
	return &Context{
		rt:     rt,
		inst:   inst,
		entity: e,
		sender: sender,
		event:  event,
		params: Fields(params),
	}
}

// run executes statements from entry until a terminal result or the end of
// the handler. A stop offset >= 0 ends the pass there unless a goto moved
// execution elsewhere first. Returning from the last gosub onto stop also
// ends the pass.
func (c *Context) run(entry, stop int) Result {
	prog := c.inst.Program
	c.next = entry
	c.landed = true
	for {
		pos := c.next
		landed, resumed := c.landed, c.resumed
		c.landed, c.resumed = false, false
		if pos < 0 || pos >= prog.Len() {
			return Success
		}
		if stop >= 0 && pos >= stop {
			if !c.jumped || (resumed && pos == stop && len(c.stack) == 0) {
				return Success
			}
		}
		if _, ok := prog.EventAt(pos); ok && !landed {
			return Success
		}
		st := prog.At(pos)
		c.pos = pos
		c.line = st.Line
		switch st.Kind {
		case StmtOpen:
			c.next = pos + 1
			continue
		case StmtClose:
			if prog.EndsHandler(pos) {
				return Success
			}
			c.next = pos + 1
			continue
		}

		c.cmd, c.args, c.argPos = st.Command, st.Args, 0
		c.steps++
		if limit := c.rt.cfg.MaxPassSteps; limit > 0 && c.steps > limit {
			c.Errorf("more than %d commands in one pass", limit)
			return AbortError
		}
		cmd := c.rt.Commands.Lookup(st.Command)
		if cmd == nil {
			c.Errorf("unknown command")
			return AbortError
		}
		c.next = pos + 1
		if res := cmd.Execute(c); res.Terminal() {
			return res
		}
	}
}

// Runtime returns the owning runtime.
func (c *Context) Runtime() *Runtime { return c.rt }

// Instance returns the script instance being executed.
func (c *Context) Instance() *Instance { return c.inst }

// Program returns the program being executed.
func (c *Context) Program() *Program { return c.inst.Program }

// Entity returns the entity whose script runs.
func (c *Context) Entity() *gamedb.Entity { return c.entity }

// Sender returns the entity that raised the event, or nil.
func (c *Context) Sender() *gamedb.Entity { return c.sender }

// Event returns the name of the event being handled.
func (c *Context) Event() string { return c.event }

// Params returns the event parameters.
func (c *Context) Params() []string { return c.params }

// CommandName returns the statement's command name as written.
func (c *Context) CommandName() string { return c.cmd }

// Line returns the source line of the running statement.
func (c *Context) Line() int { return c.line }

// Now returns the game clock in milliseconds.
func (c *Context) Now() int64 { return c.rt.now }

// Random returns a uniform number in [0,1).
func (c *Context) Random() float64 { return c.rt.Rand() }

// Word reads the next argument word, expanding ~var~ references.
func (c *Context) Word() string {
	w, next, ok := nextWord(c.args, c.argPos)
	if !ok {
		c.argPos = len(c.args)
		return ""
	}
	c.argPos = next
	return c.expand(w)
}

// Lowercase reads the next word in lower case.
func (c *Context) Lowercase() string {
	return strings.ToLower(c.Word())
}

// Peek returns the next raw word without consuming it.
func (c *Context) Peek() string {
	w, _, _ := nextWord(c.args, c.argPos)
	return w
}

// HasMore reports whether unread argument text remains.
func (c *Context) HasMore() bool {
	return strings.TrimSpace(c.args[c.argPos:]) != ""
}

// Rest consumes and returns the unread argument text.
func (c *Context) Rest() string {
	rest := strings.TrimSpace(c.args[c.argPos:])
	c.argPos = len(c.args)
	return rest
}

// Float reads the next word as a number, resolving variables.
func (c *Context) Float() float64 {
	return c.FloatVar(c.Word())
}

// Bool reads the next word as on/off.
func (c *Context) Bool() bool {
	switch c.Lowercase() {
	case "on", "yes", "true", "1":
		return true
	}
	return false
}

// Flags consumes a leading -xyz option word. Letters outside allowed are
// reported and dropped.
func (c *Context) Flags(allowed string) Flags {
	w, next, ok := nextWord(c.args, c.argPos)
	if !ok || !isFlagWord(w) {
		return ""
	}
	c.argPos = next
	var b strings.Builder
	for i := 1; i < len(w); i++ {
		ch := w[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		if strings.IndexByte(allowed, ch) < 0 {
			c.Warnf("unknown flag -%c", ch)
			continue
		}
		b.WriteByte(ch)
	}
	return Flags(b.String())
}

// FloatVar resolves a word to a number: a variable, a system variable or a
// numeric literal.
func (c *Context) FloatVar(s string) float64 {
	return c.Resolve(s, KindNumber).Num()
}

// StringVar resolves a word to text: a variable, a system variable or the
// literal word itself.
func (c *Context) StringVar(s string) string {
	return c.Resolve(s, KindText).String()
}

// Num returns the operand as a number, parsing text.
func (v Value) Num() float64 {
	if v.Kind == KindNumber {
		return v.Number
	}
	return ParseNumber(v.Text)
}

// String returns the operand as text.
func (v Value) String() string {
	if v.Kind == KindText {
		return v.Text
	}
	return FormatFloat(v.Number)
}

// Resolve turns a word into an operand. Literals take the kind def.
func (c *Context) Resolve(s string, def ValueKind) Value {
	if s == "" {
		if def == KindText {
			return Value{Kind: KindText}
		}
		return Value{Kind: KindNumber}
	}
	if s[0] == SigilSystem {
		v, ok := c.systemVar(strings.ToLower(s[1:]))
		if !ok {
			c.Warnf("unknown system variable %s", s)
		}
		return v
	}
	if typ := ParseVarType(s); typ != VarNone {
		v, ok := c.table(typ).Get(s)
		switch {
		case typ.Text():
			if ok {
				return Value{Kind: KindText, Text: v.Text}
			}
			return Value{Kind: KindText}
		case ok:
			return Value{Kind: KindNumber, Number: v.Number}
		}
		return Value{Kind: KindNumber}
	}
	if def == KindText {
		return Value{Kind: KindText, Text: s}
	}
	return Value{Kind: KindNumber, Number: ParseNumber(s)}
}

// ParseNumber parses the longest numeric prefix of s; junk yields 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9':
			seenDigit = true
		case ch == '.' && !seenDot:
			seenDot = true
		case (ch == '-' || ch == '+') && i == 0:
		default:
			break scan
		}
		end = i + 1
	}
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func (c *Context) expand(w string) string {
	if !strings.Contains(w, "~") {
		return w
	}
	var b strings.Builder
	for {
		i := strings.IndexByte(w, '~')
		if i < 0 {
			b.WriteString(w)
			return b.String()
		}
		j := strings.IndexByte(w[i+1:], '~')
		if j < 0 {
			b.WriteString(w)
			return b.String()
		}
		b.WriteString(w[:i])
		b.WriteString(c.StringVar(w[i+1 : i+1+j]))
		w = w[i+j+2:]
	}
}

func (c *Context) table(t VarType) *VarTable {
	if t.Global() {
		return c.rt.Globals
	}
	return c.inst.Locals
}

// Var looks a variable up in the table its sigil selects.
func (c *Context) Var(name string) (*Variable, bool) {
	return c.table(ParseVarType(name)).Get(name)
}

// SetText assigns a text variable.
func (c *Context) SetText(name, text string) error {
	_, err := c.table(ParseVarType(name)).SetText(name, text)
	return err
}

// SetNumber assigns a numeric variable.
func (c *Context) SetNumber(name string, f float64) error {
	_, err := c.table(ParseVarType(name)).SetNumber(name, f)
	return err
}

// Unset removes a variable; absent variables are ignored.
func (c *Context) Unset(name string) bool {
	return c.table(ParseVarType(name)).Unset(name)
}

// Goto moves execution to a label.
func (c *Context) Goto(label string) Result {
	off, ok := c.inst.Program.ResolveLabel(label, c.pos)
	if !ok {
		c.Errorf("unknown label %q", label)
		return AbortError
	}
	c.next, c.landed, c.jumped = off, true, true
	return Jumped
}

// Gosub calls a label, returning to the statement after the call.
func (c *Context) Gosub(label string) Result {
	off, ok := c.inst.Program.ResolveLabel(label, c.pos)
	if !ok {
		c.Errorf("unknown label %q", label)
		return AbortError
	}
	if len(c.stack) >= c.rt.cfg.MaxCallDepth {
		c.Errorf("call stack overflow (depth %d)", len(c.stack))
		return AbortError
	}
	c.stack = append(c.stack, c.pos+1)
	c.next, c.landed, c.jumped = off, true, true
	return Jumped
}

// Return resumes after the most recent gosub.
func (c *Context) Return() Result {
	if len(c.stack) == 0 {
		c.Errorf("return failed: no pending gosub")
		return AbortError
	}
	c.next = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.landed, c.jumped, c.resumed = true, true, true
	return Jumped
}

// Depth returns the number of pending gosubs.
func (c *Context) Depth() int { return len(c.stack) }

// SkipStatement skips the statement following the running one. An else
// after it is stepped over so its body runs.
func (c *Context) SkipStatement() {
	c.next = c.inst.Program.Skip(c.pos + 1)
}

// SkipBody skips the statement following the running one without
// stepping into an else.
func (c *Context) SkipBody() {
	c.next = c.inst.Program.Extent(c.pos + 1)
}

// OwnsBody reports whether the running statement takes the following
// statement as its body.
func (c *Context) OwnsBody() bool { return c.inst.Program.At(c.pos).Owns() }

// NextOffset returns the offset of the statement following the running one.
func (c *Context) NextOffset() int { return c.pos + 1 }

// Applicable checks the entity has the capabilities cmd requires. It logs
// a warning and returns false otherwise.
func (c *Context) Applicable(cmd Command) bool {
	req := cmd.Requires()
	if req == gamedb.AnyIO {
		return c.entity != nil
	}
	if c.entity == nil || !c.entity.Has(req) {
		c.Warnf("command %s needs a %s entity", cmd.Name(), req)
		return false
	}
	return true
}

// Warnf reports a recoverable fault on the running statement.
func (c *Context) Warnf(format string, args ...any) {
	c.report(events.EvWarning, format, args...)
}

// Errorf reports a fault that aborts the pass.
func (c *Context) Errorf(format string, args ...any) {
	c.report(events.EvError, format, args...)
}

func (c *Context) report(typ events.EventType, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.cmd != "" {
		msg = c.cmd + ": " + msg
	}
	src := gamedb.Nothing
	if c.sender != nil {
		src = c.sender.Ref
	}
	c.rt.report(typ, c.inst, c.entity, src, c.event, c.line, msg)
}

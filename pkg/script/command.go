package script

import (
	"log"
	"sort"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// Result is the outcome of a single command.
type Result int

const (
	Success     Result = iota // advance to the next statement
	Failed                    // advance; the command logged a warning
	Jumped                    // the command moved the cursor itself
	AbortError                // end the pass with an error
	AbortAccept               // end the pass, event accepted
	AbortRefuse               // end the pass, event refused
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Jumped:
		return "jumped"
	case AbortError:
		return "error"
	case AbortAccept:
		return "accept"
	case AbortRefuse:
		return "refuse"
	}
	return "unknown"
}

// Terminal reports whether the result ends the execution pass.
func (r Result) Terminal() bool {
	return r == AbortError || r == AbortAccept || r == AbortRefuse
}

// Command is a named script operation.
type Command interface {
	// Name is the lower-case command name.
	Name() string
	// Requires lists the capabilities the owning entity must have.
	Requires() gamedb.IOFlags
	// Execute runs the command against the current statement's arguments.
	Execute(ctx *Context) Result
}

// Base carries the name and capability of a command. Built-ins embed it.
type Base struct {
	name     string
	requires gamedb.IOFlags
}

// NewBase returns a Base for a command.
func NewBase(name string, requires gamedb.IOFlags) Base {
	return Base{name: strings.ToLower(name), requires: requires}
}

func (b Base) Name() string             { return b.name }
func (b Base) Requires() gamedb.IOFlags { return b.requires }

// Registry maps command names to commands. Prefix commands match any
// statement whose name starts with the prefix (timer<name>).
type Registry struct {
	commands map[string]Command
	prefixes []Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. A duplicate name is logged and discarded.
func (r *Registry) Register(c Command) bool {
	name := strings.ToLower(c.Name())
	if _, dup := r.commands[name]; dup {
		log.Printf("SCRIPT: duplicate command %q ignored", name)
		return false
	}
	r.commands[name] = c
	return true
}

// RegisterPrefix adds a command matched by name prefix. Exact names win.
func (r *Registry) RegisterPrefix(c Command) bool {
	for _, p := range r.prefixes {
		if p.Name() == c.Name() {
			log.Printf("SCRIPT: duplicate prefix command %q ignored", c.Name())
			return false
		}
	}
	r.prefixes = append(r.prefixes, c)
	sort.Slice(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].Name()) > len(r.prefixes[j].Name())
	})
	return true
}

// Lookup finds the command for a statement name.
func (r *Registry) Lookup(name string) Command {
	name = strings.ToLower(name)
	if c, ok := r.commands[name]; ok {
		return c
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p.Name()) {
			return p
		}
	}
	return nil
}

// Names returns the registered exact names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of exact and prefix commands.
func (r *Registry) Len() int {
	return len(r.commands) + len(r.prefixes)
}

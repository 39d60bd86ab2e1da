package script

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// ErrTableFull is returned when a variable table has reached its capacity.
var ErrTableFull = errors.New("script: variable table full")

// VarType is the scope and kind of a variable, fixed by its sigil.
type VarType int

const (
	VarNone VarType = iota
	GlobalText
	LocalText
	GlobalInt
	LocalInt
	GlobalFloat
	LocalFloat
)

// Sigil runes. The local sigils are Latin-1 characters in the legacy
// script encoding; the loader decodes them to their Unicode code points.
const (
	SigilGlobalText  = '$'
	SigilLocalText   = '£'
	SigilGlobalInt   = '#'
	SigilLocalInt    = '§'
	SigilGlobalFloat = '&'
	SigilLocalFloat  = '@'
	SigilSystem      = '^'
)

// ParseVarType returns the type named by the leading sigil of a variable name.
func ParseVarType(name string) VarType {
	r, _ := utf8.DecodeRuneInString(name)
	switch r {
	case SigilGlobalText:
		return GlobalText
	case SigilLocalText:
		return LocalText
	case SigilGlobalInt:
		return GlobalInt
	case SigilLocalInt:
		return LocalInt
	case SigilGlobalFloat:
		return GlobalFloat
	case SigilLocalFloat:
		return LocalFloat
	}
	return VarNone
}

// Global reports whether the variable lives in the runtime-wide table.
func (t VarType) Global() bool {
	return t == GlobalText || t == GlobalInt || t == GlobalFloat
}

// Text reports whether the variable holds a string.
func (t VarType) Text() bool { return t == GlobalText || t == LocalText }

// Int reports whether the variable holds a truncated integer.
func (t VarType) Int() bool { return t == GlobalInt || t == LocalInt }

// Float reports whether the variable holds a float.
func (t VarType) Float() bool { return t == GlobalFloat || t == LocalFloat }

// Numeric reports whether the variable holds a number of either kind.
func (t VarType) Numeric() bool { return t.Int() || t.Float() }

func (t VarType) String() string {
	switch t {
	case GlobalText:
		return "global text"
	case LocalText:
		return "local text"
	case GlobalInt:
		return "global integer"
	case LocalInt:
		return "local integer"
	case GlobalFloat:
		return "global float"
	case LocalFloat:
		return "local float"
	}
	return "none"
}

// Variable is one entry of a variable table. Integer variables keep their
// value in Number already truncated.
type Variable struct {
	Name   string
	Type   VarType
	Text   string
	Number float64
}

// String renders the value the way text substitution sees it.
func (v *Variable) String() string {
	switch {
	case v.Type.Text():
		return v.Text
	case v.Type.Int():
		return strconv.FormatInt(int64(v.Number), 10)
	}
	return FormatFloat(v.Number)
}

// FormatFloat renders a float without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type varKey struct {
	typ  VarType
	name string
}

// VarTable is a bounded, case-insensitive variable table. The runtime owns
// one global table; every Script Instance owns a local one.
type VarTable struct {
	max  int
	vars map[varKey]*Variable
	fold cases.Caser
}

// NewVarTable creates a table holding at most limit variables (0 = unbounded).
func NewVarTable(limit int) *VarTable {
	return &VarTable{max: limit, vars: make(map[varKey]*Variable), fold: cases.Fold()}
}

func (t *VarTable) keyOf(name string) varKey {
	return varKey{typ: ParseVarType(name), name: t.fold.String(name)}
}

// Get looks a variable up by its full name, sigil included.
func (t *VarTable) Get(name string) (*Variable, bool) {
	v, ok := t.vars[t.keyOf(name)]
	return v, ok
}

func (t *VarTable) slot(name string) (*Variable, error) {
	k := t.keyOf(name)
	if k.typ == VarNone {
		return nil, errors.New("script: variable " + strconv.Quote(name) + " has no sigil")
	}
	if v, ok := t.vars[k]; ok {
		return v, nil
	}
	if t.max > 0 && len(t.vars) >= t.max {
		return nil, ErrTableFull
	}
	v := &Variable{Name: name, Type: k.typ}
	t.vars[k] = v
	return v, nil
}

// SetText assigns a text variable, creating it if needed.
func (t *VarTable) SetText(name, text string) (*Variable, error) {
	v, err := t.slot(name)
	if err != nil {
		return nil, err
	}
	if !v.Type.Text() {
		return nil, errors.New("script: " + name + " is not a text variable")
	}
	v.Text = text
	return v, nil
}

// SetNumber assigns a numeric variable, truncating toward zero for integers.
func (t *VarTable) SetNumber(name string, f float64) (*Variable, error) {
	v, err := t.slot(name)
	if err != nil {
		return nil, err
	}
	if !v.Type.Numeric() {
		return nil, errors.New("script: " + name + " is not a numeric variable")
	}
	if v.Type.Int() {
		f = truncate(f)
	}
	v.Number = f
	return v, nil
}

// Unset removes a variable. It reports whether the variable existed.
func (t *VarTable) Unset(name string) bool {
	k := t.keyOf(name)
	if _, ok := t.vars[k]; !ok {
		return false
	}
	delete(t.vars, k)
	return true
}

// Len returns the number of live variables.
func (t *VarTable) Len() int { return len(t.vars) }

// Cap returns the table capacity (0 = unbounded).
func (t *VarTable) Cap() int { return t.max }

// Clear removes every variable.
func (t *VarTable) Clear() {
	t.vars = make(map[varKey]*Variable)
}

// All returns a copy of every variable ordered by name.
func (t *VarTable) All() []Variable {
	out := make([]Variable, 0, len(t.vars))
	for _, v := range t.vars {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load replaces the table contents with vars.
func (t *VarTable) Load(vars []Variable) error {
	t.Clear()
	for _, v := range vars {
		slot, err := t.slot(v.Name)
		if err != nil {
			return err
		}
		slot.Text = v.Text
		slot.Number = v.Number
	}
	return nil
}

func truncate(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Trunc(f)
}

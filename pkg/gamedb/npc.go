package gamedb

import "strings"

// Behavior is the NPC behavior bitmask driven by the behavior command.
type Behavior int

const (
	BehaviorNone        Behavior = 1 << iota
	BehaviorFriendly
	BehaviorMoveTo
	BehaviorWanderAround
	BehaviorFlee
	BehaviorHide
	BehaviorLookFor
	BehaviorSneak
	BehaviorFight
	BehaviorMagic
	BehaviorGuard
	BehaviorGoHome
	BehaviorStareAt
	BehaviorDistance
	BehaviorLookAround
)

// Tactics selects the NPC combat style.
type Tactics int

const (
	TacticsNormal Tactics = iota
	TacticsSneak
	TacticsFight
)

// MoveMode is the NPC locomotion mode.
type MoveMode int

const (
	MoveWalk MoveMode = iota
	MoveRun
	MoveNone
	MoveSneak
)

var moveModeNames = map[string]MoveMode{
	"walk":  MoveWalk,
	"run":   MoveRun,
	"none":  MoveNone,
	"sneak": MoveSneak,
}

// ParseMoveMode returns the mode for a script word.
func ParseMoveMode(name string) (MoveMode, bool) {
	m, ok := moveModeNames[strings.ToLower(name)]
	return m, ok
}

func (m MoveMode) String() string {
	for name, v := range moveModeNames {
		if v == m {
			return name
		}
	}
	return "unknown"
}

// BehaviorState is one entry of an NPC's behavior stack.
type BehaviorState struct {
	Behavior Behavior
	Param    float64
	Tactics  Tactics
	MoveMode MoveMode
	Target   Ref
}

// NPCData is the NPC-specific state of an entity.
type NPCData struct {
	Life        float64
	MaxLife     float64
	Mana        float64
	MaxMana     float64
	Speed       float64
	Detect      int // -1 disables detection
	Blood       [3]uint8
	StareFactor float64
	XPValue     int64
	MoveMode    MoveMode

	Behavior      Behavior
	BehaviorParam float64
	Tactics       Tactics
	Stack         []BehaviorState

	PathTarget   Ref
	PathOnce     bool // compute the path once, do not follow target moves
	PathAlways   bool // recompute continuously
	PathNoUpdate bool // keep the current path when the target changes
	Stats        map[string]float64
}

// NewNPCData returns NPC state with the engine defaults.
func NewNPCData() *NPCData {
	return &NPCData{
		Life:        20,
		MaxLife:     20,
		Speed:       1,
		Detect:      -1,
		Blood:       [3]uint8{255, 0, 0},
		StareFactor: 1,
		Behavior:    BehaviorNone,
		PathTarget:  Nothing,
		Stats:       make(map[string]float64),
	}
}

// npcStats lists the stat names accepted by setnpcstat, with their aliases.
var npcStats = map[string]string{
	"armor_class":   "armor_class",
	"ac":            "armor_class",
	"absorb":        "absorb",
	"damages":       "damages",
	"tohit":         "tohit",
	"aimtime":       "aimtime",
	"life":          "life",
	"maxlife":       "maxlife",
	"mana":          "mana",
	"maxmana":       "maxmana",
	"resistmagic":   "resistmagic",
	"resistpoison":  "resistpoison",
	"resistfire":    "resistfire",
	"critical":      "critical",
	"backstab":      "backstab",
	"backstabskill": "backstabskill",
	"reach":         "reach",
	"detect":        "detect",
	"stealth":       "stealth",
}

// CanonicalStat resolves a setnpcstat name or alias.
func CanonicalStat(name string) (string, bool) {
	s, ok := npcStats[strings.ToLower(name)]
	return s, ok
}

// SetStat stores a named stat, keeping the structured fields in step.
func (n *NPCData) SetStat(name string, v float64) bool {
	stat, ok := CanonicalStat(name)
	if !ok {
		return false
	}
	switch stat {
	case "life":
		n.Life = v
	case "maxlife":
		n.MaxLife = v
	case "mana":
		n.Mana = v
	case "maxmana":
		n.MaxMana = v
	case "detect":
		n.Detect = int(v)
	}
	n.Stats[stat] = v
	return true
}

// PushBehavior saves the current behavior on the stack.
func (n *NPCData) PushBehavior(target Ref) {
	n.Stack = append(n.Stack, BehaviorState{
		Behavior: n.Behavior,
		Param:    n.BehaviorParam,
		Tactics:  n.Tactics,
		MoveMode: n.MoveMode,
		Target:   target,
	})
}

// PopBehavior restores the last saved behavior. It returns false when the
// stack is empty.
func (n *NPCData) PopBehavior() (BehaviorState, bool) {
	if len(n.Stack) == 0 {
		return BehaviorState{}, false
	}
	top := n.Stack[len(n.Stack)-1]
	n.Stack = n.Stack[:len(n.Stack)-1]
	n.Behavior = top.Behavior
	n.BehaviorParam = top.Param
	n.Tactics = top.Tactics
	n.MoveMode = top.MoveMode
	return top, true
}

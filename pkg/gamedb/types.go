package gamedb

import (
	"math"
	"sort"
	"strings"
)

// Ref is the fundamental entity reference type.
type Ref int

const (
	Nothing Ref = -1
	Self    Ref = -2 // resolved by the caller to the asking entity
)

// Player is the reference reserved for the player entity.
const Player Ref = 0

// IOFlags are the capability bits of an entity.
type IOFlags int

const (
	IONPC    IOFlags = 0x0001
	IOItem   IOFlags = 0x0002
	IOFix    IOFlags = 0x0004
	IOCamera IOFlags = 0x0008
	IOMarker IOFlags = 0x0010
	IOPlayer IOFlags = 0x0020

	// AnyIO marks a command usable by every entity.
	AnyIO IOFlags = 0
)

func (f IOFlags) String() string {
	var parts []string
	for _, n := range ioFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, "|")
}

var ioFlagNames = []struct {
	flag IOFlags
	name string
}{
	{IONPC, "npc"},
	{IOItem, "item"},
	{IOFix, "fix"},
	{IOCamera, "camera"},
	{IOMarker, "marker"},
	{IOPlayer, "player"},
}

// ParseIOFlag maps a level-file capability name to its flag.
func ParseIOFlag(name string) (IOFlags, bool) {
	for _, n := range ioFlagNames {
		if n.name == strings.ToLower(name) {
			return n.flag, true
		}
	}
	return 0, false
}

// ItemType flags classify items for the istype operator.
type ItemType int

const (
	ItemWeapon ItemType = 1 << iota
	ItemDagger
	Item1H
	Item2H
	ItemBow
	ItemShield
	ItemFood
	ItemGold
	ItemArmor
	ItemHelmet
	ItemRing
	ItemLeggings
)

var itemTypeNames = map[string]ItemType{
	"weapon":   ItemWeapon,
	"dagger":   ItemDagger,
	"1h":       Item1H,
	"2h":       Item2H,
	"bow":      ItemBow,
	"shield":   ItemShield,
	"food":     ItemFood,
	"gold":     ItemGold,
	"armor":    ItemArmor,
	"helmet":   ItemHelmet,
	"ring":     ItemRing,
	"leggings": ItemLeggings,
}

// ParseItemType returns the flag for a type name, or false if it is unknown.
func ParseItemType(name string) (ItemType, bool) {
	t, ok := itemTypeNames[strings.ToLower(name)]
	return t, ok
}

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float64
}

// DistSqr returns the squared distance between two positions.
func (v Vec3) DistSqr(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Dist returns the distance between two positions.
func (v Vec3) Dist(o Vec3) float64 {
	return math.Sqrt(v.DistSqr(o))
}

// Entity is a simulation entity that may own a script.
type Entity struct {
	Ref    Ref
	Name   string // unique instance name, e.g. "goblin_base_0012"
	Class  string // class name, e.g. "goblin_base"
	Flags  IOFlags
	Types  ItemType
	Groups map[string]bool
	Pos    Vec3
	Alive  bool
	Target Ref

	StatSent     int64
	StatReceived int64

	NPC *NPCData
}

// Has reports whether every capability bit in f is set on the entity.
func (e *Entity) Has(f IOFlags) bool {
	return e.Flags&f == f
}

// InGroup reports group membership.
func (e *Entity) InGroup(name string) bool {
	return e.Groups[strings.ToLower(name)]
}

// AddGroup puts the entity in a named group.
func (e *Entity) AddGroup(name string) {
	if e.Groups == nil {
		e.Groups = make(map[string]bool)
	}
	e.Groups[strings.ToLower(name)] = true
}

// RemoveGroup takes the entity out of a named group.
func (e *Entity) RemoveGroup(name string) {
	delete(e.Groups, strings.ToLower(name))
}

// Database holds the complete in-memory world state.
type Database struct {
	Entities map[Ref]*Entity
	Zones    map[string]*Zone
	byName   map[string]Ref
	nextRef  Ref
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		Entities: make(map[Ref]*Entity),
		Zones:    make(map[string]*Zone),
		byName:   make(map[string]Ref),
		nextRef:  1,
	}
}

// NewEntity returns a live entity with no reference and no target.
func NewEntity(name, class string, flags IOFlags) *Entity {
	return &Entity{
		Ref:    Nothing,
		Name:   name,
		Class:  class,
		Flags:  flags,
		Groups: make(map[string]bool),
		Alive:  true,
		Target: Nothing,
	}
}

// Add inserts an entity. An entity whose Ref is Nothing gets the next free
// reference.
func (db *Database) Add(e *Entity) *Entity {
	if e.Ref == Nothing {
		e.Ref = db.nextRef
	}
	if e.Ref >= db.nextRef {
		db.nextRef = e.Ref + 1
	}
	if e.Groups == nil {
		e.Groups = make(map[string]bool)
	}
	db.Entities[e.Ref] = e
	db.byName[strings.ToLower(e.Name)] = e.Ref
	return e
}

// Remove deletes an entity.
func (db *Database) Remove(ref Ref) {
	if e, ok := db.Entities[ref]; ok {
		delete(db.byName, strings.ToLower(e.Name))
		delete(db.Entities, ref)
	}
}

// Get returns the entity for a reference, or nil.
func (db *Database) Get(ref Ref) *Entity {
	return db.Entities[ref]
}

// Lookup finds an entity by its instance name (case-insensitive).
func (db *Database) Lookup(name string) *Entity {
	if ref, ok := db.byName[strings.ToLower(name)]; ok {
		return db.Entities[ref]
	}
	return nil
}

// LookupTarget resolves a script target word: "self"/"me" yield Self,
// "none" yields Nothing, "player" the player, anything else a name lookup.
func (db *Database) LookupTarget(name string) Ref {
	switch strings.ToLower(name) {
	case "self", "me":
		return Self
	case "none", "":
		return Nothing
	case "player":
		if _, ok := db.Entities[Player]; ok {
			return Player
		}
		return Nothing
	}
	if e := db.Lookup(name); e != nil {
		return e.Ref
	}
	return Nothing
}

// Sorted returns all entities ordered by reference.
func (db *Database) Sorted() []*Entity {
	out := make([]*Entity, 0, len(db.Entities))
	for _, e := range db.Entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

// GroupMembers returns the entities in a group ordered by reference.
func (db *Database) GroupMembers(group string) []*Entity {
	var out []*Entity
	for _, e := range db.Sorted() {
		if e.InGroup(group) {
			out = append(out, e)
		}
	}
	return out
}

// Zone returns a named zone, or nil.
func (db *Database) Zone(name string) *Zone {
	return db.Zones[strings.ToLower(name)]
}

// AddZone registers a zone.
func (db *Database) AddZone(z *Zone) {
	db.Zones[strings.ToLower(z.Name)] = z
}

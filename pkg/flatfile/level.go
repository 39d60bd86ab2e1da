package flatfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// Level describes the entities and zones of a simulated world.
type Level struct {
	Name     string       `yaml:"name"`
	Player   *EntitySpec  `yaml:"player"`
	Entities []EntitySpec `yaml:"entities"`
	Zones    []ZoneSpec   `yaml:"zones"`
}

// EntitySpec is one entity of a level file.
type EntitySpec struct {
	Name   string     `yaml:"name"`
	Class  string     `yaml:"class"`
	Flags  []string   `yaml:"flags"`
	Types  []string   `yaml:"types"`
	Groups []string   `yaml:"groups"`
	Pos    [3]float64 `yaml:"pos"`
	Script string     `yaml:"script"`
	Main   string     `yaml:"main"`
	NPC    *NPCSpec   `yaml:"npc"`
}

// NPCSpec overrides the NPC defaults of an entity.
type NPCSpec struct {
	Life     float64            `yaml:"life"`
	Mana     float64            `yaml:"mana"`
	Speed    float64            `yaml:"speed"`
	Detect   *int               `yaml:"detect"`
	XPValue  int64              `yaml:"xp"`
	MoveMode string             `yaml:"move_mode"`
	Stats    map[string]float64 `yaml:"stats"`
}

// ZoneSpec is a polygonal zone of a level file.
type ZoneSpec struct {
	Name    string       `yaml:"name"`
	Points  [][2]float64 `yaml:"points"` // X, Z
	Floor   float64      `yaml:"floor"`
	Ceiling float64      `yaml:"ceiling"`
}

// Placement ties a populated entity to the script it runs.
type Placement struct {
	Entity *gamedb.Entity
	Script string
	Main   string
}

// LoadLevel reads a YAML level file. Relative script paths are resolved
// against the level file's directory.
func LoadLevel(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open level: %w", err)
	}
	lvl, err := ParseLevel(data)
	if err != nil {
		return nil, fmt.Errorf("level %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	fix := func(e *EntitySpec) {
		if e.Script != "" && !filepath.IsAbs(e.Script) {
			e.Script = filepath.Join(dir, e.Script)
		}
	}
	if lvl.Player != nil {
		fix(lvl.Player)
	}
	for i := range lvl.Entities {
		fix(&lvl.Entities[i])
	}
	return lvl, nil
}

// ParseLevel decodes level YAML.
func ParseLevel(data []byte) (*Level, error) {
	var lvl Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	return &lvl, nil
}

// Populate adds the level's zones and entities to db. Entities get
// references in file order after the player.
func (l *Level) Populate(db *gamedb.Database) ([]Placement, error) {
	for _, zs := range l.Zones {
		if zs.Name == "" {
			return nil, fmt.Errorf("zone without a name")
		}
		z := &gamedb.Zone{Name: zs.Name, Floor: zs.Floor, Ceiling: zs.Ceiling}
		for _, p := range zs.Points {
			z.Points = append(z.Points, gamedb.Vec3{X: p[0], Z: p[1]})
		}
		db.AddZone(z)
	}

	var out []Placement
	if l.Player != nil {
		e, err := l.Player.entity()
		if err != nil {
			return nil, err
		}
		e.Ref = gamedb.Player
		e.Flags |= gamedb.IOPlayer
		if db.Get(gamedb.Player) != nil {
			return nil, fmt.Errorf("player already exists")
		}
		db.Add(e)
		out = append(out, Placement{Entity: e, Script: l.Player.Script, Main: l.Player.Main})
	}
	for i := range l.Entities {
		def := &l.Entities[i]
		if db.Lookup(def.Name) != nil {
			return nil, fmt.Errorf("duplicate entity %q", def.Name)
		}
		e, err := def.entity()
		if err != nil {
			return nil, err
		}
		db.Add(e)
		out = append(out, Placement{Entity: e, Script: def.Script, Main: def.Main})
	}
	return out, nil
}

func (s *EntitySpec) entity() (*gamedb.Entity, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("entity without a name")
	}
	class := s.Class
	if class == "" {
		class = s.Name
	}
	var flags gamedb.IOFlags
	for _, name := range s.Flags {
		f, ok := gamedb.ParseIOFlag(name)
		if !ok {
			return nil, fmt.Errorf("entity %s: unknown flag %q", s.Name, name)
		}
		flags |= f
	}
	e := gamedb.NewEntity(s.Name, strings.ToLower(class), flags)
	for _, name := range s.Types {
		t, ok := gamedb.ParseItemType(name)
		if !ok {
			return nil, fmt.Errorf("entity %s: unknown item type %q", s.Name, name)
		}
		e.Types |= t
	}
	for _, g := range s.Groups {
		e.AddGroup(g)
	}
	e.Pos = gamedb.Vec3{X: s.Pos[0], Y: s.Pos[1], Z: s.Pos[2]}

	if s.NPC != nil || e.Has(gamedb.IONPC) {
		e.Flags |= gamedb.IONPC
		e.NPC = gamedb.NewNPCData()
		if n := s.NPC; n != nil {
			if n.Life > 0 {
				e.NPC.Life, e.NPC.MaxLife = n.Life, n.Life
			}
			if n.Mana > 0 {
				e.NPC.Mana, e.NPC.MaxMana = n.Mana, n.Mana
			}
			if n.Speed > 0 {
				e.NPC.Speed = n.Speed
			}
			if n.Detect != nil {
				e.NPC.Detect = *n.Detect
			}
			e.NPC.XPValue = n.XPValue
			if n.MoveMode != "" {
				m, ok := gamedb.ParseMoveMode(n.MoveMode)
				if !ok {
					return nil, fmt.Errorf("entity %s: unknown move mode %q", s.Name, n.MoveMode)
				}
				e.NPC.MoveMode = m
			}
			for stat, v := range n.Stats {
				if !e.NPC.SetStat(stat, v) {
					return nil, fmt.Errorf("entity %s: unknown stat %q", s.Name, stat)
				}
			}
		}
	}
	return e, nil
}

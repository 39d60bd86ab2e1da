package script

import (
	"strconv"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// farAway is the distance reported for targets that cannot be measured.
const farAway = 99999999

func (c *Context) systemVar(name string) (Value, bool) {
	text := func(s string) (Value, bool) { return Value{Kind: KindText, Text: s}, true }
	num := func(f float64) (Value, bool) { return Value{Kind: KindNumber, Number: f}, true }

	switch name {
	case "me":
		return text(c.entity.Name)
	case "class":
		return text(c.entity.Class)
	case "sender":
		if c.sender == nil {
			return text("none")
		}
		return text(c.sender.Name)
	case "target":
		if t := c.rt.DB.Get(c.entity.Target); t != nil {
			return text(t.Name)
		}
		return text("none")
	case "gameseconds":
		return num(float64(c.rt.now / 1000))
	case "gamemseconds":
		return num(float64(c.rt.now))
	case "life":
		if c.entity.NPC != nil {
			return num(c.entity.NPC.Life)
		}
		return num(0)
	case "dead":
		if c.entity.Alive {
			return num(0)
		}
		return num(1)
	}

	if rest, ok := strings.CutPrefix(name, "param"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 {
			return Value{Kind: KindText}, false
		}
		if i > len(c.params) {
			return text("")
		}
		return text(c.params[i-1])
	}
	if rest, ok := strings.CutPrefix(name, "rnd_"); ok {
		return num(ParseNumber(rest) * c.rt.Rand())
	}
	if rest, ok := strings.CutPrefix(name, "#timer"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 || i > len(c.inst.Clocks) {
			return Value{Kind: KindNumber}, false
		}
		start := c.inst.Clocks[i-1]
		if start == 0 {
			return num(0)
		}
		return num(float64(c.rt.now - start))
	}
	if rest, ok := strings.CutPrefix(name, "dist_"); ok {
		ref := c.rt.DB.LookupTarget(rest)
		if ref == gamedb.Self {
			return num(0)
		}
		t := c.rt.DB.Get(ref)
		if t == nil {
			return num(farAway)
		}
		return num(c.entity.Pos.Dist(t.Pos))
	}
	return Value{Kind: KindText}, false
}

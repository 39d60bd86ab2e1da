package script

import (
	"sort"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// SendFilter narrows the recipients of zone and radius sends.
type SendFilter struct {
	Types gamedb.IOFlags // any of these kinds; 0 means NPCs only
	Group string         // only members of this group, if set
}

func (f SendFilter) accepts(e *gamedb.Entity) bool {
	types := f.Types
	if types == 0 {
		types = gamedb.IONPC
	}
	if e.Flags&types == 0 {
		return false
	}
	return f.Group == "" || e.InGroup(f.Group)
}

func unaddressable(e *gamedb.Entity) bool {
	return e.Flags&(gamedb.IOCamera|gamedb.IOMarker) != 0
}

// SendEvent delivers an event to one entity and runs its handler before
// returning. The sender (nil for engine events) is credited with the send.
func (rt *Runtime) SendEvent(sender, target *gamedb.Entity, event, params string) Result {
	if sender != nil {
		sender.StatSent++
	}
	return rt.deliver(sender, target, event, params)
}

// SendGroup delivers an event to every member of a group except the sender.
// It returns the number of deliveries.
func (rt *Runtime) SendGroup(sender *gamedb.Entity, group, event, params string) int {
	n := 0
	for _, e := range rt.DB.GroupMembers(group) {
		if e == sender {
			continue
		}
		rt.SendEvent(sender, e, event, params)
		n++
	}
	return n
}

// SendZone delivers an event to every matching entity inside a zone. The
// sender is a valid recipient.
func (rt *Runtime) SendZone(sender *gamedb.Entity, zone *gamedb.Zone, f SendFilter, event, params string) int {
	n := 0
	for _, e := range rt.DB.Sorted() {
		if unaddressable(e) || !f.accepts(e) || !zone.Contains(e.Pos) {
			continue
		}
		rt.SendEvent(sender, e, event, params)
		n++
	}
	return n
}

// SendRadius delivers an event to every matching entity within radius of
// center, excluding the sender.
func (rt *Runtime) SendRadius(sender *gamedb.Entity, center gamedb.Vec3, radius float64, f SendFilter, event, params string) int {
	n := 0
	r2 := radius * radius
	for _, e := range rt.DB.Sorted() {
		if e == sender || unaddressable(e) || !f.accepts(e) {
			continue
		}
		if e.Pos.DistSqr(center) > r2 {
			continue
		}
		rt.SendEvent(sender, e, event, params)
		n++
	}
	return n
}

func sortRefs(refs []gamedb.Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
}

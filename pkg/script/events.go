package script

import "strings"

// DisabledEvents is the per-instance mask of events switched off by setevent.
type DisabledEvents int

const (
	DisableCollideNPC DisabledEvents = 1 << iota
	DisableChat
	DisableHit
	DisableInventory2Open
	DisableDetectPlayer
	DisableHear
	DisableAggression
	DisableMain
	DisableCursorMode
	DisableExplorationMode
)

var disableNames = map[string]DisabledEvents{
	"collide_npc":     DisableCollideNPC,
	"chat":            DisableChat,
	"hit":             DisableHit,
	"inventory2_open": DisableInventory2Open,
	"detectplayer":    DisableDetectPlayer,
	"hear":            DisableHear,
	"aggression":      DisableAggression,
	"main":            DisableMain,
	"cursormode":      DisableCursorMode,
	"explorationmode": DisableExplorationMode,
}

// ParseDisabledEvent returns the mask bit for an event that can be switched off.
func ParseDisabledEvent(name string) (DisabledEvents, bool) {
	bit, ok := disableNames[strings.ToLower(name)]
	return bit, ok
}

// KnownEvents are the event names the engine raises itself.
var KnownEvents = map[string]bool{
	"init": true, "initend": true, "main": true, "reset": true, "load": true, "reload": true,
	"inventoryin": true, "inventoryout": true, "inventoryuse": true, "sceneuse": true,
	"equipin": true, "equipout": true, "combine": true, "identify": true, "steal": true,
	"inventory2_open": true, "inventory2_close": true, "book_open": true, "book_close": true,
	"chat": true, "action": true, "clicked": true, "custom": true, "key_pressed": true,
	"dead": true, "die": true, "hit": true, "ouch": true, "fight": true, "flee": true,
	"strike": true, "backstab": true, "critical": true, "aggression": true, "break": true,
	"reachedtarget": true, "losttarget": true, "pathend": true, "waypoint": true,
	"pathfinder_failure": true, "pathfinder_success": true, "collision_error": true,
	"collision_error_detail": true, "move": true, "npc_follow": true, "npc_fight": true,
	"npc_stay": true, "treatin": true, "treatout": true, "summoned": true,
	"detectplayer": true, "undetectplayer": true, "hear": true,
	"collide_npc": true, "collide_door": true, "collide_field": true,
	"enterzone": true, "leavezone": true, "controlled_zone_enter": true,
	"controlled_zone_leave": true, "spellcast": true, "spellend": true,
	"spelldecision": true, "trap_disarmed": true, "game_ready": true, "cine_end": true,
	"controls_on": true, "controls_off": true, "cursormode": true, "explorationmode": true,
}

// IsKnownEvent reports whether name (with or without "on ") is an engine event.
func IsKnownEvent(name string) bool {
	return KnownEvents[EventName(name)]
}

package events

import "github.com/crystal-mush/arxscript/pkg/gamedb"

// EventType classifies script activity published on the bus.
type EventType int

const (
	EvDelivered      EventType = iota // An event reached an entity's handler
	EvPassEnd                         // An execution pass finished
	EvWarning                         // Recoverable script fault
	EvError                           // Pass aborted with an error
	EvTimerArmed                      // settimer (re)armed a timer
	EvTimerFired                      // A timer resumed its script
	EvTimerCancelled                  // A timer was cancelled or exhausted
	EvReload                          // A program was replaced at runtime
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvDelivered:
		return "delivered"
	case EvPassEnd:
		return "pass_end"
	case EvWarning:
		return "warning"
	case EvError:
		return "error"
	case EvTimerArmed:
		return "timer_armed"
	case EvTimerFired:
		return "timer_fired"
	case EvTimerCancelled:
		return "timer_cancelled"
	case EvReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Event is a structured notification about script execution. Observers
// (metrics, the diagnostics journal, the debug feed) decide how to encode it.
type Event struct {
	Type    EventType
	Entity  gamedb.Ref // Entity whose script is involved
	Source  gamedb.Ref // Sender of the script event (Nothing if external)
	Program string     // Script program name
	Name    string     // Script event or timer name
	Line    int        // Source line, 0 if unknown
	Result  string     // Pass outcome for EvPassEnd
	Text    string     // Pre-formatted message
}

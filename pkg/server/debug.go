package server

import (
	"log"
	"strings"
	"sync"
)

// Debug output is grouped by subsystem, taken from the message prefix up to
// the first colon ("AI", "SPELL", "QUEUE" ...).
var debugState struct {
	mu   sync.RWMutex
	on   bool
	only map[string]bool // nil means every subsystem
}

// SetDebug enables or disables debug logging. A non-empty subsystems list
// ("ai,queue") limits output to those prefixes.
func SetDebug(on bool, subsystems string) {
	var only map[string]bool
	for _, s := range strings.Split(subsystems, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			if only == nil {
				only = make(map[string]bool)
			}
			only[s] = true
		}
	}
	debugState.mu.Lock()
	debugState.on, debugState.only = on, only
	debugState.mu.Unlock()
	if on {
		if only != nil {
			log.Printf("[DEBUG] Debug logging enabled for %s", strings.ToUpper(subsystems))
		} else {
			log.Printf("[DEBUG] Debug logging enabled")
		}
	}
}

// IsDebug reports whether debug output for subsystem would be printed.
func IsDebug(subsystem string) bool {
	debugState.mu.RLock()
	defer debugState.mu.RUnlock()
	if !debugState.on {
		return false
	}
	return debugState.only == nil || debugState.only[strings.ToUpper(subsystem)]
}

// DebugLog prints a debug message when its subsystem is enabled.
func DebugLog(format string, args ...any) {
	subsystem, _, _ := strings.Cut(format, ":")
	if IsDebug(subsystem) {
		log.Printf("[DEBUG] "+format, args...)
	}
}

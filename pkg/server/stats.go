package server

import (
	"runtime"
	"time"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// QueueStats returns event queue depth info.
func (g *Game) QueueStats() map[string]any {
	immediate, waiting := g.Queue.Stats()
	return map[string]any{
		"immediate": immediate,
		"waiting":   waiting,
	}
}

// MemoryStats returns Go runtime memory statistics.
func (g *Game) MemoryStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]any{
		"heap_alloc_bytes":  m.HeapAlloc,
		"heap_inuse_bytes":  m.HeapInuse,
		"heap_alloc_mb":     float64(m.HeapAlloc) / 1024 / 1024,
		"goroutines":        runtime.NumGoroutine(),
		"gc_cycles":         m.NumGC,
		"gc_pause_total_ns": m.PauseTotalNs,
	}
}

// GameStats returns world and script counts.
func (g *Game) GameStats() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	kinds := map[string]int{"player": 0, "npcs": 0, "items": 0, "fixed": 0, "cameras": 0, "markers": 0}
	dead := 0
	for _, e := range g.DB.Entities {
		switch {
		case e.Flags&gamedb.IOPlayer != 0:
			kinds["player"]++
		case e.Flags&gamedb.IONPC != 0:
			kinds["npcs"]++
		case e.Flags&gamedb.IOItem != 0:
			kinds["items"]++
		case e.Flags&gamedb.IOFix != 0:
			kinds["fixed"]++
		case e.Flags&gamedb.IOCamera != 0:
			kinds["cameras"]++
		case e.Flags&gamedb.IOMarker != 0:
			kinds["markers"]++
		}
		if !e.Alive {
			dead++
		}
	}

	rt := g.Runtime
	return map[string]any{
		"entities":       len(g.DB.Entities),
		"entity_kinds":   kinds,
		"dead":           dead,
		"zones":          len(g.DB.Zones),
		"programs":       len(g.Programs),
		"instances":      rt.Instances(),
		"globals":        rt.Globals.Len(),
		"globals_cap":    rt.Globals.Cap(),
		"timers":         rt.Timers.Active(),
		"timers_cap":     rt.Timers.Capacity(),
		"active_spells":  len(g.services.spells),
		"ticks":          g.ticks,
		"last_tick_ms":   float64(g.lastTick) / float64(time.Millisecond),
		"game_clock_ms":  rt.Now(),
		"uptime_seconds": time.Since(g.startTime).Seconds(),
	}
}

// Stats gathers every stats group for the console.
func (g *Game) Stats() map[string]any {
	return map[string]any{
		"game":   g.GameStats(),
		"queue":  g.QueueStats(),
		"memory": g.MemoryStats(),
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/arxscript/pkg/boltstore"
	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/flatfile"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
	"github.com/crystal-mush/arxscript/pkg/script/commands"
	"github.com/crystal-mush/arxscript/pkg/validate"
)

// ScriptExt is the file extension of script sources.
const ScriptExt = ".asl"

// maxDrainPerTick bounds the queued events delivered in one tick so that
// handlers queueing events for each other cannot stall the clock.
const maxDrainPerTick = 4096

// Game owns the world and the script runtime. All access to either goes
// through the Game mutex; the tick loop, the file watcher and the web
// console each take it.
type Game struct {
	mu sync.Mutex

	DB       *gamedb.Database
	Runtime  *script.Runtime
	Bus      *events.Bus
	Queue    *EventQueue
	Store    *boltstore.Store // nil = saving disabled
	Journal  *Journal         // nil = journal disabled
	Conf     *GameConf
	Programs map[string]*script.Program

	services  *simServices
	startTime time.Time
	ticks     int64
	lastTick  time.Duration
	sinceMain int64
}

// NewGame creates an empty world with a runtime configured from conf.
func NewGame(conf *GameConf) *Game {
	if conf == nil {
		conf = DefaultGameConf()
	}
	db := gamedb.NewDatabase()
	bus := events.NewBus()
	rt := script.New(db, commands.NewRegistry(), conf.ScriptConfig())
	rt.Bus = bus

	g := &Game{
		DB:        db,
		Runtime:   rt,
		Bus:       bus,
		Queue:     NewEventQueue(conf.QueuePerEntity),
		Conf:      conf,
		Programs:  make(map[string]*script.Program),
		startTime: time.Now(),
	}
	g.services = newSimServices(g)
	rt.Services = g.services
	return g
}

// AddProgram registers a compiled program under its name, replacing any
// program of the same name. It does not touch running instances.
func (g *Game) AddProgram(prog *script.Program) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Programs[strings.ToLower(prog.Name)] = prog
}

// Program returns a registered program by name, or nil.
func (g *Game) Program(name string) *script.Program {
	return g.Programs[strings.ToLower(name)]
}

// LoadScripts compiles every script in dir. Scripts that fail to compile
// are logged and skipped. Returns the number of programs loaded.
func (g *Game) LoadScripts(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading script dir: %w", err)
	}
	loaded := 0
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ScriptExt) {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		prog, err := flatfile.LoadScript(path)
		if err != nil {
			log.Printf("SCRIPT: %s: %v", path, err)
			continue
		}
		g.lint(prog)
		g.AddProgram(prog)
		loaded++
	}
	log.Printf("SCRIPT: loaded %d programs from %s", loaded, dir)
	return loaded, nil
}

// lint logs the findings of the script linter for prog.
func (g *Game) lint(prog *script.Program) int {
	v := validate.New(g.Runtime.Commands, prog)
	findings := v.Run()
	for _, f := range findings {
		if f.Severity == validate.SevInfo {
			DebugLog("LINT: %s", f)
			continue
		}
		log.Printf("LINT: %s", f)
	}
	return v.Errors()
}

// LoadLevel populates the world from a level file and attaches the scripts
// its entities name. Scripts not already registered are loaded from the
// path given in the level.
func (g *Game) LoadLevel(path string) error {
	lvl, err := flatfile.LoadLevel(path)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	placed, err := lvl.Populate(g.DB)
	if err != nil {
		return fmt.Errorf("level %s: %w", path, err)
	}
	attached := 0
	for _, p := range placed {
		if p.Script == "" {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(filepath.Base(p.Script), filepath.Ext(p.Script)))
		prog := g.Programs[name]
		if prog == nil {
			prog, err = flatfile.LoadScript(p.Script)
			if err != nil {
				return fmt.Errorf("entity %s: %w", p.Entity.Name, err)
			}
			g.lint(prog)
			g.Programs[name] = prog
		}
		inst := g.Runtime.Attach(p.Entity, prog)
		if p.Main != "" {
			g.Runtime.SetMainEvent(inst, p.Main)
		}
		attached++
	}
	log.Printf("Level %s: %d entities, %d scripted, %d zones", lvl.Name, len(g.DB.Entities), attached, len(g.DB.Zones))
	return nil
}

// Boot starts the scripts: from the save game when one exists, otherwise
// by raising init and initend on every scripted entity.
func (g *Game) Boot() error {
	if g.Store != nil && g.Store.HasData() {
		return g.Restore()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Runtime.DispatchAll("init", "")
	g.Runtime.DispatchAll("initend", "")
	return nil
}

// Tick advances the simulation by deltaMs: timers fire, queued events are
// delivered and the main event runs when its interval has elapsed.
func (g *Game) Tick(deltaMs int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	g.Runtime.Tick(deltaMs)
	now := g.Runtime.Now()
	g.services.expireSpells(now)
	g.Queue.PromoteReady(now)
	g.drainQueue()

	g.sinceMain += deltaMs
	if every := int64(g.Conf.MainEveryMS); every > 0 && g.sinceMain >= every {
		g.sinceMain %= every
		g.Runtime.DispatchAll("main", "")
	}
	g.ticks++
	g.lastTick = time.Since(start)
}

func (g *Game) drainQueue() int {
	n := 0
	for ; n < maxDrainPerTick; n++ {
		entry := g.Queue.PopImmediate()
		if entry == nil {
			break
		}
		target := g.DB.Get(entry.Target)
		if target == nil {
			DebugLog("QUEUE: %s for missing entity #%d", entry.Event, entry.Target)
			continue
		}
		g.Runtime.SendEvent(g.DB.Get(entry.Sender), target, entry.Event, entry.Params)
	}
	return n
}

// safeTick runs one tick with panic recovery and a watchdog that logs
// ticks running longer than the configured threshold.
func (g *Game) safeTick(deltaMs int64) {
	slow := time.Duration(g.Conf.SlowTickMS) * time.Millisecond
	if slow <= 0 {
		slow = 5 * time.Second
	}
	n := g.Ticks() + 1
	done := make(chan struct{})
	timer := time.AfterFunc(slow, func() {
		select {
		case <-done:
		default:
			log.Printf("TICK: WARNING tick %d still running after %v", n, slow)
		}
	})
	defer func() {
		close(done)
		timer.Stop()
		if r := recover(); r != nil {
			log.Printf("TICK: PANIC in tick %d: %v\n%s", n, r, debug.Stack())
		}
	}()
	g.Tick(deltaMs)
}

// Run drives the simulation at the configured tick rate until ctx is done.
// The game clock advances by exactly tick_ms per tick.
func (g *Game) Run(ctx context.Context) {
	step := time.Duration(g.Conf.TickMS) * time.Millisecond
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	heartbeat := time.NewTicker(60 * time.Second)
	defer heartbeat.Stop()

	log.Printf("TICK: simulation started (%v per tick)", step)
	for {
		select {
		case <-ctx.Done():
			log.Printf("TICK: simulation stopped after %d ticks", g.Ticks())
			return
		case <-ticker.C:
			g.safeTick(int64(g.Conf.TickMS))
		case <-heartbeat.C:
			immediate, waiting := g.Queue.Stats()
			log.Printf("TICK: heartbeat, %d ticks, game clock %dms, queue %d/%d", g.Ticks(), g.Now(), immediate, waiting)
		}
	}
}

// StartAutoSave saves the game every interval minutes until ctx is done.
func (g *Game) StartAutoSave(ctx context.Context, minutes int) {
	if minutes <= 0 || g.Store == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Duration(minutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := g.Save(); err != nil {
					log.Printf("SAVE: auto-save failed: %v", err)
				}
			}
		}
	}()
	log.Printf("SAVE: auto-save every %d minutes", minutes)
}

// Save writes the script state and the world to the store.
func (g *Game) Save() error {
	if g.Store == nil {
		return fmt.Errorf("no save store configured")
	}
	g.mu.Lock()
	st := g.Runtime.Snapshot()
	err := g.Store.Save(st, g.DB)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	log.Printf("SAVE: %d globals, %d instances, %d timers at game clock %dms",
		len(st.Globals), len(st.Instances), len(st.Timers), st.Now)
	return nil
}

// Restore replaces the world and the script state with the save game.
// Pending queued events belong to the discarded state and are dropped.
func (g *Game) Restore() error {
	if g.Store == nil {
		return fmt.Errorf("no save store configured")
	}
	st, err := g.Store.Load()
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.Store.LoadEntities(g.DB); err != nil {
		return err
	}
	if err := g.Runtime.Restore(st, g.Program); err != nil {
		return fmt.Errorf("restore scripts: %w", err)
	}
	g.Queue.HaltAll()
	g.services.reset()
	g.sinceMain = 0
	log.Printf("SAVE: restored %d instances, %d timers at game clock %dms", len(st.Instances), len(st.Timers), st.Now)
	return nil
}

// Dispatch raises an event on the named entity and returns the outcome.
func (g *Game) Dispatch(entity, event, params string) (script.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.DB.Lookup(entity)
	if e == nil {
		return script.Failed, fmt.Errorf("no entity named %q", entity)
	}
	if g.Runtime.Instance(e.Ref) == nil {
		return script.Failed, fmt.Errorf("entity %s has no script", e.Name)
	}
	return g.Runtime.Dispatch(e, event, params), nil
}

// ReloadScript recompiles a script file and swaps it into every instance
// running it. Returns the number of instances reloaded.
func (g *Game) ReloadScript(path string) (int, error) {
	prog, err := flatfile.LoadScript(path)
	if err != nil {
		return 0, err
	}
	if errs := g.lint(prog); errs > 0 {
		log.Printf("SCRIPT: %s reloaded with %d lint errors", prog.Name, errs)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.Programs[strings.ToLower(prog.Name)] = prog
	n := g.Runtime.Reload(prog)
	log.Printf("SCRIPT: reloaded %s on %d entities", prog.Name, n)
	return n, nil
}

// Now returns the game clock in milliseconds.
func (g *Game) Now() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Runtime.Now()
}

// Ticks returns the number of ticks run.
func (g *Game) Ticks() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ticks
}

// EntityInfo summarizes a scripted entity for the debug console.
type EntityInfo struct {
	Ref       gamedb.Ref  `json:"ref"`
	Name      string      `json:"name"`
	Class     string      `json:"class"`
	Program   string      `json:"program,omitempty"`
	MainEvent string      `json:"main_event,omitempty"`
	Alive     bool        `json:"alive"`
	Pos       [3]float64  `json:"pos"`
	Groups    []string    `json:"groups,omitempty"`
	Locals    []VarInfo   `json:"locals,omitempty"`
	Timers    []TimerInfo `json:"timers,omitempty"`
	Sent      int64       `json:"sent"`
	Received  int64       `json:"received"`
}

// VarInfo is a variable as shown by the debug console.
type VarInfo struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TimerInfo is a timer as shown by the debug console.
type TimerInfo struct {
	Name      string `json:"name"`
	Period    int64  `json:"period_ms"`
	Remaining int64  `json:"remaining"`
}

// Entities lists every entity. With detail set, locals and timers of
// scripted entities are included.
func (g *Game) Entities(detail bool) []EntityInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	timers := make(map[gamedb.Ref][]TimerInfo)
	if detail {
		for _, t := range g.Runtime.Timers.All() {
			timers[t.Entity] = append(timers[t.Entity], TimerInfo{Name: t.Name, Period: t.Period, Remaining: t.Remaining})
		}
	}

	var out []EntityInfo
	for _, e := range g.DB.Sorted() {
		info := EntityInfo{
			Ref:      e.Ref,
			Name:     e.Name,
			Class:    e.Class,
			Alive:    e.Alive,
			Pos:      [3]float64{e.Pos.X, e.Pos.Y, e.Pos.Z},
			Sent:     e.StatSent,
			Received: e.StatReceived,
		}
		for grp := range e.Groups {
			info.Groups = append(info.Groups, grp)
		}
		sort.Strings(info.Groups)
		if inst := g.Runtime.Instance(e.Ref); inst != nil {
			info.Program = inst.Program.Name
			info.MainEvent = inst.MainEvent
			if detail {
				for _, v := range inst.Locals.All() {
					info.Locals = append(info.Locals, VarInfo{Name: v.Name, Value: v.String()})
				}
				info.Timers = timers[e.Ref]
			}
		}
		out = append(out, info)
	}
	return out
}

// Globals lists the global variables.
func (g *Game) Globals() []VarInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []VarInfo
	for _, v := range g.Runtime.Globals.All() {
		out = append(out, VarInfo{Name: v.Name, Value: v.String()})
	}
	return out
}

// Close flushes and closes the store and the journal.
func (g *Game) Close() {
	if g.Journal != nil {
		g.Bus.UnsubscribeGlobal(g.Journal)
		if err := g.Journal.Close(); err != nil {
			log.Printf("JOURNAL: close: %v", err)
		}
	}
	if g.Store != nil {
		if err := g.Store.Close(); err != nil {
			log.Printf("SAVE: close: %v", err)
		}
	}
}

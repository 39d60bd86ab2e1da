package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/flatfile"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
	"github.com/crystal-mush/arxscript/pkg/script/commands"
)

// printer echoes script faults and timer activity to stdout.
type printer struct{}

func (printer) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvWarning, events.EvError:
		fmt.Printf("  [%s line %d]: %s\n", ev.Type, ev.Line, ev.Text)
	case events.EvTimerArmed, events.EvTimerFired, events.EvTimerCancelled:
		fmt.Printf("  [%s]: %s\n", ev.Type, ev.Name)
	}
}

func (printer) Closed() bool { return false }

func main() {
	scriptPath := flag.String("script", "", "Path to the .asl script to run")
	levelPath := flag.String("level", "", "Level YAML to populate the world from (optional)")
	entityName := flag.String("entity", "", "Entity the script is attached to (default: a fresh test NPC)")
	event := flag.String("e", "", "Event to send, with parameters (non-interactive mode)")
	batch := flag.String("batch", "", "File with events to send (one per line)")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: scripteval -script <file.asl> [-level <level.yaml>] [-entity <name>] [-e <event> | -batch <file>]")
		os.Exit(1)
	}

	prog, err := flatfile.LoadScript(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading script: %v\n", err)
		os.Exit(1)
	}

	db := gamedb.NewDatabase()
	if *levelPath != "" {
		lvl, err := flatfile.LoadLevel(*levelPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading level: %v\n", err)
			os.Exit(1)
		}
		if _, err := lvl.Populate(db); err != nil {
			fmt.Fprintf(os.Stderr, "Error populating level: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Loaded %d entities from %s\n", len(db.Entities), *levelPath)
	}

	var subject *gamedb.Entity
	if *entityName != "" {
		subject = db.Lookup(*entityName)
		if subject == nil {
			fmt.Fprintf(os.Stderr, "No entity named %q\n", *entityName)
			os.Exit(1)
		}
	} else {
		subject = gamedb.NewEntity(prog.Name+"_0001", prog.Name, gamedb.IONPC)
		subject.NPC = gamedb.NewNPCData()
		db.Add(subject)
		fmt.Fprintf(os.Stderr, "Using test entity %s\n", subject.Name)
	}

	rt := script.New(db, commands.NewRegistry(), script.DefaultConfig())
	rt.Bus = events.NewBus()
	rt.Bus.SubscribeGlobal(printer{})
	rt.Attach(subject, prog)

	if *event != "" {
		fmt.Println(send(rt, subject, *event))
		return
	}

	if *batch != "" {
		runBatch(rt, subject, *batch)
		return
	}

	// Interactive REPL mode
	fmt.Println("arxscript event harness")
	fmt.Printf("Script %s on %s (handles: %s)\n", prog.Name, subject.Name, strings.Join(prog.Events(), ", "))
	fmt.Println("Type an event with parameters, 'tick <ms>', 'vars', 'timers' or 'quit'.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("asl> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		word, rest, _ := strings.Cut(line, " ")
		switch strings.ToLower(word) {
		case "tick":
			ms, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				fmt.Println("usage: tick <ms>")
				continue
			}
			rt.Tick(ms)
			fmt.Printf("clock %dms, %d timers active\n", rt.Now(), rt.Timers.Active())
		case "vars":
			printVars(rt, subject)
		case "timers":
			for _, t := range rt.Timers.All() {
				left := "inf"
				if t.Remaining != script.TimerInfinite {
					left = strconv.FormatInt(t.Remaining, 10)
				}
				fmt.Printf("  %-16s every %dms, %s left, resume at %d\n", t.Name, t.Period, left, t.Resume)
			}
		default:
			fmt.Println(send(rt, subject, line))
		}
	}
}

// send dispatches "event params..." and returns the pass result.
func send(rt *script.Runtime, e *gamedb.Entity, line string) script.Result {
	event, params, _ := strings.Cut(strings.TrimSpace(line), " ")
	return rt.Dispatch(e, event, strings.TrimSpace(params))
}

// runBatch sends one event per line. A line of the form
// "event params | result" checks the pass result.
func runBatch(rt *script.Runtime, e *gamedb.Entity, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening batch file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	failed := 0
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "tick "); ok {
			ms, _ := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			rt.Tick(ms)
			continue
		}
		parts := strings.SplitN(line, " | ", 2)
		result := send(rt, e, parts[0])
		if len(parts) == 2 {
			expected := strings.TrimSpace(parts[1])
			status := "PASS"
			if result.String() != expected {
				status = "FAIL"
				failed++
			}
			fmt.Printf("[%s] Line %d: %s\n", status, lineNum, parts[0])
			if status == "FAIL" {
				fmt.Printf("  Expected: %s\n", expected)
				fmt.Printf("  Got:      %s\n", result)
			}
		} else {
			fmt.Printf("Line %d: %s => %s\n", lineNum, parts[0], result)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func printVars(rt *script.Runtime, e *gamedb.Entity) {
	fmt.Println("globals:")
	for _, v := range rt.Globals.All() {
		fmt.Printf("  %-20s %s\n", v.Name, v.String())
	}
	fmt.Println("locals:")
	if inst := rt.Instance(e.Ref); inst != nil {
		for _, v := range inst.Locals.All() {
			fmt.Printf("  %-20s %s\n", v.Name, v.String())
		}
	}
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/arxscript/pkg/archive"
	"github.com/crystal-mush/arxscript/pkg/boltstore"
	"github.com/crystal-mush/arxscript/pkg/flatfile"
	"github.com/crystal-mush/arxscript/pkg/script"
	"github.com/crystal-mush/arxscript/pkg/script/commands"
	"github.com/crystal-mush/arxscript/pkg/server"
	"github.com/crystal-mush/arxscript/pkg/validate"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: scripttool <command> [options]")
	fmt.Fprintln(os.Stderr, "  lint [-json] <file.asl|dir>...    Check scripts for unknown commands, labels and events")
	fmt.Fprintln(os.Stderr, "  fmt [-w] <file.asl>...            Reformat scripts (print, or rewrite with -w)")
	fmt.Fprintln(os.Stderr, "  dump [-vars] <save.db>            Summarize a save game")
	fmt.Fprintln(os.Stderr, "  hash [password]                   Print a bcrypt hash for the console password")
	fmt.Fprintln(os.Stderr, "  secret                            Print a random JWT secret")
	fmt.Fprintln(os.Stderr, "  archive list <dir>                List archives, newest first")
	fmt.Fprintln(os.Stderr, "  archive restore [options] <file>  Restore an archive")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "lint":
		err = runLint(os.Args[2:])
	case "fmt":
		err = runFmt(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "hash":
		err = runHash(os.Args[2:])
	case "secret":
		fmt.Println(server.GenerateJWTSecret())
	case "archive":
		err = runArchive(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// scriptPaths expands directories to the .asl files they contain.
func scriptPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, ent := range entries {
			if !ent.IsDir() && strings.EqualFold(filepath.Ext(ent.Name()), server.ScriptExt) {
				paths = append(paths, filepath.Join(arg, ent.Name()))
			}
		}
	}
	return paths, nil
}

func runLint(args []string) error {
	fs := flag.NewFlagSet("lint", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Write the report as JSON")
	fs.Parse(args)

	paths, err := scriptPaths(fs.Args())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scripts given")
	}

	loaded := make([]*script.Program, len(paths))
	errs := make([]error, len(paths))
	wg := sizedwaitgroup.New(runtime.NumCPU())
	for i, path := range paths {
		wg.Add()
		go func() {
			defer wg.Done()
			loaded[i], errs[i] = flatfile.LoadScript(path)
		}()
	}
	wg.Wait()

	var programs []*script.Program
	broken := 0
	for i, prog := range loaded {
		if errs[i] != nil {
			fmt.Fprintf(os.Stderr, "%v\n", errs[i])
			broken++
			continue
		}
		programs = append(programs, prog)
	}

	v := validate.New(commands.NewRegistry(), programs...)
	findings := v.Run()
	if *asJSON {
		if err := validate.GenerateReport(v).WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			fmt.Println(f)
		}
		fmt.Printf("\n%d scripts, %d findings, %d errors, %d failed to compile\n",
			len(programs), len(findings), v.Errors(), broken)
	}
	if v.Errors() > 0 || broken > 0 {
		os.Exit(2)
	}
	return nil
}

func runFmt(args []string) error {
	fs := flag.NewFlagSet("fmt", flag.ExitOnError)
	write := fs.Bool("w", false, "Write the result back to the source file")
	fs.Parse(args)

	paths, err := scriptPaths(fs.Args())
	if err != nil {
		return err
	}
	for _, path := range paths {
		prog, err := flatfile.LoadScript(path)
		if err != nil {
			return err
		}
		if !*write {
			if err := flatfile.WriteScript(os.Stdout, prog); err != nil {
				return err
			}
			continue
		}
		if err := flatfile.SaveScript(path, prog); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("formatted %s\n", path)
	}
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	showVars := fs.Bool("vars", false, "List every variable")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: scripttool dump [-vars] <save.db>")
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	start := time.Now()
	store, err := boltstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if !store.HasData() {
		return fmt.Errorf("%s holds no save game", path)
	}
	st, err := store.Load()
	if err != nil {
		return err
	}

	fmt.Println("=== SAVE GAME SUMMARY ===")
	fmt.Printf("File:         %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
	fmt.Printf("Saved at:     %s (%s)\n", store.SavedAt().Format(time.RFC3339), humanize.Time(store.SavedAt()))
	fmt.Printf("Game clock:   %s\n", clock(st.Now))
	fmt.Printf("Globals:      %d\n", len(st.Globals))
	fmt.Printf("Instances:    %d\n", len(st.Instances))
	fmt.Printf("Timers:       %d\n", len(st.Timers))
	fmt.Printf("Loaded in %v\n", time.Since(start))

	byProgram := make(map[string]int)
	for _, is := range st.Instances {
		byProgram[is.Program]++
	}
	names := make([]string, 0, len(byProgram))
	for name := range byProgram {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\n=== INSTANCES BY PROGRAM ===")
	for _, name := range names {
		fmt.Printf("  %-24s %d\n", name, byProgram[name])
	}

	if len(st.Timers) > 0 {
		fmt.Println("\n=== TIMERS ===")
		for _, t := range st.Timers {
			left := "inf"
			if t.Remaining != script.TimerInfinite {
				left = fmt.Sprintf("%d", t.Remaining)
			}
			fmt.Printf("  #%-5d %-16s %-16s every %s, %s left\n", t.Entity, t.Program, t.Name, clock(t.Period), left)
		}
	}

	if *showVars {
		fmt.Println("\n=== GLOBALS ===")
		for _, v := range st.Globals {
			fmt.Printf("  %-24s %s\n", v.Name, v.String())
		}
		for _, is := range st.Instances {
			if len(is.Locals) == 0 {
				continue
			}
			fmt.Printf("\n=== LOCALS #%d (%s) ===\n", is.Entity, is.Program)
			for _, v := range is.Locals {
				fmt.Printf("  %-24s %s\n", v.Name, v.String())
			}
		}
	}
	return nil
}

// clock renders a game clock value in milliseconds.
func clock(ms int64) string {
	if ms <= 0 {
		return "0ms"
	}
	return durafmt.Parse(time.Duration(ms) * time.Millisecond).LimitFirstN(2).String()
}

func runHash(args []string) error {
	password := ""
	if len(args) > 0 {
		password = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}
	hash, err := server.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runArchive(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: scripttool archive list|restore ...")
	}
	switch args[0] {
	case "list":
		dir := "archives"
		if len(args) > 1 {
			dir = args[1]
		}
		infos, err := archive.List(dir)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%-40s %9s  %s  %s  %d entities, clock %s\n",
				info.Filename, humanize.Bytes(uint64(info.Size)), info.Timestamp, info.World, info.Entities, clock(info.GameClock))
		}
		fmt.Printf("%d archives in %s\n", len(infos), dir)
		return nil
	case "restore":
		fs := flag.NewFlagSet("archive restore", flag.ExitOnError)
		save := fs.String("save", "", "Where to restore the save game")
		journal := fs.String("journal", "", "Where to restore the fault journal")
		scripts := fs.String("scripts", "", "Where to restore the scripts")
		level := fs.String("level", "", "Where to restore the level file")
		conf := fs.String("conf", "", "Where to restore the config file")
		fs.Parse(args[1:])
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: scripttool archive restore [options] <archive.tar.gz>")
		}
		result, err := archive.Restore(archive.RestoreParams{
			ArchivePath: fs.Arg(0),
			SaveDest:    *save,
			JournalDest: *journal,
			ScriptDest:  *scripts,
			LevelDest:   *level,
			ConfDest:    *conf,
			Stdin:       os.Stdin,
			Stdout:      os.Stdout,
		})
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("restored %d files from %s (world %s, clock %dms)\n",
			result.FilesRestored, fs.Arg(0), result.Manifest.World, result.Manifest.GameClock)
		return nil
	}
	return fmt.Errorf("unknown archive command %q", args[0])
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/crystal-mush/arxscript/pkg/archive"
	"github.com/crystal-mush/arxscript/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("SIM_CONF", ""), "Path to simulation config file (env: SIM_CONF)")
	levelPath := flag.String("level", envDefault("SIM_LEVEL", ""), "Level YAML to populate the world from (env: SIM_LEVEL)")
	scriptDir := flag.String("scripts", envDefault("SIM_SCRIPTS", ""), "Directory of .asl scripts (env: SIM_SCRIPTS)")
	savePath := flag.String("save", envDefault("SIM_SAVE", ""), "Path to bbolt save game (env: SIM_SAVE)")
	journalPath := flag.String("journal", envDefault("SIM_JOURNAL", ""), "Path to SQLite fault journal (env: SIM_JOURNAL)")
	fresh := flag.Bool("fresh", os.Getenv("SIM_FRESH") == "true", "Delete the save game and boot from init (env: SIM_FRESH)")
	watch := flag.Bool("watch", os.Getenv("SIM_WATCH") == "true", "Reload scripts when they change (env: SIM_WATCH)")
	webPort := flag.Int("web-port", 0, "Debug console port, enables the console (env: SIM_WEB_PORT)")
	restoreArchive := flag.String("restore", envDefault("SIM_RESTORE", ""), "Restore from archive before boot (env: SIM_RESTORE)")
	debug := flag.Bool("debug", os.Getenv("SIM_DEBUG") == "true", "Verbose debug logging (env: SIM_DEBUG)")
	debugOnly := flag.String("debug-only", envDefault("SIM_DEBUG_ONLY", ""), "Comma-separated debug subsystems, e.g. ai,queue (env: SIM_DEBUG_ONLY)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())
	if *debug {
		server.SetDebug(true, *debugOnly)
	}

	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	// Command-line flags override config file values
	if *levelPath != "" {
		gc.Level = *levelPath
	}
	if *scriptDir != "" {
		gc.ScriptDir = *scriptDir
	}
	if *savePath != "" {
		gc.SavePath = *savePath
	}
	if *journalPath != "" {
		gc.JournalPath = *journalPath
	}
	if *watch {
		gc.WatchScripts = true
	}
	if *webPort == 0 {
		if v := os.Getenv("SIM_WEB_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				*webPort = p
			}
		}
	}
	if *webPort != 0 {
		gc.WebPort = *webPort
		gc.WebEnabled = true
	}
	if v := os.Getenv("SIM_CLEARTEXT"); v != "" {
		gc.Cleartext = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SIM_ARCHIVE_DIR"); v != "" {
		gc.ArchiveDir = v
	}
	if v := os.Getenv("SIM_ARCHIVE_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			gc.ArchiveInterval = n
		}
	}
	if err := gc.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if gc.Level == "" {
		fmt.Fprintln(os.Stderr, "Usage: arxserver -conf <config> | -level <level.yaml> [-scripts <dir>] [-save <save.db>]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Environment variables (used as defaults when flags are not set):")
		fmt.Fprintln(os.Stderr, "  SIM_CONF       Path to config file (.yaml)")
		fmt.Fprintln(os.Stderr, "  SIM_LEVEL      Level YAML")
		fmt.Fprintln(os.Stderr, "  SIM_SCRIPTS    Directory of .asl scripts")
		fmt.Fprintln(os.Stderr, "  SIM_SAVE       bbolt save game")
		fmt.Fprintln(os.Stderr, "  SIM_JOURNAL    SQLite fault journal")
		fmt.Fprintln(os.Stderr, "  SIM_FRESH      Set to 'true' to discard the save game on start")
		fmt.Fprintln(os.Stderr, "  SIM_WATCH      Set to 'true' to hot reload scripts")
		fmt.Fprintln(os.Stderr, "  SIM_WEB_PORT   Debug console port")
		fmt.Fprintln(os.Stderr, "  SIM_CLEARTEXT  Set to 'true' to serve the console without TLS")
		fmt.Fprintln(os.Stderr, "  SIM_RESTORE    Path to archive .tar.gz for pre-boot restore")
		fmt.Fprintln(os.Stderr, "  SIM_ARCHIVE_DIR      Archive output directory")
		fmt.Fprintln(os.Stderr, "  SIM_ARCHIVE_INTERVAL Auto-archive interval in minutes")
		fmt.Fprintln(os.Stderr, "  SIM_DEBUG      Set to 'true' for debug logging")
		fmt.Fprintln(os.Stderr, "  SIM_DEBUG_ONLY Limit debug logging to these subsystems")
		os.Exit(1)
	}

	// Pre-boot restore from archive
	if *restoreArchive != "" {
		log.Printf("Restoring from archive: %s", *restoreArchive)
		result, err := archive.Restore(archive.RestoreParams{
			ArchivePath: *restoreArchive,
			SaveDest:    gc.SavePath,
			JournalDest: gc.JournalPath,
			ScriptDest:  gc.ScriptDir,
			LevelDest:   gc.Level,
			ConfDest:    *confFile,
			Stdin:       os.Stdin,
			Stdout:      os.Stdout,
		})
		if err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
		log.Printf("Restore complete: %d files restored", result.FilesRestored)
		for _, w := range result.Warnings {
			log.Printf("Restore warning: %s", w)
		}
	}

	if *fresh && gc.SavePath != "" {
		if err := os.Remove(gc.SavePath); err != nil && !os.IsNotExist(err) {
			log.Fatalf("Error removing save game for fresh start: %v", err)
		}
		log.Printf("Fresh mode: removed %s", gc.SavePath)
	}

	srv, err := server.NewServer(gc)
	if err != nil {
		log.Fatalf("Error starting simulation: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting %s: tick %dms, main every %dms", gc.Name, gc.TickMS, gc.MainEveryMS)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/crystal-mush/arxscript/pkg/boltstore"
)

// Server wires the game to its stores, observers and the debug console.
type Server struct {
	Conf    *GameConf
	Game    *Game
	Metrics *Metrics
	web     *WebServer
}

// NewServer opens the save store and the journal, loads the scripts and
// populates the world from the configured level.
func NewServer(conf *GameConf) (*Server, error) {
	g := NewGame(conf)

	if conf.SavePath != "" {
		if err := os.MkdirAll(filepath.Dir(conf.SavePath), 0755); err != nil {
			return nil, fmt.Errorf("creating save dir: %w", err)
		}
		store, err := boltstore.Open(conf.SavePath)
		if err != nil {
			return nil, err
		}
		g.Store = store
	}

	if conf.JournalPath != "" {
		j, err := OpenJournal(conf.JournalPath, conf.JournalTimeout)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("journal: %w", err)
		}
		g.Journal = j
		g.Bus.SubscribeGlobal(j)
		log.Printf("JOURNAL: recording script faults to %s", conf.JournalPath)
	}

	if conf.ScriptDir != "" {
		if _, err := g.LoadScripts(conf.ScriptDir); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}
	if conf.Level != "" {
		if err := g.LoadLevel(conf.Level); err != nil {
			g.Close()
			return nil, err
		}
	}

	return &Server{
		Conf:    conf,
		Game:    g,
		Metrics: NewMetrics(g, time.Now()),
	}, nil
}

// Run boots the scripts and runs the simulation until ctx is done or the
// console fails. The game is saved on the way out.
func (s *Server) Run(ctx context.Context) error {
	g := s.Game
	if err := g.Boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if g.Journal != nil {
		g.Journal.StartRetentionCleanup(time.Duration(s.Conf.JournalRetention)*time.Second, ctx.Done())
	}
	g.StartAutoSave(ctx, s.Conf.AutoSaveMinutes)
	g.StartAutoArchive(ctx, s.Conf.ArchiveInterval)
	if s.Conf.WatchScripts && s.Conf.ScriptDir != "" {
		if err := g.WatchScripts(ctx, s.Conf.ScriptDir, nil); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}

	errCh := make(chan error, 1)
	if s.Conf.WebEnabled {
		s.web = NewWebServer(g, WebConfigFrom(s.Conf), s.Metrics)
		go func() {
			if err := s.web.Start(); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	runDone := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(runDone)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		cancel()
	}
	<-runDone
	s.shutdown()
	return err
}

func (s *Server) shutdown() {
	if s.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.web.Stop(ctx); err != nil {
			log.Printf("WEB: shutdown: %v", err)
		}
		cancel()
	}
	if s.Game.Store != nil {
		if err := s.Game.Save(); err != nil {
			log.Printf("SAVE: final save failed: %v", err)
		}
	}
	s.Metrics.Close()
	s.Game.Close()
	log.Printf("Shutdown complete")
}

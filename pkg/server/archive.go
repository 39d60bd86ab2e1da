package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/crystal-mush/arxscript/pkg/archive"
)

// Archive saves the game and bundles the save store, the journal, the
// scripts, the level and the config into a new archive in the archive
// directory. Older archives beyond archive_retain are pruned.
func (g *Game) Archive() (string, error) {
	if g.Store == nil {
		return "", fmt.Errorf("no save store configured")
	}
	if err := g.Save(); err != nil {
		return "", err
	}

	g.mu.Lock()
	params := archive.Params{
		SaveSnapshot: g.Store.Backup,
		ScriptDir:    g.Conf.ScriptDir,
		LevelPath:    g.Conf.Level,
		ConfPath:     g.Conf.Path,
		Dir:          g.Conf.ArchiveDir,
		World:        g.Conf.Name,
		Entities:     len(g.DB.Entities),
		Instances:    g.Runtime.Instances(),
		GameClock:    g.Runtime.Now(),
	}
	g.mu.Unlock()
	if g.Journal != nil {
		params.JournalPath = g.Journal.Path()
		params.JournalCheckpoint = g.Journal.Checkpoint
	}

	path, err := archive.Create(params)
	if err != nil {
		return "", err
	}
	log.Printf("SAVE: archive written to %s", path)

	if n, err := archive.Prune(g.Conf.ArchiveDir, g.Conf.ArchiveRetain); err != nil {
		log.Printf("SAVE: archive prune: %v", err)
	} else if n > 0 {
		log.Printf("SAVE: pruned %d old archives", n)
	}
	return path, nil
}

// StartAutoArchive archives the game every interval minutes until ctx is
// done.
func (g *Game) StartAutoArchive(ctx context.Context, minutes int) {
	if minutes <= 0 || g.Store == nil || g.Conf.ArchiveDir == "" {
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
				if _, err := g.Archive(); err != nil {
					log.Printf("SAVE: auto-archive failed: %v", err)
				}
			}
		}
	}()
	log.Printf("SAVE: auto-archive every %d minutes to %s, keeping %d", minutes, g.Conf.ArchiveDir, g.Conf.ArchiveRetain)
}

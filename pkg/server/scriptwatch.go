package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets an editor finish writing before the script is reloaded.
const reloadDelay = 200 * time.Millisecond

// WatchScripts reloads scripts in dir when they change on disk, until ctx
// is done. onReload, if non-nil, is called after each reload attempt.
func (g *Game) WatchScripts(ctx context.Context, dir string, onReload func(path string, n int, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting script watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	reload := func(path string) {
		mu.Lock()
		delete(pending, path)
		mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		n, err := g.ReloadScript(path)
		if err != nil {
			log.Printf("SCRIPT: reload %s: %v", filepath.Base(path), err)
		}
		if onReload != nil {
			onReload(path, n, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				for _, t := range pending {
					t.Stop()
				}
				mu.Unlock()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ScriptExt) {
					continue
				}
				path := event.Name
				mu.Lock()
				if t, ok := pending[path]; ok {
					t.Reset(reloadDelay)
				} else {
					pending[path] = time.AfterFunc(reloadDelay, func() { reload(path) })
				}
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("SCRIPT: watcher error: %v", err)
			}
		}
	}()
	log.Printf("SCRIPT: watching %s for changes", dir)
	return nil
}

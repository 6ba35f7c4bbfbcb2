package catalog

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce window for editors that write config files in several events
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the catalog from path whenever the recipe file changes on
// disk. It blocks until ctx is cancelled, so run it as a goroutine. Watching
// the parent directory survives rename-based atomic saves.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Recipe file watcher error: %v", err)
		case <-timerC:
			if err := c.LoadFile(path); err != nil {
				log.Printf("Failed to reload recipe file %s: %v", path, err)
			} else {
				log.Printf("Reloaded recipe file %s (%d recipes)", path, c.Len())
			}
		}
	}
}

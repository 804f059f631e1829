package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn for each history file written to <root>/inbox/, once the
// file has seen no writes for settle. Calls to fn are serialized. Watch
// blocks until ctx is done and then returns nil.
//
// Files already in the inbox when Watch starts are not reported; use Scan
// for those.
func Watch(ctx context.Context, root string, settle time.Duration, fn func(FileInfo)) error {
	dir := filepath.Join(root, inboxDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching inbox: %w", err)
	}

	// pending maps file names to the time they become quiet.
	pending := make(map[string]time.Time)
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if filepath.Dir(event.Name) != dir || FormatFor(name) == "" {
				continue
			}
			pending[name] = time.Now().Add(settle)
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching inbox: %w", err)

		case now := <-timer.C:
			var next time.Duration
			for name, quiet := range pending {
				if wait := quiet.Sub(now); wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				delete(pending, name)
				info, err := os.Stat(filepath.Join(dir, name))
				if err != nil || info.IsDir() {
					continue
				}
				fn(inboxFile(dir, name, info.Size(), FormatFor(name)))
			}
			if next > 0 {
				timer.Reset(next)
			}
		}
	}
}

package cache

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cache entries for files that change under dir until
// ctx is done. Invalidation is best-effort: the mtime check in Get remains
// the source of truth, the watcher just keeps the cache from holding onto
// entries for removed or rewritten files between searches.
func (c *Cache) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) != 0 {
					c.Invalidate(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn().Err(err).Str("dir", dir).Msg("watcher error")
			}
		}
	}()
	return nil
}

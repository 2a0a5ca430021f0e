package registry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mockforge/core/internal/logging"
)

// Watch starts an fsnotify watch over the directories containing the
// given sources and calls Reload whenever one of those files changes,
// implementing spec.md §4.1's hot-reload requirement. The returned
// stop function closes the watcher; Watch itself never blocks the
// caller.
func (r *Registry) Watch(ctx context.Context, sources []Source) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]struct{})
	for _, src := range sources {
		dirs[filepath.Dir(src.Path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				logging.InfoContext(ctx, "spec source changed, reloading registry", "file", event.Name, "op", event.Op.String())
				diags := r.Reload(ctx, sources)
				for _, d := range diags {
					if d.Fatal {
						logging.WarnContext(ctx, "registry reload diagnostic", "file", d.File, "message", d.Message)
					}
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.ErrorContext(ctx, "registry watch error", "error", watchErr)
			}
		}
	}()

	stop = func() {
		watcher.Close()
		<-done
	}
	return stop, nil
}

package override

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mockforge/core/internal/logging"
)

// Watch starts an fsnotify watch over the directories containing the
// currently discovered override files and calls Load whenever one of
// them changes, the same hot-reload contract registry.Watch provides
// for spec sources (spec.md §4.2/§9). The returned stop function
// closes the watcher; Watch itself never blocks the caller.
func (e *Engine) Watch(ctx context.Context, patterns []string, env string, expander StaticExpander) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files, err := DiscoverFiles(patterns, env)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	dirs := make(map[string]struct{})
	for _, f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for _, pattern := range patterns {
		dirs[globRoot(pattern)] = struct{}{}
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
				logging.InfoContext(ctx, "override source changed, reloading rules", "file", event.Name, "op", event.Op.String())
				diags := e.Load(ctx, patterns, env, expander)
				for _, d := range diags {
					if d.Fatal {
						logging.WarnContext(ctx, "override reload diagnostic", "file", d.File, "message", d.Message)
					}
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.ErrorContext(ctx, "override watch error", "error", watchErr)
			}
		}
	}()

	stop = func() {
		watcher.Close()
		<-done
	}
	return stop, nil
}

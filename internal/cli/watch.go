package cli

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/turtacn/appkit/pkg/logger"
	"github.com/turtacn/appkit/pkg/protocol"
)

// watchConfig re-reads path whenever it is rewritten and applies the new log
// level. The directory is watched because editors usually replace the file
// rather than write it in place. The watcher stops with ctx.
func watchConfig(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadLogLevel(path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Log.Warn("Config watch error", "err", err)
			}
		}
	}()
	return nil
}

func reloadLogLevel(path string) {
	cfg, err := protocol.Load(path)
	if err != nil {
		// half-written files are common, the next event retries
		logger.Log.Debug("Config reload skipped", "path", path, "err", err)
		return
	}
	if logger.ParseLevel(cfg.Observability.LogLevel) == logger.Level() {
		return
	}
	logger.SetLevel(cfg.Observability.LogLevel)
	logger.Log.Info("Log level changed", "level", cfg.Observability.LogLevel)
}

// Personal.AI order the ending

package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it is written and hands the new
// values to onChange. Call the returned function to stop watching.
func Watch(logger *slog.Logger, path string, onChange func(*AppConfig)) (func() error, error) {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				// Editors often replace the file instead of writing to it.
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				c, err := Load(path)
				if err != nil {
					logger.Error("error reloading config", slog.Any("error", err))
					continue
				}
				logger.Debug("config reloaded", slog.String("file", path))
				onChange(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Debug("error watching config", slog.Any("error", err))
			}
		}
	}()

	// The directory is watched so a replaced file is still picked up.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config: %w", err)
	}

	return watcher.Close, nil
}

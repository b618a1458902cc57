package cmd

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchConfig calls reload whenever the file at configPath changes, until
// ctx is done. Editors often save by renaming a new file over the old one,
// so rename and remove events re-add the watch.
func watchConfig(ctx context.Context, configPath string, reload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		webLogger.Warnf("Failed to create config file watcher: %v", err)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			webLogger.Warnf("Failed to close config file watcher: %v", err)
		}
	}()

	if err := watcher.Add(configPath); err != nil {
		webLogger.Warnf("Failed to watch config file %s: %v", configPath, err)
		return
	}
	webLogger.Infof("Watching config file for changes: %s", configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			webLogger.Infof("Config file changed: %s (event: %s)", event.Name, event.Op.String())

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					webLogger.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					webLogger.Warnf("Failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			webLogger.Errorf("Config file watcher error: %v", err)
		}
	}
}

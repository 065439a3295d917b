package registry

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/yggdrasil-au/remake-engine/internal/logging"
)

// Watch is an additive development convenience (SPEC_FULL §SUPPLEMENTED
// FEATURES): it watches a module's operations file for changes and
// invokes onChange whenever the file is (re)written, so a long-running
// front-end can invalidate its cached operation list without restarting.
// It is not part of the spec's core contract; callers that don't want it
// simply never call it.
func Watch(desc Descriptor, onChange func()) (*fsnotify.Watcher, error) {
	log := logging.Get(logging.CategoryRegistry)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(desc.OpsFile)
	if desc.OpsFile == "" {
		dir = desc.Root
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if desc.OpsFile != "" && filepath.Clean(ev.Name) != filepath.Clean(desc.OpsFile) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Debug("manifest changed: %s", ev.Name)
					onChange()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error: %v", watchErr)
			}
		}
	}()

	return watcher, nil
}

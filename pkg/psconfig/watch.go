package psconfig

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/proxystore-go/proxystore/pkg/pslog"
)

// Watcher hot-reloads a config file on edit by calling load, which both
// parses the file and applies the result. Only non-identity fields are expected to
// actually change in practice (spec §2's AMBIENT STACK); load is
// responsible for validation, so a malformed edit is logged and ignored
// rather than crashing the daemon.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  pslog.Logger
	done    chan struct{}
}

// Watch begins watching path's containing directory (fsnotify watches
// directories more reliably than bind-mounted or editor-replaced files)
// and calls load(path) each time path is written or created. load is
// typically a closure that calls psconfig.LoadEndpointConfig or
// LoadRelayConfig and applies the returned config.
func Watch(path string, logger pslog.Logger, load func(string) error) (*Watcher, error) {
	if logger == nil {
		logger = pslog.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("psconfig: creating watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("psconfig: watching %s: %w", dir, err)
	}

	w := &Watcher{watcher: fw, logger: logger.Fork("psconfig/watch"), done: make(chan struct{})}
	go w.run(path, load)
	return w, nil
}

func (w *Watcher) run(path string, load func(string) error) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := load(path); err != nil {
				w.logger.WLogf("reloading %s: %s", path, err)
				continue
			}
			w.logger.ILogf("reloaded %s", path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WLogf("watcher error: %s", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

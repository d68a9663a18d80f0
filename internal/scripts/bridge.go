// Package scripts watches a directory tree for command scripts and merges
// them into a registry.Registry as they are created, modified, or removed.
// The teacher has no filesystem-watch component to ground this on; the
// event-to-action mapping is taken directly from spec.md §6: Create(File|
// Any) or Modify(Data|Name-to)/Any loads the path, Modify(Name-from) or
// Remove(File|Any) unloads it.
package scripts

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/registry"
)

// Loader compiles a script file into a registry.Handler keyed by command
// name. Kept as an interface so the scripting language itself (e.g. a Lua
// or starlark runtime) is swappable without touching the watch loop.
type Loader interface {
	Load(path string) (key string, handler registry.Handler, err error)
}

// Bridge watches dir recursively and keeps reg in sync with its contents.
type Bridge struct {
	dir      string
	reg      *registry.Registry
	loader   Loader
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	pathKeys map[string]string
}

// New constructs a Bridge over dir. Call Run to start watching; Run returns
// once ctx is done or a fatal watcher error occurs.
func New(dir string, reg *registry.Registry, loader Loader, log *logging.Logger) (*Bridge, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		dir:      dir,
		reg:      reg,
		loader:   loader,
		log:      log,
		watcher:  watcher,
		pathKeys: make(map[string]string),
	}
	if err := b.addTree(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bridge) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return b.watcher.Add(path)
		}
		b.load(path)
		return nil
	})
}

// Run processes filesystem events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-b.watcher.Events:
			if !ok {
				return nil
			}
			b.handle(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Error("script watcher error", logging.Error(err))
		}
	}
}

func (b *Bridge) handle(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		b.load(event.Name)
	case event.Op.Has(fsnotify.Write):
		b.load(event.Name)
	case event.Op.Has(fsnotify.Rename):
		// fsnotify reports the "from" half of a rename as a Rename event on
		// the old path; the "to" half arrives as a separate Create on the
		// new path, so a bare Rename always means unload.
		b.unload(event.Name)
	case event.Op.Has(fsnotify.Remove):
		b.unload(event.Name)
	}
}

func (b *Bridge) load(path string) {
	if strings.HasSuffix(path, "~") {
		return
	}
	key, handler, err := b.loader.Load(path)
	if err != nil {
		b.log.Error("script load failed", logging.String("path", path), logging.Error(err))
		return
	}
	if old, ok := b.pathKeys[path]; ok && old != key {
		b.reg.UnregisterScript(old)
	}
	b.pathKeys[path] = key
	b.reg.RegisterScript(key, handler)
	b.log.Info("script loaded", logging.String("path", path), logging.String("key", key))
}

func (b *Bridge) unload(path string) {
	key, ok := b.pathKeys[path]
	if !ok {
		return
	}
	delete(b.pathKeys, path)
	b.reg.UnregisterScript(key)
	b.log.Info("script unloaded", logging.String("path", path), logging.String("key", key))
}

package registry

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// fileDoc is the on-disk shape of the file-backed registry.
type fileDoc struct {
	Channels []fileChannel `yaml:"channels"`
}

type fileChannel struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Source  string            `yaml:"source"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File is a Registry backed by a YAML file, hot-reloaded on fsnotify write
// events. Readers never block on a reload: File swaps an atomic snapshot
// pointer, so lookups stay safe under any number of concurrent readers.
type File struct {
	path     string
	snapshot atomic.Pointer[map[string]Channel]
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFile loads path once and starts watching it for changes. Callers
// should call Close when the registry is no longer needed to stop the
// watcher goroutine.
func NewFile(path string) (*File, error) {
	f := &File{path: path, done: make(chan struct{})}
	if err := f.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("registry: creating file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("registry: watching %s: %w", path, err)
	}
	f.watcher = watcher

	go f.watch()
	return f, nil
}

func (f *File) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("registry: reading %s: %w", f.path, err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("registry: parsing %s: %w", f.path, err)
	}

	next := make(map[string]Channel, len(doc.Channels))
	for _, c := range doc.Channels {
		next[c.ID] = Channel{
			ID:      c.ID,
			Name:    c.Name,
			Source:  c.Source,
			Headers: c.Headers,
		}
	}
	f.snapshot.Store(&next)
	return nil
}

func (f *File) watch() {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				log.Warn().Err(err).Str("path", f.path).Msg("registry: reload failed, keeping previous snapshot")
			} else {
				log.Info().Str("path", f.path).Msg("registry: reloaded from disk")
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("registry: file watcher error")
		case <-f.done:
			return
		}
	}
}

// Close stops the file watcher goroutine.
func (f *File) Close() error {
	close(f.done)
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}

func (f *File) GetByID(_ context.Context, id string) (*Channel, error) {
	snap := f.snapshot.Load()
	if snap == nil {
		return nil, nil
	}
	c, ok := (*snap)[id]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

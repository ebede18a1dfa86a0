package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Entry is a recording visible in the output directory.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Gallery lists and watches the recordings in a directory.
type Gallery struct {
	dir    string
	logger *zap.Logger
}

// NewGallery creates a Gallery over dir.
func NewGallery(dir string) *Gallery {
	return &Gallery{dir: dir, logger: zap.NewNop()}
}

// Logger sets the logger.
func (g *Gallery) Logger(logger *zap.Logger) *Gallery {
	g.logger = logger
	return g
}

// Dir returns the watched directory.
func (g *Gallery) Dir() string {
	return g.dir
}

// List returns the recordings in the directory, newest first. A missing
// directory has no recordings.
func (g *Gallery) List() ([]Entry, error) {
	files, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", g.dir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !isRecording(f.Name()) {
			continue
		}
		if e, ok := g.stat(filepath.Join(g.dir, f.Name())); ok {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name > entries[j].Name
		}
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Watch emits every recording already present, then each new recording once
// as it appears. The channel is closed when ctx is done.
func (g *Gallery) Watch(ctx context.Context) (<-chan Entry, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", g.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(g.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch dir %s: %w", g.dir, err)
	}

	existing, err := g.List()
	if err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan Entry)

	go func() {
		defer close(out)
		defer watcher.Close()

		seen := make(map[string]bool, len(existing))
		emit := func(e Entry) bool {
			seen[e.Path] = true
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, e := range existing {
			if !emit(e) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isRecording(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(seen, event.Name)
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || seen[event.Name] {
					continue
				}
				e, ok := g.stat(event.Name)
				if !ok {
					continue
				}
				if !emit(e) {
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				g.logger.Warn("gallery watch error", zap.String("dir", g.dir), zap.Error(err))
			}
		}
	}()

	return out, nil
}

func (g *Gallery) stat(path string) (Entry, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		Name:    info.Name(),
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

func isRecording(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp4")
}

package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirSource serves frames dropped into a watched directory, for scanner
// stations that save camera stills to disk instead of exposing a V4L2
// device. Created files are debounced until their size is stable, then
// queued oldest first.
type DirSource struct {
	dir     string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	queue  []string
	closed bool
	done   chan struct{}
}

// OpenDirSource watches dir for new frame images. Files already present are
// queued immediately so a pre-filled directory still feeds the loop.
func OpenDirSource(dir string) (*DirSource, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, cameraErr(CameraNotFound, err)
	}
	if !fi.IsDir() {
		return nil, cameraErr(CameraConstraints, fmt.Errorf("%s is not a directory", dir))
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, cameraErr(CameraPermission, err)
	}
	s := &DirSource{dir: dir, watcher: w, done: make(chan struct{})}
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && isFrameFile(e.Name()) {
				s.enqueue(filepath.Join(dir, e.Name()))
			}
		}
	}
	go s.watch()
	return s, nil
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func (s *DirSource) watch() {
	// debounce created files until they stop growing
	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == fsnotify.Create && isFrameFile(ev.Name) {
				pending[ev.Name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					s.enqueue(name)
					delete(pending, name)
				}
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *DirSource) enqueue(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, path)
}

// Grab returns the oldest queued frame, or ErrNoFrame when nothing new has
// arrived since the last tick.
func (s *DirSource) Grab(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrNoFrame
	}
	if len(s.queue) == 0 {
		return "", ErrNoFrame
	}
	path := s.queue[0]
	s.queue = s.queue[1:]
	return path, nil
}

// Close stops the watcher. Idempotent.
func (s *DirSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	return s.watcher.Close()
}

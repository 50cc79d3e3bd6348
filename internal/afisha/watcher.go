package afisha

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]time.Time
	onChange func(string)
	logger   *slog.Logger
	mu       sync.RWMutex
	done     chan struct{}

	debounceMu sync.Mutex
	debounce   map[string]*time.Timer
}

func NewFileWatcher(logger *slog.Logger, onChange func(string)) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw := &FileWatcher{
		watcher:  watcher,
		files:    make(map[string]time.Time),
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
		debounce: make(map[string]*time.Timer),
	}

	go fw.watch()
	return fw, nil
}

// AddFile starts watching path. Editors that replace files on save remove the
// inode, so the parent directory is watched and events are matched by name.
func (fw *FileWatcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.files[absPath]; exists {
		return nil // Already watching
	}

	if err := fw.watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	fw.files[absPath] = time.Now()
	return nil
}

func (fw *FileWatcher) RemoveFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, exists := fw.files[absPath]; !exists {
		return nil // Not watching
	}
	delete(fw.files, absPath)

	dir := filepath.Dir(absPath)
	for other := range fw.files {
		if filepath.Dir(other) == dir {
			return nil
		}
	}
	return fw.watcher.Remove(dir)
}

func (fw *FileWatcher) watch() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			name := filepath.Clean(event.Name)
			fw.mu.RLock()
			_, watching := fw.files[name]
			fw.mu.RUnlock()
			if !watching {
				continue
			}

			// Debounce rapid events
			fw.debounceMu.Lock()
			if timer, exists := fw.debounce[name]; exists {
				timer.Stop()
			}
			fw.debounce[name] = time.AfterFunc(watchDebounce, func() {
				fw.debounceMu.Lock()
				delete(fw.debounce, name)
				fw.debounceMu.Unlock()

				if fw.onChange != nil {
					fw.onChange(name)
				}
			})
			fw.debounceMu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) Close() error {
	close(fw.done)

	fw.debounceMu.Lock()
	for name, timer := range fw.debounce {
		timer.Stop()
		delete(fw.debounce, name)
	}
	fw.debounceMu.Unlock()

	return fw.watcher.Close()
}

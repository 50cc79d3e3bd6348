package afisha

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// FileSource serves performances from a fixture file and reloads it when the
// file changes on disk.
type FileSource struct {
	Path string

	store  *Store
	logger *slog.Logger

	mu        sync.Mutex
	watcher   *FileWatcher
	eventChan chan ChangeEvent
}

func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileSource{
		Path:   path,
		store:  NewStore(nil),
		logger: logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the fixture file. On failure the previous contents stay in
// place and keep being served.
func (s *FileSource) Reload() error {
	items, err := LoadFixture(s.Path)
	if err != nil {
		return &DecodeError{Err: err}
	}
	s.store.Replace(items)
	s.logger.Info("fixture loaded", "path", s.Path, "performances", len(items))
	return nil
}

// FetchPage implements Source.
func (s *FileSource) FetchPage(ctx context.Context, q Query, page int) (Page, error) {
	return s.store.FetchPage(ctx, q, page)
}

// Watch implements WatchableSource.
func (s *FileSource) Watch() (<-chan ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return s.eventChan, nil
	}

	s.eventChan = make(chan ChangeEvent, 10)
	events := s.eventChan
	watcher, err := NewFileWatcher(s.logger, func(path string) {
		if err := s.Reload(); err != nil {
			s.logger.Error("fixture reload failed, keeping previous contents", "path", path, "error", err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.eventChan != events {
			return // stopped
		}
		select {
		case events <- ChangeEvent{Path: path, Timestamp: time.Now()}:
		default:
			// Channel full, drop event
		}
	})
	if err != nil {
		return nil, err
	}
	if err := watcher.AddFile(s.Path); err != nil {
		watcher.Close()
		return nil, err
	}

	s.watcher = watcher
	return s.eventChan, nil
}

// StopWatching implements WatchableSource.
func (s *FileSource) StopWatching() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	if s.eventChan != nil {
		close(s.eventChan)
		s.eventChan = nil
	}
	if err != nil {
		return errors.Join(errors.New("stop fixture watcher"), err)
	}
	return nil
}

// Store exposes the in-memory collection, for serving it over HTTP.
func (s *FileSource) Store() *Store {
	return s.store
}

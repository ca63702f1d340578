package announcement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/metrics"
	"microsite/pkg/timing"
)

// ErrNoDocument is returned while no valid feed document has been loaded.
var ErrNoDocument = apperrors.ErrNotFound.WithDetail("message", "announcements document not available")

// DocumentStore serves the feed document from a file and reloads it when the
// file changes. An invalid file never replaces the last valid document.
type DocumentStore struct {
	path     string
	debounce time.Duration
	logger   logger.Logger

	mu       sync.RWMutex
	data     []byte
	loadedAt time.Time

	listenersMu sync.Mutex
	listeners   []func()
}

func NewDocumentStore(path string, debounce time.Duration, log logger.Logger) *DocumentStore {
	return &DocumentStore{path: filepath.Clean(path), debounce: debounce, logger: log}
}

func (s *DocumentStore) Path() string {
	return s.path
}

// Load reads and validates the file.
func (s *DocumentStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read announcements document: %w", err)
	}
	list, err := Document(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.InfowCtx(context.Background(), "Announcements document loaded",
		"path", s.path,
		"announcements", len(list),
	)
	return nil
}

// Bytes returns the current document, or nil when none is loaded.
func (s *DocumentStore) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *DocumentStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Fetch implements Source.
func (s *DocumentStore) Fetch(_ context.Context) ([]byte, error) {
	data := s.Bytes()
	if data == nil {
		return nil, ErrNoDocument
	}
	return data, nil
}

// Check reports ErrNoDocument until a valid document has been loaded.
func (s *DocumentStore) Check(_ context.Context) error {
	if s.Bytes() == nil {
		return ErrNoDocument
	}
	return nil
}

// OnChange registers fn to run after every successful reload.
func (s *DocumentStore) OnChange(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *DocumentStore) reload() {
	if err := s.Load(); err != nil {
		metrics.IncFeedDocumentReload("error")
		s.logger.WarnwCtx(context.Background(), "Error reloading announcements document", "path", s.path, "error", err)
		return
	}
	metrics.IncFeedDocumentReload("success")

	s.listenersMu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Watch reloads the document on changes until ctx is done. Bursts of file
// events are debounced into a single reload.
func (s *DocumentStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}
	s.logger.InfowCtx(ctx, "Watching announcements directory", "dir", dir)

	debouncer := timing.NewDebouncer(s.debounce, s.reload)
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfowCtx(ctx, "Announcements watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed unexpectedly")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			debouncer.Trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed unexpectedly")
			}
			s.logger.WarnwCtx(ctx, "Watcher error", "error", err)
		}
	}
}

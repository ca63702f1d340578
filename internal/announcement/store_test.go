package announcement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

func writeDocument(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDocumentStore_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.json")
	store := NewDocumentStore(path, 10*time.Millisecond, logger.NopLogger())

	_, err := store.Fetch(context.Background())
	assert.True(t, apperrors.IsNotFound(err))

	writeDocument(t, path, scenarioDocument)
	require.NoError(t, store.Load())

	data, err := store.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, scenarioDocument, string(data))
}

func TestDocumentStore_Check(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.json")
	store := NewDocumentStore(path, 10*time.Millisecond, logger.NopLogger())

	assert.ErrorIs(t, store.Check(context.Background()), ErrNoDocument)

	writeDocument(t, path, scenarioDocument)
	require.NoError(t, store.Load())
	assert.NoError(t, store.Check(context.Background()))
}

func TestDocumentStore_InvalidFileKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.json")
	writeDocument(t, path, scenarioDocument)
	store := NewDocumentStore(path, 10*time.Millisecond, logger.NopLogger())
	require.NoError(t, store.Load())

	writeDocument(t, path, `[{"id":`)
	assert.Error(t, store.Load())

	assert.JSONEq(t, scenarioDocument, string(store.Bytes()))
}

func TestDocumentStore_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "announcements.json")
	writeDocument(t, path, `[]`)
	store := NewDocumentStore(path, 20*time.Millisecond, logger.NopLogger())
	require.NoError(t, store.Load())

	changed := make(chan struct{}, 10)
	store.OnChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeDocument(t, filepath.Join(dir, "other.json"), `[]`)
	writeDocument(t, path, scenarioDocument)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("document was not reloaded")
	}
	assert.JSONEq(t, scenarioDocument, string(store.Bytes()))
}

func TestDocumentStore_ChangeInvalidatesFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announcements.json")
	writeDocument(t, path, scenarioDocument)
	store := NewDocumentStore(path, time.Millisecond, logger.NopLogger())
	require.NoError(t, store.Load())

	feed, _ := newTestFeed(store)
	store.OnChange(feed.Invalidate)

	store.reload()

	assert.Equal(t, uint64(1), feed.Generation())
}

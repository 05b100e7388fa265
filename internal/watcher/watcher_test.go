package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()

	w, err := New(nil, opts)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w, dir
}

func nextEvent(t *testing.T, w *Watcher, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNew(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcher_Watch_MissingPath(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "nope")))
}

func TestWatcher_FileCreation(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	path := filepath.Join(dir, "dune.epub")
	require.NoError(t, os.WriteFile(path, []byte("epub content"), 0o644))

	ev := nextEvent(t, w, 2*time.Second)
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, int64(12), ev.Size)
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond, Extensions: []string{".EPUB"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	path := filepath.Join(dir, "Dune.Epub")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ev := nextEvent(t, w, 2*time.Second)
	assert.Equal(t, path, ev.Path)

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	dir := t.TempDir()
	path := filepath.Join(dir, "old.epub")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx) //nolint:errcheck // Test goroutine

	require.NoError(t, os.Remove(path))

	ev := nextEvent(t, w, time.Second)
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	sub := filepath.Join(dir, "author")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	ev := nextEvent(t, w, 2*time.Second)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_IgnoreHidden(t *testing.T) {
	w, dir := startWatcher(t, Options{IgnoreHidden: true, SettleDelay: 50 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("secret"), 0o644))
	normal := filepath.Join(dir, "normal.epub")
	require.NoError(t, os.WriteFile(normal, []byte("content"), 0o644))

	ev := nextEvent(t, w, time.Second)
	assert.Equal(t, normal, ev.Path)

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for hidden file: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopClosesChannels(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "modified", EventModified.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

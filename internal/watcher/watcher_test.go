package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/askdocs/internal/indexer"
)

type countingSyncer struct {
	dir   string
	calls atomic.Int32
}

func (s *countingSyncer) Sync(context.Context, bool) (*indexer.Statistics, error) {
	s.calls.Add(1)
	return &indexer.Statistics{Rebuilt: true, Reason: indexer.ReasonChanged}, nil
}

func (s *countingSyncer) DocsDir() string { return s.dir }

func TestRelevant(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create markdown", fsnotify.Event{Name: "/d/hr_manual.md", Op: fsnotify.Create}, true},
		{"write markdown", fsnotify.Event{Name: "/d/hr_manual.md", Op: fsnotify.Write}, true},
		{"remove markdown", fsnotify.Event{Name: "/d/hr_manual.md", Op: fsnotify.Remove}, true},
		{"rename markdown", fsnotify.Event{Name: "/d/hr_manual.md", Op: fsnotify.Rename}, true},
		{"upper case extension", fsnotify.Event{Name: "/d/README.MD", Op: fsnotify.Write}, true},
		{"write and chmod", fsnotify.Event{Name: "/d/a.md", Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: "/d/a.md", Op: fsnotify.Chmod}, false},
		{"other extension", fsnotify.Event{Name: "/d/notes.txt", Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: "/d/.a.md", Op: fsnotify.Write}, false},
		{"editor swap file", fsnotify.Event{Name: "/d/.a.md.swp", Op: fsnotify.Create}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relevant(tt.event))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	w := New(&countingSyncer{}, 0)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestRunDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	syncer := &countingSyncer{dir: dir}

	synced := make(chan struct{}, 4)
	w := New(syncer, 100*time.Millisecond)
	w.OnSync = func(*indexer.Statistics, error) { synced <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)
	for _, name := range []string{"a.md", "b.md", "a.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("## H\nbody\n"), 0o644))
	}

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sync")
	}

	select {
	case <-synced:
		t.Fatal("burst triggered more than one sync")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, int32(1), syncer.calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	syncer := &countingSyncer{dir: dir}
	w := New(syncer, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(0), syncer.calls.Load())
}

func TestRunMissingDir(t *testing.T) {
	w := New(&countingSyncer{dir: filepath.Join(t.TempDir(), "missing")}, 0)
	err := w.Run(context.Background())
	assert.Error(t, err)
}

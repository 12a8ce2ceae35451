// Package watcher re-syncs the index when Markdown files in the documents
// directory change. Bursts of events are collapsed into one sync.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/askdocs/internal/chunker"
	"github.com/dshills/askdocs/internal/indexer"
	"github.com/dshills/askdocs/internal/logger"
)

// DefaultDebounce is the quiet period after the last event before a sync starts
const DefaultDebounce = 500 * time.Millisecond

// Syncer rebuilds the index from a documents directory
type Syncer interface {
	Sync(ctx context.Context, force bool) (*indexer.Statistics, error)
	DocsDir() string
}

// Watcher triggers Syncer.Sync after document changes
type Watcher struct {
	syncer   Syncer
	debounce time.Duration

	// OnSync, when set, is called after every triggered sync
	OnSync func(*indexer.Statistics, error)
}

// New creates a Watcher. A non-positive debounce selects DefaultDebounce.
func New(syncer Syncer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{syncer: syncer, debounce: debounce}
}

// Run watches until ctx is canceled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := w.syncer.DocsDir()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("Watching %s for changes", dir)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !Relevant(event) {
				continue
			}
			logger.Debug("watch: %s %s", event.Op, filepath.Base(event.Name))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-timer.C:
			w.sync(ctx)
		}
	}
}

func (w *Watcher) sync(ctx context.Context) {
	stats, err := w.syncer.Sync(ctx, false)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
	case err != nil:
		logger.Error("Re-index after change failed: %v", err)
	case stats.Rebuilt:
		logger.Info("Re-indexed %d chunks from %d documents (%s)", stats.Chunks, stats.Documents, stats.Reason)
	default:
		logger.Debug("Documents unchanged, index kept")
	}
	if w.OnSync != nil {
		w.OnSync(stats, err)
	}
}

// Relevant reports whether event can change the corpus: a create, write,
// remove or rename of a visible Markdown file. Chmod alone is ignored.
func Relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), chunker.DocumentExt)
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/askdocs/internal/chunker"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/internal/index"
	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/pkg/types"
)

// ErrSyncInProgress is returned by TrySync while another sync runs
var ErrSyncInProgress = errors.New("indexing already in progress")

// Reasons reported in Statistics
const (
	ReasonUnchanged     = "unchanged"
	ReasonForced        = "forced"
	ReasonNoFingerprint = "no stored fingerprint"
	ReasonChanged       = "documents changed"
	ReasonIndexEmpty    = "index empty"
	ReasonModelChanged  = "embedding model changed"
)

// Statistics describes one sync
type Statistics struct {
	Documents   int
	Chunks      int
	SkippedDocs []string // Documents without any section marker
	Rebuilt     bool
	Reason      string
	Fingerprint fingerprint.Fingerprint
	Previous    fingerprint.Fingerprint // Empty when none was stored
	Duration    time.Duration
}

// Indexer keeps the vector index in step with the documents directory.
// The index is rebuilt only when the corpus fingerprint changes.
type Indexer struct {
	docsDir string
	chunker *chunker.Chunker
	index   *index.Index
	store   fingerprint.Store

	mu      sync.Mutex
	opened  bool
	running atomic.Bool
}

// New creates an Indexer for docsDir
func New(docsDir string, idx *index.Index, store fingerprint.Store) *Indexer {
	return &Indexer{
		docsDir: docsDir,
		chunker: chunker.New(),
		index:   idx,
		store:   store,
	}
}

// DocsDir returns the watched documents directory
func (x *Indexer) DocsDir() string {
	return x.docsDir
}

// InProgress reports whether a sync is running
func (x *Indexer) InProgress() bool {
	return x.running.Load()
}

// Sync chunks the documents, compares the fingerprint with the stored one and
// rebuilds the index when they differ or force is set. Calls are serialized.
func (x *Indexer) Sync(ctx context.Context, force bool) (*Statistics, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.sync(ctx, force)
}

// TrySync is Sync that fails fast with ErrSyncInProgress instead of waiting
func (x *Indexer) TrySync(ctx context.Context, force bool) (*Statistics, error) {
	if !x.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer x.mu.Unlock()
	return x.sync(ctx, force)
}

func (x *Indexer) sync(ctx context.Context, force bool) (*Statistics, error) {
	x.running.Store(true)
	defer x.running.Store(false)
	start := time.Now()

	if !x.opened {
		if err := x.index.Open(ctx); err != nil {
			return nil, err
		}
		x.opened = true
	}

	corpus, err := x.chunker.LoadDir(x.docsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	stats := &Statistics{
		Documents: len(corpus.Documents),
		Chunks:    len(corpus.Chunks),
	}
	for _, d := range corpus.Documents {
		if d.Skipped {
			stats.SkippedDocs = append(stats.SkippedDocs, d.SourceID)
			logger.Debug("Skipping %s: no sections", d.SourceID)
		}
	}
	if len(corpus.Chunks) == 0 {
		logger.Warn("No sections found in %s", x.docsDir)
	}

	current := fingerprint.Compute(corpus.Chunks)
	stats.Fingerprint = current

	stored, ok, err := x.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprint: %w", err)
	}
	if ok {
		stats.Previous = stored
	}

	stats.Reason, err = x.rebuildReason(ctx, force, stored, ok, current, corpus.Chunks)
	if err != nil {
		return nil, err
	}
	if stats.Reason == ReasonUnchanged {
		stats.Duration = time.Since(start)
		logger.Info("Documents unchanged (%s), reusing index", current.Short())
		return stats, nil
	}

	logger.Info("Rebuilding index: %s", stats.Reason)
	if _, err := x.index.Rebuild(ctx, corpus.Chunks); err != nil {
		return nil, fmt.Errorf("rebuild failed: %w", err)
	}
	if err := x.store.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("index rebuilt but fingerprint not saved: %w", err)
	}

	stats.Rebuilt = true
	stats.Duration = time.Since(start)
	return stats, nil
}

func (x *Indexer) rebuildReason(ctx context.Context, force bool, stored fingerprint.Fingerprint, ok bool, current fingerprint.Fingerprint, chunks []types.Chunk) (string, error) {
	switch {
	case force:
		return ReasonForced, nil
	case !ok:
		return ReasonNoFingerprint, nil
	case stored != current:
		return ReasonChanged, nil
	case x.index.Count() == 0 && len(chunks) > 0:
		return ReasonIndexEmpty, nil
	}

	changed, err := x.index.EmbedderChanged(ctx)
	if err != nil {
		return "", err
	}
	if changed {
		return ReasonModelChanged, nil
	}
	return ReasonUnchanged, nil
}

// Package fingerprint computes the corpus digest that decides whether the
// vector index must be rebuilt, and persists it between runs.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/pkg/types"
)

// Fingerprint is the hex SHA-256 digest of a chunk sequence
type Fingerprint string

// FileName is the fingerprint file written by FileStore
const FileName = "document_hash.txt"

var validDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Compute hashes the concatenated text of chunks in the order given.
// Any change to content, chunk order or chunk boundaries changes the result.
func Compute(chunks []types.Chunk) Fingerprint {
	h := sha256.New()
	for i := range chunks {
		h.Write([]byte(chunks[i].Text))
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether f looks like a digest produced by Compute
func (f Fingerprint) Valid() bool {
	return validDigest.MatchString(string(f))
}

// Short returns the first 12 characters, for logs
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// Store persists a single fingerprint value
type Store interface {
	// Load returns the stored fingerprint. ok is false when nothing usable is
	// stored; an unreadable or corrupt value is reported as absent, not as an error.
	Load(ctx context.Context) (f Fingerprint, ok bool, err error)
	Save(ctx context.Context, f Fingerprint) error
}

// MetaStore keeps the fingerprint in the index database's metadata table
type MetaStore struct {
	store storage.Storage
}

// NewMetaStore creates a Store backed by the storage metadata slot
func NewMetaStore(store storage.Storage) *MetaStore {
	return &MetaStore{store: store}
}

func (m *MetaStore) Load(ctx context.Context) (Fingerprint, bool, error) {
	value, err := m.store.GetMeta(ctx, storage.MetaDocumentHash)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		logger.Warn("fingerprint unreadable, index will be rebuilt: %v", err)
		return "", false, nil
	}
	f := Fingerprint(strings.TrimSpace(value))
	if !f.Valid() {
		logger.Warn("stored fingerprint %q is corrupt, index will be rebuilt", value)
		return "", false, nil
	}
	return f, true, nil
}

func (m *MetaStore) Save(ctx context.Context, f Fingerprint) error {
	if err := m.store.SetMeta(ctx, storage.MetaDocumentHash, string(f)); err != nil {
		return fmt.Errorf("failed to save fingerprint: %w", err)
	}
	return nil
}

// FileStore keeps the fingerprint in a plain text file inside dir
type FileStore struct {
	path string
}

// NewFileStore creates a Store writing dir/document_hash.txt
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName)}
}

// Path returns the fingerprint file location
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load(ctx context.Context) (Fingerprint, bool, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		logger.Warn("fingerprint file %s unreadable, index will be rebuilt: %v", fs.path, err)
		return "", false, nil
	}
	f := Fingerprint(strings.TrimSpace(string(data)))
	if !f.Valid() {
		logger.Warn("fingerprint file %s is corrupt, index will be rebuilt", fs.path)
		return "", false, nil
	}
	return f, true, nil
}

// Save writes through a temp file and rename so a crash never leaves a partial value
func (fs *FileStore) Save(ctx context.Context, f Fingerprint) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("failed to create fingerprint directory: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(string(f)+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save fingerprint: %w", err)
	}
	return nil
}

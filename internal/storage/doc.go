// Package storage provides SQLite-based persistence for the document index.
//
// The storage layer manages:
//   - Document chunks ("## " sections)
//   - Vector embeddings for chunks
//   - A key/value metadata slot holding the corpus fingerprint
//   - A history of completed index rebuilds
//
// # Database Schema
//
// Tables:
//   - chunks: source document, section index, header and raw text
//   - embeddings: serialized float32 vectors, one per chunk
//   - metadata: key/value pairs (document_hash)
//   - builds: one row per successful rebuild
//
// # Transactions
//
// A rebuild replaces the whole index atomically:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if _, err := tx.DeleteAllChunks(ctx); err != nil {
//	    return err
//	}
//	for _, c := range chunks {
//	    row := storage.FromTypesChunk(c)
//	    _ = tx.UpsertChunk(ctx, row)
//	    _ = tx.UpsertEmbedding(ctx, &storage.Embedding{ChunkID: row.ID, ...})
//	}
//	return tx.Commit()
//
// Readers never observe a partially replaced index.
//
// # Vector Operations
//
// Vector search uses cosine similarity via the sqlite-vec extension (CGO build)
// or a pure Go implementation (default build). Results are ordered by
// descending similarity with ties broken by insertion order.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Includes sqlite-vec extension for fast vector operations
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - Pure Go vector operations
//
//     CGO_ENABLED=0 go build
package storage

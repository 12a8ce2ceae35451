package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the index database at dbPath and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Chunk operations

const chunkColumns = `id, source_id, chunk_index, header, content, content_hash, byte_offset, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	err := row.Scan(
		&chunk.ID, &chunk.SourceID, &chunk.ChunkIndex, &chunk.Header,
		&chunk.Content, &hash, &chunk.ByteOffset, &chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(chunk.ContentHash[:], hash)
	return &chunk, nil
}

// upsertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	query := `
		INSERT INTO chunks (source_id, chunk_index, header, content, content_hash, byte_offset, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, chunk_index)
		DO UPDATE SET
			header = excluded.header,
			content = excluded.content,
			content_hash = excluded.content_hash,
			byte_offset = excluded.byte_offset
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.SourceID, chunk.ChunkIndex, chunk.Header, chunk.Content,
		chunk.ContentHash[:], chunk.ByteOffset, now,
	).Scan(&chunk.ID, &chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*Chunk, error) {
	row := q.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, chunkID)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

// listChunksWithQuerier lists chunks in insertion order; an empty sourceID lists all of them
func (s *SQLiteStorage) listChunksWithQuerier(ctx context.Context, q querier, sourceID string) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks`
	args := []interface{}{}
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunks(ctx context.Context, sourceID string) ([]*Chunk, error) {
	return s.listChunksWithQuerier(ctx, s.querier(), sourceID)
}

// deleteAllChunksWithQuerier removes every chunk; embeddings go with them via ON DELETE CASCADE
func (s *SQLiteStorage) deleteAllChunksWithQuerier(ctx context.Context, q querier) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM chunks`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

func (s *SQLiteStorage) DeleteAllChunks(ctx context.Context) (int, error) {
	return s.deleteAllChunksWithQuerier(ctx, s.querier())
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now,
	).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := q.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), queryVector, limit, filters)
}

// Metadata operations

func (s *SQLiteStorage) getMetaWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return s.getMetaWithQuerier(ctx, s.querier(), key)
}

func (s *SQLiteStorage) setMetaWithQuerier(ctx context.Context, q querier, key, value string) error {
	query := `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	return s.setMetaWithQuerier(ctx, s.querier(), key, value)
}

func (s *SQLiteStorage) deleteMetaWithQuerier(ctx context.Context, q querier, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	return err
}

func (s *SQLiteStorage) DeleteMeta(ctx context.Context, key string) error {
	return s.deleteMetaWithQuerier(ctx, s.querier(), key)
}

// Build history operations

func (s *SQLiteStorage) recordBuildWithQuerier(ctx context.Context, q querier, build *Build) error {
	query := `
		INSERT INTO builds (fingerprint, chunk_count, source_count, provider, model, dimension, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		build.Fingerprint, build.ChunkCount, build.SourceCount,
		build.Provider, build.Model, build.Dimension, build.Duration.Milliseconds(), now,
	).Scan(&build.ID)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	build.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) RecordBuild(ctx context.Context, build *Build) error {
	return s.recordBuildWithQuerier(ctx, s.querier(), build)
}

func (s *SQLiteStorage) lastBuildWithQuerier(ctx context.Context, q querier) (*Build, error) {
	query := `
		SELECT id, fingerprint, chunk_count, source_count, provider, model, dimension, duration_ms, created_at
		FROM builds
		ORDER BY id DESC
		LIMIT 1
	`
	var build Build
	var durationMs int64
	err := q.QueryRowContext(ctx, query).Scan(
		&build.ID, &build.Fingerprint, &build.ChunkCount, &build.SourceCount,
		&build.Provider, &build.Model, &build.Dimension, &durationMs, &build.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	build.Duration = time.Duration(durationMs) * time.Millisecond
	return &build, nil
}

func (s *SQLiteStorage) LastBuild(ctx context.Context) (*Build, error) {
	return s.lastBuildWithQuerier(ctx, s.querier())
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	status := &IndexStatus{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&status.ChunksCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, COUNT(*) FROM chunks
		GROUP BY source_id
		ORDER BY source_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.SourceID, &sc.Chunks); err != nil {
			return nil, err
		}
		status.Sources = append(status.Sources, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hash, err := s.GetMeta(ctx, MetaDocumentHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	status.DocumentHash = hash

	build, err := s.LastBuild(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	status.LastBuild = build

	if v, err := SchemaVersion(ctx, s.db); err == nil {
		status.SchemaVersion = v.String()
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		VectorExtension:     VectorExtensionAvailable,
	}

	return status, nil
}

// Transaction implementations

// Every operation runs on the transaction's querier so reads see uncommitted writes

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListChunks(ctx context.Context, sourceID string) ([]*Chunk, error) {
	return t.storage.listChunksWithQuerier(ctx, t.querier(), sourceID)
}

func (t *sqliteTx) DeleteAllChunks(ctx context.Context) (int, error) {
	return t.storage.deleteAllChunksWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return t.storage.getMetaWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	return t.storage.setMetaWithQuerier(ctx, t.querier(), key, value)
}

func (t *sqliteTx) DeleteMeta(ctx context.Context, key string) error {
	return t.storage.deleteMetaWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) RecordBuild(ctx context.Context, build *Build) error {
	return t.storage.recordBuildWithQuerier(ctx, t.querier(), build)
}

func (t *sqliteTx) LastBuild(ctx context.Context) (*Build, error) {
	return t.storage.lastBuildWithQuerier(ctx, t.querier())
}

// GetStatus reads through the pooled connection, which the open transaction holds
func (t *sqliteTx) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return nil, errors.New("status is not available inside a transaction")
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

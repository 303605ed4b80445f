package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"document-qa-backend/internal/logger"
	"document-qa-backend/models"

	_ "modernc.org/sqlite"
)

const storeFilename = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	source_path TEXT NOT NULL,
	uploaded_at TIMESTAMP NOT NULL,
	chunk_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	idx INTEGER NOT NULL,
	page INTEGER NOT NULL,
	filename TEXT NOT NULL,
	text TEXT NOT NULL,
	vector BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`

// Store persists embedding records on local disk and answers brute-force
// cosine similarity searches over them. Writers take the write lock; readers
// take the read lock because Recreate swaps the database handle.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	dir  string
	path string
}

// Candidate is a search hit carrying its vector, needed by MMR re-ranking.
type Candidate struct {
	Chunk  models.Chunk
	Score  float64
	Vector []float32
}

// Open opens the store under dir, creating the schema when absent. An empty
// store is the "absent" lifecycle state; Count distinguishes it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(dir, storeFilename)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dir: dir, path: path}, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// AddBatch inserts a document and all of its chunks in one transaction, so a
// partially failed ingestion never leaves a partial chunk set behind.
func (s *Store) AddBatch(ctx context.Context, doc models.Document, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (id, filename, source_path, uploaded_at, chunk_count) VALUES (?, ?, ?, ?, ?)",
		doc.ID, doc.Filename, doc.SourcePath, doc.UploadedAt, len(chunks)); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (chunk_id, document_id, idx, page, filename, text, vector) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.ChunkID, chunk.DocumentID, chunk.Index, chunk.Page, chunk.Filename, chunk.Text,
			encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingestion: %w", err)
	}
	return nil
}

// Search returns up to k candidates ranked by descending cosine similarity
// to the query vector.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Candidate, error) {
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, document_id, idx, page, filename, text, vector FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var chunk models.Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ChunkID, &chunk.DocumentID, &chunk.Index, &chunk.Page,
			&chunk.Filename, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		vector := decodeVector(blob)
		candidates = append(candidates, Candidate{
			Chunk:  chunk,
			Score:  CosineSimilarity(query, vector),
			Vector: vector,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// ListDocuments returns stored document records, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, source_path, uploaded_at, chunk_count FROM documents ORDER BY uploaded_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.SourcePath, &doc.UploadedAt, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Recreate drops the on-disk store and reopens it empty. Used as the
// last-resort fallback when appending to a corrupted store fails; previously
// ingested data is lost and the caller is expected to log that loudly.
func (s *Store) Recreate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		logger.Warn("Error closing store before recreate", "error", err.Error())
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove store file: %w", err)
	}
	// WAL sidecar files
	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to reopen store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to recreate schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CosineSimilarity between two vectors; 0 when either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Vectors are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

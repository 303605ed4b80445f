package services

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"document-qa-backend/internal/ai"
	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"
	"document-qa-backend/internal/vectorstore"
	"document-qa-backend/models"
)

// Ingestor runs the document-to-store pipeline: load, chunk, embed in
// batches, persist transactionally.
type Ingestor struct {
	config   *config.Config
	loader   *Loader
	chunker  *Chunker
	embedder *ai.EmbeddingClient
	store    *vectorstore.Store
}

func NewIngestor(cfg *config.Config, embedder *ai.EmbeddingClient, store *vectorstore.Store) *Ingestor {
	return &Ingestor{
		config:   cfg,
		loader:   NewLoader(cfg),
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		store:    store,
	}
}

// IngestFile processes one stored upload into the vector store and returns
// the document record. On failure the store's chunk count is unchanged.
func (s *Ingestor) IngestFile(ctx context.Context, filePath string) (*models.Document, error) {
	filename := filepath.Base(filePath)
	logger.Info("Processing document", "file", filename)

	segments, err := s.loader.Load(ctx, filePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded document segments", "file", filename, "segments", len(segments))

	docID, chunks := s.chunker.ChunkDocument(filename, segments)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	logger.Info("Split into chunks", "file", filename, "chunks", len(chunks))

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	doc := models.Document{
		ID:         docID,
		Filename:   filename,
		SourcePath: filePath,
		UploadedAt: time.Now(),
		ChunkCount: len(chunks),
	}

	if err := s.store.AddBatch(ctx, doc, chunks, vectors); err != nil {
		// Observed fallback: when appending to the existing store fails,
		// recreate it from only the current chunks. Previously ingested
		// documents are lost.
		logger.Error("Failed to append to vector store, recreating it - previously ingested data will be lost",
			"error", err.Error())
		if rerr := s.store.Recreate(); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		if err := s.store.AddBatch(ctx, doc, chunks, vectors); err != nil {
			return nil, err
		}
	}

	logger.Info("Document stored", "document_id", docID, "chunks", len(chunks))
	return &doc, nil
}

// embedChunks embeds in small batches with a pause between them to respect
// upstream rate limits.
func (s *Ingestor) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	batchSize := s.config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		logger.Debug("Embedding batch", "from", start, "to", end, "total", len(chunks))
		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)

		if end < len(chunks) && s.config.EmbedBatchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.EmbedBatchPause):
			}
		}
	}
	return vectors, nil
}

package ai

import (
	"context"
	"fmt"
	"time"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// EmbeddingClient wraps the Gemini embedding API with retry and backoff.
// One health-checked client is constructed per process and shared across
// requests.
type EmbeddingClient struct {
	client     *genai.Client
	model      string
	maxRetries int
	baseDelay  time.Duration
}

// NewEmbeddingClient constructs the client and verifies it with one
// synthetic embedding call. A client that cannot pass the health check after
// retries is unusable and construction fails.
func NewEmbeddingClient(ctx context.Context, cfg *config.Config) (*EmbeddingClient, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GoogleAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	ec := &EmbeddingClient{
		client:     client,
		model:      cfg.EmbeddingModel,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}

	if _, err := ec.Embed(ctx, "test"); err != nil {
		client.Close()
		return nil, fmt.Errorf("embedding health check failed: %w", err)
	}
	logger.Info("Embedding client initialized", "model", ec.model)

	return ec, nil
}

// Embed returns the embedding vector for a single text.
func (ec *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := ec.withRetry(ctx, func() error {
		model := ec.client.EmbeddingModel(ec.model)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return fmt.Errorf("no embedding returned")
		}
		vector = resp.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch embeds texts in one batched request.
func (ec *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := ec.withRetry(ctx, func() error {
		model := ec.client.EmbeddingModel(ec.model)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
		}
		vectors = make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return fmt.Errorf("empty embedding at index %d", i)
			}
			vectors[i] = emb.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// withRetry runs op with exponential backoff on transient errors. Errors
// like invalid credentials or exhausted quota propagate immediately.
func (ec *EmbeddingClient) withRetry(ctx context.Context, op func() error) error {
	delay := ec.baseDelay
	var lastErr error

	for attempt := 1; attempt <= ec.maxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == ec.maxRetries {
			break
		}

		logger.Warn("Transient embedding error, retrying",
			"attempt", attempt, "max_retries", ec.maxRetries, "delay", delay.String(), "error", lastErr.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("embedding failed after %d attempts: %w", ec.maxRetries, lastErr)
}

// Close releases the underlying genai client.
func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}

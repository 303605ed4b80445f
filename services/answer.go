package services

import (
	"context"
	"strings"

	"document-qa-backend/internal/ai"
	"document-qa-backend/internal/logger"
)

// Answerer retrieves relevant chunks and prompts the chat model with them.
type Answerer struct {
	retriever *Retriever
	gemini    *ai.GeminiClient
}

func NewAnswerer(retriever *Retriever, gemini *ai.GeminiClient) *Answerer {
	return &Answerer{retriever: retriever, gemini: gemini}
}

// Answer responds to a question from the ingested documents. When the answer
// is absent from the retrieved context the model emits ai.FallbackAnswer.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	results, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	logger.Debug("Retrieved context", "chunks", len(results))

	chunks := make([]string, 0, len(results))
	for _, result := range results {
		chunks = append(chunks, result.Chunk.Text)
	}

	answer, err := a.gemini.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return "", err
	}

	// Only whitespace is trimmed; non-ASCII output is preserved as-is.
	return strings.TrimSpace(answer), nil
}

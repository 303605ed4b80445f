package services

import (
	"context"
	"errors"
	"testing"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/vectorstore"
	"document-qa-backend/models"
)

func testCandidates(query []float32, vectors ...[]float32) []vectorstore.Candidate {
	candidates := make([]vectorstore.Candidate, 0, len(vectors))
	for i, v := range vectors {
		candidates = append(candidates, vectorstore.Candidate{
			Chunk:  models.Chunk{ChunkID: string(rune('A' + i)), Text: string(rune('A' + i))},
			Score:  vectorstore.CosineSimilarity(query, v),
			Vector: v,
		})
	}
	return candidates
}

func TestMMRWithFullLambdaIsPureSimilarity(t *testing.T) {
	query := []float32{1, 0}
	// A is identical to the query, B a near-duplicate of A, C less relevant.
	candidates := testCandidates(query,
		[]float32{1, 0},
		[]float32{1, 0},
		[]float32{0.8, 0.6},
	)

	selected := maximalMarginalRelevance(query, candidates, 1.0, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 results, got %d", len(selected))
	}
	if selected[0].Chunk.ChunkID != "A" || selected[1].Chunk.ChunkID != "B" {
		t.Fatalf("lambda=1 should rank by similarity alone, got %s then %s",
			selected[0].Chunk.ChunkID, selected[1].Chunk.ChunkID)
	}
}

func TestMMRPenalizesRedundancy(t *testing.T) {
	query := []float32{1, 0}
	candidates := testCandidates(query,
		[]float32{1, 0},
		[]float32{1, 0},
		[]float32{0.8, 0.6},
	)

	selected := maximalMarginalRelevance(query, candidates, 0.4, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 results, got %d", len(selected))
	}
	if selected[0].Chunk.ChunkID != "A" {
		t.Fatalf("most relevant candidate should come first, got %s", selected[0].Chunk.ChunkID)
	}
	if selected[1].Chunk.ChunkID != "C" {
		t.Fatalf("duplicate of the first pick should lose to the diverse candidate, got %s",
			selected[1].Chunk.ChunkID)
	}
}

func TestMMRReturnsAtMostK(t *testing.T) {
	query := []float32{1, 0}
	candidates := testCandidates(query, []float32{1, 0}, []float32{0, 1})

	if got := maximalMarginalRelevance(query, candidates, 0.5, 10); len(got) != 2 {
		t.Fatalf("k larger than candidate set should return all candidates, got %d", len(got))
	}
	if got := maximalMarginalRelevance(query, candidates, 0.5, 1); len(got) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(got))
	}
	if got := maximalMarginalRelevance(query, nil, 0.5, 3); got != nil {
		t.Fatalf("no candidates should yield no results, got %v", got)
	}
}

func TestRetrieveEmptyStoreReturnsErrNoDocuments(t *testing.T) {
	store, err := vectorstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	cfg := &config.Config{TopK: 5, FetchK: 20, MMRLambda: 0.5}
	r := NewRetriever(cfg, nil, store)

	_, err = r.Retrieve(context.Background(), "anything")
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

package services

import (
	"context"
	"errors"

	"document-qa-backend/internal/ai"
	"document-qa-backend/internal/config"
	"document-qa-backend/internal/vectorstore"
	"document-qa-backend/models"
)

// ErrNoDocuments is returned when the store holds nothing to retrieve from.
var ErrNoDocuments = errors.New("no document data available")

// Retriever wraps similarity search over the vector store with fixed
// parameters: top-k results selected from fetch-k candidates by maximal
// marginal relevance.
type Retriever struct {
	config   *config.Config
	embedder *ai.EmbeddingClient
	store    *vectorstore.Store
}

func NewRetriever(cfg *config.Config, embedder *ai.EmbeddingClient, store *vectorstore.Store) *Retriever {
	return &Retriever{config: cfg, embedder: embedder, store: store}
}

// Retrieve returns at most TopK chunks for the query, ranked by descending
// relevance with redundancy penalized by the MMR lambda weighting.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoDocuments
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := r.store.Search(ctx, queryVector, r.config.FetchK)
	if err != nil {
		return nil, err
	}

	selected := maximalMarginalRelevance(queryVector, candidates, r.config.MMRLambda, r.config.TopK)

	results := make([]models.SearchResult, 0, len(selected))
	for _, c := range selected {
		results = append(results, models.SearchResult{Chunk: c.Chunk, Score: c.Score})
	}
	return results, nil
}

// maximalMarginalRelevance iteratively picks the candidate maximizing
// lambda*sim(query, c) - (1-lambda)*max_sim(c, already selected). lambda=1
// degenerates to plain similarity ranking.
func maximalMarginalRelevance(query []float32, candidates []vectorstore.Candidate, lambda float64, k int) []vectorstore.Candidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	remaining := make([]vectorstore.Candidate, len(candidates))
	copy(remaining, candidates)

	selected := make([]vectorstore.Candidate, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1e18

		for i, candidate := range remaining {
			redundancy := 0.0
			for _, chosen := range selected {
				sim := vectorstore.CosineSimilarity(candidate.Vector, chosen.Vector)
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*candidate.Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// Package search ranks chunks for a query under semantic, lexical, and
// hybrid modes (component C6).
package search

import (
	"context"
	"fmt"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/llm"
	"github.com/ragdocs/docqa/internal/store"
)

// candidateMultiplier and candidateCap bound how many candidates each leg
// of a hybrid search pulls before fusion: k*4, capped at 40, but never
// fewer than k (so for k > 40 each leg pulls k candidates).
const (
	candidateMultiplier = 4
	candidateCap        = 40
)

// chunkStore is the slice of *store.Store the search service needs.
type chunkStore interface {
	SearchVector(ctx context.Context, queryVector []float32, k int, filterDocumentID string, minSimilarity float64) ([]store.ScoredChunk, error)
	SearchSubstring(ctx context.Context, query string, k int, filterDocumentID string) ([]store.ScoredChunk, error)
	GetChunksByIndexRange(ctx context.Context, documentID string, lo, hi int) ([]store.Chunk, error)
}

// Service answers semantic, lexical, and hybrid queries over a Store.
type Service struct {
	store    chunkStore
	embedder llm.EmbeddingClient
}

// New returns a Service backed by st for retrieval and embedder for
// turning query text into a vector for semantic search.
func New(st chunkStore, embedder llm.EmbeddingClient) *Service {
	return &Service{store: st, embedder: embedder}
}

// Result is a ranked chunk with whichever component scores produced it.
// Components not computed for a given mode are left at zero.
type Result struct {
	store.Chunk
	SimilarityScore float64
	KeywordScore    float64
	CombinedScore   float64
	// Context holds the immediate predecessor/successor chunks in the
	// same document, populated only by HybridWithContext.
	Context []store.Chunk
}

// Semantic embeds q and ranks chunks by cosine similarity.
func (s *Service) Semantic(ctx context.Context, q string, k int, filterDocumentID string, minSimilarity float64) ([]Result, error) {
	qv, err := s.embedder.EmbedOne(ctx, q)
	if err != nil {
		return nil, apperr.Provider("search: embedding query", err)
	}
	scored, err := s.store.SearchVector(ctx, qv, k, filterDocumentID, minSimilarity)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(scored))
	for i, c := range scored {
		out[i] = Result{Chunk: c.Chunk, SimilarityScore: c.Score, CombinedScore: c.Score}
	}
	return out, nil
}

// Lexical ranks chunks by substring occurrence frequency.
func (s *Service) Lexical(ctx context.Context, q string, k int, filterDocumentID string) ([]Result, error) {
	scored, err := s.store.SearchSubstring(ctx, q, k, filterDocumentID)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(scored))
	for i, c := range scored {
		out[i] = Result{Chunk: c.Chunk, KeywordScore: c.Score, CombinedScore: c.Score}
	}
	return out, nil
}

// Hybrid fuses semantic and lexical candidates with a weighted sum,
// combined = semanticWeight*s_sem + keywordWeight*s_lex (missing
// components treated as 0), and returns the top k by combined score.
// semanticWeight and keywordWeight must be >= 0 and sum to > 0.
func (s *Service) Hybrid(ctx context.Context, q string, k int, filterDocumentID string, semanticWeight, keywordWeight float64) ([]Result, error) {
	if semanticWeight < 0 || keywordWeight < 0 || semanticWeight+keywordWeight <= 0 {
		return nil, fmt.Errorf("search: invalid hybrid weights: semantic=%v keyword=%v", semanticWeight, keywordWeight)
	}

	candidateK := k * candidateMultiplier
	if candidateK > candidateCap {
		candidateK = candidateCap
	}
	if candidateK < k {
		candidateK = k
	}

	type semResult struct {
		results []Result
		err     error
	}
	type lexResult struct {
		results []Result
		err     error
	}
	semCh := make(chan semResult, 1)
	lexCh := make(chan lexResult, 1)

	go func() {
		r, err := s.Semantic(ctx, q, candidateK, filterDocumentID, 0)
		semCh <- semResult{r, err}
	}()
	go func() {
		r, err := s.Lexical(ctx, q, candidateK, filterDocumentID)
		lexCh <- lexResult{r, err}
	}()

	sem := <-semCh
	lex := <-lexCh
	if sem.err != nil {
		return nil, sem.err
	}
	if lex.err != nil {
		return nil, lex.err
	}

	fused := fuse(sem.results, lex.results, semanticWeight, keywordWeight)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// HybridWithContext runs Hybrid and attaches each result's immediate
// predecessor and successor chunk in the same document (context mode,
// used by the RAG orchestrator). Context is presentation-only and never
// affects ranking.
func (s *Service) HybridWithContext(ctx context.Context, q string, k int, filterDocumentID string, semanticWeight, keywordWeight float64) ([]Result, error) {
	results, err := s.Hybrid(ctx, q, k, filterDocumentID, semanticWeight, keywordWeight)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		neighbors, err := s.store.GetChunksByIndexRange(ctx, r.DocumentID, r.ChunkIndex-1, r.ChunkIndex+1)
		if err != nil {
			return nil, err
		}
		var ctxChunks []store.Chunk
		for _, n := range neighbors {
			if n.ChunkIndex != r.ChunkIndex {
				ctxChunks = append(ctxChunks, n)
			}
		}
		results[i].Context = ctxChunks
	}
	return results, nil
}

// fuse forms the union of sem and lex candidates keyed by chunk id,
// computes combined = wS*s_sem + wK*s_lex (missing component = 0), and
// returns results sorted by combined score descending, ties broken by
// (document_id, chunk_index) ascending.
func fuse(sem, lex []Result, wS, wK float64) []Result {
	byID := make(map[string]*Result)
	order := make([]string, 0, len(sem)+len(lex))

	for _, r := range sem {
		r := r
		byID[r.ID] = &r
		order = append(order, r.ID)
	}
	for _, r := range lex {
		if existing, ok := byID[r.ID]; ok {
			existing.KeywordScore = r.KeywordScore
			continue
		}
		r := r
		byID[r.ID] = &r
		order = append(order, r.ID)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		r := *byID[id]
		r.CombinedScore = wS*r.SimilarityScore + wK*r.KeywordScore
		out = append(out, r)
	}

	sortResults(out)
	return out
}

func sortResults(rs []Result) {
	for i := 1; i < len(rs); i++ {
		j := i
		for j > 0 && less(rs[j], rs[j-1]) {
			rs[j], rs[j-1] = rs[j-1], rs[j]
			j--
		}
	}
}

func less(a, b Result) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkIndex < b.ChunkIndex
}

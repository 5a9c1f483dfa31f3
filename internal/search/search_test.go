package search

import (
	"context"
	"testing"

	"github.com/ragdocs/docqa/internal/store"
)

type fakeChunkStore struct {
	vectorResults    []store.ScoredChunk
	substringResults []store.ScoredChunk
	neighbors        map[string][]store.Chunk
}

func (f *fakeChunkStore) SearchVector(_ context.Context, _ []float32, k int, _ string, minSim float64) ([]store.ScoredChunk, error) {
	var out []store.ScoredChunk
	for _, r := range f.vectorResults {
		if r.Score >= minSim {
			out = append(out, r)
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeChunkStore) SearchSubstring(_ context.Context, _ string, k int, _ string) ([]store.ScoredChunk, error) {
	out := f.substringResults
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeChunkStore) GetChunksByIndexRange(_ context.Context, documentID string, lo, hi int) ([]store.Chunk, error) {
	var out []store.Chunk
	for _, c := range f.neighbors[documentID] {
		if c.ChunkIndex >= lo && c.ChunkIndex <= hi {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) { return []float32{1}, nil }
func (fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func TestHybridRejectsInvalidWeights(t *testing.T) {
	svc := New(&fakeChunkStore{}, fakeEmbedder{})
	if _, err := svc.Hybrid(context.Background(), "q", 5, "", 0, 0); err == nil {
		t.Error("expected error for zero-sum weights")
	}
	if _, err := svc.Hybrid(context.Background(), "q", 5, "", -1, 1); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestHybridFusionOrderingAndUnion(t *testing.T) {
	fs := &fakeChunkStore{
		vectorResults: []store.ScoredChunk{
			{Chunk: store.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: "fox"}, Score: 0.9},
			{Chunk: store.Chunk{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "dog"}, Score: 0.5},
		},
		substringResults: []store.ScoredChunk{
			{Chunk: store.Chunk{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "dog"}, Score: 1.0},
			{Chunk: store.Chunk{ID: "c3", DocumentID: "d1", ChunkIndex: 2, Text: "cat"}, Score: 0.2},
		},
	}
	svc := New(fs, fakeEmbedder{})

	results, err := svc.Hybrid(context.Background(), "fox", 3, "", 0.5, 0.5)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected union of 3 candidates, got %d", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].CombinedScore > results[i-1].CombinedScore {
			t.Errorf("results not sorted descending at index %d: %v > %v", i, results[i].CombinedScore, results[i-1].CombinedScore)
		}
	}

	// c2 has both sem=0.5 and lex=1.0 -> combined 0.75, the highest.
	if results[0].ID != "c2" {
		t.Errorf("expected c2 first (combined 0.75), got %s with score %v", results[0].ID, results[0].CombinedScore)
	}
}

func TestHybridTieBreakByDocumentAndChunkIndex(t *testing.T) {
	fs := &fakeChunkStore{
		vectorResults: []store.ScoredChunk{
			{Chunk: store.Chunk{ID: "c1", DocumentID: "b", ChunkIndex: 5}, Score: 0.5},
			{Chunk: store.Chunk{ID: "c2", DocumentID: "a", ChunkIndex: 9}, Score: 0.5},
		},
	}
	svc := New(fs, fakeEmbedder{})
	results, err := svc.Hybrid(context.Background(), "q", 2, "", 1.0, 0.0)
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if results[0].DocumentID != "a" {
		t.Errorf("expected document a first on tie, got %s", results[0].DocumentID)
	}
}

func TestHybridEmptyResultIsNotAnError(t *testing.T) {
	svc := New(&fakeChunkStore{}, fakeEmbedder{})
	results, err := svc.Hybrid(context.Background(), "q", 5, "", 0.7, 0.3)
	if err != nil {
		t.Fatalf("expected no error for empty result set: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected zero results, got %d", len(results))
	}
}

func TestHybridWithContextAttachesNeighbors(t *testing.T) {
	fs := &fakeChunkStore{
		vectorResults: []store.ScoredChunk{
			{Chunk: store.Chunk{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "mid"}, Score: 0.9},
		},
		neighbors: map[string][]store.Chunk{
			"d1": {
				{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: "prev"},
				{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "mid"},
				{ID: "c3", DocumentID: "d1", ChunkIndex: 2, Text: "next"},
			},
		},
	}
	svc := New(fs, fakeEmbedder{})
	results, err := svc.HybridWithContext(context.Background(), "q", 5, "", 1.0, 0.0)
	if err != nil {
		t.Fatalf("HybridWithContext: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Context) != 2 {
		t.Fatalf("expected 2 neighbor chunks, got %d", len(results[0].Context))
	}
}

func TestCandidateMultiplierCappedAt40(t *testing.T) {
	if candidateCap != 40 || candidateMultiplier != 4 {
		t.Fatalf("candidate expansion policy changed unexpectedly: multiplier=%d cap=%d", candidateMultiplier, candidateCap)
	}
}

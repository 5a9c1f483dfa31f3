package store

import (
	"math"
	"strings"
	"testing"
)

func TestSchemaSQLContainsHNSWParams(t *testing.T) {
	sql := schemaSQL(1536)
	for _, want := range []string{
		"vector(1536)",
		"USING hnsw",
		"m = 16",
		"ef_construction = 64",
		"UNIQUE (content_hash)",
		"CHECK (processing_status IN ('pending', 'processing', 'completed', 'failed'))",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("schemaSQL missing %q", want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusFailed, StatusProcessing, true},
		{StatusCompleted, StatusProcessing, false},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOccurrences(t *testing.T) {
	tests := []struct {
		text, substr string
		want         int
	}{
		{"the cat sat on the mat", "the", 2},
		{"The Cat Sat", "cat", 1},
		{"no match here", "xyz", 0},
		{"", "x", 0},
		{"x", "", 0},
	}
	for _, tt := range tests {
		if got := occurrences(tt.text, tt.substr); got != tt.want {
			t.Errorf("occurrences(%q, %q) = %d, want %d", tt.text, tt.substr, got, tt.want)
		}
	}
}

func TestLexicalScoreFormula(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0}, {1, 0.2}, {3, 0.6}, {5, 1.0}, {10, 1.0},
	}
	for _, tt := range tests {
		got := minFloat(1.0, 0.2*float64(tt.n))
		// 0.2*3 is 0.6000000000000001 in float64, so compare within 1e-9.
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("score(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func TestEscapeLike(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortScoredChunks(t *testing.T) {
	cs := []ScoredChunk{
		{Chunk: Chunk{DocumentID: "b", ChunkIndex: 0}, Score: 0.5},
		{Chunk: Chunk{DocumentID: "a", ChunkIndex: 1}, Score: 0.9},
		{Chunk: Chunk{DocumentID: "a", ChunkIndex: 0}, Score: 0.9},
		{Chunk: Chunk{DocumentID: "c", ChunkIndex: 0}, Score: 0.1},
	}
	sortScoredChunks(cs)

	wantOrder := [][2]any{
		{"a", 0}, {"a", 1}, {"b", 0}, {"c", 0},
	}
	for i, w := range wantOrder {
		if cs[i].DocumentID != w[0] || cs[i].ChunkIndex != w[1] {
			t.Errorf("position %d: got (%s,%d), want (%v,%v)", i, cs[i].DocumentID, cs[i].ChunkIndex, w[0], w[1])
		}
	}
}

package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/llm"
	"github.com/ragdocs/docqa/internal/search"
	"github.com/ragdocs/docqa/internal/store"
)

type fakeSearcher struct {
	results []search.Result
}

func (f *fakeSearcher) HybridWithContext(_ context.Context, _ string, _ int, _ string, _, _ float64) ([]search.Result, error) {
	return f.results, nil
}

type fakeDocs struct {
	docs map[string]store.Document
}

func (f *fakeDocs) GetDocument(_ context.Context, id string) (store.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return store.Document{}, apperr.NotFound("not found")
	}
	return d, nil
}

type fakeChat struct {
	lastMessages []llm.Message
	response     string
}

func (f *fakeChat) Complete(_ context.Context, messages []llm.Message, _ float64, _ int) (*llm.ChatResult, error) {
	f.lastMessages = messages
	return &llm.ChatResult{Text: f.response}, nil
}

func TestAskEmptyRetrievalShortCircuits(t *testing.T) {
	chat := &fakeChat{response: "should not be used"}
	o := New(&fakeSearcher{}, &fakeDocs{docs: map[string]store.Document{}}, chat)

	answer, err := o.Ask(context.Background(), "anything", Params{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != noContextAnswer {
		t.Errorf("Text = %q, want %q", answer.Text, noContextAnswer)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(answer.Sources))
	}
	if chat.lastMessages != nil {
		t.Error("expected the chat provider never to be called")
	}
}

func TestAskAssemblesContextAndCitesSources(t *testing.T) {
	results := []search.Result{
		{Chunk: store.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: "the fox jumps"}, CombinedScore: 0.9},
		{Chunk: store.Chunk{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "over the dog"}, CombinedScore: 0.8},
	}
	docs := &fakeDocs{docs: map[string]store.Document{"d1": {ID: "d1", Filename: "animals.txt"}}}
	chat := &fakeChat{response: "the fox jumps over the dog [Source 1][Source 2]"}
	o := New(&fakeSearcher{results: results}, docs, chat)

	answer, err := o.Ask(context.Background(), "what does the fox do?", Params{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(answer.Sources))
	}
	if answer.Sources[0].DocumentFilename != "animals.txt" {
		t.Errorf("DocumentFilename = %q, want animals.txt", answer.Sources[0].DocumentFilename)
	}
	if answer.ContextUsed != 2 {
		t.Errorf("ContextUsed = %d, want 2", answer.ContextUsed)
	}

	system := chat.lastMessages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %s, want system", system.Role)
	}
	if !strings.Contains(system.Content, "[Source 1: animals.txt]") {
		t.Errorf("system prompt missing source label: %s", system.Content)
	}
}

func TestAskStopsBeforeExceedingMaxContextChars(t *testing.T) {
	longText := strings.Repeat("x", MaxContextChars)
	results := []search.Result{
		{Chunk: store.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: longText}, CombinedScore: 0.9},
		{Chunk: store.Chunk{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: "short"}, CombinedScore: 0.5},
	}
	docs := &fakeDocs{docs: map[string]store.Document{"d1": {ID: "d1", Filename: "big.txt"}}}
	chat := &fakeChat{response: "ok"}
	o := New(&fakeSearcher{results: results}, docs, chat)

	answer, err := o.Ask(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.ContextUsed != 1 {
		t.Errorf("ContextUsed = %d, want 1 (second source should be dropped)", answer.ContextUsed)
	}
}

func TestAskDefaultsParams(t *testing.T) {
	p := Params{}.withDefaults()
	if p.TopK != 8 {
		t.Errorf("TopK default = %d, want 8", p.TopK)
	}
	if p.SemanticWeight != 0.7 || p.KeywordWeight != 0.3 {
		t.Errorf("weight defaults = %v/%v, want 0.7/0.3", p.SemanticWeight, p.KeywordWeight)
	}
	if p.Temperature != 0.7 || p.MaxTokens != 500 {
		t.Errorf("completion defaults = %v/%d, want 0.7/500", p.Temperature, p.MaxTokens)
	}
}

func TestAskTextPreviewTruncatedAt200Chars(t *testing.T) {
	longText := strings.Repeat("a", 300)
	results := []search.Result{
		{Chunk: store.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: longText}, CombinedScore: 0.9},
	}
	docs := &fakeDocs{docs: map[string]store.Document{"d1": {ID: "d1", Filename: "f.txt"}}}
	o := New(&fakeSearcher{results: results}, docs, &fakeChat{response: "ok"})

	answer, err := o.Ask(context.Background(), "q", Params{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Sources[0].TextPreview) != 200 {
		t.Errorf("TextPreview length = %d, want 200", len(answer.Sources[0].TextPreview))
	}
}

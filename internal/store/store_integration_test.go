//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/ragdocs/docqa/internal/apperr"
)

// openTestStore opens a Store against DOCQA_TEST_DATABASE_URL, skipping
// the test if it isn't set. Run with: go test -tags integration ./...
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DOCQA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DOCQA_TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), dsn, 4, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), `TRUNCATE documents CASCADE`)
		s.Close()
	})
	return s
}

func TestIntegrationCreateAndGetDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{
		ID:          "doc-1",
		Filename:    "a.txt",
		FileType:    "txt",
		SizeBytes:   10,
		ContentHash: "hash-1",
		StoragePath: "/tmp/a.txt",
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestIntegrationDuplicateContentHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{ID: "doc-2", Filename: "b.txt", FileType: "txt", SizeBytes: 1, ContentHash: "hash-2", StoragePath: "/tmp/b.txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	dupe := doc
	dupe.ID = "doc-3"
	err := s.CreateDocument(ctx, dupe)
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	id, ok := apperr.DuplicateID(err)
	if !ok || id != "doc-2" {
		t.Errorf("DuplicateID = %q, %v, want doc-2, true", id, ok)
	}
}

func TestIntegrationStatusTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{ID: "doc-4", Filename: "c.txt", FileType: "txt", SizeBytes: 1, ContentHash: "hash-4", StoragePath: "/tmp/c.txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if err := s.UpdateDocumentStatus(ctx, "doc-4", StatusProcessing, "", nil); err != nil {
		t.Fatalf("pending->processing: %v", err)
	}
	if err := s.UpdateDocumentStatus(ctx, "doc-4", StatusCompleted, "", &DocumentCounts{CharacterCount: 5, WordCount: 1, ChunkCount: 1}); err != nil {
		t.Fatalf("processing->completed: %v", err)
	}
	if err := s.UpdateDocumentStatus(ctx, "doc-4", StatusProcessing, "", nil); err == nil {
		t.Fatal("expected completed->processing to be rejected")
	}
}

func TestIntegrationChunkBatchAndVectorSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{ID: "doc-5", Filename: "d.txt", FileType: "txt", SizeBytes: 1, ContentHash: "hash-5", StoragePath: "/tmp/d.txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	chunks := []NewChunk{
		{Index: 0, Text: "the cat sat", Vector: []float32{1, 0, 0, 0}},
		{Index: 1, Text: "the dog ran", Vector: []float32{0, 1, 0, 0}},
	}
	if err := s.CreateChunksBatch(ctx, "doc-5", chunks); err != nil {
		t.Fatalf("CreateChunksBatch: %v", err)
	}

	results, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 1, "", 0)
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(results) != 1 || results[0].Text != "the cat sat" {
		t.Fatalf("unexpected vector search result: %+v", results)
	}

	lex, err := s.SearchSubstring(ctx, "the", 10, "")
	if err != nil {
		t.Fatalf("SearchSubstring: %v", err)
	}
	if len(lex) != 2 {
		t.Fatalf("expected 2 lexical matches, got %d", len(lex))
	}
}

func TestIntegrationDeleteDocumentCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{ID: "doc-6", Filename: "e.txt", FileType: "txt", SizeBytes: 1, ContentHash: "hash-6", StoragePath: "/tmp/e.txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := s.CreateChunksBatch(ctx, "doc-6", []NewChunk{{Index: 0, Text: "x"}}); err != nil {
		t.Fatalf("CreateChunksBatch: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc-6"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, "doc-6"); err == nil {
		t.Fatal("expected document to be gone")
	}
	remaining, err := s.GetChunksByDocument(ctx, "doc-6")
	if err != nil {
		t.Fatalf("GetChunksByDocument: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected cascade delete of chunks, got %d", len(remaining))
	}
}

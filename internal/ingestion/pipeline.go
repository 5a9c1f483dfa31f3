// Package ingestion drives a Document from pending through parsing,
// chunking, embedding, and persistence to a terminal completed or failed
// status.
package ingestion

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/chunker"
	"github.com/ragdocs/docqa/internal/llm"
	"github.com/ragdocs/docqa/internal/parser"
	"github.com/ragdocs/docqa/internal/store"
)

// documentStore is the slice of *store.Store that the pipeline needs,
// narrowed to an interface so tests can exercise Process against a fake
// without a live database.
type documentStore interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, newStatus store.Status, errMsg string, counts *store.DocumentCounts) error
	CreateChunksBatch(ctx context.Context, documentID string, chunks []store.NewChunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// parserRegistry is the slice of *parser.Registry the pipeline needs.
type parserRegistry interface {
	Get(format string) (parser.Parser, error)
}

// Pipeline processes documents with a bounded pool of background workers,
// so a burst of uploads can't spawn unbounded concurrent provider calls.
type Pipeline struct {
	store    documentStore
	chunker  *chunker.Chunker
	embedder llm.EmbeddingClient
	parsers  parserRegistry

	jobs chan string
	done chan struct{}
}

// New starts a Pipeline with the given number of background workers.
func New(st documentStore, ck *chunker.Chunker, embedder llm.EmbeddingClient, parsers parserRegistry, workers int) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	p := &Pipeline{
		store:    st,
		chunker:  ck,
		embedder: embedder,
		parsers:  parsers,
		jobs:     make(chan string, workers*4),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker(context.Background())
	}
	return p
}

// Enqueue schedules documentID for ingestion. Non-blocking if the queue
// has room; callers that need to process synchronously should call
// Process directly instead (e.g. tests).
func (p *Pipeline) Enqueue(documentID string) {
	select {
	case p.jobs <- documentID:
	default:
		go func() { p.jobs <- documentID }()
	}
}

// Close stops accepting new work and waits for queued jobs to drain.
func (p *Pipeline) Close() {
	close(p.jobs)
	<-p.done
}

func (p *Pipeline) worker(ctx context.Context) {
	for id := range p.jobs {
		if err := p.Process(ctx, id); err != nil {
			slog.Error("ingestion: processing failed", "document_id", id, "error", err)
		}
	}
	p.done <- struct{}{}
}

// Process runs the full parse -> chunk -> embed -> persist flow for a
// single document. It claims the document by transitioning it to
// processing; if another worker already claimed it (or its status does not
// allow the move to processing, e.g. completed), Process returns nil
// without doing further work. A failed document is claimed again.
func (p *Pipeline) Process(ctx context.Context, documentID string) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusProcessing, "", nil); err != nil {
		if apperr.Of(err, apperr.KindInvalidTransition) {
			slog.Info("ingestion: skipping already-claimed or non-pending document", "document_id", documentID)
			return nil
		}
		return err
	}

	log := slog.With("document_id", documentID, "filename", doc.Filename)

	parsed, err := p.parse(ctx, doc)
	if err != nil {
		log.Warn("ingestion: parse failed", "error", err)
		return p.fail(ctx, documentID, "parse failed: "+err.Error())
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		log.Warn("ingestion: no extractable content")
		return p.fail(ctx, documentID, "no extractable content")
	}

	passages := p.chunker.Chunk(text)
	if len(passages) == 0 {
		log.Warn("ingestion: chunking produced no passages")
		return p.fail(ctx, documentID, "chunking produced no passages")
	}

	vectors, err := p.embedder.EmbedMany(ctx, passages)
	if err != nil {
		log.Warn("ingestion: embedding failed", "error", err)
		return p.fail(ctx, documentID, "embedding failed: "+err.Error())
	}

	chunks := make([]store.NewChunk, len(passages))
	for i, text := range passages {
		chunks[i] = store.NewChunk{Index: i, Text: text, Vector: vectors[i]}
	}

	if err := p.store.CreateChunksBatch(ctx, documentID, chunks); err != nil {
		log.Warn("ingestion: persisting chunks failed", "error", err)
		return p.fail(ctx, documentID, "persisting chunks failed: "+err.Error())
	}

	counts := &store.DocumentCounts{
		CharacterCount: utf8.RuneCountInString(text),
		WordCount:      len(strings.Fields(text)),
		PageCount:      parsed.PageCount,
		ChunkCount:     len(chunks),
	}
	if err := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusCompleted, "", counts); err != nil {
		return err
	}
	log.Info("ingestion: completed", "chunks", len(chunks))
	return nil
}

func (p *Pipeline) parse(ctx context.Context, doc store.Document) (*parser.ParseResult, error) {
	pr, err := p.parsers.Get(doc.FileType)
	if err != nil {
		return nil, err
	}
	return pr.Parse(ctx, doc.StoragePath)
}

func (p *Pipeline) fail(ctx context.Context, documentID, message string) error {
	_ = p.store.DeleteChunksByDocument(ctx, documentID)
	if err := p.store.UpdateDocumentStatus(ctx, documentID, store.StatusFailed, message, nil); err != nil {
		return err
	}
	return nil
}

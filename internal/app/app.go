// Package app wires the document Q&A service's components together:
// Store, Chunker, EmbeddingClient, ChatClient, IngestionPipeline,
// SearchService, RAGOrchestrator, and UploadCoordinator.
package app

import (
	"context"
	"fmt"

	"github.com/ragdocs/docqa/internal/chunker"
	"github.com/ragdocs/docqa/internal/config"
	"github.com/ragdocs/docqa/internal/ingestion"
	"github.com/ragdocs/docqa/internal/llm"
	"github.com/ragdocs/docqa/internal/parser"
	"github.com/ragdocs/docqa/internal/rag"
	"github.com/ragdocs/docqa/internal/search"
	"github.com/ragdocs/docqa/internal/store"
	"github.com/ragdocs/docqa/internal/upload"
)

// App holds every wired component the HTTP layer dispatches to.
type App struct {
	Config    config.Config
	Store     *store.Store
	Search    *search.Service
	RAG       *rag.Orchestrator
	Upload    *upload.Coordinator
	Ingestion *ingestion.Pipeline
}

// New connects to the store, constructs the LLM clients and pipeline
// components, and returns a ready App.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.EmbedDim, 0)
	if err != nil {
		return nil, fmt.Errorf("app: opening store: %w", err)
	}

	chatClient, err := llm.NewChatClient(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: chat client: %w", err)
	}

	embedClient, err := llm.NewEmbeddingClient(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		MaxBatch: cfg.EmbedBatchMax,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: embedding client: %w", err)
	}

	ck, err := chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: chunker: %w", err)
	}

	parsers := parser.NewRegistry()
	pipeline := ingestion.New(st, ck, embedClient, parsers, cfg.IngestWorkers)
	searchSvc := search.New(st, embedClient)
	orchestrator := rag.New(searchSvc, st, chatClient)
	uploader := upload.New(st, pipeline, upload.Config{
		UploadRoot:        cfg.UploadRoot,
		MaxBytes:          cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtension,
	})

	return &App{
		Config:    cfg,
		Store:     st,
		Search:    searchSvc,
		RAG:       orchestrator,
		Upload:    uploader,
		Ingestion: pipeline,
	}, nil
}

// Close releases the store connection pool and drains the ingestion
// pipeline's worker pool.
func (a *App) Close() {
	a.Ingestion.Close()
	a.Store.Close()
}

// Package upload validates and persists uploaded files, then hands them
// off to ingestion (component C8, UploadCoordinator).
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/store"
)

// documentStore is the slice of *store.Store the coordinator needs.
type documentStore interface {
	GetDocumentByHash(ctx context.Context, hash string) (store.Document, error)
	CreateDocument(ctx context.Context, doc store.Document) error
}

// ingestionScheduler is satisfied by *ingestion.Pipeline; kept as an
// interface so tests don't have to spin up a real pipeline.
type ingestionScheduler interface {
	Enqueue(documentID string)
}

// Coordinator validates an uploaded file, deduplicates it by content
// hash, persists it to the upload root, and schedules ingestion.
type Coordinator struct {
	store             documentStore
	ingestion         ingestionScheduler
	uploadRoot        string
	maxBytes          int64
	allowedExtensions map[string]bool
}

// Config configures a Coordinator.
type Config struct {
	UploadRoot        string
	MaxBytes          int64
	AllowedExtensions map[string]bool
}

// New returns a Coordinator.
func New(st documentStore, pipeline ingestionScheduler, cfg Config) *Coordinator {
	return &Coordinator{
		store:             st,
		ingestion:         pipeline,
		uploadRoot:        cfg.UploadRoot,
		maxBytes:          cfg.MaxBytes,
		allowedExtensions: cfg.AllowedExtensions,
	}
}

// Result reports the outcome of an upload: a fresh Document id, or an
// existing one if the bytes were already ingested.
type Result struct {
	DocumentID string
	Duplicate  bool
}

// Accept validates filename/size/type, hashes data, deduplicates against
// Store, and if novel, writes the file and creates a pending Document
// before scheduling ingestion.
func (c *Coordinator) Accept(ctx context.Context, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !c.allowedExtensions[ext] {
		return nil, apperr.Validation(fmt.Sprintf("unsupported file type: %s", ext))
	}
	if int64(len(data)) > c.maxBytes {
		return nil, apperr.Validation(fmt.Sprintf("file exceeds maximum size of %d bytes", c.maxBytes))
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := c.store.GetDocumentByHash(ctx, hash)
	if err == nil {
		return &Result{DocumentID: existing.ID, Duplicate: true}, nil
	}
	if !apperr.Of(err, apperr.KindNotFound) {
		return nil, err
	}

	storagePath := filepath.Join(c.uploadRoot, hash[:2], hash+"."+ext)
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return nil, apperr.Store("creating upload directory", err)
	}
	if err := os.WriteFile(storagePath, data, 0o644); err != nil {
		return nil, apperr.Store("writing uploaded file", err)
	}

	doc := store.Document{
		ID:          uuid.New().String(),
		Filename:    filename,
		FileType:    ext,
		SizeBytes:   int64(len(data)),
		ContentHash: hash,
		StoragePath: storagePath,
	}
	if err := c.store.CreateDocument(ctx, doc); err != nil {
		if id, ok := apperr.DuplicateID(err); ok {
			// Lost a race with a concurrent upload of the same bytes.
			return &Result{DocumentID: id, Duplicate: true}, nil
		}
		return nil, err
	}

	c.ingestion.Enqueue(doc.ID)
	return &Result{DocumentID: doc.ID, Duplicate: false}, nil
}

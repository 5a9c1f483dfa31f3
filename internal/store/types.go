// Package store persists Documents and Chunks in PostgreSQL with pgvector
// and performs vector- and substring-based retrieval.
package store

import "time"

// Status is a Document's processing_status value.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// validTransitions enumerates the allowed processing_status DAG:
// pending -> processing -> {completed, failed}; failed -> processing
// (re-claim for retry) is also allowed per the ingestion pipeline's
// restart contract. completed is terminal.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusFailed:     {StatusProcessing: true},
	StatusCompleted:  {},
}

// CanTransition reports whether from -> to is an allowed processing_status
// transition.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Document is an ingested file.
type Document struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	FileType       string    `json:"file_type"`
	SizeBytes      int64     `json:"size_bytes"`
	ContentHash    string    `json:"content_hash"`
	StoragePath    string    `json:"-"` // server-local filesystem path, never serialized to clients
	CharacterCount int       `json:"character_count"`
	WordCount      int       `json:"word_count"`
	PageCount      int       `json:"page_count"`
	ChunkCount     int       `json:"chunk_count"`
	Status         Status    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Chunk is a passage of a Document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	CharCount  int       `json:"char_count"`
	Vector     []float32 `json:"-"` // never serialized; retrieved separately via search
}

// NewChunk is the input shape for a batch chunk insert: index, text, and an
// optional vector (nil if embedding hasn't happened yet, though in
// practice the ingestion pipeline always embeds before persisting).
type NewChunk struct {
	Index  int
	Text   string
	Vector []float32
}

// ScoredChunk is a Chunk with a retrieval score attached.
type ScoredChunk struct {
	Chunk
	Score float64
}

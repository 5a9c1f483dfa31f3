package store

import "fmt"

// schemaSQL returns the DDL for the documents/document_chunks tables,
// parameterized on the embedding dimension. Mirrors the guarded,
// idempotent CREATE INDEX pattern for the ANN index: if the HNSW index
// build fails (e.g. the installed pgvector has no HNSW support), the DO
// block catches the error and search_vector falls back to a flat scan
// (Design Notes §9: vector search is an interface, not a commitment to a
// specific index flavor). The vector extension itself is still required.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	content_hash TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	character_count INT NOT NULL DEFAULT 0,
	word_count INT NOT NULL DEFAULT 0,
	page_count INT NOT NULL DEFAULT 0,
	chunk_count INT NOT NULL DEFAULT 0,
	processing_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (processing_status IN ('pending', 'processing', 'completed', 'failed')),
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (content_hash)
);

CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (processing_status);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	content TEXT NOT NULL,
	char_count INT NOT NULL,
	embedding vector(%[1]d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS document_chunks_document_idx ON document_chunks (document_id);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema()
			AND indexname = 'document_chunks_embedding_idx'
	) THEN
		BEGIN
			EXECUTE 'CREATE INDEX document_chunks_embedding_idx ON document_chunks
				USING hnsw (embedding vector_cosine_ops)
				WITH (m = 16, ef_construction = 64);';
		EXCEPTION WHEN OTHERS THEN
			RAISE NOTICE 'skipping HNSW index: %%', SQLERRM;
		END;
	END IF;
END
$$;
`, embeddingDim)
}

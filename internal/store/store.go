package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ragdocs/docqa/internal/apperr"
)

// Store is the persistence and retrieval collaborator (spec component C4)
// backed by PostgreSQL + pgvector.
type Store struct {
	pool         *pgxpool.Pool
	embeddingDim int
}

// Open connects to Postgres, ensures the schema exists, and returns a
// ready Store. maxConns <= 0 uses pgxpool's default pool sizing.
func Open(ctx context.Context, dsn string, embeddingDim int, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{pool: pool, embeddingDim: embeddingDim}
	if err := migrate(ctx, pool, embeddingDim); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// CreateDocument inserts doc in status pending. If a document with the
// same content hash already exists, it fails with a DuplicateContent
// error carrying the existing identifier.
func (s *Store) CreateDocument(ctx context.Context, doc Document) error {
	existing, err := s.GetDocumentByHash(ctx, doc.ContentHash)
	if err == nil {
		return apperr.Duplicate(existing.ID)
	}
	if !apperr.Of(err, apperr.KindNotFound) {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, filename, file_type, size_bytes, content_hash, storage_path, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')`,
		doc.ID, doc.Filename, doc.FileType, doc.SizeBytes, doc.ContentHash, doc.StoragePath)
	if err != nil {
		if isUniqueViolation(err) {
			existing, gerr := s.GetDocumentByHash(ctx, doc.ContentHash)
			if gerr == nil {
				return apperr.Duplicate(existing.ID)
			}
		}
		return apperr.Store("create document", err)
	}
	return nil
}

// GetDocument fetches a Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, documentSelectSQL+` WHERE id = $1`, id)
	return scanDocument(row)
}

// GetDocumentByHash fetches a Document by content hash.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (Document, error) {
	row := s.pool.QueryRow(ctx, documentSelectSQL+` WHERE content_hash = $1`, hash)
	return scanDocument(row)
}

// ListDocuments returns a page of Documents, optionally filtered by status.
func (s *Store) ListDocuments(ctx context.Context, offset, limit int, status string) ([]Document, error) {
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = s.pool.Query(ctx, documentSelectSQL+` WHERE processing_status = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`, status, offset, limit)
	} else {
		rows, err = s.pool.Query(ctx, documentSelectSQL+` ORDER BY created_at DESC OFFSET $1 LIMIT $2`, offset, limit)
	}
	if err != nil {
		return nil, apperr.Store("list documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of Documents, optionally filtered by
// status.
func (s *Store) CountDocuments(ctx context.Context, status string) (int, error) {
	var n int
	var err error
	if status != "" {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE processing_status = $1`, status).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	}
	if err != nil {
		return 0, apperr.Store("count documents", err)
	}
	return n, nil
}

// UpdateDocumentStatus transitions doc's status, guarded by the DAG
// pending -> processing -> {completed, failed} (and failed -> processing
// for re-claim). Returns InvalidTransition if the move is illegal, and
// NotFound if the document doesn't exist. If newStatus is processing, the
// update is itself the claim: it only succeeds if the row's current
// status still permits the transition, giving at-most-one-claimant
// semantics under concurrent callers (the UPDATE's WHERE clause is
// re-checked atomically by Postgres).
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, newStatus Status, errMsg string, counts *DocumentCounts) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(doc.Status, newStatus) {
		return apperr.InvalidTransition(fmt.Sprintf("cannot transition document %s from %s to %s", id, doc.Status, newStatus))
	}

	var tag pgxTag
	if counts != nil {
		tag, err = s.pool.Exec(ctx, `
			UPDATE documents SET processing_status = $1, error_message = $2,
				character_count = $3, word_count = $4, page_count = $5, chunk_count = $6,
				updated_at = NOW()
			WHERE id = $7 AND processing_status = $8`,
			string(newStatus), errMsg, counts.CharacterCount, counts.WordCount, counts.PageCount, counts.ChunkCount, id, string(doc.Status))
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE documents SET processing_status = $1, error_message = $2, updated_at = NOW()
			WHERE id = $3 AND processing_status = $4`,
			string(newStatus), errMsg, id, string(doc.Status))
	}
	if err != nil {
		return apperr.Store("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidTransition(fmt.Sprintf("document %s was claimed by another worker", id))
	}
	return nil
}

// DocumentCounts carries the derived counts written alongside a terminal
// status transition.
type DocumentCounts struct {
	CharacterCount int
	WordCount      int
	PageCount      int
	ChunkCount     int
}

// DeleteDocument removes doc and, via ON DELETE CASCADE, all its Chunks.
// The caller is responsible for removing the on-disk file.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return apperr.Store("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("document %s not found", id))
	}
	return nil
}

// CreateChunksBatch atomically inserts chunks for documentID: either all
// rows appear or none do.
func (s *Store) CreateChunksBatch(ctx context.Context, documentID string, chunks []NewChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Store("begin chunk batch", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		id := documentID + "-" + fmt.Sprint(c.Index)
		var vec any
		if c.Vector != nil {
			if len(c.Vector) != s.embeddingDim {
				return apperr.Validation(fmt.Sprintf("vector dimension mismatch: expected %d got %d", s.embeddingDim, len(c.Vector)))
			}
			vec = pgvector.NewVector(c.Vector)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, chunk_index, content, char_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, documentID, c.Index, c.Text, utf8.RuneCountInString(c.Text), vec)
		if err != nil {
			return apperr.Store("insert chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Store("commit chunk batch", err)
	}
	return nil
}

// DeleteChunksByDocument removes all chunks for documentID. Used by the
// ingestion failure path to clean up a partial batch; idempotent.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return apperr.Store("delete chunks", err)
	}
	return nil
}

// Stats is the corpus-wide snapshot served by GET /search/stats and
// GET /rag/health.
type Stats struct {
	TotalDocuments       int
	TotalChunks          int
	ChunksWithEmbeddings int
}

// GetStats returns corpus-wide document and chunk counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&st.TotalDocuments); err != nil {
		return Stats{}, apperr.Store("stats: count documents", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&st.TotalChunks); err != nil {
		return Stats{}, apperr.Store("stats: count chunks", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE embedding IS NOT NULL`).Scan(&st.ChunksWithEmbeddings); err != nil {
		return Stats{}, apperr.Store("stats: count embedded chunks", err)
	}
	return st, nil
}

// GetChunksByDocument returns a Document's chunks ordered by chunk_index.
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, char_count, embedding
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, apperr.Store("get chunks", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunksByIndexRange returns chunks of documentID whose chunk_index is
// in [lo, hi], used by the search service to fetch a result's neighbors
// for context mode.
func (s *Store) GetChunksByIndexRange(ctx context.Context, documentID string, lo, hi int) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, char_count, embedding
		FROM document_chunks WHERE document_id = $1 AND chunk_index BETWEEN $2 AND $3
		ORDER BY chunk_index ASC`, documentID, lo, hi)
	if err != nil {
		return nil, apperr.Store("get chunk range", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchVector returns the top-k chunks by cosine similarity to
// queryVector, optionally restricted to filterDocumentID and a minimum
// similarity threshold.
func (s *Store) SearchVector(ctx context.Context, queryVector []float32, k int, filterDocumentID string, minSimilarity float64) ([]ScoredChunk, error) {
	if len(queryVector) != s.embeddingDim {
		return nil, apperr.Validation(fmt.Sprintf("query vector dimension mismatch: expected %d got %d", s.embeddingDim, len(queryVector)))
	}

	qv := pgvector.NewVector(queryVector)
	var rows pgx.Rows
	var err error
	if filterDocumentID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, document_id, chunk_index, content, char_count, embedding,
				1 - (embedding <=> $1) AS similarity
			FROM document_chunks
			WHERE embedding IS NOT NULL AND document_id = $2
			ORDER BY embedding <=> $1
			LIMIT $3`, qv, filterDocumentID, k)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, document_id, chunk_index, content, char_count, embedding,
				1 - (embedding <=> $1) AS similarity
			FROM document_chunks
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $1
			LIMIT $2`, qv, k)
	}
	if err != nil {
		return nil, apperr.Store("search vector", err)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		var vec pgvector.Vector
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.ChunkIndex, &sc.Text, &sc.CharCount, &vec, &sc.Score); err != nil {
			return nil, apperr.Store("scan vector result", err)
		}
		sc.Vector = vec.Slice()
		if sc.Score >= minSimilarity {
			out = append(out, sc)
		}
	}
	return out, rows.Err()
}

// SearchSubstring returns up to k chunks whose text contains query as a
// case-insensitive substring, scored by normalized occurrence frequency
// (min(1.0, 0.2*occurrences)); scoring happens in Go because Postgres's
// built-in text ranking (ts_rank/BM25-like) does not compute the spec's
// occurrence-frequency formula.
func (s *Store) SearchSubstring(ctx context.Context, query string, k int, filterDocumentID string) ([]ScoredChunk, error) {
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"

	var rows pgx.Rows
	var err error
	if filterDocumentID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, document_id, chunk_index, content, char_count, embedding
			FROM document_chunks
			WHERE content ILIKE $1 ESCAPE '\' AND document_id = $2`, pattern, filterDocumentID)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, document_id, chunk_index, content, char_count, embedding
			FROM document_chunks
			WHERE content ILIKE $1 ESCAPE '\'`, pattern)
	}
	if err != nil {
		return nil, apperr.Store("search substring", err)
	}
	defer rows.Close()

	var candidates []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		n := occurrences(c.Text, query)
		if n == 0 {
			continue
		}
		out = append(out, ScoredChunk{Chunk: c, Score: math.Min(1.0, 0.2*float64(n))})
	}

	// Deterministic ordering before truncation: score desc, then
	// (document_id, chunk_index) asc.
	sortScoredChunks(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// occurrences counts non-overlapping case-insensitive occurrences of
// substr in text.
func occurrences(text, substr string) int {
	if substr == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(substr))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortScoredChunks(cs []ScoredChunk) {
	// insertion sort is adequate: candidate sets are bounded by the
	// caller's k/expansion limits, never the full corpus.
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && lessScoredChunk(cs[j], cs[j-1]) {
			cs[j], cs[j-1] = cs[j-1], cs[j]
			j--
		}
	}
}

func lessScoredChunk(a, b ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkIndex < b.ChunkIndex
}

const documentSelectSQL = `
	SELECT id, filename, file_type, size_bytes, content_hash, storage_path,
		character_count, word_count, page_count, chunk_count,
		processing_status, error_message, created_at, updated_at
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var status string
	err := row.Scan(&d.ID, &d.Filename, &d.FileType, &d.SizeBytes, &d.ContentHash, &d.StoragePath,
		&d.CharacterCount, &d.WordCount, &d.PageCount, &d.ChunkCount,
		&status, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Document{}, apperr.NotFound("document not found")
		}
		return Document{}, apperr.Store("scan document", err)
	}
	d.Status = Status(status)
	return d, nil
}

func scanChunk(row rowScanner) (Chunk, error) {
	var c Chunk
	var vec *pgvector.Vector
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.CharCount, &vec); err != nil {
		return Chunk{}, apperr.Store("scan chunk", err)
	}
	if vec != nil {
		c.Vector = vec.Slice()
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// pgxTag is the RowsAffected view of the pgconn.CommandTag that Exec
// returns, so UpdateDocumentStatus doesn't need to import pgconn directly.
type pgxTag = interface{ RowsAffected() int64 }

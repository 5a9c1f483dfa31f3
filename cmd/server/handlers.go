package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/app"
	"github.com/ragdocs/docqa/internal/rag"
	"github.com/ragdocs/docqa/internal/store"
)

type handler struct {
	app *app.App
}

func newHandler(a *app.App) *handler {
	return &handler{app: a}
}

// POST /documents/upload
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.app.Config.MaxUploadBytes + (1 << 20)); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}

	result, err := h.app.Upload.Accept(r.Context(), header.Filename, data)
	if err != nil {
		writeAppError(w, err)
		return
	}

	doc, err := h.app.Store.GetDocument(r.Context(), result.DocumentID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id":    doc.ID,
		"filename":       doc.Filename,
		"size":           doc.SizeBytes,
		"hash":           doc.ContentHash,
		"chunks_created": 0,
		"metadata": map[string]any{
			"duplicate": result.Duplicate,
			"status":    doc.Status,
		},
	})
}

// GET /documents/
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	status := r.URL.Query().Get("status")

	docs, err := h.app.Store.ListDocuments(r.Context(), offset, limit, status)
	if err != nil {
		writeAppError(w, err)
		return
	}
	total, err := h.app.Store.CountDocuments(r.Context(), status)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":   docs,
		"total_count": total,
	})
}

// GET /documents/{id}
func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.app.Store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata":    doc,
		"status":      doc.Status,
		"chunk_count": doc.ChunkCount,
	})
}

// GET /documents/{id}/chunks
func (h *handler) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.app.Store.GetDocument(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	chunks, err := h.app.Store.GetChunksByDocument(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	type chunkView struct {
		ChunkID    string `json:"chunk_id"`
		ChunkIndex int    `json:"chunk_index"`
		Text       string `json:"text"`
		HasVector  bool   `json:"has_vector"`
	}
	views := make([]chunkView, len(chunks))
	for i, c := range chunks {
		views[i] = chunkView{ChunkID: c.ID, ChunkIndex: c.ChunkIndex, Text: c.Text, HasVector: len(c.Vector) > 0}
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": views})
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.app.Store.GetDocument(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.app.Store.DeleteDocument(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	if doc.StoragePath != "" {
		if err := removeUploadedFile(doc.StoragePath); err != nil {
			slog.Warn("delete: failed to remove stored file", "path", doc.StoragePath, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /search/semantic
func (h *handler) handleSearchSemantic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := queryInt(r, "top_k", h.app.Config.TopKDefault)
	minSim := queryFloat(r, "min_similarity", 0)
	documentID := r.URL.Query().Get("document_id")

	results, err := h.app.Search.Semantic(r.Context(), q, topK, documentID, minSim)
	if err != nil {
		writeAppError(w, err)
		return
	}

	type row struct {
		ChunkID         string  `json:"chunk_id"`
		DocumentID      string  `json:"document_id"`
		DocumentName    string  `json:"document_name"`
		ChunkIndex      int     `json:"chunk_index"`
		Text            string  `json:"text"`
		SimilarityScore float64 `json:"similarity_score"`
	}
	out := make([]row, len(results))
	for i, res := range results {
		name, _ := h.documentName(r, res.DocumentID)
		out[i] = row{res.ID, res.DocumentID, name, res.ChunkIndex, res.Text, res.SimilarityScore}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// GET /search/keyword
func (h *handler) handleSearchKeyword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := queryInt(r, "top_k", h.app.Config.TopKDefault)
	documentID := r.URL.Query().Get("document_id")

	results, err := h.app.Search.Lexical(r.Context(), q, topK, documentID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	type row struct {
		ChunkID        string  `json:"chunk_id"`
		DocumentID     string  `json:"document_id"`
		DocumentName   string  `json:"document_name"`
		ChunkIndex     int     `json:"chunk_index"`
		Text           string  `json:"text"`
		RelevanceScore float64 `json:"relevance_score"`
	}
	out := make([]row, len(results))
	for i, res := range results {
		name, _ := h.documentName(r, res.DocumentID)
		out[i] = row{res.ID, res.DocumentID, name, res.ChunkIndex, res.Text, res.KeywordScore}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// GET /search/hybrid
func (h *handler) handleSearchHybrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := queryInt(r, "top_k", h.app.Config.TopKDefault)
	documentID := r.URL.Query().Get("document_id")
	semanticWeight := queryFloat(r, "semantic_weight", h.app.Config.SemanticWeight)
	keywordWeight := queryFloat(r, "keyword_weight", h.app.Config.KeywordWeight)

	results, err := h.app.Search.Hybrid(r.Context(), q, topK, documentID, semanticWeight, keywordWeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	type row struct {
		ChunkID        string  `json:"chunk_id"`
		DocumentID     string  `json:"document_id"`
		DocumentName   string  `json:"document_name"`
		ChunkIndex     int     `json:"chunk_index"`
		Text           string  `json:"text"`
		CombinedScore  float64 `json:"combined_score"`
		SemanticScore  float64 `json:"semantic_score"`
		KeywordScore   float64 `json:"keyword_score"`
	}
	out := make([]row, len(results))
	for i, res := range results {
		name, _ := h.documentName(r, res.DocumentID)
		out[i] = row{res.ID, res.DocumentID, name, res.ChunkIndex, res.Text, res.CombinedScore, res.SimilarityScore, res.KeywordScore}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": out,
		"weights": map[string]float64{"semantic_weight": semanticWeight, "keyword_weight": keywordWeight},
	})
}

// GET /search/stats
func (h *handler) handleSearchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Store.GetStats(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchableStatsResponse(stats))
}

// POST /rag/chat
func (h *handler) handleRAGChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query              string     `json:"query"`
		ConversationHistory []rag.Turn `json:"conversation_history,omitempty"`
		DocumentID         string     `json:"document_id,omitempty"`
		TopK               int        `json:"top_k,omitempty"`
		Temperature        float64    `json:"temperature,omitempty"`
		MaxTokens          int        `json:"max_tokens,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.app.RAG.Ask(r.Context(), req.Query, rag.Params{
		TopK:        req.TopK,
		DocumentID:  req.DocumentID,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		History:     req.ConversationHistory,
	})
	if err != nil {
		if apperr.Of(err, apperr.KindProvider) {
			writeError(w, http.StatusBadGateway, "chat provider error")
			return
		}
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":       answer.Text,
		"sources":      answer.Sources,
		"context_used": answer.ContextUsed,
		"model":        h.app.Config.Chat.Model,
	})
}

// GET /rag/health
func (h *handler) handleRAGHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Store.GetStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "statistics": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"statistics": searchableStatsResponse(stats),
	})
}

func removeUploadedFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (h *handler) documentName(r *http.Request, documentID string) (string, error) {
	doc, err := h.app.Store.GetDocument(r.Context(), documentID)
	if err != nil {
		return "", err
	}
	return doc.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps an apperr.Kind to its documented HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		slog.Error("unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch kind {
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case apperr.KindDuplicate:
		id, _ := apperr.DuplicateID(err)
		writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "duplicate"})
	case apperr.KindProvider:
		writeError(w, http.StatusServiceUnavailable, "provider error")
	default:
		slog.Error("store or internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func searchableStatsResponse(stats store.Stats) map[string]any {
	pct := 0.0
	if stats.TotalChunks > 0 {
		pct = float64(stats.ChunksWithEmbeddings) / float64(stats.TotalChunks) * 100
	}
	return map[string]any{
		"total_documents":        stats.TotalDocuments,
		"total_chunks":           stats.TotalChunks,
		"chunks_with_embeddings": stats.ChunksWithEmbeddings,
		"searchable_percentage":  pct,
	}
}

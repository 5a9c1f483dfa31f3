// Package config loads the document Q&A service's configuration from an
// optional .env file layered under OS environment variables, falling back
// to the documented defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LLMConfig describes one provider front-end: a chat or embedding client.
type LLMConfig struct {
	Provider string // ollama, openai, groq, openrouter, gemini, xai, lmstudio, custom
	Model    string
	BaseURL  string
	APIKey   string
}

// Config is the fully-resolved service configuration.
type Config struct {
	DatabaseURL string

	Chat      LLMConfig
	Embedding LLMConfig

	EmbedDim         int
	ChunkSize        int
	ChunkOverlap     int
	MaxUploadBytes   int64
	AllowedExtension map[string]bool

	EmbedBatchMax   int
	TopKDefault     int
	RAGTopKDefault  int
	MaxContextChars int
	SemanticWeight  float64
	KeywordWeight   float64

	UploadRoot    string
	IngestWorkers int

	Addr        string
	APIKey      string
	CORSOrigins string
}

// Default returns the documented defaults (spec §6 configuration
// enumeration). It does not consult the environment.
func Default() Config {
	return Config{
		Chat:      LLMConfig{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"},
		Embedding: LLMConfig{Provider: "ollama", Model: "nomic-embed-text", BaseURL: "http://localhost:11434"},

		EmbedDim:         1536,
		ChunkSize:        1000,
		ChunkOverlap:     200,
		MaxUploadBytes:   10 * 1024 * 1024,
		AllowedExtension: map[string]bool{"txt": true, "pdf": true},

		EmbedBatchMax:   100,
		TopKDefault:     5,
		RAGTopKDefault:  8,
		MaxContextChars: 6000,
		SemanticWeight:  0.7,
		KeywordWeight:   0.3,

		UploadRoot:    "./data/uploads",
		IngestWorkers: 4,

		Addr: ":8080",
	}
}

// Load builds a Config starting from Default(), loads a .env file if
// present (ignored if absent), then applies DOCQA_* environment variable
// overrides, and finally falls back to well-known provider env vars for
// API keys not otherwise set.
func Load() (Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := Default()

	if v := os.Getenv("DOCQA_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DOCQA_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("DOCQA_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("DOCQA_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("DOCQA_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("DOCQA_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("DOCQA_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("DOCQA_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("DOCQA_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if err := overrideInt("DOCQA_EMBED_DIM", &cfg.EmbedDim); err != nil {
		return cfg, err
	}
	if err := overrideInt("DOCQA_CHUNK_SIZE", &cfg.ChunkSize); err != nil {
		return cfg, err
	}
	if err := overrideInt("DOCQA_CHUNK_OVERLAP", &cfg.ChunkOverlap); err != nil {
		return cfg, err
	}
	if err := overrideInt64("DOCQA_MAX_UPLOAD_BYTES", &cfg.MaxUploadBytes); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DOCQA_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtension = parseExtensionSet(v)
	}
	if err := overrideInt("DOCQA_EMBED_BATCH_MAX", &cfg.EmbedBatchMax); err != nil {
		return cfg, err
	}
	if err := overrideInt("DOCQA_TOP_K_DEFAULT", &cfg.TopKDefault); err != nil {
		return cfg, err
	}
	if err := overrideInt("DOCQA_RAG_TOP_K_DEFAULT", &cfg.RAGTopKDefault); err != nil {
		return cfg, err
	}
	if err := overrideInt("DOCQA_MAX_CONTEXT_CHARS", &cfg.MaxContextChars); err != nil {
		return cfg, err
	}
	if err := overrideFloat("DOCQA_SEMANTIC_WEIGHT", &cfg.SemanticWeight); err != nil {
		return cfg, err
	}
	if err := overrideFloat("DOCQA_KEYWORD_WEIGHT", &cfg.KeywordWeight); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DOCQA_UPLOAD_ROOT"); v != "" {
		cfg.UploadRoot = v
	}
	if err := overrideInt("DOCQA_INGEST_WORKERS", &cfg.IngestWorkers); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DOCQA_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.APIKey = os.Getenv("DOCQA_API_KEY")
	cfg.CORSOrigins = os.Getenv("DOCQA_CORS_ORIGINS")

	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = wellKnownKey(cfg.Chat.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = wellKnownKey(cfg.Embedding.Provider)
	}

	return cfg, nil
}

// wellKnownKey falls back to provider-specific env vars for API keys, as
// the teacher's cmd/server/main.go does for OpenAI/Groq.
func wellKnownKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "xai":
		return os.Getenv("XAI_API_KEY")
	default:
		return ""
	}
}

func overrideInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overrideInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overrideFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = f
	return nil
}

func parseExtensionSet(v string) map[string]bool {
	out := map[string]bool{}
	for _, ext := range strings.Split(v, ",") {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			out[ext] = true
		}
	}
	return out
}

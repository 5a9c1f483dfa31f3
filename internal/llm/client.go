// Package llm adapts external embedding and chat-completion providers to
// the two capability-typed collaborators the service depends on:
// EmbeddingClient and ChatClient. Both are backed by the same family of
// OpenAI-compatible HTTP transports; which concrete provider backs a given
// client is chosen by Config.Provider.
package llm

import (
	"context"
	"fmt"
)

// Message is one turn in an ordered chat transcript.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatResult is the outcome of a single completion call.
type ChatResult struct {
	Text        string
	TokensUsed  int
	ModelTag    string
}

// ChatClient produces a completion given an ordered message list. It makes
// no decisions about content; it is a dumb adapter over the external
// provider.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*ChatResult, error)
}

// EmbeddingClient produces fixed-dimension vectors for text.
type EmbeddingClient interface {
	// EmbedOne returns the embedding vector for a single string.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedMany returns embedding vectors for texts, in the same order,
	// partitioning the request into batches of at most MaxBatch strings
	// issued as sequential provider calls. A provider error on any batch
	// fails the whole call.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures a provider front-end.
type Config struct {
	Provider string `json:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	// MaxBatch bounds the number of texts per EmbedMany provider call.
	// Zero uses the package default of 100.
	MaxBatch int `json:"max_batch"`
}

// chatRequest and chatResponse are the package-internal wire-adjacent
// shapes passed between a provider and the shared HTTP transport.
type chatRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
}

type chatResponse struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// provider is the low-level interface every concrete backend implements.
// It is intentionally unexported: callers only see ChatClient/EmbeddingClient.
type provider interface {
	chat(ctx context.Context, req chatRequest) (*chatResponse, error)
	embed(ctx context.Context, texts []string) ([][]float32, error)
}

func newProvider(cfg Config) (provider, error) {
	switch cfg.Provider {
	case "ollama":
		return newOllama(cfg), nil
	case "lmstudio":
		return newLMStudio(cfg), nil
	case "openrouter":
		return newOpenRouter(cfg), nil
	case "openai":
		return newOpenAI(cfg), nil
	case "groq":
		return newGroq(cfg), nil
	case "xai":
		return newXAI(cfg), nil
	case "gemini":
		return newGemini(cfg), nil
	case "custom":
		return newOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// NewChatClient returns a ChatClient backed by the provider named in cfg.
func NewChatClient(cfg Config) (ChatClient, error) {
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &chatAdapter{provider: p, model: cfg.Model}, nil
}

// NewEmbeddingClient returns an EmbeddingClient backed by the provider
// named in cfg, batching EmbedMany calls at maxBatch strings (0 uses the
// spec default of 100).
func NewEmbeddingClient(cfg Config) (EmbeddingClient, error) {
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &embeddingAdapter{provider: p, maxBatch: maxBatch}, nil
}

type chatAdapter struct {
	provider provider
	model    string
}

func (a *chatAdapter) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*ChatResult, error) {
	resp, err := a.provider.chat(ctx, chatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &ChatResult{Text: resp.Content, TokensUsed: resp.TotalTokens, ModelTag: resp.Model}, nil
}

type embeddingAdapter struct {
	provider provider
	maxBatch int
}

func (a *embeddingAdapter) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.provider.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("llm: provider returned no embedding")
	}
	return vecs[0], nil
}

func (a *embeddingAdapter) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += a.maxBatch {
		end := start + a.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := a.provider.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("llm: batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

package llm

import "context"

// geminiProvider implements provider for Google's Gemini API via its
// OpenAI-compatible endpoint. Gemini uses a different path prefix than
// standard OpenAI providers (no /v1).
//
// Supported chat models: gemini-2.5-flash, gemini-2.5-pro, gemini-2.0-flash.
// Supported embedding models: gemini-embedding-001 (3072 dim).
//
// API key: set via config or GEMINI_API_KEY env var.
type geminiProvider struct {
	base openAICompatClient
}

func newGemini(cfg Config) provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	return &geminiProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *geminiProvider) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *geminiProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

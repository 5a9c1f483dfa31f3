package llm

import "context"

// lmStudioProvider implements provider for LM Studio, which exposes an
// OpenAI-compatible API.
type lmStudioProvider struct {
	base openAICompatClient
}

func newLMStudio(cfg Config) provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}
	return &lmStudioProvider{base: newOpenAICompatClient(cfg)}
}

func (p *lmStudioProvider) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *lmStudioProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

package llm

import "context"

// xaiProvider implements provider for xAI (Grok). xAI uses the
// OpenAI-compatible API format.
type xaiProvider struct {
	base openAICompatClient
}

func newXAI(cfg Config) provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai"
	}
	return &xaiProvider{base: newOpenAICompatClient(cfg)}
}

func (p *xaiProvider) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *xaiProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

package llm

import "context"

// openRouterProvider implements provider for OpenRouter, which uses the
// OpenAI-compatible API format.
type openRouterProvider struct {
	base openAICompatClient
}

func newOpenRouter(cfg Config) provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *openRouterProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

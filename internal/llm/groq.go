package llm

import "context"

// groqProvider implements provider for Groq's inference API. Groq uses
// the OpenAI-compatible API format and provides fast inference for
// open-source models (Llama, Mixtral, Gemma, etc).
//
// API key: set via config, GROQ_API_KEY env var, or DOCQA_CHAT_API_KEY.
type groqProvider struct {
	base openAICompatClient
}

func newGroq(cfg Config) provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	return &groqProvider{base: newOpenAICompatClient(cfg)}
}

func (p *groqProvider) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *groqProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Prompt  string   `json:"prompt"`
	Context []string `json:"context"`
}

type GenerateResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

type EmbedRequest struct {
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// ContextSeparator joins context blocks inside a generation prompt.
const ContextSeparator = "\n\n---\n\n"

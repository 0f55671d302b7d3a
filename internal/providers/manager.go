package providers

import (
	"fmt"
	"strings"

	"researchgraph/internal/config"
)

// Manager builds the single LLM and embedding capability bound at process
// start. Provider selection is configuration, not code: the first entry of
// each configured list wins, with mock as the zero-config fallback.
type Manager struct {
	llm      LLMProvider
	llmRef   ProviderRef
	embed    EmbeddingProvider
	embedRef ProviderRef
}

func NewManager(cfg config.Config) (*Manager, error) {
	llmRefs := ParseProviderList(cfg.LLMProviders)
	embedRefs := ParseProviderList(cfg.EmbedProviders)

	m := &Manager{llmRef: llmRefs[0], embedRef: embedRefs[0]}

	p, err := buildProvider(llmRefs[0], cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	llm, ok := p.(LLMProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support generation", llmRefs[0].Raw)
	}
	m.llm = llm

	p, err = buildProvider(embedRefs[0], cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	embed, ok := p.(EmbeddingProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support embeddings", embedRefs[0].Raw)
	}
	m.embed = embed
	return m, nil
}

func (m *Manager) LLM() LLMProvider {
	return m.llm
}

func (m *Manager) LLMRef() ProviderRef {
	return m.llmRef
}

func (m *Manager) Embedder() EmbeddingProvider {
	return m.embed
}

func (m *Manager) EmbedRef() ProviderRef {
	return m.embedRef
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"researchgraph/internal/util"
)

// GeminiProvider talks to the Generative Language REST API. Quota exhaustion
// (HTTP 429 / RESOURCE_EXHAUSTED) is wrapped in util.ErrQuotaExhausted so the
// pipeline can surface a retry-after hint instead of a generic failure.
type GeminiProvider struct {
	keyName    string
	apiKey     string
	chatModel  string
	embedModel string
	baseURL    string
	client     *http.Client
}

func NewGeminiProvider(keyName string) *GeminiProvider {
	chatModel := os.Getenv("RESEARCHGRAPH_GEMINI_CHAT_MODEL")
	if strings.TrimSpace(chatModel) == "" {
		chatModel = "gemini-2.0-flash"
	}
	embedModel := os.Getenv("RESEARCHGRAPH_GEMINI_EMBED_MODEL")
	if strings.TrimSpace(embedModel) == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiProvider{
		keyName:    keyName,
		apiKey:     resolveGeminiKey(keyName),
		chatModel:  chatModel,
		embedModel: embedModel,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GeminiProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "gemini", Model: model, Key: g.keyName}
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if g.apiKey == "" {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, ContextSeparator)
	}
	payload, _ := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": 1024,
		},
	})
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.chatModel, g.apiKey)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("gemini generate request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if quotaStatus(resp.StatusCode, body) {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("gemini generate: %w", util.ErrQuotaExhausted)
	}
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("gemini generate error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return GenerateResponse{}, g.info(g.chatModel), fmt.Errorf("gemini returned no candidates")
	}
	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	tokens := parsed.UsageMetadata.PromptTokenCount + parsed.UsageMetadata.CandidatesTokenCount
	return GenerateResponse{Text: text.String(), TokensUsed: tokens}, g.info(g.chatModel), nil
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if g.apiKey == "" {
		return nil, g.info(g.embedModel), fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vec, err := g.embedOne(ctx, input)
		if err != nil {
			return nil, g.info(g.embedModel), err
		}
		if req.Dimension > 0 && len(vec) != req.Dimension {
			return nil, g.info(g.embedModel), fmt.Errorf("gemini embedding dimension %d does not match configured %d", len(vec), req.Dimension)
		}
		out = append(out, vec)
	}
	return out, g.info(g.embedModel), nil
}

func (g *GeminiProvider) embedOne(ctx context.Context, input string) ([]float32, error) {
	payload, _ := json.Marshal(map[string]any{
		"content":  map[string]any{"parts": []map[string]string{{"text": input}}},
		"taskType": "RETRIEVAL_QUERY",
	})
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", g.baseURL, g.embedModel, g.apiKey)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini embed request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if quotaStatus(resp.StatusCode, body) {
		return nil, fmt.Errorf("gemini embed: %w", util.ErrQuotaExhausted)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gemini embed error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode gemini embedding: %w", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding")
	}
	return parsed.Embedding.Values, nil
}

func quotaStatus(code int, body []byte) bool {
	return code == http.StatusTooManyRequests || bytes.Contains(body, []byte("RESOURCE_EXHAUSTED"))
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("RESEARCHGRAPH_GEMINI_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GEMINI_API_KEY")
}

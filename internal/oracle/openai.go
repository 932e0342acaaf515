package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/stellarlinkco/daybook/internal/config"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions
// endpoint.
type OpenAIBackend struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewOpenAIBackend(cfg config.OracleConfig, model string) *OpenAIBackend {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIBackend{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (b *OpenAIBackend) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	return b.complete(ctx, summarizePrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *OpenAIBackend) Compress(ctx context.Context, req CompressRequest) (string, error) {
	return b.complete(ctx, compressPrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *OpenAIBackend) Merge(ctx context.Context, req MergeRequest) (string, error) {
	return b.complete(ctx, mergePrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *OpenAIBackend) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return "", fmt.Errorf("missing oracle api key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(b.baseURL), "/")
	if baseURL == "" {
		return "", fmt.Errorf("missing oracle base url")
	}
	if b.model == "" {
		return "", fmt.Errorf("missing oracle model")
	}

	body := map[string]any{
		"model": b.model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": prompt,
		}},
		"max_tokens":  maxTokens,
		"temperature": 0.3,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oracle http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

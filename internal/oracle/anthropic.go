package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/stellarlinkco/daybook/internal/config"
)

// AnthropicBackend drives the Anthropic Messages API through the
// official SDK.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicBackend(cfg config.OracleConfig, model string) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSec > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSec)*time.Second))
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

func (b *AnthropicBackend) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	return b.complete(ctx, summarizePrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *AnthropicBackend) Compress(ctx context.Context, req CompressRequest) (string, error) {
	return b.complete(ctx, compressPrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *AnthropicBackend) Merge(ctx context.Context, req MergeRequest) (string, error) {
	return b.complete(ctx, mergePrompt(req), maxTokensFor(req.WordBudget, b.maxTokens))
}

func (b *AnthropicBackend) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if b.model == "" {
		return "", fmt.Errorf("missing oracle model")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: param.NewOpt(0.3),
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

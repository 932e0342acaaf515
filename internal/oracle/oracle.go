// Package oracle abstracts the external text-generation service that
// turns raw messages or prior summaries into diary tier content. Every
// backend returns a typed (text, error) result; callers never inspect
// partial output.
package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stellarlinkco/daybook/internal/config"
	"github.com/stellarlinkco/daybook/internal/source"
)

// SummarizeRequest asks for a first-person diary summary of a raw
// message batch. Period carries the time-of-day hint ("morning",
// "midday", "evening") or "history" for archived tiers.
type SummarizeRequest struct {
	Messages   []source.Message
	Identity   string
	ChatType   string
	WordBudget int
	Tier       string
	Period     string
}

// CompressRequest asks for an existing summary to be shrunk to a
// coarser tier's budget.
type CompressRequest struct {
	Content    string
	Identity   string
	WordBudget int
	Tier       string
}

// MergeRequest asks for several partial summaries to be fused into one
// coherent result within the original budget.
type MergeRequest struct {
	Parts      []string
	Identity   string
	ChatType   string
	WordBudget int
}

type Oracle interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
	Compress(ctx context.Context, req CompressRequest) (string, error)
	Merge(ctx context.Context, req MergeRequest) (string, error)
}

// Chain tries each candidate in order and returns the first non-empty
// success. All candidates failing is a single error; no partial or
// garbage result ever escapes.
type Chain struct {
	candidates []Oracle
}

func NewChain(candidates ...Oracle) *Chain {
	return &Chain{candidates: candidates}
}

// NewFromConfig builds one candidate per configured model name, all on
// the configured provider.
func NewFromConfig(cfg *config.Config) (*Chain, error) {
	models := cfg.OracleModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("oracle: no models configured")
	}

	candidates := make([]Oracle, 0, len(models))
	for _, model := range models {
		switch strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider)) {
		case "anthropic":
			candidates = append(candidates, NewAnthropicBackend(cfg.Oracle, model))
		default:
			candidates = append(candidates, NewOpenAIBackend(cfg.Oracle, model))
		}
	}
	return NewChain(candidates...), nil
}

func (c *Chain) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	return c.attempt(ctx, "summarize", func(o Oracle) (string, error) {
		return o.Summarize(ctx, req)
	})
}

func (c *Chain) Compress(ctx context.Context, req CompressRequest) (string, error) {
	return c.attempt(ctx, "compress", func(o Oracle) (string, error) {
		return o.Compress(ctx, req)
	})
}

func (c *Chain) Merge(ctx context.Context, req MergeRequest) (string, error) {
	return c.attempt(ctx, "merge", func(o Oracle) (string, error) {
		return o.Merge(ctx, req)
	})
}

func (c *Chain) attempt(ctx context.Context, op string, call func(Oracle) (string, error)) (string, error) {
	if len(c.candidates) == 0 {
		return "", fmt.Errorf("oracle %s: no candidates", op)
	}

	var lastErr error
	for i, candidate := range c.candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := call(candidate)
		if err != nil {
			lastErr = err
			log.Printf("[oracle] %s candidate %d failed: %v", op, i, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			lastErr = fmt.Errorf("empty result")
			log.Printf("[oracle] %s candidate %d returned empty result", op, i)
			continue
		}
		return strings.TrimSpace(text), nil
	}
	return "", fmt.Errorf("oracle %s: all %d candidates failed: %w", op, len(c.candidates), lastErr)
}

// maxTokensFor sizes the completion window from the word budget, the
// same 2.5x ratio the prompts promise.
func maxTokensFor(wordBudget, fallback int) int {
	if wordBudget > 0 {
		return wordBudget * 5 / 2
	}
	if fallback > 0 {
		return fallback
	}
	return config.DefaultOracleMaxTokens
}

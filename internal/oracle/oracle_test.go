package oracle

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/daybook/internal/source"
)

type fakeOracle struct {
	summarizeFn func(ctx context.Context, req SummarizeRequest) (string, error)
	compressFn  func(ctx context.Context, req CompressRequest) (string, error)
	mergeFn     func(ctx context.Context, req MergeRequest) (string, error)
}

func (f *fakeOracle) Summarize(ctx context.Context, req SummarizeRequest) (string, error) {
	if f.summarizeFn != nil {
		return f.summarizeFn(ctx, req)
	}
	return "", fmt.Errorf("not implemented")
}

func (f *fakeOracle) Compress(ctx context.Context, req CompressRequest) (string, error) {
	if f.compressFn != nil {
		return f.compressFn(ctx, req)
	}
	return "", fmt.Errorf("not implemented")
}

func (f *fakeOracle) Merge(ctx context.Context, req MergeRequest) (string, error) {
	if f.mergeFn != nil {
		return f.mergeFn(ctx, req)
	}
	return "", fmt.Errorf("not implemented")
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeOracle{summarizeFn: func(ctx context.Context, req SummarizeRequest) (string, error) {
		return "first answer", nil
	}}
	second := &fakeOracle{summarizeFn: func(ctx context.Context, req SummarizeRequest) (string, error) {
		t.Fatal("second candidate should not be called")
		return "", nil
	}}

	chain := NewChain(first, second)
	got, err := chain.Summarize(context.Background(), SummarizeRequest{WordBudget: 100})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "first answer" {
		t.Fatalf("got %q", got)
	}
}

func TestChainFailsOver(t *testing.T) {
	first := &fakeOracle{summarizeFn: func(ctx context.Context, req SummarizeRequest) (string, error) {
		return "", fmt.Errorf("model overloaded")
	}}
	empty := &fakeOracle{summarizeFn: func(ctx context.Context, req SummarizeRequest) (string, error) {
		return "   ", nil
	}}
	third := &fakeOracle{summarizeFn: func(ctx context.Context, req SummarizeRequest) (string, error) {
		return "third answer", nil
	}}

	chain := NewChain(first, empty, third)
	got, err := chain.Summarize(context.Background(), SummarizeRequest{WordBudget: 100})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "third answer" {
		t.Fatalf("got %q", got)
	}
}

func TestChainAllFail(t *testing.T) {
	failing := &fakeOracle{compressFn: func(ctx context.Context, req CompressRequest) (string, error) {
		return "", fmt.Errorf("boom")
	}}
	chain := NewChain(failing, failing)
	if _, err := chain.Compress(context.Background(), CompressRequest{WordBudget: 50}); err == nil {
		t.Fatal("expected error when all candidates fail")
	}
}

func TestChainHonorsCanceledContext(t *testing.T) {
	called := false
	candidate := &fakeOracle{mergeFn: func(ctx context.Context, req MergeRequest) (string, error) {
		called = true
		return "x", nil
	}}
	chain := NewChain(candidate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := chain.Merge(ctx, MergeRequest{}); err == nil {
		t.Fatal("expected context error")
	}
	if called {
		t.Fatal("candidate called after cancellation")
	}
}

func TestSummarizePromptContent(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 30, 0, 0, time.Local)
	prompt := summarizePrompt(SummarizeRequest{
		Messages: []source.Message{
			{Time: ts, Sender: "alice", Content: "hello there"},
		},
		Identity:   "Core personality: curious",
		ChatType:   "group",
		WordBudget: 120,
		Period:     "morning",
	})

	for _, want := range []string{
		"[09:30] alice: hello there",
		"Core personality: curious",
		"group chat",
		"120 words",
		"morning",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestMergePromptOrdersParts(t *testing.T) {
	prompt := mergePrompt(MergeRequest{
		Parts:      []string{"early stuff", "late stuff"},
		WordBudget: 200,
	})
	i := strings.Index(prompt, "early stuff")
	j := strings.Index(prompt, "late stuff")
	if i < 0 || j < 0 || i > j {
		t.Fatalf("parts out of order:\n%s", prompt)
	}
}

func TestMaxTokensFor(t *testing.T) {
	if got := maxTokensFor(2000, 4096); got != 5000 {
		t.Fatalf("maxTokensFor(2000) = %d", got)
	}
	if got := maxTokensFor(0, 4096); got != 4096 {
		t.Fatalf("fallback = %d", got)
	}
	if got := maxTokensFor(0, 0); got <= 0 {
		t.Fatalf("default = %d", got)
	}
}

package diary

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/daybook/internal/oracle"
	"github.com/stellarlinkco/daybook/internal/source"
)

// estimateTokens approximates the token count of a message batch from
// the flattened "sender: content" transcript.
func estimateTokens(msgs []source.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Sender) + len(": ") + len(m.Content) + len("\n")
	}
	return int(float64(total) / 1.5)
}

// segmentMessages splits msgs into n chronological chunks whose sizes
// differ by at most one message, the remainder going to the earliest
// chunks.
func segmentMessages(msgs []source.Message, n int) [][]source.Message {
	if n <= 1 || len(msgs) <= 1 {
		return [][]source.Message{msgs}
	}
	if n > len(msgs) {
		n = len(msgs)
	}

	base := len(msgs) / n
	rem := len(msgs) % n

	chunks := make([][]source.Message, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks = append(chunks, msgs[start:start+size])
		start += size
	}
	return chunks
}

// summarizeBatch produces one tier's content from a raw message batch,
// splitting and re-merging when the input exceeds the oracle's context
// window. Per-segment calls run concurrently; the merge preserves
// chronological order.
func summarizeBatch(ctx context.Context, o oracle.Oracle, msgs []source.Message, identity, chatType, tier, period string, wordBudget, contextLimit int) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages to summarize")
	}

	req := oracle.SummarizeRequest{
		Messages:   msgs,
		Identity:   identity,
		ChatType:   chatType,
		WordBudget: wordBudget,
		Tier:       tier,
		Period:     period,
	}

	tokens := estimateTokens(msgs)
	if tokens <= contextLimit {
		return o.Summarize(ctx, req)
	}

	segments := (tokens + contextLimit - 1) / contextLimit
	chunks := segmentMessages(msgs, segments)

	parts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			segReq := req
			segReq.Messages = chunk
			text, err := o.Summarize(gctx, segReq)
			if err != nil {
				return fmt.Errorf("segment %d/%d: %w", i+1, len(chunks), err)
			}
			parts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	merged, err := o.Merge(ctx, oracle.MergeRequest{
		Parts:      parts,
		Identity:   identity,
		ChatType:   chatType,
		WordBudget: wordBudget,
	})
	if err != nil {
		return "", fmt.Errorf("merge %d segments: %w", len(chunks), err)
	}
	if strings.TrimSpace(merged) == "" {
		return "", fmt.Errorf("merge produced empty result")
	}
	return merged, nil
}

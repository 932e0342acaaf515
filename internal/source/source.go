package source

import (
	"context"
	"fmt"
	"time"
)

const (
	fetchBatchSize = 1000
	// FetchHardCap bounds how many messages a single window fetch may
	// accumulate regardless of how much history exists.
	FetchHardCap = 5000
)

// Message is one raw chat message as seen by the diary core.
type Message struct {
	Time    time.Time
	Sender  string
	Content string
}

// Fetcher serves ranged reads over a conversation's raw history.
// Implementations return at most limit messages from [start, end),
// earliest first when earliestFirst is set.
type Fetcher interface {
	FetchRange(ctx context.Context, conversation string, start, end time.Time, limit int, earliestFirst bool) ([]Message, error)
}

// Pruner is the optional maintenance side of a message source: sources
// that retain history implement it so the retention sweep can drop
// messages older than the cutoff.
type Pruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// FetchWindow pages through f until the window is exhausted, a short
// page signals the end, or the hard cap is reached.
func FetchWindow(ctx context.Context, f Fetcher, conversation string, start, end time.Time) ([]Message, error) {
	messages := make([]Message, 0, fetchBatchSize)
	current := start

	for current.Before(end) && len(messages) < FetchHardCap {
		batch, err := f.FetchRange(ctx, conversation, current, end, fetchBatchSize, true)
		if err != nil {
			return nil, fmt.Errorf("fetch window: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		messages = append(messages, batch...)
		if len(batch) < fetchBatchSize {
			break
		}
		current = batch[len(batch)-1].Time.Add(time.Millisecond)
	}

	if len(messages) > FetchHardCap {
		messages = messages[:FetchHardCap]
	}
	return messages, nil
}

// CountWindow counts messages in [start, end) up to one batch. It backs
// the pending-message probe used by the trigger evaluator.
func CountWindow(ctx context.Context, f Fetcher, conversation string, start, end time.Time) (int, error) {
	batch, err := f.FetchRange(ctx, conversation, start, end, fetchBatchSize, true)
	if err != nil {
		return 0, fmt.Errorf("count window: %w", err)
	}
	return len(batch), nil
}

// Package channel adapts external chat platforms onto the message bus.
package channel

import (
	"context"

	"github.com/stellarlinkco/daybook/internal/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries the pieces every adapter shares: a name, the bus
// and an optional sender allowlist.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]bool
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	var allowed map[string]bool
	if len(allowFrom) > 0 {
		allowed = make(map[string]bool, len(allowFrom))
		for _, id := range allowFrom {
			allowed[id] = true
		}
	}
	return BaseChannel{name: name, bus: b, allowFrom: allowed}
}

func (c *BaseChannel) Name() string {
	return c.name
}

// IsAllowed reports whether a sender passes the allowlist. An empty
// allowlist admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if c.allowFrom == nil {
		return true
	}
	return c.allowFrom[senderID]
}

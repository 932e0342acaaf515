package bus

import (
	"time"
)

// InboundMessage is one observed chat message flowing from a channel
// adapter toward the diary core.
type InboundMessage struct {
	Conversation string
	ChatType     string // "group" or "private"
	DisplayName  string
	SenderID     string
	SenderName   string
	Content      string
	Timestamp    time.Time
}

// ConversationKey identifies the chat stream the message belongs to.
func (m *InboundMessage) ConversationKey() string {
	return m.Conversation
}

// OutboundMessage is a reply sent back through a channel adapter, used
// for the administrative chat commands.
type OutboundMessage struct {
	Conversation string
	Content      string
}

type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
	}
}

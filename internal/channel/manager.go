package channel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/stellarlinkco/daybook/internal/bus"
	"github.com/stellarlinkco/daybook/internal/config"
)

// ChannelManager owns the enabled adapters and fans bus outbound
// traffic back to the right one.
type ChannelManager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	cancel   context.CancelFunc
}

func NewChannelManager(cfg config.ChannelsConfig, b *bus.MessageBus) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	return m, nil
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}

	go m.dispatchOutbound(ctx)
	return nil
}

// dispatchOutbound delivers replies. With a single enabled adapter the
// routing is trivial; every channel receives the message addressed to
// a conversation it knows.
func (m *ChannelManager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.bus.Outbound:
			for name, ch := range m.channels {
				if err := ch.Send(msg); err != nil {
					log.Printf("[channel-mgr] send via %s failed: %v", name, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *ChannelManager) StopAll() error {
	if m.cancel != nil {
		m.cancel()
	}
	for name, ch := range m.channels {
		log.Printf("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

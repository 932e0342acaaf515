// Package gateway wires the channel adapters, the message log, the
// scheduler and the diary core into one running service.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/stellarlinkco/daybook/internal/bus"
	"github.com/stellarlinkco/daybook/internal/channel"
	"github.com/stellarlinkco/daybook/internal/config"
	"github.com/stellarlinkco/daybook/internal/diary"
	"github.com/stellarlinkco/daybook/internal/identity"
	"github.com/stellarlinkco/daybook/internal/oracle"
	"github.com/stellarlinkco/daybook/internal/schedule"
	"github.com/stellarlinkco/daybook/internal/source"
)

// Options for creating a Gateway.
type Options struct {
	Oracle     oracle.Oracle  // overrides the configured chain, for tests
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	msgLog     *source.Log
	manager    *diary.Manager
	schedule   *schedule.Service
	channels   *channel.ChannelManager
	signalChan chan os.Signal
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewMessageBus(config.DefaultBusBufSize)

	msgLog, err := source.NewLog(filepath.Join(cfg.DataDir, "messages.db"))
	if err != nil {
		return nil, fmt.Errorf("open message log: %w", err)
	}
	g.msgLog = msgLog

	o := opts.Oracle
	if o == nil {
		chain, err := oracle.NewFromConfig(cfg)
		if err != nil {
			_ = g.msgLog.Close()
			return nil, fmt.Errorf("configure oracle: %w", err)
		}
		o = chain
	}

	personaPath := cfg.Persona.Path
	if personaPath == "" {
		personaPath = filepath.Join(config.ConfigDir(), "persona.yaml")
	}

	store := diary.NewStore(filepath.Join(cfg.DataDir, "diaries"))
	g.manager = diary.NewManager(cfg, store, g.msgLog, o, identity.NewFileProvider(personaPath))

	g.schedule = schedule.NewService(cfg.Diary.ConsolidateAt, g.manager.Consolidate)

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		_ = g.msgLog.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	g.signalChan = opts.SignalChan
	return g, nil
}

// Manager exposes the diary core for the command surface.
func (g *Gateway) Manager() *diary.Manager {
	return g.manager
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.manager.StartupCheck(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.schedule.Start(ctx); err != nil {
		log.Printf("[gateway] schedule start warning: %v", err)
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running")

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	info := conversationInfo(msg)

	if cmd, ok := strings.CutPrefix(strings.TrimSpace(msg.Content), "/diary"); ok {
		g.handleCommand(ctx, info, strings.TrimSpace(cmd))
		return
	}

	if err := g.msgLog.Record(msg.ConversationKey(), source.Message{
		Time:    msg.Timestamp,
		Sender:  msg.SenderName,
		Content: msg.Content,
	}); err != nil {
		log.Printf("[gateway] record message: %v", err)
		return
	}

	// The trigger runs detached so a slow or failing generation never
	// backs up the inbound loop.
	g.manager.TriggerDetached(info)
}

func (g *Gateway) handleCommand(ctx context.Context, info diary.ConversationInfo, cmd string) {
	var reply string
	switch cmd {
	case "", "context":
		reply = g.manager.CombinedContext(ctx, info)
		if reply == "" {
			reply = "nothing to show yet"
		}
	case "status":
		reply = g.manager.Status(info)
	case "pending":
		reply = fmt.Sprintf("%d messages pending", g.manager.PendingCount(ctx, info))
	case "trigger":
		if g.manager.Trigger(ctx, info) {
			reply = "diary updated"
		} else {
			reply = "nothing to summarize"
		}
	case "refresh":
		reply = fmt.Sprintf("refreshed %d/3 tiers", g.manager.RefreshAll(ctx, info))
	case "clear":
		if err := g.manager.Clear(info); err != nil {
			log.Printf("[gateway] clear %s: %v", info.Key, err)
			reply = "clear failed"
		} else {
			reply = "diary cleared"
		}
	default:
		reply = "commands: /diary, /diary status, /diary pending, /diary trigger, /diary refresh, /diary clear"
	}

	g.bus.Outbound <- bus.OutboundMessage{
		Conversation: info.Key,
		Content:      reply,
	}
}

func conversationInfo(msg bus.InboundMessage) diary.ConversationInfo {
	return diary.ConversationInfo{
		Key:         msg.ConversationKey(),
		ChatType:    msg.ChatType,
		StableID:    msg.Conversation,
		DisplayName: msg.DisplayName,
	}
}

func (g *Gateway) Shutdown() error {
	g.schedule.Stop()
	_ = g.channels.StopAll()
	if g.msgLog != nil {
		if err := g.msgLog.Close(); err != nil {
			log.Printf("[gateway] close message log warning: %v", err)
		}
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

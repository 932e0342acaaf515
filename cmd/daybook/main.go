package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/daybook/internal/config"
	"github.com/stellarlinkco/daybook/internal/diary"
	"github.com/stellarlinkco/daybook/internal/gateway"
	"github.com/stellarlinkco/daybook/internal/identity"
	"github.com/stellarlinkco/daybook/internal/oracle"
	"github.com/stellarlinkco/daybook/internal/source"
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "daybook - rolling three-tier conversation diaries",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the full service (channels + scheduler)",
	RunE:  runServe,
}

var contextCmd = &cobra.Command{
	Use:   "context <conversation>",
	Short: "Print the combined diary context for a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

var pendingCmd = &cobra.Command{
	Use:   "pending <conversation>",
	Short: "Show how many messages await summarization",
	Args:  cobra.ExactArgs(1),
	RunE:  runPending,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <conversation>",
	Short: "Regenerate the today tier now",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrigger,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <conversation>",
	Short: "Force-regenerate all three tiers",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefresh,
}

var statusCmd = &cobra.Command{
	Use:   "status [conversation]",
	Short: "Show service status, or one conversation's tiers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run the daily rollover sweep once",
	RunE:  runConsolidate,
}

var clearExpiredFlag bool

var clearCmd = &cobra.Command{
	Use:   "clear [conversation]",
	Short: "Delete a conversation's diaries, or expired documents with --expired",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

func init() {
	clearCmd.Flags().BoolVar(&clearExpiredFlag, "expired", false, "remove documents past the retention window instead")
	rootCmd.AddCommand(serveCmd, contextCmd, pendingCmd, triggerCmd, refreshCmd, statusCmd, consolidateCmd, clearCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Oracle.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'daybook onboard' or set DAYBOOK_API_KEY / ANTHROPIC_API_KEY")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

// deps builds the offline command surface against the same store and
// message log the service uses.
type deps struct {
	cfg     *config.Config
	store   *diary.Store
	manager *diary.Manager
	msgLog  *source.Log
}

func newDeps() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	msgLog, err := source.NewLog(filepath.Join(cfg.DataDir, "messages.db"))
	if err != nil {
		return nil, fmt.Errorf("open message log: %w", err)
	}

	var o oracle.Oracle
	if chain, err := oracle.NewFromConfig(cfg); err == nil {
		o = chain
	} else {
		// Read-only commands still work; anything needing generation
		// will report failure.
		log.Printf("[daybook] oracle unavailable: %v", err)
		o = oracle.NewChain()
	}

	personaPath := cfg.Persona.Path
	if personaPath == "" {
		personaPath = filepath.Join(config.ConfigDir(), "persona.yaml")
	}

	store := diary.NewStore(filepath.Join(cfg.DataDir, "diaries"))
	manager := diary.NewManager(cfg, store, msgLog, o, identity.NewFileProvider(personaPath))
	return &deps{cfg: cfg, store: store, manager: manager, msgLog: msgLog}, nil
}

func (d *deps) close() {
	_ = d.msgLog.Close()
}

// findConversation matches a CLI argument against the persisted
// conversations, by key or stable ID.
func (d *deps) findConversation(arg string) (diary.ConversationInfo, error) {
	infos, err := d.store.Conversations()
	if err != nil {
		return diary.ConversationInfo{}, fmt.Errorf("scan store: %w", err)
	}
	for _, info := range infos {
		if info.Key == arg || info.StableID == arg {
			return info, nil
		}
	}
	return diary.ConversationInfo{}, fmt.Errorf("conversation %q not found", arg)
}

func runContext(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	info, err := d.findConversation(args[0])
	if err != nil {
		return err
	}
	text := d.manager.CombinedContext(context.Background(), info)
	if text == "" {
		fmt.Println("nothing to show yet")
		return nil
	}
	fmt.Println(text)
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	info, err := d.findConversation(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d messages pending\n", d.manager.PendingCount(context.Background(), info))
	return nil
}

func runTrigger(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	info, err := d.findConversation(args[0])
	if err != nil {
		return err
	}
	if !d.manager.Trigger(context.Background(), info) {
		fmt.Println("nothing to summarize")
		return nil
	}
	fmt.Println("diary updated")
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	info, err := d.findConversation(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("refreshed %d/3 tiers\n", d.manager.RefreshAll(context.Background(), info))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	if len(args) == 1 {
		info, err := d.findConversation(args[0])
		if err != nil {
			return err
		}
		fmt.Println(d.manager.Status(info))
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Data: %s\n", d.cfg.DataDir)
	fmt.Printf("Provider: %s\n", providerDisplay(d.cfg.Oracle.Provider))
	fmt.Printf("Models: %s\n", d.cfg.Oracle.Models)
	if key := d.cfg.Oracle.APIKey; key != "" && len(key) > 8 {
		fmt.Printf("API Key: %s...%s\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: enabled=%v\n", d.cfg.Channels.Telegram.Enabled)
	fmt.Printf("Consolidation: daily at %s\n", d.cfg.Diary.ConsolidateAt)

	infos, err := d.store.Conversations()
	if err != nil {
		return err
	}
	fmt.Printf("Conversations: %d\n", len(infos))
	for _, info := range infos {
		fmt.Printf("  %s (%s) %s\n", info.Key, info.ChatType, info.DisplayName)
	}
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	d.manager.Consolidate(context.Background())
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.close()

	if clearExpiredFlag {
		removed, err := d.manager.PruneExpired(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired documents\n", removed)
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("specify a conversation, or --expired")
	}
	info, err := d.findConversation(args[0])
	if err != nil {
		return err
	}
	if err := d.manager.Clear(info); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", info.Key)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	personaPath := cfg.Persona.Path
	if personaPath == "" {
		personaPath = filepath.Join(cfgDir, "persona.yaml")
	}
	writeIfNotExists(personaPath, defaultPersonaYAML)

	fmt.Printf("Data directory ready: %s\n", cfg.DataDir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and models\n", cfgPath)
	fmt.Printf("  2. Edit %s to describe the diary's voice\n", personaPath)
	fmt.Println("  3. Run 'daybook serve' to start observing")
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "openai-compatible (default)"
	}
	return t
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const defaultPersonaYAML = `# Persona injected into every diary summary.
name: daybook
core: observant and warm, keeps an honest record of the day
side: occasionally wry about repetitive meetings
identity: the group's quiet diarist
style: plain first-person prose, concrete details over adjectives
`

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultOracleMaxTokens       = 4096
	DefaultOracleTimeout         = 120
	DefaultContextLimitK         = 100
	DefaultRetentionDays         = 3
	DefaultConsolidateAt         = "00:10"
	DefaultTriggerMode           = "any"
	DefaultGroupThreshold        = 50
	DefaultGroupIntervalHours    = 6
	DefaultPrivateThreshold      = 30
	DefaultPrivateIntervalHours  = 12
	DefaultGroupTodayWords       = 2000
	DefaultGroupYesterdayWords   = 1000
	DefaultGroupOlderWords       = 500
	DefaultPrivateTodayWords     = 1500
	DefaultPrivateYesterdayWords = 800
	DefaultPrivateOlderWords     = 400
	DefaultBusBufSize            = 100
)

type Config struct {
	DataDir  string         `json:"dataDir"`
	Diary    DiaryConfig    `json:"diary"`
	Oracle   OracleConfig   `json:"oracle"`
	Persona  PersonaConfig  `json:"persona"`
	Channels ChannelsConfig `json:"channels"`
}

type DiaryConfig struct {
	Enabled          bool         `json:"enabled"`
	EnabledChatTypes []string     `json:"enabledChatTypes"`
	Group            PolicyConfig `json:"group"`
	Private          PolicyConfig `json:"private"`
	GroupBudget      BudgetConfig `json:"groupBudget"`
	PrivateBudget    BudgetConfig `json:"privateBudget"`
	ContextLimitK    int          `json:"contextLimitK"`
	RetentionDays    int          `json:"retentionDays"`
	ConsolidateAt    string       `json:"consolidateAt"`
}

// PolicyConfig is the per-chat-type trigger policy.
// Mode is one of "time", "message", "both", "any".
type PolicyConfig struct {
	Mode              string `json:"mode"`
	MessageThreshold  int    `json:"messageThreshold"`
	TimeIntervalHours int    `json:"timeIntervalHours"`
}

// BudgetConfig is the per-chat-type word budget for each tier.
type BudgetConfig struct {
	Today     int `json:"today"`
	Yesterday int `json:"yesterday"`
	Older     int `json:"older"`
}

// OracleConfig configures the summarization backends. Models is a
// comma-separated candidate list tried in order.
type OracleConfig struct {
	Provider   string `json:"provider,omitempty"` // "openai" (default) or "anthropic"
	APIKey     string `json:"apiKey"`
	BaseURL    string `json:"baseUrl,omitempty"`
	Models     string `json:"models"`
	MaxTokens  int    `json:"maxTokens,omitempty"`
	TimeoutSec int    `json:"timeoutSec,omitempty"`
}

type PersonaConfig struct {
	Path string `json:"path,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: filepath.Join(ConfigDir(), "data"),
		Diary: DiaryConfig{
			Enabled:          true,
			EnabledChatTypes: []string{"group", "private"},
			Group: PolicyConfig{
				Mode:              DefaultTriggerMode,
				MessageThreshold:  DefaultGroupThreshold,
				TimeIntervalHours: DefaultGroupIntervalHours,
			},
			Private: PolicyConfig{
				Mode:              DefaultTriggerMode,
				MessageThreshold:  DefaultPrivateThreshold,
				TimeIntervalHours: DefaultPrivateIntervalHours,
			},
			GroupBudget: BudgetConfig{
				Today:     DefaultGroupTodayWords,
				Yesterday: DefaultGroupYesterdayWords,
				Older:     DefaultGroupOlderWords,
			},
			PrivateBudget: BudgetConfig{
				Today:     DefaultPrivateTodayWords,
				Yesterday: DefaultPrivateYesterdayWords,
				Older:     DefaultPrivateOlderWords,
			},
			ContextLimitK: DefaultContextLimitK,
			RetentionDays: DefaultRetentionDays,
			ConsolidateAt: DefaultConsolidateAt,
		},
		Oracle: OracleConfig{
			MaxTokens:  DefaultOracleMaxTokens,
			TimeoutSec: DefaultOracleTimeout,
		},
		Channels: ChannelsConfig{},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".daybook")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("DAYBOOK_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = key
		if cfg.Oracle.Provider == "" {
			cfg.Oracle.Provider = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = key
	}
	if url := os.Getenv("DAYBOOK_BASE_URL"); url != "" {
		cfg.Oracle.BaseURL = url
	}
	if models := os.Getenv("DAYBOOK_ORACLE_MODELS"); models != "" {
		cfg.Oracle.Models = models
	}
	if dataDir := os.Getenv("DAYBOOK_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if token := os.Getenv("DAYBOOK_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if at := os.Getenv("DAYBOOK_CONSOLIDATE_AT"); at != "" {
		cfg.Diary.ConsolidateAt = at
	}
	if enabled := os.Getenv("DAYBOOK_DIARY_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Diary.Enabled = parsed
		}
	}
	if persona := os.Getenv("DAYBOOK_PERSONA_PATH"); persona != "" {
		cfg.Persona.Path = persona
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultConfig().DataDir
	}
	if cfg.Diary.ContextLimitK <= 0 {
		cfg.Diary.ContextLimitK = DefaultContextLimitK
	}
	if cfg.Diary.RetentionDays <= 0 {
		cfg.Diary.RetentionDays = DefaultRetentionDays
	}
	if cfg.Diary.ConsolidateAt == "" {
		cfg.Diary.ConsolidateAt = DefaultConsolidateAt
	}
	if len(cfg.Diary.EnabledChatTypes) == 0 {
		cfg.Diary.EnabledChatTypes = []string{"group", "private"}
	}
	if cfg.Oracle.MaxTokens <= 0 {
		cfg.Oracle.MaxTokens = DefaultOracleMaxTokens
	}
	if cfg.Oracle.TimeoutSec <= 0 {
		cfg.Oracle.TimeoutSec = DefaultOracleTimeout
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

// OracleModels splits the configured comma-separated candidate list.
func (c *Config) OracleModels() []string {
	parts := strings.Split(c.Oracle.Models, ",")
	models := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			models = append(models, p)
		}
	}
	return models
}

// ChatTypeEnabled reports whether diary generation applies to chatType.
func (c *Config) ChatTypeEnabled(chatType string) bool {
	for _, t := range c.Diary.EnabledChatTypes {
		if strings.EqualFold(strings.TrimSpace(t), chatType) {
			return true
		}
	}
	return false
}

package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from built-in
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	// Logging
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`

	// Servers
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	CORSOrigins string `yaml:"cors_origins"`

	// Infrastructure
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"` // empty disables Redis
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Market data
	MarketBaseURL     string        `yaml:"market_base_url"`
	MarketTimeout     time.Duration `yaml:"market_timeout"`
	MarketMinInterval time.Duration `yaml:"market_min_interval"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheSize         int           `yaml:"cache_size"`
	DefaultPeriod     string        `yaml:"default_period"`

	// LLM
	AnthropicAPIKey    string        `yaml:"anthropic_api_key"`
	AnthropicBaseURL   string        `yaml:"anthropic_base_url"`
	AnthropicModel     string        `yaml:"anthropic_model"`
	AnthropicMaxTokens int           `yaml:"anthropic_max_tokens"`
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
	LLMMaxRetries      int           `yaml:"llm_max_retries"`
	ConversationLimit  int           `yaml:"conversation_limit"`

	// Journal
	VaultPath  string `yaml:"vault_path"` // empty disables the journal
	JournalDir string `yaml:"journal_dir"`

	// Watchlist scanner and alerts
	ScanEnabled      bool    `yaml:"scan_enabled"`
	ScanCron         string  `yaml:"scan_cron"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	RSIOversold      float64 `yaml:"rsi_oversold"`
	AlertWebhookURL  string  `yaml:"alert_webhook_url"`
	TelegramBotToken string  `yaml:"telegram_bot_token"`
	TelegramChatID   string  `yaml:"telegram_chat_id"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LogLevel:      "info",
		LogMaxSizeMB:  50,
		LogMaxBackups: 5,

		HTTPAddr:    ":8000",
		MetricsAddr: ":9090",
		CORSOrigins: "*",

		SQLitePath: "data/dashboard.db",

		MarketBaseURL:     "https://query1.finance.yahoo.com",
		MarketTimeout:     15 * time.Second,
		MarketMinInterval: time.Second,
		CacheTTL:          4 * time.Hour,
		CacheSize:         256,
		DefaultPeriod:     "6mo",

		AnthropicBaseURL:   "https://api.anthropic.com",
		AnthropicModel:     "claude-sonnet-4-5-20250929",
		AnthropicMaxTokens: 2048,
		LLMTimeout:         2 * time.Minute,
		LLMMaxRetries:      2,
		ConversationLimit:  500,

		JournalDir: "Fleeting Notes/trades",

		ScanEnabled:   true,
		ScanCron:      "0 */30 9-15 * * 1-5",
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_PATH is consulted; a missing file is not an error when neither
// names one.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", c.LogMaxSizeMB)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", c.LogMaxBackups)

	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.CORSOrigins = getEnv("CORS_ORIGINS", c.CORSOrigins)

	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.MarketBaseURL = getEnv("MARKET_BASE_URL", c.MarketBaseURL)
	c.MarketTimeout = getEnvDuration("MARKET_TIMEOUT", c.MarketTimeout)
	c.MarketMinInterval = getEnvDuration("MARKET_MIN_INTERVAL", c.MarketMinInterval)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheSize = getEnvInt("CACHE_SIZE", c.CacheSize)
	c.DefaultPeriod = getEnv("DEFAULT_PERIOD", c.DefaultPeriod)

	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicBaseURL = getEnv("ANTHROPIC_BASE_URL", c.AnthropicBaseURL)
	c.AnthropicModel = getEnv("ANTHROPIC_MODEL", c.AnthropicModel)
	c.AnthropicMaxTokens = getEnvInt("ANTHROPIC_MAX_TOKENS", c.AnthropicMaxTokens)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.LLMMaxRetries = getEnvInt("LLM_MAX_RETRIES", c.LLMMaxRetries)
	c.ConversationLimit = getEnvInt("CONVERSATION_LIMIT", c.ConversationLimit)

	c.VaultPath = getEnv("OBSIDIAN_VAULT_PATH", c.VaultPath)
	c.JournalDir = getEnv("JOURNAL_DIR", c.JournalDir)

	c.ScanEnabled = getEnvBool("SCAN_ENABLED", c.ScanEnabled)
	c.ScanCron = getEnv("SCAN_CRON", c.ScanCron)
	c.RSIOverbought = getEnvFloat("RSI_OVERBOUGHT", c.RSIOverbought)
	c.RSIOversold = getEnvFloat("RSI_OVERSOLD", c.RSIOversold)
	c.AlertWebhookURL = getEnv("ALERT_WEBHOOK_URL", c.AlertWebhookURL)
	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.TelegramChatID)
}

// Validate checks for values the services cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTPAddr == "" {
		problems = append(problems, "http_addr is empty")
	}
	if c.SQLitePath == "" {
		problems = append(problems, "sqlite_path is empty")
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, "cache_ttl must be positive")
	}
	if c.CacheSize <= 0 {
		problems = append(problems, "cache_size must be positive")
	}
	if c.MarketMinInterval < 0 {
		problems = append(problems, "market_min_interval must not be negative")
	}
	if c.AnthropicMaxTokens <= 0 {
		problems = append(problems, "anthropic_max_tokens must be positive")
	}
	if c.LLMMaxRetries < 0 {
		problems = append(problems, "llm_max_retries must not be negative")
	}
	if c.RSIOversold < 0 || c.RSIOverbought > 100 || c.RSIOversold >= c.RSIOverbought {
		problems = append(problems, fmt.Sprintf("rsi thresholds invalid: oversold=%v overbought=%v", c.RSIOversold, c.RSIOverbought))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Watch reloads the file at path whenever it changes and passes the new
// configuration to fn. Invalid edits are logged and skipped. Blocks until
// ctx is cancelled.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Printf("[config] reload skipped: %v", err)
				continue
			}
			log.Printf("[config] reloaded %s", path)
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[config] watch error: %v", err)
		}
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return b
}

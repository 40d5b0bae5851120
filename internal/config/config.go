// Package config loads and validates the orchestrator's YAML
// configuration, with environment-variable overrides for values that
// vary between deployments (secrets, model names, tuning knobs) and
// hot-reload via fsnotify so operators can adjust tuning without a
// restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the internal admin/health HTTP surface.
type ServerConfig struct {
	AdminPort   string `yaml:"admin_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// DatabaseConfig configures the Postgres connection used by
// content cache, activity log, and deliverable stores.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig configures the Redis connection used for sync registry
// state and advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig configures the active model provider and per-purpose model
// selection (reasoning, generation, extraction may route to different
// models or providers).
type LLMConfig struct {
	Provider         string        `yaml:"provider"`
	ReasoningModel   string        `yaml:"reasoning_model"`
	GenerationModel  string        `yaml:"generation_model"`
	ExtractionModel  string        `yaml:"extraction_model"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float32       `yaml:"temperature"`
}

// SchedulerConfig tunes the tick-based dispatcher.
type SchedulerConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	WorkerPoolSize  int           `yaml:"worker_pool_size"`
}

// SignalConfig tunes signal orchestration.
type SignalConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// DeliverableConfig tunes deliverable generation.
type DeliverableConfig struct {
	MaxToolRounds             int `yaml:"max_tool_rounds"`
	StalenessThresholdMinutes int `yaml:"staleness_threshold_minutes"`
}

// PlatformConfig configures per-tier sync cadence.
type PlatformConfig struct {
	TierCadence map[string]time.Duration `yaml:"tier_cadence"`
}

// EncryptionConfig holds the key used to encrypt platform OAuth tokens
// at rest.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IntegrationsConfig holds server-side credentials for outbound
// delivery integrations that aren't per-user OAuth connections: the
// Gmail exporter's app-level client credentials (paired with each
// user's stored refresh token) and the Resend API key used by the
// no-OAuth email fallback channel.
type IntegrationsConfig struct {
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	ResendAPIKey       string `yaml:"resend_api_key"`
	ResendFromAddress  string `yaml:"resend_from_address"`
}

// Config is the fully-resolved orchestrator configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	LLM         LLMConfig         `yaml:"llm"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Signal      SignalConfig      `yaml:"signal"`
	Deliverable DeliverableConfig `yaml:"deliverable"`
	Platform    PlatformConfig    `yaml:"platform"`
	Encryption   EncryptionConfig   `yaml:"encryption"`
	Logging      LoggingConfig      `yaml:"logging"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

var validLLMProviders = map[string]bool{
	"anthropic": true,
	"bedrock":   true,
	"local":     true,
}

// Load reads and parses the YAML config at path, applies defaults for
// unset values, applies environment-variable overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("failed to validate config file: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			AdminPort:   "8090",
			MetricsPort: "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Timeout:     30 * time.Second,
			MaxTokens:   4096,
			Temperature: 0.3,
		},
		Scheduler: SchedulerConfig{
			TickInterval:   5 * time.Minute,
			WorkerPoolSize: 5,
		},
		Signal: SignalConfig{
			ConfidenceThreshold: 0.6,
		},
		Deliverable: DeliverableConfig{
			MaxToolRounds:             3,
			StalenessThresholdMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Integrations: IntegrationsConfig{
			ResendFromAddress: "noreply@yarnnn.com",
		},
	}
}

// applyEnvOverrides lets deployment-specific values (secrets, model
// names, tuning knobs) be set without editing the checked-in YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLATFORM_ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}
	if v := os.Getenv("LLM_REASONING_MODEL"); v != "" {
		cfg.LLM.ReasoningModel = v
	}
	if v := os.Getenv("LLM_GENERATION_MODEL"); v != "" {
		cfg.LLM.GenerationModel = v
	}
	if v := os.Getenv("LLM_EXTRACTION_MODEL"); v != "" {
		cfg.LLM.ExtractionModel = v
	}
	if v := os.Getenv("MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Deliverable.MaxToolRounds = n
		}
	}
	if v := os.Getenv("SIGNAL_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Signal.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("STALENESS_THRESHOLD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Deliverable.StalenessThresholdMinutes = n
		}
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Integrations.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Integrations.GoogleClientSecret = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Integrations.ResendAPIKey = v
	}
	if v := os.Getenv("RESEND_FROM_ADDRESS"); v != "" {
		cfg.Integrations.ResendFromAddress = v
	}
}

func validate(cfg *Config) error {
	if !validLLMProviders[cfg.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Signal.ConfidenceThreshold < 0 || cfg.Signal.ConfidenceThreshold > 1 {
		return fmt.Errorf("signal confidence_threshold must be between 0 and 1")
	}
	if cfg.Deliverable.MaxToolRounds < 1 {
		return fmt.Errorf("deliverable max_tool_rounds must be at least 1")
	}
	if cfg.Encryption.Key == "" {
		return fmt.Errorf("encryption key is required")
	}
	return nil
}

// Watch loads path once, invokes onChange with the initial config, and
// then watches the file for writes, re-loading and invoking onChange
// on every successful reload. Parse or validation failures during a
// reload are logged to stderr and the previous config is kept in
// effect. Watch blocks until the provided stop channel is closed.
func Watch(path string, onChange func(*Config), stop <-chan struct{}) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	onChange(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			next, err := Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "config reload failed, keeping previous config: %v\n", err)
				continue
			}
			onChange(next)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "config watcher error: %v\n", err)
		case <-stop:
			return nil
		}
	}
}

// Package config handles configuration loading for the DaleFocus service.
// It supports XDG config paths, project-level overrides, and environment
// variables. The loaded Config is immutable and injected into components;
// nothing reads ambient global state after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the DaleFocus service.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	// APIKey is the provider credential. Empty means the AI service is
	// unconfigured; atomization calls fail with a precondition error.
	APIKey string `mapstructure:"api_key"`
	// Model is the model used for atomization.
	Model string `mapstructure:"model"`
	// RewardModel is the smaller model used for reward messages.
	RewardModel string `mapstructure:"reward_model"`
	// UseAWSBedrock switches the client to AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string `mapstructure:"aws_profile"`
}

// Configured reports whether a usable credential source is present.
func (a AnthropicConfig) Configured() bool {
	return a.APIKey != "" || a.UseAWSBedrock
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// TimeoutsConfig holds deadlines for external completion calls.
type TimeoutsConfig struct {
	// Atomize bounds the plan-generation call.
	Atomize time.Duration `mapstructure:"atomize"`
	// Reward bounds the short reward-message call.
	Reward time.Duration `mapstructure:"reward"`
}

// RateLimitConfig holds the per-principal sliding window settings.
type RateLimitConfig struct {
	// Window is the rolling interval over which calls are counted.
	Window time.Duration `mapstructure:"window"`
	// Capacity is the number of admitted calls per window.
	Capacity int `mapstructure:"capacity"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, DALEFOCUS_*)
// 2. Project config (.dalefocus.yaml in current directory or parent)
// 3. User config (~/.config/dalefocus/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DALEFOCUS")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("server.addr", "DALEFOCUS_ADDR")
	v.BindEnv("store.path", "DALEFOCUS_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Watch reloads the config file at path whenever it changes and invokes
// onChange with the fresh Config. Only safe-to-reload settings (rate limit,
// timeouts) should be consumed from watched configs; the credential and
// store path are fixed at process start.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.reward_model", cfg.Anthropic.RewardModel)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("store.path", cfg.Store.Path)
	v.Set("timeouts.atomize", cfg.Timeouts.Atomize.String())
	v.Set("timeouts.reward", cfg.Timeouts.Reward.String())
	v.Set("rate_limit.window", cfg.RateLimit.Window.String())
	v.Set("rate_limit.capacity", cfg.RateLimit.Capacity)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.reward_model", "claude-3-5-haiku-20241022")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("timeouts.atomize", "30s")
	v.SetDefault("timeouts.reward", "12s")

	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.capacity", 5)
}

// getUserConfigDir returns the XDG config directory for DaleFocus.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dalefocus")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dalefocus")
	}
	return filepath.Join(home, ".config", "dalefocus")
}

// defaultStorePath returns the XDG data path for the sqlite store.
func defaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "dalefocus", "dalefocus.db")
}

// findProjectConfig searches for .dalefocus.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".dalefocus.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:       "claude-sonnet-4-5-20250929",
			RewardModel: "claude-3-5-haiku-20241022",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Timeouts: TimeoutsConfig{
			Atomize: 30 * time.Second,
			Reward:  12 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:   60 * time.Second,
			Capacity: 5,
		},
	}
}

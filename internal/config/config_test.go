package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timeouts.Atomize != 30*time.Second {
		t.Errorf("Timeouts.Atomize = %v, want 30s", cfg.Timeouts.Atomize)
	}
	if cfg.Timeouts.Reward != 12*time.Second {
		t.Errorf("Timeouts.Reward = %v, want 12s", cfg.Timeouts.Reward)
	}
	if cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("RateLimit.Window = %v, want 60s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Capacity != 5 {
		t.Errorf("RateLimit.Capacity = %d, want 5", cfg.RateLimit.Capacity)
	}
	if cfg.Anthropic.Configured() {
		t.Error("default config should not be configured without a credential")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-5-20250929
timeouts:
  atomize: 10s
  reward: 5s
rate_limit:
  window: 30s
  capacity: 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Anthropic.APIKey, "test-key")
	}
	if !cfg.Anthropic.Configured() {
		t.Error("config with api key should report configured")
	}
	if cfg.Timeouts.Atomize != 10*time.Second {
		t.Errorf("Timeouts.Atomize = %v, want 10s", cfg.Timeouts.Atomize)
	}
	if cfg.RateLimit.Capacity != 3 {
		t.Errorf("RateLimit.Capacity = %d, want 3", cfg.RateLimit.Capacity)
	}
	// Unset fields fall back to defaults.
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadFromPath_EnvExpansion(t *testing.T) {
	t.Setenv("DALEFOCUS_TEST_KEY", "expanded-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${DALEFOCUS_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "expanded-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Anthropic.APIKey, "expanded-key")
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfiguredWithBedrock(t *testing.T) {
	cfg := AnthropicConfig{UseAWSBedrock: true}
	if !cfg.Configured() {
		t.Error("bedrock config should report configured without an api key")
	}
}

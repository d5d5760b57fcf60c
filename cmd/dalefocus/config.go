package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dalefocus/dalefocus/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify DaleFocus configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/dalefocus/config.yaml
Project-specific overrides can be placed in .dalefocus.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.reward_model: %s\n", cfg.Anthropic.RewardModel)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
	fmt.Printf("store.path: %s\n", cfg.Store.Path)
	fmt.Printf("timeouts.atomize: %s\n", cfg.Timeouts.Atomize)
	fmt.Printf("timeouts.reward: %s\n", cfg.Timeouts.Reward)
	fmt.Printf("rate_limit.window: %s\n", cfg.RateLimit.Window)
	fmt.Printf("rate_limit.capacity: %d\n", cfg.RateLimit.Capacity)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.reward_model":
		return cfg.Anthropic.RewardModel, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "store.path":
		return cfg.Store.Path, nil
	case "timeouts.atomize":
		return cfg.Timeouts.Atomize.String(), nil
	case "timeouts.reward":
		return cfg.Timeouts.Reward.String(), nil
	case "rate_limit.window":
		return cfg.RateLimit.Window.String(), nil
	case "rate_limit.capacity":
		return strconv.Itoa(cfg.RateLimit.Capacity), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.reward_model":
		cfg.Anthropic.RewardModel = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "server.addr":
		cfg.Server.Addr = value
	case "store.path":
		cfg.Store.Path = value
	case "timeouts.atomize":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.Timeouts.Atomize = d
	case "timeouts.reward":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.Timeouts.Reward = d
	case "rate_limit.window":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.RateLimit.Window = d
	case "rate_limit.capacity":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid capacity for %s: %s", key, value)
		}
		cfg.RateLimit.Capacity = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

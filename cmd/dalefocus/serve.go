package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dalefocus/dalefocus/internal/atomize"
	"github.com/dalefocus/dalefocus/internal/config"
	"github.com/dalefocus/dalefocus/internal/httpapi"
	"github.com/dalefocus/dalefocus/internal/llm"
	"github.com/dalefocus/dalefocus/internal/metrics"
	"github.com/dalefocus/dalefocus/internal/otel"
	"github.com/dalefocus/dalefocus/internal/ratelimit"
	"github.com/dalefocus/dalefocus/internal/reward"
	"github.com/dalefocus/dalefocus/internal/session"
	"github.com/dalefocus/dalefocus/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DaleFocus HTTP API",
	Long: `Starts the HTTP API server.

Configuration is read from ~/.config/dalefocus/config.yaml with
project-level overrides in .dalefocus.yaml. The Anthropic API key comes
from ANTHROPIC_API_KEY or the config file; without it, atomization
requests fail until a key is configured.

Rate-limit settings are hot-reloaded when the config file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsHandler, err := otel.InitMeterProvider(ctx, "dalefocus")
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if err := otel.InitMetrics(ctx); err != nil {
		return fmt.Errorf("init instruments: %w", err)
	}

	var completer llm.Completer
	if cfg.Anthropic.Configured() {
		client, err := llm.NewClient(cfg.Anthropic)
		if err != nil {
			return fmt.Errorf("init anthropic client: %w", err)
		}
		completer = client
	} else {
		logger.Warn("no Anthropic credentials configured, AI operations will fail until a key is set")
	}

	limiter := ratelimit.New(db, cfg.RateLimit.Window, cfg.RateLimit.Capacity)
	watchRateLimits(limiter, logger)

	atomizer := atomize.New(db, limiter, completer, atomize.Config{
		Model:      cfg.Anthropic.Model,
		Timeout:    cfg.Timeouts.Atomize,
		MaxTokens:  4096,
		Configured: cfg.Anthropic.Configured(),
	}, logger)

	recorder := session.New(db, logger)

	rewarder, err := reward.New(completer, reward.Config{
		Model:      cfg.Anthropic.RewardModel,
		Timeout:    cfg.Timeouts.Reward,
		Configured: cfg.Anthropic.Configured(),
	}, logger)
	if err != nil {
		return fmt.Errorf("init reward generator: %w", err)
	}

	reporter := metrics.New(db, logger)

	srv := httpapi.New(httpapi.Options{
		Addr:           cfg.Server.Addr,
		MetricsHandler: metricsHandler,
		UseOtelHTTP:    true,
	}, atomizer, recorder, rewarder, reporter, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	color.New(color.FgGreen).Fprintf(os.Stderr, "dalefocus listening on %s\n", cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// watchRateLimits hot-reloads the rate-limit settings when the config
// file changes. Watch failures are logged, not fatal: a server that
// cannot watch its config still serves.
func watchRateLimits(limiter *ratelimit.Limiter, logger *slog.Logger) {
	err := config.Watch(config.GetUserConfigPath(), func(cfg *config.Config) {
		limiter.UpdateLimits(cfg.RateLimit.Window, cfg.RateLimit.Capacity)
		window, capacity := limiter.Limits()
		logger.Info("rate limits reloaded",
			slog.Duration("window", window),
			slog.Int("capacity", capacity),
		)
	})
	if err != nil {
		logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}
}

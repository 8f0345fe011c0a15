package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmscope/playground/internal/config"
	"github.com/llmscope/playground/internal/logger"
	"github.com/llmscope/playground/internal/server"
	"github.com/llmscope/playground/pkg/cleanup"
	"github.com/llmscope/playground/pkg/event"
	"github.com/llmscope/playground/pkg/provider"
	"github.com/llmscope/playground/pkg/session"
	"github.com/llmscope/playground/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground HTTP server",
	Long: `Start the playground HTTP server.
The server resolves browser sessions, proxies chat to the configured
model provider, records usage events, and runs session cleanup on a
schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()
	log := appLogger.GetZerolog()

	db, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sessions := session.NewStore(db, log)
	pricer := event.NewPricer(cfg.Pricing.Rates, cfg.Pricing.DefaultRate, cfg.Pricing.Strict)
	ledger := event.NewLedger(db, pricer, log)
	engine := cleanup.NewEngine(sessions, ledger,
		cfg.Session.RetentionWindow(), cfg.Session.InactivityWindow(), log)
	resolver := session.NewResolver(cfg.Session.CookieName, log)

	var chat provider.ChatProvider
	if cfg.AI.APIKey != "" {
		chat, err = provider.New(provider.Config{
			Provider:  cfg.AI.Provider,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
		})
		if err != nil {
			return fmt.Errorf("failed to create model provider: %w", err)
		}
	} else {
		log.Warn().Msg("No provider API key configured, chat endpoint disabled")
	}

	rateLimiter := server.NewRateLimiter(
		cfg.RateLimit.RequestsPerSession,
		time.Duration(cfg.RateLimit.PeriodSeconds)*time.Second,
	)

	srv, err := server.NewServer(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		CookieName:   cfg.Session.CookieName,
		CookieMaxAge: cfg.Session.RetentionWindow(),
		ChatTimeout:  cfg.AI.RequestTimeout(),
	}, sessions, ledger, engine, resolver, chat, rateLimiter, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	scheduler := cleanup.NewScheduler(engine, cfg.Session.CleanupInterval(), log)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start cleanup scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		scheduler.Stop()
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	if err := scheduler.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop cleanup scheduler")
	}
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}

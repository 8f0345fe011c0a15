package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmscope/playground/internal/config"
	"github.com/llmscope/playground/internal/logger"
	"github.com/llmscope/playground/pkg/cleanup"
	"github.com/llmscope/playground/pkg/event"
	"github.com/llmscope/playground/pkg/session"
	"github.com/llmscope/playground/pkg/store"
)

var (
	cleanupDryRun     bool
	cleanupDeactivate bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a one-shot session cleanup batch",
	Long: `Run a one-shot session cleanup batch against the database.
Prints cleanup statistics, then deletes sessions idle past the retention
window (or marks them inactive with --deactivate). Use --dry-run to see
what would be removed without changing anything.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report what would be removed without deleting")
	cleanupCmd.Flags().BoolVar(&cleanupDeactivate, "deactivate", false, "mark idle sessions inactive instead of deleting")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
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

	ctx := cmd.Context()

	stats, err := engine.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cleanup stats: %w", err)
	}
	printJSON("Cleanup stats", stats)

	if cleanupDeactivate {
		result := engine.DeactivateInactive(ctx, cleanupDryRun)
		printJSON("Deactivation result", result)
		if !result.Success {
			return fmt.Errorf("deactivation failed: %s", result.Error)
		}
		return nil
	}

	result := engine.CleanupExpired(ctx, cleanupDryRun)
	printJSON("Cleanup result", result)
	if !result.Success {
		return fmt.Errorf("cleanup failed: %s", result.Error)
	}
	return nil
}

func printJSON(title string, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("%s:\n%s\n", title, data)
}

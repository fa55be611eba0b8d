// Package cli is the commissionctl command line. It drives the same services
// as the HTTP server without going through it.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/username/commissioncalc/backend/src/config"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/llm"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/rules"
)

var (
	logLevel string

	// Set by setup, or directly by tests.
	rulesStore rules.Store
	chatModel  llm.ChatModel
	db         *sql.DB
)

var rootCmd = &cobra.Command{
	Use:           "commissionctl",
	Short:         "Attorney commission calculator",
	Long:          `Runs the commission pipeline over local payment files and manages the saved rules sheet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if db != nil {
			db.Close()
			db = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level for stderr output (default: warnings only)")
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

// setup loads configuration and opens whatever the command tree has not
// been given already.
func setup(cmd *cobra.Command) error {
	if config.Cfg == nil {
		config.LoadConfig()
	}
	// Logs go to stderr so stdout stays clean for CSV and JSON output.
	if logLevel != "" {
		logger.L = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logger.ParseLevel(logLevel)}))
	}
	if err := config.Cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if rulesStore == nil {
		store, err := openRulesStore()
		if err != nil {
			return err
		}
		rulesStore = store
	}
	if chatModel == nil {
		chatModel = llm.NewFromConfig(cmd.Context(), config.Cfg.Model)
	}
	return nil
}

func openRulesStore() (rules.Store, error) {
	if config.Cfg.RulesStore != config.RulesStoreSQLite {
		return rules.NewFileStore(filepath.Join(config.Cfg.DataDir, rules.DefaultFileName)), nil
	}
	conn, err := database.InitDB(config.Cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db = conn
	return database.NewRulesRepository(conn), nil
}

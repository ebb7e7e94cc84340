// Crafting resolver MCP server
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rsned/crafting-resolver/internal/crafting/config"
	"github.com/rsned/crafting-resolver/internal/crafting/db"
	"github.com/rsned/crafting-resolver/internal/crafting/logger"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "crafting-server",
		Short:         "Recursive crafting resolver served over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml if present)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite database (overrides database.path)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	serve := newServeCommand()
	root.RunE = serve.RunE
	root.AddCommand(serve, newImportCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and opens the database.
func setup(ctx context.Context) (*config.Config, *slog.Logger, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, os.Stderr)
	slog.SetDefault(log)

	database, err := db.OpenAndInit(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, log, database, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tholdem/uniqn-sync/pkg/cache"
	"github.com/tholdem/uniqn-sync/pkg/config"
	"github.com/tholdem/uniqn-sync/pkg/logging"
	"github.com/tholdem/uniqn-sync/pkg/metrics"
	"github.com/tholdem/uniqn-sync/pkg/query"
)

// App holds the dependencies shared by every command.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
}

var (
	configPath string
	app        *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uniqn-sync",
		Short: "Realtime data layer for staff scheduling",
		Long:  `Subscribes role-scoped Firestore queries, caches their results and streams them to client sessions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(planCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads the configuration and sets up the logger.
func initApp() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.InitLogger(cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Configuration loaded", zap.String("path", configPath))

	app = &App{cfg: cfg, logger: logger}
	return nil
}

// newSelector builds the query selector from the configured tables.
func (a *App) newSelector() (*query.Selector, error) {
	qc, err := a.cfg.QueryConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid query configuration: %w", err)
	}
	return query.NewSelector(qc), nil
}

func (a *App) newCache() *cache.Store {
	return cache.NewStore(a.cfg.TTLs(), cache.WithDefaultTTL(a.cfg.Cache.DefaultTTL))
}

func (a *App) newTracker() *metrics.Tracker {
	return metrics.NewTracker()
}

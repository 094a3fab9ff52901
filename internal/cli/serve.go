package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/quotadb/quotadb/internal/alerts"
	"github.com/quotadb/quotadb/internal/api"
	"github.com/quotadb/quotadb/internal/cloudfoundry"
	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/report"
	"github.com/quotadb/quotadb/internal/store"
	"github.com/quotadb/quotadb/internal/syncer"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the quotadb server",
	Long: `Start the HTTP server serving quota reports, along with the
scheduled synchronization against the platform API.

Example:
  quotadb serve --config config.yaml --db ./data/quotadb.db`,
	RunE: runServe,
}

var serveFlags struct {
	Host    string
	Port    int
	Timeout time.Duration
	NoSync  bool
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", 30*time.Second, "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.NoSync, "no-sync", false, "Disable the scheduled sync")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.NoSync {
		cfg.Sync.Enabled = false
	}
	dbPath := globalFlags.DBPath
	if cfg.Database.Path != "" && !cmd.Flags().Changed("db") {
		dbPath = cfg.Database.Path
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)))

	sqliteStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer sqliteStore.Close()

	reporter := report.NewReporter(sqliteStore, cfg.Cost.MBCost(), logger)
	server := api.NewServer(cfg.Server, cfg.API, sqliteStore, reporter)

	var scheduler *syncer.Scheduler
	if cfg.Sync.Enabled {
		client := cloudfoundry.New(cfg.CloudFoundry, logger)
		client.SetMetrics(server.Metrics())
		engine := syncer.NewEngine(client, sqliteStore, logger, server.Metrics(), cfg.Sync.Concurrency)

		notifier, err := alerts.NewTelegramNotifier(cfg.Alerts.Telegram, logger)
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
		if notifier != nil {
			engine.SetNotifier(notifier)
		}

		scheduler = syncer.NewScheduler(engine, cfg.Sync.Schedule, logger)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if err := loader.StartWatcher(); err != nil {
		logger.Warn("config watcher unavailable", "error", err.Error())
	}
	defer loader.StopWatcher()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	signalCh := api.SetupSignalHandler()
	select {
	case sig := <-signalCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	return api.GracefulShutdown(server.HTTPServer(), serveFlags.Timeout)
}

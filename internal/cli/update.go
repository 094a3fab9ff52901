package cli

import (
	"context"
	"fmt"

	"github.com/quotadb/quotadb/internal/cloudfoundry"
	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/store"
	"github.com/quotadb/quotadb/internal/syncer"
	"github.com/spf13/cobra"
)

// updateCmd runs one synchronization pass against the platform API.
var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"update-database", "sync"},
	Short:   "Run one synchronization pass and exit",
	Long: `Fetch organizations, quota definitions, and space services from the
platform API and upsert today's snapshots into the local store.

A failure on one organization is reported and skipped; the pass
continues with the remaining organizations.`,
	RunE: runUpdate,
}

func init() {
	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
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

	client := cloudfoundry.New(cfg.CloudFoundry, logger)
	engine := syncer.NewEngine(client, sqliteStore, logger, nil, cfg.Sync.Concurrency)

	result, err := engine.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("synced %d orgs (%d quotas, %d services) in %s\n",
		result.Orgs, result.Quotas, result.Services, result.Duration.Round(timeRound))
	if result.Failed() {
		fmt.Printf("%d organizations failed:\n", len(result.Errors))
		for _, orgErr := range result.Errors {
			fmt.Printf("  - %v\n", orgErr)
		}
	}
	return nil
}

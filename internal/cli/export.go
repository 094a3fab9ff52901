package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/report"
	"github.com/quotadb/quotadb/internal/store"
	"github.com/spf13/cobra"
)

const timeRound = 10 * time.Millisecond

// exportCmd writes the CSV report without starting the server.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the CSV quota report",
	Long: `Render the quota cost report as CSV, to stdout or to a file.

Example:
  quotadb export --since 2015-01-01 --until 2015-12-31 --out quotas.csv`,
	RunE: runExport,
}

var exportFlags struct {
	Since string
	Until string
	Out   string
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.Since, "since", "", "Window start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFlags.Until, "until", "", "Window end date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFlags.Out, "out", "", "Output file (default stdout)")

	RootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbPath := globalFlags.DBPath
	if cfg.Database.Path != "" && !cmd.Flags().Changed("db") {
		dbPath = cfg.Database.Path
	}

	sqliteStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer sqliteStore.Close()

	reporter := report.NewReporter(sqliteStore, cfg.Cost.MBCost(), logging.NewLogger())
	output, err := reporter.CSV(store.Window{Since: exportFlags.Since, Until: exportFlags.Until})
	if err != nil {
		return err
	}

	if exportFlags.Out == "" {
		fmt.Print(output)
		return nil
	}
	return os.WriteFile(exportFlags.Out, []byte(output), 0644)
}

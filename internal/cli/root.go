package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
}

var globalFlags GlobalFlags

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "quotadb",
	Short: "quotadb - platform quota usage tracking and reporting",
	Long: `quotadb periodically polls a cloud platform's management API for
organization, quota, and service data, persists it as a daily time
series, and serves aggregate usage and cost reports over HTTP and CSV.

Available Commands:
  serve      Start the HTTP server with the scheduled sync
  update     Run one synchronization pass and exit
  export     Write the CSV report to stdout or a file

Use "quotadb [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("QUOTADB_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("QUOTADB_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/quotadb.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of quotadb",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quotadb %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// Execute runs the root command.
func Execute() {
	InitRoot()
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "reelvault",
	Short: "ReelVault serves a movie, web series and anime catalog over a JSON API",
	Long: `ReelVault stores a catalog of movies, web series and anime with their download
and streaming options, takes title requests from visitors and exposes everything
through a REST API with an admin back office.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ReelVault",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ReelVault %s\n", version)
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if configFile != "" {
		config.SetFile(configFile)
	}
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	logger.InitializeLoggersWithFormat(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel(), cfg.Logging.Format)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

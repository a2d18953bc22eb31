package main

import (
	"fmt"
	"os"

	"github.com/artpar/dinogen/bootstrap"
	"github.com/artpar/dinogen/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing server",
	Long: `Start the dinogen server.

The server will:
  - Load configuration from dinogen.yaml (or --config)
  - Or load configuration from DINOGEN_* environment variables
  - Open the submission history database
  - Serve the session API and WebSocket editor channel

Environment variables (for Docker deployments):
  DINOGEN_REMOTE_URL        - Generation service URL (required)
  DINOGEN_DATABASE_DSN      - Database path (default: dinogen.db)
  DINOGEN_SERVER_PORT       - Server port (default: 8080)
  DINOGEN_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  dinogen serve
  dinogen serve --config /etc/dinogen/config.yaml
  dinogen serve --hot-reload=false

  # Docker (env vars only):
  DINOGEN_REMOTE_URL=https://generator.example.com dinogen serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Fprintln(out, "No configuration found.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Option 1: Create %s with a remote.url entry\n", cfgFile)
		fmt.Fprintln(out, "Option 2: Set DINOGEN_REMOTE_URL environment variable")
		return nil
	}

	opts := bootstrap.Options{ConfigPath: cfgFile, Version: version}
	if !hasConfigFile || !hotReload {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if !hasConfigFile {
			fmt.Fprintln(out, "Running with environment variables (no config file)")
		}
		opts.Config = cfg
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/artpar/dinogen/adapters/remote"
	"github.com/artpar/dinogen/adapters/sqlite"
	"github.com/artpar/dinogen/config"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [draft]",
	Short: "Validate configuration or a draft file",
	Long: `Validate the dinogen configuration file, or a draft when one is given.

Configuration checks:
  - YAML syntax is valid
  - Required fields are present
  - Generation service is reachable (optional)
  - Database is writable (optional)

Draft checks:
  - Schema title and description are present
  - Every field has a key title without spaces and a data type
  - autoIncrement fields carry a numeric start value

Examples:
  dinogen validate
  dinogen validate --config /etc/dinogen/config.yaml --check-remote
  dinogen validate people.yaml --catalog data-types.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var (
	validateCheckRemote   bool
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckRemote, "check-remote", false, "check if the generation service is reachable")
	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
	validateCmd.Flags().StringVar(&catalogFile, "catalog", "", "data type catalog file (YAML or JSON) instead of the remote service")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return validateDraft(cmd, args[0])
	}
	return validateConfig(cmd.OutOrStdout())
}

func validateConfig(out io.Writer) error {
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)

	fmt.Fprintf(out, "  %s Remote: %s\n", checkMark, cfg.Remote.URL)
	fmt.Fprintf(out, "  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Fprintf(out, "  %s Samples: default %d, max %d\n", checkMark, cfg.Generator.DefaultSamples, cfg.Generator.MaxSamples)

	if validateCheckRemote {
		if err := checkRemoteReachable(cfg); err != nil {
			fmt.Fprintf(out, "  %s Remote reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Remote reachable\n", checkMark)
		}
	}

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			fmt.Fprintf(out, "  %s Database writable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database writable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func validateDraft(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	d, forest, err := openDraft(path)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	violations := validation.Submission(d.Title, d.Description, forest.Roots(), catalog)
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(out, "  %s %s\n", crossMark, v.Message)
		}
		return fmt.Errorf("%s: %d problem(s)", path, len(violations))
	}

	fmt.Fprintf(out, "  %s %d field(s) valid\n", checkMark, forest.Size())
	return nil
}

func checkRemoteReachable(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return remote.NewCatalogSource(newRemoteClient(cfg), cfg.Remote.DataTypesPath).HealthCheck(ctx)
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(context.Background())
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

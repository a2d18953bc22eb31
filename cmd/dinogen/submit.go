package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/artpar/dinogen/adapters/remote"
	"github.com/artpar/dinogen/config"
	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/spf13/cobra"
)

var submitSamples int

var submitCmd = &cobra.Command{
	Use:   "submit <draft>",
	Short: "Generate sample documents for a draft file",
	Long: `Validate and compile a draft, then send the schema to the generation
service and print the documents it returns.

The generation service comes from the config file or DINOGEN_* variables.

Examples:
  dinogen submit people.yaml
  dinogen submit people.yaml --samples 10
  DINOGEN_REMOTE_URL=http://localhost:8000 dinogen submit people.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().IntVarP(&submitSamples, "samples", "n", 0, "number of documents (default: the draft's num_samples)")
	submitCmd.Flags().StringVar(&catalogFile, "catalog", "", "data type catalog file (YAML or JSON) instead of the remote service")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	d, forest, err := openDraft(args[0])
	if err != nil {
		return err
	}

	samples := d.NumSamples
	if submitSamples != 0 {
		samples = submitSamples
	}
	if samples < 1 || samples > cfg.Generator.MaxSamples {
		return fmt.Errorf("samples must be between 1 and %d, got %d", cfg.Generator.MaxSamples, samples)
	}

	catalog, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	if violations := validation.Submission(d.Title, d.Description, forest.Roots(), catalog); len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s\n", crossMark, v.Message)
		}
		return fmt.Errorf("%s: %d problem(s)", args[0], len(violations))
	}

	doc, report := schemadoc.Build(d.Title, d.Description, forest.Roots(), catalog)
	printReport(cmd.ErrOrStderr(), report)

	generator := remote.NewGenerator(newRemoteClient(cfg), cfg.Remote.GeneratePath)
	result, err := generator.Generate(cmd.Context(), schemadoc.NewRequest(doc, d.Format, samples))
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

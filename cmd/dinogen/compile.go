package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <draft>",
	Short: "Print the JSON Schema compiled from a draft file",
	Long: `Compile a draft file into a draft-07 JSON Schema document.

Fields whose data type is missing from the catalog are emitted with an
empty type, and a warning is printed to stderr.

Examples:
  dinogen compile people.yaml --catalog data-types.yaml
  dinogen compile people.yaml --config dinogen.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVar(&catalogFile, "catalog", "", "data type catalog file (YAML or JSON) instead of the remote service")
}

func runCompile(cmd *cobra.Command, args []string) error {
	d, forest, err := openDraft(args[0])
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	doc, report := schemadoc.Build(d.Title, d.Description, forest.Roots(), catalog)
	printReport(cmd.ErrOrStderr(), report)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printReport(w io.Writer, report schemadoc.Report) {
	for _, m := range report.Misses {
		fmt.Fprintf(w, "warning: %s: unknown data type %q\n", m.Path, m.DataType)
	}
	for _, issue := range report.AttributeIssues {
		fmt.Fprintf(w, "warning: %s: attribute %s=%q ignored, wrong value type\n", issue.Path, issue.Name, issue.Value)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dinogen",
	Short: "Build JSON Schemas field by field and generate sample documents",
	Long: `dinogen edits a tree of typed fields, compiles it into a JSON Schema
document and asks a generation service for sample documents.

Quick start:
  dinogen serve                      # Start the editing server
  dinogen compile draft.yaml         # Print the schema for a draft file
  dinogen submit draft.yaml          # Generate sample documents

Tooling:
  dinogen validate                   # Validate configuration
  dinogen validate draft.yaml        # Validate a draft file
  dinogen schema                     # JSON Schema of the draft format`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dinogen.yaml", "config file path")
}

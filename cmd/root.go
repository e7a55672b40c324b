package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "morm",
	Short: "A declarative schema migration engine for PostgreSQL",
	Long: `morm reconciles a live PostgreSQL database against a declared schema,
issuing the minimum DDL and never losing data unless --reset authorizes it.

Examples:

  morm init
  morm plan
  morm migrate
`,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkCmd)
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	checkFile    string
	checkTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity and report schema drift",
	Long: `Check the current state of the database against the declared schema.

This command will:
- Verify database connectivity
- Compute the DDL a migrate would issue
- Report whether the live schema matches the declaration

Examples:
  morm check                    # Check current state
  morm check --timeout 10s      # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		eng, err := loadEngine(ctx, checkFile)
		if err != nil {
			fail("%v", err)
		}

		stmts, err := eng.Plan(ctx, nil)
		if err != nil {
			fail("schema check failed: %v", err)
		}

		pending := withoutBootstrap(stmts)
		if len(pending) == 0 {
			fmt.Println("✅ Database schema matches the declaration")
			return
		}
		fmt.Printf("⚠️  Schema drift detected: %d statement(s) pending\n", len(pending))
		fmt.Println("   Run 'morm plan' to inspect them, 'morm migrate' to apply.")
	},
}

// withoutBootstrap drops the always-on extension ensure from a plan, so an
// in-sync schema reports zero pending statements.
func withoutBootstrap(stmts []string) []string {
	var out []string
	for _, s := range stmts {
		if strings.HasPrefix(s, "CREATE EXTENSION IF NOT EXISTS") {
			continue
		}
		out = append(out, s)
	}
	return out
}

func init() {
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "Schema file (default schema.yaml)")
	checkCmd.Flags().DurationVarP(&checkTimeout, "timeout", "t", 10*time.Second, "Timeout for the check")
}

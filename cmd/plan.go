package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inedumozey/morm/events"
)

var (
	planFile   string
	planVisual bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the DDL a migrate would issue, without executing it",
	Long: `Show the DDL a migrate would issue, without executing it.

Examples:
  morm plan                  # print the pending statements
  morm plan --visual         # colorized event stream
  morm plan -f custom.yaml   # use a custom schema file
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := loadEngine(ctx, planFile)
		if err != nil {
			fail("%v", err)
		}

		var sink events.Sink
		if planVisual {
			sink = events.ConsoleSink{}
		}
		stmts, err := eng.Plan(ctx, sink)
		if err != nil {
			fail("plan failed: %v", err)
		}

		pending := withoutBootstrap(stmts)
		if len(pending) == 0 {
			fmt.Println("✅ No differences found between schema and database")
			return
		}
		if !planVisual {
			for _, s := range pending {
				fmt.Println(s)
			}
		}
		fmt.Printf("📋 %d statement(s) pending. (Dry run only, nothing was applied.)\n", len(pending))
	},
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "Schema file (default schema.yaml)")
	planCmd.Flags().BoolVar(&planVisual, "visual", false, "Render the colorized event stream")
}

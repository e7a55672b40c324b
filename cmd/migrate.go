package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inedumozey/morm"
	"github.com/inedumozey/morm/events"
)

var (
	migrateFile  string
	migrateReset bool
	migrateClean bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Reconcile the database against the declared schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := loadEngine(ctx, migrateFile)
		if err != nil {
			fail("%v", err)
		}

		if !eng.Migrate(ctx, morm.MigrateOptions{Reset: migrateReset, Clean: &migrateClean, Sink: events.ConsoleSink{}}) {
			fail("migration rolled back")
		}
		fmt.Println("✅ Schema reconciled.")
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateFile, "file", "f", "", "Schema file (default schema.yaml)")
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "Authorize destructive reconciliation (drops data)")
	migrateCmd.Flags().BoolVar(&migrateClean, "clean", true, "Drop empty tables the schema no longer declares")
}

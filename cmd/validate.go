package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inedumozey/morm/loader"
	"github.com/inedumozey/morm/relation"
	"github.com/inedumozey/morm/schema"
	"github.com/inedumozey/morm/validator"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the declared schema without a database connection",
	Run: func(cmd *cobra.Command, args []string) {
		schemaFile := validateFile
		if schemaFile == "" {
			schemaFile = defaultSchemaFile
		}
		decl, err := loader.LoadFile(schemaFile)
		if err != nil {
			fail("loading schema: %v", err)
		}

		reg := schema.NewRegistry()
		for _, e := range decl.Enums {
			reg.Register(e)
		}

		var models []*schema.Model
		var problems []*schema.Error
		problems = append(problems, reg.Errors()...)
		for _, cfg := range decl.Models {
			m := schema.Normalize(cfg, reg)
			validator.ValidateModel(m)
			problems = append(problems, m.Errors...)
			models = append(models, m)
		}
		if len(problems) == 0 {
			if _, errs := relation.Build(models); len(errs) > 0 {
				problems = append(problems, errs...)
			}
		}

		if len(problems) == 0 {
			fmt.Println("✅ Schema is valid")
			return
		}
		for _, p := range problems {
			fmt.Println("❌", p)
		}
		os.Exit(1)
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Schema file (default schema.yaml)")
}

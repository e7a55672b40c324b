package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/inedumozey/morm"
	"github.com/inedumozey/morm/loader"
	"github.com/inedumozey/morm/utils"
)

const defaultSchemaFile = "schema.yaml"

// loadEngine loads the schema file and returns an engine carrying its
// declaration.
func loadEngine(ctx context.Context, schemaFile string) (*morm.Engine, error) {
	if schemaFile == "" {
		schemaFile = defaultSchemaFile
	}
	decl, err := loader.LoadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %v", err)
	}

	utils.LoadEnv()
	eng, err := morm.Init(ctx, utils.GetDatabaseURL(), morm.Options{})
	if err != nil {
		return nil, fmt.Errorf("connecting: %v", err)
	}
	eng.Enums(decl.Enums)
	for _, m := range decl.Models {
		eng.Model(m)
	}
	return eng, nil
}

func fail(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}

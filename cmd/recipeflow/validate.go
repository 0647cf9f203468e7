package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/library"
	"github.com/recipeflow/recipeflow/internal/loader"
	"github.com/recipeflow/recipeflow/pkg/validation"
)

// newValidateCmd validates definition files without executing anything.
// All files are loaded into one library first so cross-file subworkflow
// references and cycles are checked.
func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate recipe definition files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := library.NewInMemory()
			defs := make(map[string]string, len(args))
			for _, path := range args {
				def, err := loader.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := lib.Save(def); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				defs[path] = def.ID
			}
			for _, path := range args {
				def, _ := lib.Get(defs[path])
				if err := validation.ValidateDefinition(def, validation.Options{Library: lib}); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Printf("%s: ok (%s)\n", path, def.ID)
			}
			return nil
		},
	}
}

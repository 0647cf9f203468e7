package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/library"
	"github.com/recipeflow/recipeflow/internal/loader"
	"github.com/recipeflow/recipeflow/pkg/recipeflow"
)

// newResumeCmd continues a run from a saved checkpoint. The definition
// files that produced the run must be supplied again; checkpoints store
// state, not definitions.
func newResumeCmd(c *cli) *cobra.Command {
	var defFiles []string
	cmd := &cobra.Command{
		Use:   "resume CHECKPOINT_ID",
		Short: "Resume a run from a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			saver, closeSaver, err := c.newSaver(ctx)
			if err != nil {
				return err
			}
			defer closeSaver()

			engine := recipeflow.New(recipeflow.Options{
				Saver:   saver,
				Library: library.NewInMemory(),
				Logger:  c.logger,
				Config: recipeflow.RunConfig{
					DefaultTimeout:      c.cfg.DefaultTimeout,
					DefaultConcurrency:  c.cfg.DefaultConcurrency,
					Checkpoints:         c.cfg.Checkpoints,
					MaxSubWorkflowDepth: c.cfg.MaxSubWorkflowDepth,
				},
			})
			if err := engine.RegisterCapabilityFunc("echo", echoCapability); err != nil {
				return err
			}
			for _, path := range defFiles {
				def, err := loader.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := engine.RegisterDefinition(def); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}

			handle, err := engine.Resume(ctx, args[0])
			if err != nil {
				return err
			}
			runErr := handle.Wait(context.Background())

			result, err := engine.Result(handle.RunID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return runErr
		},
	}
	cmd.Flags().StringArrayVar(&defFiles, "definition", nil, "definition files for the checkpointed run")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/library"
	"github.com/recipeflow/recipeflow/internal/loader"
	"github.com/recipeflow/recipeflow/pkg/recipeflow"
)

// newRunCmd executes one definition file. Extra definition files supplied
// via --lib are loaded for subworkflow resolution. A built-in "echo"
// capability is registered so data-flow recipes run standalone; real
// capabilities are registered by programs embedding the engine.
func newRunCmd(c *cli) *cobra.Command {
	var (
		inputs   []string
		libFiles []string
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a recipe definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			def, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}

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
			for _, path := range libFiles {
				sub, err := loader.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := engine.RegisterDefinition(sub); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			if err := engine.RegisterDefinition(def); err != nil {
				return err
			}

			initial, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			handle, err := engine.Run(ctx, def, initial)
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
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "initial binding as key=value (value parsed as YAML)")
	cmd.Flags().StringArrayVar(&libFiles, "lib", nil, "additional definition files for subworkflow refs")
	return cmd
}

// parseInputs turns key=value flags into initial bindings. Values parse as
// YAML scalars so numbers, booleans and inline lists come through typed.
func parseInputs(pairs []string) (map[string]interface{}, error) {
	initial := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q, want key=value", pair)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		initial[key] = value
	}
	return initial, nil
}

// echoCapability returns its input unchanged.
func echoCapability(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return input, nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/recipeflow/recipeflow/internal/adapters/repository/memory"
	"github.com/recipeflow/recipeflow/internal/adapters/repository/postgres"
	"github.com/recipeflow/recipeflow/internal/adapters/repository/sqlite"
	"github.com/recipeflow/recipeflow/internal/config"
	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/internal/logging"
)

const version = "0.1.0"

type cli struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "recipeflow",
		Short: "Recipe execution engine",
		Long: `recipeflow loads declarative recipe definitions, executes them with
parallel, iterative and conditional semantics, and aggregates weighted
evidence into ranked reports. Runs checkpoint at step boundaries and can be
resumed after interruption.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real settings come from config/env.
			_ = godotenv.Load()
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logging.New(os.Stderr, cfg.Debug)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./recipeflow.yaml)")

	root.AddCommand(newValidateCmd(c))
	root.AddCommand(newRunCmd(c))
	root.AddCommand(newResumeCmd(c))
	root.AddCommand(newVersionCmd())
	return root
}

// newSaver builds the checkpoint saver selected by configuration.
func (c *cli) newSaver(ctx context.Context) (checkpoint.Saver, func(), error) {
	switch c.cfg.Backend {
	case config.BackendMemory:
		s := memory.DefaultSaver()
		return s, func() { s.Close() }, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, c.cfg.SQLitePath, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.BackendPostgres:
		s, err := postgres.Connect(ctx, c.cfg.PostgresDSN, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", c.cfg.Backend)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("recipeflow %s\n", version)
		},
	}
}

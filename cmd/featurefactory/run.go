package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"featurefactory/internal/config"
	"featurefactory/internal/pipeline"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <mode>",
	Short: "Run one pipeline mode (propose or sync)",
	Long: `Run one pipeline mode.

  propose  generate candidates, record them and open review issues
           (aliases: phase1, discover)
  sync     apply label decisions and promote approved features
           (aliases: phase2, approve)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, args[0])
	},
}

var proposeCmd = &cobra.Command{
	Use:     "propose",
	Aliases: []string{"phase1", "discover"},
	Short:   "Generate feature candidates and open review issues",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, config.ModePropose)
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"phase2", "approve"},
	Short:   "Close rejected proposals and promote approved ones",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, config.ModeSync)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, proposeCmd, syncCmd)
}

func runMode(cmd *cobra.Command, raw string) error {
	mode, err := pipeline.ParseMode(raw)
	if err != nil {
		return err
	}
	cfg := config.FromViper()
	if err := cfg.Validate(mode); err != nil {
		return err
	}

	a, err := newApp(cfg, mode, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.orchestrator.Run(ctx, mode)
	return err
}

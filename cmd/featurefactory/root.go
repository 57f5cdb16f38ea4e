package main

import (
	"fmt"
	"os"

	"featurefactory/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "featurefactory",
	Short: "Feature lifecycle reconciliation for GitHub repositories",
	Long: `featurefactory proposes features for a repository as GitHub review issues,
syncs the label decisions humans make on them, and promotes approved
features to a development branch with a tracking issue.

Every run is idempotent: it reconciles the registry, the issue tracker
and the repository toward the same end state.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.BoolP("debug", "v", false, "Enable debug logging")
	flags.String("log-file", "", "Also append JSON logs to this file")
	flags.String("repo", "", "Repository root (defaults to the enclosing git checkout)")
	flags.String("base-branch", "", "Base branch proposals are generated against")
	flags.String("engines", "", "Comma separated candidate-generation engines, in fallback order")
	flags.String("vcs", "", "Repository backend: github or git")
	flags.String("registry-backend", "", "Registry backend: json or sqlite")
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("repo.root", flags.Lookup("repo"))
	_ = viper.BindPFlag("repo.base_branch", flags.Lookup("base-branch"))
	_ = viper.BindPFlag("engines", flags.Lookup("engines"))
	_ = viper.BindPFlag("vcs.backend", flags.Lookup("vcs"))
	_ = viper.BindPFlag("registry.backend", flags.Lookup("registry-backend"))
	_ = viper.BindPFlag("telemetry.tracing", flags.Lookup("trace"))
}

// initConfig reads the config file and environment, then rejects
// out-of-range settings before any command runs.
func initConfig() {
	config.Load(cfgFile)

	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

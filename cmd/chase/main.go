// Package main implements chase, a demonstration CLI over the saturation
// engine: run a named built-in scenario to fixpoint, watch a CSV facts
// file and re-chase on every change, or explain a saturated scenario by
// rendering its step-by-step derivation trace.
//
// chase is sugar over internal/chase/builder; it carries no chase
// semantics of its own.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbchase/chasecore/internal/config"
	"github.com/dbchase/chasecore/internal/logging"
)

var (
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chase",
	Short: "chasecore - existential-rules saturation engine demo CLI",
	Long: `chase runs the existential-rules (Datalog±) chase engine over a handful
of built-in scenarios, to exercise the engine's external interfaces from a
terminal: a Scheduler/TriggerComputer/TriggerChecker/Renamer pipeline
saturating a fact base to a fixpoint.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Configure(ws, verbose, nil, levelFor(verbose), false); err != nil {
			logger.Warn("internal file logging not initialized", zap.Error(err))
		}
		return nil
	},
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

func workspaceOrCwd() string {
	if workspace != "" {
		return workspace
	}
	ws, _ := os.Getwd()
	return ws
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a chasecore YAML config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory for logs (defaults to cwd)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "chase timeout (0 = unbounded)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

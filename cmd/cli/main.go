package main

import (
	"fmt"
	"os"

	"gocoalesce/internal"
	"gocoalesce/internal/config"
	"gocoalesce/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cliEnv is built once per invocation by the root command's pre-run hook
type cliEnv struct {
	cfg       *config.Config
	logger    *internal.Logger
	container *container.Container
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "gocoalesce",
		Short: "Monte Carlo study of site-pattern estimators for a 3-taxon species tree",
		Long: `Simulate site-pattern frequencies under the multispecies coalescent and
study the moment estimators of the speciation times tau0 and tau1.

Defaults for every run option come from the environment (SIM_SEED,
SIM_REPLICATES, SIM_TRIALS, SIM_WORKERS, SIM_CONFIDENCE, SIM_REFERENCE_TAU0)
and may be overridden per command with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Missing .env is fine
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			env.cfg = cfg
			env.logger = internal.NewLoggerTo(cmd.ErrOrStderr(), internal.ParseLogLevel(cfg.LogLevel))
			env.container, err = container.New(cfg, env.logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if env.container == nil {
				return nil
			}
			return env.container.Shutdown(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: ERROR|WARN|INFO|DEBUG|TRACE (default LOG_LEVEL)")

	rootCmd.AddCommand(
		newModelCmd(env),
		newSimulateCmd(env),
		newTestCmd(env),
		newPowerCmd(env),
		newReportCmd(env),
		newSweepCmd(env),
		newServeCmd(env),
	)
	return rootCmd
}

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gocoalesce/adapters/excel"
	"gocoalesce/adapters/report"
	"gocoalesce/adapters/stats/sitepattern"
	"gocoalesce/app"
	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal/config"
	"gocoalesce/internal/summary"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// runFlags are the run options shared by simulate, test and power. Flags
// left unset fall back to the environment defaults.
type runFlags struct {
	trials     int
	replicates int
	seed       uint64
	workers    int
	confidence float64
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.trials, "trials", 0, "Sites per replicate (default SIM_TRIALS)")
	cmd.Flags().IntVar(&f.replicates, "replicates", 0, "Number of replicates (default SIM_REPLICATES)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Random seed (default SIM_SEED)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel workers, 1 runs a single stream (default SIM_WORKERS)")
	cmd.Flags().Float64Var(&f.confidence, "confidence", 0, "Confidence level (default SIM_CONFIDENCE)")
}

func (f *runFlags) resolve(cmd *cobra.Command, defaults config.SimulationConfig) (trials, replicates int, seed uint64, workers int, confidence float64) {
	trials, replicates, seed = defaults.Trials, defaults.Replicates, defaults.Seed
	workers, confidence = defaults.Workers, defaults.Confidence
	if cmd.Flags().Changed("trials") {
		trials = f.trials
	}
	if cmd.Flags().Changed("replicates") {
		replicates = f.replicates
	}
	if cmd.Flags().Changed("seed") {
		seed = f.seed
	}
	if cmd.Flags().Changed("workers") {
		workers = f.workers
	}
	if cmd.Flags().Changed("confidence") {
		confidence = f.confidence
	}
	return trials, replicates, seed, workers, confidence
}

// outputFlags select the artifacts written next to the console output
type outputFlags struct {
	xlsx   bool
	report bool
	dir    string
}

func (f *outputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "Write an Excel workbook")
	cmd.Flags().BoolVar(&f.report, "report", false, "Write a markdown and HTML report")
	cmd.Flags().StringVar(&f.dir, "out", "", "Output directory (default SIM_OUTPUT_DIR)")
}

func (f *outputFlags) outputDir(cfg *config.Config) string {
	if f.dir != "" {
		return f.dir
	}
	return cfg.Paths.OutputDir
}

func newModelCmd(env *cliEnv) *cobra.Command {
	var params coalescent.Parameters

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Print the site-pattern probabilities for a parameter triple",
		Long: `Print the five site-pattern probabilities of the 3-taxon model.

Example: gocoalesce model --tau0 0.002 --tau1 0.001 --theta 0.001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			probs, err := sitepattern.Probabilities(params)
			if err != nil {
				return err
			}
			printProbabilities(cmd.OutOrStdout(), params, probs)
			return nil
		},
	}

	bindParams(cmd, &params)
	return cmd
}

func newSimulateCmd(env *cliEnv) *cobra.Command {
	var params coalescent.Parameters
	var run runFlags
	var out outputFlags
	var progress bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Estimate coverage of the tau0 and tau1 intervals for one setting",
		Long: `Simulate replicate site-pattern frequencies, estimate both speciation
times with their delta-method intervals and report bias, RMSE and coverage.

Example: gocoalesce simulate --tau0 0.002 --tau1 0.001 --theta 0.001 --replicates 10000 --xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := env.container.Connect(ctx); err != nil {
				return err
			}

			settings := simulation.Settings{Params: params}
			settings.Trials, settings.Replicates, settings.Seed, settings.Workers, settings.Confidence = run.resolve(cmd, env.cfg.Simulation)

			if progress {
				env.container.Simulations.SetObserver(progressObserver(cmd, settings.Replicates))
			}
			result, err := env.container.Simulations.Run(ctx, settings)
			if err != nil {
				return err
			}
			digest, err := summary.Summarize(result)
			if err != nil {
				return err
			}
			if repo := env.container.RunRepo; repo != nil {
				if err := repo.SaveRun(ctx, digest); err != nil {
					return err
				}
			}

			printRunSummary(cmd.OutOrStdout(), digest)
			return writeRunArtifacts(cmd, env, &out, "simulation-"+digest.RunID.String(),
				[]*simulation.Result{result}, []*simulation.RunSummary{digest})
		},
	}

	bindParams(cmd, &params)
	run.bind(cmd)
	out.bind(cmd)
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress every tenth of the replicates")
	return cmd
}

func newTestCmd(env *cliEnv) *cobra.Command {
	var settings simulation.TestSettings
	var run runFlags

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Estimate the rejection rate of the Wald test of tau1 = 0",
		Long: `Simulate at a true tau1 and test H0: tau1 = 0 in every replicate. With
--tau1 0 the rejection rate estimates the type-I error.

Example: gocoalesce test --tau1 0 --theta 0.005 --replicates 10000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("tau0") {
				settings.Tau0 = env.cfg.Simulation.ReferenceTau0
			}
			settings.Trials, settings.Replicates, settings.Seed, settings.Workers, settings.Confidence = run.resolve(cmd, env.cfg.Simulation)

			result, err := env.container.Hypotheses.Test(cmd.Context(), settings)
			if err != nil {
				return err
			}
			digest, err := summary.SummarizeTest(result)
			if err != nil {
				return err
			}
			printTestSummary(cmd.OutOrStdout(), digest)
			return nil
		},
	}

	cmd.Flags().Float64Var(&settings.Tau0, "tau0", 0, "Reference depth tau0 (default SIM_REFERENCE_TAU0)")
	cmd.Flags().Float64Var(&settings.Tau1, "tau1", 0, "True tau1")
	cmd.Flags().Float64Var(&settings.Theta, "theta", 0, "Scaled mutation rate theta")
	_ = cmd.MarkFlagRequired("theta")
	run.bind(cmd)
	return cmd
}

func newPowerCmd(env *cliEnv) *cobra.Command {
	var base simulation.TestSettings
	var grid []float64
	var run runFlags
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "power",
		Short: "Trace the power of the tau1 = 0 test over a grid of true tau1",
		Long: `Run the Wald test of tau1 = 0 at every grid value with common random
numbers and print the power curve.

Example: gocoalesce power --theta 0.005 --grid 0,0.0001,0.0002,0.0004,0.001 --replicates 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := env.container.Connect(ctx); err != nil {
				return err
			}
			if !cmd.Flags().Changed("tau0") {
				base.Tau0 = env.cfg.Simulation.ReferenceTau0
			}
			base.Trials, base.Replicates, base.Seed, base.Workers, base.Confidence = run.resolve(cmd, env.cfg.Simulation)

			curve, err := env.container.Hypotheses.PowerCurve(ctx, base, grid)
			if err != nil {
				return err
			}
			if repo := env.container.RunRepo; repo != nil {
				id, err := repo.SavePowerCurve(ctx, curve)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored power curve %s\n", id)
			}
			printPowerCurve(cmd.OutOrStdout(), curve)

			name := fmt.Sprintf("power-%s", time.Now().UTC().Format("20060102-150405"))
			dir := out.outputDir(env.cfg)
			if out.xlsx {
				path := filepath.Join(dir, name+".xlsx")
				if err := env.container.Workbooks.WritePowerCurve(path, curve); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			if out.report {
				r := &report.Report{Title: "Power of the tau1 = 0 test", Curves: []*simulation.PowerCurve{curve}}
				return writeReport(cmd, r, dir, name)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&base.Tau0, "tau0", 0, "Reference depth tau0 (default SIM_REFERENCE_TAU0)")
	cmd.Flags().Float64Var(&base.Theta, "theta", 0, "Scaled mutation rate theta")
	cmd.Flags().Float64SliceVar(&grid, "grid", []float64{0, 0.0001, 0.0002, 0.0004, 0.001}, "True tau1 values")
	_ = cmd.MarkFlagRequired("theta")
	run.bind(cmd)
	out.bind(cmd)
	return cmd
}

func newReportCmd(env *cliEnv) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "report WORKBOOK.xlsx...",
		Short: "Render power curves exported with power --xlsx as markdown and HTML",
		Long: `Read the Power sheet of each workbook and write one markdown and HTML
report holding every curve, without rerunning the simulation.

Example: gocoalesce report output/power-20261018-120000.xlsx --out reports`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &report.Report{Title: "Power of the tau1 = 0 test"}
			for _, path := range args {
				curve, err := excel.NewDataReader(path).ReadPowerCurve()
				if err != nil {
					return err
				}
				printPowerCurve(cmd.OutOrStdout(), curve)
				r.Curves = append(r.Curves, curve)
			}

			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			if len(args) > 1 {
				name = fmt.Sprintf("power-report-%s", time.Now().UTC().Format("20060102-150405"))
			}
			return writeReport(cmd, r, out.outputDir(env.cfg), name)
		},
	}

	cmd.Flags().StringVar(&out.dir, "out", "", "Output directory (default SIM_OUTPUT_DIR)")
	return cmd
}

func newSweepCmd(env *cliEnv) *cobra.Command {
	var out outputFlags
	var shared bool

	cmd := &cobra.Command{
		Use:   "sweep [sweep-file]",
		Short: "Run every setting of a YAML sweep file in order",
		Long: `Run a list of simulation settings read from a YAML file and report one
summary per setting.

Example: gocoalesce sweep sweeps/table1.yaml --xlsx --report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := config.LoadSweepFile(args[0])
			if err != nil {
				return err
			}
			settings, err := file.Resolve(env.cfg.Simulation)
			if err != nil {
				return err
			}
			if err := env.container.Connect(ctx); err != nil {
				return err
			}

			res, err := env.container.Sweeps.Run(ctx, app.SweepRequest{
				Settings:     settings,
				SharedStream: file.SharedStream || shared,
				Seed:         file.BaseSeed(env.cfg.Simulation),
			})
			if err != nil {
				return err
			}
			for _, digest := range res.Summaries {
				printRunSummary(cmd.OutOrStdout(), digest)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSweep %s finished %d settings in %s\n",
				res.SweepID, len(res.Summaries), time.Duration(res.RuntimeMs)*time.Millisecond)

			return writeRunArtifacts(cmd, env, &out, "sweep-"+res.SweepID.String(), res.Results, res.Summaries)
		},
	}

	out.bind(cmd)
	cmd.Flags().BoolVar(&shared, "shared-stream", false, "Thread one random stream through every setting")
	return cmd
}

func newServeCmd(env *cliEnv) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.container.Connect(cmd.Context()); err != nil {
				return err
			}
			if port == "" {
				port = env.cfg.Server.Port
			}
			gin.SetMode(env.cfg.Server.GinMode)
			env.logger.Info("Starting gocoalesce server on port %s", port)
			return env.container.Router().Run(":" + port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT)")
	return cmd
}

func bindParams(cmd *cobra.Command, params *coalescent.Parameters) {
	cmd.Flags().Float64Var(&params.Tau0, "tau0", 0, "Deeper speciation time tau0")
	cmd.Flags().Float64Var(&params.Tau1, "tau1", 0, "Shallower speciation time tau1")
	cmd.Flags().Float64Var(&params.Theta, "theta", 0, "Scaled mutation rate theta")
	_ = cmd.MarkFlagRequired("tau0")
	_ = cmd.MarkFlagRequired("theta")
}

// progressObserver prints a line each time another tenth of the replicates
// has been sampled. Safe for parallel runs.
func progressObserver(cmd *cobra.Command, replicates int) app.ProgressObserver {
	step := int64(replicates / 10)
	if step == 0 {
		step = 1
	}
	var sampled atomic.Int64
	w := cmd.ErrOrStderr()
	return func(replicate int, stage simulation.Stage) {
		if replicate < 0 || stage != simulation.StageSampling {
			return
		}
		if n := sampled.Add(1); n%step == 0 {
			fmt.Fprintf(w, "  %d/%d replicates\n", n, replicates)
		}
	}
}

func writeRunArtifacts(cmd *cobra.Command, env *cliEnv, out *outputFlags, name string, results []*simulation.Result, summaries []*simulation.RunSummary) error {
	dir := out.outputDir(env.cfg)
	if out.xlsx {
		path := filepath.Join(dir, name+".xlsx")
		if err := env.container.Workbooks.WriteRuns(path, results, summaries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	}
	if out.report {
		return writeReport(cmd, &report.Report{Runs: summaries}, dir, name)
	}
	return nil
}

func writeReport(cmd *cobra.Command, r *report.Report, dir, name string) error {
	mdPath, htmlPath, err := r.WriteFiles(dir, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", mdPath, htmlPath)
	return nil
}

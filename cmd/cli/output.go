package main

import (
	"fmt"
	"io"
	"time"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"
)

func printProbabilities(w io.Writer, params coalescent.Parameters, probs coalescent.SiteProbabilities) {
	fmt.Fprintf(w, "Site-pattern probabilities for %s\n", params)
	if !params.Ordered() {
		fmt.Fprintf(w, "warning: tau0 < tau1, the vector may not be a distribution\n")
	}
	for i, p := range probs {
		fmt.Fprintf(w, "  p%d  %.10f\n", i, p)
	}
}

func printRunSummary(w io.Writer, s *simulation.RunSummary) {
	fmt.Fprintf(w, "\nRun %s  %s  n=%d  replicates=%d  (%s)\n",
		s.RunID, s.Settings.Params, s.Settings.Trials, s.Settings.Replicates, time.Duration(s.RuntimeMs)*time.Millisecond)
	fmt.Fprintf(w, "%-5s %12s %12s %12s %12s %12s %9s %7s %8s\n",
		"param", "true", "mean", "bias", "rmse", "width", "coverage", "usable", "excluded")
	for _, ps := range []simulation.ParameterSummary{s.Tau0, s.Tau1} {
		fmt.Fprintf(w, "%-5s %12.6g %12.6g %12.4g %12.4g %12.4g %9.4f %7d %8d\n",
			ps.Parameter, ps.True, ps.Mean, ps.Bias, ps.RMSE, ps.MeanIntervalWidth, ps.Coverage, ps.Usable, ps.Excluded)
	}
	if s.DegenerateVariances > 0 {
		fmt.Fprintf(w, "%d replicates had a negative variance clamped to zero\n", s.DegenerateVariances)
	}
}

func printTestSummary(w io.Writer, s *simulation.TestSummary) {
	fmt.Fprintf(w, "\nTest %s  tau0=%g tau1=%g theta=%g  n=%d  replicates=%d\n",
		s.RunID, s.Settings.Tau0, s.Settings.Tau1, s.Settings.Theta, s.Settings.Trials, s.Settings.Replicates)
	label := "power"
	if s.Settings.Tau1 == 0 {
		label = "type-I error"
	}
	fmt.Fprintf(w, "  %s: %.4f  (usable %d, excluded %d)\n", label, s.RejectionRate, s.Usable, s.Excluded)
	fmt.Fprintf(w, "  Z: mean %.4f, sd %.4f\n", s.MeanZ, s.StdDevZ)
	if s.DegenerateVariances > 0 {
		fmt.Fprintf(w, "%d replicates had a negative variance clamped to zero\n", s.DegenerateVariances)
	}
}

func printPowerCurve(w io.Writer, c *simulation.PowerCurve) {
	fmt.Fprintf(w, "\nPower of H0: tau1 = 0  tau0=%g theta=%g n=%d replicates=%d\n", c.Tau0, c.Theta, c.Trials, c.Replicates)
	fmt.Fprintf(w, "%12s %8s %7s %8s\n", "tau1", "power", "usable", "excluded")
	for _, p := range c.Points {
		fmt.Fprintf(w, "%12.6g %8.4f %7d %8d\n", p.Tau1, p.Power, p.Usable, p.Excluded)
	}
	if !c.Monotone(0.02) {
		fmt.Fprintf(w, "warning: power is not monotone in |tau1|\n")
	}
}

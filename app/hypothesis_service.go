package app

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gocoalesce/adapters/stats/sitepattern"
	"gocoalesce/domain/core"
	"gocoalesce/domain/run"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/ports"

	"golang.org/x/sync/errgroup"
)

const hypothesisStream = "hypothesis"

// HypothesisService runs the Wald test of H0: τ1 = 0 over simulated
// replicates and traces power curves across true τ1 values.
type HypothesisService struct {
	rngPort  ports.RNGPort
	logger   *internal.Logger
	observer ProgressObserver
}

// NewHypothesisService creates a hypothesis service
func NewHypothesisService(rngPort ports.RNGPort, logger *internal.Logger) *HypothesisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &HypothesisService{
		rngPort: rngPort,
		logger:  logger.With("hypothesis"),
	}
}

// SetObserver installs a progress observer; nil removes it.
func (h *HypothesisService) SetObserver(observer ProgressObserver) {
	h.observer = observer
}

// Test samples settings.Replicates replicates from (τ0, τ1, θ) and tests
// H0: τ1 = 0 in each. With τ1 = 0 the rejection rate estimates the type-I
// error; otherwise it estimates power. Stream handling follows
// SimulationService.Run.
func (h *HypothesisService) Test(ctx context.Context, settings simulation.TestSettings) (*simulation.TestResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var result *simulation.TestResult
	if settings.Workers > 1 {
		var err error
		if result, err = h.testParallel(ctx, settings); err != nil {
			return nil, err
		}
	} else {
		src, err := h.rngPort.SeededStream(ctx, hypothesisStream, settings.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to create random stream: %w", err)
		}
		if result, err = h.TestWithSource(ctx, settings, src); err != nil {
			return nil, err
		}
	}
	result.Fingerprint = run.ForTest(settings).Hash
	return result, nil
}

// TestWithSource runs the test sequentially on src, ignoring settings.Seed
// and settings.Workers.
func (h *HypothesisService) TestWithSource(ctx context.Context, settings simulation.TestSettings, src rand.Source) (*simulation.TestResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	runner, result, err := h.begin(settings)
	if err != nil {
		return nil, err
	}

	sampler := sitepattern.NewSampler(src)
	for i := 0; i < settings.Replicates; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := runner.TestReplicate(i, sampler)
		if err != nil {
			return nil, fmt.Errorf("replicate %d: %w", i, err)
		}
		h.accumulate(result, rec)
	}

	h.finish(result)
	return result, nil
}

func (h *HypothesisService) testParallel(ctx context.Context, settings simulation.TestSettings) (*simulation.TestResult, error) {
	runner, result, err := h.begin(settings)
	if err != nil {
		return nil, err
	}

	records := make([]simulation.TestStatisticRecord, settings.Replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.Workers)
	for i := 0; i < settings.Replicates; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := h.rngPort.Stream(gctx, hypothesisStream, i, settings.Seed)
			if err != nil {
				return fmt.Errorf("replicate %d: failed to create random stream: %w", i, err)
			}
			rec, err := runner.TestReplicate(i, sitepattern.NewSampler(src))
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		h.accumulate(result, rec)
	}
	h.finish(result)
	return result, nil
}

// PowerCurve runs Test once per τ1 in grid, all other settings taken from
// base. Every point reuses base.Seed, so neighbouring points are driven by
// the same draws and the curve is smoother than independent runs would give.
// Points are returned ordered by |τ1|.
func (h *HypothesisService) PowerCurve(ctx context.Context, base simulation.TestSettings, grid []float64) (*simulation.PowerCurve, error) {
	if len(grid) == 0 {
		return nil, core.NewInvalidParameterError("grid", "must contain at least one tau1 value")
	}
	values := append([]float64(nil), grid...)
	sort.SliceStable(values, func(i, j int) bool {
		return math.Abs(values[i]) < math.Abs(values[j])
	})

	params := base.Params()
	curve := &simulation.PowerCurve{
		Tau0:       params.Tau0,
		Theta:      params.Theta,
		Trials:     base.Trials,
		Replicates: base.Replicates,
		Points:     make([]simulation.PowerPoint, 0, len(values)),
	}
	for _, tau1 := range values {
		settings := base
		settings.Tau1 = tau1
		result, err := h.Test(ctx, settings)
		if err != nil {
			return nil, fmt.Errorf("power at tau1=%g: %w", tau1, err)
		}
		power := 0.0
		if result.Usable > 0 {
			power = result.RejectionRate()
		}
		curve.Points = append(curve.Points, simulation.PowerPoint{
			Tau1:     tau1,
			Power:    power,
			Usable:   result.Usable,
			Excluded: result.Excluded,
			RunID:    result.RunID,
		})
	}

	if !curve.Monotone(0.02) {
		h.logger.Warn("power curve is not monotone in |tau1|; consider more replicates")
	}
	return curve, nil
}

func (h *HypothesisService) begin(settings simulation.TestSettings) (*StageRunner, *simulation.TestResult, error) {
	params := settings.Params()
	if !params.Ordered() {
		h.logger.Warn("tau0=%g < tau1=%g: site-pattern probabilities assume tau0 >= tau1", params.Tau0, params.Tau1)
	}

	runner, err := NewStageRunner(params, settings.Trials, settings.ConfidenceLevel(), h.observer)
	if err != nil {
		return nil, nil, err
	}

	result := &simulation.TestResult{
		RunID:     core.NewRunID(),
		Settings:  settings,
		Records:   make([]simulation.TestStatisticRecord, 0, settings.Replicates),
		StartedAt: core.Now(),
	}
	h.logger.Info("test %s: H0 tau1=0 under %s n=%d replicates=%d",
		result.RunID, params, settings.Trials, settings.Replicates)
	h.notify(-1, simulation.StageIdle)
	return runner, result, nil
}

func (h *HypothesisService) accumulate(result *simulation.TestResult, rec simulation.TestStatisticRecord) {
	h.notify(rec.Replicate, simulation.StageAccumulating)
	result.Records = append(result.Records, rec)
	if rec.Clamped {
		result.DegenerateVariances++
		h.logger.Warn("replicate %d: negative delta variance clamped to zero", rec.Replicate)
	}
	if rec.Outcome != simulation.OutcomeOK {
		result.Excluded++
		if result.Exclusions == nil {
			result.Exclusions = make(map[simulation.Outcome]int)
		}
		result.Exclusions[rec.Outcome]++
		h.logger.Debug("replicate %d excluded: %s", rec.Replicate, rec.Reason)
		return
	}
	result.Usable++
	if rec.Reject {
		result.Rejections++
	}
}

func (h *HypothesisService) finish(result *simulation.TestResult) {
	result.FinishedAt = core.Now()
	h.notify(-1, simulation.StageDone)
	h.logger.Info("test %s done in %s: rejection rate %.4f (usable %d, excluded %d)",
		result.RunID, result.FinishedAt.Since(result.StartedAt),
		result.RejectionRate(), result.Usable, result.Excluded)
}

func (h *HypothesisService) notify(replicate int, stage simulation.Stage) {
	if h.observer != nil {
		h.observer(replicate, stage)
	}
}

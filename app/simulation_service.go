package app

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gocoalesce/adapters/stats/sitepattern"
	"gocoalesce/domain/core"
	"gocoalesce/domain/run"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/ports"

	"golang.org/x/sync/errgroup"
)

const simulationStream = "simulation"

// SimulationService runs the coverage study for one parameter setting:
// replicate after replicate it samples frequencies, estimates τ0 and τ1,
// builds their intervals and tallies coverage.
type SimulationService struct {
	rngPort  ports.RNGPort
	logger   *internal.Logger
	observer ProgressObserver
}

// NewSimulationService creates a simulation service
func NewSimulationService(rngPort ports.RNGPort, logger *internal.Logger) *SimulationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SimulationService{
		rngPort: rngPort,
		logger:  logger.With("simulation"),
	}
}

// SetObserver installs a progress observer; nil removes it.
func (s *SimulationService) SetObserver(observer ProgressObserver) {
	s.observer = observer
}

// Run executes one setting. With Workers <= 1 every replicate draws from a
// single stream seeded by settings.Seed, in replicate order. With more
// workers each replicate gets its own stream derived from (seed, replicate),
// which is reproducible but yields different draws than the sequential mode.
func (s *SimulationService) Run(ctx context.Context, settings simulation.Settings) (*simulation.Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var result *simulation.Result
	if settings.Workers > 1 {
		var err error
		if result, err = s.runParallel(ctx, settings); err != nil {
			return nil, err
		}
	} else {
		src, err := s.rngPort.SeededStream(ctx, simulationStream, settings.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to create random stream: %w", err)
		}
		if result, err = s.RunWithSource(ctx, settings, src); err != nil {
			return nil, err
		}
	}

	fp := run.ForSimulation(settings)
	result.Fingerprint = fp.Hash
	s.logger.Debug("run %s fingerprint %s (%s stream)", result.RunID, fp.Hash.Short(), fp.Stream)
	return result, nil
}

// RunWithSource executes one setting sequentially on src, ignoring
// settings.Seed and settings.Workers. The stream is left advanced so a sweep
// can thread it through consecutive settings. The caller owns the result's
// fingerprint since only it knows where src came from.
func (s *SimulationService) RunWithSource(ctx context.Context, settings simulation.Settings, src rand.Source) (*simulation.Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	runner, result, err := s.begin(settings)
	if err != nil {
		return nil, err
	}

	sampler := sitepattern.NewSampler(src)
	for i := 0; i < settings.Replicates; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := runner.RunReplicate(i, sampler)
		if err != nil {
			return nil, fmt.Errorf("replicate %d: %w", i, err)
		}
		s.accumulate(result, rec)
	}

	s.finish(result)
	return result, nil
}

func (s *SimulationService) runParallel(ctx context.Context, settings simulation.Settings) (*simulation.Result, error) {
	runner, result, err := s.begin(settings)
	if err != nil {
		return nil, err
	}

	records := make([]simulation.EstimateRecord, settings.Replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.Workers)
	for i := 0; i < settings.Replicates; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := s.rngPort.Stream(gctx, simulationStream, i, settings.Seed)
			if err != nil {
				return fmt.Errorf("replicate %d: failed to create random stream: %w", i, err)
			}
			rec, err := runner.RunReplicate(i, sitepattern.NewSampler(src))
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
		s.accumulate(result, rec)
	}
	s.finish(result)
	return result, nil
}

func (s *SimulationService) begin(settings simulation.Settings) (*StageRunner, *simulation.Result, error) {
	params := settings.Params
	if !params.Ordered() {
		s.logger.Warn("tau0=%g < tau1=%g: site-pattern probabilities assume tau0 >= tau1", params.Tau0, params.Tau1)
	}

	runner, err := NewStageRunner(params, settings.Trials, settings.ConfidenceLevel(), s.observer)
	if err != nil {
		return nil, nil, err
	}

	result := &simulation.Result{
		RunID:         core.NewRunID(),
		Settings:      settings,
		Probabilities: runner.Probabilities(),
		Records:       make([]simulation.EstimateRecord, 0, settings.Replicates),
		StartedAt:     core.Now(),
	}
	s.logger.Info("run %s: %s n=%d replicates=%d workers=%d",
		result.RunID, params, settings.Trials, settings.Replicates, max(settings.Workers, 1))
	s.notify(-1, simulation.StageIdle)
	return runner, result, nil
}

func (s *SimulationService) accumulate(result *simulation.Result, rec simulation.EstimateRecord) {
	s.notify(rec.Replicate, simulation.StageAccumulating)
	result.Records = append(result.Records, rec)
	result.Tau0Coverage.Add(rec.Tau0)
	result.Tau1Coverage.Add(rec.Tau1)

	for _, est := range []simulation.ParameterEstimate{rec.Tau0, rec.Tau1} {
		if est.Clamped {
			result.DegenerateVariances++
			s.logger.Warn("replicate %d: negative delta variance clamped to zero", rec.Replicate)
		}
		if !est.Usable() {
			s.logger.Debug("replicate %d excluded: %s", rec.Replicate, est.Reason)
		}
	}
}

func (s *SimulationService) finish(result *simulation.Result) {
	result.FinishedAt = core.Now()
	s.notify(-1, simulation.StageDone)
	s.logger.Info("run %s done in %s: coverage tau0=%.4f (usable %d, excluded %d) tau1=%.4f (usable %d, excluded %d)",
		result.RunID, result.FinishedAt.Since(result.StartedAt),
		result.Tau0Coverage.Frequency(), result.Tau0Coverage.Usable, result.Tau0Coverage.Excluded,
		result.Tau1Coverage.Frequency(), result.Tau1Coverage.Usable, result.Tau1Coverage.Excluded)
}

func (s *SimulationService) notify(replicate int, stage simulation.Stage) {
	if s.observer != nil {
		s.observer(replicate, stage)
	}
}

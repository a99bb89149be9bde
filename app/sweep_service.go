package app

import (
	"context"
	"fmt"
	"time"

	"gocoalesce/domain/core"
	"gocoalesce/domain/run"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/internal/summary"
	"gocoalesce/ports"
)

const sweepStream = "sweep"

// SweepService runs the simulation over a list of settings in order and
// digests every result.
type SweepService struct {
	simulations *SimulationService
	runRepo     ports.RunRepository // optional
	logger      *internal.Logger
}

// SweepRequest defines the inputs of a parameter sweep
type SweepRequest struct {
	Settings []simulation.Settings `json:"settings"`

	// SharedStream threads one stream seeded by Seed through every setting
	// sequentially, so the whole sweep is reproducible from one seed. Each
	// setting's own Seed and Workers are then ignored.
	SharedStream bool   `json:"shared_stream"`
	Seed         uint64 `json:"seed"`

	SweepID core.ID `json:"sweep_id,omitempty"` // optional, will be generated if empty
}

// SweepResult contains the complete output of a sweep
type SweepResult struct {
	SweepID   core.ID                  `json:"sweep_id"`
	Results   []*simulation.Result     `json:"-"`
	Summaries []*simulation.RunSummary `json:"summaries"`
	RuntimeMs int64                    `json:"runtime_ms"`
}

// NewSweepService creates a sweep service. runRepo may be nil, in which case
// summaries are not persisted.
func NewSweepService(simulations *SimulationService, runRepo ports.RunRepository, logger *internal.Logger) *SweepService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SweepService{
		simulations: simulations,
		runRepo:     runRepo,
		logger:      logger.With("sweep"),
	}
}

// Run executes every setting of the request in order. All settings are
// validated before the first one runs.
func (s *SweepService) Run(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	startTime := time.Now()
	if len(req.Settings) == 0 {
		return nil, core.NewInvalidParameterError("settings", "sweep needs at least one setting")
	}
	for i, settings := range req.Settings {
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("setting %d: %w", i, err)
		}
	}

	sweepID := req.SweepID
	if sweepID.IsEmpty() {
		sweepID = core.NewID()
	}
	s.logger.Info("sweep %s: %d settings (shared stream: %t)", sweepID, len(req.Settings), req.SharedStream)

	execute := s.simulations.Run
	if req.SharedStream {
		src, err := s.simulations.rngPort.SeededStream(ctx, sweepStream, req.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to create random stream: %w", err)
		}
		offset := 0
		var prev core.Hash
		execute = func(ctx context.Context, settings simulation.Settings) (*simulation.Result, error) {
			result, err := s.simulations.RunWithSource(ctx, settings, src)
			if err != nil {
				return nil, err
			}
			result.Fingerprint = run.ForSharedStream(settings, req.Seed, offset, prev).Hash
			prev = result.Fingerprint
			offset++
			return result, nil
		}
	}

	out := &SweepResult{
		SweepID:   sweepID,
		Results:   make([]*simulation.Result, 0, len(req.Settings)),
		Summaries: make([]*simulation.RunSummary, 0, len(req.Settings)),
	}
	for i, settings := range req.Settings {
		result, err := execute(ctx, settings)
		if err != nil {
			return nil, fmt.Errorf("setting %d (%s): %w", i, settings.Params, err)
		}
		digest, err := summary.Summarize(result)
		if err != nil {
			return nil, fmt.Errorf("setting %d: failed to summarize: %w", i, err)
		}
		if s.runRepo != nil {
			if err := s.runRepo.SaveRun(ctx, digest); err != nil {
				return nil, fmt.Errorf("setting %d: failed to store run: %w", i, err)
			}
		}
		out.Results = append(out.Results, result)
		out.Summaries = append(out.Summaries, digest)
	}

	out.RuntimeMs = time.Since(startTime).Milliseconds()
	s.logger.Info("sweep %s done in %dms", sweepID, out.RuntimeMs)
	return out, nil
}

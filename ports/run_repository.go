package ports

import (
	"context"

	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
)

// RunRepository stores run digests for later comparison across settings.
// Per-replicate records are not persisted; exports carry those.
type RunRepository interface {
	SaveRun(ctx context.Context, summary *simulation.RunSummary) error
	GetRun(ctx context.Context, runID core.RunID) (*simulation.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]*simulation.RunSummary, error)

	// SavePowerCurve stores a curve and its points under a new identifier.
	SavePowerCurve(ctx context.Context, curve *simulation.PowerCurve) (core.ID, error)
	GetPowerCurve(ctx context.Context, id core.ID) (*simulation.PowerCurve, error)
}

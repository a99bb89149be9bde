package migration

import (
	"context"

	"gocoalesce/internal"
	"gocoalesce/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *internal.Logger) *MigrationRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger.With("migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSimulationRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create simulation_runs table", err)
	}

	if err := r.createParameterSummariesTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create parameter_summaries table", err)
	}

	if err := r.createPowerCurvesTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create power_curves table", err)
	}

	if err := r.createPowerPointsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create power_points table", err)
	}

	r.createIndexes(ctx, db)
	return nil
}

// Seeds are uint64 and stored bit-cast into BIGINT.
func (r *MigrationRunner) createSimulationRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS simulation_runs (
			id UUID PRIMARY KEY,
			tau0 DOUBLE PRECISION NOT NULL,
			tau1 DOUBLE PRECISION NOT NULL,
			theta DOUBLE PRECISION NOT NULL,
			trials INTEGER NOT NULL,
			replicates INTEGER NOT NULL,
			seed BIGINT NOT NULL,
			workers INTEGER NOT NULL DEFAULT 1,
			confidence DOUBLE PRECISION NOT NULL,
			degenerate_variances INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL DEFAULT '',
			runtime_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createParameterSummariesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS parameter_summaries (
			run_id UUID NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
			parameter VARCHAR(16) NOT NULL,
			true_value DOUBLE PRECISION NOT NULL,
			usable INTEGER NOT NULL,
			excluded INTEGER NOT NULL,
			mean DOUBLE PRECISION,
			bias DOUBLE PRECISION,
			variance DOUBLE PRECISION,
			std_dev DOUBLE PRECISION,
			rmse DOUBLE PRECISION,
			median DOUBLE PRECISION,
			q025 DOUBLE PRECISION,
			q975 DOUBLE PRECISION,
			mean_delta_variance DOUBLE PRECISION,
			empirical_statistic_variance DOUBLE PRECISION,
			calibration_ratio DOUBLE PRECISION,
			mean_interval_width DOUBLE PRECISION,
			coverage DOUBLE PRECISION,
			PRIMARY KEY (run_id, parameter)
		)
	`)
	return err
}

func (r *MigrationRunner) createPowerCurvesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS power_curves (
			id UUID PRIMARY KEY,
			tau0 DOUBLE PRECISION NOT NULL,
			theta DOUBLE PRECISION NOT NULL,
			trials INTEGER NOT NULL,
			replicates INTEGER NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createPowerPointsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS power_points (
			curve_id UUID NOT NULL REFERENCES power_curves(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			tau1 DOUBLE PRECISION NOT NULL,
			power DOUBLE PRECISION NOT NULL,
			usable INTEGER NOT NULL,
			excluded INTEGER NOT NULL,
			run_id UUID,
			PRIMARY KEY (curve_id, position)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON simulation_runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_runs_params ON simulation_runs(tau0, tau1, theta, trials)",
		"CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON simulation_runs(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_curves_created_at ON power_curves(created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.logger.Warn("failed to create index: %v", err)
		}
	}
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal/errors"
	"gocoalesce/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	ID                  string    `db:"id"`
	Tau0                float64   `db:"tau0"`
	Tau1                float64   `db:"tau1"`
	Theta               float64   `db:"theta"`
	Trials              int       `db:"trials"`
	Replicates          int       `db:"replicates"`
	Seed                int64     `db:"seed"`
	Workers             int       `db:"workers"`
	Confidence          float64   `db:"confidence"`
	DegenerateVariances int       `db:"degenerate_variances"`
	Fingerprint         string    `db:"fingerprint"`
	RuntimeMs           int64     `db:"runtime_ms"`
	CreatedAt           time.Time `db:"created_at"`
}

type parameterRow struct {
	RunID string `db:"run_id"`
	simulation.ParameterSummary
}

type curveRow struct {
	ID         string    `db:"id"`
	Tau0       float64   `db:"tau0"`
	Theta      float64   `db:"theta"`
	Trials     int       `db:"trials"`
	Replicates int       `db:"replicates"`
	CreatedAt  time.Time `db:"created_at"`
}

type pointRow struct {
	CurveID  string         `db:"curve_id"`
	Position int            `db:"position"`
	Tau1     float64        `db:"tau1"`
	Power    float64        `db:"power"`
	Usable   int            `db:"usable"`
	Excluded int            `db:"excluded"`
	RunID    sql.NullString `db:"run_id"`
}

// SaveRun stores a run and its two parameter summaries in one transaction
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, summary *simulation.RunSummary) error {
	s := summary.Settings
	row := runRow{
		ID:                  summary.RunID.String(),
		Tau0:                s.Params.Tau0,
		Tau1:                s.Params.Tau1,
		Theta:               s.Params.Theta,
		Trials:              s.Trials,
		Replicates:          s.Replicates,
		Seed:                int64(s.Seed),
		Workers:             max(s.Workers, 1),
		Confidence:          s.ConfidenceLevel(),
		DegenerateVariances: summary.DegenerateVariances,
		Fingerprint:         summary.Fingerprint.String(),
		RuntimeMs:           summary.RuntimeMs,
		CreatedAt:           summary.CreatedAt.Time(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO simulation_runs (
			id, tau0, tau1, theta, trials, replicates, seed, workers,
			confidence, degenerate_variances, fingerprint, runtime_ms, created_at
		) VALUES (
			:id, :tau0, :tau1, :theta, :trials, :replicates, :seed, :workers,
			:confidence, :degenerate_variances, :fingerprint, :runtime_ms, :created_at
		)`, row); err != nil {
		return errors.DatabaseError("failed to insert simulation run", err)
	}

	for _, ps := range []simulation.ParameterSummary{summary.Tau0, summary.Tau1} {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO parameter_summaries (
				run_id, parameter, true_value, usable, excluded, mean, bias, variance,
				std_dev, rmse, median, q025, q975, mean_delta_variance,
				empirical_statistic_variance, calibration_ratio, mean_interval_width, coverage
			) VALUES (
				:run_id, :parameter, :true_value, :usable, :excluded, :mean, :bias, :variance,
				:std_dev, :rmse, :median, :q025, :q975, :mean_delta_variance,
				:empirical_statistic_variance, :calibration_ratio, :mean_interval_width, :coverage
			)`, parameterRow{RunID: row.ID, ParameterSummary: ps}); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert %s summary", ps.Parameter), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit simulation run", err)
	}
	return nil
}

// GetRun retrieves a run by ID; it returns nil when the run does not exist
func (r *RunRepositoryImpl) GetRun(ctx context.Context, runID core.RunID) (*simulation.RunSummary, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM simulation_runs WHERE id = $1`, runID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.DatabaseError("failed to get simulation run", err)
	}

	summaries, err := r.loadRuns(ctx, []runRow{row})
	if err != nil {
		return nil, err
	}
	return summaries[0], nil
}

// ListRuns returns the most recent runs first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*simulation.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit); err != nil {
		return nil, errors.DatabaseError("failed to list simulation runs", err)
	}
	if len(rows) == 0 {
		return []*simulation.RunSummary{}, nil
	}
	return r.loadRuns(ctx, rows)
}

func (r *RunRepositoryImpl) loadRuns(ctx context.Context, rows []runRow) ([]*simulation.RunSummary, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	var params []parameterRow
	if err := r.db.SelectContext(ctx, &params, `
		SELECT * FROM parameter_summaries WHERE run_id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, errors.DatabaseError("failed to load parameter summaries", err)
	}
	byRun := make(map[string][]simulation.ParameterSummary, len(rows))
	for _, p := range params {
		byRun[p.RunID] = append(byRun[p.RunID], p.ParameterSummary)
	}

	out := make([]*simulation.RunSummary, 0, len(rows))
	for _, row := range rows {
		summary := &simulation.RunSummary{
			RunID: core.RunID(row.ID),
			Settings: simulation.Settings{
				Params:     coalescent.Parameters{Tau0: row.Tau0, Tau1: row.Tau1, Theta: row.Theta},
				Trials:     row.Trials,
				Replicates: row.Replicates,
				Seed:       uint64(row.Seed),
				Workers:    row.Workers,
				Confidence: row.Confidence,
			},
			DegenerateVariances: row.DegenerateVariances,
			Fingerprint:         core.Hash(row.Fingerprint),
			RuntimeMs:           row.RuntimeMs,
			CreatedAt:           core.NewTimestamp(row.CreatedAt),
		}
		for _, ps := range byRun[row.ID] {
			if ps.Parameter == coalescent.Tau1 {
				summary.Tau1 = ps
			} else {
				summary.Tau0 = ps
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

// SavePowerCurve stores a curve with its points in order
func (r *RunRepositoryImpl) SavePowerCurve(ctx context.Context, curve *simulation.PowerCurve) (core.ID, error) {
	id := core.NewID()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO power_curves (id, tau0, theta, trials, replicates, created_at)
		VALUES (:id, :tau0, :theta, :trials, :replicates, :created_at)`,
		curveRow{
			ID:         id.String(),
			Tau0:       curve.Tau0,
			Theta:      curve.Theta,
			Trials:     curve.Trials,
			Replicates: curve.Replicates,
			CreatedAt:  time.Now(),
		}); err != nil {
		return "", errors.DatabaseError("failed to insert power curve", err)
	}

	for i, p := range curve.Points {
		row := pointRow{
			CurveID:  id.String(),
			Position: i,
			Tau1:     p.Tau1,
			Power:    p.Power,
			Usable:   p.Usable,
			Excluded: p.Excluded,
			RunID:    sql.NullString{String: p.RunID.String(), Valid: p.RunID != ""},
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO power_points (curve_id, position, tau1, power, usable, excluded, run_id)
			VALUES (:curve_id, :position, :tau1, :power, :usable, :excluded, :run_id)`, row); err != nil {
			return "", errors.DatabaseError(fmt.Sprintf("failed to insert power point %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.DatabaseError("failed to commit power curve", err)
	}
	return id, nil
}

// GetPowerCurve retrieves a curve by ID; it returns nil when it does not exist
func (r *RunRepositoryImpl) GetPowerCurve(ctx context.Context, id core.ID) (*simulation.PowerCurve, error) {
	var row curveRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM power_curves WHERE id = $1`, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.DatabaseError("failed to get power curve", err)
	}

	var points []pointRow
	if err := r.db.SelectContext(ctx, &points, `
		SELECT * FROM power_points WHERE curve_id = $1 ORDER BY position`, id.String()); err != nil {
		return nil, errors.DatabaseError("failed to load power points", err)
	}

	curve := &simulation.PowerCurve{
		Tau0:       row.Tau0,
		Theta:      row.Theta,
		Trials:     row.Trials,
		Replicates: row.Replicates,
		Points:     make([]simulation.PowerPoint, 0, len(points)),
	}
	for _, p := range points {
		curve.Points = append(curve.Points, simulation.PowerPoint{
			Tau1:     p.Tau1,
			Power:    p.Power,
			Usable:   p.Usable,
			Excluded: p.Excluded,
			RunID:    core.RunID(p.RunID.String),
		})
	}
	return curve, nil
}

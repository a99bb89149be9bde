package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random streams for deterministic simulation runs
type RNGPort interface {
	// SeededStream creates the single stream a sequential run draws from.
	// Every replicate and every setting that shares it advances it in order.
	SeededStream(ctx context.Context, name string, seed uint64) (rand.Source, error)

	// Stream creates an independent stream for one replicate of a named run.
	// The same (name, replicate, seed) always yields the same sequence, so
	// parallel runs are reproducible regardless of scheduling.
	Stream(ctx context.Context, name string, replicate int, seed uint64) (rand.Source, error)
}

package rng

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// PCGAdapter implements ports.RNGPort with math/rand/v2 PCG generators
type PCGAdapter struct{}

// NewPCGAdapter creates a new PCG-backed RNG adapter
func NewPCGAdapter() *PCGAdapter {
	return &PCGAdapter{}
}

// SeededStream creates the sequential stream for a named run
func (a *PCGAdapter) SeededStream(ctx context.Context, name string, seed uint64) (rand.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.NewPCG(seed, hashString(name)), nil
}

// Stream creates the stream of one replicate. The name hash occupies the
// high half of the second PCG word and the replicate index the low half.
func (a *PCGAdapter) Stream(ctx context.Context, name string, replicate int, seed uint64) (rand.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if replicate < 0 {
		return nil, fmt.Errorf("replicate index must be non-negative, got %d", replicate)
	}
	stream := hashString(name)<<32 | uint64(uint32(replicate))
	return rand.NewPCG(seed, stream^streamSalt), nil
}

// streamSalt keeps replicate streams apart from the sequential stream of
// the same name.
const streamSalt = 0x9e3779b97f4a7c15

// hashString creates a djb2 hash for deterministic stream selection
func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

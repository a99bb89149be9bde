// Package run identifies simulation runs by everything that determines their
// replicate draws, so two runs with equal fingerprints produce identical
// records.
package run

import (
	"fmt"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
)

// CodeVersion must change whenever sampling or estimation changes the
// records produced for fixed settings.
const CodeVersion = "1"

// StreamMode names how replicates draw their randomness
type StreamMode string

const (
	// StreamSequential draws every replicate from one stream in order
	StreamSequential StreamMode = "sequential"
	// StreamPerReplicate derives one stream per replicate, independent of
	// the worker count
	StreamPerReplicate StreamMode = "per_replicate"
	// StreamShared continues a stream threaded through a sweep
	StreamShared StreamMode = "shared"
)

// Kinds of run
const (
	KindSimulation = "simulation"
	KindTest       = "test"
)

// Fingerprint ensures deterministic replay
type Fingerprint struct {
	Kind        string                `json:"kind"`
	Params      coalescent.Parameters `json:"params"`
	Trials      int                   `json:"trials"`
	Replicates  int                   `json:"replicates"`
	Confidence  float64               `json:"confidence"`
	Seed        uint64                `json:"seed"`
	Stream      StreamMode            `json:"stream"`
	Offset      int                   `json:"offset"`          // position within a shared stream
	Prev        core.Hash             `json:"prev,omitempty"` // fingerprint of the previous setting on a shared stream
	CodeVersion string                `json:"code_version"`
	Hash        core.Hash             `json:"hash"` // hash of all above
}

// NewFingerprint creates a fingerprint from the determinism parameters
func NewFingerprint(kind string, params coalescent.Parameters, trials, replicates int,
	confidence float64, seed uint64, stream StreamMode, offset int, prev core.Hash) Fingerprint {

	fp := Fingerprint{
		Kind:        kind,
		Params:      params,
		Trials:      trials,
		Replicates:  replicates,
		Confidence:  confidence,
		Seed:        seed,
		Stream:      stream,
		Offset:      offset,
		Prev:        prev,
		CodeVersion: CodeVersion,
	}
	fp.Hash = fp.compute()
	return fp
}

// ForSimulation fingerprints a simulation run started with Run
func ForSimulation(s simulation.Settings) Fingerprint {
	return NewFingerprint(KindSimulation, s.Params, s.Trials, s.Replicates,
		s.ConfidenceLevel(), s.Seed, modeFor(s.Workers), 0, "")
}

// ForSharedStream fingerprints the setting at position offset of a sweep
// whose shared stream was seeded with seed. Its draws depend on what every
// earlier setting consumed, so prev must be the fingerprint of the setting
// at offset-1 (empty for the first), chaining the whole prefix in.
func ForSharedStream(s simulation.Settings, seed uint64, offset int, prev core.Hash) Fingerprint {
	return NewFingerprint(KindSimulation, s.Params, s.Trials, s.Replicates,
		s.ConfidenceLevel(), seed, StreamShared, offset, prev)
}

// ForTest fingerprints a hypothesis-test run
func ForTest(s simulation.TestSettings) Fingerprint {
	return NewFingerprint(KindTest, s.Params(), s.Trials, s.Replicates,
		s.ConfidenceLevel(), s.Seed, modeFor(s.Workers), 0, "")
}

func modeFor(workers int) StreamMode {
	if workers > 1 {
		return StreamPerReplicate
	}
	return StreamSequential
}

// compute hashes a canonical string of every determinism parameter. Floats
// use %v so that 0.001 and 1e-3 agree.
func (f Fingerprint) compute() core.Hash {
	data := fmt.Sprintf("kind:%s|tau0:%v|tau1:%v|theta:%v|n:%d|reps:%d|conf:%v|seed:%d|stream:%s|offset:%d|prev:%s|code:%s",
		f.Kind, f.Params.Tau0, f.Params.Tau1, f.Params.Theta, f.Trials, f.Replicates,
		f.Confidence, f.Seed, f.Stream, f.Offset, f.Prev, f.CodeVersion)
	return core.NewHash([]byte(data))
}

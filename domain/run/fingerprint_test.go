package run

import (
	"testing"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"

	"github.com/stretchr/testify/assert"
)

func baseSettings() simulation.Settings {
	return simulation.Settings{
		Params:     coalescent.Parameters{Tau0: 0.002, Tau1: 0.001, Theta: 0.001},
		Trials:     100000,
		Replicates: 1000,
		Seed:       42,
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	fp1 := ForSimulation(baseSettings())
	fp2 := ForSimulation(baseSettings())
	assert.Equal(t, fp1.Hash, fp2.Hash)
	assert.Len(t, fp1.Hash.String(), 64)
	assert.Equal(t, StreamSequential, fp1.Stream)
	assert.Equal(t, CodeVersion, fp1.CodeVersion)
}

func TestFingerprintDefaultConfidence(t *testing.T) {
	explicit := baseSettings()
	explicit.Confidence = simulation.DefaultConfidence
	assert.Equal(t, ForSimulation(baseSettings()).Hash, ForSimulation(explicit).Hash)
}

func TestFingerprintWorkerCount(t *testing.T) {
	two, eight := baseSettings(), baseSettings()
	two.Workers, eight.Workers = 2, 8

	assert.Equal(t, ForSimulation(two).Hash, ForSimulation(eight).Hash)
	assert.NotEqual(t, ForSimulation(baseSettings()).Hash, ForSimulation(two).Hash)
}

func TestFingerprintUnique(t *testing.T) {
	base := ForSimulation(baseSettings()).Hash

	tests := []struct {
		name   string
		mutate func(*simulation.Settings)
	}{
		{"tau0", func(s *simulation.Settings) { s.Params.Tau0 = 0.003 }},
		{"tau1", func(s *simulation.Settings) { s.Params.Tau1 = 0 }},
		{"theta", func(s *simulation.Settings) { s.Params.Theta = 0.002 }},
		{"trials", func(s *simulation.Settings) { s.Trials = 10000 }},
		{"replicates", func(s *simulation.Settings) { s.Replicates = 999 }},
		{"seed", func(s *simulation.Settings) { s.Seed = 43 }},
		{"confidence", func(s *simulation.Settings) { s.Confidence = 0.9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSettings()
			tt.mutate(&s)
			assert.NotEqual(t, base, ForSimulation(s).Hash)
		})
	}
}

func TestSharedStreamOffsets(t *testing.T) {
	s := baseSettings()
	first := ForSharedStream(s, 7, 0, "")
	second := ForSharedStream(s, 7, 1, first.Hash)

	assert.NotEqual(t, first.Hash, second.Hash)
	assert.Equal(t, uint64(7), first.Seed)
	assert.Equal(t, StreamShared, first.Stream)
	assert.Equal(t, first.Hash, second.Prev)
}

func TestSharedStreamChainsPrevious(t *testing.T) {
	s := baseSettings()
	other := baseSettings()
	other.Params.Tau0 = 0.003

	viaS := ForSharedStream(s, 7, 1, ForSharedStream(s, 7, 0, "").Hash)
	viaOther := ForSharedStream(s, 7, 1, ForSharedStream(other, 7, 0, "").Hash)
	assert.NotEqual(t, viaS.Hash, viaOther.Hash)
	assert.Equal(t, viaS.Hash, ForSharedStream(s, 7, 1, ForSharedStream(s, 7, 0, "").Hash).Hash)
}

func TestTestFingerprintUsesReferenceDepth(t *testing.T) {
	implicit := simulation.TestSettings{Theta: 0.005, Trials: 1000, Replicates: 10, Seed: 1}
	explicit := implicit
	explicit.Tau0 = simulation.DefaultReferenceTau0

	assert.Equal(t, ForTest(implicit).Hash, ForTest(explicit).Hash)
	assert.NotEqual(t, ForTest(implicit).Hash, ForSimulation(simulation.Settings{
		Params: implicit.Params(), Trials: 1000, Replicates: 10, Seed: 1,
	}).Hash)
}

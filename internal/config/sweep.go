package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal/errors"

	"gopkg.in/yaml.v3"
)

// SweepFile is a YAML sweep definition:
//
//	seed: 42
//	shared_stream: true
//	defaults:
//	  trials: 100000
//	  replicates: 1000
//	settings:
//	  - {tau0: 0.002, tau1: 0.001, theta: 0.001}
//	  - {tau0: 0.004, tau1: 0.002, theta: 0.001, trials: 10000}
type SweepFile struct {
	Seed         *uint64         `yaml:"seed"`
	SharedStream bool            `yaml:"shared_stream"`
	Defaults     RunDefaults     `yaml:"defaults"`
	Settings     []SweepSettings `yaml:"settings"`
}

// RunDefaults override the environment defaults for every setting in a
// sweep. Zero values leave the environment default in place.
type RunDefaults struct {
	Trials     int     `yaml:"trials"`
	Replicates int     `yaml:"replicates"`
	Workers    int     `yaml:"workers"`
	Confidence float64 `yaml:"confidence"`
}

// SweepSettings is one row of a sweep
type SweepSettings struct {
	Tau0  float64 `yaml:"tau0"`
	Tau1  float64 `yaml:"tau1"`
	Theta float64 `yaml:"theta"`
	Seed  *uint64 `yaml:"seed"`
	RunDefaults `yaml:",inline"`
}

// LoadSweepFile reads and parses a sweep definition
func LoadSweepFile(path string) (*SweepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sweep file %s", path)
	}
	return ParseSweep(data)
}

// ParseSweep parses a YAML sweep definition. Unknown keys are rejected.
func ParseSweep(data []byte) (*SweepFile, error) {
	var file SweepFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, &errors.AppError{Code: errors.CodeConfigInvalid, Message: "malformed sweep file", Cause: err}
	}
	if len(file.Settings) == 0 {
		return nil, errors.ConfigInvalid("sweep file lists no settings")
	}
	return &file, nil
}

// BaseSeed returns the sweep seed, falling back to the environment default
func (f *SweepFile) BaseSeed(defaults SimulationConfig) uint64 {
	if f.Seed != nil {
		return *f.Seed
	}
	return defaults.Seed
}

// Resolve expands the sweep rows into simulation settings. Per-row values
// win over the file defaults, which win over the environment.
func (f *SweepFile) Resolve(defaults SimulationConfig) ([]simulation.Settings, error) {
	base := f.BaseSeed(defaults)
	out := make([]simulation.Settings, 0, len(f.Settings))
	for i, row := range f.Settings {
		s := simulation.Settings{
			Params:     coalescent.Parameters{Tau0: row.Tau0, Tau1: row.Tau1, Theta: row.Theta},
			Trials:     pickInt(row.Trials, f.Defaults.Trials, defaults.Trials),
			Replicates: pickInt(row.Replicates, f.Defaults.Replicates, defaults.Replicates),
			Workers:    pickInt(row.Workers, f.Defaults.Workers, defaults.Workers),
			Confidence: pickFloat(row.Confidence, f.Defaults.Confidence, defaults.Confidence),
			Seed:       base,
		}
		if row.Seed != nil {
			s.Seed = *row.Seed
		}
		if err := s.Validate(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("sweep setting %d", i+1))
		}
		out = append(out, s)
	}
	return out, nil
}

func pickInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func pickFloat(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

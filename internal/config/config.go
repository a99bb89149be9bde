package config

import (
	"fmt"
	"os"
	"strconv"

	"gocoalesce/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Simulation SimulationConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Paths      PathConfig
	LogLevel   string
}

// SimulationConfig holds defaults for simulation and hypothesis-test runs
type SimulationConfig struct {
	Seed          uint64
	Replicates    int
	Trials        int
	Workers       int
	Confidence    float64
	ReferenceTau0 float64
}

// DatabaseConfig holds database connection settings. An empty URL disables
// persistence.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether run summaries should be stored
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	simConfig, err := loadSimulationConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load simulation configuration")
	}

	config := &Config{
		Simulation: *simConfig,
		Database:   DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths: PathConfig{
			OutputDir: getEnvOrDefault("SIM_OUTPUT_DIR", "./output"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadSimulationConfig() (*SimulationConfig, error) {
	seed, err := getEnvUint64OrDefault("SIM_SEED", 20240101)
	if err != nil {
		return nil, err
	}
	replicates, err := getEnvIntOrDefault("SIM_REPLICATES", 10000)
	if err != nil {
		return nil, err
	}
	trials, err := getEnvIntOrDefault("SIM_TRIALS", 100000)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvIntOrDefault("SIM_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	confidence, err := getEnvFloatOrDefault("SIM_CONFIDENCE", 0.95)
	if err != nil {
		return nil, err
	}
	referenceTau0, err := getEnvFloatOrDefault("SIM_REFERENCE_TAU0", 0.001)
	if err != nil {
		return nil, err
	}

	return &SimulationConfig{
		Seed:          seed,
		Replicates:    replicates,
		Trials:        trials,
		Workers:       workers,
		Confidence:    confidence,
		ReferenceTau0: referenceTau0,
	}, nil
}

func validateConfig(config *Config) error {
	sim := config.Simulation
	if sim.Replicates <= 0 {
		return errors.ConfigInvalid("SIM_REPLICATES must be positive")
	}
	if sim.Trials <= 0 {
		return errors.ConfigInvalid("SIM_TRIALS must be positive")
	}
	if sim.Workers <= 0 {
		return errors.ConfigInvalid("SIM_WORKERS must be positive")
	}
	if sim.Confidence <= 0 || sim.Confidence >= 1 {
		return errors.ConfigInvalid("SIM_CONFIDENCE must lie in (0, 1)")
	}
	if sim.ReferenceTau0 < 0 {
		return errors.ConfigInvalid("SIM_REFERENCE_TAU0 must be non-negative")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// Helper functions for environment variable parsing. A malformed value is a
// configuration error rather than a silent fallback to the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an integer", key, value))
	}
	return intValue, nil
}

func getEnvUint64OrDefault(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an unsigned integer", key, value))
	}
	return parsed, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a number", key, value))
	}
	return floatValue, nil
}

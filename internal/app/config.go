package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // .hcl file or directory

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// WorkerCount overrides mc3.processors when positive.
	WorkerCount int
	// Seed overrides analysis.seed when set.
	Seed *uint64
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, errors.New("WorkerCount must not be negative")
	}
	return &cfg, nil
}

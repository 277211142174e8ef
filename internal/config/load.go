package config

import (
	"fmt"
	"os"

	env "github.com/qiangxue/go-env"
	"gopkg.in/yaml.v3"

	"github.com/pmbridge/mediation-server/pkg/logger"
)

const envPrefix = "PMBRIDGE_"

// Load builds a Config starting from Default, overlaying a YAML file (if
// file is non-empty), then overlaying environment variables prefixed with
// PMBRIDGE_. Environment variables take precedence over the file, which
// takes precedence over the defaults.
func Load(file string, log logger.Logger) (*Config, error) {
	cfg := *Default()

	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config file: %w", err)
		}
	}

	if err := env.New(envPrefix, log.Infof).Load(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/tickhouse/marketsim/execution"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/metrics"
)

const configFileName = "marketsim.toml"

// Config ties together all other application configuration types.
type Config struct {
	Logging   logging.Config   `group:"Logging"   namespace:"logging"`
	Execution execution.Config `group:"Execution" namespace:"execution"`
	Metrics   metrics.Config   `group:"Metrics"   namespace:"metrics"`
}

// NewDefaultConfig returns a set of default configs for all packages, as
// specified at the per package config level.
func NewDefaultConfig() Config {
	return Config{
		Logging:   logging.NewDefaultConfig(),
		Execution: execution.NewDefaultConfig(),
		Metrics:   metrics.NewDefaultConfig(),
	}
}

// FileName returns the canonical config file name.
func FileName() string {
	return configFileName
}

// Read loads a TOML config file over the defaults, so a partial file is
// valid.
func Read(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read configuration")
	}
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(buf), &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration")
	}
	return &cfg, nil
}

// Write stores the given config as TOML.
func Write(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create configuration")
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Wrap(err, "unable to encode configuration")
	}
	return nil
}

package metrics

import (
	"time"

	"github.com/tickhouse/marketsim/config/encoding"
	"github.com/tickhouse/marketsim/logging"
)

// Config represents the configuration of the metric package
type Config struct {
	Level   encoding.LogLevel `long:"log-level"`
	Timeout encoding.Duration `long:"timeout"`
	Port    int               `long:"port"`
	Path    string            `long:"path"`
	Enabled bool              `long:"enabled"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:   encoding.LogLevel{Level: logging.InfoLevel},
		Timeout: encoding.Duration{Duration: 5000 * time.Millisecond},
		Port:    2112,
		Path:    "/metrics",
		Enabled: false,
	}
}

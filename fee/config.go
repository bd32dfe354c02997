package fee

import (
	"github.com/tickhouse/marketsim/config/encoding"
	"github.com/tickhouse/marketsim/logging"
)

const namedLogger = "fee"

// Config represent the configuration of the fee package.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
	}
}

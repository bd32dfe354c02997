package matching

import (
	"github.com/tickhouse/marketsim/config/encoding"
	"github.com/tickhouse/marketsim/logging"
)

const namedLogger = "matching"

// defaultFillRetention bounds the fill history kept in memory; older fills
// are dropped oldest first.
const defaultFillRetention = 1000

// Config represent the configuration of the matching package.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
	// FillRetention caps both the recent fills list and the fill by order
	// id index.
	FillRetention int `long:"fill-retention"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:         encoding.LogLevel{Level: logging.InfoLevel},
		FillRetention: defaultFillRetention,
	}
}

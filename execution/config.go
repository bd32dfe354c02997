package execution

import (
	"github.com/tickhouse/marketsim/candles"
	"github.com/tickhouse/marketsim/collateral"
	"github.com/tickhouse/marketsim/config/encoding"
	"github.com/tickhouse/marketsim/fee"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/matching"
)

const namedLogger = "execution"

// Config is the configuration of the execution package and the engines it
// wires together.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	Candles    candles.Config    `group:"Candles"    namespace:"candles"`
	Collateral collateral.Config `group:"Collateral" namespace:"collateral"`
	Fee        fee.Config        `group:"Fee"        namespace:"fee"`
	Matching   matching.Config   `group:"Matching"   namespace:"matching"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:      encoding.LogLevel{Level: logging.InfoLevel},
		Candles:    candles.NewDefaultConfig(),
		Collateral: collateral.NewDefaultConfig(),
		Fee:        fee.NewDefaultConfig(),
		Matching:   matching.NewDefaultConfig(),
	}
}

package portal

import (
	_ "embed"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WavePortalABI is the interface description of the WavePortal contract.
//
//go:embed abi/WavePortal.json
var WavePortalABI string

const (
	// DefaultContractAddress is where the WavePortal contract is deployed.
	DefaultContractAddress = "0x5919C8A8723270dB033DF385b03CC786Aa784071"
	// DefaultGasLimit is the gas budget sent with every wave.
	DefaultGasLimit uint64 = 300000
	// DefaultMessage replaces an empty wave message.
	DefaultMessage = "Howdy"
)

const (
	methodTotalWaves = "getTotalWaves"
	methodAllWaves   = "getAllWaves"
	methodWave       = "wave"
	eventNewWave     = "NewWave"
)

type Config struct {
	Address        common.Address
	ABI            string
	GasLimit       uint64
	DefaultMessage string

	ReceiptPollInterval time.Duration
	// DropTimeout is how long a submitted transaction may stay unknown to the node
	// before it is considered dropped.
	DropTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Address:             common.HexToAddress(DefaultContractAddress),
		ABI:                 WavePortalABI,
		GasLimit:            DefaultGasLimit,
		DefaultMessage:      DefaultMessage,
		ReceiptPollInterval: time.Second * 2,
		DropTimeout:         time.Minute * 5,
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs-force-community/metrics"
	"github.com/pelletier/go-toml"

	"github.com/ipfs-force-community/sophon-waveportal/portal"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

const (
	// Configuration file name
	ConfigFile = "config.toml"
	// TokenFile holds the local admin token of the daemon
	TokenFile = "token"
	// DefaultRepo is where config and token live unless --repo says otherwise
	DefaultRepo = "~/.waveportal"
)

const (
	WalletRPC      = "rpc"
	WalletKeystore = "keystore"
)

type Config struct {
	API      *APIConfig
	Node     *NodeConfig
	Wallet   *WalletConfig
	Contract *ContractConfig
	Listener *ListenerConfig
	Relay    *RelayConfig
	Metrics  *metrics.MetricsConfig
}

type APIConfig struct {
	ListenAddress string
}

type NodeConfig struct {
	// URL of the chain node, http(s) or ws(s)
	URL string
	// Proxy exposes the node through the daemon endpoint
	Proxy bool
}

type WalletConfig struct {
	// Type is rpc or keystore
	Type           string
	URL            string
	KeystoreDir    string
	PassphraseFile string
}

type ContractConfig struct {
	Address             string
	GasLimit            uint64
	DefaultMessage      string
	ReceiptPollInterval string
	DropTimeout         string
}

type ListenerConfig struct {
	QueueSize      int
	RequestTimeout string
}

type RelayConfig struct {
	// Redis url, relay is disabled when empty
	Redis   string
	Channel string
}

func DefaultConfig() *Config {
	contract := portal.DefaultConfig()
	request := types.DefaultConfig()
	cfg := &Config{
		API:  &APIConfig{ListenAddress: "/ip4/127.0.0.1/tcp/45133"},
		Node: &NodeConfig{URL: "ws://127.0.0.1:8546", Proxy: true},
		Wallet: &WalletConfig{
			Type: WalletRPC,
			URL:  "http://127.0.0.1:1248",
		},
		Contract: &ContractConfig{
			Address:             contract.Address.Hex(),
			GasLimit:            contract.GasLimit,
			DefaultMessage:      contract.DefaultMessage,
			ReceiptPollInterval: contract.ReceiptPollInterval.String(),
			DropTimeout:         contract.DropTimeout.String(),
		},
		Listener: &ListenerConfig{
			QueueSize:      request.RequestQueueSize,
			RequestTimeout: request.RequestTimeout.String(),
		},
		Relay:   &RelayConfig{Redis: "", Channel: "waveportal:waves"},
		Metrics: metrics.DefaultMetricsConfig(),
	}
	namespace := "waveportal"
	cfg.Metrics.Exporter.Prometheus.Namespace = namespace
	cfg.Metrics.Exporter.Graphite.Namespace = namespace
	cfg.Metrics.Exporter.Prometheus.EndPoint = "/ip4/0.0.0.0/tcp/4570"
	cfg.Metrics.Exporter.Graphite.Port = 4570

	return cfg
}

// PortalConfig converts the contract section into a contract client config.
func (c *Config) PortalConfig() (*portal.Config, error) {
	out := portal.DefaultConfig()
	if c.Contract == nil {
		return out, nil
	}
	if c.Contract.Address != "" {
		if !common.IsHexAddress(c.Contract.Address) {
			return nil, fmt.Errorf("invalid contract address %s", c.Contract.Address)
		}
		out.Address = common.HexToAddress(c.Contract.Address)
	}
	if c.Contract.GasLimit > 0 {
		out.GasLimit = c.Contract.GasLimit
	}
	if c.Contract.DefaultMessage != "" {
		out.DefaultMessage = c.Contract.DefaultMessage
	}
	var err error
	if out.ReceiptPollInterval, err = parseDuration(c.Contract.ReceiptPollInterval, out.ReceiptPollInterval); err != nil {
		return nil, fmt.Errorf("receipt poll interval: %w", err)
	}
	if out.DropTimeout, err = parseDuration(c.Contract.DropTimeout, out.DropTimeout); err != nil {
		return nil, fmt.Errorf("drop timeout: %w", err)
	}
	return out, nil
}

// RequestConfig converts the listener section.
func (c *Config) RequestConfig() (*types.RequestConfig, error) {
	out := types.DefaultConfig()
	if c.Listener == nil {
		return out, nil
	}
	if c.Listener.QueueSize > 0 {
		out.RequestQueueSize = c.Listener.QueueSize
	}
	var err error
	if out.RequestTimeout, err = parseDuration(c.Listener.RequestTimeout, out.RequestTimeout); err != nil {
		return nil, fmt.Errorf("request timeout: %w", err)
	}
	return out, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func ReadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	err = toml.Unmarshal(data, cfg)

	return cfg, err
}

func WriteConfig(filePath string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0644)
}

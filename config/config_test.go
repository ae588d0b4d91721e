package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-waveportal/portal"
)

func TestReadWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)

	cfg := DefaultConfig()
	cfg.Node.URL = "ws://10.0.0.1:8546"
	cfg.Wallet.Type = WalletKeystore
	cfg.Wallet.KeystoreDir = "/tmp/keystore"
	cfg.Relay.Redis = "redis://127.0.0.1:6379/0"
	require.NoError(t, WriteConfig(path, cfg))

	got, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.API, got.API)
	require.Equal(t, cfg.Node, got.Node)
	require.Equal(t, cfg.Wallet, got.Wallet)
	require.Equal(t, cfg.Contract, got.Contract)
	require.Equal(t, cfg.Relay, got.Relay)
	require.Equal(t, cfg.Metrics.Exporter.Prometheus.Namespace, got.Metrics.Exporter.Prometheus.Namespace)
}

func TestPortalConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		pcfg, err := DefaultConfig().PortalConfig()
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress(portal.DefaultContractAddress), pcfg.Address)
		require.Equal(t, portal.DefaultGasLimit, pcfg.GasLimit)
		require.Equal(t, portal.DefaultMessage, pcfg.DefaultMessage)
		require.Equal(t, portal.DefaultConfig().DropTimeout, pcfg.DropTimeout)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Contract.Address = "0x0000000000000000000000000000000000000abc"
		cfg.Contract.ReceiptPollInterval = "500ms"
		pcfg, err := cfg.PortalConfig()
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress("0xabc"), pcfg.Address)
		require.Equal(t, time.Millisecond*500, pcfg.ReceiptPollInterval)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Contract.Address = "not an address"
		_, err := cfg.PortalConfig()
		require.Error(t, err)

		cfg = DefaultConfig()
		cfg.Contract.DropTimeout = "soon"
		_, err = cfg.PortalConfig()
		require.Error(t, err)
	})
}

func TestRequestConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listener.QueueSize = 5
	cfg.Listener.RequestTimeout = "1m"
	rcfg, err := cfg.RequestConfig()
	require.NoError(t, err)
	require.Equal(t, 5, rcfg.RequestQueueSize)
	require.Equal(t, time.Minute, rcfg.RequestTimeout)
}

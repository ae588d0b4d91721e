package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

func TestKeystoreProvider(t *testing.T) {
	ctx := context.Background()
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	acct, err := ks.NewAccount("howdy")
	require.NoError(t, err)

	to := common.HexToAddress("0x5919C8A8723270dB033DF385b03CC786Aa784071")
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{To: &to, Gas: 300000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
	chainID := big.NewInt(1337)

	t.Run("unlock", func(t *testing.T) {
		provider := NewKeystoreProviderWith(ks, func(ctx context.Context, account common.Address) (string, bool, error) {
			return "howdy", true, nil
		})
		gw := NewGateway(provider)
		require.Empty(t, gw.ListConnectedAccounts(ctx))

		accounts, err := gw.RequestAccess(ctx)
		require.NoError(t, err)
		require.Equal(t, []common.Address{acct.Address}, accounts)
		require.Equal(t, accounts, gw.ListConnectedAccounts(ctx))

		signed, err := provider.SignTx(ctx, acct.Address, tx, chainID)
		require.NoError(t, err)
		from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		require.Equal(t, acct.Address, from)
		require.NoError(t, ks.Lock(acct.Address))
	})

	t.Run("declined", func(t *testing.T) {
		provider := NewKeystoreProviderWith(ks, func(ctx context.Context, account common.Address) (string, bool, error) {
			return "", false, nil
		})
		_, err := NewGateway(provider).RequestAccess(ctx)
		require.ErrorIs(t, err, types.ErrUserRejected)

		_, err = provider.SignTx(ctx, acct.Address, tx, chainID)
		require.ErrorIs(t, err, types.ErrRejectedBySigner)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		provider := NewKeystoreProviderWith(ks, func(ctx context.Context, account common.Address) (string, bool, error) {
			return "nope", true, nil
		})
		_, err := NewGateway(provider).RequestAccess(ctx)
		require.ErrorIs(t, err, types.ErrUserRejected)
	})
}

package portal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-waveportal/portal"
	"github.com/ipfs-force-community/sophon-waveportal/testhelper"
	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
)

func testConfig() *portal.Config {
	cfg := portal.DefaultConfig()
	cfg.ReceiptPollInterval = time.Millisecond * 10
	cfg.DropTimeout = time.Millisecond * 50
	return cfg
}

func setupClient(t *testing.T) (*portal.Client, *testhelper.MockChain, *testhelper.MemWallet, common.Address) {
	ctx := context.Background()
	cfg := testConfig()
	chain := testhelper.NewMockChain(cfg.Address)
	w := testhelper.NewMemWallet()
	addr, err := w.AddKey(ctx)
	require.NoError(t, err)

	gw := wallet.NewGateway(w)
	accounts, err := gw.RequestAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{addr}, accounts)

	signer, err := gw.Signer(addr)
	require.NoError(t, err)
	client, err := portal.NewClient(cfg, chain, signer)
	require.NoError(t, err)
	return client, chain, w, addr
}

func TestNewClient(t *testing.T) {
	t.Run("nil backend", func(t *testing.T) {
		_, err := portal.NewClient(testConfig(), nil, nil)
		require.ErrorIs(t, err, types.ErrNoProvider)
	})

	t.Run("typed nil backend", func(t *testing.T) {
		var chain *testhelper.MockChain
		_, err := portal.NewClient(testConfig(), chain, nil)
		require.ErrorIs(t, err, types.ErrNoProvider)
	})

	t.Run("abi without wave", func(t *testing.T) {
		cfg := testConfig()
		cfg.ABI = `[{"type":"function","name":"getTotalWaves","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`
		_, err := portal.NewClient(cfg, testhelper.NewMockChain(cfg.Address), nil)
		require.Error(t, err)
	})

	t.Run("read only", func(t *testing.T) {
		cfg := testConfig()
		client, err := portal.NewClient(cfg, testhelper.NewMockChain(cfg.Address), nil)
		require.NoError(t, err)
		require.Equal(t, common.Address{}, client.Account())
		require.Equal(t, cfg.Address, client.Address())

		_, err = client.SubmitWave(context.Background(), "hi")
		require.ErrorIs(t, err, types.ErrNoProvider)
	})
}

func TestReads(t *testing.T) {
	ctx := context.Background()
	client, chain, _, _ := setupClient(t)

	count, err := client.GetTotalWaves(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)

	entries, err := client.GetAllWaves(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 0)

	a := common.HexToAddress("0xa")
	b := common.HexToAddress("0xb")
	chain.AddWave(a, "gm", 100)
	chain.AddWave(b, "hello", 200)

	count, err = client.GetTotalWaves(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	entries, err = client.GetAllWaves(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, a, entries[0].Waver)
	require.Equal(t, "gm", entries[0].Message)
	require.Equal(t, int64(100), entries[0].Timestamp.Int64())
	require.Equal(t, b, entries[1].Waver)
	require.Equal(t, "hello", entries[1].Message)
}

func TestReadFailure(t *testing.T) {
	ctx := context.Background()
	client, chain, _, _ := setupClient(t)
	chain.SetReadError(errors.New("node unreachable"))

	_, err := client.GetTotalWaves(ctx)
	require.ErrorIs(t, err, types.ErrReadFailure)

	_, err = client.GetAllWaves(ctx)
	require.ErrorIs(t, err, types.ErrReadFailure)
}

func TestSubmitWave(t *testing.T) {
	ctx := context.Background()

	t.Run("mined", func(t *testing.T) {
		client, chain, _, addr := setupClient(t)
		handle, err := client.SubmitWave(ctx, "hello")
		require.NoError(t, err)
		require.Equal(t, portal.DefaultGasLimit, handle.Transaction().Gas())

		receipt, err := handle.AwaitConfirmation(ctx)
		require.NoError(t, err)
		require.Equal(t, handle.Hash(), receipt.TxHash)
		require.Equal(t, uint64(1), receipt.Status)

		waves := chain.Waves()
		require.Len(t, waves, 1)
		require.Equal(t, addr, waves[0].Waver)
		require.Equal(t, "hello", waves[0].Message)
	})

	t.Run("empty message", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		handle, err := client.SubmitWave(ctx, "")
		require.NoError(t, err)
		_, err = handle.AwaitConfirmation(ctx)
		require.NoError(t, err)

		waves := chain.Waves()
		require.Len(t, waves, 1)
		require.Equal(t, portal.DefaultMessage, waves[0].Message)
	})

	t.Run("whitespace message is kept", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		handle, err := client.SubmitWave(ctx, "  ")
		require.NoError(t, err)
		_, err = handle.AwaitConfirmation(ctx)
		require.NoError(t, err)
		require.Equal(t, "  ", chain.Waves()[0].Message)
	})

	t.Run("signer rejected", func(t *testing.T) {
		client, chain, w, _ := setupClient(t)
		w.SetReject(ctx, true)
		_, err := client.SubmitWave(ctx, "hello")
		require.ErrorIs(t, err, types.ErrRejectedBySigner)
		require.True(t, types.IsUserActionable(err))
		require.Len(t, chain.Waves(), 0)
	})

	t.Run("send failure", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		chain.SetSendError(errors.New("insufficient funds for gas * price + value"))
		_, err := client.SubmitWave(ctx, "hello")
		require.ErrorIs(t, err, types.ErrSubmissionFailure)
		require.False(t, types.IsUserActionable(err))
	})

	t.Run("reverted", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		chain.SetRevertNext(true)
		handle, err := client.SubmitWave(ctx, "hello")
		require.NoError(t, err)

		receipt, err := handle.AwaitConfirmation(ctx)
		require.ErrorIs(t, err, types.ErrTransactionReverted)
		require.NotNil(t, receipt)
		require.Equal(t, uint64(0), receipt.Status)
		require.Len(t, chain.Waves(), 0)
	})

	t.Run("dropped", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		chain.SetAutoMine(false)
		handle, err := client.SubmitWave(ctx, "hello")
		require.NoError(t, err)
		chain.Drop(handle.Hash())

		_, err = handle.AwaitConfirmation(ctx)
		require.ErrorIs(t, err, types.ErrTransactionDropped)
	})

	t.Run("mined later", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		chain.SetAutoMine(false)
		handle, err := client.SubmitWave(ctx, "hello")
		require.NoError(t, err)

		go func() {
			time.Sleep(time.Millisecond * 100)
			_ = chain.Mine(handle.Hash())
		}()
		receipt, err := handle.AwaitConfirmation(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), receipt.Status)
	})

	t.Run("await cancelled", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		chain.SetAutoMine(false)
		handle, err := client.SubmitWave(ctx, "hello")
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, time.Millisecond*30)
		defer cancel()
		_, err = handle.AwaitConfirmation(cctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

type capturedWave struct {
	account types.Account
	ts      time.Time
	message string
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers in order", func(t *testing.T) {
		client, chain, _, addr := setupClient(t)
		events := make(chan capturedWave, 10)
		sub, err := client.Subscribe(func(account types.Account, ts time.Time, message string) {
			events <- capturedWave{account: account, ts: ts, message: message}
		})
		require.NoError(t, err)
		defer sub.Cancel()

		other := common.HexToAddress("0xc")
		chain.EmitWave(other, "first", 1000)
		handle, err := client.SubmitWave(ctx, "second")
		require.NoError(t, err)
		_, err = handle.AwaitConfirmation(ctx)
		require.NoError(t, err)

		got := <-events
		require.Equal(t, other, got.account)
		require.Equal(t, "first", got.message)
		require.Equal(t, time.Unix(1000, 0).UTC(), got.ts)

		got = <-events
		require.Equal(t, addr, got.account)
		require.Equal(t, "second", got.message)
	})

	t.Run("no delivery after cancel", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		var lk sync.Mutex
		count := 0
		sub, err := client.Subscribe(func(types.Account, time.Time, string) {
			lk.Lock()
			count++
			lk.Unlock()
		})
		require.NoError(t, err)

		sub.Cancel()
		sub.Cancel()
		<-sub.Done()

		chain.EmitWave(common.HexToAddress("0xd"), "late", 2000)
		time.Sleep(time.Millisecond * 50)

		lk.Lock()
		defer lk.Unlock()
		require.Equal(t, 0, count)
	})

	t.Run("cancel from callback", func(t *testing.T) {
		client, chain, _, _ := setupClient(t)
		var sub *portal.Subscription
		received := make(chan struct{}, 2)
		var err error
		subReady := make(chan struct{})
		sub, err = client.Subscribe(func(types.Account, time.Time, string) {
			<-subReady
			sub.Cancel()
			received <- struct{}{}
		})
		require.NoError(t, err)
		close(subReady)

		chain.EmitWave(common.HexToAddress("0xe"), "one", 3000)
		<-received
		<-sub.Done()
		chain.EmitWave(common.HexToAddress("0xe"), "two", 3001)
		time.Sleep(time.Millisecond * 50)
		require.Len(t, received, 0)
	})
}

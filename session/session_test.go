package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-waveportal/portal"
	"github.com/ipfs-force-community/sophon-waveportal/testhelper"
	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
	"github.com/ipfs-force-community/sophon-waveportal/wavelist"
)

type mockAlerter struct {
	lk     sync.Mutex
	alerts []string
}

func (a *mockAlerter) Alert(message string) {
	a.lk.Lock()
	defer a.lk.Unlock()
	a.alerts = append(a.alerts, message)
}

func (a *mockAlerter) Alerts() []string {
	a.lk.Lock()
	defer a.lk.Unlock()
	return append([]string{}, a.alerts...)
}

type chanSink struct {
	ch chan types.WaveRecord
}

func (s *chanSink) PublishWave(ctx context.Context, rec types.WaveRecord) {
	s.ch <- rec
}

type testEnv struct {
	session *Session
	chain   *testhelper.MockChain
	wallet  *testhelper.MemWallet
	alerter *mockAlerter
	sink    *chanSink
	addr    common.Address
}

func setupSession(t *testing.T, provider wallet.Provider) *testEnv {
	cfg := portal.DefaultConfig()
	cfg.ReceiptPollInterval = time.Millisecond * 10
	cfg.DropTimeout = time.Millisecond * 50

	env := &testEnv{
		chain:   testhelper.NewMockChain(cfg.Address),
		alerter: &mockAlerter{},
		sink:    &chanSink{ch: make(chan types.WaveRecord, 10)},
	}
	if w, ok := provider.(*testhelper.MemWallet); ok {
		env.wallet = w
		addr, err := w.AddKey(context.Background())
		require.NoError(t, err)
		env.addr = addr
	}
	env.session = NewSession(context.Background(), wallet.NewGateway(provider), env.chain, cfg, env.alerter, logging.Logger("test").With())
	env.session.AddSink(env.sink)
	t.Cleanup(env.session.Close)
	return env
}

func TestNoProvider(t *testing.T) {
	ctx := context.Background()
	env := setupSession(t, nil)

	require.NoError(t, env.session.Restore(ctx))
	require.False(t, env.session.Connected())

	_, err := env.session.Connect(ctx)
	require.ErrorIs(t, err, types.ErrNoProvider)

	_, err = env.session.Wave(ctx, "hello")
	require.ErrorIs(t, err, types.ErrNoProvider)
	require.Len(t, env.alerter.Alerts(), 2)

	status := env.session.Status()
	require.False(t, status.HasProvider)
	require.False(t, status.Connected)
	require.Equal(t, wavelist.Empty.String(), status.ModelState)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("not authorized", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		require.NoError(t, env.session.Restore(ctx))
		require.False(t, env.session.Connected())
		require.Len(t, env.alerter.Alerts(), 0)
	})

	t.Run("authorized", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.wallet.RequestAccounts(ctx)
		require.NoError(t, err)
		env.chain.AddWave(common.HexToAddress("0x1"), "gm", 100)

		require.NoError(t, env.session.Restore(ctx))
		require.True(t, env.session.Connected())
		require.Equal(t, env.addr, env.session.Account())
		require.Len(t, env.session.Waves(), 1)
		require.Equal(t, uint64(1), env.session.TotalWaves())
	})
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		env.chain.AddWave(common.HexToAddress("0x1"), "a", 100)
		env.chain.AddWave(common.HexToAddress("0x2"), "b", 200)

		account, err := env.session.Connect(ctx)
		require.NoError(t, err)
		require.Equal(t, env.addr, account)

		status := env.session.Status()
		require.True(t, status.HasProvider)
		require.True(t, status.Connected)
		require.Equal(t, env.addr, status.Account)
		require.Equal(t, uint64(2), status.TotalWaves)
		require.Equal(t, 2, status.ListedWaves)
		require.Equal(t, wavelist.Ready.String(), status.ModelState)
		require.Equal(t, "b", env.session.Waves()[0].Message)
	})

	t.Run("rejected", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		env.wallet.SetReject(ctx, true)

		_, err := env.session.Connect(ctx)
		require.ErrorIs(t, err, types.ErrUserRejected)
		require.False(t, env.session.Connected())
		require.Equal(t, []string{types.UserMessage(err)}, env.alerter.Alerts())
	})

	t.Run("read failure", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		env.chain.SetReadError(errors.New("node down"))

		_, err := env.session.Connect(ctx)
		require.ErrorIs(t, err, types.ErrReadFailure)
		require.False(t, env.session.Connected())
		require.Len(t, env.alerter.Alerts(), 0)
		require.Equal(t, wavelist.Empty.String(), env.session.Status().ModelState)

		// the failed load left no subscription behind
		env.chain.EmitWave(common.HexToAddress("0x2"), "late", 500)
		select {
		case rec := <-env.sink.ch:
			t.Fatalf("unexpected wave %v", rec)
		case <-time.After(time.Millisecond * 50):
		}
	})
}

func TestRefreshFailure(t *testing.T) {
	ctx := context.Background()
	env := setupSession(t, testhelper.NewMemWallet())
	env.chain.AddWave(common.HexToAddress("0x1"), "a", 100)
	_, err := env.session.Connect(ctx)
	require.NoError(t, err)

	env.chain.SetReadError(errors.New("node down"))
	require.ErrorIs(t, env.session.Refresh(ctx), types.ErrReadFailure)

	status := env.session.Status()
	require.Equal(t, wavelist.Ready.String(), status.ModelState)
	require.Equal(t, 1, status.ListedWaves)
	require.Equal(t, uint64(1), status.TotalWaves)

	env.chain.SetReadError(nil)
	env.chain.AddWave(common.HexToAddress("0x2"), "b", 200)
	require.NoError(t, env.session.Refresh(ctx))
	require.Len(t, env.session.Waves(), 2)
}

func TestWave(t *testing.T) {
	ctx := context.Background()

	t.Run("mined wave arrives through events", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.session.Connect(ctx)
		require.NoError(t, err)

		receipt, err := env.session.Wave(ctx, "hello")
		require.NoError(t, err)
		require.Equal(t, uint64(1), receipt.Status)
		require.Equal(t, uint64(1), env.session.TotalWaves())

		rec := <-env.sink.ch
		require.Equal(t, env.addr, rec.Address)
		require.Equal(t, "hello", rec.Message)
		require.Eventually(t, func() bool {
			return len(env.session.Waves()) == 1
		}, time.Second, time.Millisecond*10)
	})

	t.Run("draft", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.session.Connect(ctx)
		require.NoError(t, err)

		env.session.SetDraft("")
		_, err = env.session.SendDraft(ctx)
		require.NoError(t, err)
		rec := <-env.sink.ch
		require.Equal(t, portal.DefaultMessage, rec.Message)

		env.session.SetDraft("from draft")
		_, err = env.session.SendDraft(ctx)
		require.NoError(t, err)
		rec = <-env.sink.ch
		require.Equal(t, "from draft", rec.Message)
		require.Equal(t, "from draft", env.session.Draft())
	})

	t.Run("rejected by signer keeps draft", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.session.Connect(ctx)
		require.NoError(t, err)

		env.session.SetDraft("keep me")
		env.wallet.SetReject(ctx, true)
		_, err = env.session.SendDraft(ctx)
		require.ErrorIs(t, err, types.ErrRejectedBySigner)
		require.Equal(t, "keep me", env.session.Draft())
		require.Len(t, env.alerter.Alerts(), 1)
	})

	t.Run("reverted", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.session.Connect(ctx)
		require.NoError(t, err)

		env.chain.SetRevertNext(true)
		receipt, err := env.session.Wave(ctx, "hello")
		require.ErrorIs(t, err, types.ErrTransactionReverted)
		require.NotNil(t, receipt)
		require.Len(t, env.session.Waves(), 0)
		require.Len(t, env.alerter.Alerts(), 0)
	})

	t.Run("not connected", func(t *testing.T) {
		env := setupSession(t, testhelper.NewMemWallet())
		_, err := env.session.Wave(ctx, "hello")
		require.ErrorIs(t, err, types.ErrNoProvider)
	})
}

func TestLiveOnlyWaveKeepsCount(t *testing.T) {
	ctx := context.Background()
	env := setupSession(t, testhelper.NewMemWallet())
	env.chain.AddWave(common.HexToAddress("0x1"), "a", 100)
	_, err := env.session.Connect(ctx)
	require.NoError(t, err)

	env.chain.EmitWave(common.HexToAddress("0x2"), "live", 500)
	<-env.sink.ch
	require.Equal(t, 2, len(env.session.Waves()))
	require.Equal(t, uint64(1), env.session.TotalWaves())

	count, err := env.session.RefreshCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	require.NoError(t, env.session.Refresh(ctx))
	require.Equal(t, 1, len(env.session.Waves()))
}

func TestSwitchAccount(t *testing.T) {
	ctx := context.Background()
	env := setupSession(t, testhelper.NewMemWallet())
	second, err := env.wallet.AddKey(ctx)
	require.NoError(t, err)

	_, err = env.session.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, env.session.SwitchAccount(ctx, second))
	require.Equal(t, second, env.session.Account())

	_, err = env.session.Wave(ctx, "from second")
	require.NoError(t, err)
	rec := <-env.sink.ch
	require.Equal(t, second, rec.Address)

	// only the new subscription delivers
	select {
	case rec := <-env.sink.ch:
		t.Fatalf("unexpected duplicate wave %v", rec)
	case <-time.After(time.Millisecond * 50):
	}
	require.Len(t, env.session.Waves(), 1)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	env := setupSession(t, testhelper.NewMemWallet())
	_, err := env.session.Connect(ctx)
	require.NoError(t, err)

	env.session.Close()
	require.False(t, env.session.Connected())

	env.chain.EmitWave(common.HexToAddress("0x2"), "late", 500)
	select {
	case rec := <-env.sink.ch:
		t.Fatalf("unexpected wave after close %v", rec)
	case <-time.After(time.Millisecond * 50):
	}
}

// slowChain delays contract reads so activations overlap.
type slowChain struct {
	*testhelper.MockChain
}

func (c slowChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	time.Sleep(time.Millisecond * 20)
	return c.MockChain.CallContract(ctx, call, blockNumber)
}

func TestConcurrentConnect(t *testing.T) {
	setup := func(t *testing.T) (*Session, *testhelper.MockChain, *chanSink) {
		cfg := portal.DefaultConfig()
		chain := testhelper.NewMockChain(cfg.Address)
		memWallet := testhelper.NewMemWallet()
		_, err := memWallet.AddKey(context.Background())
		require.NoError(t, err)

		sink := &chanSink{ch: make(chan types.WaveRecord, 16)}
		sess := NewSession(context.Background(), wallet.NewGateway(memWallet), slowChain{chain}, cfg, &mockAlerter{}, logging.Logger("test").With())
		sess.AddSink(sink)
		t.Cleanup(sess.Close)
		return sess, chain, sink
	}
	connectAll := func(sess *Session, n int) *sync.WaitGroup {
		wg := &sync.WaitGroup{}
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = sess.Connect(context.Background())
			}()
		}
		return wg
	}

	t.Run("one live subscription", func(t *testing.T) {
		sess, chain, sink := setup(t)
		connectAll(sess, 8).Wait()
		require.True(t, sess.Connected())

		chain.EmitWave(common.HexToAddress("0x2"), "once", 500)
		select {
		case rec := <-sink.ch:
			require.Equal(t, "once", rec.Message)
		case <-time.After(time.Second):
			t.Fatal("wave not delivered")
		}
		select {
		case rec := <-sink.ch:
			t.Fatalf("unexpected duplicate wave %v", rec)
		case <-time.After(time.Millisecond * 50):
		}
		require.Len(t, sess.Waves(), 1)
	})

	t.Run("close during connect", func(t *testing.T) {
		sess, chain, sink := setup(t)
		wg := connectAll(sess, 8)
		time.Sleep(time.Millisecond * 30)
		sess.Close()
		wg.Wait()
		require.False(t, sess.Connected())

		chain.EmitWave(common.HexToAddress("0x2"), "late", 500)
		select {
		case rec := <-sink.ch:
			t.Fatalf("unexpected wave after close %v", rec)
		case <-time.After(time.Millisecond * 50):
		}
		require.Len(t, sess.Waves(), 0)
	})
}

// emitOnLoadChain emits one wave while the first contract read is in flight.
type emitOnLoadChain struct {
	*testhelper.MockChain
	once sync.Once
}

func (c *emitOnLoadChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.once.Do(func() {
		c.MockChain.EmitWave(common.HexToAddress("0x3"), "during load", 300)
	})
	return c.MockChain.CallContract(ctx, call, blockNumber)
}

func TestWaveDuringLoad(t *testing.T) {
	cfg := portal.DefaultConfig()
	chain := &emitOnLoadChain{MockChain: testhelper.NewMockChain(cfg.Address)}
	chain.AddWave(common.HexToAddress("0x1"), "stored", 100)
	memWallet := testhelper.NewMemWallet()
	_, err := memWallet.AddKey(context.Background())
	require.NoError(t, err)

	sess := NewSession(context.Background(), wallet.NewGateway(memWallet), chain, cfg, &mockAlerter{}, logging.Logger("test").With())
	t.Cleanup(sess.Close)

	_, err = sess.Connect(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(sess.Waves()) == 2
	}, time.Second, time.Millisecond*10)
	require.Equal(t, "during load", sess.Waves()[0].Message)
	require.Equal(t, wavelist.Ready.String(), sess.Status().ModelState)
}

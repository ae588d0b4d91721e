package waveevent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

func newRecord(message string) types.WaveRecord {
	return types.WaveRecord{Address: common.HexToAddress("0x1"), Message: message, Timestamp: time.Unix(100, 0).UTC()}
}

func TestListenWaves(t *testing.T) {
	t.Run("correct", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stream := NewWaveEventStream(ctx, types.DefaultConfig())

		listenCtx := context.WithValue(ctx, types.IPKey, "127.0.0.1")
		ch, err := stream.ListenWaves(listenCtx)
		require.NoError(t, err)

		listeners, err := stream.ListListeners(ctx)
		require.NoError(t, err)
		require.Len(t, listeners, 1)
		require.Equal(t, "127.0.0.1", listeners[0].IP)

		stream.PublishWave(ctx, newRecord("gm"))
		rec := <-ch
		require.Equal(t, "gm", rec.Message)
	})

	t.Run("multiple listen", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stream := NewWaveEventStream(ctx, types.DefaultConfig())

		ch1, err := stream.ListenWaves(ctx)
		require.NoError(t, err)
		ch2, err := stream.ListenWaves(ctx)
		require.NoError(t, err)

		stream.PublishWave(ctx, newRecord("gm"))
		require.Equal(t, "gm", (<-ch1).Message)
		require.Equal(t, "gm", (<-ch2).Message)
	})

	t.Run("listener cancel", func(t *testing.T) {
		ctx := context.Background()
		stream := NewWaveEventStream(ctx, types.DefaultConfig())

		listenCtx, cancel := context.WithCancel(ctx)
		ch, err := stream.ListenWaves(listenCtx)
		require.NoError(t, err)
		cancel()

		_, ok := <-ch
		require.False(t, ok)
		listeners, err := stream.ListListeners(ctx)
		require.NoError(t, err)
		require.Len(t, listeners, 0)

		// no listener left, publishing must not block
		stream.PublishWave(ctx, newRecord("gm"))
	})

	t.Run("slow listener drops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stream := NewWaveEventStream(ctx, &types.RequestConfig{RequestQueueSize: 2, RequestTimeout: time.Minute})

		ch, err := stream.ListenWaves(ctx)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			stream.PublishWave(ctx, newRecord("gm"))
		}

		listeners, err := stream.ListListeners(ctx)
		require.NoError(t, err)
		require.Len(t, listeners, 1)
		require.Equal(t, 2, listeners[0].Pending)
		require.Equal(t, int64(3), listeners[0].Dropped)
		require.Len(t, ch, 2)
	})

	t.Run("stream closed", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		stream := NewWaveEventStream(ctx, types.DefaultConfig())
		ch, err := stream.ListenWaves(context.Background())
		require.NoError(t, err)

		cancel()
		_, ok := <-ch
		require.False(t, ok)

		_, err = stream.ListenWaves(context.Background())
		require.Error(t, err)
	})
}

type flakyAPI struct {
	*WaveEventStream

	lk    sync.Mutex
	fails int
}

func (f *flakyAPI) ListenWaves(ctx context.Context) (<-chan *types.WaveRecord, error) {
	f.lk.Lock()
	if f.fails > 0 {
		f.fails--
		f.lk.Unlock()
		return nil, errors.New("mock error")
	}
	f.lk.Unlock()
	return f.WaveEventStream.ListenWaves(ctx)
}

func TestWaveEventClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := NewWaveEventStream(ctx, types.DefaultConfig())
	api := &flakyAPI{WaveEventStream: stream, fails: 1}

	received := make(chan *types.WaveRecord, 1)
	client := NewWaveEventClient(func(rec *types.WaveRecord) {
		received <- rec
	}, api, logging.Logger("test").With())
	go client.ListenWaves(ctx)
	client.WaitReady(ctx)

	stream.PublishWave(ctx, newRecord("after reconnect"))
	rec := <-received
	require.Equal(t, "after reconnect", rec.Message)
}

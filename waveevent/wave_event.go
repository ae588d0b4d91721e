package waveevent

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-waveportal/metrics"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("event_stream")

// WaveEventStream fans live waves out to every RPC listener.
type WaveEventStream struct {
	ctx     context.Context
	connMgr *listenerConnMgr
	cfg     *types.RequestConfig
}

func NewWaveEventStream(ctx context.Context, cfg *types.RequestConfig) *WaveEventStream {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	return &WaveEventStream{
		ctx:     ctx,
		connMgr: newListenerConnMgr(),
		cfg:     cfg,
	}
}

// ListenWaves registers a listener. The channel delivers every live wave until ctx is done.
func (w *WaveEventStream) ListenWaves(ctx context.Context) (<-chan *types.WaveRecord, error) {
	select {
	case <-w.ctx.Done():
		return nil, errors.New("wave event stream closed")
	default:
	}

	ip, _ := types.CtxGetIP(ctx)
	out := make(chan *types.WaveRecord, w.cfg.RequestQueueSize)
	channel := newListenerChannelInfo(types.NewChannelInfo(out), ip)
	w.connMgr.addNewConn(channel)

	ctx, _ = tag.New(ctx, tag.Upsert(metrics.IPKey, ip))
	stats.Record(ctx, metrics.WaveListenerRegister.M(1))

	go func() {
		select {
		case <-ctx.Done():
		case <-w.ctx.Done():
		}
		w.connMgr.removeConn(channel)
		close(out)
		stats.Record(ctx, metrics.WaveListenerUnregist.M(1))
	}()
	return out, nil
}

// PublishWave hands rec to every listener. A listener whose queue is full misses it.
func (w *WaveEventStream) PublishWave(ctx context.Context, rec types.WaveRecord) {
	w.connMgr.forEach(func(conn *listenerChannelInfo) {
		r := rec
		select {
		case conn.OutBound <- &r:
		default:
			dropped := conn.dropped.Add(1)
			stats.Record(ctx, metrics.WaveEventDropped.M(1))
			log.Warnw("wave listener queue full, drop wave", "channel", conn.ChannelId.String(), "ip", conn.ip, "dropped", dropped)
		}
	})
}

func (w *WaveEventStream) ListListeners(ctx context.Context) ([]*types.ListenerState, error) {
	return w.connMgr.listListeners(), nil
}

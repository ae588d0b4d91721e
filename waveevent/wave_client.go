package waveevent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

type WaveHandler func(rec *types.WaveRecord)

// WaveEventClient keeps a live wave listener registered with a daemon, reconnecting when
// the connection drops.
type WaveEventClient struct {
	handler WaveHandler
	client  IWaveEventAPI
	log     *zap.SugaredLogger
	readyCh chan struct{}
}

func NewWaveEventClient(handler WaveHandler, client IWaveEventAPI, log *zap.SugaredLogger) *WaveEventClient {
	return &WaveEventClient{
		handler: handler,
		client:  client,
		log:     log,
		readyCh: make(chan struct{}, 1),
	}
}

func (e *WaveEventClient) ListenWaves(ctx context.Context) {
	for {
		if err := e.listenWavesOnce(ctx); err != nil {
			e.log.Errorf("listen wave event errored: %s", err)
		} else {
			e.log.Warn("listenWavesOnce quit, try again")
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			e.log.Warnf("not restarting listenWavesOnce: context error: %s", ctx.Err())
			return
		}
		e.log.Info("restarting listenWavesOnce")
		// try clear ready channel
		select {
		case <-e.readyCh:
		default:
		}
	}
}

func (e *WaveEventClient) WaitReady(ctx context.Context) {
	select {
	case <-e.readyCh:
	case <-ctx.Done():
	}
}

func (e *WaveEventClient) listenWavesOnce(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waveCh, err := e.client.ListenWaves(ctx)
	if err != nil {
		// Retry is handled by caller
		return fmt.Errorf("listenWavesOnce call failed: %w", err)
	}
	select {
	case e.readyCh <- struct{}{}:
	default:
	}

	for rec := range waveCh {
		e.handler(rec)
	}
	return nil
}

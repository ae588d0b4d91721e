package metrics

import (
	"context"
	"time"
)

func recordMetricsLoop(ctx context.Context, api StatusAPI) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	ApiState.Set(ctx, 1)
	for {
		select {
		case <-ticker.C:
			recordWaveInfo(ctx, api)
			recordListenerInfo(ctx, api)
		case <-ctx.Done():
			ApiState.Set(ctx, 0)
			log.Infof("context done, stop record metrics")
			return
		}
	}
}

func recordWaveInfo(ctx context.Context, api StatusAPI) {
	status, err := api.Status(ctx)
	if err != nil {
		log.Warnf("failed to get session status %v", err)
		return
	}

	TotalWaves.Set(ctx, int64(status.TotalWaves))
	ListedWaves.Set(ctx, int64(status.ListedWaves))
}

func recordListenerInfo(ctx context.Context, api StatusAPI) {
	listeners, err := api.ListListeners(ctx)
	if err != nil {
		log.Warnf("failed to list wave listeners %v", err)
		return
	}

	ListenerNum.Set(ctx, int64(len(listeners)))
}

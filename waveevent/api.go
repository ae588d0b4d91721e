package waveevent

import (
	"context"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

type IWaveEventAPI interface {
	ListenWaves(ctx context.Context) (<-chan *types.WaveRecord, error)
	ListListeners(ctx context.Context) ([]*types.ListenerState, error)
}

var _ IWaveEventAPI = (*WaveEventStream)(nil)

package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

// Alerter shows a blocking notice to the user.
type Alerter interface {
	Alert(message string)
}

type LogAlerter struct {
	log *zap.SugaredLogger
}

func NewLogAlerter(log *zap.SugaredLogger) *LogAlerter {
	return &LogAlerter{log: log}
}

func (a *LogAlerter) Alert(message string) {
	a.log.Warnf("ALERT: %s", message)
}

// WaveSink receives every wave delivered by the live event stream.
type WaveSink interface {
	PublishWave(ctx context.Context, rec types.WaveRecord)
}

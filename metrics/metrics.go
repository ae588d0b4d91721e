package metrics

import (
	"time"

	rpcMetrics "github.com/filecoin-project/go-jsonrpc/metrics"
	"github.com/ipfs-force-community/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Global Tags
var (
	AccountKey, _ = tag.NewKey("account")
	MethodKey, _  = tag.NewKey("method")
	StatusKey, _  = tag.NewKey("status")

	IPKey, _ = tag.NewKey("ip")
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 3000, 4000, 5000, 7500, 10000, 20000, 50000, 100000)

var (
	// waves
	TotalWaves        = metrics.NewInt64("wave/total", "Total waves reported by the contract", stats.UnitDimensionless)
	ListedWaves       = metrics.NewInt64("wave/listed", "Waves held by the wave list", stats.UnitDimensionless)
	WaveEventReceived = stats.Int64("wave/event_received", "NewWave event received", stats.UnitDimensionless)
	WaveSubmitted     = stats.Int64("wave/submitted", "Wave transaction outcome", stats.UnitDimensionless)

	// listeners
	ListenerNum          = metrics.NewInt64("listener/num", "Live wave listener count", stats.UnitDimensionless)
	WaveListenerRegister = stats.Int64("listener/register", "Live wave listener register", stats.UnitDimensionless)
	WaveListenerUnregist = stats.Int64("listener/unregister", "Live wave listener unregister", stats.UnitDimensionless)
	WaveEventDropped     = stats.Int64("listener/dropped", "Wave event dropped by a slow listener", stats.UnitDimensionless)

	// method call
	ReadCall    = stats.Float64("read_call", "Call contract view spent time", stats.UnitMilliseconds)
	SubmitWave  = stats.Float64("submit_wave", "Call SubmitWave spent time", stats.UnitMilliseconds)
	ConfirmWave = stats.Float64("confirm_wave", "Wait for wave receipt spent time", stats.UnitMilliseconds)

	ApiState = metrics.NewInt64("api/state", "api service state. 0: down, 1: up", "")
)

var (
	// waves
	waveEventReceivedView = &view.View{
		Measure:     WaveEventReceived,
		Aggregation: view.Count(),
	}
	waveSubmittedView = &view.View{
		Measure:     WaveSubmitted,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{AccountKey, StatusKey},
	}

	// listeners
	listenerRegisterView = &view.View{
		Measure:     WaveListenerRegister,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{IPKey},
	}
	listenerUnregisterView = &view.View{
		Measure:     WaveListenerUnregist,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{IPKey},
	}
	waveEventDroppedView = &view.View{
		Measure:     WaveEventDropped,
		Aggregation: view.Count(),
	}

	// method call
	readCallView = &view.View{
		Measure:     ReadCall,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{MethodKey},
	}
	submitWaveView = &view.View{
		Measure:     SubmitWave,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{AccountKey},
	}
	confirmWaveView = &view.View{
		Measure:     ConfirmWave,
		Aggregation: defaultMillisecondsDistribution,
	}
)

var views = append([]*view.View{
	waveEventReceivedView,
	waveSubmittedView,
	listenerRegisterView,
	listenerUnregisterView,
	waveEventDroppedView,
	readCallView,
	submitWaveView,
	confirmWaveView,
}, rpcMetrics.DefaultViews...)

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

func init() {
	// register metrics
	_ = view.Register(views...)
}

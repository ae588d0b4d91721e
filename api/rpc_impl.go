package api

import (
	"context"
	"fmt"

	"github.com/ipfs-force-community/sophon-waveportal/proxy"
	"github.com/ipfs-force-community/sophon-waveportal/session"
	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/version"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
	"github.com/ipfs-force-community/sophon-waveportal/waveevent"
)

var _ IWavePortal = (*WavePortalAPIImpl)(nil)

type WavePortalAPIImpl struct {
	waveevent.IWaveEventAPI

	session *session.Session
	gateway *wallet.Gateway
	proxy   proxy.IProxy
	cfg     *types.RequestConfig
}

func NewWavePortalAPIImpl(sess *session.Session, gateway *wallet.Gateway, stream *waveevent.WaveEventStream, p proxy.IProxy, cfg *types.RequestConfig) *WavePortalAPIImpl {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	return &WavePortalAPIImpl{
		IWaveEventAPI: stream,
		session:       sess,
		gateway:       gateway,
		proxy:         p,
		cfg:           cfg,
	}
}

func (w *WavePortalAPIImpl) Connect(ctx context.Context) (types.Account, error) {
	return w.session.Connect(ctx)
}

func (w *WavePortalAPIImpl) SwitchAccount(ctx context.Context, account types.Account) error {
	return w.session.SwitchAccount(ctx, account)
}

func (w *WavePortalAPIImpl) Accounts(ctx context.Context) ([]types.Account, error) {
	return w.gateway.ListConnectedAccounts(ctx), nil
}

func (w *WavePortalAPIImpl) Status(ctx context.Context) (*types.SessionStatus, error) {
	return w.session.Status(), nil
}

// TotalWaves reads the count from the contract and stores it.
func (w *WavePortalAPIImpl) TotalWaves(ctx context.Context) (uint64, error) {
	return w.session.RefreshCount(ctx)
}

// ListWaves returns the newest limit waves, or all of them when limit is not positive.
func (w *WavePortalAPIImpl) ListWaves(ctx context.Context, limit int) ([]types.WaveRecord, error) {
	waves := w.session.Waves()
	if limit > 0 && limit < len(waves) {
		waves = waves[:limit]
	}
	return waves, nil
}

func (w *WavePortalAPIImpl) Refresh(ctx context.Context) error {
	return w.session.Refresh(ctx)
}

func (w *WavePortalAPIImpl) SetDraft(ctx context.Context, message string) error {
	w.session.SetDraft(message)
	return nil
}

func (w *WavePortalAPIImpl) Wave(ctx context.Context, message string) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()
	return w.session.Wave(ctx, message)
}

func (w *WavePortalAPIImpl) WaveDraft(ctx context.Context) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()
	return w.session.SendDraft(ctx)
}

func (w *WavePortalAPIImpl) RegisterReverse(ctx context.Context, host string, address string) error {
	if w.proxy == nil {
		return fmt.Errorf("proxy is disabled")
	}
	hostKey, err := proxy.ParseHostKey(host)
	if err != nil {
		return err
	}
	return w.proxy.RegisterReverse(hostKey, address)
}

func (w *WavePortalAPIImpl) Version(ctx context.Context) (string, error) {
	return version.UserVersion, nil
}

package api

import (
	"context"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

const (
	// APINamespace is the json-rpc namespace of the wave portal api
	APINamespace = "WavePortal"
	// AuthorizationHeader carries the bearer token
	AuthorizationHeader = "Authorization"
)

type IWalletAPI interface {
	Connect(ctx context.Context) (types.Account, error)             //perm:write
	SwitchAccount(ctx context.Context, account types.Account) error //perm:write
	Accounts(ctx context.Context) ([]types.Account, error)          //perm:read
	Status(ctx context.Context) (*types.SessionStatus, error)       //perm:read
}

type IWaveAPI interface {
	TotalWaves(ctx context.Context) (uint64, error)                       //perm:read
	ListWaves(ctx context.Context, limit int) ([]types.WaveRecord, error) //perm:read
	Refresh(ctx context.Context) error                                    //perm:write
	SetDraft(ctx context.Context, message string) error                   //perm:write
	Wave(ctx context.Context, message string) (*types.Receipt, error)     //perm:write
	WaveDraft(ctx context.Context) (*types.Receipt, error)                //perm:write
}

type IWaveEventAPI interface {
	ListenWaves(ctx context.Context) (<-chan *types.WaveRecord, error) //perm:read
	ListListeners(ctx context.Context) ([]*types.ListenerState, error) //perm:admin
}

type IProxyAPI interface {
	RegisterReverse(ctx context.Context, host string, address string) error //perm:admin
}

type IWavePortal interface {
	IWalletAPI
	IWaveAPI
	IWaveEventAPI
	IProxyAPI

	Version(ctx context.Context) (string, error) //perm:read
}

var _ IWavePortal = (*WavePortalStruct)(nil)

// WavePortalStruct is the permission checked and rpc client side form of IWavePortal.
type WavePortalStruct struct {
	Internal struct {
		Connect       func(ctx context.Context) (types.Account, error)        `perm:"write"`
		SwitchAccount func(ctx context.Context, account types.Account) error  `perm:"write"`
		Accounts      func(ctx context.Context) ([]types.Account, error)      `perm:"read"`
		Status        func(ctx context.Context) (*types.SessionStatus, error) `perm:"read"`

		TotalWaves func(ctx context.Context) (uint64, error)                         `perm:"read"`
		ListWaves  func(ctx context.Context, limit int) ([]types.WaveRecord, error)  `perm:"read"`
		Refresh    func(ctx context.Context) error                                   `perm:"write"`
		SetDraft   func(ctx context.Context, message string) error                   `perm:"write"`
		Wave       func(ctx context.Context, message string) (*types.Receipt, error) `perm:"write"`
		WaveDraft  func(ctx context.Context) (*types.Receipt, error)                 `perm:"write"`

		ListenWaves   func(ctx context.Context) (<-chan *types.WaveRecord, error) `perm:"read"`
		ListListeners func(ctx context.Context) ([]*types.ListenerState, error)   `perm:"admin"`

		RegisterReverse func(ctx context.Context, host string, address string) error `perm:"admin"`

		Version func(ctx context.Context) (string, error) `perm:"read"`
	}
}

func (s *WavePortalStruct) Connect(ctx context.Context) (types.Account, error) {
	return s.Internal.Connect(ctx)
}

func (s *WavePortalStruct) SwitchAccount(ctx context.Context, account types.Account) error {
	return s.Internal.SwitchAccount(ctx, account)
}

func (s *WavePortalStruct) Accounts(ctx context.Context) ([]types.Account, error) {
	return s.Internal.Accounts(ctx)
}

func (s *WavePortalStruct) Status(ctx context.Context) (*types.SessionStatus, error) {
	return s.Internal.Status(ctx)
}

func (s *WavePortalStruct) TotalWaves(ctx context.Context) (uint64, error) {
	return s.Internal.TotalWaves(ctx)
}

func (s *WavePortalStruct) ListWaves(ctx context.Context, limit int) ([]types.WaveRecord, error) {
	return s.Internal.ListWaves(ctx, limit)
}

func (s *WavePortalStruct) Refresh(ctx context.Context) error {
	return s.Internal.Refresh(ctx)
}

func (s *WavePortalStruct) SetDraft(ctx context.Context, message string) error {
	return s.Internal.SetDraft(ctx, message)
}

func (s *WavePortalStruct) Wave(ctx context.Context, message string) (*types.Receipt, error) {
	return s.Internal.Wave(ctx, message)
}

func (s *WavePortalStruct) WaveDraft(ctx context.Context) (*types.Receipt, error) {
	return s.Internal.WaveDraft(ctx)
}

func (s *WavePortalStruct) ListenWaves(ctx context.Context) (<-chan *types.WaveRecord, error) {
	return s.Internal.ListenWaves(ctx)
}

func (s *WavePortalStruct) ListListeners(ctx context.Context) ([]*types.ListenerState, error) {
	return s.Internal.ListListeners(ctx)
}

func (s *WavePortalStruct) RegisterReverse(ctx context.Context, host string, address string) error {
	return s.Internal.RegisterReverse(ctx, host, address)
}

func (s *WavePortalStruct) Version(ctx context.Context) (string, error) {
	return s.Internal.Version(ctx)
}

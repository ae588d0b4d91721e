package testhelper

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ipfs-force-community/sophon-waveportal/types"
	"github.com/ipfs-force-community/sophon-waveportal/wallet"
)

var _ wallet.Provider = (*MemWallet)(nil)

// MemWallet is an in-memory wallet provider. Keys become authorized on RequestAccounts.
type MemWallet struct {
	lk         sync.Mutex
	order      []common.Address
	keys       map[common.Address]*ecdsa.PrivateKey
	authorized bool
	fail       bool
	reject     bool
}

func NewMemWallet() *MemWallet {
	return &MemWallet{
		lk:   sync.Mutex{},
		keys: make(map[common.Address]*ecdsa.PrivateKey),
	}
}

func (m *MemWallet) SetFail(ctx context.Context, fail bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.fail = fail
}

// SetReject makes the wallet behave as if the user declined every prompt.
func (m *MemWallet) SetReject(ctx context.Context, reject bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.reject = reject
}

func (m *MemWallet) AddKey(ctx context.Context) (common.Address, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	m.keys[addr] = key
	m.order = append(m.order, addr)
	return addr, nil
}

func (m *MemWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if !m.authorized {
		return []common.Address{}, nil
	}
	return append([]common.Address{}, m.order...), nil
}

func (m *MemWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.reject {
		return nil, fmt.Errorf("%w: mock rejection", types.ErrUserRejected)
	}
	m.authorized = true
	return append([]common.Address{}, m.order...), nil
}

func (m *MemWallet) SignTx(ctx context.Context, account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mock error")
	}
	if m.reject {
		return nil, fmt.Errorf("%w: mock rejection", types.ErrRejectedBySigner)
	}
	key, ok := m.keys[account]
	if !ok {
		return nil, fmt.Errorf("address %s not found", account)
	}
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), key)
}

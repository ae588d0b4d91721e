package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Provider is the wallet the gateway talks to. Accounts must never prompt the user,
// RequestAccounts may.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignTx(ctx context.Context, account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// Signer is the signing identity of one authorized account.
type Signer struct {
	account  common.Address
	provider Provider
}

func (s *Signer) Address() common.Address {
	return s.account
}

func (s *Signer) SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return s.provider.SignTx(ctx, s.account, tx, chainID)
}

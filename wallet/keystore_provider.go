package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

// PassphrasePrompt asks the user to unlock account. Returning ok=false declines the prompt.
type PassphrasePrompt func(ctx context.Context, account common.Address) (passphrase string, ok bool, err error)

var _ Provider = (*KeystoreProvider)(nil)

// KeystoreProvider serves accounts from a local keystore directory. An account is
// authorized once the user unlocked it through the prompt.
type KeystoreProvider struct {
	ks     *keystore.KeyStore
	prompt PassphrasePrompt

	lk         sync.Mutex
	authorized []common.Address
}

func NewKeystoreProvider(dir string, prompt PassphrasePrompt) *KeystoreProvider {
	return NewKeystoreProviderWith(keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), prompt)
}

func NewKeystoreProviderWith(ks *keystore.KeyStore, prompt PassphrasePrompt) *KeystoreProvider {
	return &KeystoreProvider{ks: ks, prompt: prompt}
}

func (p *KeystoreProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.lk.Lock()
	defer p.lk.Unlock()

	out := make([]common.Address, len(p.authorized))
	copy(out, p.authorized)
	return out, nil
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if authorized, _ := p.Accounts(ctx); len(authorized) > 0 {
		return authorized, nil
	}
	if p.prompt == nil {
		return nil, fmt.Errorf("%w: no passphrase prompt configured", types.ErrUserRejected)
	}

	var unlocked []common.Address
	for _, acct := range p.ks.Accounts() {
		passphrase, ok, err := p.prompt(ctx, acct.Address)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Infof("user declined to unlock %s", acct.Address)
			continue
		}
		if err := p.ks.Unlock(acct, passphrase); err != nil {
			log.Warnf("unlock %s failed: %s", acct.Address, err)
			continue
		}
		unlocked = append(unlocked, acct.Address)
	}
	if len(unlocked) == 0 {
		return nil, fmt.Errorf("%w: no keystore account unlocked", types.ErrUserRejected)
	}

	p.lk.Lock()
	p.authorized = unlocked
	p.lk.Unlock()
	return unlocked, nil
}

func (p *KeystoreProvider) SignTx(ctx context.Context, account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	signed, err := p.ks.SignTx(accounts.Account{Address: account}, tx, chainID)
	if errors.Is(err, keystore.ErrLocked) {
		return nil, fmt.Errorf("%w: %s is locked", types.ErrRejectedBySigner, account)
	}
	return signed, err
}

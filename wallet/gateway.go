package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log/v2"
	"github.com/modern-go/reflect2"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("wallet_gateway")

// Gateway wraps the configured wallet provider. It is the only place that decides whether
// a provider is present.
type Gateway struct {
	provider Provider
}

func NewGateway(provider Provider) *Gateway {
	return &Gateway{provider: provider}
}

func (g *Gateway) HasProvider() bool {
	return g != nil && !reflect2.IsNil(g.provider)
}

// ListConnectedAccounts returns accounts the wallet already authorized. It never prompts
// and never fails: provider errors are logged and treated as no accounts.
func (g *Gateway) ListConnectedAccounts(ctx context.Context) []common.Address {
	if !g.HasProvider() {
		log.Warn("no wallet provider detected, install or configure a wallet before waving")
		return []common.Address{}
	}

	accounts, err := g.provider.Accounts(ctx)
	if err != nil {
		log.Errorf("list authorized accounts failed: %s", err)
		return []common.Address{}
	}
	if len(accounts) == 0 {
		log.Info("no authorized accounts detected")
		return []common.Address{}
	}
	log.Infof("found authorized account %s", accounts[0])
	return accounts
}

// RequestAccess asks the wallet to authorize accounts, prompting the user if needed.
func (g *Gateway) RequestAccess(ctx context.Context) ([]common.Address, error) {
	if !g.HasProvider() {
		return nil, types.NewOpError("requestAccess", types.ErrNoProvider, nil)
	}

	accounts, err := g.provider.RequestAccounts(ctx)
	if err != nil {
		if isRejection(err) {
			return nil, types.NewOpError("requestAccess", types.ErrUserRejected, err)
		}
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, types.NewOpError("requestAccess", types.ErrUserRejected, fmt.Errorf("no account authorized"))
	}
	log.Infof("connected account %s", accounts[0])
	return accounts, nil
}

// Signer returns the signing identity for account.
func (g *Gateway) Signer(account common.Address) (*Signer, error) {
	if !g.HasProvider() {
		return nil, types.NewOpError("signer", types.ErrNoProvider, nil)
	}
	return &Signer{account: account, provider: g.provider}, nil
}

package portal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	logging "github.com/ipfs/go-log/v2"
	"github.com/modern-go/reflect2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/ipfs-force-community/sophon-waveportal/metrics"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("portal")

// Client is a WavePortal binding for one signing account. A new Client must be built
// whenever the active account changes.
type Client struct {
	cfg      *Config
	abi      abi.ABI
	backend  Backend
	signer   Signer
	contract *bind.BoundContract

	chainLk sync.Mutex
	chainID *big.Int
}

// NewClient binds the contract described by cfg. signer may be nil for a read-only client.
func NewClient(cfg *Config, backend Backend, signer Signer) (*Client, error) {
	if reflect2.IsNil(backend) {
		return nil, types.NewOpError("newClient", types.ErrNoProvider, nil)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	parsed, err := abi.JSON(strings.NewReader(cfg.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	for _, name := range []string{methodTotalWaves, methodAllWaves, methodWave} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("contract abi has no method %s", name)
		}
	}
	if _, ok := parsed.Events[eventNewWave]; !ok {
		return nil, fmt.Errorf("contract abi has no event %s", eventNewWave)
	}

	client := &Client{
		cfg:      cfg,
		abi:      parsed,
		backend:  backend,
		contract: bind.NewBoundContract(cfg.Address, parsed, backend, backend, backend),
	}
	if !reflect2.IsNil(signer) {
		client.signer = signer
	}
	return client, nil
}

// Account returns the signing account, or the zero address for a read-only client.
func (c *Client) Account() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

func (c *Client) Address() common.Address {
	return c.cfg.Address
}

func (c *Client) GetTotalWaves(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.call(ctx, methodTotalWaves, &out); err != nil {
		return 0, err
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if count == nil || !count.IsUint64() {
		return 0, types.NewOpError(methodTotalWaves, types.ErrReadFailure, fmt.Errorf("invalid wave count %v", count))
	}
	return count.Uint64(), nil
}

// GetAllWaves returns every wave in contract storage order, oldest first.
func (c *Client) GetAllWaves(ctx context.Context) ([]types.RawWaveEntry, error) {
	var out []interface{}
	if err := c.call(ctx, methodAllWaves, &out); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]types.RawWaveEntry)).(*[]types.RawWaveEntry), nil
}

func (c *Client) call(ctx context.Context, method string, out *[]interface{}) error {
	start := time.Now()
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, out, method)
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(metrics.MethodKey, method)},
		metrics.ReadCall.M(metrics.SinceInMilliseconds(start)))
	if err != nil {
		return types.NewOpError(method, types.ErrReadFailure, err)
	}
	if len(*out) == 0 {
		return types.NewOpError(method, types.ErrReadFailure, errors.New("empty result"))
	}
	return nil
}

// SubmitWave sends a wave transaction and returns once the node accepted it. Use the
// returned handle to wait for it to be mined.
func (c *Client) SubmitWave(ctx context.Context, message string) (*TransactionHandle, error) {
	if c.signer == nil {
		return nil, types.NewOpError(methodWave, types.ErrNoProvider, errors.New("no signing account"))
	}
	if message == "" {
		message = c.cfg.DefaultMessage
	}

	chainID, err := c.getChainID(ctx)
	if err != nil {
		return nil, types.NewOpError(methodWave, types.ErrSubmissionFailure, err)
	}

	from := c.signer.Address()
	opts := &bind.TransactOpts{
		From:     from,
		Context:  ctx,
		GasLimit: c.cfg.GasLimit,
		Signer: func(addr common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return c.signer.SignTx(ctx, tx, chainID)
		},
	}

	start := time.Now()
	tx, err := c.contract.Transact(opts, methodWave, message)
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.AccountKey, from.Hex()))
	stats.Record(ctx, metrics.SubmitWave.M(metrics.SinceInMilliseconds(start)))
	if err != nil {
		if errors.Is(err, types.ErrRejectedBySigner) || errors.Is(err, types.ErrUserRejected) {
			return nil, types.NewOpError(methodWave, types.ErrRejectedBySigner, err)
		}
		return nil, types.NewOpError(methodWave, types.ErrSubmissionFailure, err)
	}
	log.Infof("wave %s submitted by %s", tx.Hash(), from)

	return newTransactionHandle(tx, c.backend, c.cfg), nil
}

func (c *Client) getChainID(ctx context.Context) (*big.Int, error) {
	c.chainLk.Lock()
	defer c.chainLk.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	c.chainID = chainID
	return chainID, nil
}

type newWaveEvent struct {
	From      common.Address
	Timestamp *big.Int
	Message   string
}

// Subscribe watches NewWave events and calls onEvent for each of them, in emission order,
// until the subscription is cancelled or the node ends it.
func (c *Client) Subscribe(onEvent func(account types.Account, ts time.Time, message string)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logs, sub, err := c.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, eventNewWave)
	if err != nil {
		cancel()
		return nil, types.NewOpError("subscribe", types.ErrReadFailure, err)
	}

	s := newSubscription(sub, cancel)
	go s.loop(logs, func(lg ethtypes.Log) {
		if lg.Removed {
			log.Warnf("ignore removed wave log %s", lg.TxHash)
			return
		}
		var ev newWaveEvent
		if err := c.contract.UnpackLog(&ev, eventNewWave, lg); err != nil {
			log.Errorf("unpack wave log %s failed: %s", lg.TxHash, err)
			return
		}
		stats.Record(ctx, metrics.WaveEventReceived.M(1))
		onEvent(ev.From, types.UnixTime(ev.Timestamp), ev.Message)
	})
	return s, nil
}

package testhelper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/ipfs-force-community/sophon-waveportal/portal"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var _ portal.Backend = (*MockChain)(nil)

// MockChain simulates a node hosting the WavePortal contract. Transactions are mined as
// soon as they are sent unless auto mining is turned off.
type MockChain struct {
	lk       sync.Mutex
	abi      abi.ABI
	address  common.Address
	chainID  *big.Int
	signer   ethtypes.Signer
	clock    time.Time
	block    uint64
	waves    []types.RawWaveEntry
	nonces   map[common.Address]uint64
	txs      map[common.Hash]*ethtypes.Transaction
	pending  map[common.Hash]struct{}
	receipts map[common.Hash]*ethtypes.Receipt

	autoMine   bool
	revertNext bool
	readErr    error
	sendErr    error

	feed event.Feed
}

func NewMockChain(address common.Address) *MockChain {
	parsed, err := abi.JSON(strings.NewReader(portal.WavePortalABI))
	if err != nil {
		panic(fmt.Errorf("parse wave portal abi: %w", err))
	}
	chainID := big.NewInt(1337)
	return &MockChain{
		abi:      parsed,
		address:  address,
		chainID:  chainID,
		signer:   ethtypes.LatestSignerForChainID(chainID),
		clock:    time.Unix(1650000000, 0),
		nonces:   make(map[common.Address]uint64),
		txs:      make(map[common.Hash]*ethtypes.Transaction),
		pending:  make(map[common.Hash]struct{}),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		autoMine: true,
	}
}

func (m *MockChain) SetAutoMine(auto bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.autoMine = auto
}

// SetRevertNext makes the next mined wave fail.
func (m *MockChain) SetRevertNext(revert bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.revertNext = revert
}

func (m *MockChain) SetReadError(err error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.readErr = err
}

func (m *MockChain) SetSendError(err error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.sendErr = err
}

// AddWave stores a historical wave without emitting an event.
func (m *MockChain) AddWave(from common.Address, message string, ts int64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.waves = append(m.waves, types.RawWaveEntry{Waver: from, Message: message, Timestamp: big.NewInt(ts)})
}

// EmitWave emits a NewWave event without storing the wave.
func (m *MockChain) EmitWave(from common.Address, message string, ts int64) {
	m.lk.Lock()
	lg := m.newWaveLog(from, message, big.NewInt(ts), common.Hash{})
	m.lk.Unlock()
	m.feed.Send(*lg)
}

func (m *MockChain) Waves() []types.RawWaveEntry {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]types.RawWaveEntry{}, m.waves...)
}

// Mine includes a pending transaction.
func (m *MockChain) Mine(hash common.Hash) error {
	m.lk.Lock()
	lg, err := m.mine(hash)
	m.lk.Unlock()
	if err != nil {
		return err
	}
	if lg != nil {
		m.feed.Send(*lg)
	}
	return nil
}

// Drop forgets a pending transaction, as a node evicting it from its pool would.
func (m *MockChain) Drop(hash common.Hash) {
	m.lk.Lock()
	defer m.lk.Unlock()
	delete(m.pending, hash)
	delete(m.txs, hash)
}

func (m *MockChain) mine(hash common.Hash) (*ethtypes.Log, error) {
	if _, ok := m.pending[hash]; !ok {
		return nil, fmt.Errorf("transaction %s not pending", hash)
	}
	tx := m.txs[hash]
	delete(m.pending, hash)

	from, err := ethtypes.Sender(m.signer, tx)
	if err != nil {
		return nil, err
	}
	message, err := m.unpackWave(tx.Data())
	if err != nil {
		return nil, err
	}

	m.block++
	m.clock = m.clock.Add(time.Second * 15)
	receipt := &ethtypes.Receipt{
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(m.block),
		GasUsed:     45000,
		Status:      ethtypes.ReceiptStatusSuccessful,
	}
	if m.revertNext {
		m.revertNext = false
		receipt.Status = ethtypes.ReceiptStatusFailed
		m.receipts[hash] = receipt
		return nil, nil
	}

	ts := big.NewInt(m.clock.Unix())
	m.waves = append(m.waves, types.RawWaveEntry{Waver: from, Message: message, Timestamp: ts})
	lg := m.newWaveLog(from, message, ts, hash)
	receipt.Logs = []*ethtypes.Log{lg}
	m.receipts[hash] = receipt
	return lg, nil
}

func (m *MockChain) unpackWave(data []byte) (string, error) {
	if len(data) < 4 {
		return "", errors.New("missing method id")
	}
	method, err := m.abi.MethodById(data[:4])
	if err != nil {
		return "", err
	}
	if method.Name != "wave" {
		return "", fmt.Errorf("unexpected method %s", method.Name)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", err
	}
	return args[0].(string), nil
}

func (m *MockChain) newWaveLog(from common.Address, message string, ts *big.Int, txHash common.Hash) *ethtypes.Log {
	ev := m.abi.Events["NewWave"]
	data, err := ev.Inputs.NonIndexed().Pack(ts, message)
	if err != nil {
		panic(fmt.Errorf("pack NewWave: %w", err))
	}
	return &ethtypes.Log{
		Address:     m.address,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(from.Bytes())},
		Data:        data,
		BlockNumber: m.block,
		TxHash:      txHash,
	}
}

func (m *MockChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if contract == m.address {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (m *MockChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if call.To == nil || *call.To != m.address {
		return nil, nil
	}
	if len(call.Data) < 4 {
		return nil, errors.New("missing method id")
	}
	method, err := m.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getTotalWaves":
		return method.Outputs.Pack(big.NewInt(int64(len(m.waves))))
	case "getAllWaves":
		return method.Outputs.Pack(m.waves)
	default:
		return nil, fmt.Errorf("method %s is not a view", method.Name)
	}
}

func (m *MockChain) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	return &ethtypes.Header{Number: new(big.Int).SetUint64(m.block), Time: uint64(m.clock.Unix())}, nil
}

func (m *MockChain) BlockNumber(ctx context.Context) (uint64, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.block, nil
}

func (m *MockChain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return m.CodeAt(ctx, account, nil)
}

func (m *MockChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.nonces[account], nil
}

func (m *MockChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (m *MockChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (m *MockChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 45000, nil
}

func (m *MockChain) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	m.lk.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.lk.Unlock()
		return err
	}
	from, err := ethtypes.Sender(m.signer, tx)
	if err != nil {
		m.lk.Unlock()
		return err
	}
	if tx.To() == nil || *tx.To() != m.address {
		m.lk.Unlock()
		return fmt.Errorf("unexpected recipient %v", tx.To())
	}
	if _, err := m.unpackWave(tx.Data()); err != nil {
		m.lk.Unlock()
		return err
	}
	m.nonces[from]++
	hash := tx.Hash()
	m.txs[hash] = tx
	m.pending[hash] = struct{}{}

	var lg *ethtypes.Log
	if m.autoMine {
		lg, err = m.mine(hash)
	}
	m.lk.Unlock()
	if err != nil {
		return err
	}
	if lg != nil {
		m.feed.Send(*lg)
	}
	return nil
}

func (m *MockChain) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (m *MockChain) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	return m.feed.Subscribe(ch), nil
}

func (m *MockChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (m *MockChain) TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	tx, ok := m.txs[txHash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	_, isPending := m.pending[txHash]
	return tx, isPending, nil
}

func (m *MockChain) ChainID(ctx context.Context) (*big.Int, error) {
	return m.chainID, nil
}

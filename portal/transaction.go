package portal

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.opencensus.io/stats"

	"github.com/ipfs-force-community/sophon-waveportal/metrics"
	"github.com/ipfs-force-community/sophon-waveportal/types"
)

// TransactionHandle is a submitted wave waiting to be mined.
type TransactionHandle struct {
	tx           *ethtypes.Transaction
	backend      Backend
	pollInterval time.Duration
	dropTimeout  time.Duration
}

func newTransactionHandle(tx *ethtypes.Transaction, backend Backend, cfg *Config) *TransactionHandle {
	pollInterval := cfg.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &TransactionHandle{
		tx:           tx,
		backend:      backend,
		pollInterval: pollInterval,
		dropTimeout:  cfg.DropTimeout,
	}
}

func (h *TransactionHandle) Hash() common.Hash {
	return h.tx.Hash()
}

func (h *TransactionHandle) Transaction() *ethtypes.Transaction {
	return h.tx
}

// AwaitConfirmation blocks until the transaction is mined, reverted or dropped, or ctx
// is done. It does not update any wave list; the mined wave arrives as an event.
func (h *TransactionHandle) AwaitConfirmation(ctx context.Context) (*types.Receipt, error) {
	start := time.Now()
	defer func() {
		stats.Record(ctx, metrics.ConfirmWave.M(metrics.SinceInMilliseconds(start)))
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	hash := h.tx.Hash()
	var missingSince time.Time
	for {
		receipt, err := h.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			out := &types.Receipt{
				TxHash:  receipt.TxHash,
				GasUsed: receipt.GasUsed,
				Status:  receipt.Status,
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if receipt.Status == ethtypes.ReceiptStatusFailed {
				return out, types.NewOpError("awaitConfirmation", types.ErrTransactionReverted, nil)
			}
			return out, nil
		case errors.Is(err, ethereum.NotFound):
			if h.known(ctx) {
				missingSince = time.Time{}
			} else if missingSince.IsZero() {
				missingSince = time.Now()
			} else if h.dropTimeout > 0 && time.Since(missingSince) > h.dropTimeout {
				return nil, types.NewOpError("awaitConfirmation", types.ErrTransactionDropped, nil)
			}
			log.Debugf("wave %s not yet mined", hash)
		default:
			log.Warnf("receipt retrieval for %s failed: %s", hash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *TransactionHandle) known(ctx context.Context) bool {
	_, _, err := h.backend.TransactionByHash(ctx, h.tx.Hash())
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		log.Warnf("transaction lookup for %s failed: %s", h.tx.Hash(), err)
		return true
	}
	return err == nil
}

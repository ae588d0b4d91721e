package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Account is a wallet address authorized by the wallet provider.
type Account = common.Address

// RawWaveEntry is a wave as stored by the WavePortal contract. Field names follow the
// contract's `Wave` struct so the abi package can map tuples onto it.
type RawWaveEntry struct {
	Waver     common.Address `json:"waver"`
	Message   string         `json:"message"`
	Timestamp *big.Int       `json:"timestamp"`
}

// WaveRecord is an immutable wave held by the wave list.
type WaveRecord struct {
	Address   Account   `json:"address"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewWaveRecord(entry RawWaveEntry) WaveRecord {
	return WaveRecord{
		Address:   entry.Waver,
		Message:   entry.Message,
		Timestamp: UnixTime(entry.Timestamp),
	}
}

// MaxUnixSeconds is the latest timestamp a wave can carry. Larger on-chain values are
// clamped to it so they still sort as the newest.
const MaxUnixSeconds int64 = 1 << 62

// UnixTime converts an on-chain unix timestamp in seconds to a time.Time.
func UnixTime(ts *big.Int) time.Time {
	if ts == nil || ts.Sign() < 0 {
		return time.Unix(0, 0).UTC()
	}
	if !ts.IsInt64() || ts.Int64() > MaxUnixSeconds {
		return time.Unix(MaxUnixSeconds, 0).UTC()
	}
	return time.Unix(ts.Int64(), 0).UTC()
}

// Receipt is the finalized outcome of a wave transaction.
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	GasUsed     uint64      `json:"gasUsed"`
	Status      uint64      `json:"status"`
}

// SessionStatus describes the connection state of the wave portal.
type SessionStatus struct {
	HasProvider bool    `json:"hasProvider"`
	Connected   bool    `json:"connected"`
	Account     Account `json:"account"`
	TotalWaves  uint64  `json:"totalWaves"`
	ListedWaves int     `json:"listedWaves"`
	ModelState  string  `json:"modelState"`
	Draft       string  `json:"draft"`
}

type ChannelInfo struct {
	ChannelId  uuid.UUID
	OutBound   chan *WaveRecord
	CreateTime time.Time
}

func NewChannelInfo(sendEvents chan *WaveRecord) *ChannelInfo {
	return &ChannelInfo{
		ChannelId:  uuid.New(),
		OutBound:   sendEvents,
		CreateTime: time.Now(),
	}
}

// ListenerState is a snapshot of one live wave listener.
type ListenerState struct {
	ChannelID  uuid.UUID `json:"channelId"`
	IP         string    `json:"ip"`
	Pending    int       `json:"pending"`
	Dropped    int64     `json:"dropped"`
	CreateTime time.Time `json:"createTime"`
}

package wavelist

import (
	"sort"
	"sync"
	"time"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

type State int

const (
	Empty State = iota
	Hydrating
	Ready
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Hydrating:
		return "hydrating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Model holds the waves shown to the user, newest first, and the contract's total wave
// count. The count is only ever set from the contract and may differ from Len.
//
// Mutations replace the record slice. A slice returned by Records is never modified.
type Model struct {
	lk         sync.RWMutex
	state      State
	records    []types.WaveRecord
	totalCount uint64
	// live waves received while hydrating, merged by Hydrate
	pending []types.WaveRecord
}

func NewModel() *Model {
	return &Model{records: []types.WaveRecord{}}
}

func (m *Model) State() State {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.state
}

// BeginHydrate marks a bulk load in flight. Records stay visible until Hydrate replaces them.
// Live waves appended from now on survive the Hydrate that ends the load.
func (m *Model) BeginHydrate() {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.state = Hydrating
	m.pending = nil
}

// AbortHydrate ends a failed load. The model keeps its records and goes back to Ready, or
// to Empty when it holds none.
func (m *Model) AbortHydrate() {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.state != Hydrating {
		return
	}
	m.pending = nil
	if len(m.records) > 0 {
		m.state = Ready
	} else {
		m.state = Empty
	}
}

// Hydrate replaces every record with entries, sorted by timestamp descending. Entries with
// equal timestamps keep their relative order. Live waves received since BeginHydrate are
// kept on top of entries.
func (m *Model) Hydrate(entries []types.RawWaveEntry) {
	records := make([]types.WaveRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, types.NewWaveRecord(entry))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	m.lk.Lock()
	defer m.lk.Unlock()
	for _, rec := range m.pending {
		records = insert(records, rec)
	}
	m.pending = nil
	m.records = records
	m.state = Ready
}

// AppendLive inserts a wave delivered by the event stream. It lands before every record
// that is not newer, so a fresh wave goes to the front. It returns the stored record.
func (m *Model) AppendLive(addr types.Account, ts time.Time, message string) types.WaveRecord {
	rec := types.WaveRecord{Address: addr, Message: message, Timestamp: ts.UTC()}

	m.lk.Lock()
	defer m.lk.Unlock()
	m.records = insert(m.records, rec)
	switch m.state {
	case Empty:
		m.state = Ready
	case Hydrating:
		m.pending = append(m.pending, rec)
	}
	return rec
}

// insert returns a new slice with rec placed before every record that is not newer.
func insert(records []types.WaveRecord, rec types.WaveRecord) []types.WaveRecord {
	idx := sort.Search(len(records), func(i int) bool {
		return !records[i].Timestamp.After(rec.Timestamp)
	})
	out := make([]types.WaveRecord, 0, len(records)+1)
	out = append(out, records[:idx]...)
	out = append(out, rec)
	return append(out, records[idx:]...)
}

func (m *Model) SetTotalCount(n uint64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.totalCount = n
}

func (m *Model) TotalCount() uint64 {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.totalCount
}

// Records returns the current snapshot, newest first.
func (m *Model) Records() []types.WaveRecord {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.records
}

func (m *Model) Len() int {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return len(m.records)
}

// Reset drops every record and the count, as after a disconnect.
func (m *Model) Reset() {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.records = []types.WaveRecord{}
	m.pending = nil
	m.totalCount = 0
	m.state = Empty
}

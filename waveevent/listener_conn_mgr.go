package waveevent

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

type listenerChannelInfo struct {
	*types.ChannelInfo
	ip      string
	dropped atomic.Int64
}

func newListenerChannelInfo(channel *types.ChannelInfo, ip string) *listenerChannelInfo {
	return &listenerChannelInfo{ChannelInfo: channel, ip: ip}
}

type listenerConnMgr struct {
	connLk sync.Mutex
	conns  map[uuid.UUID]*listenerChannelInfo
}

func newListenerConnMgr() *listenerConnMgr {
	return &listenerConnMgr{
		connLk: sync.Mutex{},
		conns:  make(map[uuid.UUID]*listenerChannelInfo),
	}
}

func (l *listenerConnMgr) addNewConn(channel *listenerChannelInfo) {
	l.connLk.Lock()
	defer l.connLk.Unlock()

	l.conns[channel.ChannelId] = channel
	log.Infow("add wave listener", "channel", channel.ChannelId.String(), "ip", channel.ip)
}

func (l *listenerConnMgr) removeConn(channel *listenerChannelInfo) {
	l.connLk.Lock()
	defer l.connLk.Unlock()

	delete(l.conns, channel.ChannelId)
	log.Infof("remove wave listener %s, dropped %d waves", channel.ChannelId, channel.dropped.Load())
}

// forEach calls fn for every listener while holding the lock, so a listener channel is
// never closed while fn sends to it.
func (l *listenerConnMgr) forEach(fn func(*listenerChannelInfo)) {
	l.connLk.Lock()
	defer l.connLk.Unlock()

	for _, conn := range l.conns {
		fn(conn)
	}
}

func (l *listenerConnMgr) listListeners() []*types.ListenerState {
	l.connLk.Lock()
	defer l.connLk.Unlock()

	states := make([]*types.ListenerState, 0, len(l.conns))
	for _, conn := range l.conns {
		states = append(states, &types.ListenerState{
			ChannelID:  conn.ChannelId,
			IP:         conn.ip,
			Pending:    len(conn.OutBound),
			Dropped:    conn.dropped.Load(),
			CreateTime: conn.CreateTime,
		})
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].CreateTime.Before(states[j].CreateTime)
	})
	return states
}

package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("feed")

const (
	MessageSnapshot = "snapshot"
	MessageWave     = "wave"

	writeWait = 10 * time.Second
)

// Message is one frame sent to feed clients.
type Message struct {
	Type  string             `json:"type"`
	Waves []types.WaveRecord `json:"waves,omitempty"`
	Wave  *types.WaveRecord  `json:"wave,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan types.WaveRecord
}

// Broadcaster serves the wave list over websocket. A client first receives the current
// list, then every live wave.
type Broadcaster struct {
	lk       sync.Mutex
	clients  map[*feedClient]struct{}
	closed   bool
	upgrader websocket.Upgrader

	queueSize int
	snapshot  func() []types.WaveRecord
}

func NewBroadcaster(queueSize int, snapshot func() []types.WaveRecord) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 30
	}
	return &Broadcaster{
		clients: make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		queueSize: queueSize,
		snapshot:  snapshot,
	}
}

func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("upgrade feed websocket: %s", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan types.WaveRecord, b.queueSize)}
	if !b.add(c) {
		_ = conn.Close()
		return
	}
	log.Infof("feed client %s connected", conn.RemoteAddr())

	go b.writeLoop(c)
	// clients never send, read only to notice the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.remove(c)
	log.Infof("feed client %s disconnected", conn.RemoteAddr())
}

func (b *Broadcaster) add(c *feedClient) bool {
	b.lk.Lock()
	defer b.lk.Unlock()
	if b.closed {
		return false
	}
	b.clients[c] = struct{}{}
	return true
}

func (b *Broadcaster) remove(c *feedClient) {
	b.lk.Lock()
	defer b.lk.Unlock()
	if _, ok := b.clients[c]; !ok {
		return
	}
	delete(b.clients, c)
	close(c.send)
}

func (b *Broadcaster) writeLoop(c *feedClient) {
	defer c.conn.Close() //nolint

	var waves []types.WaveRecord
	if b.snapshot != nil {
		waves = b.snapshot()
	}
	if err := b.write(c, &Message{Type: MessageSnapshot, Waves: waves}); err != nil {
		log.Warnf("write snapshot to %s: %s", c.conn.RemoteAddr(), err)
		return
	}

	for rec := range c.send {
		rec := rec
		if err := b.write(c, &Message{Type: MessageWave, Wave: &rec}); err != nil {
			log.Warnf("write wave to %s: %s", c.conn.RemoteAddr(), err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (b *Broadcaster) write(c *feedClient, msg *Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// PublishWave queues rec for every client. A client whose queue is full misses it.
func (b *Broadcaster) PublishWave(ctx context.Context, rec types.WaveRecord) {
	b.lk.Lock()
	defer b.lk.Unlock()
	for c := range b.clients {
		select {
		case c.send <- rec:
		default:
			log.Warnf("feed client %s is too slow, drop wave", c.conn.RemoteAddr())
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.lk.Lock()
	defer b.lk.Unlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.lk.Lock()
	defer b.lk.Unlock()
	b.closed = true
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

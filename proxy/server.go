package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"sync"

	"github.com/gorilla/websocket"
)

// reverseServer forwards json-rpc calls for one host, over http or websocket. Calls
// outside the host's rule are answered by the proxy and never reach the target.
type reverseServer struct {
	host   HostKey
	target *Target
	rule   MethodRule
	proxy  *httputil.ReverseProxy
}

func newReverseServer(host HostKey, target *Target, rule MethodRule) *reverseServer {
	s := &reverseServer{host: host, target: target, rule: rule}
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target.URL)
			s.setCredential(pr.Out.Header)
		},
	}
	return s
}

// setCredential drops the portal token and sets the one the target expects.
func (s *reverseServer) setCredential(header http.Header) {
	header.Del("Authorization")
	header.Del(WaveportalNamespaceHeader)
	if s.target.Token != "" {
		header.Set("Authorization", "Bearer "+s.target.Token)
	}
}

func (s *reverseServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWebsocket(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "json-rpc is served over POST", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	denied, err := checkMethods(body, s.rule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if denied != nil {
		log.Warnf("deny %s for %s from %s", denied.Method, s.host, r.RemoteAddr)
		writeDenied(w, denied)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	s.proxy.ServeHTTP(w, r)
}

func (s *reverseServer) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	// switch to websocket
	urlForWs := *s.target.URL
	switch urlForWs.Scheme {
	case "https":
		urlForWs.Scheme = "wss"
	default:
		urlForWs.Scheme = "ws"
	}
	if urlForWs.Path == "" || urlForWs.Path == "/" {
		urlForWs.Path = r.URL.Path
	}
	urlForWs.RawQuery = r.URL.RawQuery

	header := http.Header{}
	s.setCredential(header)
	targetConn, resp, err := websocket.DefaultDialer.DialContext(r.Context(), urlForWs.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		err = fmt.Errorf("dial %s websocket %s: %w", s.host, s.target, err)
		log.Error(err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer targetConn.Close() //nolint

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("upgrade websocket: %s", err)
		return
	}
	client := &lockedConn{Conn: conn}
	defer client.Close() //nolint

	done := make(chan struct{}, 2)
	go func() {
		forwardMessages(targetConn, client, nil)
		done <- struct{}{}
	}()
	go func() {
		forwardMessages(client, targetConn, func(msg []byte) bool {
			denied, err := checkMethods(msg, s.rule)
			if err != nil {
				_ = client.WriteJSON(rpcResponse{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &rpcError{Code: -32700, Message: err.Error()}})
				return false
			}
			if denied != nil {
				log.Warnf("deny %s for %s from %s", denied.Method, s.host, r.RemoteAddr)
				_ = client.WriteJSON(deniedResponse(denied))
				return false
			}
			return true
		})
		done <- struct{}{}
	}()
	// closing both conns on return stops the other direction
	<-done
}

// lockedConn serializes writes, the proxy answers denied calls while target replies flow.
type lockedConn struct {
	lk sync.Mutex
	*websocket.Conn
}

func (c *lockedConn) WriteMessage(messageType int, data []byte) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

func (c *lockedConn) WriteJSON(v interface{}) error {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.Conn.WriteJSON(v)
}

type messageReader interface {
	ReadMessage() (int, []byte, error)
}

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// forwardMessages copies frames from src to dst until either side fails. allow, when set,
// screens data frames and drops the ones it refuses.
func forwardMessages(src messageReader, dst messageWriter, allow func(msg []byte) bool) {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			log.Debugf("read message: %s", err)
			return
		}
		if allow != nil && !allow(message) {
			continue
		}
		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Errorf("write message: %s", err)
			return
		}
	}
}

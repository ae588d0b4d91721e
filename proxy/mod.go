package proxy

import (
	"fmt"
	"net/http"
	"sync"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("proxy")

type IProxy interface {
	RegisterReverse(hostKey HostKey, address string) error
	ProxyMiddleware(next http.Handler) http.Handler
}

// Proxy forwards requests for the chain node and the wallet signer through the daemon
// endpoint, picked by the namespace header. Everything else goes to the portal api.
type Proxy struct {
	lk      sync.RWMutex
	servers map[HostKey]*reverseServer
	Key     map[string]HostKey
}

var _ IProxy = (*Proxy)(nil)

func NewProxy() *Proxy {
	p := &Proxy{
		servers: make(map[HostKey]*reverseServer),
		Key:     make(map[string]HostKey),
	}
	for k, v := range Header2HostPreset {
		p.Key[k] = v
	}
	return p
}

func (p *Proxy) ProxyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiHeader := r.Header.Get(WaveportalNamespaceHeader)
		if apiHeader == "" || p.Key[apiHeader] == HostPortal {
			next.ServeHTTP(w, r)
			return
		}

		ser, err := p.getReverseHandler(apiHeader)
		if err != nil {
			log.Errorf("get reverse handler fail: %s", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ser.ServeHTTP(w, r)
	})
}

func (p *Proxy) getReverseHandler(header string) (http.Handler, error) {
	p.lk.RLock()
	defer p.lk.RUnlock()

	hostKey, ok := p.Key[header]
	if !ok {
		return nil, fmt.Errorf("header(%s): %w", header, ErrorInvalidHeader)
	}
	server, ok := p.servers[hostKey]
	if !ok {
		return nil, fmt.Errorf("host key(%s) : %w", hostKey, ErrorNoReverseProxyRegistered)
	}
	return server, nil
}

// RegisterReverse points hostKey at address, a url or multiaddr with an optional
// "token:" prefix. An empty address removes the proxy.
func (p *Proxy) RegisterReverse(hostKey HostKey, address string) error {
	rule, ok := Rules[hostKey]
	if !ok {
		return fmt.Errorf("host %q can not be proxied", hostKey)
	}

	p.lk.Lock()
	defer p.lk.Unlock()

	if address == "" {
		delete(p.servers, hostKey)
		log.Info("unregister reverse proxy for ", hostKey)
		return nil
	}
	target, err := ParseTarget(address)
	if err != nil {
		return err
	}

	log.Infof("register reverse proxy for %s: %s", hostKey, target)
	p.servers[hostKey] = newReverseServer(hostKey, target, rule)
	return nil
}

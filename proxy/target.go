package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/multiformats/go-multiaddr"
	maNet "github.com/multiformats/go-multiaddr/net"
)

// Target is where a host is proxied to, with the credential the target expects.
type Target struct {
	URL   *url.URL
	Token string
}

// String hides the token.
func (t *Target) String() string {
	if t.Token == "" {
		return t.URL.String()
	}
	return "***:" + t.URL.String()
}

// ParseTarget accepts a url or multiaddr, optionally prefixed with "token:" the way api
// info strings are written.
func ParseTarget(address string) (*Target, error) {
	token := ""
	idx := strings.Index(address, ":")
	if idx > 0 && !strings.HasPrefix(address, "/") && !strings.HasPrefix(address[idx:], "://") {
		token, address = address[:idx], address[idx+1:]
	}
	u, err := parseAddr(address)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address %q: no host", address)
	}
	return &Target{URL: u, Token: token}, nil
}

// parseAddr parse a multiaddr or normal url string into url.Url
func parseAddr(address string) (*url.URL, error) {
	ma, err := multiaddr.NewMultiaddr(address)
	if err == nil {
		_, addr, err := maNet.DialArgs(ma)
		if err != nil {
			return nil, fmt.Errorf("parser libp2p url fail %w", err)
		}

		hasTLS := false
		for _, p := range []int{multiaddr.P_WSS, multiaddr.P_HTTPS} {
			_, err = ma.ValueForProtocol(p)
			if err == nil {
				hasTLS = true
			} else if err != multiaddr.ErrProtocolNotFound {
				return nil, err
			}
		}

		if hasTLS {
			address = "https://" + addr
		} else {
			address = "http://" + addr
		}
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	// websocket upgrades are detected per request, the target is always http(s)
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u, nil
}

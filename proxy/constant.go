package proxy

import (
	"fmt"
	"strings"
)

// map head -> host key ; host key -> target

type HostKey string

const (
	HostUnknown HostKey = ""
	HostNode    HostKey = "NODE"
	HostWallet  HostKey = "WALLET"
	HostPortal  HostKey = "PORTAL"
)

const (
	WaveportalNamespaceHeader = "X-Waveportal-Namespace"

	NodeNamespace   = "eth"
	WalletNamespace = "wallet"
	PortalNamespace = "WavePortal"

	emptyHeaderValue = ""
)

var (
	Header2HostPreset map[string]HostKey = map[string]HostKey{
		NodeNamespace:   HostNode,
		WalletNamespace: HostWallet,
		PortalNamespace: HostPortal,
		// use wave portal by default
		emptyHeaderValue: HostPortal,
	}
)

var (
	ErrorInvalidHeader            = fmt.Errorf("invalid proxy header for %s", WaveportalNamespaceHeader)
	ErrorNoReverseProxyRegistered = fmt.Errorf("no reverse proxy registered")
	ErrorMethodNotAllowed         = fmt.Errorf("method not allowed through proxy")
)

// MethodRule decides which json-rpc methods a proxied host may receive.
type MethodRule func(method string) bool

// nodeDenied are account methods a node must never serve through the portal, signing
// belongs to the wallet.
var nodeDenied = map[string]struct{}{
	"eth_accounts":         {},
	"eth_requestAccounts":  {},
	"eth_sendTransaction":  {},
	"eth_sign":             {},
	"eth_signTransaction":  {},
	"eth_signTypedData":    {},
	"eth_signTypedData_v4": {},
}

// walletAllowed is exactly what the wallet provider calls.
var walletAllowed = map[string]struct{}{
	"eth_accounts":        {},
	"eth_requestAccounts": {},
	"eth_signTransaction": {},
	"eth_chainId":         {},
}

// NodeMethods lets chain reads, subscriptions and raw sends through.
func NodeMethods(method string) bool {
	if _, ok := nodeDenied[method]; ok {
		return false
	}
	for _, prefix := range []string{"eth_", "net_", "web3_"} {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

func WalletMethods(method string) bool {
	_, ok := walletAllowed[method]
	return ok
}

// Rules maps each proxied host to the methods it may receive.
var Rules = map[HostKey]MethodRule{
	HostNode:   NodeMethods,
	HostWallet: WalletMethods,
}

// ParseHostKey maps a host name given on the command line or over the api to its key.
func ParseHostKey(name string) (HostKey, error) {
	switch HostKey(name) {
	case HostNode, HostWallet:
		return HostKey(name), nil
	}
	if key, ok := Header2HostPreset[name]; ok && key != HostPortal {
		return key, nil
	}
	return HostUnknown, fmt.Errorf("unknown proxy host %q", name)
}

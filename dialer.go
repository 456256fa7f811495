package dnscrawler

import (
	"math/rand"
	"net"

	"golang.org/x/net/proxy"
)

// ProxyDialer is the contract QueryEngine needs from a SOCKS5 proxy: given
// a network ("tcp") and address, return a connection routed through the
// proxy. NewSOCKS5Dialer is the one concrete implementation this module
// ships. When Config.Proxies is non-empty, QueryEngine builds one per
// request through its ProxyDialerFactory, or through NewSOCKS5Dialer when
// that field is nil.
type ProxyDialer interface {
	Dial(network, addr string) (net.Conn, error)
}

// ProxyDialerFactory builds a ProxyDialer for one configured proxy. It's a
// field on QueryEngine (not a free function) so tests can substitute a fake
// without a real SOCKS5 endpoint.
type ProxyDialerFactory func(ProxyConfig) (ProxyDialer, error)

// NewSOCKS5Dialer builds a ProxyDialer that routes connections through the
// SOCKS5 endpoint described by cfg.
//
// DNS queries in this engine are issued over UDP; golang.org/x/net/proxy's
// SOCKS5 client only establishes TCP connections (SOCKS5 UDP ASSOCIATE is
// not implemented by the package), so a query routed through a proxy falls
// back to TCP transport for that one exchange.
func NewSOCKS5Dialer(cfg ProxyConfig) (ProxyDialer, error) {
	d, err := proxy.SOCKS5("tcp", cfg.Addr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// selectProxy chooses one of cfgs at random, or reports ok=false if cfgs is
// empty.
func selectProxy(cfgs []ProxyConfig) (ProxyConfig, bool) {
	if len(cfgs) == 0 {
		return ProxyConfig{}, false
	}
	return cfgs[rand.Intn(len(cfgs))], true
}

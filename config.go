package dnscrawler

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// ProxyConfig names one optional SOCKS5 proxy the QueryEngine may route a
// request through; one is selected at random per request.
type ProxyConfig struct {
	Network string // "tcp", as required by golang.org/x/net/proxy.SOCKS5
	Addr    string
}

// Config is the query engine's single immutable configuration bundle,
// constructed once and passed to NewQueryEngine. It is read-only after
// construction; mutable state lives on the engine behind its own
// synchronization.
type Config struct {
	MaxCachedQueries                  int
	MaxConcurrentRequests             int
	MaxRequestsPerNameserverSecond    int
	MaxRequestsPerTLDNameserverSecond int
	RequestTimeout                    time.Duration
	TimeoutMultiplier                 float64
	MaxTimeout                        time.Duration
	RequestRetries                    int
	IPv4Only                          bool
	Proxies                           []ProxyConfig

	// DefaultPort is added to nameserver IPs that don't already name a
	// port. This should be "53" for the real world and "5354" in tests,
	// whose in-process servers listen on an unprivileged port.
	DefaultPort string

	// RootServers is the hard-coded hostname -> IP set bootstrap table.
	// Seeds the nameserver glue cache at the start of every crawl.
	RootServers map[string][]string

	// TLDNameserverIPs is the set of IPs whose per-nameserver rate limit
	// uses MaxRequestsPerTLDNameserverSecond instead of
	// MaxRequestsPerNameserverSecond.
	TLDNameserverIPs map[string]bool
}

// DefaultConfig returns the crawler's default configuration: the 13 IANA
// root servers, conservative concurrency/rate limits, and no
// TLD-nameserver-IP list or SOCKS5 proxies configured (load those with
// Config.LoadTLDNameserverIPs and by appending to Proxies).
func DefaultConfig() Config {
	return Config{
		MaxCachedQueries:                  10_000,
		MaxConcurrentRequests:             256,
		MaxRequestsPerNameserverSecond:    5,
		MaxRequestsPerTLDNameserverSecond: 20,
		RequestTimeout:                    2 * time.Second,
		TimeoutMultiplier:                 2,
		MaxTimeout:                        15 * time.Second,
		RequestRetries:                    2,
		IPv4Only:                          false,
		DefaultPort:                       "53",
		RootServers:                       defaultRootServers(),
		TLDNameserverIPs:                  map[string]bool{},
	}
}

func defaultRootServers() map[string][]string {
	return map[string][]string{
		"a.root-servers.net.": {"198.41.0.4"},
		"b.root-servers.net.": {"199.9.14.201"},
		"c.root-servers.net.": {"192.33.4.12"},
		"d.root-servers.net.": {"199.7.91.13"},
		"e.root-servers.net.": {"192.203.230.10"},
		"f.root-servers.net.": {"192.5.5.241"},
		"g.root-servers.net.": {"192.112.36.4"},
		"h.root-servers.net.": {"198.97.190.53"},
		"i.root-servers.net.": {"192.36.148.17"},
		"j.root-servers.net.": {"192.58.128.30"},
		"k.root-servers.net.": {"193.0.14.129"},
		"l.root-servers.net.": {"199.7.83.42"},
		"m.root-servers.net.": {"202.12.27.33"},
	}
}

// LoadTLDNameserverIPs reads a newline-delimited list of IPs and adds them
// to c.TLDNameserverIPs. Blank lines and lines starting with '#' are
// ignored.
func (c *Config) LoadTLDNameserverIPs(r io.Reader) error {
	if c.TLDNameserverIPs == nil {
		c.TLDNameserverIPs = map[string]bool{}
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.TLDNameserverIPs[line] = true
	}
	return scanner.Err()
}

// timeoutForRetry computes the exponentially-scaled per-request timeout:
// min(MaxTimeout, RequestTimeout * TimeoutMultiplier^retries).
func (c Config) timeoutForRetry(retries int) time.Duration {
	timeout := float64(c.RequestTimeout)
	for i := 0; i < retries; i++ {
		timeout *= c.TimeoutMultiplier
	}
	if d := time.Duration(timeout); d < c.MaxTimeout || c.MaxTimeout <= 0 {
		return d
	}
	return c.MaxTimeout
}

// rateLimitFor returns the admissions-per-second ceiling for a nameserver
// at the given IP; IPs on the TLD-nameserver list get the higher ceiling.
func (c Config) rateLimitFor(ip string) int {
	if c.TLDNameserverIPs[ip] {
		return c.MaxRequestsPerTLDNameserverSecond
	}
	return c.MaxRequestsPerNameserverSecond
}

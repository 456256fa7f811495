package dnscrawler

import (
	"context"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/semaphore"

	"github.com/dnscrawler/dnscrawler/cache"
	"github.com/dnscrawler/dnscrawler/ratelimit"
)

// QueryEngine is the crawler's sole point of contact with the network: every
// domain/nameserver/record-type lookup, from any number of concurrent
// Walkers, funnels through one shared QueryEngine so its cache, rate limits,
// and blocked-nameserver bookkeeping stay coherent across a whole crawl.
type QueryEngine struct {
	cfg Config

	// LogFunc, if set, is called once per underlying DNS exchange attempted
	// (including immediate skips for a blocked nameserver). It is called
	// synchronously on the querying goroutine, so it must return quickly.
	LogFunc func(QueryEvent)

	// ProxyDialerFactory builds the ProxyDialer for a selected proxy. Tests
	// substitute a fake; production code leaves this nil to use
	// NewSOCKS5Dialer.
	ProxyDialerFactory ProxyDialerFactory

	respCache *cache.Cache[string, QueryResponse]

	blockedMu sync.Mutex
	blocked   map[string]bool

	// pending tracks a cancel func per in-flight exchange, keyed by
	// nameserver IP, so blocking a nameserver aborts everything still
	// waiting on it.
	pendingMu  sync.Mutex
	pending    map[string]map[int64]context.CancelFunc
	pendingSeq int64

	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter

	sem *semaphore.Weighted

	inflightMu sync.Mutex
	inflight   map[string]*inflightQuery

	requestsSent int64
	rpsMu        sync.Mutex
	rpsRunning   bool
	rpsStats     ratelimit.Stats
	rpsStatsSet  bool
	rpsDone      chan struct{}

	wg sync.WaitGroup

	closeOnce sync.Once
}

type inflightQuery struct {
	done chan struct{}
	resp QueryResponse
}

// NewQueryEngine builds a QueryEngine from cfg. The engine owns no
// persistent sockets; miekg/dns opens one UDP or TCP socket per exchange
// and closes it when the exchange completes.
func NewQueryEngine(cfg Config) *QueryEngine {
	return &QueryEngine{
		cfg:       cfg,
		respCache: cache.New[string, QueryResponse](cfg.MaxCachedQueries),
		blocked:   map[string]bool{},
		pending:   map[string]map[int64]context.CancelFunc{},
		limiters:  map[string]*ratelimit.Limiter{},
		sem:       semaphore.NewWeighted(int64(maxInt(cfg.MaxConcurrentRequests, 1))),
		inflight:  map[string]*inflightQuery{},
		rpsDone:   make(chan struct{}),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Query resolves domain's records of the given types at nameserver (an IP
// address), serving from cache when possible and coalescing concurrent
// identical requests into one underlying exchange.
func (e *QueryEngine) Query(ctx context.Context, domain, nameserver string, types []RecordType) (QueryResponse, error) {
	key := queryKey(domain, nameserver, types)

	if cached, ok := e.respCache.Get(key); ok {
		return cached, nil
	}

	e.inflightMu.Lock()
	if q, ok := e.inflight[key]; ok {
		e.inflightMu.Unlock()
		select {
		case <-q.done:
			return q.resp, nil
		case <-ctx.Done():
			return QueryResponse{}, ctx.Err()
		}
	}
	// Re-check the cache with the in-flight lock held: an identical query
	// may have completed and vacated the in-flight map between the miss
	// above and taking the lock.
	if cached, ok := e.respCache.Get(key); ok {
		e.inflightMu.Unlock()
		return cached, nil
	}
	q := &inflightQuery{done: make(chan struct{})}
	e.inflight[key] = q
	e.inflightMu.Unlock()

	resp := e.underlyingQuery(ctx, domain, nameserver, types)

	e.respCache.Set(key, resp, 0)

	e.inflightMu.Lock()
	delete(e.inflight, key)
	e.inflightMu.Unlock()
	q.resp = resp
	close(q.done)

	return resp, nil
}

// underlyingQuery issues one sendRequest per record type concurrently and
// merges the results. If any sub-request times out, the whole response is a
// timeout with no records.
func (e *QueryEngine) underlyingQuery(ctx context.Context, domain, nameserver string, types []RecordType) QueryResponse {
	ip := nameserverIP(nameserver)

	if e.cfg.IPv4Only {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() == nil {
			return newTimeoutResponse(domain, nameserver)
		}
	}
	if e.isBlocked(ip) {
		e.logEvent(QueryEvent{Domain: domain, Nameserver: nameserver, Err: ErrNameServerBlocked})
		return newTimeoutResponse(domain, nameserver)
	}

	var (
		mu       sync.Mutex
		records  = map[DNSRecord]bool{}
		rcodes   = map[string]string{}
		timedOut bool
		wg       sync.WaitGroup
	)

	for _, t := range types {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, rcode, err := e.sendRequest(ctx, domain, nameserver, t, 0)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				timedOut = true
				return
			}
			for _, r := range recs {
				records[r] = true
			}
			rcodes[string(t)] = rcode
		}()
	}
	wg.Wait()

	if timedOut {
		return newTimeoutResponse(domain, nameserver)
	}
	return QueryResponse{Records: records, Rcodes: rcodes, Domain: domain, Nameserver: nameserver}
}

// sendRequest performs one DNS exchange for domain/recordType against
// nameserver, retrying with exponentially scaled timeouts up to
// Config.RequestRetries. A connection refusal or reset blocks the
// nameserver permanently; exhausting the retries does too.
func (e *QueryEngine) sendRequest(ctx context.Context, domain, nameserver string, t RecordType, retry int) ([]DNSRecord, string, error) {
	ip := nameserverIP(nameserver)
	if e.isBlocked(ip) {
		return nil, "", ErrNameServerBlocked
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	id := e.registerPending(ip, cancel)
	defer e.unregisterPending(ip, id)
	defer cancel()

	if err := e.limiterFor(ip).Wait(ctx); err != nil {
		return nil, "", err
	}
	e.markActive()

	timeout := e.cfg.timeoutForRetry(retry)
	client := &dns.Client{Net: "udp", Timeout: timeout}

	var dialer ProxyDialer
	if proxyCfg, ok := selectProxy(e.cfg.Proxies); ok {
		client.Net = "tcp"
		factory := e.ProxyDialerFactory
		if factory == nil {
			factory = NewSOCKS5Dialer
		}
		d, err := factory(proxyCfg)
		if err != nil {
			return nil, "", err
		}
		dialer = d
	}

	msg := new(dns.Msg)
	qtype, ok := supportedRecordTypes[t]
	if !ok {
		return nil, "", ErrUnsupportedRecordType
	}
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = false

	addr := e.nameserverAddr(nameserver)

	start := time.Now()
	resp, err := e.exchange(ctx, client, msg, addr, dialer)
	rtt := time.Since(start)

	if err != nil {
		if isRefused(err) {
			e.blockNameserver(ip)
			e.logEvent(QueryEvent{Domain: domain, Nameserver: nameserver, Type: t, Retry: retry, RTT: rtt, Err: err})
			return nil, "", err
		}
		if retry >= e.cfg.RequestRetries {
			e.blockNameserver(ip)
			e.logEvent(QueryEvent{Domain: domain, Nameserver: nameserver, Type: t, Retry: retry, RTT: rtt, Err: err})
			return nil, "", err
		}
		e.logEvent(QueryEvent{Domain: domain, Nameserver: nameserver, Type: t, Retry: retry, RTT: rtt, Err: err})
		return e.sendRequest(ctx, domain, nameserver, t, retry+1)
	}

	rcode := dns.RcodeToString[resp.Rcode]
	e.logEvent(QueryEvent{Domain: domain, Nameserver: nameserver, Type: t, Retry: retry, RTT: rtt, Rcode: rcode})

	var records []DNSRecord
	for _, section := range [][]dns.RR{resp.Answer, resp.Ns, resp.Extra} {
		for _, rr := range section {
			if rec, ok := toDNSRecord(rr); ok {
				records = append(records, rec)
			}
		}
	}
	return records, rcode, nil
}

// exchange runs the wire exchange on its own goroutine and returns as soon
// as either the exchange or ctx finishes. The exchange itself only observes
// ctx at dial time, so without this the cancellation that blocking a
// nameserver triggers would not take effect until the read deadline.
func (e *QueryEngine) exchange(ctx context.Context, client *dns.Client, msg *dns.Msg, addr string, dialer ProxyDialer) (*dns.Msg, error) {
	type exchangeResult struct {
		resp *dns.Msg
		err  error
	}
	// The buffered channel lets an abandoned exchange finish and exit on
	// its own read deadline after a cancellation.
	ch := make(chan exchangeResult, 1)
	go func() {
		var (
			resp *dns.Msg
			err  error
		)
		if dialer != nil {
			resp, err = exchangeViaDialer(client, msg, addr, dialer)
		} else {
			resp, _, err = client.ExchangeContext(ctx, msg, addr)
		}
		ch <- exchangeResult{resp, err}
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func exchangeViaDialer(client *dns.Client, msg *dns.Msg, addr string, dialer ProxyDialer) (*dns.Msg, error) {
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	dc := &dns.Conn{Conn: conn}
	if client.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(client.Timeout))
	}
	if err := dc.WriteMsg(msg); err != nil {
		return nil, err
	}
	return dc.ReadMsg()
}

func isRefused(err error) bool {
	var opErr *net.OpError
	if asOpError(err, &opErr) {
		if opErr.Timeout() {
			return false
		}
		return opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write"
	}
	return false
}

// asOpError is a tiny errors.As stand-in kept local to avoid importing
// errors just for this one unwrap (net.OpError doesn't always satisfy a
// clean errors.As chain across platforms' syscall errors).
func asOpError(err error, target **net.OpError) bool {
	for err != nil {
		if oe, ok := err.(*net.OpError); ok {
			*target = oe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func toDNSRecord(rr dns.RR) (DNSRecord, bool) {
	hdr := rr.Header()
	var rdata string
	switch v := rr.(type) {
	case *dns.NS:
		rdata = v.Ns
	case *dns.A:
		rdata = v.A.String()
	case *dns.AAAA:
		rdata = v.AAAA.String()
	default:
		return DNSRecord{}, false
	}

	var typ RecordType
	switch hdr.Rrtype {
	case dns.TypeNS:
		typ = TypeNS
	case dns.TypeA:
		typ = TypeA
	case dns.TypeAAAA:
		typ = TypeAAAA
	default:
		return DNSRecord{}, false
	}

	return DNSRecord{
		Owner: canonical(hdr.Name),
		TTL:   hdr.Ttl,
		Class: dns.ClassToString[hdr.Class],
		Type:  typ,
		Rdata: rdata,
	}, true
}

func nameserverIP(nameserver string) string {
	if host, _, err := net.SplitHostPort(nameserver); err == nil {
		return host
	}
	return nameserver
}

// nameserverAddr returns the address to dial for nameserver: nameserver
// itself if it already names a port, or nameserver:DefaultPort otherwise.
func (e *QueryEngine) nameserverAddr(nameserver string) string {
	if _, _, err := net.SplitHostPort(nameserver); err == nil {
		return nameserver
	}
	port := e.cfg.DefaultPort
	if port == "" {
		port = "53"
	}
	return net.JoinHostPort(nameserver, port)
}

func (e *QueryEngine) isBlocked(ip string) bool {
	e.blockedMu.Lock()
	defer e.blockedMu.Unlock()
	return e.blocked[ip]
}

// blockNameserver marks ip as permanently unusable and cancels every
// exchange still in flight against it.
func (e *QueryEngine) blockNameserver(ip string) {
	e.blockedMu.Lock()
	e.blocked[ip] = true
	e.blockedMu.Unlock()

	e.pendingMu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.pending[ip]))
	for _, cancel := range e.pending[ip] {
		cancels = append(cancels, cancel)
	}
	e.pendingMu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (e *QueryEngine) registerPending(ip string, cancel context.CancelFunc) int64 {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.pendingSeq++
	if e.pending[ip] == nil {
		e.pending[ip] = map[int64]context.CancelFunc{}
	}
	e.pending[ip][e.pendingSeq] = cancel
	return e.pendingSeq
}

func (e *QueryEngine) unregisterPending(ip string, id int64) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	delete(e.pending[ip], id)
	if len(e.pending[ip]) == 0 {
		delete(e.pending, ip)
	}
}

func (e *QueryEngine) limiterFor(ip string) *ratelimit.Limiter {
	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()
	l, ok := e.limiters[ip]
	if !ok {
		l = ratelimit.New(e.cfg.rateLimitFor(ip), time.Second)
		e.limiters[ip] = l
	}
	return l
}

func (e *QueryEngine) logEvent(ev QueryEvent) {
	if e.LogFunc != nil {
		e.LogFunc(ev)
	}
}

// markActive records a request admission and lazily starts the
// requests-per-second sampler, which runs in the background while activity
// continues and stands down once the engine goes idle.
func (e *QueryEngine) markActive() {
	atomic.AddInt64(&e.requestsSent, 1)

	e.rpsMu.Lock()
	defer e.rpsMu.Unlock()
	if e.rpsRunning {
		return
	}
	e.rpsRunning = true
	e.wg.Add(1)
	go e.runRPSSampler()
}

// runRPSSampler samples requests_sent once per second, updating min/max/avg
// statistics, and exits once two consecutive windows see no new requests.
func (e *QueryEngine) runRPSSampler() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last int64
	idleWindows := 0

	for {
		select {
		case <-ticker.C:
			cur := atomic.LoadInt64(&e.requestsSent)
			delta := cur - last
			last = cur

			e.rpsMu.Lock()
			e.recordRPSSampleLocked(delta)
			e.rpsMu.Unlock()

			if delta == 0 {
				idleWindows++
			} else {
				idleWindows = 0
			}
			if idleWindows >= 2 {
				e.rpsMu.Lock()
				e.rpsRunning = false
				e.rpsMu.Unlock()
				return
			}
		case <-e.rpsDone:
			return
		}
	}
}

func (e *QueryEngine) recordRPSSampleLocked(delta int64) {
	d := int(delta)
	if !e.rpsStatsSet {
		e.rpsStats.MinPerWindow = d
		e.rpsStats.MaxPerWindow = d
		e.rpsStats.AvgPerWindow = float64(d)
		e.rpsStatsSet = true
		e.rpsStats.ResetCount = 1
		return
	}
	if d < e.rpsStats.MinPerWindow {
		e.rpsStats.MinPerWindow = d
	}
	if d > e.rpsStats.MaxPerWindow {
		e.rpsStats.MaxPerWindow = d
	}
	n := e.rpsStats.ResetCount
	e.rpsStats.AvgPerWindow = (float64(n)*e.rpsStats.AvgPerWindow + float64(d)) / float64(n+1)
	e.rpsStats.ResetCount = n + 1
}

// RPSStats reports the requests-per-second sampler's accumulated min/max/avg
// statistics.
func (e *QueryEngine) RPSStats() ratelimit.Stats {
	e.rpsMu.Lock()
	defer e.rpsMu.Unlock()
	stats := e.rpsStats
	stats.TotalAdmitted = atomic.LoadInt64(&e.requestsSent)
	return stats
}

// CacheStats reports the response cache's hit/miss counters.
func (e *QueryEngine) CacheStats() cache.Stats {
	return e.respCache.Stats()
}

// BlockedNameservers returns the sorted IPs currently blocked from further
// requests.
func (e *QueryEngine) BlockedNameservers() []string {
	e.blockedMu.Lock()
	defer e.blockedMu.Unlock()
	ips := make([]string, 0, len(e.blocked))
	for ip := range e.blocked {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Close stops the RPS sampler and every per-nameserver limiter, and waits
// for background work to finish. The underlying DNS sockets need no
// explicit cleanup: miekg/dns opens and closes one per exchange.
func (e *QueryEngine) Close() {
	e.closeOnce.Do(func() {
		close(e.rpsDone)
		e.limitersMu.Lock()
		for _, l := range e.limiters {
			l.Stop()
		}
		e.limitersMu.Unlock()
		e.wg.Wait()
	})
}

package dnscrawler

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// TestServer is an in-process authoritative name server backed by an RFC
// 1035 zonefile. It distinguishes NOERROR-empty ("the name exists but has
// no records of the queried type") from NXDOMAIN ("the name has no records
// at all"), the distinction the crawler's misconfiguration and
// empty-non-terminal classification turns on.
type TestServer struct {
	t        *testing.T
	db       map[uint16]map[string][]dns.RR
	requests int64
	dns.Server
}

// Requests returns how many queries the server has answered, for asserting
// that coalescing and caching actually suppress duplicate exchanges.
func (srv *TestServer) Requests() int64 {
	return atomic.LoadInt64(&srv.requests)
}

// NewTestServer starts a name server on addr:5354/udp serving zone (an RFC
// 1035 zonefile, default origin "."), and returns once it's listening. The
// server is shut down when the test finishes.
func NewTestServer(t *testing.T, addr string, zone string) *TestServer {
	t.Helper()
	srv := &TestServer{t: t, db: map[uint16]map[string][]dns.RR{}}

	zp := dns.NewZoneParser(strings.NewReader(strings.TrimSpace(zone)+"\n"), ".", addr+".zone")
	zp.SetIncludeAllowed(false)
	for {
		rr, ok := zp.Next()
		if !ok {
			break
		}
		hdr := rr.Header()
		if srv.db[hdr.Rrtype] == nil {
			srv.db[hdr.Rrtype] = map[string][]dns.RR{}
		}
		srv.db[hdr.Rrtype][hdr.Name] = append(srv.db[hdr.Rrtype][hdr.Name], rr)
	}
	if err := zp.Err(); err != nil {
		t.Fatalf("parsing zone for %s: %v", addr, err)
	}

	ln, err := net.ListenPacket("udp", addr+":5354")
	if err != nil {
		t.Fatalf("listening on %s:5354/udp: %v", addr, err)
	}

	srv.Server = dns.Server{PacketConn: ln, Handler: srv.handler()}

	ready := make(chan struct{})
	srv.Server.NotifyStartedFunc = func() { close(ready) }

	expectErr := make(chan struct{})
	t.Cleanup(func() {
		close(expectErr)
		srv.Shutdown()
	})

	go func() {
		err := srv.ActivateAndServe()
		select {
		case <-expectErr:
		default:
			if err != nil {
				t.Errorf("name server on %s: %v", addr, err)
			}
		}
	}()
	<-ready

	return srv
}

func (srv *TestServer) handler() dns.Handler {
	return dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		atomic.AddInt64(&srv.requests, 1)
		m := new(dns.Msg)
		m.SetReply(r)
		m.Authoritative = true

		if len(r.Question) != 1 {
			m.SetRcode(r, dns.RcodeFormatError)
			w.WriteMsg(m)
			return
		}

		q := r.Question[0]
		answers := srv.db[q.Qtype][q.Name]
		if len(answers) == 0 {
			// No records of the queried type for this exact owner: NOERROR
			// with an empty answer section (empty non-terminal / plain
			// no-data) unless the name has no records of ANY type, which
			// this harness treats as NXDOMAIN.
			if !srv.hasAnyRecords(q.Name) {
				m.SetRcode(r, dns.RcodeNameError)
				w.WriteMsg(m)
				return
			}
			w.WriteMsg(m)
			return
		}

		m.Answer = answers
		if q.Qtype == dns.TypeNS {
			for _, rr := range answers {
				ns, ok := rr.(*dns.NS)
				if !ok {
					continue
				}
				m.Extra = append(m.Extra, srv.db[dns.TypeA][ns.Ns]...)
				m.Extra = append(m.Extra, srv.db[dns.TypeAAAA][ns.Ns]...)
			}
		}
		w.WriteMsg(m)
	})
}

func (srv *TestServer) hasAnyRecords(name string) bool {
	for _, byName := range srv.db {
		if len(byName[name]) > 0 {
			return true
		}
	}
	return false
}

// NewRootServer starts a server on rootAddr:5354/udp serving NS records for
// com., net., and org. pointing at tldAddr.
func NewRootServer(t *testing.T, rootAddr, tldAddr string) *TestServer {
	return NewTestServer(t, rootAddr, `
com.                   321  IN  NS  gtld-server.net.test.
net.                   321  IN  NS  gtld-server.net.test.
org.                   321  IN  NS  gtld-server.net.test.
gtld-server.net.test.  321  IN  A   `+tldAddr)
}

// Lab runs a root server, a tld server, and one zone server per entry of
// zones, each serving the given zonefile body under its own origin.
type Lab struct {
	RootServer  *TestServer
	TLDServer   *TestServer
	ZoneServers map[string]*TestServer
}

// NewLab starts the lab's servers and returns a Config whose root servers
// point at the lab's root server by bare IP, with DefaultPort set to 5354
// since the lab listens there, not on the standard port 53.
func NewLab(t *testing.T, zones map[string]string) (*Lab, Config) {
	t.Helper()

	lab := &Lab{ZoneServers: map[string]*TestServer{}}

	var names []string
	for name := range zones {
		names = append(names, name)
	}

	var tldZone strings.Builder
	// The tld server answers authoritatively for com./net./org. themselves
	// (the walker's child-phase verification re-queries each zone at its
	// own nameservers), not just for the delegations under them.
	for _, tld := range []string{"com.", "net.", "org."} {
		fmt.Fprintf(&tldZone, "%s\t321\tIN\tNS\tgtld-server.net.test.\n", tld)
	}
	tldZone.WriteString("gtld-server.net.test.\t321\tIN\tA\t127.0.0.100\n")
	for i, name := range names {
		addr := net.IP{127, 0, 0, byte(101 + i)}.String()
		fqdn := dns.CanonicalName(name)
		fmt.Fprintf(&tldZone, "%s\t321\tIN\tNS\t%d.ns.test.\n", fqdn, i)
		fmt.Fprintf(&tldZone, "%d.ns.test.\t321\tIN\tA\t%s\n", i, addr)
		lab.ZoneServers[name] = NewTestServer(t, addr,
			"$ORIGIN "+fqdn+"\n"+strings.TrimSpace(zones[name]))
	}

	lab.TLDServer = NewTestServer(t, "127.0.0.100", tldZone.String())
	lab.RootServer = NewRootServer(t, "127.0.0.250", "127.0.0.100")

	cfg := DefaultConfig()
	cfg.RootServers = map[string][]string{"a.root-servers.net.": {"127.0.0.250"}}
	cfg.DefaultPort = "5354"
	cfg.RequestTimeout = 300 * time.Millisecond
	cfg.MaxTimeout = 800 * time.Millisecond
	cfg.RequestRetries = 1
	return lab, cfg
}

package dnscrawler

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/dnscrawler/dnscrawler/cache"
	"github.com/dnscrawler/dnscrawler/graph"
)

// crawl holds every piece of state private to one GetHostDependencies call:
// the graph, the nameserver glue cache, the resolution caches, and the
// accumulated dependency/summary sets. All of it is instantiated at the
// start of the call and discarded at its end.
//
// None of this state is guarded by a mutex, and that is load-bearing:
// mapName gathers concurrent query results with goroutines, but every
// goroutine it spawns only calls engine.Query (the one component that is
// genuinely shared and internally synchronized) and hands its result back.
// All reading and mutation of crawl state happens on the single goroutine
// driving one mapName call, never inside the spawned goroutines themselves.
// Two crawls never share a *crawl; only the QueryEngine underneath them is
// shared.
type crawl struct {
	engine  *QueryEngine
	cfg     Config
	graph   *graph.Graph
	version string

	glue map[string]map[string]bool // nameserver hostname -> ips
	// pastResolutions interns its NSSet values: the same handful of
	// distinct nameserver/ip sets (root, TLD, a few large hosting
	// providers) recur across thousands of resolved names in a real crawl.
	pastResolutions   *cache.InternCache[string, NSSet]
	activeResolutions map[string]bool // keyed by registrable domain
	nonHazardousCycle map[string]bool // name -> true once recorded cycle-safe

	deps                 *dependencySets
	hazardousDomains     *summaryList
	misconfiguredDomains map[graph.Misconfiguration]*summaryList

	LogFunc func(WalkEvent)
}

func newCrawl(engine *QueryEngine, cfg Config, g *graph.Graph) *crawl {
	glue := map[string]map[string]bool{}
	for host, ips := range cfg.RootServers {
		set := map[string]bool{}
		for _, ip := range ips {
			set[ip] = true
		}
		glue[host] = set
	}

	return &crawl{
		engine:            engine,
		cfg:               cfg,
		graph:             g,
		version:           g.Version,
		glue:              glue,
		pastResolutions:   cache.NewInterned[string, NSSet](0),
		activeResolutions: map[string]bool{},
		nonHazardousCycle: map[string]bool{},
		deps:              newDependencySets(),
		hazardousDomains:  newSummaryList(),
		misconfiguredDomains: map[graph.Misconfiguration]*summaryList{
			graph.MisconfigInvalidNSRecord:  newSummaryList(),
			graph.MisconfigMissingNSRecords: newSummaryList(),
			graph.MisconfigIPNSRecords:      newSummaryList(),
		},
	}
}

// glueFor returns the known IPs for nameserver hostname, sorted.
func (c *crawl) glueFor(nameserver string) []string {
	ips := make([]string, 0, len(c.glue[nameserver]))
	for ip := range c.glue[nameserver] {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

func (c *crawl) addGlue(nameserver, ip string) {
	if c.glue[nameserver] == nil {
		c.glue[nameserver] = map[string]bool{}
	}
	c.glue[nameserver][ip] = true
}

// randomRootServer picks one root server uniformly at random.
func (c *crawl) randomRootServer() (string, []string) {
	hosts := make([]string, 0, len(c.cfg.RootServers))
	for h := range c.cfg.RootServers {
		hosts = append(hosts, h)
	}
	host := hosts[rand.Intn(len(hosts))]
	return host, c.cfg.RootServers[host]
}

func (c *crawl) logWalk(ev WalkEvent) {
	if c.LogFunc != nil {
		c.LogFunc(ev)
	}
}

// graphExtract adapts extract to the shape package graph consumes. The
// graph package joins the parts with its own separators, so the suffix is
// handed over without its trailing root label.
func graphExtract(n string) graph.SuffixParts {
	p := extract(n)
	return graph.SuffixParts{
		Subdomain: p.Subdomain,
		Domain:    p.Domain,
		Suffix:    strings.TrimSuffix(p.Suffix, "."),
	}
}

// nodeType infers a hostname's NodeType the same way graph.Graph does
// internally for synthesized parent nodes; this logic lives here (not
// in package graph) because it depends on this package's extract(), the
// concrete public-suffix wrapper graph.ExtractFunc is injected as.
func nodeType(name string) graph.NodeType {
	if isIPLiteral(name) {
		if ip := name; isIPv6Literal(ip) {
			return graph.TypeIPv6
		}
		return graph.TypeIPv4
	}
	if isSingleLabel(name) {
		return graph.TypeTLD
	}
	parts := extract(name)
	switch {
	case parts.Domain == "":
		return graph.TypePublicSuffixTLD
	case parts.Subdomain == "":
		return graph.TypeDomain
	default:
		return graph.TypeSubdomain
	}
}

package dnscrawler

import (
	"context"
	"errors"
	"time"

	"github.com/dnscrawler/dnscrawler/graph"
)

// Summary is the deterministic, fixed-key projection of one crawl's
// accumulated dependency sets. All slice fields are sorted and case-folded.
type Summary struct {
	Query string `json:"query"`

	NS     []string `json:"ns"`
	IPv4   []string `json:"ipv4"`
	IPv6   []string `json:"ipv6"`
	TLD    []string `json:"tld"`
	SLD    []string `json:"sld"`
	PSNS   []string `json:"ps_ns"`
	PSIPv4 []string `json:"ps_ipv4"`
	PSIPv6 []string `json:"ps_ipv6"`
	PSTLD  []string `json:"ps_tld"`
	PSSLD  []string `json:"ps_sld"`

	HazardousDomains     map[string][]querySummary                            `json:"hazardous_domains"`
	MisconfiguredDomains map[graph.Misconfiguration]map[string][]querySummary `json:"misconfigured_domains"`
}

// CrawlOptions configures one GetHostDependencies call.
type CrawlOptions struct {
	IsNS     bool
	Version  string // RFC-3339 crawl version stamp; defaults to time.Now() if empty
	WithJSON bool
	WithRDF  bool

	LogFunc func(WalkEvent)
}

// CrawlResult bundles the flat summary with the graph and, when requested,
// its JSON and RDF serializations.
type CrawlResult struct {
	Summary Summary
	Graph   *graph.Graph
	JSON    []byte
	RDF     string
}

// GetHostDependencies is the crawl orchestrator: it builds a fresh graph and
// per-crawl caches, walks name from the root down, and projects the
// accumulated state into a Summary. It never fails on network conditions;
// those surface as hazard/misconfiguration entries in the Summary, not as
// errors.
func GetHostDependencies(ctx context.Context, engine *QueryEngine, cfg Config, name string, opts CrawlOptions) (result CrawlResult, err error) {
	// The crawl's single recovery boundary: invariant violations are raised
	// as panics wherever they're detected and surface here as an error a
	// caller can test with errors.Is; anything else keeps propagating.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrInvariant) {
				result = CrawlResult{}
				err = e
				return
			}
			panic(r)
		}
	}()

	version := opts.Version
	if version == "" {
		version = time.Now().UTC().Format(time.RFC3339)
	}

	g := graph.New(version, graphExtract)

	c := newCrawl(engine, cfg, g)
	c.LogFunc = opts.LogFunc

	name = canonical(name)
	rootNode := g.CreateNode(name, nodeType(name))

	w := newWalker(c)
	if _, err := w.mapName(ctx, name, name, "", opts.IsNS, rootNode); err != nil {
		return CrawlResult{}, err
	}

	summary := Summary{
		Query:  name,
		NS:     sortedKeys(c.deps.ns),
		IPv4:   sortedKeys(c.deps.ipv4),
		IPv6:   sortedKeys(c.deps.ipv6),
		TLD:    sortedKeys(c.deps.tld),
		SLD:    sortedKeys(c.deps.sld),
		PSNS:   sortedKeys(c.deps.psNS),
		PSIPv4: sortedKeys(c.deps.psIPv4),
		PSIPv6: sortedKeys(c.deps.psIPv6),
		PSTLD:  sortedKeys(c.deps.psTLD),
		PSSLD:  sortedKeys(c.deps.psSLD),

		HazardousDomains:     c.hazardousDomains.byName,
		MisconfiguredDomains: map[graph.Misconfiguration]map[string][]querySummary{},
	}
	for tag, list := range c.misconfiguredDomains {
		if len(list.byName) > 0 {
			summary.MisconfiguredDomains[tag] = list.byName
		}
	}

	result = CrawlResult{Summary: summary, Graph: g}
	if opts.WithJSON {
		j, err := g.JSON()
		if err != nil {
			return CrawlResult{}, err
		}
		result.JSON = j
	}
	if opts.WithRDF {
		result.RDF = g.RDF()
	}
	return result, nil
}

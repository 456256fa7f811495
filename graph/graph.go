package graph

import (
	"strings"
	"sync"
)

// SuffixParts is the result of splitting a hostname on its public suffix.
// The graph package depends on this shape, not on any particular PSL
// implementation, so the caller supplies the extractor.
type SuffixParts struct {
	Subdomain string
	Domain    string
	Suffix    string
}

// ExtractFunc extracts the registrable-domain parts of a hostname.
type ExtractFunc func(name string) SuffixParts

// Graph is a de-duplicated, typed dependency graph plus the crawl's version
// stamp. The zero value is not usable; construct with New.
type Graph struct {
	Version string

	extract ExtractFunc

	mu    sync.Mutex
	nodes map[string]*Node
}

// New returns an empty Graph stamped with version and using extract to
// resolve parent-zone relationships at node creation.
func New(version string, extract ExtractFunc) *Graph {
	return &Graph{
		Version: version,
		extract: extract,
		nodes:   map[string]*Node{},
	}
}

// CreateNode returns the graph's node for (name, typ), creating it (along
// with, transitively, its parent-zone node and provisioning edge) if one
// doesn't already exist. Re-creating a node with the same xid returns the
// existing node unchanged; callers merge additional state onto it with
// AddTrust/AddMisconfiguration/the Is* fields directly, which is always
// safe because CreateNode never replaces an existing entry.
func (g *Graph) CreateNode(name string, typ NodeType) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createNodeLocked(name, typ)
}

func (g *Graph) createNodeLocked(name string, typ NodeType) *Node {
	xid := typePrefix[typ] + "$" + name
	if existing, ok := g.nodes[xid]; ok {
		return existing
	}

	node := newNode(name, typ, g.Version)
	// Insert the forward node before triggering parent creation so a cycle
	// in the parent chain can't re-enter createNodeLocked for the same xid.
	g.nodes[xid] = node

	if typ.IsIP() {
		return node
	}

	parentName, hasParent := g.parentZone(name)
	if hasParent && parentName != name {
		parentType := g.inferType(parentName)
		parentNode := g.createNodeLocked(parentName, parentType)
		node.AddTrust(EdgeProvisioning, parentNode.Xid())
	}

	return node
}

// parentZone computes the parent-zone name: a subdomain's parent is its
// registrable domain, a registrable domain's parent is its public suffix,
// and a public-suffix TLD is its own parent (no edge produced by the
// caller, since parentName == name short-circuits in createNodeLocked).
func (g *Graph) parentZone(name string) (parent string, ok bool) {
	parts := g.extract(name)

	if parts.Subdomain != "" {
		return parts.Domain + "." + parts.Suffix + ".", true
	}
	if parts.Domain != "" {
		return parts.Suffix + ".", true
	}

	labels := nonEmptyLabels(name)
	if len(labels) > 1 {
		return strings.Join(labels[1:], ".") + ".", true
	}
	return name, false
}

// inferType guesses a hostname's NodeType from its shape, used only for
// nodes synthesized as another node's parent zone (the caller always knows
// the concrete type for nodes it creates directly).
func (g *Graph) inferType(name string) NodeType {
	labels := nonEmptyLabels(name)
	if len(labels) == 1 {
		return TypeTLD
	}

	parts := g.extract(name)
	switch {
	case parts.Domain == "":
		return TypePublicSuffixTLD
	case parts.Subdomain == "":
		return TypeDomain
	default:
		return TypeSubdomain
	}
}

func nonEmptyLabels(name string) []string {
	var labels []string
	for _, l := range strings.Split(name, ".") {
		if l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// Get returns the node for xid, if present.
func (g *Graph) Get(xid string) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[xid]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Nodes returns a snapshot slice of all nodes, sorted by xid.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortedNodesLocked()
}

func (g *Graph) sortedNodesLocked() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	sortNodesByXid(nodes)
	return nodes
}

// Merge merges other into g: every node in other is created (or found) in g
// by xid and OR/union-merged onto it. Merge is cycle-safe: a node present
// in both graphs, however it's reached, is merged at most once per call.
//
// Merge exists for combining independently-built graphs (e.g. a batch
// driver merging one graph per crawled host into a single bulk-load file);
// a single crawl never needs it, since every node created during that crawl
// is interned into one shared *Graph by construction.
func (g *Graph) Merge(other *Graph) {
	other.mu.Lock()
	otherNodes := other.sortedNodesLocked()
	other.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	merged := map[string]bool{}
	for _, on := range otherNodes {
		xid := typePrefix[on.Type] + "$" + on.Name
		n, ok := g.nodes[xid]
		if !ok {
			n = newNode(on.Name, on.Type, on.Version)
			g.nodes[xid] = n
		}
		n.mergeFrom(on, merged)
	}
}

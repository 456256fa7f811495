// Package graph implements the crawl's de-duplicated, typed dependency
// graph: a set of Nodes keyed by external id (xid), labelled directed trust
// edges between them, and JSON/N-Quad serializers. Nodes reference each
// other by xid rather than by pointer so that merging never has to walk a
// live object cycle; the graph itself, not individual nodes, owns identity.
package graph

import "sort"

// NodeType drives a node's xid prefix and, at serialization, its schema.
type NodeType string

const (
	TypeNameserver      NodeType = "nameserver"
	TypeIPv4            NodeType = "ipv4"
	TypeIPv6            NodeType = "ipv6"
	TypeDomain          NodeType = "domain"
	TypeSubdomain       NodeType = "subdomain"
	TypeTLD             NodeType = "tld"
	TypePublicSuffixTLD NodeType = "public_suffix_tld"
)

var typePrefix = map[NodeType]string{
	TypeNameserver:      "NSR",
	TypeIPv4:            "IP4",
	TypeIPv6:            "IP6",
	TypeDomain:          "DMN",
	TypeSubdomain:       "SDN",
	TypeTLD:             "TLD",
	TypePublicSuffixTLD: "PS_TLD",
}

// IsIP reports whether t is one of the two IP node types. IP nodes never
// get a parent-zone provisioning edge.
func (t NodeType) IsIP() bool {
	return t == TypeIPv4 || t == TypeIPv6
}

// EdgeLabel names a trust relationship between two nodes.
type EdgeLabel string

const (
	EdgeParent       EdgeLabel = "parent"
	EdgeChild        EdgeLabel = "child"
	EdgeProvisioning EdgeLabel = "provisioning"
)

var edgeLabels = []EdgeLabel{EdgeChild, EdgeParent, EdgeProvisioning}

// Misconfiguration tags a zone's misconfiguration kind.
type Misconfiguration string

const (
	MisconfigInvalidNSRecord  Misconfiguration = "invalid_ns_record"
	MisconfigMissingNSRecords Misconfiguration = "missing_ns_records"
	MisconfigIPNSRecords      Misconfiguration = "ip_ns_records"
)

// Node is one entity in the dependency graph: a nameserver, an IP literal,
// or a domain/subdomain/TLD/public-suffix-TLD hostname.
type Node struct {
	Name string
	Type NodeType

	// Version is the crawl's version stamp, fixed at graph construction.
	Version string

	IsHazardous        bool
	IsMisconfigured    bool
	IsEmptyNonTerminal bool
	IsPublicSuffix     bool

	Misconfigurations map[Misconfiguration]bool
	Trusts            map[EdgeLabel]map[string]bool // label -> set of target xids
}

func newNode(name string, typ NodeType, version string) *Node {
	return &Node{
		Name:    name,
		Type:    typ,
		Version: version,
	}
}

// Xid returns the node's external id: "{typePrefix}${canonicalName}".
func (n *Node) Xid() string {
	return typePrefix[n.Type] + "$" + n.Name
}

// Uid returns the node's internal (blank-node) identifier for
// JSON/RDF serialization.
func (n *Node) Uid() string {
	return XidToUid(n.Xid())
}

// XidToUid derives a node's blank-node uid from its xid without requiring a
// lookup of the node itself. Every node's uid is a pure function of its
// xid, so edges can reference a target by xid alone.
func XidToUid(xid string) string {
	return "_:" + xid
}

// AddTrust records a trust edge labelled by label from n to the node
// identified by targetXid.
func (n *Node) AddTrust(label EdgeLabel, targetXid string) {
	if n.Trusts == nil {
		n.Trusts = map[EdgeLabel]map[string]bool{}
	}
	if n.Trusts[label] == nil {
		n.Trusts[label] = map[string]bool{}
	}
	n.Trusts[label][targetXid] = true
}

// AddMisconfiguration tags n with the given misconfiguration kind and sets
// IsMisconfigured.
func (n *Node) AddMisconfiguration(tag Misconfiguration) {
	if n.Misconfigurations == nil {
		n.Misconfigurations = map[Misconfiguration]bool{}
	}
	n.Misconfigurations[tag] = true
	n.IsMisconfigured = true
}

// sortedMisconfigurations returns n's misconfiguration tags in sorted order.
func (n *Node) sortedMisconfigurations() []string {
	tags := make([]string, 0, len(n.Misconfigurations))
	for tag := range n.Misconfigurations {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	return tags
}

// sortNodesByXid sorts nodes in place by their xid.
func sortNodesByXid(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Xid() < nodes[j].Xid()
	})
}

// sortedTrustUids returns the sorted target uids for one edge label.
func (n *Node) sortedTrustUids(label EdgeLabel) []string {
	xids := n.Trusts[label]
	uids := make([]string, 0, len(xids))
	for xid := range xids {
		uids = append(uids, XidToUid(xid))
	}
	sort.Strings(uids)
	return uids
}

// mergeFrom OR-merges other's flags and union-merges its misconfiguration
// tags and trust edges into n. merged guards against re-merging the same
// xid twice within one merge, which keeps merging terminating even when the
// two graphs share trust cycles.
func (n *Node) mergeFrom(other *Node, merged map[string]bool) {
	xid := n.Xid()
	if merged[xid] {
		return
	}
	merged[xid] = true

	n.IsHazardous = n.IsHazardous || other.IsHazardous
	n.IsEmptyNonTerminal = n.IsEmptyNonTerminal || other.IsEmptyNonTerminal
	n.IsPublicSuffix = n.IsPublicSuffix || other.IsPublicSuffix

	for tag := range other.Misconfigurations {
		n.AddMisconfiguration(tag)
	}
	for _, label := range edgeLabels {
		for xid := range other.Trusts[label] {
			n.AddTrust(label, xid)
		}
	}
}

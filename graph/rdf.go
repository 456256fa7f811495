package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// rdf renders n as N-Quad lines: one statement per scalar attribute, plus
// one edge quad per trust relationship. The two quads linking the node to
// its details and trusts records carry first_seen/last_seen facets equal
// to the node's version; the per-label trust edge quads and the scalar
// attribute quads carry no facets.
func (n *Node) rdf() []string {
	detailsXid := n.Xid() + "_details_" + n.Version
	detailsUid := XidToUid(detailsXid)
	trustsXid := n.Xid() + "_trust_" + n.Version
	trustsUid := XidToUid(trustsXid)

	var lines []string

	lines = append(lines,
		quad(n.Uid(), "name", n.Name),
		quad(n.Uid(), "dgraph.type", string(n.Type)),
		quad(n.Uid(), "xid", n.Xid()),

		quad(detailsUid, "is_hazardous", strconv.FormatBool(n.IsHazardous)),
		quad(detailsUid, "is_misconfigured", strconv.FormatBool(n.IsMisconfigured)),
		quad(detailsUid, "is_empty_nonterminal", strconv.FormatBool(n.IsEmptyNonTerminal)),
		quad(detailsUid, "is_public_suffix", strconv.FormatBool(n.IsPublicSuffix)),
		quad(detailsUid, "xid", detailsXid),
		quad(detailsUid, "dgraph.type", "node_details"),

		quad(trustsUid, "xid", trustsXid),
		quad(trustsUid, "dgraph.type", "node_trusts"),
	)

	for _, tag := range n.sortedMisconfigurations() {
		lines = append(lines, quad(detailsUid, "misconfiguration", tag))
	}

	for _, label := range edgeLabels {
		for _, uid := range n.sortedTrustUids(label) {
			lines = append(lines, edgeQuad(trustsUid, string(label), uid))
		}
	}

	lines = append(lines,
		edgeQuadWithFacets(n.Uid(), "details", detailsUid, n.Version),
		edgeQuadWithFacets(n.Uid(), "trusts", trustsUid, n.Version),
	)

	return lines
}

func quad(subject, predicate, value string) string {
	return fmt.Sprintf("<%s> <%s> %q .", subject, predicate, value)
}

func edgeQuad(subject, predicate, objectUid string) string {
	return fmt.Sprintf("<%s> <%s> <%s> .", subject, predicate, objectUid)
}

func edgeQuadWithFacets(subject, predicate, objectUid, version string) string {
	return fmt.Sprintf("<%s> <%s> <%s> (first_seen=%q, last_seen=%q) .",
		subject, predicate, objectUid, version, version)
}

// RDF renders the entire graph as UTF-8 N-Quads, one statement per line,
// nodes ordered by xid for deterministic output.
func (g *Graph) RDF() string {
	nodes := g.Nodes()
	var lines []string
	for _, n := range nodes {
		lines = append(lines, n.rdf()...)
	}
	return strings.Join(lines, "\n")
}

package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testExtract is a tiny stand-in for the public-suffix extractor, good
// enough for .com/.co.uk-shaped fixtures without pulling in the real PSL.
func testExtract(name string) SuffixParts {
	name = strings.TrimSuffix(name, ".")
	labels := strings.Split(name, ".")

	switch len(labels) {
	case 0:
		return SuffixParts{}
	case 1:
		return SuffixParts{Suffix: labels[0]}
	case 2:
		return SuffixParts{Domain: labels[0], Suffix: labels[1]}
	default:
		if labels[len(labels)-2] == "co" && labels[len(labels)-1] == "uk" {
			if len(labels) == 3 {
				return SuffixParts{Domain: labels[0], Suffix: "co.uk"}
			}
			return SuffixParts{
				Subdomain: strings.Join(labels[:len(labels)-3], "."),
				Domain:    labels[len(labels)-3],
				Suffix:    "co.uk",
			}
		}
		return SuffixParts{
			Subdomain: strings.Join(labels[:len(labels)-2], "."),
			Domain:    labels[len(labels)-2],
			Suffix:    labels[len(labels)-1],
		}
	}
}

func TestCreateNodeIsIdempotent(t *testing.T) {
	g := New("v1", testExtract)

	a := g.CreateNode("ns1.example.com.", TypeNameserver)
	b := g.CreateNode("ns1.example.com.", TypeNameserver)

	assert.Same(t, a, b)
}

func TestCreateNodeEstablishesParentChain(t *testing.T) {
	g := New("v1", testExtract)

	sub := g.CreateNode("www.example.com.", TypeSubdomain)

	domain, ok := g.Get("DMN$example.com.")
	require.True(t, ok)

	tld, ok := g.Get("TLD$com.")
	require.True(t, ok)

	assert.Contains(t, sub.Trusts[EdgeProvisioning], domain.Xid())
	assert.Contains(t, domain.Trusts[EdgeProvisioning], tld.Xid())
	assert.Empty(t, tld.Trusts[EdgeProvisioning])
}

func TestCreateNodeTLDHasNoParentEdge(t *testing.T) {
	g := New("v1", testExtract)
	tld := g.CreateNode("com.", TypeTLD)
	assert.Empty(t, tld.Trusts[EdgeProvisioning])
}

func TestCreateNodeIPHasNoParentEdge(t *testing.T) {
	g := New("v1", testExtract)
	ip := g.CreateNode("192.0.2.1", TypeIPv4)
	assert.Empty(t, ip.Trusts)
}

func TestMergeIsOrAndUnion(t *testing.T) {
	g := New("v1", testExtract)
	n1 := g.CreateNode("ns1.example.com.", TypeNameserver)
	n1.IsHazardous = true
	n1.AddMisconfiguration(MisconfigInvalidNSRecord)

	g2 := New("v1", testExtract)
	n2 := g2.CreateNode("ns1.example.com.", TypeNameserver)
	n2.IsEmptyNonTerminal = true
	n2.AddMisconfiguration(MisconfigMissingNSRecords)

	g.Merge(g2)

	merged, ok := g.Get("NSR$ns1.example.com.")
	require.True(t, ok)
	assert.True(t, merged.IsHazardous)
	assert.True(t, merged.IsEmptyNonTerminal)
	assert.True(t, merged.Misconfigurations[MisconfigInvalidNSRecord])
	assert.True(t, merged.Misconfigurations[MisconfigMissingNSRecords])
}

func TestMergeTerminatesOnSharedCycles(t *testing.T) {
	build := func() *Graph {
		g := New("v1", testExtract)
		a := g.CreateNode("ns1.example.com.", TypeNameserver)
		b := g.CreateNode("ns2.example.net.", TypeNameserver)
		a.AddTrust(EdgeChild, b.Xid())
		b.AddTrust(EdgeChild, a.Xid())
		return g
	}

	g1, g2 := build(), build()
	g2.CreateNode("ns3.example.org.", TypeNameserver)

	g1.Merge(g2)

	a, ok := g1.Get("NSR$ns1.example.com.")
	require.True(t, ok)
	b, ok := g1.Get("NSR$ns2.example.net.")
	require.True(t, ok)
	assert.Contains(t, a.Trusts[EdgeChild], b.Xid())
	assert.Contains(t, b.Trusts[EdgeChild], a.Xid())
	_, ok = g1.Get("NSR$ns3.example.org.")
	assert.True(t, ok)
}

func TestMergeNeverClearsFlagsOrEdges(t *testing.T) {
	g := New("v1", testExtract)
	n := g.CreateNode("ns1.example.com.", TypeNameserver)
	n.IsHazardous = true
	n.AddTrust(EdgeParent, "IP4$192.0.2.1")

	g2 := New("v1", testExtract)
	g2.CreateNode("ns1.example.com.", TypeNameserver)

	g.Merge(g2)

	merged, ok := g.Get("NSR$ns1.example.com.")
	require.True(t, ok)
	assert.True(t, merged.IsHazardous)
	assert.Contains(t, merged.Trusts[EdgeParent], "IP4$192.0.2.1")
}

func TestGraphJSONSorted(t *testing.T) {
	g := New("v1", testExtract)
	g.CreateNode("zzz.example.com.", TypeSubdomain)
	g.CreateNode("aaa.example.com.", TypeSubdomain)

	out, err := g.JSON()
	require.NoError(t, err)

	aIdx := strings.Index(string(out), "aaa.example.com.")
	zIdx := strings.Index(string(out), "zzz.example.com.")
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, zIdx)
	assert.Less(t, aIdx, zIdx)
}

func TestGraphRDFEdgesMatchJSONTrusts(t *testing.T) {
	g := New("v1", testExtract)
	sub := g.CreateNode("www.example.com.", TypeSubdomain)
	domain, _ := g.Get("DMN$example.com.")

	rdf := g.RDF()
	assert.Contains(t, rdf, "<"+sub.Uid()+"_trust_v1> <provisioning> <"+domain.Uid()+"> .")
	assert.Contains(t, rdf, `first_seen="v1"`)
	assert.Contains(t, rdf, `last_seen="v1"`)
}

package dnscrawler

import (
	"context"

	"github.com/dnscrawler/dnscrawler/graph"
)

// parseOutcome is what driving the RecordParser over one response yields:
// the ns->ip set discovered for currentName, and whether any NS record with
// rdata "." (an invalid NS target) was seen.
type parseOutcome struct {
	authNS       NSSet
	sawInvalidNS bool
}

// parseRecords walks one response's records for currentName, turning them
// into an authoritative ns->ip NSSet, accumulating dependency sets, and
// recursively triggering re-resolution of glueless out-of-bailiwick
// nameservers through w.
func (w *Walker) parseRecords(ctx context.Context, currentName string, records map[DNSRecord]bool, prefix string, isNS bool, currentNode *graph.Node, edgeLabel graph.EdgeLabel) parseOutcome {
	c := w.c
	authNS := newNSSet()
	nsNames := map[string]bool{}
	nsNodes := map[string]*graph.Node{}
	var nsNamesOrder []string
	sawInvalidNS := false

	addNSName := func(n string) {
		if !nsNames[n] {
			nsNames[n] = true
			nsNamesOrder = append(nsNamesOrder, n)
		}
	}

	for rec := range records {
		if rec.Type != TypeNS {
			continue
		}
		owner := canonical(rec.Owner)
		// "owner is a zone that current_name falls under": current_name ends
		// with owner, i.e. owner is an ancestor-or-equal zone of currentName.
		if !isAncestorOrEqual(owner, currentName) {
			continue
		}
		rdata := canonical(rec.Rdata)
		addNSName(rdata)
		if owner == currentName {
			nsNode := c.graph.CreateNode(rdata, graph.TypeNameserver)
			currentNode.AddTrust(edgeLabel, nsNode.Xid())
			nsNodes[rdata] = nsNode
		}
		c.deps.addNS(prefix, rdata)
	}

	for rec := range records {
		if rec.Type != TypeA && rec.Type != TypeAAAA {
			continue
		}
		owner := canonical(rec.Owner)
		c.addGlue(owner, rec.Rdata)
		if rec.Type == TypeA {
			c.deps.addIPv4(prefix, rec.Rdata)
		} else {
			c.deps.addIPv6(prefix, rec.Rdata)
		}
		if owner == currentName {
			ipType := graph.TypeIPv4
			if rec.Type == TypeAAAA {
				ipType = graph.TypeIPv6
			}
			ipNode := c.graph.CreateNode(rec.Rdata, ipType)
			currentNode.AddTrust(edgeLabel, ipNode.Xid())
			if isNS {
				addNSName(currentName)
			}
		}
	}

	for _, n := range append([]string{currentName}, nsNamesOrder...) {
		emitTLDSLD(c.deps, prefix, n, isNS && n == currentName)
	}

	for _, nsName := range nsNamesOrder {
		if nsName == "." {
			sawInvalidNS = true
			continue
		}

		if ips := c.glueFor(nsName); len(ips) > 0 {
			for _, ip := range ips {
				authNS.Add(nsName, ip)
				if nsNode := nsNodes[nsName]; nsNode != nil {
					w.attachIPNode(nsNode, ip, edgeLabel)
				}
			}
			continue
		}

		reg := registrableDomain(nsName)
		if c.activeResolutions[reg] {
			c.nonHazardousCycle[currentName] = true
			c.logWalk(WalkEvent{Kind: WalkCycleBroken, Name: currentName})
			continue
		}

		if registrableDomain(nsName) == registrableDomain(currentName) {
			// Same zone as currentName and no glue: nothing more we can do
			// without risking an unbounded same-zone loop.
			continue
		}

		c.activeResolutions[reg] = true
		nsNode := nsNodes[nsName]
		if nsNode == nil {
			nsNode = c.graph.CreateNode(nsName, graph.TypeNameserver)
		}
		resolved, err := w.mapName(ctx, nsName, nsName, prefix, true, nsNode)
		if err != nil {
			continue
		}
		for _, ip := range resolved.IPs(nsName) {
			authNS.Add(nsName, ip)
			w.attachIPNode(nsNode, ip, edgeLabel)
		}
	}

	return parseOutcome{authNS: authNS, sawInvalidNS: sawInvalidNS}
}

// attachIPNode interns ip into the graph and records a trust edge from
// nsNode to it.
func (w *Walker) attachIPNode(nsNode *graph.Node, ip string, edgeLabel graph.EdgeLabel) {
	ipType := graph.TypeIPv4
	if isIPv6Literal(ip) {
		ipType = graph.TypeIPv6
	}
	ipNode := w.c.graph.CreateNode(ip, ipType)
	nsNode.AddTrust(edgeLabel, ipNode.Xid())
}

// isAncestorOrEqual reports whether zone is name itself or an ancestor zone
// of name (name ends with zone), the bailiwick test applied to NS record
// owners.
func isAncestorOrEqual(zone, name string) bool {
	if zone == name {
		return true
	}
	if zone == "." {
		return true
	}
	return len(name) > len(zone) && name[len(name)-len(zone):] == zone
}

// emitTLDSLD records the TLD/SLD dependency entries for name. When skipSLD
// is true (a nameserver resolution whose computed SLD equals name itself)
// the SLD entry is omitted.
func emitTLDSLD(deps *dependencySets, prefix, name string, skipSLD bool) {
	parts := extract(name)
	switch {
	case parts.Domain != "":
		sld := parts.Domain + "." + parts.Suffix
		if !(skipSLD && sld == name) {
			deps.addSLD(prefix, sld)
		}
		deps.addTLD(prefix, parts.Suffix)
	default:
		labels := nonEmptyLabels(name)
		if len(labels) > 1 {
			if !skipSLD {
				deps.addSLD(prefix, name)
			}
			deps.addTLD(prefix, superdomain(name))
		} else if len(labels) == 1 {
			deps.addTLD(prefix, labels[0]+".")
		}
	}
}

package dnscrawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/dnscrawler/dnscrawler/graph"
)

// Walker implements the recursive zone-by-zone descent: QNAME-minimizing
// recursion toward the root, two-pass parent/child verification at each
// label, and cycle detection keyed by registrable domain.
type Walker struct {
	c *crawl
}

func newWalker(c *crawl) *Walker {
	return &Walker{c: c}
}

var allRecordTypes = []RecordType{TypeNS, TypeA, TypeAAAA}

// mapName resolves name's authoritative nameserver set, recursing toward
// the root on cache miss and driving two verification phases (parent then
// child) against whatever nameservers that recursion, or the previous
// phase, turned up. originalTarget is the top-level hostname the whole
// call tree was asked to resolve; it stays fixed across the recursive
// superdomain chain so a NOERROR-empty referral can be retried with the
// full name.
func (w *Walker) mapName(ctx context.Context, originalTarget, name, prefix string, isNS bool, currentNode *graph.Node) (NSSet, error) {
	if currentNode == nil {
		panic(fmt.Errorf("%w: mapName(%q) called without a current node", ErrInvariant, name))
	}
	c := w.c

	name = canonical(name)
	originalTarget = canonical(originalTarget)

	if cached, ok := c.pastResolutions.Get(name); ok {
		return cached, nil
	}

	effPrefix := prefix
	if extract(name).Domain == "" {
		effPrefix = "ps_"
		if isPublicSuffix(name) {
			currentNode.IsPublicSuffix = true
		}
	}

	reg := registrableDomain(name)
	c.activeResolutions[reg] = true

	var authNS NSSet
	if isSingleLabel(name) {
		host, ips := c.randomRootServer()
		authNS = newNSSet()
		for _, ip := range ips {
			authNS.Add(host, ip)
		}
	} else {
		superName := superdomain(name)
		superNode := c.graph.CreateNode(superName, nodeType(superName))
		currentNode.AddTrust(graph.EdgeProvisioning, superNode.Xid())
		resolved, err := w.mapName(ctx, originalTarget, superName, prefix, isNS, superNode)
		if err != nil {
			return nil, err
		}
		authNS = resolved
	}

	for _, edgeLabel := range []graph.EdgeLabel{graph.EdgeParent, graph.EdgeChild} {
		newAuthNS := newNSSet()
		anyRecords := false
		invalidNSSeen := false
		responseCount := 0
		nxdomainCount := 0
		var nxSummaries []querySummary

		type gathered struct {
			ns, ip string
			resp   QueryResponse
		}
		var results []gathered
		if !authNS.Empty() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			for _, ns := range authNS.Nameservers() {
				for _, ip := range authNS.IPs(ns) {
					ns, ip := ns, ip
					wg.Add(1)
					go func() {
						defer wg.Done()
						resp, _ := c.engine.Query(ctx, name, ip, allRecordTypes)
						mu.Lock()
						results = append(results, gathered{ns, ip, resp})
						mu.Unlock()
					}()
				}
			}
			wg.Wait()
		}

		for _, g := range results {
			resp := g.resp
			if resp.IsTimeout() {
				continue
			}
			responseCount++

			if len(resp.Records) > 0 {
				anyRecords = true
				outcome := w.parseRecords(ctx, name, resp.Records, effPrefix, isNS, currentNode, edgeLabel)
				newAuthNS.Merge(outcome.authNS)
				if outcome.sawInvalidNS {
					invalidNSSeen = true
				}
				continue
			}

			if resp.IsNoError() {
				// Referral-preserving empty non-terminal candidate: carry
				// this (ns, ip) into the next phase.
				newAuthNS.Add(g.ns, g.ip)
				if name != originalTarget {
					resp2, _ := c.engine.Query(ctx, originalTarget, g.ip, allRecordTypes)
					if len(resp2.Records) > 0 {
						anyRecords = true
						outcome := w.parseRecords(ctx, originalTarget, resp2.Records, effPrefix, isNS, currentNode, edgeLabel)
						newAuthNS.Merge(outcome.authNS)
						if outcome.sawInvalidNS {
							invalidNSSeen = true
						}
					} else if resp2.AllNXDomain() {
						nxdomainCount++
						nxSummaries = append(nxSummaries, querySummary{Nameserver: g.ip, Rcodes: resp2.Rcodes})
					}
				}
				continue
			}

			if resp.AllNXDomain() {
				nxdomainCount++
				nxSummaries = append(nxSummaries, querySummary{Nameserver: g.ip, Rcodes: resp.Rcodes})
			}
		}

		if invalidNSSeen {
			currentNode.AddMisconfiguration(graph.MisconfigInvalidNSRecord)
			c.misconfiguredDomains[graph.MisconfigInvalidNSRecord].add(name, querySummary{Rcodes: map[string]string{}})
			c.logWalk(WalkEvent{Kind: WalkMisconfigured, Name: name, Misconfiguration: graph.MisconfigInvalidNSRecord})
		}

		if responseCount > 0 && nxdomainCount == responseCount && !anyRecords && !c.nonHazardousCycle[name] {
			switch {
			case edgeLabel == graph.EdgeParent && isNumericLabel(name):
				currentNode.AddMisconfiguration(graph.MisconfigIPNSRecords)
				for _, s := range nxSummaries {
					c.misconfiguredDomains[graph.MisconfigIPNSRecords].add(name, s)
				}
				c.logWalk(WalkEvent{Kind: WalkMisconfigured, Name: name, Misconfiguration: graph.MisconfigIPNSRecords})
			case edgeLabel == graph.EdgeParent:
				currentNode.IsHazardous = true
				for _, s := range nxSummaries {
					c.hazardousDomains.add(name, s)
				}
				c.logWalk(WalkEvent{Kind: WalkHazardous, Name: name})
			default:
				currentNode.AddMisconfiguration(graph.MisconfigMissingNSRecords)
				for _, s := range nxSummaries {
					c.misconfiguredDomains[graph.MisconfigMissingNSRecords].add(name, s)
				}
				c.logWalk(WalkEvent{Kind: WalkMisconfigured, Name: name, Misconfiguration: graph.MisconfigMissingNSRecords})
			}
			emitTLDSLD(c.deps, effPrefix, name, false)
			authNS = newAuthNS
			break
		}

		if !anyRecords && !newAuthNS.Empty() {
			currentNode.IsEmptyNonTerminal = true
			c.logWalk(WalkEvent{Kind: WalkEmptyNonTerminal, Name: name})
		}

		authNS = newAuthNS
	}

	delete(c.activeResolutions, reg)
	c.pastResolutions.Set(name, authNS)
	return authNS, nil
}

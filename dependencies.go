package dnscrawler

import "sort"

// dependencySets accumulates the fixed-key dependency sets a crawl produces.
// Every key is initialized at construction, so downstream code performs no
// key-existence checks while the recursion grows the sets.
type dependencySets struct {
	ns, ipv4, ipv6, tld, sld           map[string]bool
	psNS, psIPv4, psIPv6, psTLD, psSLD map[string]bool
}

func newDependencySets() *dependencySets {
	return &dependencySets{
		ns: map[string]bool{}, ipv4: map[string]bool{}, ipv6: map[string]bool{},
		tld: map[string]bool{}, sld: map[string]bool{},
		psNS: map[string]bool{}, psIPv4: map[string]bool{}, psIPv6: map[string]bool{},
		psTLD: map[string]bool{}, psSLD: map[string]bool{},
	}
}

func (d *dependencySets) addNS(prefix, v string) {
	if prefix == "ps_" {
		d.psNS[v] = true
	} else {
		d.ns[v] = true
	}
}

func (d *dependencySets) addIPv4(prefix, v string) {
	if prefix == "ps_" {
		d.psIPv4[v] = true
	} else {
		d.ipv4[v] = true
	}
}

func (d *dependencySets) addIPv6(prefix, v string) {
	if prefix == "ps_" {
		d.psIPv6[v] = true
	} else {
		d.ipv6[v] = true
	}
}

func (d *dependencySets) addTLD(prefix, v string) {
	if prefix == "ps_" {
		d.psTLD[v] = true
	} else {
		d.tld[v] = true
	}
}

func (d *dependencySets) addSLD(prefix, v string) {
	if prefix == "ps_" {
		d.psSLD[v] = true
	} else {
		d.sld[v] = true
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// querySummary is one {nameserver, rcodes} observation recorded against a
// hazardous or misconfigured zone. The zone name itself is the map key the
// summary is filed under, not a field.
type querySummary struct {
	Nameserver string            `json:"nameserver"`
	Rcodes     map[string]string `json:"rcodes"`
}

// summaryList accumulates querySummary values per zone name, in the order
// observed.
type summaryList struct {
	byName map[string][]querySummary
}

func newSummaryList() *summaryList {
	return &summaryList{byName: map[string][]querySummary{}}
}

func (l *summaryList) add(name string, s querySummary) {
	l.byName[name] = append(l.byName[name], s)
}

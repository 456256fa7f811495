package dnscrawler

import (
	"sort"
	"strings"
)

// NSSet is a mapping from nameserver hostname to the set of IPs known for
// it. Its canonical string form doubles as its hash key, so two sets with
// the same content compare equal by Key regardless of insertion order.
type NSSet map[string]map[string]bool

// newNSSet returns an empty NSSet.
func newNSSet() NSSet {
	return NSSet{}
}

// Add records ip as known for nameserver, creating the nameserver's entry
// if necessary. An empty ip records the nameserver with no addresses.
func (s NSSet) Add(nameserver string, ip string) {
	if s[nameserver] == nil {
		s[nameserver] = map[string]bool{}
	}
	if ip != "" {
		s[nameserver][ip] = true
	}
}

// Merge copies every nameserver/ip pair from other into s.
func (s NSSet) Merge(other NSSet) {
	for ns, ips := range other {
		if s[ns] == nil {
			s[ns] = map[string]bool{}
		}
		for ip := range ips {
			s[ns][ip] = true
		}
	}
}

// IPs returns the sorted IPs known for nameserver.
func (s NSSet) IPs(nameserver string) []string {
	ips := make([]string, 0, len(s[nameserver]))
	for ip := range s[nameserver] {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	return ips
}

// Nameservers returns the set's nameserver names, sorted.
func (s NSSet) Nameservers() []string {
	names := make([]string, 0, len(s))
	for ns := range s {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the set has no nameservers at all.
func (s NSSet) Empty() bool {
	return len(s) == 0
}

// String renders the canonical "nameserver: ip, ip" form used for both
// display and hashing.
func (s NSSet) String() string {
	var b strings.Builder
	b.WriteString("NSSet")
	names := s.Nameservers()
	if len(names) == 0 {
		b.WriteString("\n(empty)")
		return b.String()
	}
	for _, ns := range names {
		b.WriteByte('\n')
		b.WriteString(ns)
		b.WriteString(": ")
		b.WriteString(strings.Join(s.IPs(ns), ", "))
	}
	return b.String()
}

// Key returns the canonical hash key for this set: two sets with the same
// content have the same Key.
func (s NSSet) Key() string {
	return s.String()
}

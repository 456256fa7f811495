package dnscrawler

import (
	"fmt"
	"sort"

	"github.com/miekg/dns"
)

// RecordType restricts this crawler's data model to the three RR types it
// understands.
type RecordType string

const (
	TypeNS   RecordType = "NS"
	TypeA    RecordType = "A"
	TypeAAAA RecordType = "AAAA"
)

var supportedRecordTypes = map[RecordType]uint16{
	TypeNS:   dns.TypeNS,
	TypeA:    dns.TypeA,
	TypeAAAA: dns.TypeAAAA,
}

// DNSRecord is a value-equal (owner, ttl, class, type, rdata) tuple,
// usable directly as a map key.
type DNSRecord struct {
	Owner string
	TTL   uint32
	Class string
	Type  RecordType
	Rdata string
}

// QueryResponse is the result of querying one nameserver for one domain
// across a set of record types. Rcodes holds one entry per record type
// attempted, or the single key "timeout" meaning every attempt timed out or
// the nameserver was skipped entirely.
type QueryResponse struct {
	Records    map[DNSRecord]bool
	Rcodes     map[string]string
	Domain     string
	Nameserver string
}

const timeoutRcodeKey = "timeout"

func newTimeoutResponse(domain, nameserver string) QueryResponse {
	return QueryResponse{
		Records:    map[DNSRecord]bool{},
		Rcodes:     map[string]string{timeoutRcodeKey: "true"},
		Domain:     domain,
		Nameserver: nameserver,
	}
}

// IsTimeout reports whether every attempt in this response timed out or the
// nameserver was skipped.
func (r QueryResponse) IsTimeout() bool {
	_, ok := r.Rcodes[timeoutRcodeKey]
	return ok
}

// AllNXDomain reports whether every rcode this response carries is
// NXDOMAIN, used by the walker's hazard/misconfiguration consensus check.
func (r QueryResponse) AllNXDomain() bool {
	if len(r.Rcodes) == 0 {
		return false
	}
	for _, rc := range r.Rcodes {
		if rc != dns.RcodeToString[dns.RcodeNameError] {
			return false
		}
	}
	return true
}

// IsNoError reports whether every rcode this response carries is NOERROR.
func (r QueryResponse) IsNoError() bool {
	if len(r.Rcodes) == 0 {
		return false
	}
	for _, rc := range r.Rcodes {
		if rc != dns.RcodeToString[dns.RcodeSuccess] {
			return false
		}
	}
	return true
}

// RecordsOfType returns the records of type t in sorted-by-string order,
// for deterministic iteration.
func (r QueryResponse) RecordsOfType(t RecordType) []DNSRecord {
	var out []DNSRecord
	for rec := range r.Records {
		if rec.Type == t {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
	})
	return out
}

// queryKey is the canonical key used to de-duplicate and cache queries:
// "domain|nameserver|sorted(record_types)".
func queryKey(domain, nameserver string, types []RecordType) string {
	sorted := make([]string, len(types))
	for i, t := range types {
		sorted[i] = string(t)
	}
	sort.Strings(sorted)

	key := canonical(domain) + "|" + nameserver + "|"
	for i, t := range sorted {
		if i > 0 {
			key += ","
		}
		key += t
	}
	return key
}

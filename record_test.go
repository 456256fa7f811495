package dnscrawler

import "testing"

func TestQueryKeyCanonicalAndSortedByType(t *testing.T) {
	a := queryKey("Example.COM", "192.0.2.1", []RecordType{TypeAAAA, TypeA, TypeNS})
	b := queryKey("example.com.", "192.0.2.1", []RecordType{TypeNS, TypeA, TypeAAAA})
	if a != b {
		t.Errorf("queryKey should be canonical and order-independent on types: %q != %q", a, b)
	}
}

func TestQueryResponseIsTimeout(t *testing.T) {
	resp := newTimeoutResponse("example.com.", "192.0.2.1")
	if !resp.IsTimeout() {
		t.Error("newTimeoutResponse should report IsTimeout")
	}
	if resp.AllNXDomain() || resp.IsNoError() {
		t.Error("a timeout response is neither all-NXDOMAIN nor all-NOERROR")
	}
}

func TestQueryResponseAllNXDomain(t *testing.T) {
	resp := QueryResponse{
		Records: map[DNSRecord]bool{},
		Rcodes:  map[string]string{"NS": "NXDOMAIN", "A": "NXDOMAIN"},
	}
	if !resp.AllNXDomain() {
		t.Error("expected AllNXDomain to be true")
	}
}

func TestQueryResponseMixedRcodesNotAllNXDomain(t *testing.T) {
	resp := QueryResponse{
		Records: map[DNSRecord]bool{},
		Rcodes:  map[string]string{"NS": "NXDOMAIN", "A": "NOERROR"},
	}
	if resp.AllNXDomain() {
		t.Error("mixed rcodes should not count as all-NXDOMAIN")
	}
	if resp.IsNoError() {
		t.Error("mixed rcodes should not count as all-NOERROR")
	}
}

func TestQueryResponseRecordsOfType(t *testing.T) {
	resp := QueryResponse{
		Records: map[DNSRecord]bool{
			{Owner: "example.com.", Type: TypeNS, Rdata: "ns1.example.com."}: true,
			{Owner: "example.com.", Type: TypeA, Rdata: "192.0.2.1"}:         true,
		},
	}
	ns := resp.RecordsOfType(TypeNS)
	if len(ns) != 1 || ns[0].Rdata != "ns1.example.com." {
		t.Errorf("RecordsOfType(NS) = %v", ns)
	}
}

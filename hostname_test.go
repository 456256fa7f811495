package dnscrawler

import "testing"

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"Example.COM": "example.com.",
		"example.com": "example.com.",
		".":           ".",
		"":            ".",
		"  Foo.Bar. ": "foo.bar.",
	}
	for in, want := range cases {
		if got := canonical(in); got != want {
			t.Errorf("canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractRegisteredDomain(t *testing.T) {
	parts := extract("ns1.example.com.")
	if parts.Domain != "example" || parts.Suffix != "com." || parts.Subdomain != "ns1" {
		t.Fatalf("extract(ns1.example.com.) = %+v", parts)
	}
}

func TestExtractMultiLabelSuffix(t *testing.T) {
	parts := extract("foo.co.uk.")
	if parts.Domain != "foo" || parts.Suffix != "co.uk." {
		t.Fatalf("extract(foo.co.uk.) = %+v", parts)
	}
}

func TestExtractExactPublicSuffix(t *testing.T) {
	parts := extract("co.uk.")
	if parts.Domain != "" || parts.Suffix != "co.uk." {
		t.Fatalf("extract(co.uk.) = %+v, want no domain and suffix co.uk.", parts)
	}
}

func TestExtractBareTLD(t *testing.T) {
	parts := extract("com.")
	if parts.Domain != "" {
		t.Fatalf("extract(com.) = %+v, want empty domain", parts)
	}
}

func TestRegistrableDomain(t *testing.T) {
	if got := registrableDomain("ns1.example.com."); got != "example.com." {
		t.Errorf("registrableDomain(ns1.example.com.) = %q", got)
	}
}

func TestSuperdomain(t *testing.T) {
	cases := map[string]string{
		"ns1.example.com.": "example.com.",
		"example.com.":     "com.",
		"com.":             ".",
	}
	for in, want := range cases {
		if got := superdomain(in); got != want {
			t.Errorf("superdomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSingleLabel(t *testing.T) {
	if !isSingleLabel("com.") {
		t.Error("com. should be a single label")
	}
	if isSingleLabel("example.com.") {
		t.Error("example.com. should not be a single label")
	}
}

func TestIsNumericLabel(t *testing.T) {
	if isNumericLabel("example.com.") {
		t.Error("example.com. should not be numeric")
	}
	if !isNumericLabel("203.0.113.1.") {
		t.Error("203.0.113.1. should be numeric: its last label is all digits")
	}
	if !isNumericLabel("ns1.203.") {
		t.Error("ns1.203. should be numeric: only the last label is tested")
	}
}

func TestIsIPLiteral(t *testing.T) {
	if !isIPLiteral("192.0.2.1") {
		t.Error("192.0.2.1 should be an IP literal")
	}
	if !isIPLiteral("2001:db8::1") {
		t.Error("2001:db8::1 should be an IP literal")
	}
	if isIPLiteral("example.com.") {
		t.Error("example.com. is not an IP literal")
	}
}

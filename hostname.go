package dnscrawler

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// canonical returns name case-folded with a trailing root label, e.g.
// "Example.COM" -> "example.com.". The root itself canonicalizes to ".".
func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "."
	}
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}

// suffixParts is the result of splitting a hostname on its public suffix.
type suffixParts struct {
	Subdomain string
	Domain    string
	Suffix    string
}

// extract splits a canonical hostname into subdomain/domain/suffix parts
// using the public suffix list. Names with no recognized public suffix
// degrade to a last-label TLD / last-two-label SLD heuristic.
func extract(name string) suffixParts {
	trimmed := strings.TrimSuffix(canonical(name), ".")
	if trimmed == "" {
		return suffixParts{}
	}

	labels := nonEmptyLabels(trimmed)
	if len(labels) <= 1 {
		return suffixParts{}
	}

	suffix, icann := publicsuffix.PublicSuffix(trimmed)
	if suffix == trimmed {
		if icann {
			// The name is exactly a public suffix: no registrable domain.
			return suffixParts{Suffix: trimmed + "."}
		}
		// An unlisted name equal to its own "suffix": degrade to the
		// last-label heuristic instead of reporting the whole name as pure
		// suffix.
		suffix = labels[len(labels)-1]
	}

	suffixLabels := nonEmptyLabels(suffix)
	domainLabelIdx := len(labels) - len(suffixLabels) - 1
	domain := labels[domainLabelIdx]
	subdomain := strings.Join(labels[:domainLabelIdx], ".")

	return suffixParts{
		Subdomain: subdomain,
		Domain:    domain,
		Suffix:    suffix + ".",
	}
}

// isPublicSuffix reports whether fqdn is exactly a public suffix (has no
// registrable domain above it).
func isPublicSuffix(fqdn string) bool {
	name := strings.TrimSuffix(canonical(fqdn), ".")
	if name == "" {
		return false
	}
	s, _ := publicsuffix.PublicSuffix(name)
	return s == name
}

// registrableDomain returns the "domain.suffix." form used to key
// activeResolutions cycle detection. If name has no registrable domain (a
// bare TLD, or a name that is exactly a public suffix), the canonical name
// itself is returned; a name under an unrecognized suffix gets the
// last-two-label form from extract's heuristic.
func registrableDomain(name string) string {
	parts := extract(name)
	if parts.Domain == "" {
		return canonical(name)
	}
	if parts.Suffix == "" {
		return parts.Domain + "."
	}
	return parts.Domain + "." + parts.Suffix
}

func nonEmptyLabels(name string) []string {
	var labels []string
	for _, l := range strings.Split(name, ".") {
		if l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// superdomain drops name's leftmost label, e.g. "ns1.example.com." ->
// "example.com.". Used by the walker's QNAME-minimizing recursive descent.
func superdomain(name string) string {
	labels := nonEmptyLabels(name)
	if len(labels) <= 1 {
		return "."
	}
	return strings.Join(labels[1:], ".") + "."
}

// isSingleLabel reports whether name is a bare TLD or the root, the
// walker's base case.
func isSingleLabel(name string) bool {
	return len(nonEmptyLabels(name)) <= 1
}

// isNumericLabel reports whether the last label of name consists entirely
// of digits. Only the last label is tested; "ns1.203." counts the same as
// a bare "203.".
func isNumericLabel(name string) bool {
	labels := nonEmptyLabels(name)
	if len(labels) == 0 {
		return false
	}
	last := labels[len(labels)-1]
	for _, r := range last {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isIPLiteral reports whether s parses as an IPv4 or IPv6 address.
func isIPLiteral(s string) bool {
	return net.ParseIP(s) != nil
}

// isIPv6Literal reports whether s parses as an IPv6 address (and isn't an
// IPv4 address expressed in its 4-in-6 form).
func isIPv6Literal(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() == nil
}

package dnscrawler

import (
	"fmt"
	"time"

	"github.com/dnscrawler/dnscrawler/graph"
)

// QueryEvent reports one underlying DNS exchange (or immediate skip, e.g. a
// blocked nameserver) to QueryEngine.LogFunc.
type QueryEvent struct {
	Domain     string
	Nameserver string
	Type       RecordType
	Retry      int
	RTT        time.Duration
	Rcode      string
	Err        error
}

func (e QueryEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s @%s (retry %d): %v", e.Type, e.Domain, e.Nameserver, e.Retry, e.Err)
	}
	return fmt.Sprintf("%s %s @%s (retry %d) -> %s, %dms", e.Type, e.Domain, e.Nameserver, e.Retry, e.Rcode, e.RTT.Milliseconds())
}

// WalkEventKind names the classification decisions CrawlOptions.LogFunc
// reports.
type WalkEventKind string

const (
	WalkHazardous        WalkEventKind = "hazardous"
	WalkMisconfigured    WalkEventKind = "misconfigured"
	WalkEmptyNonTerminal WalkEventKind = "empty_nonterminal"
	WalkCycleBroken      WalkEventKind = "cycle_broken"
)

// WalkEvent reports one classification decision made while walking name,
// so a caller can stream crawl progress without the Walker depending on any
// particular output format.
type WalkEvent struct {
	Kind             WalkEventKind
	Name             string
	Misconfiguration graph.Misconfiguration
}

func (e WalkEvent) String() string {
	if e.Misconfiguration != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Name, e.Misconfiguration)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

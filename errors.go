package dnscrawler

import "errors"

// ErrInvariant is wrapped and panicked with when the crawler detects a
// programmer error rather than a network or classification condition. The
// orchestrator's single recovery boundary catches it and returns it as an
// error a caller can test with errors.Is; any other panic keeps
// propagating.
var ErrInvariant = errors.New("dnscrawler: invariant violation")

// ErrNameServerBlocked is returned by QueryEngine's internals (and visible
// in a QueryEvent's Err field) when a query was skipped because its
// nameserver had already been blocked after a hard refusal or exhausted
// retries.
var ErrNameServerBlocked = errors.New("dnscrawler: nameserver blocked")

// ErrUnsupportedRecordType is returned by QueryEngine's internals when asked
// to query a record type outside {NS, A, AAAA}, the only types this
// crawler's data model understands. QueryEngine.Query itself does not
// return it: the failed sub-request turns the response into a timeout.
var ErrUnsupportedRecordType = errors.New("dnscrawler: unsupported record type")

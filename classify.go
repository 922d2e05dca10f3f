package closbench

// file classify.go holds the protocol-neutral log classification contract.
// Each control protocol leaves a different textual trail in its per-node
// log; a classifier turns one log line at a time into a normalized event
// record the convergence analyzer can consume without knowing the protocol.

// EventKind names the control-plane events the analyzer cares about.
type EventKind int

const (
	// NoEvent marks a line with no control-plane meaning.
	NoEvent EventKind = iota

	// IntfEstablished marks an interface coming (back) up.
	IntfEstablished

	// IntfDown marks a node detecting that one of its interfaces failed.
	IntfDown

	// IntfDisabled marks a node shutting an interface down itself after
	// losing liveness on it, the soft-failure counterpart of IntfDown.
	IntfDisabled

	// RouteUpdate marks a received control-plane update message.
	RouteUpdate
)

func (k EventKind) String() string {
	switch k {
	case IntfEstablished:
		return "established"
	case IntfDown:
		return "down"
	case IntfDisabled:
		return "disabled"
	case RouteUpdate:
		return "update"
	}

	return "none"
}

// A Record is one classified log event. Time is Unix milliseconds. Intf is
// the local interface the event concerns, empty for events that do not name
// one. Lengths carries the variable-length components of an update message
// when the protocol reports them piecewise; it is nil when the protocol
// logs one complete size instead.
type Record struct {
	Kind    EventKind
	Time    int64
	Intf    string
	Lengths []int
}

// A Classifier turns raw log lines into event records, one call per line in
// file order. Classification may be stateful across lines (some protocols
// split one event over two lines), so a classifier must not be shared
// between log files. Lines with no control-plane meaning yield a NoEvent
// record and no error.
type Classifier interface {
	Classify(line string) (Record, error)
}

// A LogProfile bundles everything protocol-specific the analyzer needs: a
// fresh classifier per log file and the fixed per-message framing overhead
// to add on top of the logged variable lengths.
type LogProfile interface {
	// NewClassifier returns a classifier for one log file of the named node.
	NewClassifier(node string) Classifier

	// FixedHeaderLen is the per-update framing overhead in bytes not
	// included in the lengths the protocol logs.
	FixedHeaderLen() int
}

// ProfileForProtocol returns the log profile of a protocol identifier as
// recorded in a topology, or nil when the protocol leaves no analyzable
// log trail.
func ProfileForProtocol(protocol string) LogProfile {
	switch protocol {
	case ProtocolBGP:
		return BGPLogProfile{}
	case ProtocolMTP:
		return MTPLogProfile{}
	}

	return nil
}

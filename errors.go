package closbench

// errors.go holds the error taxonomy shared by topology synthesis and
// experiment analysis. Every one of these is fatal for the operation that
// raises it; there are no internal retries anywhere in this package, so all
// of them propagate to the caller unchanged.

import (
	"fmt"

	"github.com/pkg/errors"
)

// An InvalidTopologyParametersError reports a port-degree/tier combination
// that cannot produce a folded-Clos topology with a 1:1 oversubscription
// ratio. It is raised before any graph mutation takes place.
type InvalidTopologyParametersError struct {
	K      int
	T      int
	Reason string
}

func (e *InvalidTopologyParametersError) Error() string {
	return fmt.Sprintf("invalid folded-Clos parameters k=%d t=%d: %s", e.K, e.T, e.Reason)
}

// A MalformedLogError reports a log record whose timestamp (or another
// mandatory field) could not be parsed. Analysis of the affected node stops,
// and because the metrics require complete node coverage the whole run fails.
type MalformedLogError struct {
	Node string
	Line string
	Err  error
}

func (e *MalformedLogError) Error() string {
	return fmt.Sprintf("malformed log record on node %s: %q: %v", e.Node, e.Line, e.Err)
}

func (e *MalformedLogError) Unwrap() error { return e.Err }

// An InvalidInterfaceFailureError reports an interface failure event that the
// experiment descriptor did not declare: a failure on the wrong node or
// interface, or a failure whose kind contradicts the declared failure mode.
// Either way the experiment run is corrupt and its metrics are meaningless.
type InvalidInterfaceFailureError struct {
	Node   string
	Intf   string
	Time   int64
	Reason string
}

func (e *InvalidInterfaceFailureError) Error() string {
	return fmt.Sprintf("invalid interface failure on node %s intf %s at %d: %s",
		e.Node, e.Intf, e.Time, e.Reason)
}

// A MultipleFailuresDetectedError reports a second failure event recorded
// against a node and interface whose failure was already accounted for.
type MultipleFailuresDetectedError struct {
	Node string
	Intf string
	Time int64
}

func (e *MultipleFailuresDetectedError) Error() string {
	return fmt.Sprintf("multiple failures detected on node %s intf %s (second sighting at %d), check logs",
		e.Node, e.Intf, e.Time)
}

// Finalization errors: the analyzer scanned every log without finding the
// event the experiment promised.
var (
	ErrNoFailureDetected     = errors.New("no interface failure recorded, check logs")
	ErrNoConvergenceRecorded = errors.New("no convergence events recorded, check logs")
)

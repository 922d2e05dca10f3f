package closbench

// file experiment.go holds the experiment descriptor: the record of one
// induced link failure, written next to the per-node logs when the failure
// is injected and read back by the convergence analyzer.

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
)

// FailureMode distinguishes how the link failure was induced. A hard
// failure takes the interface down so neighbors see it immediately; a soft
// failure silently drops traffic, so the protocol only notices through its
// own liveness mechanism and the true failure instant must be recorded by
// the injector.
type FailureMode int

const (
	HardFailure FailureMode = iota
	SoftFailure
)

func (m FailureMode) String() string {
	if m == SoftFailure {
		return "soft"
	}
	return "hard"
}

// parseFailureMode maps the descriptor's experiment-type field to a mode.
func parseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard":
		return HardFailure, nil
	case "soft":
		return SoftFailure, nil
	}

	return HardFailure, errors.Errorf("unknown experiment type %q", s)
}

// Descriptor field labels, in file order.
const (
	fieldFailedNode      = "Failed node"
	fieldIntfName        = "Interface name"
	fieldFailedNeighbor  = "Failed neighbor"
	fieldNeighborIntf    = "Neighbor interface name"
	fieldExperimentType  = "Experiment type"
	fieldStartTime       = "Experiment start time"
	fieldStopTime        = "Experiment stop time"
	fieldIntfFailureTime = "Interface failure timestamp"
	fieldTraffic         = "Traffic included"
)

// An ExperimentDescriptor identifies the one link failure induced during an
// experiment and the observation window around it. All times are Unix
// milliseconds. IntfFailureTime is only meaningful for soft failures, where
// the injector records the instant it started dropping traffic.
type ExperimentDescriptor struct {
	FailedNode       string
	IntfName         string
	FailedNeighbor   string
	NeighborIntfName string
	Mode             FailureMode
	StartTime        int64
	StopTime         int64
	IntfFailureTime  int64
	TrafficIncluded  bool
}

// ReadExperimentDescriptor deserializes a byte slice holding the flat
// "label: value" experiment record. If the input argument of dict (those
// bytes) is empty, the file whose name is given is read to acquire them.
func ReadExperimentDescriptor(filename string, dict []byte) (*ExperimentDescriptor, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	desc := new(ExperimentDescriptor)
	scanner := bufio.NewScanner(bytes.NewReader(dict))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		label, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.Errorf("malformed experiment record line %q in %s", line, filename)
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(label) {
		case fieldFailedNode:
			desc.FailedNode = value
		case fieldIntfName:
			desc.IntfName = value
		case fieldFailedNeighbor:
			desc.FailedNeighbor = value
		case fieldNeighborIntf:
			desc.NeighborIntfName = value
		case fieldExperimentType:
			desc.Mode, err = parseFailureMode(value)
		case fieldStartTime:
			desc.StartTime, err = strconv.ParseInt(value, 10, 64)
		case fieldStopTime:
			desc.StopTime, err = strconv.ParseInt(value, 10, 64)
		case fieldIntfFailureTime:
			desc.IntfFailureTime, err = strconv.ParseInt(value, 10, 64)
		case fieldTraffic:
			desc.TrafficIncluded, err = strconv.ParseBool(value)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parsing experiment record line %q in %s", line, filename)
		}
	}

	return desc, scanner.Err()
}

// WriteToFile stores the descriptor in the flat "label: value" form the
// reader accepts. The failure timestamp line is only present for soft
// failures, where the injector knows the true failure instant.
func (desc *ExperimentDescriptor) WriteToFile(filename string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", fieldFailedNode, desc.FailedNode)
	fmt.Fprintf(&b, "%s: %s\n", fieldIntfName, desc.IntfName)
	fmt.Fprintf(&b, "%s: %s\n", fieldFailedNeighbor, desc.FailedNeighbor)
	fmt.Fprintf(&b, "%s: %s\n", fieldNeighborIntf, desc.NeighborIntfName)
	fmt.Fprintf(&b, "%s: %s\n", fieldExperimentType, desc.Mode)
	fmt.Fprintf(&b, "%s: %d\n", fieldStartTime, desc.StartTime)
	fmt.Fprintf(&b, "%s: %d\n", fieldStopTime, desc.StopTime)
	if desc.Mode == SoftFailure {
		fmt.Fprintf(&b, "%s: %d\n", fieldIntfFailureTime, desc.IntfFailureTime)
	}
	fmt.Fprintf(&b, "%s: %t\n", fieldTraffic, desc.TrafficIncluded)

	return errors.Wrapf(os.WriteFile(filename, []byte(b.String()), 0644), "writing experiment record %s", filename)
}

// Validate checks the descriptor against the topology the experiment was
// run on: the window must be well ordered, the two endpoints adjacent
// network nodes, and the interface names the ones the topology derives for
// that link.
func (desc *ExperimentDescriptor) Validate(topo *Topology) error {
	if desc.StartTime >= desc.StopTime {
		return errors.Errorf("experiment window is empty: start %d >= stop %d", desc.StartTime, desc.StopTime)
	}
	if !topo.IsNetworkNode(desc.FailedNode) {
		return errors.Errorf("failed node %s is not a networking node of %s", desc.FailedNode, topo.Name)
	}
	if !topo.IsNetworkNode(desc.FailedNeighbor) {
		return errors.Errorf("failed neighbor %s is not a networking node of %s", desc.FailedNeighbor, topo.Name)
	}
	if !topo.Adjacent(desc.FailedNode, desc.FailedNeighbor) {
		return errors.Errorf("nodes %s and %s do not share a link in %s", desc.FailedNode, desc.FailedNeighbor, topo.Name)
	}

	intf, err := topo.IntfName(desc.FailedNode, desc.FailedNeighbor)
	if err != nil {
		return err
	}
	if intf != desc.IntfName {
		return errors.Errorf("interface %s does not connect %s to %s (expected %s)",
			desc.IntfName, desc.FailedNode, desc.FailedNeighbor, intf)
	}

	neighborIntf, err := topo.IntfName(desc.FailedNeighbor, desc.FailedNode)
	if err != nil {
		return err
	}
	if neighborIntf != desc.NeighborIntfName {
		return errors.Errorf("interface %s does not connect %s to %s (expected %s)",
			desc.NeighborIntfName, desc.FailedNeighbor, desc.FailedNode, neighborIntf)
	}

	if desc.Mode == SoftFailure && (desc.IntfFailureTime < desc.StartTime || desc.IntfFailureTime > desc.StopTime) {
		return errors.Errorf("interface failure timestamp %d outside experiment window [%d, %d]",
			desc.IntfFailureTime, desc.StartTime, desc.StopTime)
	}

	return nil
}

// PickFailureTarget selects a uniformly random network-to-network link of
// the topology and returns a descriptor naming its endpoints and interface
// names. Selection is driven by a named random stream so an experiment
// series is reproducible; the caller fills in the timing fields after
// injecting the failure.
func PickFailureTarget(topo *Topology, mode FailureMode, rng *rngstream.RngStream) (*ExperimentDescriptor, error) {
	candidates := make([]Edge, 0, len(topo.Edges))
	for _, edge := range topo.Edges {
		if !edge.IsComputeEdge {
			candidates = append(candidates, edge)
		}
	}
	if len(candidates) == 0 {
		return nil, errors.Errorf("topology %s has no network-to-network links", topo.Name)
	}

	edge := candidates[rng.RandInt(0, len(candidates)-1)]

	intf, err := topo.IntfName(edge.North, edge.South)
	if err != nil {
		return nil, err
	}
	neighborIntf, err := topo.IntfName(edge.South, edge.North)
	if err != nil {
		return nil, err
	}

	return &ExperimentDescriptor{
		FailedNode:       edge.North,
		IntfName:         intf,
		FailedNeighbor:   edge.South,
		NeighborIntfName: neighborIntf,
		Mode:             mode,
	}, nil
}

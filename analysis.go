package closbench

// file analysis.go holds the convergence analyzer: it consumes the per-node
// control-plane logs of one failure experiment and produces the three
// post-experiment metrics, reconvergence time, control message overhead,
// and blast radius.

import (
	"bufio"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// A ConvergenceReport holds the metrics of one analyzed experiment. Times
// are Unix milliseconds; ReconvergenceTime and the overhead are totals over
// the whole topology, BlastRadius the percentage of nodes that processed
// updated control-plane information.
type ConvergenceReport struct {
	IntfFailureTime      int64
	DetectionTime        int64
	FinalConvergenceTime int64
	ReconvergenceTime    int64
	Overhead             int64
	BlastRadius          float64
	NumberOfNodes        int
	UpdatedNodes         int
}

// A ConvergenceAnalyzer scans the per-node logs of one experiment. Scanning
// happens in two phases: the logs of the two nodes that lost the link are
// read first, alone, to pin the failure instant; only then are all logs
// read in parallel, because an update record can only be judged against the
// experiment's failure window once that window's start is known.
type ConvergenceAnalyzer struct {
	desc    *ExperimentDescriptor
	profile LogProfile
	log     logrus.FieldLogger

	mu sync.Mutex

	// failure pinning state, written during phase one
	intfFailureTime         int64
	intfFailureDetection    int64
	foundFailedIntf         bool
	foundFailedNeighborIntf bool

	// metric accumulation, written during phase two under mu
	numberOfNodes        int
	numberOfUpdatedNodes int
	convergenceTimes     []int64
	overhead             int64
}

// CreateConvergenceAnalyzer is an initialization constructor. The profile
// selects the protocol whose log trail the experiment left behind.
func CreateConvergenceAnalyzer(desc *ExperimentDescriptor, profile LogProfile, log logrus.FieldLogger) *ConvergenceAnalyzer {
	ca := new(ConvergenceAnalyzer)
	ca.desc = desc
	ca.profile = profile
	ca.log = log
	ca.convergenceTimes = make([]int64, 0)

	return ca
}

// Analyze reads every per-node log file (one "<node>.log" per node) in the
// given directory and computes the experiment's metrics. Any malformed
// record, undeclared failure, or repeated failure aborts the analysis: the
// metrics are only meaningful over a clean single-failure run.
func (ca *ConvergenceAnalyzer) Analyze(nodesDir string) (*ConvergenceReport, error) {
	logFiles, err := ca.listLogFiles(nodesDir)
	if err != nil {
		return nil, err
	}

	if err := ca.pinFailure(logFiles); err != nil {
		return nil, err
	}

	g := new(errgroup.Group)
	for node, file := range logFiles {
		node, file := node, file
		g.Go(func() error {
			return ca.scanNodeLog(node, file)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ca.finalize()
}

// listLogFiles maps node name to log file path for every ".log" file in the
// directory.
func (ca *ConvergenceAnalyzer) listLogFiles(nodesDir string) (map[string]string, error) {
	entries, err := os.ReadDir(nodesDir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading experiment log directory %s", nodesDir)
	}

	logFiles := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		node := strings.TrimSuffix(entry.Name(), ".log")
		logFiles[node] = path.Join(nodesDir, entry.Name())
	}
	if len(logFiles) == 0 {
		return nil, errors.Errorf("no node log files in %s", nodesDir)
	}

	return logFiles, nil
}

// expectedFailureKind maps the experiment's failure mode to the event kind
// its logs must report: a hard failure is seen as the interface going down,
// a soft one as the protocol disabling the interface after losing liveness.
func (ca *ConvergenceAnalyzer) expectedFailureKind() EventKind {
	if ca.desc.Mode == SoftFailure {
		return IntfDisabled
	}

	return IntfDown
}

// pinFailure is phase one: it scans only the logs of the failed node and
// its neighbor for the declared failure, recording the earlier of the two
// sightings as the detection time. For hard failures that detection is also
// the failure instant; for soft failures the injector's recorded timestamp
// is authoritative, since the protocol only notices a silent failure after
// its liveness timeout.
func (ca *ConvergenceAnalyzer) pinFailure(logFiles map[string]string) error {
	for _, target := range []string{ca.desc.FailedNode, ca.desc.FailedNeighbor} {
		file, present := logFiles[target]
		if !present {
			return errors.Errorf("no log file for node %s", target)
		}
		if err := ca.scanForFailure(target, file); err != nil {
			return err
		}
	}

	if !ca.foundFailedIntf && !ca.foundFailedNeighborIntf {
		return ErrNoFailureDetected
	}

	if ca.desc.Mode == SoftFailure {
		ca.intfFailureTime = ca.desc.IntfFailureTime
	} else {
		ca.intfFailureTime = ca.intfFailureDetection
	}

	ca.log.WithFields(logrus.Fields{
		"failureTime":   ca.intfFailureTime,
		"detectionTime": ca.intfFailureDetection,
	}).Debug("interface failure pinned")

	return nil
}

func (ca *ConvergenceAnalyzer) scanForFailure(node, file string) error {
	classifier := ca.profile.NewClassifier(node)

	return forEachLine(file, func(line string) error {
		rec, err := classifier.Classify(line)
		if err != nil {
			return err
		}
		if rec.Kind != IntfDown && rec.Kind != IntfDisabled {
			return nil
		}
		if rec.Time < ca.desc.StartTime || rec.Time > ca.desc.StopTime {
			return nil
		}

		return ca.recordFailureSighting(node, rec)
	})
}

// recordFailureSighting validates one in-window failure event against the
// experiment descriptor and folds it into the detection time.
func (ca *ConvergenceAnalyzer) recordFailureSighting(node string, rec Record) error {
	if rec.Kind != ca.expectedFailureKind() {
		return &InvalidInterfaceFailureError{Node: node, Intf: rec.Intf, Time: rec.Time,
			Reason: "failure kind " + rec.Kind.String() + " contradicts " + ca.desc.Mode.String() + " failure mode"}
	}

	switch {
	case node == ca.desc.FailedNode && rec.Intf == ca.desc.IntfName:
		if ca.foundFailedIntf {
			return &MultipleFailuresDetectedError{Node: node, Intf: rec.Intf, Time: rec.Time}
		}
		ca.foundFailedIntf = true

	case node == ca.desc.FailedNeighbor && rec.Intf == ca.desc.NeighborIntfName:
		if ca.foundFailedNeighborIntf {
			return &MultipleFailuresDetectedError{Node: node, Intf: rec.Intf, Time: rec.Time}
		}
		ca.foundFailedNeighborIntf = true

	default:
		return &InvalidInterfaceFailureError{Node: node, Intf: rec.Intf, Time: rec.Time,
			Reason: "failure does not match the declared failed interface"}
	}

	if ca.intfFailureDetection == 0 || rec.Time < ca.intfFailureDetection {
		ca.intfFailureDetection = rec.Time
	}

	return nil
}

// scanNodeLog is phase two, run once per node in parallel: it accumulates
// the node's update events inside the failure window and decides whether
// the node is part of the blast radius. Failure events seen here were
// already validated in phase one, except on off-target nodes where they
// expose a second undeclared failure.
func (ca *ConvergenceAnalyzer) scanNodeLog(node, file string) error {
	classifier := ca.profile.NewClassifier(node)

	var nodeConvergence int64
	var nodeOverhead int64
	updated := false

	onTarget := node == ca.desc.FailedNode || node == ca.desc.FailedNeighbor

	err := forEachLine(file, func(line string) error {
		rec, err := classifier.Classify(line)
		if err != nil {
			return err
		}

		switch rec.Kind {
		case IntfDown, IntfDisabled:
			if rec.Time < ca.desc.StartTime || rec.Time > ca.desc.StopTime {
				return nil
			}
			if !onTarget {
				return &InvalidInterfaceFailureError{Node: node, Intf: rec.Intf, Time: rec.Time,
					Reason: "interface failure on a node the experiment did not touch"}
			}
			// losing the link is itself updated control-plane knowledge
			if rec.Time > nodeConvergence {
				nodeConvergence = rec.Time
			}
			updated = true

		case RouteUpdate:
			if rec.Time < ca.intfFailureDetection || rec.Time > ca.desc.StopTime {
				return nil
			}

			// protocols logging lengths piecewise can report an update that
			// carries no routing change; those do not count
			if rec.Lengths != nil {
				total := 0
				for _, l := range rec.Lengths {
					total += l
				}
				if total == 0 {
					return nil
				}
				nodeOverhead += int64(total + ca.profile.FixedHeaderLen())
			}

			if rec.Time > nodeConvergence {
				nodeConvergence = rec.Time
			}
			updated = true
		}

		return nil
	})
	if err != nil {
		return err
	}

	ca.log.WithFields(logrus.Fields{
		"node":        node,
		"convergence": nodeConvergence,
		"updated":     updated,
		"overhead":    nodeOverhead,
	}).Debug("node log scanned")

	ca.mu.Lock()
	defer ca.mu.Unlock()

	ca.numberOfNodes++
	if updated {
		ca.numberOfUpdatedNodes++
	}
	if nodeConvergence > 0 {
		ca.convergenceTimes = append(ca.convergenceTimes, nodeConvergence)
	}
	ca.overhead += nodeOverhead

	return nil
}

// finalize checks that the experiment actually produced convergence events
// and computes the metrics.
func (ca *ConvergenceAnalyzer) finalize() (*ConvergenceReport, error) {
	if ca.intfFailureTime == 0 {
		return nil, ErrNoFailureDetected
	}
	if len(ca.convergenceTimes) == 0 {
		return nil, ErrNoConvergenceRecorded
	}

	final := ca.convergenceTimes[0]
	for _, t := range ca.convergenceTimes[1:] {
		if t > final {
			final = t
		}
	}

	return &ConvergenceReport{
		IntfFailureTime:      ca.intfFailureTime,
		DetectionTime:        ca.intfFailureDetection,
		FinalConvergenceTime: final,
		ReconvergenceTime:    final - ca.intfFailureTime,
		Overhead:             ca.overhead,
		BlastRadius:          float64(ca.numberOfUpdatedNodes) / float64(ca.numberOfNodes) * 100,
		NumberOfNodes:        ca.numberOfNodes,
		UpdatedNodes:         ca.numberOfUpdatedNodes,
	}, nil
}

// forEachLine streams a file through fn one line at a time.
func forEachLine(file string, fn func(line string) error) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening log file %s", file)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	return errors.Wrapf(scanner.Err(), "reading log file %s", file)
}

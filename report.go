package closbench

// file report.go renders analysis output: the sectioned results log written
// next to the experiment's node logs, the aggregate CSV row consumed by the
// plotting pipeline, summary statistics over an experiment series, and the
// colored reachability table.

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// WriteResults renders the sectioned results log for one experiment.
// trafficResult is the outcome line of the optional data-plane traffic
// test; when empty the traffic section is omitted.
func WriteResults(w io.Writer, desc *ExperimentDescriptor, report *ConvergenceReport, trafficResult string) error {
	_, err := fmt.Fprintf(w, "\n=== EXPERIMENT TIMESTAMPS ===\n")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Experiment start time: %d\nInterface failure time: %d\nExperiment stop timestamp: %d\n\n",
		desc.StartTime, report.IntfFailureTime, desc.StopTime)

	fmt.Fprintf(w, "=== OVERHEAD ===\n%d bytes\n\n", report.Overhead)

	fmt.Fprintf(w, "=== BLAST RADIUS ===\n")
	fmt.Fprintf(w, "%.2f%% of nodes received updated prefix information.\n", report.BlastRadius)
	fmt.Fprintf(w, "\tNodes receiving updated information: %d\n\tTotal nodes: %d\n\n",
		report.UpdatedNodes, report.NumberOfNodes)

	fmt.Fprintf(w, "=== CONVERGENCE TIME ===\n")
	fmt.Fprintf(w, "Final failure update time: %d\nFailure Detection time: %d\n",
		report.FinalConvergenceTime, report.DetectionTime)
	fmt.Fprintf(w, "Convergence time: %d milliseconds\n", report.ReconvergenceTime)

	if trafficResult != "" {
		_, err = fmt.Fprintf(w, "\n=== TRAFFIC ===\n%s\n", trafficResult)
	}

	return err
}

// csvHeader is the column layout of the aggregate experiment CSV.
var csvHeader = []string{
	"experiment_start_time",
	"interface_failure_time",
	"experiment_stop_time",
	"failed_node",
	"failed_neighbor",
	"failure_type",
	"convergence_time_ms",
	"blast_radius_percent",
	"overhead_bytes",
	"traffic_result",
}

// AppendCSV adds one experiment's row to the aggregate CSV file, writing
// the header first when the file does not exist yet.
func AppendCSV(filename string, desc *ExperimentDescriptor, report *ConvergenceReport, trafficResult string) error {
	_, statErr := os.Stat(filename)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening aggregate csv %s", filename)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(csvHeader); err != nil {
			return errors.Wrapf(err, "writing csv header to %s", filename)
		}
	}

	if trafficResult == "" {
		trafficResult = "None"
	}

	row := []string{
		strconv.FormatInt(desc.StartTime, 10),
		strconv.FormatInt(report.IntfFailureTime, 10),
		strconv.FormatInt(desc.StopTime, 10),
		desc.FailedNode,
		desc.FailedNeighbor,
		desc.Mode.String(),
		strconv.FormatInt(report.ReconvergenceTime, 10),
		strconv.FormatFloat(report.BlastRadius, 'f', 2, 64),
		strconv.FormatInt(report.Overhead, 10),
		trafficResult,
	}
	if err := w.Write(row); err != nil {
		return errors.Wrapf(err, "writing csv row to %s", filename)
	}
	w.Flush()

	return errors.Wrapf(w.Error(), "flushing aggregate csv %s", filename)
}

// SeriesStats summarizes an experiment series: mean and standard deviation
// of each metric over all runs.
type SeriesStats struct {
	Runs int

	MeanConvergenceMs   float64
	StdDevConvergenceMs float64

	MeanBlastRadius   float64
	StdDevBlastRadius float64

	MeanOverheadBytes   float64
	StdDevOverheadBytes float64
}

// SummarizeSeries computes summary statistics over the reports of repeated
// experiments on one topology.
func SummarizeSeries(reports []*ConvergenceReport) SeriesStats {
	conv := make([]float64, len(reports))
	blast := make([]float64, len(reports))
	over := make([]float64, len(reports))
	for idx, r := range reports {
		conv[idx] = float64(r.ReconvergenceTime)
		blast[idx] = r.BlastRadius
		over[idx] = float64(r.Overhead)
	}

	ss := SeriesStats{Runs: len(reports)}
	if len(reports) == 0 {
		return ss
	}

	ss.MeanConvergenceMs = stat.Mean(conv, nil)
	ss.MeanBlastRadius = stat.Mean(blast, nil)
	ss.MeanOverheadBytes = stat.Mean(over, nil)
	if len(reports) > 1 {
		ss.StdDevConvergenceMs = stat.StdDev(conv, nil)
		ss.StdDevBlastRadius = stat.StdDev(blast, nil)
		ss.StdDevOverheadBytes = stat.StdDev(over, nil)
	}

	return ss
}

// WriteSeriesStats renders series statistics in the sectioned results
// style.
func WriteSeriesStats(w io.Writer, ss SeriesStats) error {
	_, err := fmt.Fprintf(w, "\n=== SERIES SUMMARY (%d runs) ===\n", ss.Runs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Convergence time: mean %.2f ms, stddev %.2f ms\n", ss.MeanConvergenceMs, ss.StdDevConvergenceMs)
	fmt.Fprintf(w, "Blast radius: mean %.2f%%, stddev %.2f%%\n", ss.MeanBlastRadius, ss.StdDevBlastRadius)
	_, err = fmt.Fprintf(w, "Overhead: mean %.2f bytes, stddev %.2f bytes\n", ss.MeanOverheadBytes, ss.StdDevOverheadBytes)

	return err
}

// WriteReachabilityTable renders the per-node reachability verdicts as a
// colored table, top tier first, computes last.
func WriteReachabilityTable(w io.Writer, topo *Topology, results map[string]NodeReachability) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "Tier", "Status", "Reachable Computes"})
	table.SetAutoWrapText(false)

	for tier := topo.T; tier >= ComputeTier; tier-- {
		for _, name := range topo.NodesAtTier(tier) {
			verdict, present := results[name]
			if !present {
				continue
			}

			table.Append([]string{
				name,
				strconv.Itoa(tier),
				statusCell(verdict.Status),
				strconv.Itoa(len(verdict.ReachableComputes)),
			})
		}
	}

	table.Render()
}

func statusCell(status NodeStatus) string {
	switch status {
	case StatusRed:
		return color.RedString(status.String())
	case StatusYellow:
		return color.YellowString(status.String())
	}

	return color.GreenString(status.String())
}

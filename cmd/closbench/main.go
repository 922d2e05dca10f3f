package main

// closbench synthesizes folded-Clos topologies and analyzes the per-node
// control-plane logs of link-failure experiments run on them.

import (
	"os"
	"path"
	"strings"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/closlab/closbench"
)

var log = logrus.New()

func main() {
	root := &cobra.Command{
		Use:           "closbench",
		Short:         "folded-Clos topology synthesis and convergence analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(buildCmd(), analyzeCmd(), reachCmd(), pickCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	var configFile string
	var outFile string
	var summary bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "synthesize a folded-Clos topology from a build config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := closbench.ReadBuildConfig(configFile, isYAML(configFile), nil)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			builder, err := cfg.Builder()
			if err != nil {
				return err
			}
			topo, err := builder.Build()
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"name":  topo.Name,
				"nodes": len(topo.Nodes),
				"edges": len(topo.Edges),
			}).Info("topology built")

			if summary {
				if err := topo.WriteSummary(cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			if outFile == "" {
				outFile = topo.Name + ".json"
			}

			return topo.WriteToFile(outFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "build config file (json or yaml)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output topology file (default <name>.json)")
	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "print a per-tier topology summary")
	cmd.MarkFlagRequired("config")

	return cmd
}

func analyzeCmd() *cobra.Command {
	var topoFile string
	var experimentDir string
	var csvFile string
	var trafficResult string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "compute convergence metrics from an experiment's node logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := closbench.ReadTopology(topoFile, isYAML(topoFile), nil)
			if err != nil {
				return err
			}

			desc, err := closbench.ReadExperimentDescriptor(path.Join(experimentDir, "experiment.log"), nil)
			if err != nil {
				return err
			}
			if err := desc.Validate(topo); err != nil {
				return err
			}

			profile := closbench.ProfileForProtocol(topo.Protocol)
			if profile == nil {
				return errors.Errorf("protocol %q leaves no analyzable log trail", topo.Protocol)
			}

			analyzer := closbench.CreateConvergenceAnalyzer(desc, profile, log)
			report, err := analyzer.Analyze(path.Join(experimentDir, "nodes"))
			if err != nil {
				return err
			}

			results, err := os.Create(path.Join(experimentDir, "results.log"))
			if err != nil {
				return err
			}
			defer results.Close()

			if err := closbench.WriteResults(results, desc, report, trafficResult); err != nil {
				return err
			}
			if err := closbench.WriteResults(cmd.OutOrStdout(), desc, report, trafficResult); err != nil {
				return err
			}

			if csvFile != "" {
				return closbench.AppendCSV(csvFile, desc, report, trafficResult)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&topoFile, "topology", "t", "", "topology file the experiment ran on")
	cmd.Flags().StringVarP(&experimentDir, "experiment", "e", "", "experiment directory (experiment.log plus nodes/)")
	cmd.Flags().StringVar(&csvFile, "csv", "", "aggregate csv file to append the run to")
	cmd.Flags().StringVar(&trafficResult, "traffic", "", "result line of the data-plane traffic test")
	cmd.MarkFlagRequired("topology")
	cmd.MarkFlagRequired("experiment")

	return cmd
}

func reachCmd() *cobra.Command {
	var topoFile string
	var removed []string

	cmd := &cobra.Command{
		Use:   "reach",
		Short: "grade per-node compute reachability with one link removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := closbench.ReadTopology(topoFile, isYAML(topoFile), nil)
			if err != nil {
				return err
			}

			var removedA, removedB string
			if len(removed) > 0 {
				if len(removed) != 2 {
					return errors.New("--removed takes exactly two node names")
				}
				removedA, removedB = removed[0], removed[1]
				if !topo.Adjacent(removedA, removedB) {
					return errors.Errorf("nodes %s and %s do not share a link", removedA, removedB)
				}
			}

			classifier := closbench.CreateReachabilityClassifier(topo)
			results := classifier.Classify(removedA, removedB)
			closbench.WriteReachabilityTable(cmd.OutOrStdout(), topo, results)

			return nil
		},
	}

	cmd.Flags().StringVarP(&topoFile, "topology", "t", "", "topology file")
	cmd.Flags().StringSliceVar(&removed, "removed", nil, "endpoints of the removed link, e.g. L-1_1,S-1_1")
	cmd.MarkFlagRequired("topology")

	return cmd
}

func pickCmd() *cobra.Command {
	var topoFile string
	var mode string
	var stream string
	var outFile string

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "pick a random network link as the next failure target",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := closbench.ReadTopology(topoFile, isYAML(topoFile), nil)
			if err != nil {
				return err
			}

			var failureMode closbench.FailureMode
			switch strings.ToLower(mode) {
			case "hard":
				failureMode = closbench.HardFailure
			case "soft":
				failureMode = closbench.SoftFailure
			default:
				return errors.Errorf("unknown failure mode %q", mode)
			}

			rng := rngstream.New(stream)
			desc, err := closbench.PickFailureTarget(topo, failureMode, rng)
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"failedNode": desc.FailedNode,
				"intf":       desc.IntfName,
				"neighbor":   desc.FailedNeighbor,
			}).Info("failure target picked")

			if outFile != "" {
				// timing fields are filled in by the failure injector later
				return desc.WriteToFile(outFile)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&topoFile, "topology", "t", "", "topology file")
	cmd.Flags().StringVarP(&mode, "mode", "m", "hard", "failure mode, hard or soft")
	cmd.Flags().StringVar(&stream, "stream", "failure-target", "random stream name, fixed name gives a reproducible pick")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the partial experiment record to this file")
	cmd.MarkFlagRequired("topology")

	return cmd
}

func isYAML(filename string) bool {
	switch path.Ext(filename) {
	case ".yaml", ".yml", ".YAML":
		return true
	}

	return false
}

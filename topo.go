package closbench

// file topo.go holds the attributed topology graph produced by the Clos
// builder, along with its serialization to and from the node/edge-list
// document handed to the config-rendering and emulation collaborators.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Tier values with fixed meaning. Tier 0 is the compute (end-host) tier,
// tier 1 the leaf tier, and tier 2 the lowest spine tier; the top tier is
// whatever tier count the topology was built with.
const (
	ComputeTier     = 0
	LeafTier        = 1
	LowestSpineTier = 2
)

// Node name prefixes encoding the node's role (ToF = Top of Fabric).
const (
	TofName     = "T"
	SpineName   = "S"
	LeafName    = "L"
	ComputeName = "C"
)

// A Node is one network element of the topology. Northbound and Southbound
// record, in link-creation order, one neighbor name per link to the tier
// above and below. The protocol attributes (ASN, per-neighbor IPv4
// addresses, advertised prefixes, top-tier tag) are written by whichever
// addressing strategy was active during the build and are zero otherwise.
type Node struct {
	Name       string   `json:"name" yaml:"name"`
	Tier       int      `json:"tier" yaml:"tier"`
	Northbound []string `json:"northbound" yaml:"northbound"`
	Southbound []string `json:"southbound" yaml:"southbound"`

	// TopTier is set by the MTP addressing strategy on top-tier nodes.
	TopTier bool `json:"isTopTier,omitempty" yaml:"isTopTier,omitempty"`

	// ASN is the autonomous system number assigned by the BGP addressing
	// strategy; zero means no ASN was assigned.
	ASN uint32 `json:"asn,omitempty" yaml:"asn,omitempty"`

	// Addr maps a neighbor name (or the shared key "compute" when a single
	// compute subnet is in use) to this node's IPv4 address on that link.
	Addr map[string]string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`

	// Advertise lists the prefixes this node announces, set on leaves by the
	// BGP addressing strategy.
	Advertise []string `json:"advertise,omitempty" yaml:"advertise,omitempty"`
}

// An Edge is one undirected link of the topology. North is always the
// endpoint in the higher tier. IsComputeEdge marks leaf-to-compute links.
type Edge struct {
	North         string `json:"north" yaml:"north"`
	South         string `json:"south" yaml:"south"`
	IsComputeEdge bool   `json:"isComputeEdge" yaml:"isComputeEdge"`
}

// A Topology is the folded-Clos graph: nodes with tier and direction-tagged
// adjacency, plus the undirected edge list. It is built once by a
// ClosBuilder, persisted under its deterministic Name, and reloaded
// unchanged for repeated experiments.
type Topology struct {
	// Name is the deterministic key derived from the build parameters,
	// e.g. "bgp_3_4", "bgp_3_4_2-1" with southbound overrides, or
	// "bgp_3_4_scs" when compute hosts share one subnet per leaf.
	Name string `json:"name" yaml:"name"`

	Protocol string `json:"protocol" yaml:"protocol"`

	// K is the port degree shared by every switch, T the tier count.
	K int `json:"sharedDegree" yaml:"sharedDegree"`
	T int `json:"numTiers" yaml:"numTiers"`

	Nodes []*Node `json:"nodes" yaml:"nodes"`
	Edges []Edge  `json:"edges" yaml:"edges"`

	// lookup by node name, rebuilt after deserialization
	nodeByName map[string]*Node
}

// CreateTopology is an initialization constructor; nodes and edges are added
// through the builder.
func CreateTopology(protocol string, k, t int) *Topology {
	topo := new(Topology)
	topo.Protocol = protocol
	topo.K = k
	topo.T = t
	topo.Nodes = make([]*Node, 0)
	topo.Edges = make([]Edge, 0)
	topo.nodeByName = make(map[string]*Node)

	return topo
}

// Node returns the named node, or nil when the topology has no such node.
func (topo *Topology) Node(name string) *Node {
	return topo.nodeByName[name]
}

// HasNode indicates whether the named node is part of the topology.
func (topo *Topology) HasNode(name string) bool {
	_, present := topo.nodeByName[name]
	return present
}

// AddNode inserts a node with the given tier. Adding a node that is already
// present is a no-op, which lets the builder touch both endpoints of every
// link without tracking creation order.
func (topo *Topology) AddNode(name string, tier int) *Node {
	if node, present := topo.nodeByName[name]; present {
		return node
	}

	node := &Node{
		Name:       name,
		Tier:       tier,
		Northbound: make([]string, 0),
		Southbound: make([]string, 0),
	}
	topo.Nodes = append(topo.Nodes, node)
	topo.nodeByName[name] = node

	return node
}

// AddEdge records the undirected link between a node and the node one tier
// below it, tagging leaf-to-compute links as compute edges.
func (topo *Topology) AddEdge(north, south string, isComputeEdge bool) {
	topo.Edges = append(topo.Edges, Edge{North: north, South: south, IsComputeEdge: isComputeEdge})
}

// Adjacent indicates whether the two named nodes share a link.
func (topo *Topology) Adjacent(a, b string) bool {
	node := topo.Node(a)
	if node == nil {
		return false
	}

	return slices.Contains(node.Northbound, b) || slices.Contains(node.Southbound, b)
}

// IsNetworkNode indicates whether the named node is a switching element
// rather than a compute host.
func (topo *Topology) IsNetworkNode(name string) bool {
	node := topo.Node(name)
	return node != nil && node.Tier > ComputeTier
}

// NodesAtTier returns the names of all nodes at the given tier, sorted.
func (topo *Topology) NodesAtTier(tier int) []string {
	names := make([]string, 0)
	for _, node := range topo.Nodes {
		if node.Tier == tier {
			names = append(names, node.Name)
		}
	}
	sort.Strings(names)

	return names
}

// ComputeNodes returns the names of every compute-tier node, sorted.
func (topo *Topology) ComputeNodes() []string {
	return topo.NodesAtTier(ComputeTier)
}

// IntfName derives the Mininet-style interface name ("L-1-1_2-eth1") a node
// uses for the link to the given neighbor. Interface numbers follow
// link-creation order: a node's northbound links are created while the tier
// above fans out, before any of its own southbound links.
func (topo *Topology) IntfName(name, neighbor string) (string, error) {
	node := topo.Node(name)
	if node == nil {
		return "", errors.Errorf("node %s is not in topology %s", name, topo.Name)
	}

	if idx := slices.Index(node.Northbound, neighbor); idx >= 0 {
		return fmt.Sprintf("%s-eth%d", name, idx+1), nil
	}
	if idx := slices.Index(node.Southbound, neighbor); idx >= 0 {
		return fmt.Sprintf("%s-eth%d", name, len(node.Northbound)+idx+1), nil
	}

	return "", errors.Errorf("nodes %s and %s are not adjacent", name, neighbor)
}

// Stats holds the derived size facts of a folded-Clos topology.
type Stats struct {
	TofNodes     int
	Servers      int
	NetworkNodes int
	Leaves       int
	Pods         int
}

// Stats computes the size facts of the topology from its build parameters.
func (topo *Topology) Stats() Stats {
	k := topo.K
	t := topo.T

	pods := 1
	if t > 2 {
		pods = 2 * intPow(k/2, t-2)
	}

	return Stats{
		TofNodes:     intPow(k/2, t-1),
		Servers:      2 * intPow(k/2, t),
		NetworkNodes: (2*t - 1) * intPow(k/2, t-1),
		Leaves:       2 * intPow(k/2, t-1),
		Pods:         pods,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("Number of ToF Nodes: %d\nNumber of physical servers: %d\nNumber of networking nodes: %d\nNumber of leaves: %d\nNumber of Pods: %d\n",
		s.TofNodes, s.Servers, s.NetworkNodes, s.Leaves, s.Pods)
}

// WriteSummary emits a human-readable per-tier dump of the topology with
// each node's northbound and southbound neighbor lists.
func (topo *Topology) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w, "=============\nFOLDED CLOS\nk = %d, t = %d\n%d-port devices with %d tiers.\n=============\n%s",
		topo.K, topo.T, topo.K, topo.T, topo.Stats())
	if err != nil {
		return err
	}

	for tier := topo.T; tier >= ComputeTier; tier-- {
		if _, err := fmt.Fprintf(w, "\n== TIER %d ==\n", tier); err != nil {
			return err
		}
		for _, name := range topo.NodesAtTier(tier) {
			node := topo.Node(name)
			if _, err := fmt.Fprintf(w, "%s\n\tnorthbound:\n", name); err != nil {
				return err
			}
			for _, n := range node.Northbound {
				if _, err := fmt.Fprintf(w, "\t\t%s\n", n); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "\tsouthbound:\n"); err != nil {
				return err
			}
			for _, s := range node.Southbound {
				if _, err := fmt.Fprintf(w, "\t\t%s\n", s); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// WriteToFile stores the topology in the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of
// this name.
func (topo *Topology) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*topo)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*topo, "", "\t")
	} else {
		return errors.Errorf("unrecognized topology file extension %q", pathExt)
	}
	if merr != nil {
		return errors.Wrapf(merr, "serializing topology %s", topo.Name)
	}

	return errors.Wrapf(os.WriteFile(filename, bytes, 0644), "writing topology file %s", filename)
}

// ReadTopology deserializes a byte slice holding a representation of a
// Topology. If the input argument of dict (those bytes) is empty, the file
// whose name is given is read to acquire them.
func ReadTopology(filename string, useYAML bool, dict []byte) (*Topology, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	topo := Topology{}

	if useYAML {
		err = yaml.Unmarshal(dict, &topo)
	} else {
		err = json.Unmarshal(dict, &topo)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "deserializing topology file %s", filename)
	}

	topo.index()

	return &topo, nil
}

// index rebuilds the name lookup map after deserialization.
func (topo *Topology) index() {
	topo.nodeByName = make(map[string]*Node, len(topo.Nodes))
	for _, node := range topo.Nodes {
		topo.nodeByName[node.Name] = node
	}
}

// nodeTitle maps a tier to the single-letter role prefix used in node names.
func nodeTitle(tier, topTier int) string {
	switch {
	case tier == topTier:
		return TofName
	case tier > LeafTier:
		return SpineName
	case tier == LeafTier:
		return LeafName
	case tier == ComputeTier:
		return ComputeName
	}

	return ""
}

// nodeName builds the full node name: role prefix, pod prefix (except at the
// top tier, which has no pod lineage), and the node's number within the pod.
func nodeName(prefix string, num, tier, topTier int) string {
	title := nodeTitle(tier, topTier)
	if tier == topTier {
		return fmt.Sprintf("%s_%d", title, num)
	}

	return fmt.Sprintf("%s%s_%d", title, prefix, num)
}

// suffix marking topologies whose compute hosts share one subnet per leaf
const sharedSubnetSuffix = "_scs"

// topologyName derives the deterministic persistence key from the build
// parameters, with any southbound overrides appended tier-lowest-first and
// the shared-compute-subnet marker last. Shared-subnet builds carry
// different addressing than per-link builds, so the two must never collide
// under one key.
func topologyName(protocol string, k, t int, southbound map[int]int, sharedComputeSubnet bool) string {
	name := fmt.Sprintf("%s_%d_%d", protocol, t, k)

	tiers := make([]int, 0, len(southbound))
	for tier := range southbound {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)
	for _, tier := range tiers {
		name += fmt.Sprintf("_%d-%d", tier, southbound[tier])
	}

	if sharedComputeSubnet {
		name += sharedSubnetSuffix
	}

	return name
}

func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}

	return result
}

// stripLeafTitle removes the leaf role prefix from a leaf node name, leaving
// the pod lineage used to name the computes in that leaf's subnet.
func stripLeafTitle(leaf string) string {
	return strings.TrimPrefix(leaf, LeafName)
}

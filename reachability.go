package closbench

// file reachability.go classifies every node's post-failure connectivity.
// Forwarding in a folded Clos is valley-free: a path climbs northbound zero
// or more hops, then descends southbound, and never turns north again after
// heading south. The classifier converts the topology into a directed graph
// of northbound edges so the two path phases become forward and reverse
// reachability.

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// NodeStatus grades a node's connectivity after a link failure.
type NodeStatus int

const (
	// StatusGreen marks a node with intact compute reachability whose
	// northbound neighborhood is also intact.
	StatusGreen NodeStatus = iota

	// StatusYellow marks a node that still reaches computes but sits on the
	// edge of the blast radius: at least one of its northbound neighbors is
	// cut off.
	StatusYellow

	// StatusRed marks a node that can no longer reach any compute host.
	StatusRed
)

func (s NodeStatus) String() string {
	switch s {
	case StatusYellow:
		return "yellow"
	case StatusRed:
		return "red"
	}

	return "green"
}

// A NodeReachability is one node's verdict: its status and the compute
// hosts it can still reach over valley-free paths, sorted by name. A node
// is never its own target, so a fully detached compute reaches nothing.
type NodeReachability struct {
	Status            NodeStatus
	ReachableComputes []string
}

// A ReachabilityClassifier grades every node of a topology with one link
// removed. The graph representation maps node names to dense integer ids
// once, at construction, and rebuilds only the edge set per classification.
type ReachabilityClassifier struct {
	topo *Topology

	ids   map[string]int64
	names map[int64]string
}

// CreateReachabilityClassifier is an initialization constructor.
func CreateReachabilityClassifier(topo *Topology) *ReachabilityClassifier {
	rc := new(ReachabilityClassifier)
	rc.topo = topo
	rc.ids = make(map[string]int64, len(topo.Nodes))
	rc.names = make(map[int64]string, len(topo.Nodes))

	for idx, node := range topo.Nodes {
		id := int64(idx)
		rc.ids[node.Name] = id
		rc.names[id] = node.Name
	}

	return rc
}

// Classify grades every node of the topology with the link between
// removedA and removedB taken out. Passing two empty names grades the
// intact topology.
func (rc *ReachabilityClassifier) Classify(removedA, removedB string) map[string]NodeReachability {
	up := rc.buildUpGraph(removedA, removedB)

	results := make(map[string]NodeReachability, len(rc.topo.Nodes))

	// first pass: compute reachability, which decides red
	for _, node := range rc.topo.Nodes {
		computes := rc.reachableComputes(up, node.Name)

		status := StatusGreen
		if len(computes) == 0 {
			status = StatusRed
		}

		results[node.Name] = NodeReachability{Status: status, ReachableComputes: computes}
	}

	// second pass: a surviving node bordering a cut-off northbound neighbor
	// sits on the blast-radius edge
	for _, node := range rc.topo.Nodes {
		verdict := results[node.Name]
		if verdict.Status == StatusRed {
			continue
		}

		for _, nb := range node.Northbound {
			if isRemovedLink(node.Name, nb, removedA, removedB) {
				continue
			}
			if results[nb].Status == StatusRed {
				verdict.Status = StatusYellow
				results[node.Name] = verdict
				break
			}
		}
	}

	return results
}

// buildUpGraph renders the topology's northbound links as directed edges,
// skipping the removed link in both directions.
func (rc *ReachabilityClassifier) buildUpGraph(removedA, removedB string) *simple.DirectedGraph {
	up := simple.NewDirectedGraph()

	for _, node := range rc.topo.Nodes {
		up.AddNode(simple.Node(rc.ids[node.Name]))
	}
	for _, node := range rc.topo.Nodes {
		for _, nb := range node.Northbound {
			if isRemovedLink(node.Name, nb, removedA, removedB) {
				continue
			}
			up.SetEdge(up.NewEdge(simple.Node(rc.ids[node.Name]), simple.Node(rc.ids[nb])))
		}
	}

	return up
}

// reachableComputes returns the compute hosts the named node reaches over
// valley-free paths: forward reachability over northbound edges first, then
// reverse reachability (a southbound descent) from every node the ascent
// touched.
func (rc *ReachabilityClassifier) reachableComputes(up *simple.DirectedGraph, name string) []string {
	src := rc.ids[name]

	ascent := reachableFrom(src, func(id int64) graph.Nodes { return up.From(id) })

	descended := make(map[int64]bool, len(ascent))
	for id := range ascent {
		for nid := range reachableFrom(id, func(id int64) graph.Nodes { return up.To(id) }) {
			descended[nid] = true
		}
	}

	computes := make([]string, 0)
	for id := range descended {
		if id == src {
			continue
		}
		nodeName := rc.names[id]
		if rc.topo.Node(nodeName).Tier == ComputeTier {
			computes = append(computes, nodeName)
		}
	}
	sort.Strings(computes)

	return computes
}

// reachableFrom is a breadth-first closure over one edge direction,
// including the start node itself.
func reachableFrom(start int64, next func(int64) graph.Nodes) map[int64]bool {
	visited := map[int64]bool{start: true}
	queue := []int64{start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		iter := next(id)
		for iter.Next() {
			nid := iter.Node().ID()
			if !visited[nid] {
				visited[nid] = true
				queue = append(queue, nid)
			}
		}
	}

	return visited
}

func isRemovedLink(a, b, removedA, removedB string) bool {
	return (a == removedA && b == removedB) || (a == removedB && b == removedA)
}

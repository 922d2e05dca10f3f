package closbench

// file build.go synthesizes folded-Clos topologies. Construction is a
// modified breadth-first traversal that starts at the top tier of the
// fabric and works down through the spine, leaf, and compute tiers,
// carrying a queue of pod prefixes that identifies which sub-pod each
// node belongs to.

import (
	"strconv"

	"golang.org/x/exp/slices"
)

// Supported parameter ranges. The degree must be even so that every switch
// can split its ports evenly between northbound and southbound links, which
// is what gives the fabric its 1:1 oversubscription ratio.
const (
	minTiers = 2
	maxTiers = 10
	minPorts = 4
	maxPorts = 50
)

// A ClosBuilder synthesizes a Topology for a given port degree and tier
// count. All naming counters and allocation state live on the builder and
// its strategy, so independent builds never interfere.
type ClosBuilder struct {
	// K is the port degree shared by every switch, T the number of tiers.
	K int
	T int

	// SouthboundPorts maps each tier to the number of southbound links a
	// node at that tier fans out. It is filled with the defaults (k at the
	// top tier, k/2 elsewhere) and may be overridden per tier.
	SouthboundPorts map[int]int

	strategy  AddressingStrategy
	overrides map[int]int
}

// CreateClosBuilder validates the parameters and returns a builder wired to
// the given addressing strategy. An invalid k/t combination fails with an
// InvalidTopologyParametersError before any graph state exists.
func CreateClosBuilder(k, t int, strategy AddressingStrategy) (*ClosBuilder, error) {
	if t < minTiers || t > maxTiers {
		return nil, &InvalidTopologyParametersError{K: k, T: t, Reason: "tier count must be between 2 and 10"}
	}
	if k < minPorts || k > maxPorts || k%2 != 0 {
		return nil, &InvalidTopologyParametersError{K: k, T: t,
			Reason: "port degree must be an even number between 4 and 50 (equal north and south links)"}
	}
	if strategy == nil {
		strategy = PlainAddressing{}
	}

	cb := new(ClosBuilder)
	cb.K = k
	cb.T = t
	cb.strategy = strategy
	cb.overrides = make(map[int]int)

	cb.SouthboundPorts = make(map[int]int)
	for tier := LeafTier; tier < t; tier++ {
		cb.SouthboundPorts[tier] = k / 2
	}
	// the top tier has all of its ports southbound
	cb.SouthboundPorts[t] = k

	return cb, nil
}

// SetSouthboundPorts overrides the southbound link count for specific tiers.
func (cb *ClosBuilder) SetSouthboundPorts(customPorts map[int]int) {
	for tier, ports := range customPorts {
		cb.SouthboundPorts[tier] = ports
		cb.overrides[tier] = ports
	}
}

// Build runs the tier-descending construction and returns the finished
// topology. Rebuilding with identical parameters produces an identical
// graph: node order, adjacency order, and addressing are all deterministic.
func (cb *ClosBuilder) Build() (*Topology, error) {
	k := cb.K
	t := cb.T

	topo := CreateTopology(cb.strategy.Protocol(), k, t)

	scs := false
	if s, ok := cb.strategy.(sharedSubnetStrategy); ok {
		scs = s.sharedComputeSubnet()
	}
	topo.Name = topologyName(cb.strategy.Protocol(), k, t, cb.overrides, scs)

	// queue of pod prefixes being connected southward, and the queue of
	// prefixes for the tier directly below it
	currentTierPrefix := []string{""}
	nextTierPrefix := []string{}

	// number of nodes sharing one prefix at the current tier; starts as the
	// full top tier and shrinks at lower tiers
	currentPodNodes := intPow(k/2, t-1)
	topTier := t
	currentTier := t

	for len(currentTierPrefix) > 0 {
		currentPrefix := currentTierPrefix[0]
		currentTierPrefix = currentTierPrefix[1:]

		for node := 1; node <= currentPodNodes; node++ {
			nodeNum := node - 1
			northNode := nodeName(currentPrefix, node, currentTier, topTier)

			var southPrefix string
			var southNodeNum int

			for intf := 1; intf <= cb.SouthboundPorts[currentTier]; intf++ {
				switch {
				// all tiers above the lowest spine tier fan out by prefix
				// concatenation
				case currentTier > LowestSpineTier:
					southPrefix = currentPrefix + "-" + strconv.Itoa(intf)
					nextTierPrefix = appendUniquePrefix(nextTierPrefix, southPrefix)
					southNodeNum = nodeNum%(currentPodNodes/(k/2)) + 1

				// the leaf tier shares the prefix of the lowest spine tier,
				// which is the smallest unit (pod)
				case currentTier == LowestSpineTier:
					southPrefix = currentPrefix
					nextTierPrefix = appendUniquePrefix(nextTierPrefix, southPrefix)
					southNodeNum = intf

				// the leaf tier connects down to the compute tier: the
				// interface index becomes the compute index in the leaf's
				// subnet
				case currentTier == LeafTier:
					southPrefix = stripLeafTitle(northNode)
					southNodeNum = intf
				}

				southNode := nodeName(southPrefix, southNodeNum, currentTier-1, topTier)
				if err := cb.connect(topo, northNode, southNode, currentTier, currentTier-1); err != nil {
					return nil, err
				}
			}
		}

		if len(currentTierPrefix) == 0 {
			currentTierPrefix = nextTierPrefix
			nextTierPrefix = nil

			// proper distribution of links for 2-tier topologies: the fold
			// collapses to a single pod whose leaf count matches k
			if currentTier == topTier && topTier == LowestSpineTier {
				currentPodNodes = k
			}

			if currentTier > LowestSpineTier {
				currentPodNodes = currentPodNodes / (k / 2)
			}

			currentTier--
		}
	}

	return topo, nil
}

// connect registers a link between a node and the node one tier below it:
// both nodes are created if needed, each records the other in the proper
// direction, the undirected edge is tagged, and the addressing strategy
// assigns its per-edge attributes.
func (cb *ClosBuilder) connect(topo *Topology, northNode, southNode string, northTier, southTier int) error {
	north := topo.AddNode(northNode, northTier)
	south := topo.AddNode(southNode, southTier)

	north.Southbound = append(north.Southbound, southNode)
	south.Northbound = append(south.Northbound, northNode)

	topo.AddEdge(northNode, southNode, southTier == ComputeTier)

	return cb.strategy.Assign(topo, northNode, southNode, northTier, southTier)
}

// appendUniquePrefix adds a prefix to the next-tier work queue unless the
// BFS already visited it.
func appendUniquePrefix(prefixes []string, prefix string) []string {
	if !slices.Contains(prefixes, prefix) {
		prefixes = append(prefixes, prefix)
	}

	return prefixes
}

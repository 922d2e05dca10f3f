package closbench

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, k, tiers int, strategy AddressingStrategy) *Topology {
	t.Helper()

	cb, err := CreateClosBuilder(k, tiers, strategy)
	require.NoError(t, err)
	topo, err := cb.Build()
	require.NoError(t, err)

	return topo
}

func TestBuildSizeFormulas(t *testing.T) {
	testCases := []struct {
		k, t int
	}{
		{k: 4, t: 2},
		{k: 4, t: 3},
		{k: 4, t: 4},
		{k: 6, t: 2},
		{k: 6, t: 3},
		{k: 8, t: 2},
		{k: 8, t: 3},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(topologyName(ProtocolPlain, tc.k, tc.t, nil, false), func(t *testing.T) {
			topo := mustBuild(t, tc.k, tc.t, nil)
			stats := topo.Stats()

			assert.Len(t, topo.NodesAtTier(tc.t), stats.TofNodes, "ToF count")
			assert.Len(t, topo.NodesAtTier(LeafTier), stats.Leaves, "leaf count")
			assert.Len(t, topo.ComputeNodes(), stats.Servers, "server count")

			networkNodes := 0
			for _, node := range topo.Nodes {
				if node.Tier > ComputeTier {
					networkNodes++
				}
			}
			assert.Equal(t, stats.NetworkNodes, networkNodes, "network node count")

			// every switch uses exactly k ports
			for _, node := range topo.Nodes {
				if node.Tier == ComputeTier {
					assert.Len(t, node.Northbound, 1, "compute %s uplinks", node.Name)
					continue
				}
				assert.Len(t, node.Northbound, degreeNorth(topo, node),
					"node %s northbound", node.Name)
				assert.LessOrEqual(t, len(node.Northbound)+len(node.Southbound), tc.k,
					"node %s uses more than k ports", node.Name)
			}
		})
	}
}

// degreeNorth gives the expected northbound link count of a switch: none at
// the top tier, half the ports everywhere else.
func degreeNorth(topo *Topology, node *Node) int {
	if node.Tier == topo.T {
		return 0
	}

	return topo.K / 2
}

func TestBuildTwoTierLayout(t *testing.T) {
	topo := mustBuild(t, 4, 2, nil)

	assert.Equal(t, "plain_2_4", topo.Name)
	assert.Equal(t, []string{"T_1", "T_2"}, topo.NodesAtTier(2))
	assert.Equal(t, []string{"L_1", "L_2", "L_3", "L_4"}, topo.NodesAtTier(LeafTier))

	// the fold gives each leaf a link to every ToF node
	for _, leaf := range topo.NodesAtTier(LeafTier) {
		assert.Equal(t, []string{"T_1", "T_2"}, topo.Node(leaf).Northbound, leaf)
	}

	assert.Equal(t, []string{"C_1_1", "C_1_2"}, topo.Node("L_1").Southbound)
	assert.True(t, topo.Adjacent("T_1", "L_3"))
	assert.False(t, topo.Adjacent("L_1", "L_2"))
	assert.False(t, topo.Adjacent("T_1", "C_1_1"))
}

func TestBuildThreeTierPods(t *testing.T) {
	topo := mustBuild(t, 4, 3, nil)

	assert.Equal(t, 4, topo.Stats().Pods)
	assert.Equal(t, []string{"T_1", "T_2", "T_3", "T_4"}, topo.NodesAtTier(3))

	// each ToF node reaches every pod exactly once
	assert.Equal(t, []string{"S-1_1", "S-2_1", "S-3_1", "S-4_1"}, topo.Node("T_1").Southbound)
	assert.Equal(t, []string{"S-1_2", "S-2_2", "S-3_2", "S-4_2"}, topo.Node("T_2").Southbound)

	// pod spines share their leaves
	assert.Equal(t, []string{"L-1_1", "L-1_2"}, topo.Node("S-1_1").Southbound)
	assert.Equal(t, []string{"L-1_1", "L-1_2"}, topo.Node("S-1_2").Southbound)

	// computes inherit the leaf's pod lineage
	assert.Equal(t, []string{"C-1_1_1", "C-1_1_2"}, topo.Node("L-1_1").Southbound)
}

func TestBuildDeterministic(t *testing.T) {
	first := mustBuild(t, 6, 3, CreateBGPAddressing(false))
	second := mustBuild(t, 6, 3, CreateBGPAddressing(false))

	diff := cmp.Diff(first, second, cmpopts.IgnoreUnexported(Topology{}))
	assert.Empty(t, diff)
}

func TestBuildInvalidParameters(t *testing.T) {
	testCases := map[string]struct {
		k, t int
	}{
		"odd degree":        {k: 5, t: 3},
		"degree too small":  {k: 2, t: 3},
		"degree too large":  {k: 52, t: 3},
		"single tier":       {k: 4, t: 1},
		"too many tiers":    {k: 4, t: 11},
		"zero tiers":        {k: 4, t: 0},
		"negative degree":   {k: -4, t: 3},
		"both out of range": {k: 3, t: 1},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			_, err := CreateClosBuilder(tc.k, tc.t, nil)
			require.Error(t, err)

			var invalid *InvalidTopologyParametersError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tc.k, invalid.K)
			assert.Equal(t, tc.t, invalid.T)
		})
	}
}

func TestBuildSouthboundOverride(t *testing.T) {
	cb, err := CreateClosBuilder(4, 2, nil)
	require.NoError(t, err)
	cb.SetSouthboundPorts(map[int]int{LeafTier: 1})

	topo, err := cb.Build()
	require.NoError(t, err)

	assert.Equal(t, "plain_2_4_1-1", topo.Name)
	for _, leaf := range topo.NodesAtTier(LeafTier) {
		assert.Len(t, topo.Node(leaf).Southbound, 1, leaf)
	}
	assert.Len(t, topo.ComputeNodes(), 4)
}

func TestBuildSharedSubnetName(t *testing.T) {
	perLink := mustBuild(t, 4, 2, CreateBGPAddressing(false))
	shared := mustBuild(t, 4, 2, CreateBGPAddressing(true))

	assert.Equal(t, "bgp_2_4", perLink.Name)
	assert.Equal(t, "bgp_2_4_scs", shared.Name)
	assert.NotEqual(t, perLink.Name, shared.Name)

	mtpShared := mustBuild(t, 4, 2, CreateMTPAddressing(true))
	assert.Equal(t, "mtp_2_4_scs", mtpShared.Name)
}

func TestIntfNameFollowsLinkOrder(t *testing.T) {
	topo := mustBuild(t, 4, 2, nil)

	testCases := []struct {
		node, neighbor, want string
	}{
		{"L_1", "T_1", "L_1-eth1"},
		{"L_1", "T_2", "L_1-eth2"},
		{"L_1", "C_1_1", "L_1-eth3"},
		{"L_1", "C_1_2", "L_1-eth4"},
		{"T_1", "L_1", "T_1-eth1"},
		{"T_1", "L_4", "T_1-eth4"},
		{"C_1_2", "L_1", "C_1_2-eth1"},
	}

	for _, tc := range testCases {
		got, err := topo.IntfName(tc.node, tc.neighbor)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := topo.IntfName("L_1", "L_2")
	assert.Error(t, err)
	_, err = topo.IntfName("X_9", "L_1")
	assert.Error(t, err)
}

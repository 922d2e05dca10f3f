package closbench

import (
	"os"
	"path"
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDescriptor(t *testing.T, topo *Topology) *ExperimentDescriptor {
	t.Helper()

	intf, err := topo.IntfName("T_1", "L_1")
	require.NoError(t, err)
	neighborIntf, err := topo.IntfName("L_1", "T_1")
	require.NoError(t, err)

	return &ExperimentDescriptor{
		FailedNode:       "T_1",
		IntfName:         intf,
		FailedNeighbor:   "L_1",
		NeighborIntfName: neighborIntf,
		Mode:             HardFailure,
		StartTime:        1700000000000,
		StopTime:         1700000060000,
	}
}

func TestExperimentDescriptorRoundTrip(t *testing.T) {
	topo := mustBuild(t, 4, 2, nil)
	desc := validDescriptor(t, topo)
	desc.TrafficIncluded = true

	file := path.Join(t.TempDir(), "experiment.log")
	require.NoError(t, desc.WriteToFile(file))

	reread, err := ReadExperimentDescriptor(file, nil)
	require.NoError(t, err)
	assert.Equal(t, desc, reread)
}

func TestExperimentDescriptorSoftRoundTrip(t *testing.T) {
	topo := mustBuild(t, 4, 2, nil)
	desc := validDescriptor(t, topo)
	desc.Mode = SoftFailure
	desc.IntfFailureTime = desc.StartTime + 500

	file := path.Join(t.TempDir(), "experiment.log")
	require.NoError(t, desc.WriteToFile(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Interface failure timestamp: 1700000000500")

	reread, err := ReadExperimentDescriptor(file, nil)
	require.NoError(t, err)
	assert.Equal(t, desc, reread)
}

func TestReadExperimentDescriptorFromBytes(t *testing.T) {
	dict := []byte(`Failed node: S-1_1
Interface name: S-1_1-eth3
Failed neighbor: L-1_1
Neighbor interface name: L-1_1-eth1
Experiment type: hard
Experiment start time: 100
Experiment stop time: 200
Traffic included: false
`)

	desc, err := ReadExperimentDescriptor("unused", dict)
	require.NoError(t, err)
	assert.Equal(t, "S-1_1", desc.FailedNode)
	assert.Equal(t, HardFailure, desc.Mode)
	assert.Equal(t, int64(100), desc.StartTime)
	assert.Equal(t, int64(200), desc.StopTime)
	assert.False(t, desc.TrafficIncluded)
}

func TestReadExperimentDescriptorMalformed(t *testing.T) {
	_, err := ReadExperimentDescriptor("unused", []byte("Experiment start time: soon\n"))
	assert.Error(t, err)

	_, err = ReadExperimentDescriptor("unused", []byte("Experiment type: catastrophic\n"))
	assert.Error(t, err)

	_, err = ReadExperimentDescriptor("unused", []byte("no separator here\n"))
	assert.Error(t, err)
}

func TestExperimentDescriptorValidate(t *testing.T) {
	topo := mustBuild(t, 4, 2, nil)

	testCases := map[string]struct {
		mutate  func(*ExperimentDescriptor)
		wantErr bool
	}{
		"valid": {mutate: func(*ExperimentDescriptor) {}},
		"empty window": {
			mutate:  func(d *ExperimentDescriptor) { d.StopTime = d.StartTime },
			wantErr: true,
		},
		"compute endpoint": {
			mutate: func(d *ExperimentDescriptor) {
				d.FailedNeighbor = "C_1_1"
				d.NeighborIntfName = "C_1_1-eth1"
			},
			wantErr: true,
		},
		"not adjacent": {
			mutate:  func(d *ExperimentDescriptor) { d.FailedNeighbor = "L_9" },
			wantErr: true,
		},
		"wrong interface": {
			mutate:  func(d *ExperimentDescriptor) { d.IntfName = "T_1-eth4" },
			wantErr: true,
		},
		"wrong neighbor interface": {
			mutate:  func(d *ExperimentDescriptor) { d.NeighborIntfName = "L_1-eth2" },
			wantErr: true,
		},
		"soft failure outside window": {
			mutate: func(d *ExperimentDescriptor) {
				d.Mode = SoftFailure
				d.IntfFailureTime = d.StopTime + 1
			},
			wantErr: true,
		},
		"soft failure inside window": {
			mutate: func(d *ExperimentDescriptor) {
				d.Mode = SoftFailure
				d.IntfFailureTime = d.StartTime + 10
			},
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			desc := validDescriptor(t, topo)
			tc.mutate(desc)

			err := desc.Validate(topo)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPickFailureTarget(t *testing.T) {
	topo := mustBuild(t, 4, 3, nil)
	rng := rngstream.New("pick-test")

	for i := 0; i < 20; i++ {
		desc, err := PickFailureTarget(topo, HardFailure, rng)
		require.NoError(t, err)

		// always a network-to-network link with matching interface names
		assert.True(t, topo.IsNetworkNode(desc.FailedNode), desc.FailedNode)
		assert.True(t, topo.IsNetworkNode(desc.FailedNeighbor), desc.FailedNeighbor)
		assert.True(t, topo.Adjacent(desc.FailedNode, desc.FailedNeighbor))

		intf, err := topo.IntfName(desc.FailedNode, desc.FailedNeighbor)
		require.NoError(t, err)
		assert.Equal(t, intf, desc.IntfName)

		neighborIntf, err := topo.IntfName(desc.FailedNeighbor, desc.FailedNode)
		require.NoError(t, err)
		assert.Equal(t, neighborIntf, desc.NeighborIntfName)

		assert.Equal(t, HardFailure, desc.Mode)
	}
}

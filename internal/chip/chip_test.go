package chip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SLAM-Lab/sana-fe/internal/arch"
	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/netdescr"
)

func twoTileArch() *arch.ArchitectureDescription {
	core := func(name string) arch.CoreConfig {
		return arch.CoreConfig{
			Name:           name,
			BufferPosition: "before_soma",
			Synapse:        arch.UnitConfig{Model: "current"},
			Dendrite:       arch.UnitConfig{Model: "accumulator"},
			Soma:           arch.UnitConfig{Model: "loihi_lif", Attributes: map[string]interface{}{"threshold": 0.5}},
		}
	}
	return &arch.ArchitectureDescription{
		Name:            "test",
		NoCWidth:        2,
		NoCHeight:       1,
		MaxCoresPerTile: 1,
		Tiles: []arch.TileConfig{
			{Name: "tile0", X: 0, Y: 0, Cores: []arch.CoreConfig{core("core0")}},
			{Name: "tile1", X: 1, Y: 0, Cores: []arch.CoreConfig{core("core0")}},
		},
	}
}

func twoNeuronNet() *netdescr.NetworkDescription {
	return &netdescr.NetworkDescription{
		Groups: []netdescr.NeuronGroup{
			{Name: "g", Neurons: []netdescr.NeuronConfig{{ID: 0}, {ID: 1}}},
		},
		Edges: []netdescr.Edge{
			{SrcGroup: "g", SrcNeuron: 0, DstGroup: "g", DstNeuron: 1, Weight: 1.0},
		},
		Mapping: []netdescr.Mapping{
			{Group: "g", Neuron: 0, Tile: "tile0", CoreOffset: 0},
			{Group: "g", Neuron: 1, Tile: "tile1", CoreOffset: 0},
		},
	}
}

func TestBuildFromNetworkMapsNeuronsAndAxons(t *testing.T) {
	c, err := chip.New(twoTileArch(), hwunit.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, c.BuildFromNetwork(twoNeuronNet()))

	src, ok := c.NeuronIndex["g.0"]
	require.True(t, ok)
	dst, ok := c.NeuronIndex["g.1"]
	require.True(t, ok)

	require.Len(t, src.AxonOutAddresses, 1)
	assert.Equal(t, dst.Core.ID, src.AxonOutAddresses[0].DstCoreID)

	axonAddr := src.AxonOutAddresses[0].DstAxonInAddr
	entry, ok := dst.Core.AxonIn[axonAddr]
	require.True(t, ok)
	require.Len(t, entry.PostNeurons, 1)
	assert.Same(t, dst, entry.PostNeurons[0])
}

func TestBuildFromNetworkRejectsUnknownTile(t *testing.T) {
	c, err := chip.New(twoTileArch(), hwunit.NewRegistry())
	require.NoError(t, err)

	net := twoNeuronNet()
	net.Mapping[0].Tile = "no_such_tile"

	err = c.BuildFromNetwork(net)
	require.Error(t, err)
}

func TestBuildFromNetworkRejectsCoreOffsetOutOfRange(t *testing.T) {
	c, err := chip.New(twoTileArch(), hwunit.NewRegistry())
	require.NoError(t, err)

	net := twoNeuronNet()
	net.Mapping[0].CoreOffset = 5

	err = c.BuildFromNetwork(net)
	require.Error(t, err)
}

func TestMapNeuronAssignsSequentialAddresses(t *testing.T) {
	c, err := chip.New(twoTileArch(), hwunit.NewRegistry())
	require.NoError(t, err)

	core := c.Tiles[0].Cores[0]
	n0, err := c.MapNeuron(netdescr.NeuronConfig{ID: 0}, "g", core)
	require.NoError(t, err)
	n1, err := c.MapNeuron(netdescr.NeuronConfig{ID: 1}, "g", core)
	require.NoError(t, err)

	assert.Equal(t, 0, n0.SomaAddress)
	assert.Equal(t, 1, n1.SomaAddress)
}

package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SLAM-Lab/sana-fe/internal/arch"
	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/netdescr"
	"github.com/SLAM-Lab/sana-fe/internal/pipeline"
)

// buildChip wires an input neuron on tile0 to an LIF neuron on tile1, with
// the destination core's buffer split at bufferPosition.
func buildChip(t *testing.T, bufferPosition string) *chip.Chip {
	t.Helper()
	desc := &arch.ArchitectureDescription{
		Name:            "test",
		NoCWidth:        2,
		NoCHeight:       1,
		MaxCoresPerTile: 1,
		Tiles: []arch.TileConfig{
			{Name: "tile0", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: "before_soma",
				Soma:           arch.UnitConfig{Model: "input"},
			}}},
			{Name: "tile1", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: bufferPosition,
				Synapse:        arch.UnitConfig{Model: "current"},
				Dendrite:       arch.UnitConfig{Model: "accumulator"},
				Soma:           arch.UnitConfig{Model: "loihi_lif", Attributes: map[string]interface{}{"threshold": 0.5}},
			}}},
		},
	}

	c, err := chip.New(desc, hwunit.NewRegistry())
	require.NoError(t, err)

	net := &netdescr.NetworkDescription{
		Groups: []netdescr.NeuronGroup{
			{Name: "in", Neurons: []netdescr.NeuronConfig{{ID: 0, ForcedSpikes: 1}}},
			{Name: "out", Neurons: []netdescr.NeuronConfig{{ID: 0}}},
		},
		Edges: []netdescr.Edge{
			{SrcGroup: "in", SrcNeuron: 0, DstGroup: "out", DstNeuron: 0, Weight: 1.0},
		},
		Mapping: []netdescr.Mapping{
			{Group: "in", Neuron: 0, Tile: "tile0", CoreOffset: 0},
			{Group: "out", Neuron: 0, Tile: "tile1", CoreOffset: 0},
		},
	}
	require.NoError(t, c.BuildFromNetwork(net))
	return c
}

func flatten(queues [][]*message.Message) []*message.Message {
	var all []*message.Message
	for _, q := range queues {
		all = append(all, q...)
	}
	return all
}

func TestProcessNeuronsGeneratesMessageOnForcedFire(t *testing.T) {
	c := buildChip(t, "before_axon_out")

	delivered := flatten(pipeline.ProcessNeurons(c, 0))

	var spikes int
	for _, m := range delivered {
		if !m.Placeholder {
			spikes++
			assert.Equal(t, 1, m.SpikeCount)
		}
	}
	assert.Equal(t, 1, spikes)
}

func TestProcessMessagesFiresDestinationOnReceiveSide(t *testing.T) {
	c := buildChip(t, "before_axon_out")

	delivered := flatten(pipeline.ProcessNeurons(c, 0))
	pipeline.ProcessMessages(c, delivered)

	dst := c.NeuronIndex["out.0"]
	assert.Equal(t, hwunit.Fired, dst.Status)
}

func TestProcessMessagesDefersSomaWhenBufferSplitsBeforeSoma(t *testing.T) {
	c := buildChip(t, "before_soma")

	delivered := flatten(pipeline.ProcessNeurons(c, 0))
	pipeline.ProcessMessages(c, delivered)

	dst := c.NeuronIndex["out.0"]
	assert.True(t, dst.HasSomaInput)
	assert.Greater(t, dst.SomaInputCharge, 0.0)
}

// buildChipWithAxonCosts is buildChip plus a configured axon-out unit on the
// source core and axon-in unit on the destination core, so a message's
// generation/receive delay and energy reflect those costs.
func buildChipWithAxonCosts(t *testing.T) *chip.Chip {
	t.Helper()
	desc := &arch.ArchitectureDescription{
		Name:            "test",
		NoCWidth:        2,
		NoCHeight:       1,
		MaxCoresPerTile: 1,
		Tiles: []arch.TileConfig{
			{Name: "tile0", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: "before_soma",
				Soma:           arch.UnitConfig{Model: "input"},
				AxonOut:        arch.UnitConfig{Attributes: map[string]interface{}{"latency_access": 0.1, "energy_access": 0.01}},
			}}},
			{Name: "tile1", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: "before_axon_out",
				AxonIn:         arch.UnitConfig{Attributes: map[string]interface{}{"latency_spike_message": 0.2, "energy_spike_message": 0.02}},
				Synapse:        arch.UnitConfig{Model: "current"},
				Dendrite:       arch.UnitConfig{Model: "accumulator"},
				Soma:           arch.UnitConfig{Model: "loihi_lif", Attributes: map[string]interface{}{"threshold": 0.5}},
			}}},
		},
	}

	c, err := chip.New(desc, hwunit.NewRegistry())
	require.NoError(t, err)

	net := &netdescr.NetworkDescription{
		Groups: []netdescr.NeuronGroup{
			{Name: "in", Neurons: []netdescr.NeuronConfig{{ID: 0, ForcedSpikes: 1}}},
			{Name: "out", Neurons: []netdescr.NeuronConfig{{ID: 0}}},
		},
		Edges: []netdescr.Edge{
			{SrcGroup: "in", SrcNeuron: 0, DstGroup: "out", DstNeuron: 0, Weight: 1.0},
		},
		Mapping: []netdescr.Mapping{
			{Group: "in", Neuron: 0, Tile: "tile0", CoreOffset: 0},
			{Group: "out", Neuron: 0, Tile: "tile1", CoreOffset: 0},
		},
	}
	require.NoError(t, c.BuildFromNetwork(net))
	return c
}

func TestAxonOutAddsLatencyEnergyAndCountsPacket(t *testing.T) {
	c := buildChipWithAxonCosts(t)
	srcCore := c.Cores[0]

	delivered := flatten(pipeline.ProcessNeurons(c, 0))

	var spike *message.Message
	for _, m := range delivered {
		if !m.Placeholder {
			spike = m
		}
	}
	require.NotNil(t, spike)
	assert.InDelta(t, 0.1, float64(spike.GenerationDelay), 1e-9)
	assert.EqualValues(t, 1, srcCore.PacketsOut)
	assert.InDelta(t, 0.01, srcCore.Energy, 1e-9)
}

func TestProcessMessageChargesAxonInLatencyAndCountsSpike(t *testing.T) {
	c := buildChipWithAxonCosts(t)
	dstCore := c.Cores[1]

	delivered := flatten(pipeline.ProcessNeurons(c, 0))
	pipeline.ProcessMessages(c, delivered)

	var spike *message.Message
	for _, m := range delivered {
		if !m.Placeholder {
			spike = m
		}
	}
	require.NotNil(t, spike)
	assert.InDelta(t, 0.2, float64(spike.ReceiveDelay), 1e-9)
	assert.EqualValues(t, 1, dstCore.SpikeMessagesIn)
	assert.InDelta(t, 0.02, dstCore.Energy, 1e-9)
}

// buildSilentTimestepChip wires an input neuron that fires at t=0 and t=4
// (silent for three timesteps in between) onto a destination core whose
// buffer position defers dendrite and soma entirely to the receive side, so
// the dendrite address is only ever touched when a message arrives.
func buildSilentTimestepChip(t *testing.T, threshold float64) *chip.Chip {
	t.Helper()
	desc := &arch.ArchitectureDescription{
		Name:            "test",
		NoCWidth:        2,
		NoCHeight:       1,
		MaxCoresPerTile: 1,
		Tiles: []arch.TileConfig{
			{Name: "tile0", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: "before_soma",
				Soma:           arch.UnitConfig{Model: "input"},
			}}},
			{Name: "tile1", Cores: []arch.CoreConfig{{
				Name:           "core0",
				BufferPosition: "before_axon_out",
				Synapse:        arch.UnitConfig{Model: "current"},
				Dendrite:       arch.UnitConfig{Model: "accumulator", Attributes: map[string]interface{}{"leak_decay": 0.5}},
				Soma:           arch.UnitConfig{Model: "loihi_lif", Attributes: map[string]interface{}{"threshold": threshold}},
			}}},
		},
	}

	c, err := chip.New(desc, hwunit.NewRegistry())
	require.NoError(t, err)

	net := &netdescr.NetworkDescription{
		Groups: []netdescr.NeuronGroup{
			{Name: "in", Neurons: []netdescr.NeuronConfig{{
				ID:             0,
				SomaAttributes: map[string]interface{}{"sequence": []interface{}{true, false, false, false, true}},
			}}},
			{Name: "out", Neurons: []netdescr.NeuronConfig{{ID: 0}}},
		},
		Edges: []netdescr.Edge{
			{SrcGroup: "in", SrcNeuron: 0, DstGroup: "out", DstNeuron: 0, Weight: 1.0},
		},
		Mapping: []netdescr.Mapping{
			{Group: "in", Neuron: 0, Tile: "tile0", CoreOffset: 0},
			{Group: "out", Neuron: 0, Tile: "tile1", CoreOffset: 0},
		},
	}
	require.NoError(t, c.BuildFromNetwork(net))
	return c
}

// TestDendriteCatchesUpMissedTimestepsBeforeIntegratingNextInput exercises
// three silent timesteps between two spikes delivered to the same dendrite
// address: without stepping the dendrite's decay once per missed timestep,
// its charge would only ever decay once no matter how much silent time
// elapsed, which here would wrongly push the second spike's integrated
// charge over the firing threshold.
func TestDendriteCatchesUpMissedTimestepsBeforeIntegratingNextInput(t *testing.T) {
	// Correct catch-up: charge decays 0.5 -> 0.25 -> 0.125 across the three
	// silent ticks before the second spike lands, giving 0.125*0.5 + 2.0 =
	// 2.0625, which stays under a 2.2 threshold. A single decay step
	// regardless of elapsed time would instead give 1.0*0.5 + 2.0 = 2.5,
	// which crosses it.
	c := buildSilentTimestepChip(t, 2.2)

	for ts := int64(0); ts < 5; ts++ {
		delivered := flatten(pipeline.ProcessNeurons(c, ts))
		pipeline.ProcessMessages(c, delivered)
	}

	dst := c.NeuronIndex["out.0"]
	assert.Equal(t, hwunit.Updated, dst.Status)
}

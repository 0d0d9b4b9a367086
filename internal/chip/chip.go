// Package chip holds the mapped hardware model (C2): tiles and cores built
// from an architecture description, and neurons/connections mapped onto
// them from a network description. It owns the axon-in and axon-out
// counters directly (they are plain structs, not pluggable models) and
// holds one instance of each pluggable hwunit model per core.
package chip

import (
	"fmt"

	"github.com/SLAM-Lab/sana-fe/internal/arch"
	"github.com/SLAM-Lab/sana-fe/internal/hook"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/mesh"
	"github.com/SLAM-Lab/sana-fe/internal/netdescr"
	"github.com/SLAM-Lab/sana-fe/internal/simerr"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// BufferPosition selects where in the per-timestep pipeline a core's
// receive-side work stops and its neuron-process-side work takes over
// (§4.3).
type BufferPosition int

const (
	BufferBeforeDendrite BufferPosition = iota
	BufferBeforeSoma
	BufferBeforeAxonOut
)

// ParseBufferPosition maps the architecture description's string value to
// a BufferPosition.
func ParseBufferPosition(s string) (BufferPosition, error) {
	switch s {
	case "dendrite", "before_dendrite":
		return BufferBeforeDendrite, nil
	case "soma", "before_soma":
		return BufferBeforeSoma, nil
	case "axon_out", "before_axon_out":
		return BufferBeforeAxonOut, nil
	default:
		return 0, fmt.Errorf("unknown buffer position %q", s)
	}
}

// AxonInEntry is one received-spike's destination within a core: the local
// synapse addresses (and the post-synaptic neuron each belongs to) that a
// message arriving at this axon fans out to. Axon-in has no model
// variants, just a lookup table, so it lives here rather than in hwunit.
type AxonInEntry struct {
	SynapseAddresses []int
	PostNeurons      []*MappedNeuron
}

// AxonOutEntry is one outgoing destination for a neuron that fires: the
// remote tile/core/axon-in address a message must be generated for.
type AxonOutEntry struct {
	DstTileID     int
	DstX, DstY    int
	DstCoreID     int
	DstCoreOffset int
	DstAxonInAddr int
}

// MappedConnection is one synaptic edge. Its synapse hardware address is on
// the destination neuron's core: synapse integration happens on the
// receive side, alongside the dendrite and soma it feeds (§4.2).
type MappedConnection struct {
	ID             int
	PreNeuron      *MappedNeuron
	PostNeuron     *MappedNeuron
	SynapseAddress int
	Weight         float64
}

// MappedNeuron is one neuron mapped onto a core, with its hardware
// addresses and runtime state for the current timestep.
type MappedNeuron struct {
	ID               int
	GroupName        string
	Core             *Core
	DendriteAddress  int
	SomaAddress      int
	MappingOrder     int
	LogSpikes        bool
	LogPotential     bool
	ConnectionsOut   []*MappedConnection
	AxonOutAddresses []AxonOutEntry

	// ForcedSpikes counts down: while positive, the neuron fires
	// unconditionally on its next soma update and the counter decrements
	// (§8 scenario 5).
	ForcedSpikes int

	// Per-timestep state. Status and SpikeCount are reset by the driver at
	// the start of every timestep; SomaInputCharge, HasSomaInput and
	// AxonOutInputSpike carry work from one pipeline phase to the next and
	// are cleared by the pipeline when it consumes them.
	SomaInputCharge   float64
	HasSomaInput      bool
	AxonOutInputSpike bool
	SpikeCount        int
	Status            hwunit.NeuronStatus

	// DendriteLastUpdated/SomaLastUpdated are the timestep each unit was
	// last brought current to. On a core where dendrite/soma run on the
	// receive side (buffer position past them), a neuron with no incoming
	// spikes for several timesteps only gets its decay applied when the
	// next message does arrive, so the pipeline must catch each unit up one
	// missed timestep at a time before integrating new input (§4.3.2,
	// §8 scenario 4).
	DendriteLastUpdated int64
	SomaLastUpdated     int64
}

// Core is one neuromorphic processing core: one instance of each pluggable
// hardware unit plus the axon-in/axon-out tables and the neurons mapped
// onto it.
type Core struct {
	ID             int
	Offset         int
	TileID         int
	TileX, TileY   int
	BufferPosition BufferPosition

	AxonIn  map[int]AxonInEntry
	Synapse hwunit.SynapseUnit
	Dendrite hwunit.DendriteUnit
	Soma    hwunit.SomaUnit

	// AxonInLatency/AxonInEnergy and AxonOutLatency/AxonOutEnergy are the
	// per-message access cost of this core's axon-in and axon-out units,
	// read from the architecture description's axon_in/axon_out attributes
	// (§6). Axon-in and axon-out have no model variants, just a lookup
	// table plus a fixed per-message cost, so they live here as plain
	// fields rather than in hwunit.
	AxonInLatency  simtime.VTimeInSec
	AxonInEnergy   float64
	AxonOutLatency simtime.VTimeInSec
	AxonOutEnergy  float64

	// SpikeMessagesIn/PacketsOut count messages the axon-in/axon-out units
	// have handled across the run (not reset per timestep), mirroring the
	// reference axon unit counters.
	SpikeMessagesIn int64
	PacketsOut      int64

	Neurons []*MappedNeuron

	nextSynapseAddress int

	// SynapseLastUpdated is, per synapse address, the timestep its current
	// was last brought current to. Synapse state only changes on the
	// receive side when a message actually arrives at that address, so
	// gaps of several silent timesteps are common and must be caught up
	// one missed tick at a time before a new spike is integrated (§4.3.2).
	SynapseLastUpdated map[int]int64

	// NextMessageGenerationDelay accumulates the dendrite/soma processing
	// latency a core's axon-out incurs before its next message is sent;
	// zeroed whenever a generated message consumes it, and at the end of
	// the timestep by the placeholder message that carries any remainder
	// (§4.3.1).
	NextMessageGenerationDelay float64

	// Energy accumulates every hardware-unit Update call's reported cost
	// for the current timestep; reset by the driver alongside the mesh
	// hop counters.
	Energy float64
}

// Tile wraps a mesh.Tile with its architecture-description name (used to
// resolve network-description mapping entries) and the cores mapped onto
// it.
type Tile struct {
	*mesh.Tile
	Name  string
	Cores []*Core
}

// Chip is the complete mapped hardware + neuron model for one simulation
// run.
type Chip struct {
	hook.Base

	Mesh        *mesh.Mesh
	Tiles       []*Tile
	Cores       []*Core                  // flat, CoreID = TileID*MaxCoresPerTile+Offset
	NeuronIndex map[string]*MappedNeuron // "group.id" -> neuron
	Registry    *hwunit.Registry

	// IDGen stamps every message generated from this chip with a stable,
	// deterministic identifier (§8 invariant 6); pipeline.ProcessNeurons
	// draws them in core-id order once all cores have been processed.
	IDGen simtime.IDGenerator
}

func toVTimeArray(in [4]float64) [4]simtime.VTimeInSec {
	var out [4]simtime.VTimeInSec
	for i, v := range in {
		out[i] = simtime.VTimeInSec(v)
	}
	return out
}

// New builds an (unmapped) Chip from an architecture description.
func New(desc *arch.ArchitectureDescription, registry *hwunit.Registry) (*Chip, error) {
	m := mesh.New(desc.NoCWidth, desc.NoCHeight, desc.MaxCoresPerTile)
	for i, tc := range desc.Tiles {
		mt := m.Tiles[i]
		mt.HopLatency = toVTimeArray(desc.HopLatency)
		mt.HopEnergy = desc.HopEnergy
		if tc.HopLatencyOverride != nil {
			mt.HopLatency = toVTimeArray(*tc.HopLatencyOverride)
		}
		if tc.HopEnergyOverride != nil {
			mt.HopEnergy = *tc.HopEnergyOverride
		}
	}

	c := &Chip{
		Mesh:        m,
		NeuronIndex: map[string]*MappedNeuron{},
		Registry:    registry,
		IDGen:       simtime.NewSequentialIDGenerator(),
	}

	for i, tc := range desc.Tiles {
		tile := &Tile{Tile: m.Tiles[i], Name: tc.Name}
		for offset, cc := range tc.Cores {
			core, err := newCore(tile.ID, tile.X, tile.Y, offset, desc.MaxCoresPerTile, cc, registry)
			if err != nil {
				return nil, simerr.NewConfigError(fmt.Sprintf("tile[%s].core[%s]", tc.Name, cc.Name), err)
			}
			tile.Cores = append(tile.Cores, core)
			c.Cores = append(c.Cores, core)
		}
		c.Tiles = append(c.Tiles, tile)
	}
	return c, nil
}

func newCore(tileID, tileX, tileY, offset, maxCoresPerTile int, cc arch.CoreConfig, registry *hwunit.Registry) (*Core, error) {
	bufPos, err := ParseBufferPosition(cc.BufferPosition)
	if err != nil {
		return nil, err
	}

	axonInLatency, err := floatAttr(cc.AxonIn.Attributes, "latency_spike_message")
	if err != nil {
		return nil, fmt.Errorf("axon_in: %w", err)
	}
	axonInEnergy, err := floatAttr(cc.AxonIn.Attributes, "energy_spike_message")
	if err != nil {
		return nil, fmt.Errorf("axon_in: %w", err)
	}
	axonOutLatency, err := floatAttr(cc.AxonOut.Attributes, "latency_access")
	if err != nil {
		return nil, fmt.Errorf("axon_out: %w", err)
	}
	axonOutEnergy, err := floatAttr(cc.AxonOut.Attributes, "energy_access")
	if err != nil {
		return nil, fmt.Errorf("axon_out: %w", err)
	}

	core := &Core{
		ID:                 tileID*maxCoresPerTile + offset,
		Offset:             offset,
		TileID:             tileID,
		TileX:              tileX,
		TileY:              tileY,
		BufferPosition:     bufPos,
		AxonIn:             map[int]AxonInEntry{},
		AxonInLatency:      simtime.VTimeInSec(axonInLatency),
		AxonInEnergy:       axonInEnergy,
		AxonOutLatency:     simtime.VTimeInSec(axonOutLatency),
		AxonOutEnergy:      axonOutEnergy,
		SynapseLastUpdated: map[int]int64{},
	}

	if cc.Synapse.Model != "" {
		factory, ok := registry.Synapse(cc.Synapse.Model)
		if !ok {
			return nil, fmt.Errorf("unknown synapse model %q", cc.Synapse.Model)
		}
		core.Synapse = factory()
		if err := core.Synapse.Configure(cc.Synapse.Attributes); err != nil {
			return nil, fmt.Errorf("synapse: %w", err)
		}
	}
	if cc.Dendrite.Model != "" {
		factory, ok := registry.Dendrite(cc.Dendrite.Model)
		if !ok {
			return nil, fmt.Errorf("unknown dendrite model %q", cc.Dendrite.Model)
		}
		core.Dendrite = factory()
		if err := core.Dendrite.Configure(cc.Dendrite.Attributes); err != nil {
			return nil, fmt.Errorf("dendrite: %w", err)
		}
	}
	if cc.Soma.Model != "" {
		factory, ok := registry.Soma(cc.Soma.Model)
		if !ok {
			return nil, fmt.Errorf("unknown soma model %q", cc.Soma.Model)
		}
		core.Soma = factory()
		if err := core.Soma.Configure(cc.Soma.Attributes); err != nil {
			return nil, fmt.Errorf("soma: %w", err)
		}
	}

	return core, nil
}

// floatAttr reads a numeric attribute by name, defaulting to 0 if absent.
// Axon-in/axon-out attributes are parsed here rather than via hwunit's
// model-attribute path since they are plain fields on Core, not a
// pluggable model.
func floatAttr(attrs map[string]interface{}, key string) (float64, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
}

// MapNeuron places a neuron from a network description onto a core,
// assigning it a dendrite/soma address equal to its order of mapping onto
// that core.
func (c *Chip) MapNeuron(n netdescr.NeuronConfig, groupName string, core *Core) (*MappedNeuron, error) {
	if core.Soma == nil {
		return nil, simerr.NewMappingError(fmt.Sprintf("%s.%d", groupName, n.ID),
			fmt.Errorf("core %d has no soma model configured", core.ID))
	}
	address := len(core.Neurons)

	mn := &MappedNeuron{
		ID:           n.ID,
		GroupName:    groupName,
		Core:         core,
		DendriteAddress: address,
		SomaAddress:  address,
		MappingOrder: len(core.Neurons),
		LogSpikes:    n.LogSpikes,
		LogPotential: n.LogPotential,
		ForcedSpikes: n.ForcedSpikes,
	}

	for name, v := range n.SomaAttributes {
		if err := core.Soma.SetAttribute(address, name, v); err != nil {
			return nil, simerr.NewMappingError(fmt.Sprintf("%s.%d", groupName, n.ID), err)
		}
	}

	core.Neurons = append(core.Neurons, mn)
	c.NeuronIndex[fmt.Sprintf("%s.%d", groupName, n.ID)] = mn
	return mn, nil
}

// MapConnection wires a synaptic edge between two already-mapped neurons,
// assigning it the next free synapse address on the destination neuron's
// core.
func (c *Chip) MapConnection(id int, src, dst *MappedNeuron, weight float64, attrs map[string]interface{}) (*MappedConnection, error) {
	core := dst.Core
	if core.Synapse == nil {
		return nil, simerr.NewMappingError(fmt.Sprintf("connection %d", id),
			fmt.Errorf("core %d has no synapse model configured", core.ID))
	}
	address := core.nextSynapseAddress
	core.nextSynapseAddress++
	if err := core.Synapse.SetAttribute(address, "weight", weight); err != nil {
		return nil, simerr.NewMappingError(fmt.Sprintf("connection %d", id), err)
	}
	for name, v := range attrs {
		if err := core.Synapse.SetAttribute(address, name, v); err != nil {
			return nil, simerr.NewMappingError(fmt.Sprintf("connection %d", id), err)
		}
	}

	mc := &MappedConnection{ID: id, PreNeuron: src, PostNeuron: dst, SynapseAddress: address, Weight: weight}
	src.ConnectionsOut = append(src.ConnectionsOut, mc)
	return mc, nil
}

// CreateAxons builds the axon-in/axon-out tables for every connection,
// deduplicating by (source neuron, destination core) so a neuron with many
// post-synaptic targets on the same remote core generates one message
// instead of one per connection, with that single message fanning out to
// every synapse it feeds on arrival (§4.2).
func (c *Chip) CreateAxons() {
	for _, core := range c.Cores {
		for _, n := range core.Neurons {
			axonByDstCore := map[int]int{} // dst core id -> axon-in address on that core
			outByDstCore := map[int]int{}  // dst core id -> index into AxonOutAddresses
			for _, conn := range n.ConnectionsOut {
				dstCore := conn.PostNeuron.Core
				axonInAddr, ok := axonByDstCore[dstCore.ID]
				if !ok {
					axonInAddr = len(dstCore.AxonIn)
					dstCore.AxonIn[axonInAddr] = AxonInEntry{}
					axonByDstCore[dstCore.ID] = axonInAddr
				}
				entry := dstCore.AxonIn[axonInAddr]
				entry.SynapseAddresses = append(entry.SynapseAddresses, conn.SynapseAddress)
				entry.PostNeurons = append(entry.PostNeurons, conn.PostNeuron)
				dstCore.AxonIn[axonInAddr] = entry

				if _, dup := outByDstCore[dstCore.ID]; dup {
					continue
				}
				outByDstCore[dstCore.ID] = len(n.AxonOutAddresses)
				n.AxonOutAddresses = append(n.AxonOutAddresses, AxonOutEntry{
					DstTileID:     dstCore.TileID,
					DstX:          dstCore.TileX,
					DstY:          dstCore.TileY,
					DstCoreID:     dstCore.ID,
					DstCoreOffset: dstCore.Offset,
					DstAxonInAddr: axonInAddr,
				})
			}
		}
	}
}

// BuildFromNetwork maps every neuron and edge in net onto this chip's
// tiles and cores, then builds the axon-in/axon-out tables. It is the glue
// between the two loaders (arch and netdescr) and the mapped hardware
// model.
func (c *Chip) BuildFromNetwork(net *netdescr.NetworkDescription) error {
	tileByName := map[string]*Tile{}
	for _, t := range c.Tiles {
		tileByName[t.Name] = t
	}

	for _, mp := range net.Mapping {
		tile, ok := tileByName[mp.Tile]
		if !ok {
			return simerr.NewMappingError(mp.Tile, fmt.Errorf("no such tile"))
		}
		if mp.CoreOffset < 0 || mp.CoreOffset >= len(tile.Cores) {
			return simerr.NewMappingError(fmt.Sprintf("%s.core[%d]", mp.Tile, mp.CoreOffset),
				fmt.Errorf("core offset out of range for tile with %d cores", len(tile.Cores)))
		}
		neuron, ok := net.Neuron(mp.Group, mp.Neuron)
		if !ok {
			return simerr.NewMappingError(fmt.Sprintf("%s.%d", mp.Group, mp.Neuron), fmt.Errorf("no such neuron"))
		}
		if _, err := c.MapNeuron(neuron, mp.Group, tile.Cores[mp.CoreOffset]); err != nil {
			return err
		}
	}

	for id, e := range net.Edges {
		src, ok := c.NeuronIndex[fmt.Sprintf("%s.%d", e.SrcGroup, e.SrcNeuron)]
		if !ok {
			return simerr.NewMappingError(fmt.Sprintf("%s.%d", e.SrcGroup, e.SrcNeuron), fmt.Errorf("edge source neuron is not mapped"))
		}
		dst, ok := c.NeuronIndex[fmt.Sprintf("%s.%d", e.DstGroup, e.DstNeuron)]
		if !ok {
			return simerr.NewMappingError(fmt.Sprintf("%s.%d", e.DstGroup, e.DstNeuron), fmt.Errorf("edge destination neuron is not mapped"))
		}
		conn, err := c.MapConnection(id, src, dst, e.Weight, e.SynapseAttributes)
		if err != nil {
			return err
		}
		if len(e.DendriteAttributes) > 0 {
			if dst.Core.Dendrite == nil {
				return simerr.NewMappingError(fmt.Sprintf("connection %d", conn.ID),
					fmt.Errorf("edge sets dendrite attributes but destination core has no dendrite model"))
			}
			for name, v := range e.DendriteAttributes {
				if err := dst.Core.Dendrite.SetAttribute(dst.DendriteAddress, name, v); err != nil {
					return simerr.NewMappingError(fmt.Sprintf("connection %d", conn.ID), err)
				}
			}
		}
	}

	c.CreateAxons()
	return nil
}

// Reset clears all per-run hardware state so the same Chip can be re-used
// across multiple sim() calls, matching SpikingChip::reset in the C++
// reference.
func (c *Chip) Reset() {
	for _, core := range c.Cores {
		if core.Synapse != nil {
			core.Synapse.Reset()
		}
		if core.Dendrite != nil {
			core.Dendrite.Reset()
		}
		if core.Soma != nil {
			core.Soma.Reset()
		}
		core.NextMessageGenerationDelay = 0
		core.SpikeMessagesIn = 0
		core.PacketsOut = 0
		core.SynapseLastUpdated = map[int]int64{}
	}
	for _, tile := range c.Tiles {
		tile.ResetCounters()
	}
	for _, n := range c.NeuronIndex {
		n.DendriteLastUpdated = 0
		n.SomaLastUpdated = 0
	}
}

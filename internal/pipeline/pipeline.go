// Package pipeline implements the per-timestep neuron and message
// processing stage (C3): generating messages from neurons whose turn it is
// to run, and applying received messages to a core's axon-in, synapse, and
// (depending on buffer position) dendrite and soma units.
package pipeline

import (
	"sync"

	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/hook"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/mesh"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/simerr"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// ProcessNeurons runs every core's mapped neurons once, producing the
// outgoing messages (and placeholders) generated this timestep, grouped per
// source core as the NoC scheduler expects (§4.3.1). Cores are independent
// of each other within a timestep, so they run on a bounded worker pool;
// each worker owns whole cores, never splits one, so no per-core state needs
// locking and results merge back in core-id order regardless of completion
// order.
func ProcessNeurons(c *chip.Chip, timestep int64) [][]*message.Message {
	queues := make([][]*message.Message, len(c.Cores))

	const maxWorkers = 8
	workers := maxWorkers
	if workers > len(c.Cores) {
		workers = len(c.Cores)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				queues[i] = processCore(c, c.Cores[i], timestep)
			}
		}()
	}
	for i := range c.Cores {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Message IDs are drawn after every worker has finished, in core-id
	// order, so they do not depend on worker scheduling.
	for _, q := range queues {
		for _, m := range q {
			if !m.Placeholder {
				m.ID = c.IDGen.Generate()
			}
		}
	}

	return queues
}

func processCore(c *chip.Chip, core *chip.Core, timestep int64) []*message.Message {
	var queue []*message.Message
	for _, n := range core.Neurons {
		msgs := processNeuron(c, core, n, timestep)
		queue = append(queue, msgs...)
	}
	if core.NextMessageGenerationDelay != 0 {
		queue = append(queue, placeholderMessage(core, timestep))
		core.NextMessageGenerationDelay = 0
	}
	return queue
}

func placeholderMessage(core *chip.Core, timestep int64) *message.Message {
	return &message.Message{
		Timestep:        timestep,
		Placeholder:     true,
		SrcX:            core.TileX,
		SrcY:            core.TileY,
		SrcTileID:       core.TileID,
		SrcCoreID:       core.ID,
		SrcCoreOffset:   core.Offset,
		DstX:            core.TileX,
		DstY:            core.TileY,
		DstTileID:       core.TileID,
		DstCoreID:       core.ID,
		DstCoreOffset:   core.Offset,
		GenerationDelay: simtime.VTimeInSec(core.NextMessageGenerationDelay),
	}
}

// processNeuron runs one neuron's dendrite/soma/axon-out chain, stopping at
// the core's configured buffer position, and returns any spike messages it
// generates (§4.3.1; ports pipeline_process_neuron). Dendrite/soma
// processing latency accumulates into the core's next-message generation
// delay, which axon-out consumes (and adds its own access cost to) when a
// message is actually generated.
func processNeuron(c *chip.Chip, core *chip.Core, n *chip.MappedNeuron, timestep int64) []*message.Message {
	var latency simtime.VTimeInSec
	if core.BufferPosition <= chip.BufferBeforeDendrite {
		l, err := runDendrite(core, n, timestep)
		if err != nil {
			panic(err)
		}
		latency += l
	}
	if core.BufferPosition <= chip.BufferBeforeSoma {
		latency += runSoma(c, core, n, timestep)
	}
	core.NextMessageGenerationDelay += float64(latency)
	if core.BufferPosition <= chip.BufferBeforeAxonOut {
		return runAxonOut(c, core, n, timestep)
	}
	return nil
}

// runDendrite brings n's dendrite current to timestep, catching it up one
// missed tick at a time if it was last updated earlier than timestep-1
// (possible when this core's buffer position defers dendrite to the
// receive side and no message has arrived recently), then integrates any
// newly buffered synapse current.
func runDendrite(core *chip.Core, n *chip.MappedNeuron, timestep int64) (simtime.VTimeInSec, error) {
	if core.Dendrite == nil {
		return 0, nil
	}
	var latency simtime.VTimeInSec
	for n.DendriteLastUpdated < timestep {
		_, energy, l, err := core.Dendrite.Update(n.DendriteAddress, nil)
		if err != nil {
			return 0, err
		}
		core.Energy += energy
		latency += l
		n.DendriteLastUpdated++
	}

	var input *hwunit.DendriteInput
	if n.HasSomaInput {
		input = &hwunit.DendriteInput{Current: n.SomaInputCharge}
	}
	current, energy, l, err := core.Dendrite.Update(n.DendriteAddress, input)
	if err != nil {
		return 0, err
	}
	core.Energy += energy
	latency += l
	n.DendriteLastUpdated++
	n.SomaInputCharge = current
	n.HasSomaInput = true
	return latency, nil
}

// runSoma brings n's soma potential to timestep, catching it up one missed
// tick at a time (possible when this core's buffer position defers soma to
// the receive side), then integrates any newly buffered dendrite current.
func runSoma(c *chip.Chip, core *chip.Core, n *chip.MappedNeuron, timestep int64) simtime.VTimeInSec {
	simerr.Assertf(core.Soma != nil, "core %d has a mapped neuron but no soma model", core.ID)

	var latency simtime.VTimeInSec
	for n.SomaLastUpdated < timestep {
		status, energy, l, err := core.Soma.Update(n.SomaAddress, nil, false)
		if err != nil {
			panic(err)
		}
		core.Energy += energy
		latency += l
		n.Status = status
		n.SomaLastUpdated++
		if status == hwunit.Fired {
			n.SpikeCount++
			n.AxonOutInputSpike = true
			c.InvokeHook(hook.Ctx{Domain: c, Pos: hook.PosNeuronFired, Item: n, Detail: timestep})
		}
	}

	var current *float64
	if n.HasSomaInput {
		current = &n.SomaInputCharge
	}
	forced := n.ForcedSpikes > 0
	if forced {
		n.ForcedSpikes--
	}

	status, energy, l, err := core.Soma.Update(n.SomaAddress, current, forced)
	if err != nil {
		panic(err)
	}
	core.Energy += energy
	latency += l
	n.Status = status
	n.SomaLastUpdated++
	n.HasSomaInput = false
	n.SomaInputCharge = 0
	if status == hwunit.Fired {
		n.SpikeCount++
		n.AxonOutInputSpike = true
		c.InvokeHook(hook.Ctx{Domain: c, Pos: hook.PosNeuronFired, Item: n, Detail: timestep})
	}
	return latency
}

// runAxonOut generates one message per axon-out destination for a fired
// neuron. Each message's generation delay is the core's accumulated
// dendrite/soma processing latency (consumed once, by the first message)
// plus this axon-out unit's own per-message access latency; each message
// also costs the axon-out unit's access energy and counts against its
// packets-out total (§4.3.1).
func runAxonOut(c *chip.Chip, core *chip.Core, n *chip.MappedNeuron, timestep int64) []*message.Message {
	if !n.AxonOutInputSpike {
		return nil
	}
	n.AxonOutInputSpike = false

	msgs := make([]*message.Message, 0, len(n.AxonOutAddresses))
	for _, dst := range n.AxonOutAddresses {
		generationDelay := core.NextMessageGenerationDelay
		core.NextMessageGenerationDelay = 0
		generationDelay += float64(core.AxonOutLatency)
		core.Energy += core.AxonOutEnergy
		core.PacketsOut++

		msgs = append(msgs, &message.Message{
			Timestep:         timestep,
			SrcNeuronID:      n.ID,
			SrcNeuronGroupID: n.GroupName,
			SrcX:             core.TileX,
			SrcY:             core.TileY,
			SrcTileID:        core.TileID,
			SrcCoreID:        core.ID,
			SrcCoreOffset:    core.Offset,
			DstX:             dst.DstX,
			DstY:             dst.DstY,
			DstTileID:        dst.DstTileID,
			DstCoreID:        dst.DstCoreID,
			DstCoreOffset:    dst.DstCoreOffset,
			DstAxonAddress:   dst.DstAxonInAddr,
			SpikeCount:       1,
			GenerationDelay:  simtime.VTimeInSec(generationDelay),
		})
	}
	return msgs
}

// ProcessMessages runs the receive-side fan-out and pipeline for every
// non-placeholder message generated this timestep: it resolves each
// message's mesh hop count and network delay (§4.1), then runs axon-in and
// synapse (and, depending on the destination core's buffer position,
// dendrite and soma) to accumulate its total receive_delay. The NoC
// scheduler (package noc) later uses these precomputed per-message costs,
// not wall-clock state, to place messages on the global timeline (§4.3.2;
// ports pipeline_process_message).
func ProcessMessages(c *chip.Chip, delivered []*message.Message) {
	for _, m := range delivered {
		if m.Placeholder {
			continue
		}
		m.NetworkDelay = c.Mesh.NetworkCost(m.SrcX, m.SrcY, m.DstX, m.DstY)
		m.Hops = mesh.Hops(m.SrcX, m.SrcY, m.DstX, m.DstY)

		core := c.Cores[m.DstCoreID]
		m.ReceiveDelay = processMessage(c, core, m)
	}
}

// processMessage runs the receive-side pipeline for one delivered message:
// axon-in latency/energy is charged once per message, then each synapse it
// fans out to is brought current (catching up any ticks missed since the
// last spike at that address) and integrated, followed by dendrite and/or
// soma when the destination core's buffer position defers them to the
// receive side — each of those also catching up its own missed ticks
// before integrating the new input (§4.3.2, §8 scenario 2 and 4).
func processMessage(c *chip.Chip, core *chip.Core, m *message.Message) simtime.VTimeInSec {
	axon, ok := core.AxonIn[m.DstAxonAddress]
	simerr.Assertf(ok, "message destined for unknown axon-in address %d on core %d", m.DstAxonAddress, core.ID)
	simerr.Assertf(core.Synapse != nil, "core %d received a message but has no synapse model", core.ID)

	core.Energy += core.AxonInEnergy
	core.SpikeMessagesIn++
	receiveDelay := core.AxonInLatency

	for i, synapseAddr := range axon.SynapseAddresses {
		current, latency, err := runSynapse(core, synapseAddr, m.Timestep)
		if err != nil {
			panic(err)
		}
		receiveDelay += latency
		n := axon.PostNeurons[i]

		if core.BufferPosition == chip.BufferBeforeDendrite {
			// Dendrite integration is deferred to the neuron-process
			// phase; hand it the raw synapse current.
			n.SomaInputCharge += current
			n.HasSomaInput = true
			continue
		}

		// The split point is past the dendrite, so integrate it now, at
		// receive time, catching up any ticks this address missed first.
		simerr.Assertf(core.Dendrite != nil, "core %d received a message but has no dendrite model", core.ID)
		n.SomaInputCharge += current
		n.HasSomaInput = true
		dendriteLatency, err := runDendrite(core, n, m.Timestep)
		if err != nil {
			panic(err)
		}
		receiveDelay += dendriteLatency

		if core.BufferPosition == chip.BufferBeforeSoma {
			continue
		}

		// The split point is past soma too: run it now, on the receive
		// side (also catching up missed ticks), rather than deferring
		// to neuron-process.
		simerr.Assertf(core.BufferPosition == chip.BufferBeforeAxonOut, "unexpected buffer position %v", core.BufferPosition)
		receiveDelay += runSoma(c, core, n, m.Timestep)
	}
	return receiveDelay
}

// runSynapse brings address's current up to ts, catching it up one missed
// tick at a time since the last spike delivered there, then integrates the
// new spike (§4.3.2, ports pipeline_process_synapse's last_updated loop).
func runSynapse(core *chip.Core, address int, ts int64) (float64, simtime.VTimeInSec, error) {
	var latency simtime.VTimeInSec
	for core.SynapseLastUpdated[address] < ts {
		_, energy, l, err := core.Synapse.Update(address, false)
		if err != nil {
			return 0, 0, err
		}
		core.Energy += energy
		latency += l
		core.SynapseLastUpdated[address]++
	}

	current, energy, l, err := core.Synapse.Update(address, true)
	if err != nil {
		return 0, 0, err
	}
	core.Energy += energy
	latency += l
	core.SynapseLastUpdated[address]++
	return current, latency, nil
}

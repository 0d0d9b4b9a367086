// Package driver implements the timestep driver (C6): it resets C1/C2
// per-timestep counters, walks the neuron/message pipeline (C3), hands the
// resulting per-core message queues to the NoC scheduler (C4+C5), then
// reduces counters into energy and writes the enabled traces.
package driver

import (
	"log"
	"time"

	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/hook"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/noc"
	"github.com/SLAM-Lab/sana-fe/internal/pipeline"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
	"github.com/SLAM-Lab/sana-fe/internal/tracewriter"
)

// Config holds the parameters of one sim() call.
type Config struct {
	Timesteps  int64
	BufferSize int
	// Heartbeat logs progress every N timesteps; 0 disables heartbeat
	// logging entirely.
	Heartbeat int64
}

// Summary is the run's aggregate result, mirroring the key-value summary
// file's fields.
type Summary struct {
	Energy            float64
	SimTime           float64
	TotalSpikes       int64
	TotalMessages     int64
	TotalNeuronsFired int64
	WallTime          float64
	Timesteps         int64
}

// Driver owns one chip and NoC scheduler across a run of sim(timesteps).
type Driver struct {
	hook.Base

	chip      *chip.Chip
	scheduler *noc.Scheduler
	traces    *tracewriter.Writer
}

// New builds a Driver over an already-mapped chip.
func New(c *chip.Chip, traces *tracewriter.Writer, bufferSize int) *Driver {
	return &Driver{
		chip:      c,
		scheduler: noc.NewScheduler(c.Mesh, noc.Config{BufferSize: bufferSize}),
		traces:    traces,
	}
}

// Run advances the chip through cfg.Timesteps discrete steps, writing
// every enabled trace, and returns the run summary (§4, §6).
func (d *Driver) Run(cfg Config) (Summary, error) {
	start := time.Now()

	var summary Summary
	for ts := int64(0); ts < cfg.Timesteps; ts++ {
		d.InvokeHook(hook.Ctx{Domain: d, Pos: hook.PosBeforeTimestep, Detail: ts})

		d.resetTimestepCounters()

		queues := pipeline.ProcessNeurons(d.chip, ts)

		var delivered []*message.Message
		for _, q := range queues {
			delivered = append(delivered, q...)
		}
		pipeline.ProcessMessages(d.chip, delivered)

		simTime, err := d.scheduler.ScheduleMessages(queues)
		if err != nil {
			return summary, err
		}

		neuronsFired, packetsSent, _, energy := d.reduceTimestep(ts, delivered, simTime)
		summary.SimTime += float64(simTime)
		summary.TotalNeuronsFired += neuronsFired
		summary.TotalSpikes += neuronsFired
		summary.TotalMessages += packetsSent
		summary.Energy += energy

		d.InvokeHook(hook.Ctx{Domain: d, Pos: hook.PosAfterTimestep, Detail: ts})

		if cfg.Heartbeat > 0 && ts%cfg.Heartbeat == 0 {
			log.Printf("timestep %d/%d: sim_time=%.9fs", ts, cfg.Timesteps, float64(simTime))
		}
	}

	summary.WallTime = time.Since(start).Seconds()
	summary.Timesteps = cfg.Timesteps

	if d.traces != nil {
		if err := d.traces.WriteSummary(summary.WallTime, cfg.Timesteps); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// resetTimestepCounters zeroes the per-timestep counters owned by C1/C2
// (mesh hop counters, core energy accumulator, neuron status and spike
// count) that the driver reduces at the end of the timestep, per §5's
// shared-resource rules.
func (d *Driver) resetTimestepCounters() {
	for _, tile := range d.chip.Tiles {
		tile.ResetCounters()
	}
	for _, core := range d.chip.Cores {
		core.Energy = 0
		for _, n := range core.Neurons {
			n.Status = hwunit.Idle
			n.SpikeCount = 0
		}
	}
}

// reduceTimestep reduces this timestep's per-core/per-tile counters into
// the aggregate numbers the run summary and performance trace report, and
// writes every enabled trace row for the timestep.
func (d *Driver) reduceTimestep(ts int64, delivered []*message.Message, simTime simtime.VTimeInSec) (neuronsFired, packetsSent, totalHops int64, energy float64) {
	for _, core := range d.chip.Cores {
		energy += core.Energy
		for _, n := range core.Neurons {
			if n.Status == hwunit.Fired {
				neuronsFired++
				if n.LogSpikes && d.traces != nil {
					d.traces.WriteSpike(n, ts)
				}
			}
		}
	}
	for _, tile := range d.chip.Tiles {
		totalHops += tile.TotalHops
		energy += tile.Energy()
	}

	for _, m := range delivered {
		if m.Placeholder {
			continue
		}
		packetsSent++
		if d.traces != nil {
			d.traces.WriteMessage(m)
		}
	}

	if d.traces == nil {
		return neuronsFired, packetsSent, totalHops, energy
	}

	potentials := make([]float64, 0, len(d.traces.ProbeNeurons()))
	for _, n := range d.traces.ProbeNeurons() {
		potentials = append(potentials, n.Core.Soma.GetPotential(n.SomaAddress))
	}
	d.traces.WritePotential(ts, potentials)
	d.traces.WritePerformance(simTime, neuronsFired, packetsSent, totalHops, energy)

	return neuronsFired, packetsSent, totalHops, energy
}

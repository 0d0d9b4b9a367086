// Package tracewriter writes the four CSV trace files and the summary
// file described in §6: spikes, membrane potential, messages, and
// per-timestep performance, plus a run summary written once at exit.
// Buffering and flush-on-exit follow the same shape as akita's
// tracing.CSVTracerBackend.
package tracewriter

import (
	"bufio"
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// Config selects which traces to enable and where to write them.
type Config struct {
	OutDir      string
	Spikes      bool
	Potential   bool
	Messages    bool
	Performance bool
}

// Writer owns the open trace files for one run. A disabled trace's field
// is nil and nothing is written to it; WriteMessage and WritePerformance
// still update the summary totals. A write error disables further writes
// to that file but never stops the simulation (§7).
type Writer struct {
	outDir      string
	spikes      *csvFile
	potential   *csvFile
	messages    *csvFile
	performance *csvFile

	potentialNeurons []*chip.MappedNeuron // mapping order, fixes the potential trace's column order

	energy            float64
	simTime           simtime.VTimeInSec
	totalSpikes       int64
	totalMessages     int64
	totalNeuronsFired int64
}

// Open creates the enabled trace files under cfg.OutDir and registers Close
// with atexit, so buffered rows are also flushed when the program ends
// through atexit.Exit.
// probeNeurons is every neuron with log_potential set, in mapping order,
// which fixes the potential trace's column order.
func Open(cfg Config, probeNeurons []*chip.MappedNeuron) (*Writer, error) {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, err
	}

	w := &Writer{outDir: cfg.OutDir, potentialNeurons: probeNeurons}

	var err error
	if cfg.Spikes {
		if w.spikes, err = newCSVFile(cfg.OutDir+"/spikes.csv", "gid.nid,timestep\n"); err != nil {
			return nil, err
		}
	}
	if cfg.Potential {
		header := "timestep"
		for _, n := range probeNeurons {
			header += fmt.Sprintf(",%s.%d", n.GroupName, n.ID)
		}
		header += "\n"
		if w.potential, err = newCSVFile(cfg.OutDir+"/potential.csv", header); err != nil {
			return nil, err
		}
	}
	if cfg.Messages {
		if w.messages, err = newCSVFile(cfg.OutDir+"/messages.csv",
			"timestep,src_group.src_nid,src_tile.src_core,dest_tile.dest_core,hops,spikes,generation_delay,network_delay,receive_delay,blocked_delay,sent_timestamp,processed_timestamp\n"); err != nil {
			return nil, err
		}
	}
	if cfg.Performance {
		if w.performance, err = newCSVFile(cfg.OutDir+"/performance.csv",
			"sim_time,neurons_fired,packets_sent,total_hops,energy\n"); err != nil {
			return nil, err
		}
	}

	atexit.Register(w.Close)
	return w, nil
}

// ProbeNeurons returns the neurons whose potential this run traces, in the
// potential trace's column order.
func (w *Writer) ProbeNeurons() []*chip.MappedNeuron {
	return w.potentialNeurons
}

// WriteSpike records one fired neuron with log_spikes set.
func (w *Writer) WriteSpike(n *chip.MappedNeuron, timestep int64) {
	if w.spikes == nil {
		return
	}
	w.spikes.writef("%s.%d,%d\n", n.GroupName, n.ID, timestep)
	w.totalSpikes++
}

// WritePotential records one row of the current membrane potential of
// every probed neuron, in the column order fixed at Open.
func (w *Writer) WritePotential(timestep int64, potentials []float64) {
	if w.potential == nil {
		return
	}
	row := fmt.Sprintf("%d", timestep)
	for _, p := range potentials {
		row += fmt.Sprintf(",%.10f", p)
	}
	w.potential.writef("%s\n", row)
}

// WriteMessage records one non-placeholder message.
func (w *Writer) WriteMessage(m *message.Message) {
	w.totalMessages++
	if w.messages == nil {
		return
	}
	w.messages.writef("%d,%s.%d,%d.%d,%d.%d,%d,%d,%.10f,%.10f,%.10f,%.10f,%.10f,%.10f\n",
		m.Timestep, m.SrcNeuronGroupID, m.SrcNeuronID,
		m.SrcTileID, m.SrcCoreID, m.DstTileID, m.DstCoreID,
		m.Hops, m.SpikeCount,
		float64(m.GenerationDelay), float64(m.NetworkDelay), float64(m.ReceiveDelay), float64(m.BlockedDelay),
		float64(m.SentTimestamp), float64(m.ProcessedTimestamp))
}

// WritePerformance records one timestep's aggregate cost and updates the
// running summary totals.
func (w *Writer) WritePerformance(simTime simtime.VTimeInSec, neuronsFired int64, packetsSent int64, totalHops int64, energy float64) {
	w.simTime += simTime
	w.totalNeuronsFired += neuronsFired
	w.energy += energy

	if w.performance == nil {
		return
	}
	w.performance.writef("%.10f,%d,%d,%d,%.10f\n", float64(simTime), neuronsFired, packetsSent, totalHops, energy)
}

// WriteSummary writes the run summary key-value file.
func (w *Writer) WriteSummary(wallTime float64, timesteps int64) error {
	f, err := os.Create(w.outDir + "/summary.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	fmt.Fprintf(buf, "energy,%.10f\n", w.energy)
	fmt.Fprintf(buf, "sim_time,%.10f\n", float64(w.simTime))
	fmt.Fprintf(buf, "total_spikes,%d\n", w.totalSpikes)
	fmt.Fprintf(buf, "total_messages,%d\n", w.totalMessages)
	fmt.Fprintf(buf, "total_neurons_fired,%d\n", w.totalNeuronsFired)
	fmt.Fprintf(buf, "wall_time,%.10f\n", wallTime)
	fmt.Fprintf(buf, "timesteps,%d\n", timesteps)
	return buf.Flush()
}

// Close flushes and closes every open trace file. Safe to call more than
// once (e.g. once explicitly and once via the atexit hook).
func (w *Writer) Close() {
	for _, f := range []*csvFile{w.spikes, w.potential, w.messages, w.performance} {
		if f != nil {
			f.close()
		}
	}
}

// csvFile is one buffered, append-only trace file; a write error disables
// further writes to it instead of panicking (§7).
type csvFile struct {
	file   *os.File
	buf    *bufio.Writer
	broken bool
}

func newCSVFile(path, header string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c := &csvFile{file: f, buf: bufio.NewWriter(f)}
	c.writef("%s", header)
	return c, nil
}

func (c *csvFile) writef(format string, args ...interface{}) {
	if c == nil || c.broken {
		return
	}
	if _, err := fmt.Fprintf(c.buf, format, args...); err != nil {
		c.broken = true
	}
}

func (c *csvFile) close() {
	if c == nil {
		return
	}
	c.buf.Flush()
	c.file.Close()
}

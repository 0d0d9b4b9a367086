// Command sanafe runs a cycle-level simulation of a spiking neuromorphic
// chip over an architecture description and a network description (§6).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/SLAM-Lab/sana-fe/internal/arch"
	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/driver"
	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
	"github.com/SLAM-Lab/sana-fe/internal/netdescr"
	"github.com/SLAM-Lab/sana-fe/internal/simerr"
	"github.com/SLAM-Lab/sana-fe/internal/tracewriter"
)

var (
	flagSpikes      bool
	flagPotential   bool
	flagMessages    bool
	flagPerformance bool
	flagOutDir      string
	flagHeartbeat   int64
	flagBufferSize  int
)

func main() {
	root := &cobra.Command{
		Use:   "sanafe arch_file net_file timesteps",
		Short: "Run a cycle-level neuromorphic chip simulation",
		Args:  cobra.ExactArgs(3),
		RunE:  run,
	}

	root.Flags().BoolVar(&flagSpikes, "spikes", false, "write the spike trace")
	root.Flags().BoolVar(&flagPotential, "potential", false, "write the membrane potential trace")
	root.Flags().BoolVar(&flagMessages, "messages", false, "write the message trace")
	root.Flags().BoolVar(&flagPerformance, "performance", false, "write the per-timestep performance trace")
	root.Flags().StringVar(&flagOutDir, "out", ".", "directory to write trace and summary files to")
	root.Flags().Int64Var(&flagHeartbeat, "heartbeat", 0, "log progress every N timesteps (0 disables)")
	root.Flags().IntVar(&flagBufferSize, "buffer-size", 1, "per-link buffer depth used by the NoC congestion threshold")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	archFile, netFile, timestepsArg := args[0], args[1], args[2]

	timesteps, err := strconv.ParseInt(timestepsArg, 10, 64)
	if err != nil {
		return simerr.NewConfigError("timesteps", err)
	}

	archDesc, err := arch.Load(archFile)
	if err != nil {
		return err
	}

	registry := hwunit.NewRegistry()
	if err := loadPlugins(registry, archDesc); err != nil {
		return err
	}

	c, err := chip.New(archDesc, registry)
	if err != nil {
		return err
	}

	netDesc, err := netdescr.Load(netFile)
	if err != nil {
		return err
	}

	if err := c.BuildFromNetwork(netDesc); err != nil {
		return err
	}

	traces, err := tracewriter.Open(tracewriter.Config{
		OutDir:      flagOutDir,
		Spikes:      flagSpikes,
		Potential:   flagPotential,
		Messages:    flagMessages,
		Performance: flagPerformance,
	}, probeNeurons(c))
	if err != nil {
		return err
	}
	defer traces.Close()

	d := driver.New(c, traces, flagBufferSize)
	summary, err := d.Run(driver.Config{
		Timesteps:  timesteps,
		BufferSize: flagBufferSize,
		Heartbeat:  flagHeartbeat,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sim_time=%.9fs energy=%.9fJ neurons_fired=%d messages=%d wall_time=%.3fs\n",
		summary.SimTime, summary.Energy, summary.TotalNeuronsFired, summary.TotalMessages, summary.WallTime)
	return nil
}

// loadPlugins resolves every unit configuration naming a plugin path,
// registering it under its model name before any core tries to look that
// model up by name.
func loadPlugins(registry *hwunit.Registry, desc *arch.ArchitectureDescription) error {
	seen := map[string]bool{}
	for _, tile := range desc.Tiles {
		for _, core := range tile.Cores {
			for _, u := range []arch.UnitConfig{core.Synapse, core.Dendrite, core.Soma} {
				if u.PluginPath == "" || seen[u.Model] {
					continue
				}
				if err := registry.LoadPlugin(u.Model, u.PluginPath); err != nil {
					return err
				}
				seen[u.Model] = true
			}
		}
	}
	return nil
}

// probeNeurons collects every neuron with log_potential set, in mapping
// order, fixing the potential trace's column order.
func probeNeurons(c *chip.Chip) []*chip.MappedNeuron {
	var neurons []*chip.MappedNeuron
	for _, core := range c.Cores {
		for _, n := range core.Neurons {
			if n.LogPotential {
				neurons = append(neurons, n)
			}
		}
	}
	return neurons
}

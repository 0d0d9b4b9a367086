package hwunit

import (
	"fmt"

	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// AccumulatorDendrite is the built-in single-compartment dendrite: incoming
// current is summed into one running charge per address, which leaks
// geometrically every timestep whether or not new current arrives.
type AccumulatorDendrite struct {
	energyPerUpdate  float64
	latencyPerUpdate simtime.VTimeInSec
	leakDecay        float64 // 1.0 == no leak
	charge           map[int]float64
}

// NewAccumulatorDendrite constructs an unconfigured AccumulatorDendrite.
func NewAccumulatorDendrite() *AccumulatorDendrite {
	return &AccumulatorDendrite{leakDecay: 1.0, charge: map[int]float64{}}
}

func (d *AccumulatorDendrite) Configure(attrs map[string]ModelParam) error {
	if v, ok := attrs["energy_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("energy_update: %w", err)
		}
		d.energyPerUpdate = f
	}
	if v, ok := attrs["latency_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("latency_update: %w", err)
		}
		d.latencyPerUpdate = simtime.VTimeInSec(f)
	}
	if v, ok := attrs["leak_decay"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("leak_decay: %w", err)
		}
		d.leakDecay = f
	}
	return nil
}

func (d *AccumulatorDendrite) SetAttribute(address int, name string, param ModelParam) error {
	switch name {
	case "leak_decay":
		f, err := toFloat(param)
		if err != nil {
			return err
		}
		d.leakDecay = f
		return nil
	default:
		return fmt.Errorf("accumulator dendrite: unknown attribute %q", name)
	}
}

func (d *AccumulatorDendrite) Update(address int, input *DendriteInput) (float64, float64, simtime.VTimeInSec, error) {
	charge := d.charge[address] * d.leakDecay
	if input != nil {
		charge += input.Current
	}
	d.charge[address] = charge
	return charge, d.energyPerUpdate, d.latencyPerUpdate, nil
}

func (d *AccumulatorDendrite) Reset() {
	d.charge = map[int]float64{}
}

// tapState is one compartment's 1D cable of voltage taps.
type tapState struct {
	voltages []float64
}

// MultiTapDendrite is the built-in 1D multi-compartment dendrite: current
// enters at tap 0 and diffuses along a chain of taps toward the soma,
// each tap decaying at its own time constant and coupling to its neighbor
// at its own space constant.
type MultiTapDendrite struct {
	energyPerUpdate  float64
	latencyPerUpdate simtime.VTimeInSec
	timeConstants    []float64
	spaceConstants   []float64
	taps             map[int]*tapState
}

// NewMultiTapDendrite constructs an unconfigured MultiTapDendrite.
func NewMultiTapDendrite() *MultiTapDendrite {
	return &MultiTapDendrite{taps: map[int]*tapState{}}
}

func (d *MultiTapDendrite) Configure(attrs map[string]ModelParam) error {
	if v, ok := attrs["energy_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("energy_update: %w", err)
		}
		d.energyPerUpdate = f
	}
	if v, ok := attrs["latency_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("latency_update: %w", err)
		}
		d.latencyPerUpdate = simtime.VTimeInSec(f)
	}
	if v, ok := attrs["time_constants"]; ok {
		tc, err := toFloatSlice(v)
		if err != nil {
			return fmt.Errorf("time_constants: %w", err)
		}
		d.timeConstants = tc
	}
	if v, ok := attrs["space_constants"]; ok {
		sc, err := toFloatSlice(v)
		if err != nil {
			return fmt.Errorf("space_constants: %w", err)
		}
		d.spaceConstants = sc
	}
	return nil
}

func (d *MultiTapDendrite) SetAttribute(address int, name string, param ModelParam) error {
	return fmt.Errorf("multi-tap dendrite: unknown attribute %q", name)
}

func (d *MultiTapDendrite) tapsFor(address int) *tapState {
	t, ok := d.taps[address]
	if !ok {
		t = &tapState{voltages: make([]float64, len(d.timeConstants))}
		d.taps[address] = t
	}
	return t
}

func (d *MultiTapDendrite) Update(address int, input *DendriteInput) (float64, float64, simtime.VTimeInSec, error) {
	t := d.tapsFor(address)
	n := len(t.voltages)
	if n == 0 {
		return 0, d.energyPerUpdate, d.latencyPerUpdate, nil
	}

	next := make([]float64, n)
	for i := 0; i < n; i++ {
		decay := 1.0
		if i < len(d.timeConstants) {
			decay = d.timeConstants[i]
		}
		next[i] = t.voltages[i] * decay
	}
	for i := 0; i < n-1; i++ {
		coupling := 0.0
		if i < len(d.spaceConstants) {
			coupling = d.spaceConstants[i]
		}
		flow := coupling * (t.voltages[i] - t.voltages[i+1])
		next[i] -= flow
		next[i+1] += flow
	}
	if input != nil {
		next[0] += input.Current
	}
	t.voltages = next

	return t.voltages[n-1], d.energyPerUpdate, d.latencyPerUpdate, nil
}

func (d *MultiTapDendrite) Reset() {
	d.taps = map[int]*tapState{}
}

func toFloatSlice(v ModelParam) ([]float64, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]float64, len(items))
	for i, it := range items {
		f, err := toFloat(it)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

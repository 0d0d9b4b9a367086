package hwunit

import (
	"fmt"
	"math/rand"

	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// lifCompartment is one compartment's state under the Loihi-style LIF model.
type lifCompartment struct {
	potential float64
}

// LIFSoma is the built-in Loihi-style leaky-integrate-and-fire soma: a
// compartment's potential decays geometrically, accumulates bias and input
// current every timestep, and fires (with a hard or soft reset) when it
// crosses a threshold; an optional reverse threshold resets symmetrically
// on the way down.
type LIFSoma struct {
	leakDecay        float64
	bias             float64
	threshold        float64
	resetMode        string // "hard" or "soft"
	reset            float64
	reverseThreshold *float64
	reverseResetMode string
	reverseReset     float64

	energyUpdate  float64
	energySpike   float64
	latencyUpdate simtime.VTimeInSec
	latencySpike  simtime.VTimeInSec

	compartments map[int]*lifCompartment
}

// NewLIFSoma constructs an unconfigured LIFSoma.
func NewLIFSoma() *LIFSoma {
	return &LIFSoma{leakDecay: 1.0, resetMode: "hard", compartments: map[int]*lifCompartment{}}
}

func (s *LIFSoma) Configure(attrs map[string]ModelParam) error {
	floatFields := map[string]*float64{
		"leak_decay": &s.leakDecay,
		"bias":       &s.bias,
		"threshold":  &s.threshold,
		"reset":      &s.reset,
	}
	for name, dst := range floatFields {
		if v, ok := attrs[name]; ok {
			f, err := toFloat(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
	}
	if v, ok := attrs["reset_mode"]; ok {
		m, ok := v.(string)
		if !ok {
			return fmt.Errorf("reset_mode: expected a string, got %T", v)
		}
		s.resetMode = m
	}
	if v, ok := attrs["reverse_threshold"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("reverse_threshold: %w", err)
		}
		s.reverseThreshold = &f
	}
	if v, ok := attrs["reverse_reset_mode"]; ok {
		m, ok := v.(string)
		if !ok {
			return fmt.Errorf("reverse_reset_mode: expected a string, got %T", v)
		}
		s.reverseResetMode = m
	}
	if v, ok := attrs["reverse_reset"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("reverse_reset: %w", err)
		}
		s.reverseReset = f
	}
	if v, ok := attrs["energy_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.energyUpdate = f
	}
	if v, ok := attrs["energy_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.energySpike = f
	}
	if v, ok := attrs["latency_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.latencyUpdate = simtime.VTimeInSec(f)
	}
	if v, ok := attrs["latency_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.latencySpike = simtime.VTimeInSec(f)
	}
	return nil
}

func (s *LIFSoma) SetAttribute(address int, name string, param ModelParam) error {
	c := s.compartmentFor(address)
	switch name {
	case "potential":
		f, err := toFloat(param)
		if err != nil {
			return err
		}
		c.potential = f
		return nil
	default:
		return fmt.Errorf("lif soma: unknown attribute %q", name)
	}
}

func (s *LIFSoma) compartmentFor(address int) *lifCompartment {
	c, ok := s.compartments[address]
	if !ok {
		c = &lifCompartment{}
		s.compartments[address] = c
	}
	return c
}

func (s *LIFSoma) Update(address int, current *float64, forcedSpike bool) (NeuronStatus, float64, simtime.VTimeInSec, error) {
	c := s.compartmentFor(address)
	c.potential = c.potential*s.leakDecay + s.bias
	if current != nil {
		c.potential += *current
	}

	energy, latency := s.energyUpdate, s.latencyUpdate
	status := Updated

	switch {
	case forcedSpike || c.potential >= s.threshold:
		status = Fired
		energy += s.energySpike
		latency += s.latencySpike
		if s.resetMode == "soft" {
			c.potential -= s.threshold
		} else {
			c.potential = s.reset
		}
	case s.reverseThreshold != nil && c.potential <= *s.reverseThreshold:
		if s.reverseResetMode == "soft" {
			c.potential -= *s.reverseThreshold
		} else {
			c.potential = s.reverseReset
		}
	}
	return status, energy, latency, nil
}

func (s *LIFSoma) GetPotential(address int) float64 {
	return s.compartmentFor(address).potential
}

func (s *LIFSoma) Reset() {
	s.compartments = map[int]*lifCompartment{}
}

// trueNorthCompartment is one compartment's state under the TrueNorth model.
type trueNorthCompartment struct {
	potential float64
}

// TrueNorthSoma is the built-in TrueNorth-style soma: the potential leaks
// toward zero by a fixed step every timestep (rather than decaying
// geometrically) and resets to zero on firing.
type TrueNorthSoma struct {
	leakTowardsZero float64
	threshold       float64
	energyUpdate    float64
	energySpike     float64
	latencyUpdate   simtime.VTimeInSec
	latencySpike    simtime.VTimeInSec
	compartments    map[int]*trueNorthCompartment
}

// NewTrueNorthSoma constructs an unconfigured TrueNorthSoma.
func NewTrueNorthSoma() *TrueNorthSoma {
	return &TrueNorthSoma{compartments: map[int]*trueNorthCompartment{}}
}

func (s *TrueNorthSoma) Configure(attrs map[string]ModelParam) error {
	if v, ok := attrs["leak_towards_zero"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("leak_towards_zero: %w", err)
		}
		s.leakTowardsZero = f
	}
	if v, ok := attrs["threshold"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("threshold: %w", err)
		}
		s.threshold = f
	}
	if v, ok := attrs["energy_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.energyUpdate = f
	}
	if v, ok := attrs["energy_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.energySpike = f
	}
	if v, ok := attrs["latency_update"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.latencyUpdate = simtime.VTimeInSec(f)
	}
	if v, ok := attrs["latency_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		s.latencySpike = simtime.VTimeInSec(f)
	}
	return nil
}

func (s *TrueNorthSoma) SetAttribute(address int, name string, param ModelParam) error {
	return fmt.Errorf("true north soma: unknown attribute %q", name)
}

func (s *TrueNorthSoma) compartmentFor(address int) *trueNorthCompartment {
	c, ok := s.compartments[address]
	if !ok {
		c = &trueNorthCompartment{}
		s.compartments[address] = c
	}
	return c
}

func (s *TrueNorthSoma) Update(address int, current *float64, forcedSpike bool) (NeuronStatus, float64, simtime.VTimeInSec, error) {
	c := s.compartmentFor(address)
	switch {
	case c.potential > 0:
		c.potential -= s.leakTowardsZero
		if c.potential < 0 {
			c.potential = 0
		}
	case c.potential < 0:
		c.potential += s.leakTowardsZero
		if c.potential > 0 {
			c.potential = 0
		}
	}
	if current != nil {
		c.potential += *current
	}

	energy, latency := s.energyUpdate, s.latencyUpdate
	status := Updated
	if forcedSpike || c.potential >= s.threshold {
		status = Fired
		energy += s.energySpike
		latency += s.latencySpike
		c.potential = 0
	}
	return status, energy, latency, nil
}

func (s *TrueNorthSoma) GetPotential(address int) float64 {
	return s.compartmentFor(address).potential
}

func (s *TrueNorthSoma) Reset() {
	s.compartments = map[int]*trueNorthCompartment{}
}

// InputSoma is the built-in stimulus model: it never integrates current,
// instead firing either on a fixed per-timestep sequence or as a Poisson
// process at a configured rate. It stands in for an off-chip spike source
// mapped onto a core like any other neuron.
type InputSoma struct {
	rate     float64
	sequence map[int][]bool
	step     map[int]int
	rng      *rand.Rand
}

// NewInputSoma constructs an unconfigured InputSoma. seed fixes the Poisson
// draw sequence so runs are reproducible (§8 invariant 6).
func NewInputSoma(seed int64) *InputSoma {
	return &InputSoma{
		sequence: map[int][]bool{},
		step:     map[int]int{},
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *InputSoma) Configure(attrs map[string]ModelParam) error {
	if v, ok := attrs["rate"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		s.rate = f
	}
	return nil
}

func (s *InputSoma) SetAttribute(address int, name string, param ModelParam) error {
	switch name {
	case "rate":
		f, err := toFloat(param)
		if err != nil {
			return err
		}
		s.rate = f
		return nil
	case "sequence":
		items, ok := param.([]interface{})
		if !ok {
			return fmt.Errorf("sequence: expected a list, got %T", param)
		}
		seq := make([]bool, len(items))
		for i, it := range items {
			b, err := toBool(it)
			if err != nil {
				return fmt.Errorf("sequence[%d]: %w", i, err)
			}
			seq[i] = b
		}
		s.sequence[address] = seq
		return nil
	default:
		return fmt.Errorf("input soma: unknown attribute %q", name)
	}
}

func (s *InputSoma) Update(address int, current *float64, forcedSpike bool) (NeuronStatus, float64, simtime.VTimeInSec, error) {
	if seq, ok := s.sequence[address]; ok {
		i := s.step[address]
		s.step[address] = i + 1
		if i >= len(seq) {
			return Idle, 0, 0, nil
		}
		if seq[i] {
			return Fired, 0, 0, nil
		}
		return Idle, 0, 0, nil
	}
	if forcedSpike || s.rng.Float64() < s.rate {
		return Fired, 0, 0, nil
	}
	return Idle, 0, 0, nil
}

func (s *InputSoma) GetPotential(address int) float64 { return 0 }

func (s *InputSoma) Reset() {
	s.step = map[int]int{}
}

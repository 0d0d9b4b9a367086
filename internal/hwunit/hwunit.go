// Package hwunit implements the pluggable per-compartment hardware models
// (synapse, dendrite, soma) that the pipeline drives every timestep.
//
// Axon-in and axon-out are plain, non-polymorphic counters owned directly by
// package chip; only synapse, dendrite, and soma vary by model, so only
// those three get an interface, a set of built-in implementations, and a
// plugin-loaded factory registry (plugin.go).
package hwunit

import "github.com/SLAM-Lab/sana-fe/internal/simtime"

// ModelParam is one attribute value read from an architecture description;
// concrete models type-assert it to the shape they expect.
type ModelParam = interface{}

// NeuronStatus is the outcome of one soma update.
type NeuronStatus int

const (
	Idle NeuronStatus = iota
	Updated
	Fired
)

func (s NeuronStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Updated:
		return "updated"
	case Fired:
		return "fired"
	default:
		return "unknown"
	}
}

// SynapseUnit integrates one synaptic weight update per call and reports
// the resulting current contribution.
type SynapseUnit interface {
	// Configure applies the model's static configuration, read once from
	// the architecture description.
	Configure(attrs map[string]ModelParam) error
	// SetAttribute sets one per-address (per-connection) parameter, such
	// as a synaptic weight, read from the network description.
	SetAttribute(address int, name string, param ModelParam) error
	// Update advances address by one timestep. If apply is false no new
	// spike is being delivered; the call still applies any time-constant
	// decay the model defines.
	Update(address int, apply bool) (current float64, energy float64, latency simtime.VTimeInSec, err error)
	Reset()
}

// DendriteInput is the synaptic current buffered for one neuron's dendrite
// during a timestep, built up by zero or more synapse updates.
type DendriteInput struct {
	Current float64
}

// DendriteUnit integrates buffered synaptic current into one or more
// compartments and reports the current delivered to the soma.
type DendriteUnit interface {
	Configure(attrs map[string]ModelParam) error
	SetAttribute(address int, name string, param ModelParam) error
	// Update advances address by one timestep, folding in input if
	// non-nil (a nil input still applies decay-only steps).
	Update(address int, input *DendriteInput) (current float64, energy float64, latency simtime.VTimeInSec, err error)
	Reset()
}

// SomaUnit integrates a compartment's membrane potential and reports
// whether it fired.
type SomaUnit interface {
	Configure(attrs map[string]ModelParam) error
	SetAttribute(address int, name string, param ModelParam) error
	// Update advances address by one timestep. current is nil when there
	// is no new input this step (still applies leak). forcedSpike
	// overrides the model's own threshold test, for input/stimulus soma
	// models.
	Update(address int, current *float64, forcedSpike bool) (status NeuronStatus, energy float64, latency simtime.VTimeInSec, err error)
	GetPotential(address int) float64
	Reset()
}

package hwunit

import (
	"plugin"

	"github.com/google/uuid"

	"github.com/SLAM-Lab/sana-fe/internal/simerr"
)

// SynapseFactory, DendriteFactory, and SomaFactory construct a fresh,
// unconfigured model instance; a chip calls one per core that names the
// model, then calls Configure on the result.
type (
	SynapseFactory  func() SynapseUnit
	DendriteFactory func() DendriteUnit
	SomaFactory     func() SomaUnit
)

// Registry resolves a model name (from an architecture description) to a
// factory, either a built-in listed below or one loaded from a user plugin.
type Registry struct {
	synapses  map[string]SynapseFactory
	dendrites map[string]DendriteFactory
	somas     map[string]SomaFactory

	// loaded records a freshly generated handle for every plugin path that
	// LoadPlugin has loaded successfully. Factories themselves are keyed by
	// model name only, so loading a second plugin under the same name
	// replaces the earlier factories.
	loaded map[string]uuid.UUID
}

// NewRegistry returns a Registry pre-populated with the built-in models.
func NewRegistry() *Registry {
	r := &Registry{
		synapses:  map[string]SynapseFactory{},
		dendrites: map[string]DendriteFactory{},
		somas:     map[string]SomaFactory{},
		loaded:    map[string]uuid.UUID{},
	}
	r.synapses["current"] = func() SynapseUnit { return NewCurrentSynapse() }
	r.dendrites["accumulator"] = func() DendriteUnit { return NewAccumulatorDendrite() }
	r.dendrites["multitap"] = func() DendriteUnit { return NewMultiTapDendrite() }
	r.somas["loihi_lif"] = func() SomaUnit { return NewLIFSoma() }
	r.somas["truenorth"] = func() SomaUnit { return NewTrueNorthSoma() }
	r.somas["input"] = func() SomaUnit { return NewInputSoma(0) }
	return r
}

// LoadPlugin opens a user-supplied .so model plugin and registers whichever
// of NewSynapseModel/NewDendriteModel/NewSomaModel symbols it exports under
// name. At least one must be present or this is a PluginError.
func (r *Registry) LoadPlugin(name, path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return simerr.NewPluginError(path, err)
	}

	registeredAny := false

	if sym, err := p.Lookup("NewSynapseModel"); err == nil {
		factory, ok := sym.(func() SynapseUnit)
		if !ok {
			return simerr.NewPluginError(path, errBadSymbol("NewSynapseModel"))
		}
		r.synapses[name] = factory
		registeredAny = true
	}
	if sym, err := p.Lookup("NewDendriteModel"); err == nil {
		factory, ok := sym.(func() DendriteUnit)
		if !ok {
			return simerr.NewPluginError(path, errBadSymbol("NewDendriteModel"))
		}
		r.dendrites[name] = factory
		registeredAny = true
	}
	if sym, err := p.Lookup("NewSomaModel"); err == nil {
		factory, ok := sym.(func() SomaUnit)
		if !ok {
			return simerr.NewPluginError(path, errBadSymbol("NewSomaModel"))
		}
		r.somas[name] = factory
		registeredAny = true
	}
	if !registeredAny {
		return simerr.NewPluginError(path, errNoFactorySymbol)
	}

	r.loaded[path] = uuid.New()
	return nil
}

// Synapse resolves a model name to a factory.
func (r *Registry) Synapse(name string) (SynapseFactory, bool) {
	f, ok := r.synapses[name]
	return f, ok
}

// Dendrite resolves a model name to a factory.
func (r *Registry) Dendrite(name string) (DendriteFactory, bool) {
	f, ok := r.dendrites[name]
	return f, ok
}

// Soma resolves a model name to a factory.
func (r *Registry) Soma(name string) (SomaFactory, bool) {
	f, ok := r.somas[name]
	return f, ok
}

type pluginSymbolError string

func (e pluginSymbolError) Error() string { return string(e) }

func errBadSymbol(name string) error {
	return pluginSymbolError(name + " has the wrong signature")
}

var errNoFactorySymbol = pluginSymbolError("plugin exports no NewSynapseModel/NewDendriteModel/NewSomaModel symbol")

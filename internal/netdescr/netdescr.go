// Package netdescr loads the network description (§6): the neuron groups,
// the synaptic edges between them, and the mapping of each neuron onto a
// tile/core. Like package arch, descriptions are YAML parsed with
// gopkg.in/yaml.v3 and support "name[lo..hi]" range expansion.
package netdescr

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/SLAM-Lab/sana-fe/internal/simerr"
)

var netRangePattern = regexp.MustCompile(`^(.*)\[(\d+)\.\.(\d+)\]$`)

// NetworkDescription is a fully expanded network: every neuron, edge, and
// mapping entry is explicit.
type NetworkDescription struct {
	Groups  []NeuronGroup
	Edges   []Edge
	Mapping []Mapping
}

// NeuronGroup is a named collection of neurons sharing default model
// configuration, individually overridable per neuron.
type NeuronGroup struct {
	Name     string
	Defaults NeuronDefaults
	Neurons  []NeuronConfig
}

// NeuronDefaults are applied to every neuron in a group unless overridden.
type NeuronDefaults struct {
	LogSpikes         bool
	LogPotential      bool
	SomaModel         string
	SomaAttributes    map[string]interface{}
	MaxOutConnections int
}

// NeuronConfig is one neuron's configuration, after defaults are applied.
type NeuronConfig struct {
	ID             int
	LogSpikes      bool
	LogPotential   bool
	SomaModel      string
	SomaAttributes map[string]interface{}
	ForcedSpikes   int
}

// Edge is one synaptic connection from a source neuron to a destination
// neuron.
type Edge struct {
	SrcGroup         string
	SrcNeuron        int
	DstGroup         string
	DstNeuron        int
	SynapseModel     string
	SynapseAttributes map[string]interface{}
	Weight           float64
	DendriteAttributes map[string]interface{}
}

// Mapping places one neuron onto a tile and core offset.
type Mapping struct {
	Group      string
	Neuron     int
	Tile       string
	CoreOffset int
}

// --- raw YAML shape ---

type rawFile struct {
	Network rawNetwork `yaml:"network"`
}

type rawNetwork struct {
	Groups  []rawGroup  `yaml:"groups"`
	Edges   []rawEdge   `yaml:"edges"`
	Mapping []rawMapEntry `yaml:"mapping"`
}

type rawGroup struct {
	Name              string                 `yaml:"name"`
	Count             int                    `yaml:"count"`
	LogSpikes         bool                   `yaml:"log_spikes"`
	LogPotential      bool                   `yaml:"log_potential"`
	MaxOutConnections int                    `yaml:"max_out_connections"`
	Soma              rawModelRef            `yaml:"soma"`
	Neurons           []rawNeuronOverride    `yaml:"neurons"`
}

type rawModelRef struct {
	Model      string                 `yaml:"model"`
	Attributes map[string]interface{} `yaml:"attributes"`
}

type rawNeuronOverride struct {
	ID           int          `yaml:"id"`
	LogSpikes    *bool        `yaml:"log_spikes"`
	LogPotential *bool        `yaml:"log_potential"`
	Soma         *rawModelRef `yaml:"soma"`
	ForcedSpikes int          `yaml:"forced_spikes"`
}

type rawEdge struct {
	SrcGroup  string      `yaml:"src_group"`
	SrcNeuron string      `yaml:"src_neuron"`
	DstGroup  string      `yaml:"dst_group"`
	DstNeuron string      `yaml:"dst_neuron"`
	Weight    float64     `yaml:"weight"`
	Synapse   rawModelRef `yaml:"synapse"`
	Dendrite  rawModelRef `yaml:"dendrite"`
}

type rawMapEntry struct {
	Group      string `yaml:"group"`
	Neuron     string `yaml:"neuron"`
	Tile       string `yaml:"tile"`
	CoreOffset int    `yaml:"core"`
}

// expandIntRange expands "lo..hi" (or a single integer) to the list of ints
// it denotes.
func expandIntRange(s string) ([]int, error) {
	var lo, hi int
	if n, err := fmt.Sscanf(s, "%d..%d", &lo, &hi); err == nil && n == 2 {
		if hi < lo {
			return nil, fmt.Errorf("range %q has high bound below low bound", s)
		}
		out := make([]int, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("expected an integer or integer range, got %q", s)
	}
	return []int{v}, nil
}

// Load reads and fully expands a network description from path.
func Load(path string) (*NetworkDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.NewConfigError("path", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, simerr.NewConfigError("yaml", err)
	}

	net := &NetworkDescription{}

	for _, rg := range raw.Network.Groups {
		if rg.Count <= 0 {
			return nil, simerr.NewConfigError("group.count",
				fmt.Errorf("group %q: count must be positive", rg.Name))
		}
		group := NeuronGroup{
			Name: rg.Name,
			Defaults: NeuronDefaults{
				LogSpikes:         rg.LogSpikes,
				LogPotential:      rg.LogPotential,
				SomaModel:         rg.Soma.Model,
				SomaAttributes:    rg.Soma.Attributes,
				MaxOutConnections: rg.MaxOutConnections,
			},
		}
		overrides := map[int]rawNeuronOverride{}
		for _, o := range rg.Neurons {
			overrides[o.ID] = o
		}
		for i := 0; i < rg.Count; i++ {
			n := NeuronConfig{
				ID:             i,
				LogSpikes:      group.Defaults.LogSpikes,
				LogPotential:   group.Defaults.LogPotential,
				SomaModel:      group.Defaults.SomaModel,
				SomaAttributes: group.Defaults.SomaAttributes,
			}
			if o, ok := overrides[i]; ok {
				if o.LogSpikes != nil {
					n.LogSpikes = *o.LogSpikes
				}
				if o.LogPotential != nil {
					n.LogPotential = *o.LogPotential
				}
				if o.Soma != nil {
					n.SomaModel = o.Soma.Model
					n.SomaAttributes = o.Soma.Attributes
				}
				n.ForcedSpikes = o.ForcedSpikes
			}
			group.Neurons = append(group.Neurons, n)
		}
		net.Groups = append(net.Groups, group)
	}

	for _, re := range raw.Network.Edges {
		srcIDs, err := expandIntRange(re.SrcNeuron)
		if err != nil {
			return nil, simerr.NewConfigError("edge.src_neuron", err)
		}
		dstIDs, err := expandIntRange(re.DstNeuron)
		if err != nil {
			return nil, simerr.NewConfigError("edge.dst_neuron", err)
		}
		if len(srcIDs) != len(dstIDs) && len(dstIDs) != 1 && len(srcIDs) != 1 {
			return nil, simerr.NewConfigError("edge",
				fmt.Errorf("src_neuron range (%d) and dst_neuron range (%d) must match, or one must be a single neuron",
					len(srcIDs), len(dstIDs)))
		}
		n := len(srcIDs)
		if len(dstIDs) > n {
			n = len(dstIDs)
		}
		for i := 0; i < n; i++ {
			src := srcIDs[0]
			if len(srcIDs) > 1 {
				src = srcIDs[i]
			}
			dst := dstIDs[0]
			if len(dstIDs) > 1 {
				dst = dstIDs[i]
			}
			net.Edges = append(net.Edges, Edge{
				SrcGroup:           re.SrcGroup,
				SrcNeuron:          src,
				DstGroup:           re.DstGroup,
				DstNeuron:          dst,
				Weight:             re.Weight,
				SynapseModel:       re.Synapse.Model,
				SynapseAttributes:  re.Synapse.Attributes,
				DendriteAttributes: re.Dendrite.Attributes,
			})
		}
	}

	for _, rm := range raw.Network.Mapping {
		neuronIDs, err := expandIntRange(rm.Neuron)
		if err != nil {
			return nil, simerr.NewConfigError("mapping.neuron", err)
		}
		tileNames, err := expandRangeNames(rm.Tile)
		if err != nil {
			return nil, simerr.NewConfigError("mapping.tile", err)
		}
		if len(tileNames) != len(neuronIDs) && len(tileNames) != 1 {
			return nil, simerr.NewConfigError("mapping",
				fmt.Errorf("neuron range (%d) and tile range (%d) must match, or tile must be a single name",
					len(neuronIDs), len(tileNames)))
		}
		for i, neuronID := range neuronIDs {
			tile := tileNames[0]
			if len(tileNames) > 1 {
				tile = tileNames[i]
			}
			net.Mapping = append(net.Mapping, Mapping{
				Group:      rm.Group,
				Neuron:     neuronID,
				Tile:       tile,
				CoreOffset: rm.CoreOffset,
			})
		}
	}

	return net, nil
}

// Neuron looks up a neuron's expanded configuration by group name and id.
func (n *NetworkDescription) Neuron(group string, id int) (NeuronConfig, bool) {
	for _, g := range n.Groups {
		if g.Name != group {
			continue
		}
		for _, nc := range g.Neurons {
			if nc.ID == id {
				return nc, true
			}
		}
	}
	return NeuronConfig{}, false
}

// expandRangeNames expands "prefix[lo..hi]" to the list of names it
// denotes; a name with no range suffix expands to itself. Mirrors
// arch.expandRange without importing package arch, to avoid a dependency
// between the two description loaders.
func expandRangeNames(name string) ([]string, error) {
	m := netRangePattern.FindStringSubmatch(name)
	if m == nil {
		return []string{name}, nil
	}
	prefix := m[1]
	lo, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("range low bound: %w", err)
	}
	hi, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, fmt.Errorf("range high bound: %w", err)
	}
	if hi < lo {
		return nil, fmt.Errorf("range [%d..%d] has high bound below low bound", lo, hi)
	}
	names := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		names = append(names, fmt.Sprintf("%s%d", prefix, i))
	}
	return names, nil
}

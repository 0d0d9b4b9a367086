// Package arch loads the architecture description (§6): the mesh shape,
// per-direction hop cost, and the tile/core layout with each core's
// hardware unit configuration. Descriptions are YAML, parsed with
// gopkg.in/yaml.v3, and support a "name[lo..hi]" range-expansion syntax so
// one entry can describe many identical tiles or cores.
package arch

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/SLAM-Lab/sana-fe/internal/simerr"
)

// ArchitectureDescription is a fully expanded architecture: every tile and
// core is a distinct entry, no range syntax remains.
type ArchitectureDescription struct {
	Name            string
	NoCWidth        int
	NoCHeight       int
	MaxCoresPerTile int
	HopLatency      [4]float64
	HopEnergy       [4]float64
	Tiles           []TileConfig
}

// TileConfig describes one expanded tile.
type TileConfig struct {
	Name               string
	X, Y               int
	HopLatencyOverride *[4]float64
	HopEnergyOverride  *[4]float64
	Cores              []CoreConfig
}

// CoreConfig describes one expanded core and the hardware units mapped
// onto it.
type CoreConfig struct {
	Name           string
	BufferPosition string
	AxonIn         UnitConfig
	Synapse        UnitConfig
	Dendrite       UnitConfig
	Soma           UnitConfig
	AxonOut        UnitConfig
}

// UnitConfig names a hardware unit's model and carries its static
// configuration attributes.
type UnitConfig struct {
	Name       string
	Model      string
	PluginPath string
	Attributes map[string]interface{}
}

// --- raw YAML shape, pre range-expansion ---

type rawFile struct {
	Architecture rawArchitecture `yaml:"architecture"`
}

type rawArchitecture struct {
	Name string `yaml:"name"`
	NoC  struct {
		Width           int        `yaml:"width"`
		Height          int        `yaml:"height"`
		MaxCoresPerTile int        `yaml:"max_cores_per_tile"`
		HopLatency      [4]float64 `yaml:"hop_latency"`
		HopEnergy       [4]float64 `yaml:"hop_energy"`
	} `yaml:"noc"`
	Tile []rawTile `yaml:"tile"`
}

type rawTile struct {
	Name       string      `yaml:"name"`
	HopLatency *[4]float64 `yaml:"hop_latency"`
	HopEnergy  *[4]float64 `yaml:"hop_energy"`
	Core       []rawCore   `yaml:"core"`
}

type rawCore struct {
	Name           string   `yaml:"name"`
	BufferPosition string   `yaml:"buffer_position"`
	AxonIn         rawUnit  `yaml:"axon_in"`
	Synapse        rawUnit  `yaml:"synapse"`
	Dendrite       rawUnit  `yaml:"dendrite"`
	Soma           rawUnit  `yaml:"soma"`
	AxonOut        rawUnit  `yaml:"axon_out"`
}

type rawUnit struct {
	Model      string                 `yaml:"model"`
	Plugin     string                 `yaml:"plugin"`
	Attributes map[string]interface{} `yaml:"attributes"`
}

var rangePattern = regexp.MustCompile(`^(.*)\[(\d+)\.\.(\d+)\]$`)

// expandRange expands a "prefix[lo..hi]" name into the list of names
// prefix<lo>..prefix<hi> it denotes; a name with no range suffix expands to
// itself.
func expandRange(name string) ([]string, error) {
	m := rangePattern.FindStringSubmatch(name)
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

func expandUnit(u rawUnit) UnitConfig {
	return UnitConfig{Model: u.Model, PluginPath: u.Plugin, Attributes: u.Attributes}
}

// Load reads and fully expands an architecture description from path.
func Load(path string) (*ArchitectureDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.NewConfigError("path", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, simerr.NewConfigError("yaml", err)
	}

	desc := &ArchitectureDescription{
		Name:            raw.Architecture.Name,
		NoCWidth:        raw.Architecture.NoC.Width,
		NoCHeight:       raw.Architecture.NoC.Height,
		MaxCoresPerTile: raw.Architecture.NoC.MaxCoresPerTile,
		HopLatency:      raw.Architecture.NoC.HopLatency,
		HopEnergy:       raw.Architecture.NoC.HopEnergy,
	}
	if desc.NoCWidth <= 0 || desc.NoCHeight <= 0 {
		return nil, simerr.NewConfigError("noc.width/height", fmt.Errorf("must both be positive"))
	}
	if desc.MaxCoresPerTile <= 0 {
		return nil, simerr.NewConfigError("noc.max_cores_per_tile", fmt.Errorf("must be positive"))
	}

	for _, rt := range raw.Architecture.Tile {
		tileNames, err := expandRange(rt.Name)
		if err != nil {
			return nil, simerr.NewConfigError("tile.name", err)
		}
		for _, tileName := range tileNames {
			tile := TileConfig{
				Name:               tileName,
				HopLatencyOverride: rt.HopLatency,
				HopEnergyOverride:  rt.HopEnergy,
			}
			for _, rc := range rt.Core {
				coreNames, err := expandRange(rc.Name)
				if err != nil {
					return nil, simerr.NewConfigError("core.name", err)
				}
				for _, coreName := range coreNames {
					tile.Cores = append(tile.Cores, CoreConfig{
						Name:           coreName,
						BufferPosition: rc.BufferPosition,
						AxonIn:         expandUnit(rc.AxonIn),
						Synapse:        expandUnit(rc.Synapse),
						Dendrite:       expandUnit(rc.Dendrite),
						Soma:           expandUnit(rc.Soma),
						AxonOut:        expandUnit(rc.AxonOut),
					})
				}
			}
			if len(tile.Cores) > desc.MaxCoresPerTile {
				return nil, simerr.NewConfigError("tile.core",
					fmt.Errorf("tile %q has %d cores, more than max_cores_per_tile (%d)",
						tile.Name, len(tile.Cores), desc.MaxCoresPerTile))
			}
			desc.Tiles = append(desc.Tiles, tile)
		}
	}

	if len(desc.Tiles) != desc.NoCWidth*desc.NoCHeight {
		return nil, simerr.NewConfigError("tile",
			fmt.Errorf("expected %d tiles (%dx%d), got %d after expansion",
				desc.NoCWidth*desc.NoCHeight, desc.NoCWidth, desc.NoCHeight, len(desc.Tiles)))
	}
	for i := range desc.Tiles {
		desc.Tiles[i].X = i % desc.NoCWidth
		desc.Tiles[i].Y = i / desc.NoCWidth
	}

	return desc, nil
}

package hwunit

import (
	"fmt"

	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// CurrentSynapse is the built-in current-based synapse model: each
// connection carries a fixed weight; a delivered spike adds that weight to
// the connection's current, and every update scales the current by
// current_decay (default 1.0, which keeps it unchanged).
type CurrentSynapse struct {
	energyPerSpike   float64
	latencyPerSpike  simtime.VTimeInSec
	currentDecay     float64 // 1.0 == no decay
	weights          map[int]float64
	current          map[int]float64
}

// NewCurrentSynapse constructs an unconfigured CurrentSynapse.
func NewCurrentSynapse() *CurrentSynapse {
	return &CurrentSynapse{
		currentDecay: 1.0,
		weights:      map[int]float64{},
		current:      map[int]float64{},
	}
}

func (s *CurrentSynapse) Configure(attrs map[string]ModelParam) error {
	if v, ok := attrs["energy_process_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("energy_process_spike: %w", err)
		}
		s.energyPerSpike = f
	}
	if v, ok := attrs["latency_process_spike"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("latency_process_spike: %w", err)
		}
		s.latencyPerSpike = simtime.VTimeInSec(f)
	}
	if v, ok := attrs["current_decay"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("current_decay: %w", err)
		}
		s.currentDecay = f
	}
	return nil
}

func (s *CurrentSynapse) SetAttribute(address int, name string, param ModelParam) error {
	switch name {
	case "weight", "w":
		f, err := toFloat(param)
		if err != nil {
			return fmt.Errorf("weight: %w", err)
		}
		s.weights[address] = f
		return nil
	default:
		return fmt.Errorf("synapse: unknown attribute %q", name)
	}
}

func (s *CurrentSynapse) Update(address int, apply bool) (float64, float64, simtime.VTimeInSec, error) {
	cur := s.current[address] * s.currentDecay
	var energy float64
	var latency simtime.VTimeInSec
	if apply {
		cur += s.weights[address]
		energy = s.energyPerSpike
		latency = s.latencyPerSpike
	}
	s.current[address] = cur
	return cur, energy, latency, nil
}

func (s *CurrentSynapse) Reset() {
	s.current = map[int]float64{}
}

func toFloat(v ModelParam) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toBool(v ModelParam) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a bool, got %T", v)
	}
	return b, nil
}

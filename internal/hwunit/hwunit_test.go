package hwunit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SLAM-Lab/sana-fe/internal/hwunit"
)

func TestCurrentSynapseDecaysBetweenSpikes(t *testing.T) {
	s := hwunit.NewCurrentSynapse()
	require.NoError(t, s.Configure(map[string]hwunit.ModelParam{"current_decay": 0.5}))
	require.NoError(t, s.SetAttribute(0, "weight", 2.0))

	current, _, _, err := s.Update(0, true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, current)

	current, _, _, err = s.Update(0, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, current)
}

func TestAccumulatorDendriteSumsAndLeaks(t *testing.T) {
	d := hwunit.NewAccumulatorDendrite()
	require.NoError(t, d.Configure(map[string]hwunit.ModelParam{"leak_decay": 0.5}))

	charge, _, _, err := d.Update(0, &hwunit.DendriteInput{Current: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, charge)

	charge, _, _, err = d.Update(0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, charge)
}

func TestLIFSomaFiresAtThresholdAndHardResets(t *testing.T) {
	s := hwunit.NewLIFSoma()
	require.NoError(t, s.Configure(map[string]hwunit.ModelParam{
		"threshold": 1.0,
		"reset":     0.0,
	}))

	current := 0.6
	status, _, _, err := s.Update(0, &current, false)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Updated, status)

	status, _, _, err = s.Update(0, &current, false)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Fired, status)
	assert.Equal(t, 0.0, s.GetPotential(0))
}

func TestLIFSomaForcedSpikeIgnoresThreshold(t *testing.T) {
	s := hwunit.NewLIFSoma()
	require.NoError(t, s.Configure(map[string]hwunit.ModelParam{"threshold": 100}))

	status, _, _, err := s.Update(0, nil, true)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Fired, status)
}

func TestTrueNorthSomaLeaksTowardsZero(t *testing.T) {
	s := hwunit.NewTrueNorthSoma()
	require.NoError(t, s.Configure(map[string]hwunit.ModelParam{
		"leak_towards_zero": 0.5,
		"threshold":         100,
	}))

	current := 1.0
	_, _, _, err := s.Update(0, &current, false)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.GetPotential(0), 1e-9)

	_, _, _, err = s.Update(0, nil, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.GetPotential(0), 1e-9)
}

func TestInputSomaFollowsFixedSequence(t *testing.T) {
	s := hwunit.NewInputSoma(1)
	require.NoError(t, s.SetAttribute(0, "sequence", []interface{}{true, false, true}))

	status, _, _, err := s.Update(0, nil, false)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Fired, status)

	status, _, _, err = s.Update(0, nil, false)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Idle, status)

	status, _, _, err = s.Update(0, nil, false)
	require.NoError(t, err)
	assert.Equal(t, hwunit.Fired, status)
}

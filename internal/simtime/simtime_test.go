package simtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

func TestFreqPeriod(t *testing.T) {
	assert.InDelta(t, 1e-9, float64((1*simtime.GHz).Period()), 1e-18)
	assert.InDelta(t, 1.0, float64((1 * simtime.Hz).Period()), 1e-12)
}

func TestFreqCycle(t *testing.T) {
	assert.Equal(t, uint64(10), (1 * simtime.GHz).Cycle(10e-9))
}

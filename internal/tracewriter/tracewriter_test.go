package tracewriter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SLAM-Lab/sana-fe/internal/chip"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/tracewriter"
)

func TestOpenWritesHeadersForEnabledTracesOnly(t *testing.T) {
	dir := t.TempDir()
	w, err := tracewriter.Open(tracewriter.Config{
		OutDir: dir,
		Spikes: true,
	}, nil)
	require.NoError(t, err)
	w.Close()

	assert.FileExists(t, filepath.Join(dir, "spikes.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "messages.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "potential.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "performance.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "spikes.csv"))
	require.NoError(t, err)
	assert.Equal(t, "gid.nid,timestep\n", string(data))
}

func TestWriteSpikeAppendsRows(t *testing.T) {
	dir := t.TempDir()
	w, err := tracewriter.Open(tracewriter.Config{OutDir: dir, Spikes: true}, nil)
	require.NoError(t, err)

	n := &chip.MappedNeuron{ID: 3, GroupName: "g"}
	w.WriteSpike(n, 5)
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "spikes.csv"))
	require.NoError(t, err)
	assert.Equal(t, "gid.nid,timestep\ng.3,5\n", string(data))
}

func TestWriteMessageFormatsAllColumns(t *testing.T) {
	dir := t.TempDir()
	w, err := tracewriter.Open(tracewriter.Config{OutDir: dir, Messages: true}, nil)
	require.NoError(t, err)

	m := &message.Message{
		Timestep:         1,
		SrcNeuronGroupID: "g",
		SrcNeuronID:      0,
		SrcTileID:        0,
		SrcCoreID:        0,
		DstTileID:        1,
		DstCoreID:        1,
		Hops:             1,
		SpikeCount:       1,
	}
	w.WriteMessage(m)
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "messages.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1,g.0,0.0,1.1,1,1,")
}

func TestWriteSummaryAccumulatesAcrossWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := tracewriter.Open(tracewriter.Config{OutDir: dir, Performance: true}, nil)
	require.NoError(t, err)

	w.WritePerformance(0.1, 2, 3, 4, 5.0)
	w.WritePerformance(0.2, 1, 1, 1, 1.0)
	require.NoError(t, w.WriteSummary(0.5, 2))
	w.Close()

	data, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "total_neurons_fired,3\n")
	assert.Contains(t, s, "energy,6.0000000000\n")
	assert.Contains(t, s, "wall_time,0.5000000000\n")
	assert.Contains(t, s, "timesteps,2\n")
}

func TestProbeNeuronsPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	neurons := []*chip.MappedNeuron{
		{ID: 0, GroupName: "a"},
		{ID: 1, GroupName: "a"},
	}
	w, err := tracewriter.Open(tracewriter.Config{OutDir: dir, Potential: true}, neurons)
	require.NoError(t, err)
	defer w.Close()

	got := w.ProbeNeurons()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[1].ID)

	w.Close()
	data, err := os.ReadFile(filepath.Join(dir, "potential.csv"))
	require.NoError(t, err)
	assert.Equal(t, "timestep,a.0,a.1\n", string(data))
}

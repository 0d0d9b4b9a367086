package arch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SLAM-Lab/sana-fe/internal/arch"
)

func writeArchFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExpandsTileAndCoreRanges(t *testing.T) {
	path := writeArchFile(t, `
architecture:
  name: test_arch
  noc:
    width: 2
    height: 1
    max_cores_per_tile: 2
    hop_latency: [1, 1, 1, 1]
    hop_energy: [1, 1, 1, 1]
  tile:
    - name: "tile[0..1]"
      core:
        - name: "core[0..1]"
          buffer_position: before_soma
          soma:
            model: loihi_lif
            attributes:
              threshold: 1.0
`)

	desc, err := arch.Load(path)
	require.NoError(t, err)

	require.Len(t, desc.Tiles, 2)
	assert.Equal(t, "tile0", desc.Tiles[0].Name)
	assert.Equal(t, "tile1", desc.Tiles[1].Name)
	assert.Equal(t, 0, desc.Tiles[0].X)
	assert.Equal(t, 1, desc.Tiles[1].X)
	require.Len(t, desc.Tiles[0].Cores, 2)
	assert.Equal(t, "core0", desc.Tiles[0].Cores[0].Name)
	assert.Equal(t, "loihi_lif", desc.Tiles[0].Cores[0].Soma.Model)
}

func TestLoadRejectsTileCountMismatch(t *testing.T) {
	path := writeArchFile(t, `
architecture:
  name: bad
  noc:
    width: 2
    height: 2
    max_cores_per_tile: 1
  tile:
    - name: only_one
      core:
        - name: core0
          buffer_position: before_soma
`)

	_, err := arch.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsTooManyCoresPerTile(t *testing.T) {
	path := writeArchFile(t, `
architecture:
  name: bad
  noc:
    width: 1
    height: 1
    max_cores_per_tile: 1
  tile:
    - name: tile0
      core:
        - name: "core[0..1]"
          buffer_position: before_soma
`)

	_, err := arch.Load(path)
	require.Error(t, err)
}

// Package mesh implements the NoC addressing scheme (C1): a rectangular grid
// of tiles, XY dimension-order routing, hop counting, and the per-link
// latency/energy bookkeeping that feeds the run summary and message trace.
//
// The mutable per-link message-density vector described alongside the mesh
// in spec §3 is scheduler state (§4.5.2), not mesh state, and lives in
// package noc; mesh only defines the indexing scheme (Index) that the
// scheduler addresses that vector with.
package mesh

import (
	"github.com/SLAM-Lab/sana-fe/internal/simerr"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// Inter-tile link directions. NDirections is the number of these; a core's
// intra-tile link to its router is addressed starting at index NDirections.
const (
	North = iota
	East
	South
	West
	NDirections
)

// DirectionName returns a short label for a direction, for error messages
// and traces.
func DirectionName(dir int) string {
	switch dir {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "local"
	}
}

// Link identifies a single directed hop: the tile it arrives at and the
// direction (or intra-tile core offset) it arrives from.
type Link struct {
	X, Y int
	Dir  int // North/East/South/West, or NDirections+coreOffset for intra-tile
}

// Tile is one router node of the mesh, addressed by (X, Y).
type Tile struct {
	ID int
	X  int
	Y  int

	// HopLatency/HopEnergy are indexed by North/East/South/West and charged
	// when a message arrives at this tile from that direction.
	HopLatency [NDirections]simtime.VTimeInSec
	HopEnergy  [NDirections]float64

	// Per-timestep counters, reset by the driver, reported in the summary.
	NorthHops        int64
	EastHops         int64
	SouthHops        int64
	WestHops         int64
	TotalHops        int64
	MessagesReceived int64
}

func (t *Tile) recordHop(dir int) {
	switch dir {
	case North:
		t.NorthHops++
	case East:
		t.EastHops++
	case South:
		t.SouthHops++
	case West:
		t.WestHops++
	}
	t.TotalHops++
}

// ResetCounters zeroes the per-timestep hop counters (called by the driver
// at the start of every timestep).
func (t *Tile) ResetCounters() {
	t.NorthHops, t.EastHops, t.SouthHops, t.WestHops = 0, 0, 0, 0
	t.TotalHops, t.MessagesReceived = 0, 0
}

// Energy reduces this timestep's hop counters against the tile's
// per-direction hop energy, for the C6 energy report.
func (t *Tile) Energy() float64 {
	return float64(t.NorthHops)*t.HopEnergy[North] +
		float64(t.EastHops)*t.HopEnergy[East] +
		float64(t.SouthHops)*t.HopEnergy[South] +
		float64(t.WestHops)*t.HopEnergy[West]
}

// Mesh is a rectangular grid of tiles.
type Mesh struct {
	Width           int
	Height          int
	MaxCoresPerTile int
	Tiles           []*Tile // row-major, index = Y*Width+X
}

// New creates a Width x Height mesh with uniform default per-direction hop
// latency/energy; callers override individual tiles afterward.
func New(width, height, maxCoresPerTile int) *Mesh {
	m := &Mesh{Width: width, Height: height, MaxCoresPerTile: maxCoresPerTile}
	m.Tiles = make([]*Tile, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			id := y*width + x
			m.Tiles = append(m.Tiles, &Tile{ID: id, X: x, Y: y})
		}
	}
	return m
}

// TileAt returns the tile at (x, y).
func (m *Mesh) TileAt(x, y int) *Tile {
	simerr.Assertf(x >= 0 && x < m.Width && y >= 0 && y < m.Height,
		"tile coordinate (%d,%d) out of range for %dx%d mesh", x, y, m.Width, m.Height)
	return m.Tiles[y*m.Width+x]
}

// DensityVectorLen returns the length of the link-density vector the
// scheduler maintains, per spec §3.
func (m *Mesh) DensityVectorLen() int {
	return m.Width * m.Height * (NDirections + m.MaxCoresPerTile)
}

// Index computes the flat index of link (x, y, dir) into the density
// vector. dir is North/East/South/West for an inter-tile link, or
// NDirections+coreOffset for the intra-tile link between that core and its
// tile's router.
func (m *Mesh) Index(x, y, dir int) int {
	return (y*m.Width+x)*(NDirections+m.MaxCoresPerTile) + dir
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Hops returns the XY hop count between two tiles: |dx| + |dy|.
func Hops(srcX, srcY, dstX, dstY int) int {
	return abs(srcX-dstX) + abs(srcY-dstY)
}

// Route returns the ordered list of links a message traverses from
// (srcX,srcY,srcCoreOffset) to (dstX,dstY,dstCoreOffset) under XY
// dimension-order routing (travel X first, then Y). The first entry is
// always the source's intra-tile out-link and the last is always the
// destination's intra-tile in-link; when src and dst are the same tile
// these coincide in physical routing terms but are still both returned, so
// len(Route(...)) == Hops(...)+2 always (§4.1: "total links per message =
// hops + 2").
func Route(srcX, srcY, srcCoreOffset, dstX, dstY, dstCoreOffset int) []Link {
	hops := Hops(srcX, srcY, dstX, dstY)
	links := make([]Link, 0, hops+2)
	links = append(links, Link{X: srcX, Y: srcY, Dir: NDirections + srcCoreOffset})

	x, y := srcX, srcY
	for x != dstX {
		dir, step := East, 1
		if dstX < srcX {
			dir, step = West, -1
		}
		x += step
		links = append(links, Link{X: x, Y: srcY, Dir: dir})
	}
	for y != dstY {
		dir, step := North, 1
		if dstY < srcY {
			dir, step = South, -1
		}
		y += step
		links = append(links, Link{X: dstX, Y: y, Dir: dir})
	}

	links = append(links, Link{X: dstX, Y: dstY, Dir: NDirections + dstCoreOffset})
	return links
}

// NetworkCost sums the per-hop latency along the XY route between two
// tiles (identified by coordinates, ignoring the intra-tile links, which
// carry no mesh-level latency of their own) and records the hop direction
// counters on every tile entered, per §4.1.
func (m *Mesh) NetworkCost(srcX, srcY, dstX, dstY int) simtime.VTimeInSec {
	var total simtime.VTimeInSec

	x, y := srcX, srcY
	for x != dstX {
		dir, step := East, 1
		if dstX < srcX {
			dir, step = West, -1
		}
		x += step
		tile := m.TileAt(x, y)
		total += tile.HopLatency[dir]
		tile.recordHop(dir)
	}
	for y != dstY {
		dir, step := North, 1
		if dstY < srcY {
			dir, step = South, -1
		}
		y += step
		tile := m.TileAt(dstX, y)
		total += tile.HopLatency[dir]
		tile.recordHop(dir)
	}

	m.TileAt(dstX, dstY).MessagesReceived++
	return total
}

// Package ticks applies random block updates (grass and mycelium growth and
// decay) to loaded chunks.
package ticks

import (
	"math/rand/v2"

	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

// myceliumChance is the probability that dirt next to mycelium converts on
// a visit.
const myceliumChance = 0.5

// spreadDirs are the horizontal neighbours on the cell's level and the
// levels directly above and below it.
var spreadDirs = [12][3]int{
	{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
	{1, 1, 0}, {-1, 1, 0}, {0, 1, 1}, {0, 1, -1},
	{1, -1, 0}, {-1, -1, 0}, {0, -1, 1}, {0, -1, -1},
}

// RandomTicker visits PerChunk random cells of every loaded chunk each time
// its accumulator reaches TickRate. Changes to generated cells are not
// logged; a change to an edited cell replaces its log entry.
type RandomTicker struct {
	store    *world.ChunkStore
	rng      *rand.Rand
	tickRate float64
	perChunk int
	acc      float64
}

// NewRandomTicker returns a ticker over store. rng must not be shared with
// other goroutines.
func NewRandomTicker(store *world.ChunkStore, tickRate float64, perChunk int, rng *rand.Rand) *RandomTicker {
	return &RandomTicker{store: store, rng: rng, tickRate: tickRate, perChunk: perChunk}
}

// Update advances the accumulator by delta seconds and runs at most one
// round. It returns the number of blocks changed.
func (t *RandomTicker) Update(delta float64) int {
	t.acc += delta
	if t.acc < t.tickRate {
		return 0
	}
	t.acc = 0
	return t.Round()
}

// Round visits every loaded chunk once.
func (t *RandomTicker) Round() int {
	defer profiling.Track("ticks.Round")()
	changed := 0
	for _, key := range t.store.Keys() {
		changed += t.tickChunk(key)
	}
	return changed
}

func (t *RandomTicker) tickChunk(key voxel.ChunkKey) int {
	c, ok := t.store.Chunk(key)
	if !ok {
		return 0
	}
	size, height := c.Size(), c.Height()
	ox, oz := key.Origin(size)
	changed := 0
	for i := 0; i < t.perChunk; i++ {
		lx, y, lz := t.rng.IntN(size), t.rng.IntN(height), t.rng.IntN(size)
		if t.Visit(voxel.Pos{X: ox + lx, Y: y, Z: oz + lz}) {
			changed++
		}
	}
	return changed
}

// Visit applies the random-tick rules to one world cell and reports whether
// the block changed:
//
//   - dirt with air above and a grass neighbour becomes grass
//   - dirt with air above and a mycelium neighbour becomes mycelium half the time
//   - grass or mycelium under anything but air or a torch turns back to dirt
func (t *RandomTicker) Visit(p voxel.Pos) bool {
	key, lx, lz := t.store.Locate(p.X, p.Z)
	c, ok := t.store.Chunk(key)
	if !ok || p.Y < 0 || p.Y >= c.Height() {
		return false
	}
	id := c.Block(lx, p.Y, lz)
	above := voxel.Air
	if p.Y+1 < c.Height() {
		above = c.Block(lx, p.Y+1, lz)
	}

	var next voxel.BlockID
	switch id {
	case registry.Dirt:
		if above != voxel.Air {
			return false
		}
		if t.hasNeighbour(p, registry.Grass) {
			next = registry.Grass
		}
		if t.hasNeighbour(p, registry.Mycelium) && t.rng.Float64() < myceliumChance {
			next = registry.Mycelium
		}
	case registry.Grass, registry.Mycelium:
		if p.Y+1 >= c.Height() || above == voxel.Air || above == registry.Torch {
			return false
		}
		next = registry.Dirt
	}
	if next == voxel.Air || next == id {
		return false
	}
	return t.store.UpdateBlock(p.X, p.Y, p.Z, next)
}

// hasNeighbour looks through the store so a neighbour across a chunk border
// counts; unloaded cells read as air.
func (t *RandomTicker) hasNeighbour(p voxel.Pos, id voxel.BlockID) bool {
	for _, d := range spreadDirs {
		if t.store.ReadBlock(p.X+d[0], p.Y+d[1], p.Z+d[2]) == id {
			return true
		}
	}
	return false
}

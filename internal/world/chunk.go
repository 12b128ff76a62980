package world

import (
	"cmp"
	"slices"

	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
)

// MaxFluidLevel is the level of a source or freshly fallen fluid cell.
const MaxFluidLevel = 8

// FluidCell is the live simulation state of one fluid-bearing block.
type FluidCell struct {
	Block voxel.BlockID
	Level uint8
	// Axis restricts lateral spread for directionally placed fluid.
	Axis voxel.Axis
}

// Chunk is one column of the world: a dense block grid plus the sparse
// fluid levels of the cells the simulator is driving.
//
// Every fluid entry names the block its cell holds. Writing a different
// block over a fluid cell drops the entry. Generated water and lava get no
// entry and stay static; only fluid placed by an edit, or replayed from the
// modification log, is simulated.
type Chunk struct {
	Key       voxel.ChunkKey
	Biome     string
	Dimension terrain.Dimension

	grid   *voxel.Grid
	fluids map[voxel.LocalKey]FluidCell
	dirty  bool
}

// NewChunk wraps a generated grid.
func NewChunk(key voxel.ChunkKey, grid *voxel.Grid, biome string, dim terrain.Dimension) *Chunk {
	return &Chunk{
		Key:       key,
		Biome:     biome,
		Dimension: dim,
		grid:      grid,
		fluids:    make(map[voxel.LocalKey]FluidCell),
		dirty:     true,
	}
}

func (c *Chunk) Size() int   { return c.grid.Size }
func (c *Chunk) Height() int { return c.grid.Height }

// Grid exposes the block storage for read-only traversal.
func (c *Chunk) Grid() *voxel.Grid { return c.grid }

// Block returns the block at local coordinates, air outside the chunk.
func (c *Chunk) Block(x, y, z int) voxel.BlockID {
	return c.grid.At(x, y, z)
}

// SetBlock writes a block at local coordinates and reports whether the
// coordinates were inside the chunk.
func (c *Chunk) SetBlock(x, y, z int, id voxel.BlockID) bool {
	if !c.grid.InBounds(x, y, z) {
		return false
	}
	if c.grid.At(x, y, z) == id {
		return true
	}
	c.grid.Set(x, y, z, id)
	local := voxel.PackLocal(x, y, z)
	if f, ok := c.fluids[local]; ok && f.Block != id {
		delete(c.fluids, local)
	}
	c.dirty = true
	return true
}

// Fluid returns the live fluid state of a cell.
func (c *Chunk) Fluid(local voxel.LocalKey) (FluidCell, bool) {
	f, ok := c.fluids[local]
	return f, ok
}

// SetFluid writes the fluid block into the grid and records its level.
func (c *Chunk) SetFluid(local voxel.LocalKey, cell FluidCell) bool {
	x, y, z := local.Unpack()
	if !c.grid.InBounds(x, y, z) || cell.Level == 0 {
		return false
	}
	if c.grid.At(x, y, z) != cell.Block {
		c.grid.Set(x, y, z, cell.Block)
		c.dirty = true
	}
	c.fluids[local] = cell
	return true
}

// FluidKeys returns the live fluid cells in ascending key order.
func (c *Chunk) FluidKeys() []voxel.LocalKey {
	keys := make([]voxel.LocalKey, 0, len(c.fluids))
	for k := range c.fluids {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[voxel.LocalKey])
	return keys
}

// FluidCount returns the number of live fluid cells.
func (c *Chunk) FluidCount() int { return len(c.fluids) }

// IsDirty reports whether the chunk changed since it was last meshed.
func (c *Chunk) IsDirty() bool { return c.dirty }

func (c *Chunk) MarkDirty() { c.dirty = true }

// SetClean marks the chunk as meshed.
func (c *Chunk) SetClean() { c.dirty = false }

package terrain

import (
	"math/rand/v2"

	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

// ClearCell in a template forces the target cell to air.
const ClearCell int32 = -1

const oceanRuinChance = 0.15

// TemplateCell is one block of a structure, relative to its origin.
type TemplateCell struct {
	Offset voxel.Pos
	Block  int32
}

// Template is a fixed coordinate to block id map stamped into a chunk.
type Template struct {
	Name  string
	Cells []TemplateCell
}

// OceanRuin is a broken pillar with a granite ring on the seabed.
var OceanRuin = Template{
	Name: "ocean_ruin",
	Cells: []TemplateCell{
		{voxel.Pos{X: 0, Y: 0, Z: 0}, int32(registry.OakLog)},
		{voxel.Pos{X: 0, Y: 1, Z: 0}, int32(registry.OakLog)},
		{voxel.Pos{X: 0, Y: 2, Z: 0}, int32(registry.OakLog)},
		{voxel.Pos{X: 0, Y: 3, Z: 0}, int32(registry.OakLog)},
		{voxel.Pos{X: 0, Y: 0, Z: 1}, int32(registry.Granite)},
		{voxel.Pos{X: 1, Y: 0, Z: 0}, int32(registry.Granite)},
		{voxel.Pos{X: 2, Y: 0, Z: 1}, int32(registry.Granite)},
		{voxel.Pos{X: 1, Y: 0, Z: 2}, int32(registry.Granite)},
		{voxel.Pos{X: 1, Y: -1, Z: 1}, ClearCell},
	},
}

// Extent returns the template's horizontal footprint (max offset + 1).
func (t Template) Extent() (int, int) {
	ex, ez := 0, 0
	for _, c := range t.Cells {
		ex = max(ex, c.Offset.X+1)
		ez = max(ez, c.Offset.Z+1)
	}
	return ex, ez
}

// Stamp writes t into grid at origin and returns the number of cells
// written. Cells outside the grid are skipped.
func Stamp(grid *voxel.Grid, t Template, origin voxel.Pos) int {
	n := 0
	for _, c := range t.Cells {
		p := origin.Add(c.Offset.X, c.Offset.Y, c.Offset.Z)
		id := voxel.Air
		if c.Block != ClearCell {
			id = voxel.BlockID(c.Block)
		}
		if grid.Set(p.X, p.Y, p.Z, id) {
			n++
		}
	}
	return n
}

func (g *Generator) stampStructures(req Request, grid *voxel.Grid, rng *rand.Rand) {
	if req.Biome != Ocean || rng.Float64() >= oceanRuinChance {
		return
	}
	ex, ez := OceanRuin.Extent()
	if req.Size <= ex || req.Size <= ez {
		return
	}
	x, z := rng.IntN(req.Size-ex), rng.IntN(req.Size-ez)
	y := seabed(grid, x, z) + 1
	if y <= 1 {
		return
	}
	Stamp(grid, OceanRuin, voxel.Pos{X: x, Y: y, Z: z})
}

// seabed returns the highest y in the column that is neither air nor water.
func seabed(grid *voxel.Grid, x, z int) int {
	for y := grid.Height - 1; y >= 0; y-- {
		if b := grid.At(x, y, z); b != voxel.Air && b != registry.Water {
			return y
		}
	}
	return -1
}

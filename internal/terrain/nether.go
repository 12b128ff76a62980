package terrain

import (
	"math/rand/v2"

	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

const (
	netherLavaLevel   = 31
	pillarThreshold   = 0.78
	islandThreshold   = 0.74
	islandClearance   = 6
	glowstoneClusters = 3
	glowstoneSteps    = 10
)

// nether builds a lava sea between a bedrock floor and ceiling, joined by
// netherrack pillars, with floating islands and glowstone hanging from the roof.
func (g *Generator) nether(req Request, rng *rand.Rand) *voxel.Grid {
	size, maxH := req.Size, req.MaxHeight
	grid := voxel.NewGrid(size, maxH)
	ox, oz := req.Key.Origin(size)
	lava := min(netherLavaLevel, maxH/4)
	roofDepth := max(maxH/6, 1)

	for lx := 0; lx < size; lx++ {
		for lz := 0; lz < size; lz++ {
			wx, wz := float64(ox+lx), float64(oz+lz)
			floor := 1 + int(g.netherFloor.Sample2D(wx, wz)*float64(lava+4))
			ceiling := maxH - 2 - int(g.netherCeiling.Sample2D(wx, wz)*float64(roofDepth))
			pillar := g.netherPillar.Sample2D(wx, wz) > pillarThreshold

			grid.Set(lx, 0, lz, registry.Bedrock)
			grid.Set(lx, maxH-1, lz, registry.Bedrock)
			for y := 1; y < maxH-1; y++ {
				switch {
				case pillar || y <= floor || y >= ceiling:
					grid.Set(lx, y, lz, registry.Netherrack)
				case y <= lava:
					grid.Set(lx, y, lz, registry.Lava)
				case y > lava+islandClearance && y < ceiling-islandClearance &&
					g.netherIsland.Sample3D(wx, float64(y), wz) > islandThreshold:
					grid.Set(lx, y, lz, registry.Netherrack)
				}
			}
		}
	}

	for i := rng.IntN(glowstoneClusters + 1); i > 0; i-- {
		hangGlowstone(grid, rng.IntN(size), rng.IntN(size), rng)
	}
	return grid
}

// hangGlowstone random-walks a cluster downward from the roof above (x, z).
func hangGlowstone(grid *voxel.Grid, x, z int, rng *rand.Rand) {
	y := grid.Height - 2
	for y > 0 && grid.At(x, y, z) != voxel.Air {
		y--
	}
	if y <= 0 {
		return
	}
	for step := 0; step < glowstoneSteps; step++ {
		if grid.At(x, y, z) == voxel.Air {
			grid.Set(x, y, z, registry.Glowstone)
		}
		x += rng.IntN(3) - 1
		z += rng.IntN(3) - 1
		y -= rng.IntN(2)
		if !grid.InBounds(x, y, z) {
			return
		}
	}
}

package terrain

import (
	"fmt"
	"math/rand/v2"

	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

// Dimension selects the generator used for a chunk.
type Dimension uint8

const (
	Overworld Dimension = iota
	Nether
)

func (d Dimension) String() string {
	if d == Nether {
		return "nether"
	}
	return "overworld"
}

// ParseDimension accepts "overworld" and "nether".
func ParseDimension(s string) (Dimension, error) {
	switch s {
	case "", "overworld":
		return Overworld, nil
	case "nether":
		return Nether, nil
	}
	return Overworld, fmt.Errorf("unknown dimension %q", s)
}

const (
	treeChance    = 0.01
	treeMinY      = 10
	treeSpacing   = 3
	snowLineBase  = 38
	shallowDepth  = 4
	coalChance    = 0.05
	ironChance    = 0.02
	coalMaxY      = 40
	ironMinY      = 5
	ironMaxY      = 30
	stoneDepthMin = 2
)

// Request is everything needed to generate one chunk.
type Request struct {
	Key       voxel.ChunkKey
	Size      int
	MaxHeight int
	Corners   Corners
	Biome     string
	Dimension Dimension
}

// Generator produces chunk grids from immutable noise sources. Generate is
// pure given its Request and rng, so chunks can be built on any goroutine.
type Generator struct {
	seed          int64
	deterministic bool
	biomes        Table

	height Octaves
	biome  *Perlin

	netherFloor   Octaves
	netherCeiling Octaves
	netherPillar  Octaves
	netherIsland  Octaves
}

// New seeds every noise source from seed. When deterministic is false,
// decoration (trees, ores, structures) differs between generations of the
// same chunk.
func New(seed int64, biomes Table, deterministic bool) *Generator {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5DEECE66D))
	g := &Generator{
		seed:          seed,
		deterministic: deterministic,
		biomes:        biomes,
	}
	g.height = Octaves{Source: NewPerlin(rng), Count: 4, Persistence: 0.5, Lacunarity: 2.0, Frequency: 0.01}
	g.biome = NewPerlin(rng)
	g.netherFloor = Octaves{Source: NewPerlin(rng), Count: 3, Persistence: 0.5, Lacunarity: 2.0, Frequency: 0.02}
	g.netherCeiling = Octaves{Source: NewPerlin(rng), Count: 3, Persistence: 0.5, Lacunarity: 2.0, Frequency: 0.03}
	g.netherPillar = Octaves{Source: NewPerlin(rng), Count: 2, Persistence: 0.5, Lacunarity: 2.0, Frequency: 0.08}
	g.netherIsland = Octaves{Source: NewPerlin(rng), Count: 2, Persistence: 0.5, Lacunarity: 2.0, Frequency: 0.05}
	return g
}

// BiomeValue samples biome noise at a world column, mapped to [0, 1].
func (g *Generator) BiomeValue(wx, wz int) float64 {
	b := g.biome.Noise2D(float64(wx)*biomeFrequency, float64(wz)*biomeFrequency)
	return normalize(b, 1)
}

// HeightNoise samples the terrain height noise at a world column.
func (g *Generator) HeightNoise(wx, wz int) float64 {
	return g.height.Sample2D(float64(wx), float64(wz))
}

func (g *Generator) params(name string) Params {
	if p, ok := g.biomes[name]; ok {
		return p
	}
	return g.biomes[Plains]
}

// Plan samples biome noise at the four chunk corners and the chunk centre.
func (g *Generator) Plan(key voxel.ChunkKey, size, maxHeight int, dim Dimension) Request {
	ox, oz := key.Origin(size)
	var corners Corners
	for i, c := range [4][2]int{{0, 0}, {size, 0}, {0, size}, {size, size}} {
		corners[i] = g.params(Classify(g.BiomeValue(ox+c[0], oz+c[1])))
	}
	return Request{
		Key:       key,
		Size:      size,
		MaxHeight: maxHeight,
		Corners:   corners,
		Biome:     Classify(g.BiomeValue(ox+size/2, oz+size/2)),
		Dimension: dim,
	}
}

// DecorationRNG returns the random source for one chunk's decoration.
func (g *Generator) DecorationRNG(key voxel.ChunkKey, dim Dimension) *rand.Rand {
	if !g.deterministic {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	h := mix64(uint64(g.seed))
	h = mix64(h ^ uint64(int64(key.CX)))
	h = mix64(h ^ uint64(int64(key.CZ)))
	h = mix64(h ^ uint64(dim))
	return rand.New(rand.NewPCG(h, mix64(h)))
}

// Generate fills a fresh grid for req.
func (g *Generator) Generate(req Request, rng *rand.Rand) *voxel.Grid {
	defer profiling.Track("terrain.Generate")()
	if req.Dimension == Nether {
		return g.nether(req, rng)
	}
	grid := g.overworld(req, rng)
	g.stampStructures(req, grid, rng)
	return grid
}

func (g *Generator) overworld(req Request, rng *rand.Rand) *voxel.Grid {
	size, maxH := req.Size, req.MaxHeight
	grid := voxel.NewGrid(size, maxH)
	ox, oz := req.Key.Origin(size)
	cold := IsCold(req.Biome)
	snowLine := snowLineBase + rng.IntN(4)
	denom := float64(max(size-1, 1))

	var trees []voxel.Pos
	for lx := 0; lx < size; lx++ {
		for lz := 0; lz < size; lz++ {
			p := req.Corners.Blend(float64(lx)/denom, float64(lz)/denom)
			n := g.HeightNoise(ox+lx, oz+lz)
			h := min(max(int(n*p.HeightScale), 1), maxH-1)
			water := min(int(p.WaterLevel), maxH-1)
			stoneDepth := stoneDepthMin + int(n*3)

			surface := registry.Grass
			switch {
			case req.Biome == MushroomFields:
				surface = registry.Mycelium
			case cold && h >= snowLine:
				surface = registry.Snow
			}

			grid.Set(lx, 0, lz, registry.Bedrock)
			for y := 1; y <= h; y++ {
				switch {
				case y == h:
					grid.Set(lx, y, lz, surface)
				case y >= h-stoneDepth:
					grid.Set(lx, y, lz, registry.Dirt)
				default:
					grid.Set(lx, y, lz, oreOrStone(y, rng))
				}
			}

			for y := 1; y <= water; y++ {
				if grid.At(lx, y, lz) == voxel.Air {
					grid.Set(lx, y, lz, registry.Water)
				}
			}
			if h <= water {
				if water-h < shallowDepth {
					grid.Set(lx, h, lz, registry.Sand)
				} else {
					grid.Set(lx, h, lz, registry.Stone)
				}
				continue
			}

			if surface == registry.Grass && h > treeMinY && h+8 < maxH && rng.Float64() < treeChance {
				if !nearTree(trees, lx, lz) {
					plantTree(grid, lx, h+1, lz, cold, rng)
					trees = append(trees, voxel.Pos{X: lx, Y: h + 1, Z: lz})
				}
			}
		}
	}
	return grid
}

func oreOrStone(y int, rng *rand.Rand) voxel.BlockID {
	r := rng.Float64()
	switch {
	case y > 0 && y < coalMaxY && r < coalChance:
		return registry.CoalOre
	case y > ironMinY && y < ironMaxY && r < coalChance+ironChance:
		return registry.IronOre
	}
	return registry.Stone
}

func nearTree(trees []voxel.Pos, x, z int) bool {
	for _, t := range trees {
		dx, dz := t.X-x, t.Z-z
		if dx >= -treeSpacing && dx <= treeSpacing && dz >= -treeSpacing && dz <= treeSpacing {
			return true
		}
	}
	return false
}

// plantTree stamps a trunk at (x, base, z) and a canopy around its top.
// Cells outside the grid are clipped.
func plantTree(grid *voxel.Grid, x, base, z int, cold bool, rng *rand.Rand) {
	trunkH := 4 + rng.IntN(3)
	logID, leafID := registry.OakLog, registry.OakLeaves
	if cold {
		logID, leafID = registry.SpruceLog, registry.SpruceLeaves
	}
	top := base + trunkH - 1
	for y := base; y <= top; y++ {
		grid.Set(x, y, z, logID)
	}
	for dy := -2; dy <= 1; dy++ {
		r := 2
		if dy >= 0 {
			r = 1
		}
		if cold {
			// narrower towards the tip
			r = min(max(1-dy, 0), 2)
		}
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if dx == 0 && dz == 0 && dy <= 0 {
					continue
				}
				if r == 2 && (dx == -2 || dx == 2) && (dz == -2 || dz == 2) && rng.IntN(2) == 0 {
					continue
				}
				if grid.At(x+dx, top+dy, z+dz) == voxel.Air {
					grid.Set(x+dx, top+dy, z+dz, leafID)
				}
			}
		}
	}
	if cold && grid.At(x, top+2, z) == voxel.Air {
		grid.Set(x, top+2, z, registry.Snow)
	}
}

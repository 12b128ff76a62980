package fluid

import (
	"io"
	"log"
	"math/rand/v2"
	"slices"
	"testing"

	"voxelsim/internal/modlog"
	"voxelsim/internal/registry"
	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

const size, height = 16, 32

// flatWorld loads the chunks within radius of the origin, each filled with
// stone up to and including floorY.
func flatWorld(t *testing.T, radius, floorY int) *world.ChunkStore {
	t.Helper()
	store := world.NewChunkStore(size, height, registry.Default(), modlog.New(), log.New(io.Discard, "", 0))
	for cx := -radius; cx <= radius; cx++ {
		for cz := -radius; cz <= radius; cz++ {
			grid := voxel.NewGrid(size, height)
			for x := 0; x < size; x++ {
				for z := 0; z < size; z++ {
					for y := 0; y <= floorY; y++ {
						grid.Set(x, y, z, registry.Stone)
					}
				}
			}
			store.AddChunk(world.NewChunk(voxel.ChunkKey{CX: cx, CZ: cz}, grid, terrain.Plains, terrain.Overworld))
		}
	}
	return store
}

func seed(t *testing.T, store *world.ChunkStore, p voxel.Pos, level uint8, axis voxel.Axis) {
	t.Helper()
	key, lx, lz := store.Locate(p.X, p.Z)
	c, ok := store.Chunk(key)
	if !ok {
		t.Fatalf("chunk %s not loaded", key)
	}
	c.SetFluid(voxel.PackLocal(lx, p.Y, lz), world.FluidCell{Block: registry.Water, Level: level, Axis: axis})
}

func fluidAt(store *world.ChunkStore, p voxel.Pos) (world.FluidCell, bool) {
	key, lx, lz := store.Locate(p.X, p.Z)
	c, ok := store.Chunk(key)
	if !ok {
		return world.FluidCell{}, false
	}
	return c.Fluid(voxel.PackLocal(lx, p.Y, lz))
}

func allFluid(store *world.ChunkStore) map[voxel.Pos]world.FluidCell {
	out := make(map[voxel.Pos]world.FluidCell)
	for _, key := range store.Keys() {
		c, _ := store.Chunk(key)
		ox, oz := key.Origin(size)
		for _, local := range c.FluidKeys() {
			f, _ := c.Fluid(local)
			x, y, z := local.Unpack()
			out[voxel.Pos{X: ox + x, Y: y, Z: oz + z}] = f
		}
	}
	return out
}

func water(chance float64) Species {
	return Species{Block: registry.Water, TickRate: 0.5, SpreadChance: chance}
}

func newSim(t *testing.T, store *world.ChunkStore, species ...Species) *Simulator {
	t.Helper()
	sim, err := NewSimulator(store, species, rand.New(rand.NewPCG(7, 11)))
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestFallTakesPriority(t *testing.T) {
	store := flatWorld(t, 0, 7)
	src := voxel.Pos{X: 8, Y: 9, Z: 8}
	seed(t, store, src, 8, voxel.AxisNone)

	sim := newSim(t, store, water(1))
	st := sim.Pass(water(1))
	if st.Updates != 1 {
		t.Fatalf("updates = %d, want 1", st.Updates)
	}
	f, ok := fluidAt(store, src.Add(0, -1, 0))
	if !ok || f.Level != 8 || store.ReadBlock(8, 8, 8) != registry.Water {
		t.Fatalf("fallen cell = %+v ok=%v", f, ok)
	}
	for _, d := range allDirs {
		if b := store.ReadBlock(src.X+d[0], src.Y, src.Z+d[1]); b != voxel.Air {
			t.Errorf("source spread sideways while falling: %v", d)
		}
	}
}

func TestSpreadExhaustion(t *testing.T) {
	store := flatWorld(t, 0, 9)
	src := voxel.Pos{X: 8, Y: 10, Z: 8}
	seed(t, store, src, 2, voxel.AxisNone)
	sim := newSim(t, store, water(1))

	sim.Pass(water(1))
	for _, d := range allDirs {
		f, ok := fluidAt(store, src.Add(d[0], 0, d[1]))
		if !ok || f.Level != 1 {
			t.Errorf("neighbour %v = %+v ok=%v, want level 1", d, f, ok)
		}
	}
	before := len(allFluid(store))
	st := sim.Pass(water(1))
	if st.Updates != 0 || len(allFluid(store)) != before {
		t.Errorf("level-1 cells spread further: updates=%d cells=%d->%d", st.Updates, before, len(allFluid(store)))
	}
}

func TestNeverOverwritesHealthierCell(t *testing.T) {
	store := flatWorld(t, 0, 9)
	weak := voxel.Pos{X: 4, Y: 10, Z: 4}
	strong := voxel.Pos{X: 5, Y: 10, Z: 4}
	seed(t, store, weak, 3, voxel.AxisNone)
	seed(t, store, strong, 6, voxel.AxisNone)

	sim := newSim(t, store, water(1))
	for i := 0; i < 5; i++ {
		sim.Pass(water(1))
		if f, _ := fluidAt(store, strong); f.Level != 6 {
			t.Fatalf("pass %d: strong cell changed to %d", i, f.Level)
		}
	}
}

func TestLevelsDecayWithDistance(t *testing.T) {
	store := flatWorld(t, 1, 9)
	src := voxel.Pos{X: 14, Y: 10, Z: 1}
	seed(t, store, src, 8, voxel.AxisNone)
	sim := newSim(t, store, water(0.6))

	for i := 0; i < 30; i++ {
		sim.Pass(water(0.6))
	}
	cells := allFluid(store)
	if len(cells) < 10 {
		t.Fatalf("only %d fluid cells after 30 passes", len(cells))
	}
	crossed := false
	for p, f := range cells {
		if f.Level < 1 || f.Level > 8 {
			t.Errorf("%v has level %d", p, f.Level)
		}
		dist := abs(p.X-src.X) + abs(p.Z-src.Z)
		if int(f.Level) > 8-dist {
			t.Errorf("%v level %d exceeds 8-%d", p, f.Level, dist)
		}
		if p.X >= size || p.Z < 0 {
			crossed = true
		}
	}
	if !crossed {
		t.Error("fluid never crossed a chunk border")
	}
}

func TestFlowAxisRestrictsSpread(t *testing.T) {
	store := flatWorld(t, 0, 9)
	src := voxel.Pos{X: 8, Y: 10, Z: 8}
	seed(t, store, src, 8, voxel.AxisX)
	sim := newSim(t, store, water(1))
	for i := 0; i < 4; i++ {
		sim.Pass(water(1))
	}
	for p, f := range allFluid(store) {
		if p.Z != src.Z {
			t.Errorf("x-axis fluid reached %v", p)
		}
		if f.Axis != voxel.AxisX {
			t.Errorf("%v lost its flow axis", p)
		}
	}
	if _, ok := fluidAt(store, src.Add(4, 0, 0)); !ok {
		t.Error("fluid did not travel along x")
	}
}

func TestTopsUpLowerCellBelow(t *testing.T) {
	store := flatWorld(t, 0, 7)
	seed(t, store, voxel.Pos{X: 3, Y: 8, Z: 3}, 2, voxel.AxisNone)
	seed(t, store, voxel.Pos{X: 3, Y: 9, Z: 3}, 8, voxel.AxisNone)
	sim := newSim(t, store, water(0))
	sim.Pass(water(0))
	if f, _ := fluidAt(store, voxel.Pos{X: 3, Y: 8, Z: 3}); f.Level != 8 {
		t.Errorf("lower cell level = %d, want 8", f.Level)
	}
}

func TestUnloadedNeighbourSkipped(t *testing.T) {
	store := flatWorld(t, 0, 9)
	src := voxel.Pos{X: 15, Y: 10, Z: 15}
	seed(t, store, src, 8, voxel.AxisNone)
	sim := newSim(t, store, water(1))
	st := sim.Pass(water(1))
	if st.Updates != 2 {
		t.Errorf("updates = %d, want 2 (only in-chunk neighbours)", st.Updates)
	}
	if store.IsLoadedAt(16, 15) {
		t.Fatal("neighbour chunk unexpectedly loaded")
	}
}

func TestSpeciesCadence(t *testing.T) {
	store := flatWorld(t, 0, 9)
	seed(t, store, voxel.Pos{X: 2, Y: 10, Z: 2}, 8, voxel.AxisNone)
	c, _ := store.Chunk(voxel.ChunkKey{})
	c.SetFluid(voxel.PackLocal(12, 10, 12), world.FluidCell{Block: registry.Lava, Level: 8})

	lava := Species{Block: registry.Lava, TickRate: 1.5, SpreadChance: 1}
	sim := newSim(t, store, water(1), lava)

	st := sim.Update(0.5)
	if st.Passes != 1 {
		t.Fatalf("passes at 0.5s = %d, want 1", st.Passes)
	}
	if store.ReadBlock(13, 10, 12) != voxel.Air {
		t.Error("lava ticked early")
	}
	if store.ReadBlock(3, 10, 2) != registry.Water {
		t.Error("water did not tick")
	}
	if st := sim.Update(1.0); st.Passes != 2 {
		t.Errorf("passes at 1.5s = %d, want 2", st.Passes)
	}
	if store.ReadBlock(13, 10, 12) != registry.Lava {
		t.Error("lava did not tick at its rate")
	}
	if st := sim.Update(0.1); st.Passes != 0 {
		t.Errorf("accumulators not reset: %d passes", st.Passes)
	}
}

func TestRejectsNonFluidSpecies(t *testing.T) {
	store := flatWorld(t, 0, 1)
	if _, err := NewSimulator(store, []Species{{Block: registry.Stone, TickRate: 1}}, rand.New(rand.NewPCG(1, 1))); err == nil {
		t.Error("expected error for a solid species")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestGeneratedWaterIsInert(t *testing.T) {
	store := world.NewChunkStore(size, height, registry.Default(), modlog.New(), log.New(io.Discard, "", 0))
	gen := terrain.New(3, terrain.DefaultTable(), true)
	sea := terrain.Uniform(terrain.Params{HeightScale: 8, WaterLevel: 20})
	before := make(map[voxel.ChunkKey][]voxel.BlockID)
	for cx := -1; cx <= 1; cx++ {
		for cz := -1; cz <= 1; cz++ {
			key := voxel.ChunkKey{CX: cx, CZ: cz}
			req := terrain.Request{Key: key, Size: size, MaxHeight: height, Corners: sea, Biome: terrain.Ocean}
			grid := gen.Generate(req, gen.DecorationRNG(key, terrain.Overworld))
			before[key] = slices.Clone(grid.Blocks)
			store.AddChunk(world.NewChunk(key, grid, terrain.Ocean, terrain.Overworld))
		}
	}
	if store.ReadBlock(0, 20, 0) != registry.Water {
		t.Fatal("generated sea has no water at the surface")
	}
	// dig out the seabed under the water; generated water must not pour in
	key, lx, lz := store.Locate(0, 0)
	c, _ := store.Chunk(key)
	y := 20
	for y > 0 && c.Block(lx, y, lz) == registry.Water {
		y--
	}
	c.SetBlock(lx, y, lz, voxel.Air)
	before[key] = slices.Clone(c.Grid().Blocks)

	sim := newSim(t, store, water(1))
	for i := 0; i < 10; i++ {
		if st := sim.Update(0.5); st.Updates != 0 {
			t.Fatalf("tick %d: %d fluid updates in a generated sea", i, st.Updates)
		}
	}
	for key, want := range before {
		c, _ := store.Chunk(key)
		if c.FluidCount() != 0 || !slices.Equal(c.Grid().Blocks, want) {
			t.Errorf("chunk %s changed", key)
		}
	}
}

package meshing

import (
	"io"
	"log"
	"testing"

	"voxelsim/internal/modlog"
	"voxelsim/internal/registry"
	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

const testSize, testHeight = 16, 32

func newStore() *world.ChunkStore {
	return world.NewChunkStore(testSize, testHeight, registry.Default(), modlog.New(), log.New(io.Discard, "", 0))
}

func addChunk(store *world.ChunkStore, cx, cz int, fill func(g *voxel.Grid)) *world.Chunk {
	g := voxel.NewGrid(testSize, testHeight)
	if fill != nil {
		fill(g)
	}
	c := world.NewChunk(voxel.ChunkKey{CX: cx, CZ: cz}, g, terrain.Plains, terrain.Overworld)
	store.AddChunk(c)
	return c
}

func solidBox(g *voxel.Grid) {
	for y := 0; y < 4; y++ {
		for z := 0; z < testSize; z++ {
			for x := 0; x < testSize; x++ {
				g.Set(x, y, z, registry.Stone)
			}
		}
	}
}

func TestSingleBlockExposed(t *testing.T) {
	store := newStore()
	addChunk(store, 0, 0, func(g *voxel.Grid) { g.Set(3, 5, 7, registry.Grass) })
	mesh, ok := BuildChunk(store, voxel.ChunkKey{})
	if !ok {
		t.Fatal("chunk not loaded")
	}
	if mesh.Count() != 1 {
		t.Fatalf("exposed = %d, want 1", mesh.Count())
	}
	g, ok := mesh.Group(registry.Grass)
	if !ok || g.Name != "grass" || g.Positions[0] != (voxel.Pos{X: 3, Y: 5, Z: 7}) {
		t.Errorf("grass group = %+v", g)
	}
}

func TestBuriedBlocksHidden(t *testing.T) {
	store := newStore()
	addChunk(store, 0, 0, solidBox)
	for _, k := range (voxel.ChunkKey{}).Neighbors() {
		addChunk(store, k.CX, k.CZ, solidBox)
	}
	mesh, _ := BuildChunk(store, voxel.ChunkKey{})
	// only the top layer sees air; y=0 faces the closed floor
	if got, want := mesh.Count(), testSize*testSize; got != want {
		t.Errorf("exposed = %d, want %d", got, want)
	}
	for _, p := range mesh.Groups[0].Positions {
		if p.Y != 3 {
			t.Fatalf("buried block %v reported exposed", p)
		}
	}
}

func TestUnloadedNeighbourHidesBorder(t *testing.T) {
	store := newStore()
	addChunk(store, 0, 0, solidBox)
	// east neighbour loaded but empty, the rest unloaded
	addChunk(store, 1, 0, nil)
	mesh, _ := BuildChunk(store, voxel.ChunkKey{})
	east := 0
	for _, p := range mesh.Groups[0].Positions {
		if p.Y < 3 {
			if p.X != testSize-1 {
				t.Fatalf("side block %v exposed towards an unloaded chunk", p)
			}
			east++
		}
	}
	if east != 3*testSize {
		t.Errorf("east wall exposed = %d, want %d", east, 3*testSize)
	}
}

func TestTransparentNeighbourExposes(t *testing.T) {
	store := newStore()
	c := addChunk(store, 0, 0, solidBox)
	for _, k := range (voxel.ChunkKey{}).Neighbors() {
		addChunk(store, k.CX, k.CZ, solidBox)
	}
	c.SetBlock(5, 2, 5, registry.Glass)
	mesh, _ := BuildChunk(store, voxel.ChunkKey{})
	stone, _ := mesh.Group(registry.Stone)
	want := map[voxel.Pos]bool{
		{X: 4, Y: 2, Z: 5}: true, {X: 6, Y: 2, Z: 5}: true,
		{X: 5, Y: 1, Z: 5}: true,
		{X: 5, Y: 2, Z: 4}: true, {X: 5, Y: 2, Z: 6}: true,
	}
	for _, p := range stone.Positions {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("stone around glass not exposed: %v", want)
	}
	if _, ok := mesh.Group(registry.Glass); ok {
		t.Error("enclosed glass reported exposed")
	}
}

func TestCrossChunkNegativeCoords(t *testing.T) {
	store := newStore()
	addChunk(store, -1, 0, func(g *voxel.Grid) { g.Set(testSize-1, 1, 0, registry.Stone) })
	addChunk(store, 0, 0, func(g *voxel.Grid) { g.Set(0, 1, 0, registry.Dirt) })
	mesh, _ := BuildChunk(store, voxel.ChunkKey{CX: -1})
	g, ok := mesh.Group(registry.Stone)
	if !ok || g.Positions[0] != (voxel.Pos{X: -1, Y: 1, Z: 0}) {
		t.Errorf("stone group = %+v", g)
	}
}

func TestUnknownBlockSkipped(t *testing.T) {
	store := newStore()
	addChunk(store, 0, 0, func(g *voxel.Grid) {
		g.Set(1, 1, 1, voxel.BlockID(999))
		g.Set(2, 1, 1, registry.Sand)
	})
	mesh, ok := BuildChunk(store, voxel.ChunkKey{})
	if !ok {
		t.Fatal("chunk not loaded")
	}
	if len(mesh.Groups) != 1 || mesh.Groups[0].Block != registry.Sand {
		t.Errorf("groups = %+v", mesh.Groups)
	}
}

func TestMissingChunk(t *testing.T) {
	if _, ok := BuildChunk(newStore(), voxel.ChunkKey{CX: 9}); ok {
		t.Error("BuildChunk on an unloaded key reported ok")
	}
}

func TestWorkerPoolBuildAll(t *testing.T) {
	store := newStore()
	var keys []voxel.ChunkKey
	for cx := -1; cx <= 1; cx++ {
		for cz := -1; cz <= 1; cz++ {
			addChunk(store, cx, cz, solidBox)
			keys = append(keys, voxel.ChunkKey{CX: cx, CZ: cz})
		}
	}
	keys = append(keys, voxel.ChunkKey{CX: 5, CZ: 5})

	pool := NewWorkerPool(3, 2)
	defer pool.Shutdown()
	results := pool.BuildAll(store, keys)
	if len(results) != len(keys) {
		t.Fatalf("results = %d, want %d", len(results), len(keys))
	}
	for i, r := range results {
		if r.Key != keys[i] {
			t.Errorf("result %d key = %s, want %s", i, r.Key, keys[i])
		}
		if want := i < len(keys)-1; r.Loaded != want {
			t.Errorf("%s loaded = %v", r.Key, r.Loaded)
		}
	}
	centre := results[4].Mesh
	if centre.Count() != testSize*testSize {
		t.Errorf("centre exposed = %d", centre.Count())
	}
}

func TestWorkerPoolShutdown(t *testing.T) {
	pool := NewWorkerPool(2, 1)
	pool.Shutdown()
	if pool.SubmitJob(MeshJob{}) {
		t.Error("SubmitJob accepted a job after shutdown")
	}
	if pool.SubmitJobBlocking(MeshJob{}) {
		t.Error("SubmitJobBlocking accepted a job after shutdown")
	}
}

func BenchmarkBuildChunk(b *testing.B) {
	store := newStore()
	addChunk(store, 0, 0, solidBox)
	for _, k := range (voxel.ChunkKey{}).Neighbors() {
		addChunk(store, k.CX, k.CZ, solidBox)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildChunk(store, voxel.ChunkKey{})
	}
}

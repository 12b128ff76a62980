package ticks

import (
	"io"
	"log"
	"math/rand/v2"
	"testing"

	"voxelsim/internal/modlog"
	"voxelsim/internal/registry"
	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

func newStore(t *testing.T, keys ...voxel.ChunkKey) *world.ChunkStore {
	t.Helper()
	store := world.NewChunkStore(16, 32, registry.Default(), modlog.New(), log.New(io.Discard, "", 0))
	for _, k := range keys {
		store.AddChunk(world.NewChunk(k, voxel.NewGrid(16, 32), terrain.Plains, terrain.Overworld))
	}
	return store
}

func set(t *testing.T, store *world.ChunkStore, p voxel.Pos, id voxel.BlockID) {
	t.Helper()
	key, lx, lz := store.Locate(p.X, p.Z)
	c, ok := store.Chunk(key)
	if !ok {
		t.Fatalf("chunk %s not loaded", key)
	}
	c.SetBlock(lx, p.Y, lz, id)
}

func TestDirtNextToGrassGrows(t *testing.T) {
	store := newStore(t, voxel.ChunkKey{})
	set(t, store, voxel.Pos{X: 4, Y: 5, Z: 4}, registry.Dirt)
	set(t, store, voxel.Pos{X: 5, Y: 6, Z: 4}, registry.Grass)
	tk := NewRandomTicker(store, 0.05, 50, rand.New(rand.NewPCG(1, 2)))

	if !tk.Visit(voxel.Pos{X: 4, Y: 5, Z: 4}) {
		t.Fatal("dirt did not turn to grass")
	}
	if got := store.ReadBlock(4, 5, 4); got != registry.Grass {
		t.Errorf("block = %d, want grass", got)
	}
	if store.Modifications().Len() != 0 {
		t.Error("random tick was written to the modification log")
	}
}

func TestCoveredDirtStays(t *testing.T) {
	store := newStore(t, voxel.ChunkKey{})
	set(t, store, voxel.Pos{X: 4, Y: 5, Z: 4}, registry.Dirt)
	set(t, store, voxel.Pos{X: 4, Y: 6, Z: 4}, registry.Stone)
	set(t, store, voxel.Pos{X: 5, Y: 5, Z: 4}, registry.Grass)
	tk := NewRandomTicker(store, 0.05, 50, rand.New(rand.NewPCG(1, 2)))
	if tk.Visit(voxel.Pos{X: 4, Y: 5, Z: 4}) {
		t.Error("covered dirt changed")
	}
}

func TestGrassDecay(t *testing.T) {
	cases := []struct {
		name  string
		above voxel.BlockID
		want  voxel.BlockID
	}{
		{"air", voxel.Air, registry.Grass},
		{"torch", registry.Torch, registry.Grass},
		{"stone", registry.Stone, registry.Dirt},
		{"water", registry.Water, registry.Dirt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t, voxel.ChunkKey{})
			set(t, store, voxel.Pos{X: 1, Y: 3, Z: 1}, registry.Grass)
			set(t, store, voxel.Pos{X: 1, Y: 4, Z: 1}, tc.above)
			NewRandomTicker(store, 1, 1, rand.New(rand.NewPCG(3, 4))).Visit(voxel.Pos{X: 1, Y: 3, Z: 1})
			if got := store.ReadBlock(1, 3, 1); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMyceliumSpreadsAcrossChunkBorder(t *testing.T) {
	store := newStore(t, voxel.ChunkKey{}, voxel.ChunkKey{CX: -1})
	set(t, store, voxel.Pos{X: 0, Y: 5, Z: 0}, registry.Dirt)
	set(t, store, voxel.Pos{X: -1, Y: 5, Z: 0}, registry.Mycelium)
	store.DrainDirty()
	tk := NewRandomTicker(store, 1, 1, rand.New(rand.NewPCG(5, 6)))

	converted := false
	for i := 0; i < 64 && !converted; i++ {
		tk.Visit(voxel.Pos{X: 0, Y: 5, Z: 0})
		converted = store.ReadBlock(0, 5, 0) == registry.Mycelium
	}
	if !converted {
		t.Error("dirt never became mycelium")
	}
	c, _ := store.Chunk(voxel.ChunkKey{CX: -1})
	if !c.IsDirty() {
		t.Error("border neighbour not marked for remesh")
	}
}

func TestUpdateCadence(t *testing.T) {
	store := newStore(t, voxel.ChunkKey{})
	// a full layer of covered grass always decays when visited
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y := 0; y < 31; y++ {
				set(t, store, voxel.Pos{X: x, Y: y, Z: z}, registry.Grass)
			}
		}
	}
	tk := NewRandomTicker(store, 0.05, 10, rand.New(rand.NewPCG(7, 8)))
	if n := tk.Update(0.02); n != 0 {
		t.Errorf("ticked before the rate: %d", n)
	}
	if n := tk.Update(0.04); n == 0 {
		t.Error("no change once the rate was reached")
	}
	if n := tk.Update(0.01); n != 0 {
		t.Errorf("accumulator not reset: %d", n)
	}
}

func TestTickedEditSurvivesReload(t *testing.T) {
	cases := []struct {
		name string
		cell voxel.BlockID
		next voxel.Pos
		nb   voxel.BlockID
		want voxel.BlockID
	}{
		{"dirt grows", registry.Dirt, voxel.Pos{X: 4, Y: 60, Z: 3}, registry.Grass, registry.Grass},
		{"grass decays", registry.Grass, voxel.Pos{X: 3, Y: 61, Z: 3}, registry.Stone, registry.Dirt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := world.NewChunkStore(16, 64, registry.Default(), modlog.New(), log.New(io.Discard, "", 0))
			gen := terrain.New(21, terrain.DefaultTable(), true)
			streamer := world.NewChunkStreamer(store, gen, nil, world.StreamerOptions{Workers: 1})
			key := voxel.ChunkKey{}
			streamer.LoadChunk(key)

			cell := voxel.Pos{X: 3, Y: 60, Z: 3}
			if !store.PlaceBlock(cell.X, cell.Y+1, cell.Z, voxel.Air) ||
				!store.PlaceBlock(cell.X, cell.Y, cell.Z, tc.cell) ||
				!store.PlaceBlock(tc.next.X, tc.next.Y, tc.next.Z, tc.nb) {
				t.Fatal("setup edits rejected")
			}
			tk := NewRandomTicker(store, 1, 1, rand.New(rand.NewPCG(5, 6)))
			if !tk.Visit(cell) {
				t.Fatalf("%s: tick did not change the cell", tc.name)
			}
			if got := store.ReadBlock(cell.X, cell.Y, cell.Z); got != tc.want {
				t.Fatalf("before eviction = %d, want %d", got, tc.want)
			}

			streamer.Evict(key)
			streamer.LoadChunk(key)
			if got := store.ReadBlock(cell.X, cell.Y, cell.Z); got != tc.want {
				t.Errorf("after reload = %d, want %d", got, tc.want)
			}
		})
	}
}

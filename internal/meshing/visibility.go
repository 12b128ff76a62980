package meshing

import (
	"log"
	"slices"

	"voxelsim/internal/profiling"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

// Group is the exposed blocks of one block type within a chunk, in world
// coordinates. The render layer turns each group into one batched drawable.
type Group struct {
	Block     voxel.BlockID
	Name      string
	Positions []voxel.Pos
}

// ChunkMesh is the visibility result for one chunk, groups ordered by id.
type ChunkMesh struct {
	Key    voxel.ChunkKey
	Biome  string
	Groups []Group
}

// Count returns the number of exposed blocks across all groups.
func (m ChunkMesh) Count() int {
	n := 0
	for _, g := range m.Groups {
		n += len(g.Positions)
	}
	return n
}

// Group returns the group for id, if any block of that type is exposed.
func (m ChunkMesh) Group(id voxel.BlockID) (Group, bool) {
	for _, g := range m.Groups {
		if g.Block == id {
			return g, true
		}
	}
	return Group{}, false
}

var faceDirs = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// BuildChunk lists the blocks of a loaded chunk that have at least one face
// next to a transparent block. Neighbours across a chunk border are read
// from the store; an unloaded neighbour hides the face so no phantom walls
// appear at the streaming edge. Above the world top counts as open sky,
// below y=0 as closed.
//
// Blocks whose id is missing from the registry are skipped and reported
// once per chunk.
func BuildChunk(store *world.ChunkStore, key voxel.ChunkKey) (ChunkMesh, bool) {
	defer profiling.Track("meshing.BuildChunk")()
	c, ok := store.Chunk(key)
	if !ok {
		return ChunkMesh{Key: key}, false
	}
	reg := store.Registry()
	size, height := c.Size(), c.Height()
	ox, oz := key.Origin(size)

	byID := make(map[voxel.BlockID][]voxel.Pos)
	var missing []voxel.BlockID

	transparentAt := func(lx, y, lz int) bool {
		if y >= height {
			return true
		}
		if y < 0 {
			return false
		}
		if lx >= 0 && lx < size && lz >= 0 && lz < size {
			return reg.IsTransparent(c.Block(lx, y, lz))
		}
		wx, wz := ox+lx, oz+lz
		if !store.IsLoadedAt(wx, wz) {
			return false
		}
		return reg.IsTransparent(store.ReadBlock(wx, y, wz))
	}

	for y := 0; y < height; y++ {
		for lz := 0; lz < size; lz++ {
			for lx := 0; lx < size; lx++ {
				id := c.Block(lx, y, lz)
				if id == voxel.Air {
					continue
				}
				if !reg.Has(id) {
					if !slices.Contains(missing, id) {
						missing = append(missing, id)
					}
					continue
				}
				for _, d := range faceDirs {
					if transparentAt(lx+d[0], y+d[1], lz+d[2]) {
						byID[id] = append(byID[id], voxel.Pos{X: ox + lx, Y: y, Z: oz + lz})
						break
					}
				}
			}
		}
	}
	if len(missing) > 0 {
		log.Printf("meshing: chunk %s has blocks %v with no registry entry, skipped", key, missing)
	}

	ids := make([]voxel.BlockID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	mesh := ChunkMesh{Key: key, Biome: c.Biome, Groups: make([]Group, 0, len(ids))}
	for _, id := range ids {
		mesh.Groups = append(mesh.Groups, Group{Block: id, Name: reg.Name(id), Positions: byID[id]})
	}
	return mesh, true
}

package world

import (
	"log"
	"slices"

	"voxelsim/internal/modlog"
	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

// ChunkStore is the authoritative in-memory world: live chunks keyed by
// chunk coordinate plus the modification log that outlives them.
//
// It has exactly one mutator. Readers on other goroutines (mesh workers)
// may only run while no mutation is in progress.
type ChunkStore struct {
	size, height int
	reg          *registry.Registry
	mods         *modlog.Log
	logger       *log.Logger

	chunks map[voxel.ChunkKey]*Chunk
}

// NewChunkStore creates an empty store. A nil logger uses log.Default().
func NewChunkStore(size, height int, reg *registry.Registry, mods *modlog.Log, logger *log.Logger) *ChunkStore {
	if mods == nil {
		mods = modlog.New()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ChunkStore{
		size:   size,
		height: height,
		reg:    reg,
		mods:   mods,
		logger: logger,
		chunks: make(map[voxel.ChunkKey]*Chunk),
	}
}

func (cs *ChunkStore) ChunkSize() int               { return cs.size }
func (cs *ChunkStore) MaxHeight() int               { return cs.height }
func (cs *ChunkStore) Registry() *registry.Registry { return cs.reg }
func (cs *ChunkStore) Modifications() *modlog.Log   { return cs.mods }

// Locate resolves a world coordinate to its chunk key and local coordinate
// using floor division, so negative coordinates map to the chunk below.
func (cs *ChunkStore) Locate(x, z int) (key voxel.ChunkKey, lx, lz int) {
	return voxel.KeyFor(x, z, cs.size), voxel.Mod(x, cs.size), voxel.Mod(z, cs.size)
}

// Chunk returns the live chunk for key.
func (cs *ChunkStore) Chunk(key voxel.ChunkKey) (*Chunk, bool) {
	c, ok := cs.chunks[key]
	return c, ok
}

// HasChunk checks if a chunk is loaded.
func (cs *ChunkStore) HasChunk(key voxel.ChunkKey) bool {
	_, ok := cs.chunks[key]
	return ok
}

// Keys returns the loaded chunk keys in sorted order.
func (cs *ChunkStore) Keys() []voxel.ChunkKey {
	keys := make([]voxel.ChunkKey, 0, len(cs.chunks))
	for k := range cs.chunks {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, voxel.CompareKeys)
	return keys
}

// Len returns the number of loaded chunks.
func (cs *ChunkStore) Len() int { return len(cs.chunks) }

// AddChunk installs a generated chunk and marks its loaded neighbours dirty,
// since faces along the shared seam may now be resolvable.
func (cs *ChunkStore) AddChunk(c *Chunk) {
	cs.chunks[c.Key] = c
	c.MarkDirty()
	for _, nk := range c.Key.Neighbors() {
		if nb, ok := cs.chunks[nk]; ok {
			nb.MarkDirty()
		}
	}
}

// RemoveChunk drops a chunk without flushing it.
func (cs *ChunkStore) RemoveChunk(key voxel.ChunkKey) (*Chunk, bool) {
	c, ok := cs.chunks[key]
	if ok {
		delete(cs.chunks, key)
		for _, nk := range key.Neighbors() {
			if nb, ok := cs.chunks[nk]; ok {
				nb.MarkDirty()
			}
		}
	}
	return c, ok
}

// ReadBlock returns the block at a world coordinate. Unloaded chunks and
// heights outside [0, maxHeight) read as air.
func (cs *ChunkStore) ReadBlock(x, y, z int) voxel.BlockID {
	if y < 0 || y >= cs.height {
		return voxel.Air
	}
	key, lx, lz := cs.Locate(x, z)
	c, ok := cs.chunks[key]
	if !ok {
		return voxel.Air
	}
	return c.Block(lx, y, lz)
}

// IsLoadedAt reports whether the chunk holding world column (x, z) is live.
func (cs *ChunkStore) IsLoadedAt(x, z int) bool {
	return cs.HasChunk(voxel.KeyFor(x, z, cs.size))
}

// PlaceBlock writes a block at a world coordinate, records it in the
// modification log and seeds a full fluid cell for fluid blocks. It returns
// false, logging a warning, when the chunk is not loaded or the target is
// out of range; the edit is dropped.
func (cs *ChunkStore) PlaceBlock(x, y, z int, id voxel.BlockID) bool {
	return cs.place(x, y, z, id, voxel.AxisNone)
}

// PlaceFluid places a fluid block whose lateral spread is restricted to
// axis. Non-fluid ids are rejected.
func (cs *ChunkStore) PlaceFluid(x, y, z int, id voxel.BlockID, axis voxel.Axis) bool {
	if !cs.reg.IsFluid(id) {
		cs.logger.Printf("world: PlaceFluid(%d,%d,%d): %s is not a fluid", x, y, z, cs.reg.Name(id))
		return false
	}
	return cs.place(x, y, z, id, axis)
}

func (cs *ChunkStore) place(x, y, z int, id voxel.BlockID, axis voxel.Axis) bool {
	defer profiling.Track("world.PlaceBlock")()
	if !cs.reg.Has(id) {
		cs.logger.Printf("world: place at %d,%d,%d: %v %d", x, y, z, registry.ErrUnknownBlock, id)
		return false
	}
	if y < 0 || y >= cs.height {
		cs.logger.Printf("world: place at %d,%d,%d: y out of [0,%d)", x, y, z, cs.height)
		return false
	}
	key, lx, lz := cs.Locate(x, z)
	c, ok := cs.chunks[key]
	if !ok {
		cs.logger.Printf("world: place at %d,%d,%d: chunk %s not loaded, edit dropped", x, y, z, key)
		return false
	}

	local := voxel.PackLocal(lx, y, lz)
	c.SetBlock(lx, y, lz, id)
	cs.mods.SetBlock(key, local, id)
	if cs.reg.IsFluid(id) {
		c.SetFluid(local, FluidCell{Block: id, Level: MaxFluidLevel, Axis: axis})
	}

	c.MarkDirty()
	for _, nk := range key.Neighbors() {
		cs.MarkDirty(nk)
	}
	return true
}

// UpdateBlock writes a block changed by a world rule rather than an edit.
// Generated cells stay out of the modification log; a cell that already
// carries an edit has its entry replaced so a reload replays what the cell
// reads now.
func (cs *ChunkStore) UpdateBlock(x, y, z int, id voxel.BlockID) bool {
	key, lx, lz := cs.Locate(x, z)
	c, ok := cs.chunks[key]
	if !ok || !c.SetBlock(lx, y, lz, id) {
		return false
	}
	local := voxel.PackLocal(lx, y, lz)
	if _, edited := cs.mods.Get(key, local); edited {
		cs.mods.SetBlock(key, local, id)
	}
	cs.MarkDirtyAt(x, z)
	return true
}

// MarkDirty flags a loaded chunk for remeshing. Unloaded keys are ignored.
func (cs *ChunkStore) MarkDirty(key voxel.ChunkKey) {
	if c, ok := cs.chunks[key]; ok {
		c.MarkDirty()
	}
}

// MarkDirtyAt flags the chunk holding (x, z) and, when the cell sits on a
// chunk border, the neighbour across that border.
func (cs *ChunkStore) MarkDirtyAt(x, z int) {
	key, lx, lz := cs.Locate(x, z)
	cs.MarkDirty(key)
	if lx == 0 {
		cs.MarkDirty(voxel.ChunkKey{CX: key.CX - 1, CZ: key.CZ})
	} else if lx == cs.size-1 {
		cs.MarkDirty(voxel.ChunkKey{CX: key.CX + 1, CZ: key.CZ})
	}
	if lz == 0 {
		cs.MarkDirty(voxel.ChunkKey{CX: key.CX, CZ: key.CZ - 1})
	} else if lz == cs.size-1 {
		cs.MarkDirty(voxel.ChunkKey{CX: key.CX, CZ: key.CZ + 1})
	}
}

// DirtyKeys returns the loaded chunks awaiting a remesh, sorted.
func (cs *ChunkStore) DirtyKeys() []voxel.ChunkKey {
	var keys []voxel.ChunkKey
	for k, c := range cs.chunks {
		if c.IsDirty() {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, voxel.CompareKeys)
	return keys
}

// DrainDirty returns the dirty chunks, sorted, and marks them clean. The
// caller owns the remesh of every key it gets back.
func (cs *ChunkStore) DrainDirty() []voxel.ChunkKey {
	keys := cs.DirtyKeys()
	for _, k := range keys {
		cs.chunks[k].SetClean()
	}
	return keys
}

// FlushFluids copies the chunk's live fluid cells into the modification log
// as plain blocks and returns how many were written. Levels and flow axes
// are not persisted: a reloaded chunk gets its fluid back as full sources.
func (cs *ChunkStore) FlushFluids(key voxel.ChunkKey) int {
	c, ok := cs.chunks[key]
	if !ok {
		return 0
	}
	for _, local := range c.FluidKeys() {
		f, _ := c.Fluid(local)
		cs.mods.SetBlock(key, local, f.Block)
	}
	return c.FluidCount()
}

// FlushAll flushes the fluid state of every loaded chunk.
func (cs *ChunkStore) FlushAll() int {
	n := 0
	for _, k := range cs.Keys() {
		n += cs.FlushFluids(k)
	}
	return n
}

package world

import (
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"voxelsim/internal/profiling"
	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
)

// RenderBoundary releases the drawables built for an evicted chunk.
type RenderBoundary interface {
	ReleaseDrawables(key voxel.ChunkKey)
}

// StreamerOptions configures a ChunkStreamer.
type StreamerOptions struct {
	LoadRadius int
	Dimension  terrain.Dimension
	// Workers bounds parallel terrain generation. Chunks are always
	// installed on the calling goroutine in sorted order.
	Workers int
	// OnEvict, if set, runs once an evicted chunk's fluid has been flushed
	// into the modification log and before the chunk leaves the store.
	OnEvict func(key voxel.ChunkKey)
}

// LoadReport describes what one EnsureLoaded call did.
type LoadReport struct {
	Center  voxel.ChunkKey
	Changed bool
	Loaded  []voxel.ChunkKey
	Evicted []voxel.ChunkKey
}

// ChunkStreamer keeps the chunks within a Chebyshev radius of the observer
// loaded and evicts the rest.
type ChunkStreamer struct {
	store  *ChunkStore
	gen    *terrain.Generator
	render RenderBoundary
	opts   StreamerOptions

	center voxel.ChunkKey
	primed bool
}

// NewChunkStreamer creates a streamer. render may be nil.
func NewChunkStreamer(store *ChunkStore, gen *terrain.Generator, render RenderBoundary, opts StreamerOptions) *ChunkStreamer {
	opts.Workers = max(opts.Workers, 1)
	opts.LoadRadius = max(opts.LoadRadius, 0)
	return &ChunkStreamer{
		store:  store,
		gen:    gen,
		render: render,
		opts:   opts,
	}
}

// Center returns the chunk the observer was last seen in.
func (cs *ChunkStreamer) Center() voxel.ChunkKey { return cs.center }

// Radius returns the load radius in chunks.
func (cs *ChunkStreamer) Radius() int { return cs.opts.LoadRadius }

// EnsureLoaded streams chunks around an observer world position. It does
// nothing until the observer crosses into another chunk.
func (cs *ChunkStreamer) EnsureLoaded(pos mgl32.Vec3) LoadReport {
	p := voxel.FloorPos(pos.X(), pos.Y(), pos.Z())
	center := voxel.KeyFor(p.X, p.Z, cs.store.ChunkSize())
	if cs.primed && center == cs.center {
		return LoadReport{Center: center}
	}
	defer profiling.Track("world.EnsureLoaded")()
	cs.primed = true
	cs.center = center

	report := LoadReport{Center: center, Changed: true}
	for _, k := range cs.store.Keys() {
		if k.Chebyshev(center) > cs.opts.LoadRadius && cs.Evict(k) {
			report.Evicted = append(report.Evicted, k)
		}
	}

	var missing []voxel.ChunkKey
	r := cs.opts.LoadRadius
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			k := voxel.ChunkKey{CX: center.CX + dx, CZ: center.CZ + dz}
			if !cs.store.HasChunk(k) {
				missing = append(missing, k)
			}
		}
	}
	for _, c := range cs.generate(missing) {
		cs.store.AddChunk(c)
		report.Loaded = append(report.Loaded, c.Key)
	}
	return report
}

// Evict flushes a chunk's live fluid into the modification log, runs the
// OnEvict hook, removes it from the store and then asks the render boundary
// to release it.
//
// Flushed fluid comes back on reload as static full-level sources: its
// level, flow axis and whether it was still spreading are lost.
func (cs *ChunkStreamer) Evict(key voxel.ChunkKey) bool {
	if !cs.store.HasChunk(key) {
		return false
	}
	cs.store.FlushFluids(key)
	if cs.opts.OnEvict != nil {
		cs.opts.OnEvict(key)
	}
	cs.store.RemoveChunk(key)
	if cs.render != nil {
		cs.render.ReleaseDrawables(key)
	}
	return true
}

// LoadChunk generates and installs one chunk synchronously if missing.
func (cs *ChunkStreamer) LoadChunk(key voxel.ChunkKey) *Chunk {
	if c, ok := cs.store.Chunk(key); ok {
		return c
	}
	c := cs.generate([]voxel.ChunkKey{key})[0]
	cs.store.AddChunk(c)
	return c
}

type generated struct {
	req  terrain.Request
	grid *voxel.Grid
}

// generate builds chunks for keys, running terrain generation on up to
// Workers goroutines. Modification replay happens afterwards on the caller.
func (cs *ChunkStreamer) generate(keys []voxel.ChunkKey) []*Chunk {
	if len(keys) == 0 {
		return nil
	}
	defer profiling.Track("world.generate")()
	out := make([]generated, len(keys))
	size, height := cs.store.ChunkSize(), cs.store.MaxHeight()

	var g errgroup.Group
	g.SetLimit(cs.opts.Workers)
	for i, k := range keys {
		g.Go(func() error {
			req := cs.gen.Plan(k, size, height, cs.opts.Dimension)
			out[i] = generated{req: req, grid: cs.gen.Generate(req, cs.gen.DecorationRNG(k, cs.opts.Dimension))}
			return nil
		})
	}
	_ = g.Wait()

	chunks := make([]*Chunk, len(out))
	for i, gen := range out {
		chunks[i] = cs.assemble(gen.req, gen.grid)
	}
	return chunks
}

// assemble replays logged edits over a generated grid and seeds fluid cells
// for replayed fluid blocks.
func (cs *ChunkStreamer) assemble(req terrain.Request, grid *voxel.Grid) *Chunk {
	res := cs.store.Modifications().Apply(req.Key, grid, cs.store.Registry())
	if res.Skipped > 0 {
		cs.store.logger.Printf("world: chunk %s: skipped %d malformed modifications", req.Key, res.Skipped)
	}
	c := NewChunk(req.Key, grid, req.Biome, req.Dimension)
	for _, local := range res.Fluids {
		x, y, z := local.Unpack()
		c.SetFluid(local, FluidCell{Block: grid.At(x, y, z), Level: MaxFluidLevel})
	}
	return c
}

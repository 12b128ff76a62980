// Package game wires the world, fluid, random tick, meshing and physics
// components into one tick-driven engine with a single mutating goroutine.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelsim/internal/config"
	"voxelsim/internal/fluid"
	"voxelsim/internal/meshing"
	"voxelsim/internal/modlog"
	"voxelsim/internal/physics"
	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/terrain"
	"voxelsim/internal/ticks"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

// ErrStopped is returned by Do once the engine loop has exited.
var ErrStopped = errors.New("engine stopped")

// Renderer is the render boundary: it receives exposed-block lists for
// chunks that changed and releases drawables for evicted ones.
type Renderer interface {
	world.RenderBoundary
	UploadChunk(mesh meshing.ChunkMesh)
}

// FrameStats summarises one Update.
type FrameStats struct {
	Tick     uint64
	Load     world.LoadReport
	Fluid    fluid.PassStats
	Ticked   int
	Remeshed int
	Duration time.Duration
}

// ChunkSink persists the edits of a chunk when it is evicted.
type ChunkSink interface {
	SaveChunk(ctx context.Context, key voxel.ChunkKey, entries []modlog.Entry) error
}

type request struct {
	fn   func(*Engine) error
	done chan error
}

// NewGenerator builds the terrain generator and dimension described by cfg.
func NewGenerator(cfg config.Config) (*terrain.Generator, terrain.Dimension, error) {
	dim, err := terrain.ParseDimension(cfg.World.Dimension)
	if err != nil {
		return nil, dim, fmt.Errorf("world.dimension: %w", err)
	}
	table := make(terrain.Table, len(cfg.Biomes))
	for name, b := range cfg.Biomes {
		table[name] = terrain.Params{HeightScale: b.HeightScale, WaterLevel: b.WaterLevel}
	}
	return terrain.New(cfg.World.Seed, table, cfg.World.DeterministicDecoration), dim, nil
}

// Engine owns every simulation component. All methods other than Do must be
// called from the goroutine driving Update (normally Run).
type Engine struct {
	cfg    config.Config
	logger *log.Logger

	reg      *registry.Registry
	store    *world.ChunkStore
	gen      *terrain.Generator
	streamer *world.ChunkStreamer
	fluids   *fluid.Simulator
	ticker   *ticks.RandomTicker
	pool     *meshing.WorkerPool
	renderer Renderer
	sink     ChunkSink

	observer mgl32.Vec3
	tick     uint64

	inbox   chan request
	stopped chan struct{}
}

// NewEngine builds an engine from cfg. mods carries edits from a previous
// run and may be nil; renderer may be nil for headless use.
func NewEngine(cfg config.Config, mods *modlog.Log, renderer Renderer, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	reg := registry.Default()
	gen, dim, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	store := world.NewChunkStore(cfg.World.ChunkSize, cfg.World.MaxHeight, reg, mods, logger)

	species := make([]fluid.Species, 0, len(cfg.Fluids))
	for _, f := range cfg.Fluids {
		id, err := reg.ByName(f.Block)
		if err != nil {
			return nil, fmt.Errorf("fluids: %w", err)
		}
		species = append(species, fluid.Species{Block: id, TickRate: f.TickRate, SpreadChance: f.SpreadChance})
	}
	seed := uint64(cfg.World.Seed)
	sim, err := fluid.NewSimulator(store, species, rand.New(rand.NewPCG(seed, 0xf1d)))
	if err != nil {
		return nil, err
	}
	ticker := ticks.NewRandomTicker(store, cfg.RandomTicks.TickRate, cfg.RandomTicks.PerChunk, rand.New(rand.NewPCG(seed, 0x71c)))

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		reg:      reg,
		store:    store,
		gen:      gen,
		fluids:   sim,
		ticker:   ticker,
		pool:     meshing.NewWorkerPool(cfg.World.MeshWorkers, 64),
		renderer: renderer,
		inbox:    make(chan request, 256),
		stopped:  make(chan struct{}),
	}

	var boundary world.RenderBoundary
	if renderer != nil {
		boundary = renderer
	}
	e.streamer = world.NewChunkStreamer(store, gen, boundary, world.StreamerOptions{
		LoadRadius: cfg.World.LoadRadius,
		Dimension:  dim,
		Workers:    cfg.World.GenerateWorkers,
		OnEvict:    e.persistChunk,
	})
	return e, nil
}

// SetChunkSink makes eviction write each evicted chunk's edits to sink.
// Call it before Run.
func (e *Engine) SetChunkSink(sink ChunkSink) { e.sink = sink }

func (e *Engine) persistChunk(key voxel.ChunkKey) {
	if e.sink == nil {
		return
	}
	entries := e.store.Modifications().Chunk(key)
	if len(entries) == 0 {
		return
	}
	if err := e.sink.SaveChunk(context.Background(), key, entries); err != nil {
		e.logger.Printf("engine: persist chunk %s: %v", key, err)
	}
}

func (e *Engine) Config() config.Config         { return e.cfg }
func (e *Engine) Registry() *registry.Registry  { return e.reg }
func (e *Engine) Store() *world.ChunkStore      { return e.store }
func (e *Engine) Generator() *terrain.Generator { return e.gen }
func (e *Engine) Tick() uint64                  { return e.tick }

// Observer returns the position chunk streaming is centred on.
func (e *Engine) Observer() mgl32.Vec3 { return e.observer }

// SetObserver moves the streaming centre; the next Update loads around it.
func (e *Engine) SetObserver(pos mgl32.Vec3) { e.observer = pos }

// Update advances the world by delta seconds: stream chunks around the
// observer, run due fluid passes and random ticks, then remesh every dirty
// chunk and hand the results to the renderer.
func (e *Engine) Update(delta float64) FrameStats {
	defer profiling.Track("game.Update")()
	start := time.Now()
	e.tick++
	st := FrameStats{Tick: e.tick}

	st.Load = e.streamer.EnsureLoaded(e.observer)
	st.Fluid = e.fluids.Update(delta)
	st.Ticked = e.ticker.Update(delta)
	st.Remeshed = e.remesh()

	st.Duration = time.Since(start)
	return st
}

func (e *Engine) remesh() int {
	defer profiling.Track("game.remesh")()
	keys := e.store.DrainDirty()
	if len(keys) == 0 {
		return 0
	}
	n := 0
	for _, r := range e.pool.BuildAll(e.store, keys) {
		if !r.Loaded {
			continue
		}
		n++
		if e.renderer != nil {
			e.renderer.UploadChunk(r.Mesh)
		}
	}
	return n
}

// Meshes builds the current visibility lists of every loaded chunk, for a
// renderer that attaches after chunks were already streamed.
func (e *Engine) Meshes() []meshing.ChunkMesh {
	results := e.pool.BuildAll(e.store, e.store.Keys())
	out := make([]meshing.ChunkMesh, 0, len(results))
	for _, r := range results {
		if r.Loaded {
			out = append(out, r.Mesh)
		}
	}
	return out
}

// Place writes a block at a world position. It reports false when the
// target chunk is not loaded or the edit is invalid.
func (e *Engine) Place(p voxel.Pos, id voxel.BlockID) bool {
	return e.store.PlaceBlock(p.X, p.Y, p.Z, id)
}

// PlaceFluid places a fluid source whose spread is limited to axis.
func (e *Engine) PlaceFluid(p voxel.Pos, id voxel.BlockID, axis voxel.Axis) bool {
	return e.store.PlaceFluid(p.X, p.Y, p.Z, id, axis)
}

// PlaceRay casts from origin along dir within reach and places id against
// the face it hits; air breaks the hit block instead. It returns the cell
// that was written.
func (e *Engine) PlaceRay(origin, dir mgl32.Vec3, id voxel.BlockID) (voxel.Pos, bool) {
	hit := physics.Raycast(e.store, e.reg, origin, dir, physics.MaxReachDistance)
	if !hit.Hit || hit.Distance < physics.MinReachDistance {
		return voxel.Pos{}, false
	}
	target := hit.AdjacentPosition
	if id == voxel.Air {
		target = hit.HitPosition
	} else if e.reg.IsSolid(id) && physics.PlayerCollider().Box(e.observer).Intersects(physics.CellBox(target.X, target.Y, target.Z)) {
		return voxel.Pos{}, false
	}
	return target, e.Place(target, id)
}

// Collide resolves an entity with the player collider against the loaded
// world, mutating pos and vel.
func (e *Engine) Collide(pos, vel *mgl32.Vec3) physics.Result {
	return physics.Resolve(e.store, e.reg, pos, physics.PlayerCollider(), vel)
}

// Do runs fn on the engine goroutine before the next tick and waits for it.
// It is the only method safe to call from other goroutines.
func (e *Engine) Do(ctx context.Context, fn func(*Engine) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case e.inbox <- req:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) drain() {
	for {
		select {
		case req := <-e.inbox:
			req.done <- req.fn(e)
		default:
			return
		}
	}
}

// Run drives Update at server.tick_hz until ctx is cancelled, running
// queued Do requests before each tick. Slow ticks are logged with their top
// profiled sections.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	limiter := NewLimiter(e.cfg.Server.TickHz)
	slow := time.Duration(e.cfg.Server.SlowFrameMs) * time.Millisecond
	last := time.Now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		profiling.ResetFrame()
		e.drain()

		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now
		st := e.Update(dt)
		if slow > 0 && st.Duration > slow {
			e.logger.Printf("Slow tick %d: %v. Top tasks: %s", st.Tick, st.Duration, profiling.TopN(5))
		}
		if !limiter.Wait(ctx) {
			return ctx.Err()
		}
	}
}

// Shutdown flushes every live chunk's fluid into the modification log and
// stops the mesh workers. Call it after Run has returned.
func (e *Engine) Shutdown() int {
	n := e.store.FlushAll()
	e.pool.Shutdown()
	return n
}

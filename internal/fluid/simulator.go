// Package fluid runs the leveled fluid automaton over the live chunks of a
// world.ChunkStore.
package fluid

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

// Species is one fluid block with its own cadence and spread probability.
type Species struct {
	Block        voxel.BlockID
	TickRate     float64 // seconds between passes
	SpreadChance float64 // per-neighbour probability of a lateral spread attempt
}

// PassStats summarises one or more simulation passes.
type PassStats struct {
	Passes  int
	Updates int
	Chunks  []voxel.ChunkKey
}

// Simulator owns a tick accumulator per species. Chunks that are not loaded
// are skipped, so their fluid pauses until they return.
type Simulator struct {
	store   *world.ChunkStore
	reg     *registry.Registry
	species []Species
	acc     []float64
	rng     *rand.Rand
}

// NewSimulator validates species against the store's registry. rng drives
// the stochastic spread and must not be shared with other goroutines.
func NewSimulator(store *world.ChunkStore, species []Species, rng *rand.Rand) (*Simulator, error) {
	reg := store.Registry()
	for _, sp := range species {
		if !reg.IsFluid(sp.Block) {
			return nil, fmt.Errorf("fluid: block %d (%s) is not a fluid", sp.Block, reg.Name(sp.Block))
		}
		if sp.TickRate <= 0 {
			return nil, fmt.Errorf("fluid: %s tick rate must be positive", reg.Name(sp.Block))
		}
	}
	return &Simulator{
		store:   store,
		reg:     reg,
		species: slices.Clone(species),
		acc:     make([]float64, len(species)),
		rng:     rng,
	}, nil
}

// Update advances every species accumulator by delta seconds and runs a
// pass for each species whose accumulator reached its tick rate.
func (s *Simulator) Update(delta float64) PassStats {
	var total PassStats
	changed := make(map[voxel.ChunkKey]bool)
	for i, sp := range s.species {
		s.acc[i] += delta
		if s.acc[i] < sp.TickRate {
			continue
		}
		s.acc[i] = 0
		st := s.Pass(sp)
		total.Passes++
		total.Updates += st.Updates
		for _, k := range st.Chunks {
			changed[k] = true
		}
	}
	for k := range changed {
		total.Chunks = append(total.Chunks, k)
	}
	slices.SortFunc(total.Chunks, voxel.CompareKeys)
	return total
}

type proposal struct {
	level uint8
	axis  voxel.Axis
}

var (
	allDirs = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	xDirs   = [][2]int{{1, 0}, {-1, 0}}
	zDirs   = [][2]int{{0, 1}, {0, -1}}
)

func lateral(axis voxel.Axis) [][2]int {
	switch axis {
	case voxel.AxisX:
		return xDirs
	case voxel.AxisZ:
		return zDirs
	}
	return allDirs
}

// Pass runs one simulation step for sp over every loaded chunk. Updates are
// computed against a stable snapshot and applied together at the end; an
// update only lands if it raises the target's level.
func (s *Simulator) Pass(sp Species) PassStats {
	defer profiling.Track("fluid.Pass")()
	proposals := make(map[voxel.Pos]proposal)
	var order []voxel.Pos
	propose := func(p voxel.Pos, pr proposal) {
		if cur, ok := proposals[p]; ok {
			if pr.level > cur.level {
				proposals[p] = pr
			}
			return
		}
		proposals[p] = pr
		order = append(order, p)
	}

	size := s.store.ChunkSize()
	for _, key := range s.store.Keys() {
		c, _ := s.store.Chunk(key)
		ox, oz := key.Origin(size)
		for _, local := range c.FluidKeys() {
			cell, _ := c.Fluid(local)
			if cell.Block != sp.Block {
				continue
			}
			lx, y, lz := local.Unpack()
			wx, wz := ox+lx, oz+lz
			if y == 0 {
				continue
			}

			below := c.Block(lx, y-1, lz)
			if below == voxel.Air {
				propose(voxel.Pos{X: wx, Y: y - 1, Z: wz}, proposal{level: world.MaxFluidLevel})
				continue
			}
			if below == sp.Block {
				if bf, ok := c.Fluid(voxel.PackLocal(lx, y-1, lz)); ok && bf.Level < world.MaxFluidLevel {
					propose(voxel.Pos{X: wx, Y: y - 1, Z: wz}, proposal{level: world.MaxFluidLevel, axis: bf.Axis})
				}
				continue
			}
			if !s.reg.IsSolid(below) || cell.Level <= 1 {
				continue
			}

			for _, d := range lateral(cell.Axis) {
				if s.rng.Float64() >= sp.SpreadChance {
					continue
				}
				nx, nz := wx+d[0], wz+d[1]
				if !s.store.IsLoadedAt(nx, nz) || s.store.ReadBlock(nx, y, nz) != voxel.Air {
					continue
				}
				propose(voxel.Pos{X: nx, Y: y, Z: nz}, proposal{level: cell.Level - 1, axis: cell.Axis})
			}
		}
	}

	var st PassStats
	st.Passes = 1
	changed := make(map[voxel.ChunkKey]bool)
	for _, p := range order {
		pr := proposals[p]
		key, lx, lz := s.store.Locate(p.X, p.Z)
		c, ok := s.store.Chunk(key)
		if !ok {
			continue
		}
		local := voxel.PackLocal(lx, p.Y, lz)
		if cur, ok := c.Fluid(local); ok && cur.Level >= pr.level {
			continue
		}
		if b := c.Block(lx, p.Y, lz); b != voxel.Air && b != sp.Block {
			continue
		}
		c.SetFluid(local, world.FluidCell{Block: sp.Block, Level: pr.level, Axis: pr.axis})
		s.store.MarkDirtyAt(p.X, p.Z)
		changed[key] = true
		st.Updates++
	}
	for k := range changed {
		st.Chunks = append(st.Chunks, k)
	}
	slices.SortFunc(st.Chunks, voxel.CompareKeys)
	return st
}

// Package modlog records player edits as a sparse overlay over generated
// terrain. The log survives chunk eviction and is replayed whenever a chunk
// is generated again.
package modlog

import (
	"cmp"
	"log"
	"slices"

	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

// Removed marks a cell that must read as air whatever generation produced.
const Removed int32 = -1

// Entry is one logged cell.
type Entry struct {
	Local voxel.LocalKey
	Value int32
}

// Log maps chunk keys to per-cell overrides. It grows monotonically and is
// never compacted. Not safe for concurrent mutation.
type Log struct {
	chunks map[voxel.ChunkKey]map[voxel.LocalKey]int32
}

func New() *Log {
	return &Log{chunks: make(map[voxel.ChunkKey]map[voxel.LocalKey]int32)}
}

// Set records value for a cell, replacing any previous entry.
func (l *Log) Set(key voxel.ChunkKey, local voxel.LocalKey, value int32) {
	m, ok := l.chunks[key]
	if !ok {
		m = make(map[voxel.LocalKey]int32)
		l.chunks[key] = m
	}
	m[local] = value
}

// SetBlock records a block write, using Removed for air.
func (l *Log) SetBlock(key voxel.ChunkKey, local voxel.LocalKey, id voxel.BlockID) {
	if id == voxel.Air {
		l.Set(key, local, Removed)
		return
	}
	l.Set(key, local, int32(id))
}

func (l *Log) Get(key voxel.ChunkKey, local voxel.LocalKey) (int32, bool) {
	v, ok := l.chunks[key][local]
	return v, ok
}

// Chunk returns the entries for one chunk ordered by local key.
func (l *Log) Chunk(key voxel.ChunkKey) []Entry {
	m := l.chunks[key]
	out := make([]Entry, 0, len(m))
	for k, v := range m {
		out = append(out, Entry{Local: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Local, b.Local) })
	return out
}

// HasChunk reports whether any entry exists for key.
func (l *Log) HasChunk(key voxel.ChunkKey) bool {
	return len(l.chunks[key]) > 0
}

// Keys returns every chunk with entries, sorted.
func (l *Log) Keys() []voxel.ChunkKey {
	out := make([]voxel.ChunkKey, 0, len(l.chunks))
	for k := range l.chunks {
		out = append(out, k)
	}
	slices.SortFunc(out, voxel.CompareKeys)
	return out
}

// Len returns the total number of logged cells.
func (l *Log) Len() int {
	n := 0
	for _, m := range l.chunks {
		n += len(m)
	}
	return n
}

// Merge copies every entry of o into l, o winning on conflicts.
func (l *Log) Merge(o *Log) {
	for key, m := range o.chunks {
		for local, v := range m {
			l.Set(key, local, v)
		}
	}
}

// ApplyResult reports what a replay did to one chunk.
type ApplyResult struct {
	Applied int
	Skipped int
	// Fluids lists cells whose replayed value is a fluid block. The caller
	// seeds them as full-strength fluid cells.
	Fluids []voxel.LocalKey
}

// Apply replays the entries for key over a freshly generated grid. Removed
// forces air and any other value overwrites the cell. Entries outside the
// grid or naming unknown blocks are skipped and the rest still apply.
func (l *Log) Apply(key voxel.ChunkKey, grid *voxel.Grid, reg *registry.Registry) ApplyResult {
	var res ApplyResult
	for _, e := range l.Chunk(key) {
		x, y, z := e.Local.Unpack()
		if !grid.InBounds(x, y, z) {
			log.Printf("modlog: chunk %s: skipping out-of-bounds entry %s", key, e.Local)
			res.Skipped++
			continue
		}
		id := voxel.Air
		if e.Value != Removed {
			if e.Value < 0 || !reg.Has(voxel.BlockID(e.Value)) {
				log.Printf("modlog: chunk %s: skipping unknown block %d at %s", key, e.Value, e.Local)
				res.Skipped++
				continue
			}
			id = voxel.BlockID(e.Value)
		}
		grid.Set(x, y, z, id)
		res.Applied++
		if reg.IsFluid(id) {
			res.Fluids = append(res.Fluids, e.Local)
		}
	}
	return res
}

// Package physics resolves entity boxes against the voxel grid and casts
// rays through it. Block (x, y, z) occupies the unit cell [x, x+1) on each
// axis.
package physics

import (
	"cmp"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

// BlockReader is the read side of the chunk store. Unloaded or out of range
// cells must read as air.
type BlockReader interface {
	ReadBlock(x, y, z int) voxel.BlockID
}

// AABB is an axis-aligned box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// CellBox returns the box of the block at (x, y, z).
func CellBox(x, y, z int) AABB {
	lo := mgl32.Vec3{float32(x), float32(y), float32(z)}
	return AABB{Min: lo, Max: lo.Add(mgl32.Vec3{1, 1, 1})}
}

// Intersects reports a strict overlap; boxes that only touch do not
// intersect.
func (a AABB) Intersects(b AABB) bool {
	return a.Min.X() < b.Max.X() && a.Max.X() > b.Min.X() &&
		a.Min.Y() < b.Max.Y() && a.Max.Y() > b.Min.Y() &&
		a.Min.Z() < b.Max.Z() && a.Max.Z() > b.Min.Z()
}

// Collider is a fixed-size box whose centre sits at position - Offset.
type Collider struct {
	Size   mgl32.Vec3
	Offset mgl32.Vec3
}

// PlayerCollider is the 0.6 x 2 x 0.6 player box, centred one block below
// the eye position.
func PlayerCollider() Collider {
	return Collider{Size: mgl32.Vec3{0.6, 2, 0.6}, Offset: mgl32.Vec3{0, 1, 0}}
}

// Box returns the collider's box for an entity at pos.
func (c Collider) Box(pos mgl32.Vec3) AABB {
	centre := pos.Sub(c.Offset)
	half := c.Size.Mul(0.5)
	return AABB{Min: centre.Sub(half), Max: centre.Add(half)}
}

// Result reports what a resolution did.
type Result struct {
	OnGround bool
	Contacts int
}

const (
	// skin is the clearance of the fallback push used when no exit from a
	// cell is free of every other solid cell.
	skin      = 1e-4
	maxPasses = 8
)

// Resolve pushes the entity at *pos out of every solid cell its box
// overlaps, one cell at a time along the axis of least overlap, and zeroes
// the matching component of *vel. The box is rebuilt from the updated
// position before every test so resolving one cell cannot hide a
// penetration into another.
// OnGround is set when some push was upward.
func Resolve(r BlockReader, reg *registry.Registry, pos *mgl32.Vec3, col Collider, vel *mgl32.Vec3) Result {
	defer profiling.Track("physics.Resolve")()
	var res Result
	for pass := 0; pass < maxPasses; pass++ {
		box := col.Box(*pos)
		x0, y0, z0 := floor(box.Min.X()), floor(box.Min.Y()), floor(box.Min.Z())
		x1, y1, z1 := floor(box.Max.X()), floor(box.Max.Y()), floor(box.Max.Z())

		pushed := false
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				for z := z0; z <= z1; z++ {
					if !reg.IsSolid(r.ReadBlock(x, y, z)) {
						continue
					}
					cell := CellBox(x, y, z)
					if !col.Box(*pos).Intersects(cell) {
						continue
					}
					axis, to := exit(r, reg, *pos, col, cell)
					if axis == 1 && to > (*pos)[1] {
						res.OnGround = true
					}
					(*pos)[axis] = to
					(*vel)[axis] = 0
					res.Contacts++
					pushed = true
				}
			}
		}
		if !pushed {
			break
		}
	}
	return res
}

type candidate struct {
	axis int
	to   float32
	dist float32
}

// exit picks the coordinate that moves the collider at pos out of cell. Of
// the exits no farther than the least-overlap push, the nearest one that
// leaves the box clear of every solid cell wins, so a box flush against one
// face is never pushed through the opposite one. Without such an exit the
// least-overlap push is used and later passes resolve what it hits.
func exit(r BlockReader, reg *registry.Registry, pos mgl32.Vec3, col Collider, cell AABB) (int, float32) {
	axis, push := leastOverlap(col.Box(pos), cell)
	limit := float32(math.Abs(float64(push))) + skin

	half := col.Size.Mul(0.5)
	cands := make([]candidate, 0, 12)
	for i := 0; i < 3; i++ {
		below := cell.Min[i] - half[i] + col.Offset[i]
		above := cell.Max[i] + half[i] + col.Offset[i]
		for _, to := range [...]float32{below, below - skin, above, above + skin} {
			if d := float32(math.Abs(float64(to - pos[i]))); d <= limit {
				cands = append(cands, candidate{axis: i, to: to, dist: d})
			}
		}
	}
	slices.SortStableFunc(cands, func(a, b candidate) int { return cmp.Compare(a.dist, b.dist) })
	for _, c := range cands {
		trial := pos
		trial[c.axis] = c.to
		if !Overlaps(r, reg, trial, col) {
			return c.axis, c.to
		}
	}
	return axis, pos[axis] + push
}

// leastOverlap returns the axis with the smallest penetration depth and the
// signed distance, including skin, that separates a from b along it.
func leastOverlap(a, b AABB) (int, float32) {
	axis := -1
	var best, push float32
	for i := 0; i < 3; i++ {
		down := a.Max[i] - b.Min[i] // move a towards -axis
		up := b.Max[i] - a.Min[i]   // move a towards +axis
		depth, p := up, up+skin
		if down < up {
			depth, p = down, -(down + skin)
		}
		if axis < 0 || depth < best {
			axis, best, push = i, depth, p
		}
	}
	return axis, push
}

func floor(v float32) int {
	return int(math.Floor(float64(v)))
}

// Overlaps reports whether the collider at pos intersects any solid cell.
func Overlaps(r BlockReader, reg *registry.Registry, pos mgl32.Vec3, col Collider) bool {
	box := col.Box(pos)
	for x := floor(box.Min.X()); x <= floor(box.Max.X()); x++ {
		for y := floor(box.Min.Y()); y <= floor(box.Max.Y()); y++ {
			for z := floor(box.Min.Z()); z <= floor(box.Max.Z()); z++ {
				if reg.IsSolid(r.ReadBlock(x, y, z)) && box.Intersects(CellBox(x, y, z)) {
					return true
				}
			}
		}
	}
	return false
}

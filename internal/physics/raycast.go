package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelsim/internal/profiling"
	"voxelsim/internal/registry"
	"voxelsim/internal/voxel"
)

const (
	MinReachDistance = 0.1
	MaxReachDistance = 5.0
)

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	HitPosition      voxel.Pos
	AdjacentPosition voxel.Pos // cell in front of the hit face, where a placed block goes
	Normal           voxel.Pos
	Distance         float32
	Block            voxel.BlockID
	Hit              bool
}

// Raycast walks the cells along the ray with a voxel DDA and returns the
// first non-air, non-fluid block within maxDist. dir need not be normalised.
func Raycast(r BlockReader, reg *registry.Registry, origin, dir mgl32.Vec3, maxDist float32) RaycastResult {
	defer profiling.Track("physics.Raycast")()
	if dir.Len() == 0 {
		return RaycastResult{}
	}
	dir = dir.Normalize()

	cell := [3]int{floor(origin.X()), floor(origin.Y()), floor(origin.Z())}
	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		d := float64(dir[i])
		o := float64(origin[i])
		switch {
		case d > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - o) / d
			tDelta[i] = 1 / d
		case d < 0:
			step[i] = -1
			tMax[i] = (o - float64(cell[i])) / -d
			tDelta[i] = -1 / d
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	hittable := func(id voxel.BlockID) bool {
		return id != voxel.Air && !reg.IsFluid(id)
	}

	var normal [3]int
	t := 0.0
	for t <= float64(maxDist) {
		id := r.ReadBlock(cell[0], cell[1], cell[2])
		if hittable(id) {
			hit := voxel.Pos{X: cell[0], Y: cell[1], Z: cell[2]}
			n := voxel.Pos{X: normal[0], Y: normal[1], Z: normal[2]}
			return RaycastResult{
				HitPosition:      hit,
				AdjacentPosition: hit.Add(n.X, n.Y, n.Z),
				Normal:           n,
				Distance:         float32(t),
				Block:            id,
				Hit:              true,
			}
		}
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		tMax[axis] += tDelta[axis]
		cell[axis] += step[axis]
		normal = [3]int{}
		normal[axis] = -step[axis]
	}
	return RaycastResult{}
}

package voxel

import (
	"fmt"
	"math"
)

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Mod returns a modulo b in [0, b) for positive b.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Pos is an integer world (or local) block coordinate.
type Pos struct {
	X, Y, Z int
}

func (p Pos) Add(dx, dy, dz int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// FloorPos returns the block containing the given world-space point.
func FloorPos(x, y, z float32) Pos {
	return Pos{
		X: int(math.Floor(float64(x))),
		Y: int(math.Floor(float64(y))),
		Z: int(math.Floor(float64(z))),
	}
}

// ChunkKey addresses one column chunk on the horizontal chunk grid.
type ChunkKey struct {
	CX, CZ int
}

// KeyFor returns the chunk containing world column (wx, wz).
func KeyFor(wx, wz, size int) ChunkKey {
	return ChunkKey{CX: FloorDiv(wx, size), CZ: FloorDiv(wz, size)}
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%d,%d", k.CX, k.CZ)
}

// Chebyshev returns max(|dx|, |dz|) between two chunk keys.
func (k ChunkKey) Chebyshev(o ChunkKey) int {
	dx := k.CX - o.CX
	if dx < 0 {
		dx = -dx
	}
	dz := k.CZ - o.CZ
	if dz < 0 {
		dz = -dz
	}
	return max(dx, dz)
}

// Neighbors returns the four horizontally adjacent chunk keys.
func (k ChunkKey) Neighbors() [4]ChunkKey {
	return [4]ChunkKey{
		{CX: k.CX + 1, CZ: k.CZ},
		{CX: k.CX - 1, CZ: k.CZ},
		{CX: k.CX, CZ: k.CZ + 1},
		{CX: k.CX, CZ: k.CZ - 1},
	}
}

// Origin returns the world coordinates of the chunk's (0, 0) column.
func (k ChunkKey) Origin(size int) (int, int) {
	return k.CX * size, k.CZ * size
}

// Less orders keys by CX then CZ.
func (k ChunkKey) Less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	return k.CZ < o.CZ
}

// CompareKeys is a slices.SortFunc comparator over chunk keys.
func CompareKeys(a, b ChunkKey) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Axis constrains lateral movement to one horizontal axis.
type Axis uint8

const (
	AxisNone Axis = iota
	AxisX
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisZ:
		return "z"
	}
	return ""
}

// ParseAxis accepts "", "x" and "z".
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "none":
		return AxisNone, nil
	case "x", "X":
		return AxisX, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return AxisNone, fmt.Errorf("unknown flow axis %q", s)
}

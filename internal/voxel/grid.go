package voxel

import (
	"encoding/binary"
	"fmt"
)

// BlockID identifies an entry in the block registry. 0 is air.
type BlockID uint16

const Air BlockID = 0

const (
	// MaxChunkSize bounds the horizontal chunk size so x and z pack into 8 bits each.
	MaxChunkSize = 256
	// MaxHeight bounds the vertical extent so y packs into 16 bits.
	MaxHeight = 1 << 16
)

// LocalKey packs a chunk-local (x, y, z) into one integer: y<<16 | x<<8 | z.
type LocalKey uint32

// PackLocal builds a LocalKey. Coordinates must already be in range.
func PackLocal(x, y, z int) LocalKey {
	return LocalKey(uint32(y)<<16 | uint32(x&0xff)<<8 | uint32(z&0xff))
}

func (k LocalKey) Unpack() (x, y, z int) {
	return int(k>>8) & 0xff, int(k >> 16), int(k) & 0xff
}

func (k LocalKey) String() string {
	x, y, z := k.Unpack()
	return fmt.Sprintf("%d,%d,%d", x, y, z)
}

// Grid is a dense chunk volume stored as one flat slice, indexed y-major.
type Grid struct {
	Size   int
	Height int
	Blocks []BlockID
}

// NewGrid allocates an all-air grid of size*height*size cells.
func NewGrid(size, height int) *Grid {
	return &Grid{
		Size:   size,
		Height: height,
		Blocks: make([]BlockID, size*height*size),
	}
}

func (g *Grid) index(x, y, z int) int {
	return (y*g.Size+z)*g.Size + x
}

// InBounds reports whether (x, y, z) is inside the grid.
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.Size && z >= 0 && z < g.Size && y >= 0 && y < g.Height
}

// At returns the block at (x, y, z), or Air outside the grid.
func (g *Grid) At(x, y, z int) BlockID {
	if !g.InBounds(x, y, z) {
		return Air
	}
	return g.Blocks[g.index(x, y, z)]
}

// Set writes a block and reports whether (x, y, z) was inside the grid.
func (g *Grid) Set(x, y, z int, id BlockID) bool {
	if !g.InBounds(x, y, z) {
		return false
	}
	g.Blocks[g.index(x, y, z)] = id
	return true
}

// TopAt returns the highest non-air y in the column, or -1.
func (g *Grid) TopAt(x, z int) int {
	for y := g.Height - 1; y >= 0; y-- {
		if g.At(x, y, z) != Air {
			return y
		}
	}
	return -1
}

// MarshalBinary encodes the grid as size, height and little-endian block ids.
func (g *Grid) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+2*len(g.Blocks))
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.Size))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Height))
	for i, b := range g.Blocks {
		binary.LittleEndian.PutUint16(buf[8+2*i:], uint16(b))
	}
	return buf, nil
}

func (g *Grid) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("grid: short header (%d bytes)", len(data))
	}
	size := int(binary.LittleEndian.Uint32(data[0:]))
	height := int(binary.LittleEndian.Uint32(data[4:]))
	n := size * height * size
	if size <= 0 || height <= 0 || len(data) != 8+2*n {
		return fmt.Errorf("grid: %dx%d does not match %d payload bytes", size, height, len(data)-8)
	}
	g.Size, g.Height = size, height
	g.Blocks = make([]BlockID, n)
	for i := range g.Blocks {
		g.Blocks[i] = BlockID(binary.LittleEndian.Uint16(data[8+2*i:]))
	}
	return nil
}

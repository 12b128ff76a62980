package modlog

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"voxelsim/internal/voxel"
)

var ErrBadKey = errors.New("malformed coordinate key")

// Document is the persisted form: "cx,cz" -> "x,y,z" -> block id, where -1
// means removed to air.
type Document map[string]map[string]int32

// Encode converts l to its persisted form.
func Encode(l *Log) Document {
	doc := make(Document, len(l.chunks))
	for key, m := range l.chunks {
		cells := make(map[string]int32, len(m))
		for local, v := range m {
			cells[local.String()] = v
		}
		doc[key.String()] = cells
	}
	return doc
}

// Decode rebuilds a Log. Keys that do not parse are skipped and counted;
// the remaining entries of the same chunk still load.
func Decode(doc Document) (*Log, int) {
	l := New()
	skipped := 0
	for ck, cells := range doc {
		key, err := ParseChunkKey(ck)
		if err != nil {
			log.Printf("modlog: %v", err)
			skipped += len(cells)
			continue
		}
		for lk, v := range cells {
			local, err := ParseLocalKey(lk)
			if err != nil {
				log.Printf("modlog: chunk %s: %v", ck, err)
				skipped++
				continue
			}
			if v < Removed {
				log.Printf("modlog: chunk %s: invalid block id %d at %s", ck, v, lk)
				skipped++
				continue
			}
			l.Set(key, local, v)
		}
	}
	return l, skipped
}

// ParseChunkKey parses "cx,cz".
func ParseChunkKey(s string) (voxel.ChunkKey, error) {
	parts, err := splitInts(s, 2)
	if err != nil {
		return voxel.ChunkKey{}, fmt.Errorf("%w: chunk %q", ErrBadKey, s)
	}
	return voxel.ChunkKey{CX: parts[0], CZ: parts[1]}, nil
}

// ParseLocalKey parses "x,y,z". Coordinates must fit the packed key; whether
// they fit a particular chunk is checked on replay.
func ParseLocalKey(s string) (voxel.LocalKey, error) {
	p, err := splitInts(s, 3)
	if err != nil {
		return 0, fmt.Errorf("%w: cell %q", ErrBadKey, s)
	}
	return LocalKeyOf(p[0], p[1], p[2])
}

// LocalKeyOf packs (x, y, z), rejecting coordinates the packed key cannot
// hold instead of letting them wrap.
func LocalKeyOf(x, y, z int) (voxel.LocalKey, error) {
	if x < 0 || x >= voxel.MaxChunkSize || z < 0 || z >= voxel.MaxChunkSize || y < 0 || y >= voxel.MaxHeight {
		return 0, fmt.Errorf("%w: cell %d,%d,%d out of range", ErrBadKey, x, y, z)
	}
	return voxel.PackLocal(x, y, z), nil
}

func splitInts(s string, n int) ([]int, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, ErrBadKey
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

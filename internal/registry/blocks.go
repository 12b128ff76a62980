package registry

import (
	"errors"
	"fmt"
	"slices"

	"voxelsim/internal/voxel"
)

// Block ids of the default table.
const (
	Air voxel.BlockID = iota
	Grass
	Dirt
	Water
	OakLog
	OakLeaves
	Sand
	Stone
	CoalOre
	IronOre
	Torch
	Glass
	Granite
	OakPlanks
	Snow
	SpruceLog
	SpruceLeaves
	Mycelium
	Lava
	Netherrack
	Glowstone
	Bedrock
)

var ErrUnknownBlock = errors.New("unknown block")

// Animation describes a texture scroll the render layer applies to a block type.
type Animation struct {
	Speed float32
	Axis  string
}

// BlockDefinition defines the properties of a block type
type BlockDefinition struct {
	ID            voxel.BlockID
	Name          string
	IsSolid       bool
	IsTransparent bool
	IsLuminous    bool
	IsFluid       bool
	Animation     *Animation
}

// Registry is an immutable block table indexed by id. It is built once and
// handed to every component that needs block metadata.
type Registry struct {
	byID   []BlockDefinition
	known  []bool
	byName map[string]voxel.BlockID
}

// New validates defs and builds a registry. Id 0 must be a non-solid,
// transparent "air" entry.
func New(defs []BlockDefinition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry: no block definitions")
	}
	var maxID voxel.BlockID
	for _, d := range defs {
		maxID = max(maxID, d.ID)
	}
	r := &Registry{
		byID:   make([]BlockDefinition, int(maxID)+1),
		known:  make([]bool, int(maxID)+1),
		byName: make(map[string]voxel.BlockID, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("registry: block %d has no name", d.ID)
		}
		if r.known[d.ID] {
			return nil, fmt.Errorf("registry: duplicate id %d (%s, %s)", d.ID, r.byID[d.ID].Name, d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate name %q", d.Name)
		}
		if d.Animation != nil {
			a := *d.Animation
			d.Animation = &a
		}
		r.byID[d.ID] = d
		r.known[d.ID] = true
		r.byName[d.Name] = d.ID
	}
	if !r.known[voxel.Air] || r.byID[voxel.Air].IsSolid || !r.byID[voxel.Air].IsTransparent {
		return nil, fmt.Errorf("registry: id 0 must be a non-solid transparent air block")
	}
	return r, nil
}

// Lookup returns the definition for id. Animation is returned as a copy.
func (r *Registry) Lookup(id voxel.BlockID) (BlockDefinition, bool) {
	if int(id) >= len(r.byID) || !r.known[id] {
		return BlockDefinition{}, false
	}
	d := r.byID[id]
	if d.Animation != nil {
		a := *d.Animation
		d.Animation = &a
	}
	return d, true
}

// ByName resolves a block name to its id.
func (r *Registry) ByName(name string) (voxel.BlockID, error) {
	id, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
	}
	return id, nil
}

// Name returns the block name, or "" for unknown ids.
func (r *Registry) Name(id voxel.BlockID) string {
	if !r.Has(id) {
		return ""
	}
	return r.byID[id].Name
}

func (r *Registry) Has(id voxel.BlockID) bool {
	return int(id) < len(r.byID) && r.known[id]
}

// IsSolid is false for unknown ids.
func (r *Registry) IsSolid(id voxel.BlockID) bool {
	return r.Has(id) && r.byID[id].IsSolid
}

// IsTransparent is false for unknown ids.
func (r *Registry) IsTransparent(id voxel.BlockID) bool {
	return r.Has(id) && r.byID[id].IsTransparent
}

func (r *Registry) IsFluid(id voxel.BlockID) bool {
	return r.Has(id) && r.byID[id].IsFluid
}

func (r *Registry) IsLuminous(id voxel.BlockID) bool {
	return r.Has(id) && r.byID[id].IsLuminous
}

// All returns every definition ordered by id.
func (r *Registry) All() []BlockDefinition {
	out := make([]BlockDefinition, 0, len(r.byName))
	for id, ok := range r.known {
		if ok {
			d, _ := r.Lookup(voxel.BlockID(id))
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) Len() int { return len(r.byName) }

// Names returns all block names sorted alphabetically.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

var defaultDefinitions = []BlockDefinition{
	{ID: Air, Name: "air", IsTransparent: true},
	{ID: Grass, Name: "grass", IsSolid: true},
	{ID: Dirt, Name: "dirt", IsSolid: true},
	{ID: Water, Name: "water", IsTransparent: true, IsFluid: true, Animation: &Animation{Speed: 1, Axis: "y"}},
	{ID: OakLog, Name: "oak_log", IsSolid: true},
	{ID: OakLeaves, Name: "oak_leaves", IsSolid: true, IsTransparent: true},
	{ID: Sand, Name: "sand", IsSolid: true},
	{ID: Stone, Name: "stone", IsSolid: true},
	{ID: CoalOre, Name: "coal_ore", IsSolid: true},
	{ID: IronOre, Name: "iron_ore", IsSolid: true},
	{ID: Torch, Name: "torch", IsTransparent: true, IsLuminous: true},
	{ID: Glass, Name: "glass", IsSolid: true, IsTransparent: true},
	{ID: Granite, Name: "granite", IsSolid: true},
	{ID: OakPlanks, Name: "oak_planks", IsSolid: true},
	{ID: Snow, Name: "snow", IsSolid: true},
	{ID: SpruceLog, Name: "spruce_log", IsSolid: true},
	{ID: SpruceLeaves, Name: "spruce_leaves", IsSolid: true, IsTransparent: true},
	{ID: Mycelium, Name: "mycelium", IsSolid: true},
	{ID: Lava, Name: "lava", IsFluid: true, IsLuminous: true, Animation: &Animation{Speed: 0.3, Axis: "y"}},
	{ID: Netherrack, Name: "netherrack", IsSolid: true},
	{ID: Glowstone, Name: "glowstone", IsSolid: true, IsLuminous: true},
	{ID: Bedrock, Name: "bedrock", IsSolid: true},
}

// Default returns the built-in block table.
func Default() *Registry {
	r, err := New(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return r
}

package config

import (
	"fmt"
	"runtime"
)

// WorldSettings holds world generation and streaming configuration
type WorldSettings struct {
	Seed       int64  `yaml:"seed"`
	ChunkSize  int    `yaml:"chunk_size"`
	MaxHeight  int    `yaml:"max_height"`
	LoadRadius int    `yaml:"load_radius"`
	Dimension  string `yaml:"dimension"`
	// DeterministicDecoration seeds tree, ore and structure placement from
	// the world seed and chunk coordinates. When false every generation of
	// a chunk decorates it differently.
	DeterministicDecoration bool `yaml:"deterministic_decoration"`
	GenerateWorkers         int  `yaml:"generate_workers"`
	MeshWorkers             int  `yaml:"mesh_workers"`
}

// BiomeParams are blended bilinearly between chunk corners.
type BiomeParams struct {
	HeightScale float64 `yaml:"height_scale"`
	WaterLevel  float64 `yaml:"water_level"`
}

// FluidSpecies configures one fluid block for the simulator.
type FluidSpecies struct {
	Block        string  `yaml:"block"`
	TickRate     float64 `yaml:"tick_rate"`
	SpreadChance float64 `yaml:"spread_chance"`
}

type RandomTickSettings struct {
	TickRate float64 `yaml:"tick_rate"`
	PerChunk int     `yaml:"per_chunk"`
}

var requiredBiomes = []string{"ocean", "plains", "mountains", "mushroom_fields"}

func defaultWorld() WorldSettings {
	return WorldSettings{
		Seed:                    1337,
		ChunkSize:               16,
		MaxHeight:               128,
		LoadRadius:              4,
		Dimension:               "overworld",
		DeterministicDecoration: true,
		GenerateWorkers:         max(runtime.NumCPU()-1, 1),
		MeshWorkers:             max(runtime.NumCPU()/2, 1),
	}
}

func defaultBiomes() map[string]BiomeParams {
	return map[string]BiomeParams{
		"ocean":           {HeightScale: 15, WaterLevel: 12},
		"plains":          {HeightScale: 25, WaterLevel: 9},
		"mountains":       {HeightScale: 50, WaterLevel: 6},
		"mushroom_fields": {HeightScale: 20, WaterLevel: 9},
	}
}

func defaultFluids() []FluidSpecies {
	return []FluidSpecies{
		{Block: "water", TickRate: 0.5, SpreadChance: 0.8},
		{Block: "lava", TickRate: 1.5, SpreadChance: 0.25},
	}
}

func (w WorldSettings) validate() error {
	if w.ChunkSize < 2 || w.ChunkSize > 256 {
		return fmt.Errorf("%w: world.chunk_size %d out of [2,256]", ErrInvalid, w.ChunkSize)
	}
	if w.MaxHeight < 8 || w.MaxHeight > 4096 {
		return fmt.Errorf("%w: world.max_height %d out of [8,4096]", ErrInvalid, w.MaxHeight)
	}
	if w.LoadRadius < 0 || w.LoadRadius > 64 {
		return fmt.Errorf("%w: world.load_radius %d out of [0,64]", ErrInvalid, w.LoadRadius)
	}
	switch w.Dimension {
	case "overworld", "nether":
	default:
		return fmt.Errorf("%w: world.dimension %q", ErrInvalid, w.Dimension)
	}
	if w.GenerateWorkers < 1 {
		return fmt.Errorf("%w: world.generate_workers must be >= 1", ErrInvalid)
	}
	if w.MeshWorkers < 1 {
		return fmt.Errorf("%w: world.mesh_workers must be >= 1", ErrInvalid)
	}
	return nil
}

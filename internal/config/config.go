package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Config is the static construction-time configuration of a world.
type Config struct {
	World       WorldSettings          `yaml:"world"`
	Biomes      map[string]BiomeParams `yaml:"biomes"`
	Fluids      []FluidSpecies         `yaml:"fluids"`
	RandomTicks RandomTickSettings     `yaml:"random_ticks"`
	Persistence PersistenceSettings    `yaml:"persistence"`
	Server      ServerSettings         `yaml:"server"`
}

type PersistenceSettings struct {
	// ModLogPath is a JSON file; a ".zst" suffix enables zstd compression.
	ModLogPath string `yaml:"modlog_path"`
	// IndexDB is an optional sqlite database mirroring the modification log.
	IndexDB string `yaml:"index_db"`
}

type ServerSettings struct {
	Addr        string  `yaml:"addr"`
	TickHz      int     `yaml:"tick_hz"`
	EditRate    float64 `yaml:"edit_rate"`
	EditBurst   int     `yaml:"edit_burst"`
	SlowFrameMs int     `yaml:"slow_frame_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		World:  defaultWorld(),
		Biomes: defaultBiomes(),
		Fluids: defaultFluids(),
		RandomTicks: RandomTickSettings{
			TickRate: 0.05,
			PerChunk: 50,
		},
		Persistence: PersistenceSettings{
			ModLogPath: "data/modifications.json.zst",
		},
		Server: ServerSettings{
			Addr:        ":8080",
			TickHz:      20,
			EditRate:    20,
			EditBurst:   40,
			SlowFrameMs: 50,
		},
	}
}

// Load reads a YAML file over Default() and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and cross references between sections.
func (c Config) Validate() error {
	if err := c.World.validate(); err != nil {
		return err
	}
	for _, name := range requiredBiomes {
		b, ok := c.Biomes[name]
		if !ok {
			return fmt.Errorf("%w: biome %q missing", ErrInvalid, name)
		}
		if b.HeightScale <= 0 || int(b.HeightScale) >= c.World.MaxHeight {
			return fmt.Errorf("%w: biome %q height_scale %.1f out of (0,%d)", ErrInvalid, name, b.HeightScale, c.World.MaxHeight)
		}
		if b.WaterLevel < 0 || int(b.WaterLevel) >= c.World.MaxHeight {
			return fmt.Errorf("%w: biome %q water_level %.1f out of range", ErrInvalid, name, b.WaterLevel)
		}
	}
	seen := make(map[string]bool, len(c.Fluids))
	for _, f := range c.Fluids {
		if f.Block == "" {
			return fmt.Errorf("%w: fluid species without block", ErrInvalid)
		}
		if seen[f.Block] {
			return fmt.Errorf("%w: fluid %q listed twice", ErrInvalid, f.Block)
		}
		seen[f.Block] = true
		if f.TickRate <= 0 {
			return fmt.Errorf("%w: fluid %q tick_rate must be > 0", ErrInvalid, f.Block)
		}
		if f.SpreadChance < 0 || f.SpreadChance > 1 {
			return fmt.Errorf("%w: fluid %q spread_chance must be in [0,1]", ErrInvalid, f.Block)
		}
	}
	if c.RandomTicks.TickRate < 0 || c.RandomTicks.PerChunk < 0 {
		return fmt.Errorf("%w: random_ticks must be non-negative", ErrInvalid)
	}
	if c.Server.TickHz <= 0 {
		return fmt.Errorf("%w: server.tick_hz must be > 0", ErrInvalid)
	}
	if c.Server.EditRate < 0 || c.Server.EditBurst < 0 {
		return fmt.Errorf("%w: server edit limits must be non-negative", ErrInvalid)
	}
	return nil
}

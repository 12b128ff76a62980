package terrain

// Biome names used by the parameter table and the chunk biome tag.
const (
	Ocean          = "ocean"
	Plains         = "plains"
	Mountains      = "mountains"
	MushroomFields = "mushroom_fields"
)

// biomeFrequency scales world coordinates before sampling biome noise.
const biomeFrequency = 0.01

// Params is the per-biome shape of the terrain.
type Params struct {
	HeightScale float64
	WaterLevel  float64
}

// Table maps biome names to their parameters.
type Table map[string]Params

// DefaultTable mirrors the default configuration.
func DefaultTable() Table {
	return Table{
		Ocean:          {HeightScale: 15, WaterLevel: 12},
		Plains:         {HeightScale: 25, WaterLevel: 9},
		Mountains:      {HeightScale: 50, WaterLevel: 6},
		MushroomFields: {HeightScale: 20, WaterLevel: 9},
	}
}

// Classify maps a biome noise value in [0, 1] to a biome name.
func Classify(v float64) string {
	switch {
	case v < 0.3:
		return Ocean
	case v < 0.55:
		return Plains
	case v < 0.6:
		return MushroomFields
	default:
		return Mountains
	}
}

// IsCold reports whether trees use the spruce palette and peaks get snow.
func IsCold(biome string) bool {
	return biome == Mountains
}

// Corners holds biome parameters at the chunk corners in the order
// (0,0), (1,0), (0,1), (1,1).
type Corners [4]Params

// Blend bilinearly interpolates the corners at fractional position (tx, tz).
func (c Corners) Blend(tx, tz float64) Params {
	top := Params{
		HeightScale: lerp(c[0].HeightScale, c[1].HeightScale, tx),
		WaterLevel:  lerp(c[0].WaterLevel, c[1].WaterLevel, tx),
	}
	bottom := Params{
		HeightScale: lerp(c[2].HeightScale, c[3].HeightScale, tx),
		WaterLevel:  lerp(c[2].WaterLevel, c[3].WaterLevel, tx),
	}
	return Params{
		HeightScale: lerp(top.HeightScale, bottom.HeightScale, tz),
		WaterLevel:  lerp(top.WaterLevel, bottom.WaterLevel, tz),
	}
}

// Uniform returns corners that all carry p.
func Uniform(p Params) Corners {
	return Corners{p, p, p, p}
}

package terrain

import (
	"math"
	"math/rand/v2"
)

// Gradient tables of the improved noise reference implementation.
var (
	gradX = [16]float64{1, -1, 1, -1, 1, -1, 1, -1, 0, 0, 0, 0, 1, 0, -1, 0}
	gradY = [16]float64{1, 1, -1, -1, 0, 0, 0, 0, 1, -1, 1, -1, 1, -1, 1, -1}
	gradZ = [16]float64{0, 0, 0, 0, 1, 1, -1, -1, 1, 1, -1, -1, 0, 1, 0, -1}
)

// Perlin is an improved gradient noise source. It is immutable after
// construction and safe for concurrent use.
type Perlin struct {
	perm       [512]int
	xo, yo, zo float64
}

// NewPerlin shuffles a permutation table from rng.
func NewPerlin(rng *rand.Rand) *Perlin {
	p := &Perlin{
		xo: rng.Float64() * 256.0,
		yo: rng.Float64() * 256.0,
		zo: rng.Float64() * 256.0,
	}
	for i := 0; i < 256; i++ {
		p.perm[i] = i
	}
	for i := 0; i < 256; i++ {
		j := rng.IntN(256-i) + i
		p.perm[i], p.perm[j] = p.perm[j], p.perm[i]
		p.perm[i+256] = p.perm[i]
	}
	return p
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func grad(hash int, x, y, z float64) float64 {
	i := hash & 15
	return gradX[i]*x + gradY[i]*y + gradZ[i]*z
}

// Noise3D returns a value in roughly [-1, 1].
func (p *Perlin) Noise3D(x, y, z float64) float64 {
	x += p.xo
	y += p.yo
	z += p.zo
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	X, Y, Z := int(fx)&255, int(fy)&255, int(fz)&255
	x -= fx
	y -= fy
	z -= fz
	u, v, w := fade(x), fade(y), fade(z)

	a := p.perm[X] + Y
	aa := p.perm[a] + Z
	ab := p.perm[a+1] + Z
	b := p.perm[X+1] + Y
	ba := p.perm[b] + Z
	bb := p.perm[b+1] + Z

	return lerp(
		lerp(
			lerp(grad(p.perm[aa], x, y, z), grad(p.perm[ba], x-1, y, z), u),
			lerp(grad(p.perm[ab], x, y-1, z), grad(p.perm[bb], x-1, y-1, z), u),
			v),
		lerp(
			lerp(grad(p.perm[aa+1], x, y, z-1), grad(p.perm[ba+1], x-1, y, z-1), u),
			lerp(grad(p.perm[ab+1], x, y-1, z-1), grad(p.perm[bb+1], x-1, y-1, z-1), u),
			v),
		w)
}

// Noise2D samples the y=0 plane.
func (p *Perlin) Noise2D(x, z float64) float64 {
	return p.Noise3D(x, 0, z)
}

// Octaves layers a noise source. Samples are normalised to [0, 1].
type Octaves struct {
	Source      *Perlin
	Count       int
	Persistence float64
	Lacunarity  float64
	Frequency   float64
}

// Sample2D sums Count octaves at world (x, z) and maps the result to [0, 1].
func (o Octaves) Sample2D(x, z float64) float64 {
	amplitude, frequency := 1.0, o.Frequency
	sum, maxAmp := 0.0, 0.0
	for i := range o.Count {
		// offset each octave so lattice points do not line up
		off := float64(i) * 17.31
		sum += o.Source.Noise2D(x*frequency+off, z*frequency+off) * amplitude
		maxAmp += amplitude
		amplitude *= o.Persistence
		frequency *= o.Lacunarity
	}
	return normalize(sum, maxAmp)
}

// Sample3D is the volumetric variant of Sample2D.
func (o Octaves) Sample3D(x, y, z float64) float64 {
	amplitude, frequency := 1.0, o.Frequency
	sum, maxAmp := 0.0, 0.0
	for i := range o.Count {
		off := float64(i) * 17.31
		sum += o.Source.Noise3D(x*frequency+off, y*frequency+off, z*frequency+off) * amplitude
		maxAmp += amplitude
		amplitude *= o.Persistence
		frequency *= o.Lacunarity
	}
	return normalize(sum, maxAmp)
}

func normalize(sum, maxAmp float64) float64 {
	if maxAmp == 0 {
		return 0.5
	}
	v := (sum/maxAmp + 1) / 2
	return math.Max(0, math.Min(1, v))
}

// mix64 is a SplitMix64 finalizer used to derive per-chunk seeds.
func mix64(v uint64) uint64 {
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}
